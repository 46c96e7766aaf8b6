package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotConnected = errors.New("database not connected")

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Client owns the process-wide GORM handle. Connect is idempotent; the first
// successful call opens the pool and later calls return the same handle.
type Client struct {
	dialector gorm.Dialector
	pool      PoolConfig

	mu        sync.Mutex
	connected bool
	db        *gorm.DB
}

func NewClient(dialector gorm.Dialector, pool PoolConfig) *Client {
	return &Client{dialector: dialector, pool: pool}
}

func NewPostgresClient(dsn string) *Client {
	return NewClient(postgres.Open(dsn), DefaultPool())
}

func (c *Client) Connect(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return c.db, nil
	}

	db, err := gorm.Open(c.dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(c.pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.pool.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	c.connected = true
	slog.Info("database connected", "dialect", c.dialector.Name())
	return db, nil
}

// DB returns the connected handle, or nil before Connect succeeds.
func (c *Client) DB() *gorm.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Migrate runs AutoMigrate for the given models.
func (c *Client) Migrate(models ...interface{}) error {
	db := c.DB()
	if db == nil {
		return ErrNotConnected
	}
	if len(models) == 0 {
		return nil
	}
	return db.AutoMigrate(models...)
}

func (c *Client) Ping(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return ErrNotConnected
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.connected = false
	c.db = nil
	return sqlDB.Close()
}
