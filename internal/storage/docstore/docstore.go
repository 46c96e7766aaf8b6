// Package docstore persists EventBuddy collections in a document-style
// relational layout through GORM.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

const (
	seqUsers         = "users"
	seqEvents        = "events"
	seqInterests     = "interests"
	seqBuddyRequests = "buddy_requests"
	seqMessages      = "messages"
)

// Store implements storage.Storage on top of a connected database.Client.
type Store struct {
	client *database.Client
	db     *gorm.DB
	now    func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New connects the client (if it is not already) and migrates the collections.
func New(ctx context.Context, client *database.Client, opts ...Option) (*Store, error) {
	db, err := client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	s := &Store{client: client, db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	return s, nil
}

var _ storage.Storage = (*Store)(nil)

func (s *Store) migrate(ctx context.Context) error {
	if err := s.client.Migrate(
		&idSequence{},
		&userRecord{},
		&eventRecord{},
		&interestRecord{},
		&userInterestRecord{},
		&buddyRequestRecord{},
		&messageRecord{},
	); err != nil {
		return err
	}
	for _, name := range []string{seqUsers, seqEvents, seqInterests, seqBuddyRequests, seqMessages} {
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&idSequence{Name: name}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// nextID advances the named sequence inside tx and returns the new value.
func nextID(tx *gorm.DB, name string) (int64, error) {
	res := tx.Model(&idSequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("sequence %q missing", name)
	}
	var seq idSequence
	if err := tx.Where("name = ?", name).Take(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// insert allocates an id from seq and creates the row built for it.
func (s *Store) insert(ctx context.Context, seq string, build func(id int64) interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextID(tx, seq)
		if err != nil {
			return err
		}
		return tx.Create(build(id)).Error
	})
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// fail maps GORM errors onto storage sentinels, logging transport failures.
func (s *Store) fail(op string, err error, attrs ...any) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicate
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidTransition):
		return err
	}
	slog.Error("docstore operation failed", append([]any{"operation", op, "error", err}, attrs...)...)
	return fmt.Errorf("docstore: %s: %w", op, err)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(ctx, "get user", "numeric_id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "get user by username", "username = ?", username)
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	return s.findUser(ctx, "get user by uid", "uid = ?", uid)
}

func (s *Store) findUser(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where(query, arg).Order("numeric_id").Take(&rec).Error; err != nil {
		return nil, s.fail(op, err)
	}
	u := rec.toModel()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, in models.InsertUser) (*models.User, error) {
	var rec userRecord
	err := s.insert(ctx, seqUsers, func(id int64) interface{} {
		rec = userRecord{Document: newDocument(id)}
		rec.set(in.ToUser(id))
		return &rec
	})
	if err != nil {
		return nil, s.fail("create user", err, "username", in.Username)
	}
	u := rec.toModel()
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("numeric_id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		u := rec.toModel()
		patch.Apply(&u)
		rec.set(u)
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, s.fail("update user", err, "user_id", id)
	}
	u := rec.toModel()
	return &u, nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var rec eventRecord
	if err := s.db.WithContext(ctx).Where("numeric_id = ?", id).Take(&rec).Error; err != nil {
		return nil, s.fail("get event", err, "event_id", id)
	}
	e := rec.toModel()
	return &e, nil
}

func (s *Store) GetEvents(ctx context.Context, category string) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Order("numeric_id")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	return s.findEvents(q, "get events")
}

func (s *Store) GetFeaturedEvents(ctx context.Context) ([]models.Event, error) {
	return s.findEvents(s.db.WithContext(ctx).Where("featured = ?", true).Order("numeric_id"), "get featured events")
}

func (s *Store) findEvents(q *gorm.DB, op string) ([]models.Event, error) {
	var recs []eventRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]models.Event, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, in models.InsertEvent) (*models.Event, error) {
	var rec eventRecord
	err := s.insert(ctx, seqEvents, func(id int64) interface{} {
		e := in.ToEvent(id)
		rec = eventRecord{
			Document:    newDocument(id),
			Title:       e.Title,
			Description: e.Description,
			ImageURL:    e.ImageURL,
			Category:    e.Category,
			Venue:       e.Venue,
			Location:    e.Location,
			Date:        e.Date,
			Time:        e.Time,
			PriceRange:  e.PriceRange,
			Featured:    e.Featured,
		}
		return &rec
	})
	if err != nil {
		return nil, s.fail("create event", err)
	}
	e := rec.toModel()
	return &e, nil
}

func (s *Store) GetInterests(ctx context.Context) ([]models.Interest, error) {
	return s.findInterests(s.db.WithContext(ctx).Order("numeric_id"), "get interests")
}

func (s *Store) GetUserInterests(ctx context.Context, userID int64) ([]models.Interest, error) {
	db := s.db.WithContext(ctx)
	members := db.Model(&userInterestRecord{}).Select("interest_id").Where("user_id = ?", userID)
	return s.findInterests(db.Where("numeric_id IN (?)", members).Order("numeric_id"), "get user interests")
}

func (s *Store) findInterests(q *gorm.DB, op string) ([]models.Interest, error) {
	var recs []interestRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]models.Interest, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) CreateInterest(ctx context.Context, in models.InsertInterest) (*models.Interest, error) {
	var rec interestRecord
	err := s.insert(ctx, seqInterests, func(id int64) interface{} {
		rec = interestRecord{Document: newDocument(id), Name: in.Name}
		return &rec
	})
	if err != nil {
		return nil, s.fail("create interest", err, "name", in.Name)
	}
	i := rec.toModel()
	return &i, nil
}

func (s *Store) AddUserInterest(ctx context.Context, userID, interestID int64) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&userInterestRecord{UserID: userID, InterestID: interestID}).Error
	if err != nil {
		return s.fail("add user interest", err, "user_id", userID, "interest_id", interestID)
	}
	return nil
}

func (s *Store) RemoveUserInterest(ctx context.Context, userID, interestID int64) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND interest_id = ?", userID, interestID).
		Delete(&userInterestRecord{}).Error
	if err != nil {
		return s.fail("remove user interest", err, "user_id", userID, "interest_id", interestID)
	}
	return nil
}

func (s *Store) GetBuddyRequest(ctx context.Context, id int64) (*models.BuddyRequest, error) {
	var rec buddyRequestRecord
	if err := s.db.WithContext(ctx).Where("numeric_id = ?", id).Take(&rec).Error; err != nil {
		return nil, s.fail("get buddy request", err, "buddy_request_id", id)
	}
	r := rec.toModel()
	return &r, nil
}

func (s *Store) GetBuddyRequests(ctx context.Context, userID int64) ([]models.BuddyRequest, error) {
	var recs []buddyRequestRecord
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", userID).
		Order("created_at DESC").Order("numeric_id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, s.fail("get buddy requests", err, "user_id", userID)
	}
	out := make([]models.BuddyRequest, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) CreateBuddyRequest(ctx context.Context, in models.InsertBuddyRequest) (*models.BuddyRequest, error) {
	var rec buddyRequestRecord
	now := s.timestamp()
	err := s.insert(ctx, seqBuddyRequests, func(id int64) interface{} {
		r := in.ToBuddyRequest(id, now)
		rec = buddyRequestRecord{
			Document:    newDocument(id),
			RequesterID: r.RequesterID,
			ReceiverID:  r.ReceiverID,
			EventID:     r.EventID,
			Status:      string(r.Status),
			Message:     r.Message,
			CreatedAt:   r.CreatedAt,
		}
		return &rec
	})
	if err != nil {
		return nil, s.fail("create buddy request", err)
	}
	r := rec.toModel()
	return &r, nil
}

// UpdateBuddyRequestStatus is a compare-and-set on the current status, so a
// concurrent transition is reported as ErrInvalidTransition rather than lost.
func (s *Store) UpdateBuddyRequestStatus(ctx context.Context, id int64, status models.BuddyRequestStatus) (*models.BuddyRequest, error) {
	var rec buddyRequestRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("numeric_id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		current := models.BuddyRequestStatus(rec.Status)
		if !current.CanTransition(status) {
			return storage.ErrInvalidTransition
		}
		if current == status {
			return nil
		}
		res := tx.Model(&buddyRequestRecord{}).
			Where("numeric_id = ? AND status = ?", id, rec.Status).
			Update("status", string(status))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrInvalidTransition
		}
		rec.Status = string(status)
		return nil
	})
	if err != nil {
		return nil, s.fail("update buddy request status", err, "buddy_request_id", id, "status", status)
	}
	r := rec.toModel()
	return &r, nil
}

// GetMessages runs one query per direction concurrently and merges them.
func (s *Store) GetMessages(ctx context.Context, a, b int64) ([]models.Message, error) {
	var ab, ba []messageRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("sender_id = ? AND receiver_id = ?", a, b).Find(&ab).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("sender_id = ? AND receiver_id = ?", b, a).Find(&ba).Error
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("get messages", err, "user_a", a, "user_b", b)
	}

	out := make([]models.Message, 0, len(ab)+len(ba))
	for _, r := range ab {
		out = append(out, r.toModel())
	}
	if a != b {
		for _, r := range ba {
			out = append(out, r.toModel())
		}
	}
	models.SortMessages(out)
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, in models.InsertMessage) (*models.Message, error) {
	var rec messageRecord
	now := s.timestamp()
	err := s.insert(ctx, seqMessages, func(id int64) interface{} {
		m := in.ToMessage(id, now)
		rec = messageRecord{
			Document:   newDocument(id),
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		}
		return &rec
	})
	if err != nil {
		return nil, s.fail("create message", err)
	}
	m := rec.toModel()
	return &m, nil
}

func (s *Store) MarkMessagesAsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("numeric_id IN ?", ids).
		Update("read", true).Error
	if err != nil {
		return s.fail("mark messages as read", err, "count", len(ids))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Store) Close() error {
	return s.client.Close()
}
