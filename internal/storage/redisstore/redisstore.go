// Package redisstore keeps each entity as a JSON document in a managed Redis
// deployment, with sorted sets and sets as secondary indexes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

const DefaultPrefix = "eventbuddy"

const (
	collUsers         = "users"
	collEvents        = "events"
	collInterests     = "interests"
	collBuddyRequests = "buddy_requests"
	collMessages      = "messages"
)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connection settings for Dial. URL, when set, takes precedence.
type Connection struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// Dial opens a client and pings it once.
func Dial(ctx context.Context, conn Connection) (*redis.Client, error) {
	opts := &redis.Options{Addr: conn.Addr, Password: conn.Password, DB: conn.DB}
	if conn.URL != "" {
		parsed, err := redis.ParseURL(conn.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connected", "addr", opts.Addr)
	return rdb, nil
}

var _ storage.Storage = (*Store)(nil)

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Store) docKey(coll string, id int64) string {
	return s.key(coll, strconv.FormatInt(id, 10))
}

func (s *Store) indexKey(coll string) string { return s.key(coll) }

func (s *Store) nextID(ctx context.Context, coll string) (int64, error) {
	return s.rdb.Incr(ctx, s.key("seq", coll)).Result()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func score(t time.Time) float64 { return float64(t.UnixMicro()) }

func (s *Store) fail(op string, err error, attrs ...any) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrDuplicate) || errors.Is(err, storage.ErrInvalidTransition) {
		return err
	}
	slog.Error("redisstore operation failed", append([]any{"operation", op, "error", err}, attrs...)...)
	return fmt.Errorf("redisstore: %s: %w", op, err)
}

func (s *Store) getDoc(ctx context.Context, coll string, id int64, dst interface{}) error {
	raw, err := s.rdb.Get(ctx, s.docKey(coll, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// loadDocs fetches the documents for ids in one MGET, skipping missing keys.
func loadDocs[T any](ctx context.Context, s *Store, coll string, ids []int64) ([]T, error) {
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(coll, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func parseIDs(members []string) ([]int64, error) {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt index member %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) rangeIDs(ctx context.Context, key string) ([]int64, error) {
	members, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(members)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.getDoc(ctx, collUsers, id, &u); err != nil {
		return nil, s.fail("get user", err, "user_id", id)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userByLookup(ctx, "get user by username", s.key(collUsers, "username", username))
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	return s.userByLookup(ctx, "get user by uid", s.key(collUsers, "uid", uid))
}

func (s *Store) userByLookup(ctx context.Context, op, lookup string) (*models.User, error) {
	id, err := s.rdb.Get(ctx, lookup).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.GetUser(ctx, id)
}

// claim reserves a unique lookup key for id. It reports false when the key
// already belongs to someone else.
func (s *Store) claim(ctx context.Context, lookup string, id int64) (bool, error) {
	return s.rdb.SetNX(ctx, lookup, id, 0).Result()
}

// release drops lookup claims after a failed write. It runs even when ctx
// is already cancelled.
func (s *Store) release(ctx context.Context, lookups ...string) {
	if len(lookups) == 0 {
		return
	}
	if err := s.rdb.Del(context.WithoutCancel(ctx), lookups...).Err(); err != nil {
		slog.Error("redisstore: releasing lookup keys failed", "error", err, "keys", lookups)
	}
}

func (s *Store) claimUserKeys(ctx context.Context, id int64, username, email string) error {
	nameKey := s.key(collUsers, "username", username)
	ok, err := s.claim(ctx, nameKey, id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrDuplicate
	}
	ok, err = s.claim(ctx, s.key(collUsers, "email", email), id)
	if err != nil || !ok {
		s.release(ctx, nameKey)
		if err != nil {
			return err
		}
		return storage.ErrDuplicate
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, in models.InsertUser) (*models.User, error) {
	id, err := s.nextID(ctx, collUsers)
	if err != nil {
		return nil, s.fail("create user", err)
	}
	if err := s.claimUserKeys(ctx, id, in.Username, in.Email); err != nil {
		return nil, s.fail("create user", err, "username", in.Username)
	}

	claimed := []string{s.key(collUsers, "username", in.Username), s.key(collUsers, "email", in.Email)}

	u := in.ToUser(id)
	doc, err := json.Marshal(u)
	if err != nil {
		s.release(ctx, claimed...)
		return nil, s.fail("create user", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collUsers, id), doc, 0)
		pipe.ZAdd(ctx, s.indexKey(collUsers), redis.Z{Score: float64(id), Member: id})
		if u.UID != "" {
			pipe.SetNX(ctx, s.key(collUsers, "uid", u.UID), id, 0)
		}
		return nil
	})
	if err != nil {
		s.release(ctx, claimed...)
		return nil, s.fail("create user", err, "user_id", id)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	var u models.User
	if err := s.getDoc(ctx, collUsers, id, &u); err != nil {
		return nil, s.fail("update user", err, "user_id", id)
	}
	before := u
	patch.Apply(&u)

	var claimed []string
	release := func() { s.release(ctx, claimed...) }
	for _, change := range []struct{ field, prev, next string }{
		{"username", before.Username, u.Username},
		{"email", before.Email, u.Email},
	} {
		if change.prev == change.next {
			continue
		}
		lookup := s.key(collUsers, change.field, change.next)
		ok, err := s.claim(ctx, lookup, id)
		if err != nil {
			release()
			return nil, s.fail("update user", err, "user_id", id)
		}
		if !ok {
			release()
			return nil, storage.ErrDuplicate
		}
		claimed = append(claimed, lookup)
	}

	doc, err := json.Marshal(u)
	if err != nil {
		release()
		return nil, s.fail("update user", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collUsers, id), doc, 0)
		if before.Username != u.Username {
			pipe.Del(ctx, s.key(collUsers, "username", before.Username))
		}
		if before.Email != u.Email {
			pipe.Del(ctx, s.key(collUsers, "email", before.Email))
		}
		return nil
	})
	if err != nil {
		release()
		return nil, s.fail("update user", err, "user_id", id)
	}
	return &u, nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var e models.Event
	if err := s.getDoc(ctx, collEvents, id, &e); err != nil {
		return nil, s.fail("get event", err, "event_id", id)
	}
	return &e, nil
}

func (s *Store) GetEvents(ctx context.Context, category string) ([]models.Event, error) {
	key := s.indexKey(collEvents)
	if category != "" {
		key = s.key(collEvents, "category", category)
	}
	return s.listEvents(ctx, "get events", key)
}

func (s *Store) GetFeaturedEvents(ctx context.Context) ([]models.Event, error) {
	return s.listEvents(ctx, "get featured events", s.key(collEvents, "featured"))
}

func (s *Store) listEvents(ctx context.Context, op, key string) ([]models.Event, error) {
	ids, err := s.rangeIDs(ctx, key)
	if err != nil {
		return nil, s.fail(op, err)
	}
	events, err := loadDocs[models.Event](ctx, s, collEvents, ids)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return events, nil
}

func (s *Store) CreateEvent(ctx context.Context, in models.InsertEvent) (*models.Event, error) {
	id, err := s.nextID(ctx, collEvents)
	if err != nil {
		return nil, s.fail("create event", err)
	}
	e := in.ToEvent(id)
	doc, err := json.Marshal(e)
	if err != nil {
		return nil, s.fail("create event", err)
	}
	member := redis.Z{Score: float64(id), Member: id}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collEvents, id), doc, 0)
		pipe.ZAdd(ctx, s.indexKey(collEvents), member)
		pipe.ZAdd(ctx, s.key(collEvents, "category", e.Category), member)
		if e.Featured {
			pipe.ZAdd(ctx, s.key(collEvents, "featured"), member)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create event", err, "event_id", id)
	}
	return &e, nil
}

func (s *Store) GetInterests(ctx context.Context) ([]models.Interest, error) {
	ids, err := s.rangeIDs(ctx, s.indexKey(collInterests))
	if err != nil {
		return nil, s.fail("get interests", err)
	}
	interests, err := loadDocs[models.Interest](ctx, s, collInterests, ids)
	if err != nil {
		return nil, s.fail("get interests", err)
	}
	return interests, nil
}

func (s *Store) CreateInterest(ctx context.Context, in models.InsertInterest) (*models.Interest, error) {
	id, err := s.nextID(ctx, collInterests)
	if err != nil {
		return nil, s.fail("create interest", err)
	}
	ok, err := s.claim(ctx, s.key(collInterests, "name", in.Name), id)
	if err != nil {
		return nil, s.fail("create interest", err)
	}
	if !ok {
		return nil, storage.ErrDuplicate
	}
	i := models.Interest{ID: id, Name: in.Name}
	doc, err := json.Marshal(i)
	if err != nil {
		return nil, s.fail("create interest", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collInterests, id), doc, 0)
		pipe.ZAdd(ctx, s.indexKey(collInterests), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return nil, s.fail("create interest", err, "interest_id", id)
	}
	return &i, nil
}

func (s *Store) userInterestsKey(userID int64) string {
	return s.key("user_interests", strconv.FormatInt(userID, 10))
}

func (s *Store) GetUserInterests(ctx context.Context, userID int64) ([]models.Interest, error) {
	members, err := s.rdb.SMembers(ctx, s.userInterestsKey(userID)).Result()
	if err != nil {
		return nil, s.fail("get user interests", err, "user_id", userID)
	}
	ids, err := parseIDs(members)
	if err != nil {
		return nil, s.fail("get user interests", err, "user_id", userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	interests, err := loadDocs[models.Interest](ctx, s, collInterests, ids)
	if err != nil {
		return nil, s.fail("get user interests", err, "user_id", userID)
	}
	return interests, nil
}

func (s *Store) AddUserInterest(ctx context.Context, userID, interestID int64) error {
	if err := s.rdb.SAdd(ctx, s.userInterestsKey(userID), interestID).Err(); err != nil {
		return s.fail("add user interest", err, "user_id", userID, "interest_id", interestID)
	}
	return nil
}

func (s *Store) RemoveUserInterest(ctx context.Context, userID, interestID int64) error {
	if err := s.rdb.SRem(ctx, s.userInterestsKey(userID), interestID).Err(); err != nil {
		return s.fail("remove user interest", err, "user_id", userID, "interest_id", interestID)
	}
	return nil
}

func (s *Store) receivedKey(userID int64) string {
	return s.key(collBuddyRequests, "receiver", strconv.FormatInt(userID, 10))
}

func (s *Store) GetBuddyRequest(ctx context.Context, id int64) (*models.BuddyRequest, error) {
	var r models.BuddyRequest
	if err := s.getDoc(ctx, collBuddyRequests, id, &r); err != nil {
		return nil, s.fail("get buddy request", err, "buddy_request_id", id)
	}
	return &r, nil
}

func (s *Store) GetBuddyRequests(ctx context.Context, userID int64) ([]models.BuddyRequest, error) {
	ids, err := s.rangeIDs(ctx, s.receivedKey(userID))
	if err != nil {
		return nil, s.fail("get buddy requests", err, "user_id", userID)
	}
	out, err := loadDocs[models.BuddyRequest](ctx, s, collBuddyRequests, ids)
	if err != nil {
		return nil, s.fail("get buddy requests", err, "user_id", userID)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateBuddyRequest(ctx context.Context, in models.InsertBuddyRequest) (*models.BuddyRequest, error) {
	id, err := s.nextID(ctx, collBuddyRequests)
	if err != nil {
		return nil, s.fail("create buddy request", err)
	}
	r := in.ToBuddyRequest(id, s.timestamp())
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, s.fail("create buddy request", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collBuddyRequests, id), doc, 0)
		pipe.ZAdd(ctx, s.receivedKey(r.ReceiverID), redis.Z{Score: score(r.CreatedAt), Member: id})
		return nil
	})
	if err != nil {
		return nil, s.fail("create buddy request", err, "buddy_request_id", id)
	}
	return &r, nil
}

// UpdateBuddyRequestStatus watches the document so a concurrent transition
// aborts this one with ErrInvalidTransition.
func (s *Store) UpdateBuddyRequestStatus(ctx context.Context, id int64, status models.BuddyRequestStatus) (*models.BuddyRequest, error) {
	key := s.docKey(collBuddyRequests, id)
	var r models.BuddyRequest
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		if !r.Status.CanTransition(status) {
			return storage.ErrInvalidTransition
		}
		if r.Status == status {
			return nil
		}
		r.Status = status
		doc, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = storage.ErrInvalidTransition
	}
	if err != nil {
		return nil, s.fail("update buddy request status", err, "buddy_request_id", id, "status", status)
	}
	return &r, nil
}

func (s *Store) conversationKey(from, to int64) string {
	return s.key(collMessages, "from", strconv.FormatInt(from, 10), "to", strconv.FormatInt(to, 10))
}

// GetMessages reads both directional indexes concurrently, then merges.
func (s *Store) GetMessages(ctx context.Context, a, b int64) ([]models.Message, error) {
	var ab, ba []int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ab, err = s.rangeIDs(gctx, s.conversationKey(a, b))
		return err
	})
	g.Go(func() error {
		var err error
		ba, err = s.rangeIDs(gctx, s.conversationKey(b, a))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("get messages", err, "user_a", a, "user_b", b)
	}

	ids := ab
	if a != b {
		ids = append(ids, ba...)
	}
	msgs, err := loadDocs[models.Message](ctx, s, collMessages, ids)
	if err != nil {
		return nil, s.fail("get messages", err, "user_a", a, "user_b", b)
	}
	models.SortMessages(msgs)
	return msgs, nil
}

func (s *Store) CreateMessage(ctx context.Context, in models.InsertMessage) (*models.Message, error) {
	id, err := s.nextID(ctx, collMessages)
	if err != nil {
		return nil, s.fail("create message", err)
	}
	m := in.ToMessage(id, s.timestamp())
	doc, err := json.Marshal(m)
	if err != nil {
		return nil, s.fail("create message", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collMessages, id), doc, 0)
		pipe.ZAdd(ctx, s.conversationKey(m.SenderID, m.ReceiverID), redis.Z{Score: score(m.CreatedAt), Member: id})
		return nil
	})
	if err != nil {
		return nil, s.fail("create message", err, "message_id", id)
	}
	return &m, nil
}

func (s *Store) MarkMessagesAsRead(ctx context.Context, ids []int64) error {
	msgs, err := loadDocs[models.Message](ctx, s, collMessages, ids)
	if err != nil {
		return s.fail("mark messages as read", err, "count", len(ids))
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range msgs {
			if m.Read {
				continue
			}
			m.Read = true
			doc, err := json.Marshal(m)
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.docKey(collMessages, m.ID), doc, 0)
		}
		return nil
	})
	if err != nil {
		return s.fail("mark messages as read", err, "count", len(ids))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
