package redisstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/storagetest"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(rdb, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, _ := newTestStore(t)
		return s
	})
}

func TestDocumentLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, WithPrefix("test"))

	u, err := s.CreateUser(ctx, models.InsertUser{UID: "user1", Username: "alexmorgan", Email: "alex@example.com"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:users:1"))
	got, err := mr.Get("test:users:username:alexmorgan")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	seq, err := mr.Get("test:seq:users")
	require.NoError(t, err)
	assert.Equal(t, "1", seq)
	assert.Equal(t, int64(1), u.ID)
}

func TestMessagesIndexedPerDirection(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s, mr := newTestStore(t, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	for _, in := range []models.InsertMessage{
		{SenderID: 2, ReceiverID: 1, Content: "first"},
		{SenderID: 1, ReceiverID: 2, Content: "second"},
		{SenderID: 2, ReceiverID: 1, Content: "third"},
	} {
		_, err := s.CreateMessage(ctx, in)
		require.NoError(t, err)
	}

	fromTwo, err := mr.ZMembers("eventbuddy:messages:from:2:to:1")
	require.NoError(t, err)
	assert.Len(t, fromTwo, 2)

	msgs, err := s.GetMessages(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestTransportErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.GetEvents(ctx, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetUser(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)

	assert.Error(t, s.Ping(ctx))
}

func TestDialPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Dial(context.Background(), Connection{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())

	byURL, err := Dial(context.Background(), Connection{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	assert.NoError(t, byURL.Close())

	_, err = Dial(context.Background(), Connection{URL: "::not a url"})
	assert.Error(t, err)
}

var errPipelineDown = errors.New("pipeline unavailable")

// failingPipelines fails every pipeline while on is set; single commands pass.
type failingPipelines struct{ on atomic.Bool }

func (f *failingPipelines) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *failingPipelines) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (f *failingPipelines) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if f.on.Load() {
			return errPipelineDown
		}
		return next(ctx, cmds)
	}
}

func TestFailedWriteReleasesUserClaims(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hook := &failingPipelines{}
	rdb.AddHook(hook)
	s := New(rdb)
	t.Cleanup(func() { _ = s.Close() })

	alex := models.InsertUser{UID: "user1", Username: "alexmorgan", Email: "alex@example.com"}

	hook.on.Store(true)
	_, err := s.CreateUser(ctx, alex)
	require.ErrorIs(t, err, errPipelineDown)
	assert.False(t, mr.Exists("eventbuddy:users:username:alexmorgan"))
	assert.False(t, mr.Exists("eventbuddy:users:email:alex@example.com"))

	hook.on.Store(false)
	created, err := s.CreateUser(ctx, alex)
	require.NoError(t, err)

	renamed := "alexm"
	hook.on.Store(true)
	_, err = s.UpdateUser(ctx, created.ID, models.UserPatch{Username: &renamed})
	require.ErrorIs(t, err, errPipelineDown)
	assert.False(t, mr.Exists("eventbuddy:users:username:alexm"))

	hook.on.Store(false)
	other, err := s.CreateUser(ctx, models.InsertUser{UID: "user2", Username: "alexm", Email: "other@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
}
