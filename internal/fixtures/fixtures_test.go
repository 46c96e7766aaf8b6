package fixtures

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/memory"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/redisstore"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, Load(ctx, s))

	alex, err := s.GetUserByUsername(ctx, "alexmorgan")
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", alex.Email)

	featured, err := s.GetFeaturedEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, 3)

	concerts, err := s.GetEvents(ctx, "Concerts")
	require.NoError(t, err)
	assert.Len(t, concerts, 2)

	interests, err := s.GetInterests(ctx)
	require.NoError(t, err)
	assert.Len(t, interests, len(Interests))

	mine, err := s.GetUserInterests(ctx, alex.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(mine))
	for _, i := range mine {
		names = append(names, i.Name)
	}
	assert.ElementsMatch(t, []string{"Rock", "Jazz", "Indie", "Art", "Museums"}, names)

	requests, err := s.GetBuddyRequests(ctx, alex.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.BuddyRequestPending, requests[0].Status)

	michael, err := s.GetUserByUsername(ctx, "michaelr")
	require.NoError(t, err)
	assert.Equal(t, michael.ID, requests[0].RequesterID)

	msgs, err := s.GetMessages(ctx, alex.ID, michael.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, michael.ID, msgs[0].SenderID)
	for _, m := range msgs {
		assert.True(t, m.Read)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, Load(ctx, s))
	require.NoError(t, Load(ctx, s))

	events, err := s.GetEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, len(Events))

	interests, err := s.GetInterests(ctx)
	require.NoError(t, err)
	assert.Len(t, interests, len(Interests))
}

func TestLoadAcrossRestartsOfPersistentStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	boot := func() storage.Storage {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := redisstore.New(rdb)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	first := boot()
	seeded, err := Seeded(ctx, first)
	require.NoError(t, err)
	assert.False(t, seeded)
	require.NoError(t, Load(ctx, first))

	second := boot()
	require.NoError(t, Load(ctx, second))

	seeded, err = Seeded(ctx, second)
	require.NoError(t, err)
	assert.True(t, seeded)

	requests, err := second.GetBuddyRequests(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}
