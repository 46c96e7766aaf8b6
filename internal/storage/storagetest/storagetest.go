// Package storagetest holds the behavioural suite every Storage backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) storage.Storage

func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore(t)) })
	t.Run("Uniqueness", func(t *testing.T) { testUniqueness(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("EmptyLists", func(t *testing.T) { testEmptyLists(t, newStore(t)) })
	t.Run("Interests", func(t *testing.T) { testInterests(t, newStore(t)) })
	t.Run("BuddyRequests", func(t *testing.T) { testBuddyRequests(t, newStore(t)) })
	t.Run("BuddyRequestTransitions", func(t *testing.T) { testBuddyRequestTransitions(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("MarkMessagesAsRead", func(t *testing.T) { testMarkMessagesAsRead(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func strPtr(s string) *string { return &s }

func alex() models.InsertUser {
	return models.InsertUser{
		UID:         "user1",
		Username:    "alexmorgan",
		DisplayName: "Alex Morgan",
		Email:       "alex@example.com",
		Bio:         strPtr("Always looking for event buddies!"),
		Location:    strPtr("San Francisco, CA"),
	}
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	created, err := s.CreateUser(ctx, alex())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, alex().ToUser(created.ID), *created)

	got, err := s.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	byName, err := s.GetUserByUsername(ctx, "alexmorgan")
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", byName.Email)

	byUID, err := s.GetUserByUID(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUID.ID)

	other, err := s.CreateUser(ctx, models.InsertUser{UID: "user2", Username: "michaelr", DisplayName: "Michael R.", Email: "michael@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
	assert.Nil(t, other.Bio)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUserByUID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateUser(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	created, err := s.CreateUser(ctx, alex())
	require.NoError(t, err)

	updated, err := s.UpdateUser(ctx, created.ID, models.UserPatch{
		DisplayName: strPtr("Alex M."),
		Location:    strPtr("Chicago, IL"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alex M.", updated.DisplayName)
	assert.Equal(t, "Chicago, IL", *updated.Location)
	assert.Equal(t, "alexmorgan", updated.Username)
	assert.Equal(t, created.ID, updated.ID)

	got, err := s.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = s.UpdateUser(ctx, 9999, models.UserPatch{Bio: strPtr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUniqueness(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	first, err := s.CreateUser(ctx, alex())
	require.NoError(t, err)

	sameName := alex()
	sameName.Email = "other@example.com"
	_, err = s.CreateUser(ctx, sameName)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	sameEmail := alex()
	sameEmail.Username = "alex2"
	_, err = s.CreateUser(ctx, sameEmail)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	second, err := s.CreateUser(ctx, models.InsertUser{UID: "user3", Username: "sophiat", DisplayName: "Sophia T.", Email: "sophia@example.com"})
	require.NoError(t, err)

	_, err = s.UpdateUser(ctx, second.ID, models.UserPatch{Username: strPtr("alexmorgan")})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetUser(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "sophiat", got.Username)

	// Rewriting one's own username is not a conflict.
	_, err = s.UpdateUser(ctx, first.ID, models.UserPatch{Username: strPtr("alexmorgan")})
	assert.NoError(t, err)

	renamed, err := s.UpdateUser(ctx, second.ID, models.UserPatch{Username: strPtr("sophia")})
	require.NoError(t, err)
	assert.Equal(t, "sophia", renamed.Username)
	_, err = s.GetUserByUsername(ctx, "sophiat")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	byNew, err := s.GetUserByUsername(ctx, "sophia")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byNew.ID)

	_, err = s.CreateInterest(ctx, models.InsertInterest{Name: "Rock"})
	require.NoError(t, err)
	_, err = s.CreateInterest(ctx, models.InsertInterest{Name: "Rock"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func testEvents(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	inputs := []models.InsertEvent{
		{Title: "Giants vs Dodgers", Category: "Sports", Venue: "Oracle Park", Location: "San Francisco, CA", Date: "Sun, Jul 23", Time: "1:05 PM", PriceRange: strPtr("$45 - $150"), Featured: true},
		{Title: "Pickup soccer", Category: "sports", Venue: "Dolores Park", Location: "San Francisco, CA", Date: "Sat, Jul 22", Time: "9:00 AM"},
		{Title: "Trail run", Category: "Sports & Outdoors", Venue: "Presidio", Location: "San Francisco, CA", Date: "Sat, Jul 22", Time: "7:00 AM"},
		{Title: "Indie Night", Category: "Concerts", Venue: "The Chapel", Location: "San Francisco, CA", Date: "Fri, Jul 28", Time: "8:00 PM"},
	}
	ids := make(map[int64]bool)
	var first *models.Event
	for _, in := range inputs {
		e, err := s.CreateEvent(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ToEvent(e.ID), *e)
		assert.False(t, ids[e.ID], "duplicate id %d", e.ID)
		ids[e.ID] = true
		if first == nil {
			first = e
		}
	}

	got, err := s.GetEvent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	sports, err := s.GetEvents(ctx, "Sports")
	require.NoError(t, err)
	require.Len(t, sports, 1)
	assert.Equal(t, "Giants vs Dodgers", sports[0].Title)

	all, err := s.GetEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, len(inputs))

	none, err := s.GetEvents(ctx, "Opera")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	featured, err := s.GetFeaturedEvents(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.True(t, featured[0].Featured)

	_, err = s.GetEvent(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testEmptyLists(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	events, err := s.GetEvents(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, events)

	featured, err := s.GetFeaturedEvents(ctx)
	require.NoError(t, err)
	assert.NotNil(t, featured)

	interests, err := s.GetInterests(ctx)
	require.NoError(t, err)
	assert.NotNil(t, interests)

	mine, err := s.GetUserInterests(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, mine)

	requests, err := s.GetBuddyRequests(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, requests)

	msgs, err := s.GetMessages(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
}

func testInterests(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	rock, err := s.CreateInterest(ctx, models.InsertInterest{Name: "Rock"})
	require.NoError(t, err)
	jazz, err := s.CreateInterest(ctx, models.InsertInterest{Name: "Jazz"})
	require.NoError(t, err)
	assert.NotEqual(t, rock.ID, jazz.ID)
	assert.Equal(t, "Rock", rock.Name)

	all, err := s.GetInterests(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Interest{*rock, *jazz}, all)

	require.NoError(t, s.AddUserInterest(ctx, 1, rock.ID))
	require.NoError(t, s.AddUserInterest(ctx, 1, rock.ID))
	require.NoError(t, s.AddUserInterest(ctx, 1, jazz.ID))

	mine, err := s.GetUserInterests(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Interest{*rock, *jazz}, mine)

	require.NoError(t, s.RemoveUserInterest(ctx, 1, rock.ID))
	require.NoError(t, s.RemoveUserInterest(ctx, 1, rock.ID))
	require.NoError(t, s.RemoveUserInterest(ctx, 2, jazz.ID))

	mine, err = s.GetUserInterests(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Interest{*jazz}, mine)

	theirs, err := s.GetUserInterests(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func testBuddyRequests(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	in := models.InsertBuddyRequest{RequesterID: 2, ReceiverID: 1, EventID: 1, Message: strPtr("Want to go together?")}
	created, err := s.CreateBuddyRequest(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.BuddyRequestPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, int64(2), created.RequesterID)
	assert.Equal(t, int64(1), created.ReceiverID)
	assert.Equal(t, "Want to go together?", *created.Message)

	got, err := s.GetBuddyRequest(ctx, created.ID)
	require.NoError(t, err)
	assertSameBuddyRequest(t, *created, *got)

	second, err := s.CreateBuddyRequest(ctx, models.InsertBuddyRequest{RequesterID: 3, ReceiverID: 1, EventID: 2})
	require.NoError(t, err)
	assert.Nil(t, second.Message)
	_, err = s.CreateBuddyRequest(ctx, models.InsertBuddyRequest{RequesterID: 1, ReceiverID: 3, EventID: 2})
	require.NoError(t, err)

	received, err := s.GetBuddyRequests(ctx, 1)
	require.NoError(t, err)
	require.Len(t, received, 2)
	for _, r := range received {
		assert.Equal(t, int64(1), r.ReceiverID)
	}
	assert.False(t, received[0].CreatedAt.Before(received[1].CreatedAt))

	_, err = s.GetBuddyRequest(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testBuddyRequestTransitions(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	created, err := s.CreateBuddyRequest(ctx, models.InsertBuddyRequest{RequesterID: 2, ReceiverID: 1, EventID: 1})
	require.NoError(t, err)

	same, err := s.UpdateBuddyRequestStatus(ctx, created.ID, models.BuddyRequestPending)
	require.NoError(t, err)
	assert.Equal(t, models.BuddyRequestPending, same.Status)

	accepted, err := s.UpdateBuddyRequestStatus(ctx, created.ID, models.BuddyRequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.BuddyRequestAccepted, accepted.Status)
	assert.Equal(t, created.ID, accepted.ID)
	assert.True(t, created.CreatedAt.Equal(accepted.CreatedAt))

	_, err = s.UpdateBuddyRequestStatus(ctx, created.ID, models.BuddyRequestRejected)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	_, err = s.UpdateBuddyRequestStatus(ctx, created.ID, models.BuddyRequestPending)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	got, err := s.GetBuddyRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BuddyRequestAccepted, got.Status)

	again, err := s.UpdateBuddyRequestStatus(ctx, created.ID, models.BuddyRequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.BuddyRequestAccepted, again.Status)

	other, err := s.CreateBuddyRequest(ctx, models.InsertBuddyRequest{RequesterID: 3, ReceiverID: 1, EventID: 1})
	require.NoError(t, err)
	rejected, err := s.UpdateBuddyRequestStatus(ctx, other.ID, models.BuddyRequestRejected)
	require.NoError(t, err)
	assert.Equal(t, models.BuddyRequestRejected, rejected.Status)

	_, err = s.UpdateBuddyRequestStatus(ctx, 9999, models.BuddyRequestAccepted)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testMessages(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	conversation := []models.InsertMessage{
		{SenderID: 2, ReceiverID: 1, Content: "Hey there!"},
		{SenderID: 1, ReceiverID: 2, Content: "Hi! Going to the show?"},
		{SenderID: 2, ReceiverID: 1, Content: "Yes, see you there."},
	}
	for _, in := range conversation {
		m, err := s.CreateMessage(ctx, in)
		require.NoError(t, err)
		assert.NotZero(t, m.ID)
		assert.False(t, m.Read)
		assert.False(t, m.CreatedAt.IsZero())
		assert.Equal(t, in.Content, m.Content)
	}
	_, err := s.CreateMessage(ctx, models.InsertMessage{SenderID: 3, ReceiverID: 1, Content: "Unrelated"})
	require.NoError(t, err)

	ab, err := s.GetMessages(ctx, 1, 2)
	require.NoError(t, err)
	ba, err := s.GetMessages(ctx, 2, 1)
	require.NoError(t, err)

	require.Len(t, ab, len(conversation))
	assert.Equal(t, messageIDs(ab), messageIDs(ba))
	for i := 1; i < len(ab); i++ {
		assert.False(t, ab[i].CreatedAt.Before(ab[i-1].CreatedAt), "messages out of order at %d", i)
	}
	for _, m := range ab {
		assert.NotEqual(t, "Unrelated", m.Content)
	}
}

func testMarkMessagesAsRead(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	m1, err := s.CreateMessage(ctx, models.InsertMessage{SenderID: 1, ReceiverID: 2, Content: "one"})
	require.NoError(t, err)
	m2, err := s.CreateMessage(ctx, models.InsertMessage{SenderID: 2, ReceiverID: 1, Content: "two"})
	require.NoError(t, err)

	require.NoError(t, s.MarkMessagesAsRead(ctx, []int64{m1.ID, 9999}))
	once, err := s.GetMessages(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, s.MarkMessagesAsRead(ctx, []int64{m1.ID, 9999}))
	twice, err := s.GetMessages(ctx, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, readFlags(once), readFlags(twice))
	assert.Equal(t, map[int64]bool{m1.ID: true, m2.ID: false}, readFlags(twice))

	require.NoError(t, s.MarkMessagesAsRead(ctx, nil))
}

func testConcurrentCreate(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			in, err := s.CreateInterest(ctx, models.InsertInterest{Name: name})
			if err != nil {
				errs <- err
				return
			}
			ids <- in.ID
		}(fmt.Sprintf("tag-%d", i))
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func assertSameBuddyRequest(t *testing.T, want, got models.BuddyRequest) {
	t.Helper()
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", want.CreatedAt, got.CreatedAt)
	want.CreatedAt, got.CreatedAt = want.CreatedAt.UTC(), want.CreatedAt.UTC()
	assert.Equal(t, want, got)
}

func messageIDs(msgs []models.Message) []int64 {
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func readFlags(msgs []models.Message) map[int64]bool {
	flags := make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		flags[m.ID] = m.Read
	}
	return flags
}
