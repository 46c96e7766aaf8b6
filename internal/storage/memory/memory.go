// Package memory is a map-backed Storage used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[int64]models.User
	events        map[int64]models.Event
	interests     map[int64]models.Interest
	userInterests map[int64]map[int64]struct{}
	buddyRequests map[int64]models.BuddyRequest
	messages      map[int64]models.Message

	nextUser, nextEvent, nextInterest, nextBuddyRequest, nextMessage int64
}

type Option func(*Store)

// WithClock overrides the timestamp source for createdAt fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:              time.Now,
		users:            make(map[int64]models.User),
		events:           make(map[int64]models.Event),
		interests:        make(map[int64]models.Interest),
		userInterests:    make(map[int64]map[int64]struct{}),
		buddyRequests:    make(map[int64]models.BuddyRequest),
		messages:         make(map[int64]models.Message),
		nextUser:         1,
		nextEvent:        1,
		nextInterest:     1,
		nextBuddyRequest: 1,
		nextMessage:      1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.Storage = (*Store)(nil)

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u = u.Clone()
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) GetUserByUID(_ context.Context, uid string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.UID == uid })
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedKeys(s.users) {
		if u := s.users[id]; match(u) {
			u = u.Clone()
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, in models.InsertUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userTaken(0, in.Username, in.Email) {
		return nil, storage.ErrDuplicate
	}
	u := in.ToUser(s.nextUser)
	s.nextUser++
	s.users[u.ID] = u
	out := u.Clone()
	return &out, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := stored.Clone()
	patch.Apply(&u)
	if s.userTaken(id, u.Username, u.Email) {
		return nil, storage.ErrDuplicate
	}
	s.users[id] = u
	out := u.Clone()
	return &out, nil
}

// userTaken reports whether a user other than self holds username or email.
func (s *Store) userTaken(self int64, username, email string) bool {
	for id, u := range s.users {
		if id != self && (u.Username == username || u.Email == email) {
			return true
		}
	}
	return false
}

func (s *Store) GetEvent(_ context.Context, id int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	e = e.Clone()
	return &e, nil
}

func (s *Store) GetEvents(_ context.Context, category string) ([]models.Event, error) {
	return s.filterEvents(func(e models.Event) bool { return category == "" || e.Category == category }), nil
}

func (s *Store) GetFeaturedEvents(_ context.Context) ([]models.Event, error) {
	return s.filterEvents(func(e models.Event) bool { return e.Featured }), nil
}

func (s *Store) filterEvents(match func(models.Event) bool) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, 0, len(s.events))
	for _, id := range sortedKeys(s.events) {
		if e := s.events[id]; match(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (s *Store) CreateEvent(_ context.Context, in models.InsertEvent) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := in.ToEvent(s.nextEvent)
	s.nextEvent++
	s.events[e.ID] = e
	out := e.Clone()
	return &out, nil
}

func (s *Store) GetInterests(_ context.Context) ([]models.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Interest, 0, len(s.interests))
	for _, id := range sortedKeys(s.interests) {
		out = append(out, s.interests[id])
	}
	return out, nil
}

func (s *Store) CreateInterest(_ context.Context, in models.InsertInterest) (*models.Interest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.interests {
		if existing.Name == in.Name {
			return nil, storage.ErrDuplicate
		}
	}
	i := models.Interest{ID: s.nextInterest, Name: in.Name}
	s.nextInterest++
	s.interests[i.ID] = i
	return &i, nil
}

func (s *Store) GetUserInterests(_ context.Context, userID int64) ([]models.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.userInterests[userID]
	out := make([]models.Interest, 0, len(set))
	for _, id := range sortedKeys(set) {
		if i, ok := s.interests[id]; ok {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *Store) AddUserInterest(_ context.Context, userID, interestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.userInterests[userID]
	if !ok {
		set = make(map[int64]struct{})
		s.userInterests[userID] = set
	}
	set[interestID] = struct{}{}
	return nil
}

func (s *Store) RemoveUserInterest(_ context.Context, userID, interestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userInterests[userID], interestID)
	return nil
}

func (s *Store) GetBuddyRequest(_ context.Context, id int64) (*models.BuddyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.buddyRequests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	r = r.Clone()
	return &r, nil
}

func (s *Store) GetBuddyRequests(_ context.Context, userID int64) ([]models.BuddyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BuddyRequest, 0)
	for _, id := range sortedKeys(s.buddyRequests) {
		if r := s.buddyRequests[id]; r.ReceiverID == userID {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateBuddyRequest(_ context.Context, in models.InsertBuddyRequest) (*models.BuddyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := in.ToBuddyRequest(s.nextBuddyRequest, s.now())
	s.nextBuddyRequest++
	s.buddyRequests[r.ID] = r
	out := r.Clone()
	return &out, nil
}

func (s *Store) UpdateBuddyRequestStatus(_ context.Context, id int64, status models.BuddyRequestStatus) (*models.BuddyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.buddyRequests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !r.Status.CanTransition(status) {
		return nil, storage.ErrInvalidTransition
	}
	r.Status = status
	s.buddyRequests[id] = r
	out := r.Clone()
	return &out, nil
}

func (s *Store) GetMessages(_ context.Context, a, b int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	models.SortMessages(out)
	return out, nil
}

func (s *Store) CreateMessage(_ context.Context, in models.InsertMessage) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := in.ToMessage(s.nextMessage, s.now())
	s.nextMessage++
	s.messages[m.ID] = m
	return &m, nil
}

func (s *Store) MarkMessagesAsRead(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.messages[id]; ok && !m.Read {
			m.Read = true
			s.messages[id] = m
		}
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
