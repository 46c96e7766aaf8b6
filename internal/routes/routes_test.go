package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/fixtures"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage/memory"
)

type fakeFeed struct {
	events     []models.InsertEvent
	lastLimit  int
	lastFilter string
}

func (f *fakeFeed) FetchEvents(_ context.Context, category string, limit int) []models.InsertEvent {
	f.lastLimit, f.lastFilter = limit, category
	out := []models.InsertEvent{}
	for _, e := range f.events {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeFeed) FetchFeaturedEvents(_ context.Context, limit int) []models.InsertEvent {
	f.lastLimit = limit
	out := []models.InsertEvent{}
	for _, e := range f.events {
		if e.Featured {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeFeed) FindEventByTitle(_ context.Context, title string) (*models.InsertEvent, error) {
	for _, e := range f.events {
		if strings.Contains(strings.ToLower(e.Title), strings.ToLower(title)) {
			e := e
			return &e, nil
		}
	}
	return nil, services.ErrChicagoEventNotFound
}

// failingStore makes every list read fail.
type failingStore struct {
	storage.Storage
}

func (failingStore) GetEvents(context.Context, string) ([]models.Event, error) {
	return nil, io.ErrUnexpectedEOF
}

func (failingStore) Ping(context.Context) error { return io.ErrUnexpectedEOF }

type testServer struct {
	app   *fiber.App
	store storage.Storage
	feed  *fakeFeed
}

func newServer(t *testing.T, cfg *config.Config, store storage.Storage) *testServer {
	t.Helper()
	feed := &fakeFeed{events: []models.InsertEvent{
		{Title: "Lakefront Run", Category: "Sports", Featured: true},
		{Title: "Block Party", Category: "Community"},
	}}
	m := metrics.New()
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(m.Middleware())
	Setup(app, cfg, Handlers{
		Health:        handlers.NewHealthHandler(store, config.BackendMemory),
		Auth:          handlers.NewAuthHandler(services.NewProfileService(store)),
		Events:        handlers.NewEventHandler(store, feed),
		Users:         handlers.NewUserHandler(store),
		Interests:     handlers.NewInterestHandler(store),
		BuddyRequests: handlers.NewBuddyRequestHandler(store),
		Messages:      handlers.NewMessageHandler(store),
	}, m)
	return &testServer{app: app, store: store, feed: feed}
}

func newSeededServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	require.NoError(t, fixtures.Load(context.Background(), store))
	return newServer(t, &config.Config{}, store)
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealth(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	status, body = s.do(t, "GET", "/api/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	ready := decode[dto.ReadinessResponse](t, body)
	assert.Equal(t, "ok", ready.Storage)
	assert.Equal(t, config.BackendMemory, ready.Backend)
}

func TestReadyReportsStorageFailure(t *testing.T) {
	s := newServer(t, &config.Config{}, failingStore{Storage: memory.New()})

	status, body := s.do(t, "GET", "/api/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "unreachable", decode[dto.ReadinessResponse](t, body).Storage)
}

func TestEvents(t *testing.T) {
	s := newSeededServer(t)

	t.Run("all", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events", "")
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, decode[[]models.Event](t, body), len(fixtures.Events))
	})

	t.Run("all events label means no filter", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events?category=All%20Events", "")
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, decode[[]models.Event](t, body), len(fixtures.Events))
	})

	t.Run("category", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events?category=Concerts", "")
		require.Equal(t, fiber.StatusOK, status)
		events := decode[[]models.Event](t, body)
		require.Len(t, events, 2)
		for _, e := range events {
			assert.Equal(t, "Concerts", e.Category)
		}
	})

	t.Run("featured before id", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events/featured", "")
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, decode[[]models.Event](t, body), 3)
	})

	t.Run("by id", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events/1", "")
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, fixtures.Events[0].Title, decode[models.Event](t, body).Title)
	})

	t.Run("missing", func(t *testing.T) {
		status, body := s.do(t, "GET", "/api/events/999", "")
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "Event not found", decode[dto.ErrorResponse](t, body).Message)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		status, _ := s.do(t, "GET", "/api/events/abc", "")
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("create", func(t *testing.T) {
		status, body := s.do(t, "POST", "/api/events", `{"title":"Pier Jam","category":"Concerts","featured":false}`)
		require.Equal(t, fiber.StatusCreated, status)
		created := decode[models.Event](t, body)
		assert.EqualValues(t, len(fixtures.Events)+1, created.ID)

		status, _ = s.do(t, "POST", "/api/events", `{"category":"Concerts"}`)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestEventsStorageFailure(t *testing.T) {
	s := newServer(t, &config.Config{}, failingStore{Storage: memory.New()})

	status, body := s.do(t, "GET", "/api/events", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	errResp := decode[dto.ErrorResponse](t, body)
	assert.True(t, errResp.Error)
	assert.Equal(t, "Failed to fetch events", errResp.Message)
}

func TestChicagoSource(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/events?source=chicago&category=Sports", "")
	require.Equal(t, fiber.StatusOK, status)
	events := decode[[]models.InsertEvent](t, body)
	require.Len(t, events, 1)
	assert.Equal(t, "Lakefront Run", events[0].Title)
	assert.Equal(t, services.DefaultChicagoLimit, s.feed.lastLimit)

	status, body = s.do(t, "GET", "/api/events/featured?source=chicago", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.InsertEvent](t, body), 1)
	assert.Equal(t, services.DefaultFeaturedLimit, s.feed.lastLimit)

	status, body = s.do(t, "GET", "/api/chicago-events?limit=10&category=All%20Events", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.InsertEvent](t, body), 2)
	assert.Equal(t, 10, s.feed.lastLimit)
	assert.Equal(t, "", s.feed.lastFilter)
}

func TestChicagoSearch(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/chicago-events/search?title=block", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Block Party", decode[models.InsertEvent](t, body).Title)

	status, _ = s.do(t, "GET", "/api/chicago-events/search?title=opera", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "GET", "/api/chicago-events/search", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUsers(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/users/1", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alexmorgan", decode[models.User](t, body).Username)

	status, body = s.do(t, "GET", "/api/users/by-username/sophiat", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 3, decode[models.User](t, body).ID)

	status, _ = s.do(t, "GET", "/api/users/42", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = s.do(t, "POST", "/api/users", `{"uid":"u9","username":"jordan","displayName":"Jordan","email":"jordan@example.com"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.EqualValues(t, 4, decode[models.User](t, body).ID)

	status, body = s.do(t, "POST", "/api/users", `{"uid":"u10","username":"jordan","displayName":"Other","email":"other@example.com"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Username or email already taken", decode[dto.ErrorResponse](t, body).Message)

	status, _ = s.do(t, "POST", "/api/users", `{"uid":"u11"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, "PATCH", "/api/users/4", `{"bio":"Runs on weekends"}`)
	require.Equal(t, fiber.StatusOK, status)
	updated := decode[models.User](t, body)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "Runs on weekends", *updated.Bio)
	assert.Equal(t, "jordan", updated.Username)

	status, _ = s.do(t, "PATCH", "/api/users/404", `{"bio":"x"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestInterests(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/interests", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.Interest](t, body), len(fixtures.Interests))

	status, body = s.do(t, "GET", "/api/user-interests/3", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.Interest](t, body), 3)

	status, body = s.do(t, "POST", "/api/user-interests", `{"userId":3,"interestId":1}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "User interest added successfully", decode[dto.MessageResponse](t, body).Message)

	status, body = s.do(t, "DELETE", "/api/user-interests/3/11", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User interest removed successfully", decode[dto.MessageResponse](t, body).Message)

	_, body = s.do(t, "GET", "/api/user-interests/3", "")
	names := []string{}
	for _, in := range decode[[]models.Interest](t, body) {
		names = append(names, in.Name)
	}
	assert.ElementsMatch(t, []string{"Rock", "Museums", "Theater"}, names)

	status, body = s.do(t, "POST", "/api/interests", `{"name":"Cycling"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Cycling", decode[models.Interest](t, body).Name)

	status, body = s.do(t, "POST", "/api/interests", `{"name":"Cycling"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Interest already exists", decode[dto.ErrorResponse](t, body).Message)
}

func TestBuddyRequests(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "GET", "/api/buddy-requests/1", "")
	require.Equal(t, fiber.StatusOK, status)
	received := decode[[]models.BuddyRequest](t, body)
	require.Len(t, received, 1)
	assert.Equal(t, models.BuddyRequestPending, received[0].Status)

	status, body = s.do(t, "POST", "/api/buddy-requests", `{"requesterId":3,"receiverId":1,"eventId":5}`)
	require.Equal(t, fiber.StatusCreated, status)
	created := decode[models.BuddyRequest](t, body)
	assert.EqualValues(t, 2, created.ID)
	assert.Equal(t, models.BuddyRequestPending, created.Status)

	status, _ = s.do(t, "POST", "/api/buddy-requests", `{"requesterId":3}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, "PATCH", "/api/buddy-requests/1", `{"status":"maybe"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid status value", decode[dto.ErrorResponse](t, body).Message)

	status, body = s.do(t, "PATCH", "/api/buddy-requests/1", `{"status":"accepted"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.BuddyRequestAccepted, decode[models.BuddyRequest](t, body).Status)

	status, _ = s.do(t, "PATCH", "/api/buddy-requests/1", `{"status":"rejected"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.do(t, "PATCH", "/api/buddy-requests/77", `{"status":"accepted"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestMessages(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "POST", "/api/messages", `{"senderId":1,"receiverId":2,"content":"See you at the gate"}`)
	require.Equal(t, fiber.StatusCreated, status)
	sent := decode[models.Message](t, body)
	assert.False(t, sent.Read)

	for _, path := range []string{"/api/messages/1/2", "/api/messages/2/1"} {
		status, body = s.do(t, "GET", path, "")
		require.Equal(t, fiber.StatusOK, status)
		convo := decode[[]models.Message](t, body)
		require.Len(t, convo, 3)
		assert.Equal(t, sent.ID, convo[2].ID)
	}

	status, body = s.do(t, "PATCH", "/api/messages/read", `{"messageIds":[`+jsonInt(sent.ID)+`]}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"message":"Messages marked as read"}`, string(body))

	_, body = s.do(t, "GET", "/api/messages/1/2", "")
	for _, m := range decode[[]models.Message](t, body) {
		assert.True(t, m.Read)
	}

	status, body = s.do(t, "PATCH", "/api/messages/read", `{"messageIds":"1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Message IDs must be an array", decode[dto.ErrorResponse](t, body).Message)

	status, _ = s.do(t, "PATCH", "/api/messages/read", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, "PATCH", "/api/messages/read", `{"messageIds":[]}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAuthSync(t *testing.T) {
	s := newSeededServer(t)

	status, body := s.do(t, "POST", "/api/auth/sync", `{"uid":"user2","email":"michael@example.com"}`)
	require.Equal(t, fiber.StatusOK, status)
	existing := decode[dto.SyncProfileResponse](t, body)
	assert.False(t, existing.Created)
	assert.Equal(t, "michaelr", existing.User.Username)

	status, body = s.do(t, "POST", "/api/auth/sync", `{"uid":"firebase-9","email":"dana.k+events@example.com","displayName":"Dana"}`)
	require.Equal(t, fiber.StatusCreated, status)
	created := decode[dto.SyncProfileResponse](t, body)
	assert.True(t, created.Created)
	assert.Equal(t, "dana.k", created.User.Username)

	status, _ = s.do(t, "POST", "/api/auth/sync", `{"email":"nobody@example.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	store := memory.New()
	require.NoError(t, fixtures.Load(context.Background(), store))
	secret := "route-secret"
	s := newServer(t, &config.Config{AuthJWTSecret: secret}, store)

	status, _ := s.do(t, "POST", "/api/messages", `{"senderId":1,"receiverId":2,"content":"hi"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// Reads stay public
	status, _ = s.do(t, "GET", "/api/events", "")
	assert.Equal(t, fiber.StatusOK, status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "firebase-42",
		"email":   "casey@example.com",
		"name":    "Casey",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	status, body := s.do(t, "POST", "/api/auth/sync", `{"uid":"spoofed"}`, "Authorization", "Bearer "+token)
	require.Equal(t, fiber.StatusCreated, status)
	synced := decode[dto.SyncProfileResponse](t, body)
	assert.Equal(t, "firebase-42", synced.User.UID)
	assert.Equal(t, "casey@example.com", synced.User.Email)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newSeededServer(t)
	s.do(t, "GET", "/api/events/1", "")

	status, body := s.do(t, "GET", "/metrics", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `eventbuddy_http_requests_total{method="GET",route="/api/events/:id",status="200"} 1`)
}
