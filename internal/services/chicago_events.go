package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
)

var ErrChicagoEventNotFound = errors.New("no chicago event matches that title")

const (
	DefaultChicagoLimit  = 50
	DefaultFeaturedLimit = 5

	featuredBatch   = 20
	titleSearchSize = 100
	featuredCount   = 5
)

// Row positions in the permit feed. The feed carries no column names.
const (
	colPermitHolder = 8
	colVenue        = 11
	colStart        = 12
	colPermitType   = 14
	colTitle        = 15
	colStatus       = 16
)

// permitCategories is matched in order; the first substring hit wins.
var permitCategories = []struct {
	permitType string
	category   string
}{
	{"Administrative Reservation", "Administrative"},
	{"Permit - Event", "Event"},
	{"Permit - Picnic", "Picnic"},
	{"Permit - Festival", "Festival"},
	{"Permit - Athletic", "Sports"},
	{"Permit - Corporate", "Corporate"},
	{"Permit - Promotional", "Promotional"},
	{"Permit - Wedding", "Wedding"},
	{"Permit - Film", "Film"},
	{"Permit - Special Event", "Special Event"},
}

var categoryImages = map[string]string{
	"Administrative": "https://images.unsplash.com/photo-1491897554428-130a60dd4757?q=80&w=1000",
	"Event":          "https://images.unsplash.com/photo-1475721027785-f74eccf877e2?q=80&w=1000",
	"Picnic":         "https://images.unsplash.com/photo-1529080589245-1f92f0a5c90c?q=80&w=1000",
	"Festival":       "https://images.unsplash.com/photo-1514525253161-7a46d19cd819?q=80&w=1000",
	"Sports":         "https://images.unsplash.com/photo-1461896836934-ffe607ba8211?q=80&w=1000",
	"Corporate":      "https://images.unsplash.com/photo-1551818255-e6e10975bc17?q=80&w=1000",
	"Promotional":    "https://images.unsplash.com/photo-1563986768711-b3bde3dc821e?q=80&w=1000",
	"Wedding":        "https://images.unsplash.com/photo-1465495976277-4387d4b0b4c6?q=80&w=1000",
	"Film":           "https://images.unsplash.com/photo-1485846234645-a62644f84728?q=80&w=1000",
	"Special Event":  "https://images.unsplash.com/photo-1492684223066-81342ee5ff30?q=80&w=1000",
}

const defaultCategoryImage = "https://images.unsplash.com/photo-1496337589254-7e19d01cec44?q=80&w=1000"

// startLayouts are tried in order; the feed normally uses the first.
var startLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006 03:04:05 PM",
	"2006-01-02",
}

// DetermineCategory maps a permit type onto a display category.
func DetermineCategory(permitType string) string {
	for _, pc := range permitCategories {
		if strings.Contains(permitType, pc.permitType) {
			return pc.category
		}
	}
	return "Other"
}

func CategoryImage(category string) string {
	if url, ok := categoryImages[category]; ok {
		return url
	}
	return defaultCategoryImage
}

// FetchRecorder observes feed fetches. *metrics.Metrics implements it.
type FetchRecorder interface {
	RecordFeedFetch(outcome string, elapsed time.Duration)
}

type ChicagoEventsService struct {
	feedURL    string
	httpClient *http.Client
	recorder   FetchRecorder
	now        func() time.Time
}

type ChicagoOption func(*ChicagoEventsService)

func WithFetchRecorder(r FetchRecorder) ChicagoOption {
	return func(s *ChicagoEventsService) { s.recorder = r }
}

func WithChicagoClock(now func() time.Time) ChicagoOption {
	return func(s *ChicagoEventsService) { s.now = now }
}

func NewChicagoEventsService(feedURL string, timeout time.Duration, opts ...ChicagoOption) *ChicagoEventsService {
	s := &ChicagoEventsService{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type feedRow []interface{}

func (r feedRow) cell(i int) string {
	if i >= len(r) || r[i] == nil {
		return ""
	}
	switch v := r[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r feedRow) start() (time.Time, bool) {
	raw := r.cell(colStart)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *ChicagoEventsService) fetchRows(ctx context.Context, limit int) ([]feedRow, error) {
	sep := "&"
	if !strings.Contains(s.feedURL, "?") {
		sep = "?"
	}
	url := s.feedURL + sep + "$limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var body struct {
		Data *[]feedRow `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	if body.Data == nil {
		return nil, errors.New("feed response has no data array")
	}
	return *body.Data, nil
}

// FetchEvents returns up to limit approved or tentative permits, newest
// first, optionally restricted to one derived category. Any fetch or decode
// failure yields an empty list.
func (s *ChicagoEventsService) FetchEvents(ctx context.Context, category string, limit int) []models.InsertEvent {
	if limit <= 0 {
		limit = DefaultChicagoLimit
	}

	start := time.Now()
	rows, err := s.fetchRows(ctx, limit)
	if s.recorder != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.recorder.RecordFeedFetch(outcome, time.Since(start))
	}
	if err != nil {
		slog.Error("chicago events fetch failed", "error", err, "limit", limit)
		return []models.InsertEvent{}
	}

	type dated struct {
		row   feedRow
		start time.Time
		ok    bool
	}
	valid := make([]dated, 0, len(rows))
	for _, row := range rows {
		switch row.cell(colStatus) {
		case "Approved", "Tentative":
			t, ok := row.start()
			valid = append(valid, dated{row: row, start: t, ok: ok})
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].start.After(valid[j].start) })

	out := make([]models.InsertEvent, 0, min(limit, len(valid)))
	for _, d := range valid {
		if len(out) == limit {
			break
		}
		e := s.toEvent(d.row, d.start, d.ok)
		if category != "" && e.Category != category {
			continue
		}
		e.Featured = len(out) < featuredCount
		out = append(out, e)
	}
	return out
}

// FetchFeaturedEvents marks the first limit events of a small batch featured.
func (s *ChicagoEventsService) FetchFeaturedEvents(ctx context.Context, limit int) []models.InsertEvent {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	events := s.FetchEvents(ctx, "", featuredBatch)
	if len(events) > limit {
		events = events[:limit]
	}
	for i := range events {
		events[i].Featured = true
	}
	return events
}

// FindEventByTitle returns the first event whose title contains title,
// ignoring case.
func (s *ChicagoEventsService) FindEventByTitle(ctx context.Context, title string) (*models.InsertEvent, error) {
	needle := strings.ToLower(title)
	for _, e := range s.FetchEvents(ctx, "", titleSearchSize) {
		if strings.Contains(strings.ToLower(e.Title), needle) {
			match := e
			return &match, nil
		}
	}
	return nil, ErrChicagoEventNotFound
}

func (s *ChicagoEventsService) toEvent(row feedRow, start time.Time, hasStart bool) models.InsertEvent {
	title := orDefault(row.cell(colTitle), "Chicago Park Event")
	permitType := orDefault(row.cell(colPermitType), "Event")
	venue := orDefault(row.cell(colVenue), "Chicago Park")
	holder := orDefault(row.cell(colPermitHolder), "Chicago Park District")
	status := orDefault(row.cell(colStatus), "Scheduled")

	date := s.now().Format("2006-01-02")
	clock := "12:00 PM"
	if hasStart {
		date = start.Format("2006-01-02")
		clock = start.Format("03:04 PM")
	}

	description := permitType + " at " + venue + "."
	if holder != "--" {
		description += " Hosted by " + holder + "."
	}
	description += " Event status: " + status + "."

	category := DetermineCategory(permitType)
	price := "Free"
	return models.InsertEvent{
		Title:       title,
		Description: description,
		ImageURL:    CategoryImage(category),
		Category:    category,
		Venue:       venue,
		Location:    "Chicago, IL",
		Date:        date,
		Time:        clock,
		PriceRange:  &price,
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
