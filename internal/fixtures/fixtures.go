// Package fixtures seeds a store with the development data set.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

const imageParams = "?ixlib=rb-4.0.3&auto=format&fit=crop&w=600&h=400"

func str(s string) *string { return &s }

var Users = []models.InsertUser{
	{
		UID:             "user1",
		Username:        "alexmorgan",
		DisplayName:     "Alex Morgan",
		Email:           "alex@example.com",
		Bio:             str("Passionate about music, concerts, and meeting new people. Always looking for event buddies!"),
		ProfileImageURL: str("https://images.unsplash.com/photo-1494790108377-be9c29b29330?ixlib=rb-4.0.3&auto=format&fit=crop&w=120&h=120"),
		Location:        str("San Francisco, CA"),
	},
	{
		UID:         "user2",
		Username:    "michaelr",
		DisplayName: "Michael R.",
		Email:       "michael@example.com",
		Bio:         str("Concert Enthusiast"),
		Location:    str("San Francisco, CA"),
	},
	{
		UID:         "user3",
		Username:    "sophiat",
		DisplayName: "Sophia T.",
		Email:       "sophia@example.com",
		Bio:         str("Arts & Culture Fan"),
		Location:    str("San Francisco, CA"),
	},
}

var Events = []models.InsertEvent{
	{
		Title:       "Taylor Swift - The Eras Tour",
		Description: "Experience Taylor Swift's record-breaking Eras Tour, featuring music from her entire catalog. This once-in-a-lifetime concert experience has been selling out stadiums nationwide with stunning visuals, costume changes, and a 3+ hour setlist spanning her incredible career.",
		Category:    "Concerts",
		Venue:       "Levi's Stadium",
		Location:    "Santa Clara, CA",
		Date:        "Sat, Aug 5",
		Time:        "7:00 PM",
		PriceRange:  str("$120 - $450"),
		ImageURL:    "https://images.unsplash.com/photo-1501281668745-f7f57925c3b4" + imageParams,
		Featured:    true,
	},
	{
		Title:       "SF Giants vs LA Dodgers",
		Description: "Don't miss this classic baseball rivalry as the San Francisco Giants take on the Los Angeles Dodgers at Oracle Park. Come enjoy America's favorite pastime with stunning views of the San Francisco Bay!",
		Category:    "Sports",
		Venue:       "Oracle Park",
		Location:    "San Francisco, CA",
		Date:        "Sun, Jul 23",
		Time:        "1:05 PM",
		PriceRange:  str("$45 - $150"),
		ImageURL:    "https://images.unsplash.com/photo-1540747913346-19e32dc3e97e" + imageParams,
		Featured:    true,
	},
	{
		Title:       "SF Food Festival",
		Description: "Sample the best food San Francisco has to offer at the annual SF Food Festival. With over 50 local vendors, live music, and cooking demonstrations, this is a food lover's paradise.",
		Category:    "Food & Drink",
		Venue:       "Marina Green",
		Location:    "San Francisco, CA",
		Date:        "Sat, Jul 29",
		Time:        "11:00 AM",
		PriceRange:  str("$25"),
		ImageURL:    "https://images.unsplash.com/photo-1555244162-803834f70033" + imageParams,
		Featured:    true,
	},
	{
		Title:       "Indie Night at The Chapel",
		Description: "Join us for a night of indie music featuring local bands and emerging artists. The Chapel provides an intimate setting for experiencing new music in San Francisco's vibrant Mission District.",
		Category:    "Concerts",
		Venue:       "The Chapel",
		Location:    "San Francisco, CA",
		Date:        "Fri, Jul 28",
		Time:        "8:00 PM",
		PriceRange:  str("$25 - $35"),
		ImageURL:    "https://images.unsplash.com/photo-1501386761578-eac5c94b800a" + imageParams,
	},
	{
		Title:       "Modern Art Exhibition",
		Description: "Explore the boundaries of contemporary art at this special exhibition featuring works from both established and emerging artists from around the world.",
		Category:    "Arts",
		Venue:       "SFMOMA",
		Location:    "San Francisco, CA",
		Date:        "Sat-Sun, Jul 22-30",
		Time:        "All Day",
		PriceRange:  str("$20"),
		ImageURL:    "https://images.unsplash.com/photo-1594571302762-8b11a9a6d886" + imageParams,
	},
	{
		Title:       "Saturday Night Club",
		Description: "Dance the night away with our resident DJs spinning the hottest tracks at San Francisco's premier nightclub. VIP tables and bottle service available.",
		Category:    "Nightlife",
		Venue:       "Temple Nightclub",
		Location:    "San Francisco, CA",
		Date:        "Sat, Jul 22",
		Time:        "10:00 PM",
		PriceRange:  str("$30"),
		ImageURL:    "https://images.unsplash.com/photo-1571185408429-749efca15e39" + imageParams,
	},
}

var Interests = []string{
	"Rock", "Jazz", "Indie", "Pop", "Classical",
	"Baseball", "Basketball", "Football", "Soccer", "Tennis",
	"Art", "Museums", "Theater", "Photography", "Literature",
	"Restaurants", "Craft Beer", "Wine Tasting", "Cooking", "Cafes",
	"Clubs", "Bars", "Dancing", "Live Music", "DJs",
}

// userInterests maps a fixture user index to 1-based positions in Interests.
var userInterests = map[int][]int{
	0: {1, 2, 3, 11, 12},
	1: {1, 2, 3},
	2: {11, 12, 13},
}

// Seeded reports whether the fixture set is already present, keyed on the
// first fixture user.
func Seeded(ctx context.Context, s storage.Storage) (bool, error) {
	_, err := s.GetUserByUsername(ctx, Users[0].Username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	}
	return false, fmt.Errorf("check fixtures: %w", err)
}

// Load inserts the fixture set through the storage contract. A store that
// already holds the fixtures is left untouched, so persistent backends can be
// seeded on every boot. Ids are whatever the backend assigns.
func Load(ctx context.Context, s storage.Storage) error {
	seeded, err := Seeded(ctx, s)
	if err != nil {
		return err
	}
	if seeded {
		slog.Info("fixtures already present, skipping seed")
		return nil
	}

	users := make([]*models.User, len(Users))
	for i, in := range Users {
		u, err := s.CreateUser(ctx, in)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", in.Username, err)
		}
		users[i] = u
	}

	events := make([]*models.Event, len(Events))
	for i, in := range Events {
		e, err := s.CreateEvent(ctx, in)
		if err != nil {
			return fmt.Errorf("seed event %q: %w", in.Title, err)
		}
		events[i] = e
	}

	interests := make([]*models.Interest, len(Interests))
	for i, name := range Interests {
		in, err := s.CreateInterest(ctx, models.InsertInterest{Name: name})
		if err != nil {
			return fmt.Errorf("seed interest %s: %w", name, err)
		}
		interests[i] = in
	}

	for userIdx, positions := range userInterests {
		for _, pos := range positions {
			if err := s.AddUserInterest(ctx, users[userIdx].ID, interests[pos-1].ID); err != nil {
				return fmt.Errorf("seed user interest: %w", err)
			}
		}
	}

	alex, michael := users[0], users[1]
	_, err = s.CreateBuddyRequest(ctx, models.InsertBuddyRequest{
		RequesterID: michael.ID,
		ReceiverID:  alex.ID,
		EventID:     events[0].ID,
		Message:     str("I'm a huge Taylor Swift fan, would love to go to the concert with you!"),
	})
	if err != nil {
		return fmt.Errorf("seed buddy request: %w", err)
	}

	var read []int64
	for _, in := range []models.InsertMessage{
		{SenderID: michael.ID, ReceiverID: alex.ID, Content: "Hey there! I saw you're interested in the Taylor Swift concert."},
		{SenderID: alex.ID, ReceiverID: michael.ID, Content: "Yes! I'm so excited about it. Are you planning to go?"},
	} {
		m, err := s.CreateMessage(ctx, in)
		if err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
		read = append(read, m.ID)
	}
	if err := s.MarkMessagesAsRead(ctx, read); err != nil {
		return fmt.Errorf("seed read receipts: %w", err)
	}
	return nil
}
