package models

// Event date and time are opaque display strings.
type Event struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	Category    string  `json:"category"`
	Venue       string  `json:"venue"`
	Location    string  `json:"location"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	PriceRange  *string `json:"priceRange"`
	Featured    bool    `json:"featured"`
}

type InsertEvent struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	Category    string  `json:"category"`
	Venue       string  `json:"venue"`
	Location    string  `json:"location"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	PriceRange  *string `json:"priceRange"`
	Featured    bool    `json:"featured"`
}

func (in InsertEvent) ToEvent(id int64) Event {
	return Event{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		Venue:       in.Venue,
		Location:    in.Location,
		Date:        in.Date,
		Time:        in.Time,
		PriceRange:  cloneString(in.PriceRange),
		Featured:    in.Featured,
	}
}

func (e Event) Clone() Event {
	e.PriceRange = cloneString(e.PriceRange)
	return e
}
