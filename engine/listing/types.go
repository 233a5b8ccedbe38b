// Package listing defines the core domain types for the Mezger listing
// engine: raw scraped observations, persisted listings, and the keyed
// collection they live in. It also owns identity resolution and record
// validation at the pipeline entry points.
package listing

import "time"

// Category classifies what kind of thing a listing is. A listing keeps its
// category for life; it is chosen at creation and never migrated.
type Category string

const (
	CategoryCar     Category = "car"
	CategoryPart    Category = "part"
	CategoryAuction Category = "auction"
)

// ValidCategories is the set of recognised categories.
var ValidCategories = map[Category]bool{
	CategoryCar: true, CategoryPart: true, CategoryAuction: true,
}

// Status is a listing's position in its category lifecycle.
type Status string

const (
	// Car lifecycle: active → sold (terminal).
	StatusActive Status = "active"
	StatusSold   Status = "sold"

	// Part lifecycle: freely re-enterable, driven by observed stock text.
	StatusInStock     Status = "in_stock"
	StatusBackOrdered Status = "back_ordered"
	StatusOutOfStock  Status = "out_of_stock"

	// Auction lifecycle: auction → expired (terminal, time-driven).
	StatusAuction Status = "auction"
	StatusExpired Status = "expired"
)

// RawRecord is one observation of a listing from a source in one run.
// It is transient: it exists only for the duration of a reconciliation
// pass and is never persisted. Zero values mean "not observed this run",
// never "clear the stored value".
type RawRecord struct {
	Source        string `json:"source"`
	SourceDisplay string `json:"source_display,omitempty"`

	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Price      float64   `json:"price,omitempty"`
	Year       int       `json:"year,omitempty"`
	Mileage    string    `json:"mileage,omitempty"`
	Location   string    `json:"location,omitempty"`
	PartNumber string    `json:"part_number,omitempty"`
	Desc       string    `json:"description,omitempty"`
	StockText  string    `json:"stock_text,omitempty"`
	Image      string    `json:"image,omitempty"`
	BidCount   int       `json:"bid_count,omitempty"`
	CurrentBid float64   `json:"current_bid,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`

	// Completed-sale fields, present only on records from a source's
	// completed-results page. They feed terminal fields exactly once.
	SoldPrice float64   `json:"sold_price,omitempty"`
	SoldDate  time.Time `json:"sold_date,omitempty"`
}

// Listing is the persisted entity tracked across runs, keyed by ID.
type Listing struct {
	ID            string   `json:"id"`
	Category      Category `json:"category"`
	Status        Status   `json:"status"`
	Source        string   `json:"source"`
	SourceDisplay string   `json:"source_display,omitempty"`

	Title      string  `json:"title"`
	Link       string  `json:"link"`
	Price      float64 `json:"price,omitempty"`
	Year       int     `json:"year,omitempty"`
	Mileage    string  `json:"mileage,omitempty"`
	Location   string  `json:"location,omitempty"`
	PartNumber string  `json:"part_number,omitempty"`
	Desc       string  `json:"description,omitempty"`
	StockText  string  `json:"stock_text,omitempty"`
	Image      string  `json:"image,omitempty"`
	BidCount   int     `json:"bid_count,omitempty"`
	CurrentBid float64 `json:"current_bid,omitempty"`

	// EndTime is fixed at creation for auctions and drives expiry.
	EndTime time.Time `json:"end_time,omitempty"`

	// Terminal sale fields: set at most once, immutable thereafter.
	SoldPrice float64   `json:"sold_price,omitempty"`
	SoldDate  time.Time `json:"sold_date,omitempty"`

	// FirstSeenAt never changes after creation; LastSeenAt is bumped on
	// every run that observes (or transitions) the listing.
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Terminal reports whether the listing has reached a terminal status.
func (l Listing) Terminal() bool {
	return l.Status == StatusSold || l.Status == StatusExpired
}
