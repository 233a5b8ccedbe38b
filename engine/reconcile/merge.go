package reconcile

import (
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// newListing builds a listing from its first observation. FirstSeenAt is
// fixed here and never rewritten afterwards.
func newListing(id string, cat listing.Category, rec listing.RawRecord, at time.Time) listing.Listing {
	l := listing.Listing{
		ID:            id,
		Category:      cat,
		Status:        initialStatus(cat, rec),
		Source:        rec.Source,
		SourceDisplay: rec.SourceDisplay,
		Title:         rec.Title,
		Link:          rec.Link,
		Price:         rec.Price,
		Year:          rec.Year,
		Mileage:       rec.Mileage,
		Location:      rec.Location,
		PartNumber:    rec.PartNumber,
		Desc:          rec.Desc,
		StockText:     rec.StockText,
		Image:         rec.Image,
		BidCount:      rec.BidCount,
		CurrentBid:    rec.CurrentBid,
		EndTime:       rec.EndTime,
		FirstSeenAt:   at,
		LastSeenAt:    at,
	}
	if l.Status == listing.StatusSold {
		l.SoldPrice = rec.SoldPrice
		l.SoldDate = rec.SoldDate
		if l.SoldDate.IsZero() {
			l.SoldDate = at
		}
	}
	return l
}

// merge folds an observation into an existing listing. A zero field in
// the record means the source did not report it this time, so the stored
// value stands. FirstSeenAt and any recorded sale outcome are immutable.
func merge(l listing.Listing, rec listing.RawRecord, at time.Time) listing.Listing {
	if rec.Title != "" {
		l.Title = rec.Title
	}
	if rec.SourceDisplay != "" {
		l.SourceDisplay = rec.SourceDisplay
	}
	if rec.Price > 0 {
		l.Price = rec.Price
	}
	if rec.Year != 0 {
		l.Year = rec.Year
	}
	if rec.Mileage != "" {
		l.Mileage = rec.Mileage
	}
	if rec.Location != "" {
		l.Location = rec.Location
	}
	if rec.PartNumber != "" {
		l.PartNumber = rec.PartNumber
	}
	if rec.Desc != "" {
		l.Desc = rec.Desc
	}
	if rec.Image != "" {
		l.Image = rec.Image
	}
	if rec.BidCount > 0 {
		l.BidCount = rec.BidCount
	}
	if rec.CurrentBid > 0 {
		l.CurrentBid = rec.CurrentBid
	}
	if rec.StockText != "" {
		l.StockText = rec.StockText
	}
	// EndTime is fixed once known; a source restating it later never
	// moves an auction's deadline.
	if l.EndTime.IsZero() && !rec.EndTime.IsZero() {
		l.EndTime = rec.EndTime
	}

	wasTerminal := l.Terminal()
	l.Status = observedStatus(l, rec)
	if l.Status == listing.StatusSold && !wasTerminal {
		l.SoldPrice = rec.SoldPrice
		l.SoldDate = rec.SoldDate
		if l.SoldDate.IsZero() {
			l.SoldDate = at
		}
	}
	l.LastSeenAt = at
	return l
}
