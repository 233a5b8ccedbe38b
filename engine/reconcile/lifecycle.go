package reconcile

import (
	"strings"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// StockStatus classifies a source's raw availability text into a part
// status. Anything unrecognised counts as in stock, matching how part
// catalogs omit the badge entirely for orderable items.
func StockStatus(text string) listing.Status {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "out of stock"), strings.Contains(t, "sold out"),
		strings.Contains(t, "discontinued"):
		return listing.StatusOutOfStock
	case strings.Contains(t, "back order"), strings.Contains(t, "backorder"),
		strings.Contains(t, "back-order"), strings.Contains(t, "pre-order"),
		strings.Contains(t, "preorder"):
		return listing.StatusBackOrdered
	default:
		return listing.StatusInStock
	}
}

// initialStatus picks the status for a listing created from its first
// observation.
func initialStatus(cat listing.Category, rec listing.RawRecord) listing.Status {
	switch cat {
	case listing.CategoryCar:
		if rec.SoldPrice > 0 {
			return listing.StatusSold
		}
		return listing.StatusActive
	case listing.CategoryPart:
		return StockStatus(rec.StockText)
	case listing.CategoryAuction:
		return listing.StatusAuction
	}
	return ""
}

// observedStatus advances a known listing's status for an observation in
// the current scrape. Being seen never flips a car to sold; terminal
// statuses are sticky; part status is recomputed from the incoming stock
// text whenever the scrape carried one.
func observedStatus(l listing.Listing, rec listing.RawRecord) listing.Status {
	switch l.Category {
	case listing.CategoryCar:
		if l.Status == listing.StatusSold || rec.SoldPrice > 0 {
			return listing.StatusSold
		}
		return listing.StatusActive
	case listing.CategoryPart:
		if rec.StockText != "" {
			return StockStatus(rec.StockText)
		}
		return l.Status
	case listing.CategoryAuction:
		return l.Status
	}
	return l.Status
}

// unobservedStatus advances a known listing's status when a complete,
// successful scrape of its source did not contain it. The bool reports
// whether a transition happened.
//
// Delisting a car reads as a completed sale: a weak but deliberate
// heuristic. Parts never transition on absence because one catalog crawl
// need not cover the whole catalog. Auctions expire on time, not absence.
func unobservedStatus(l listing.Listing, pol Policy) (listing.Status, bool) {
	switch l.Category {
	case listing.CategoryCar:
		if pol.CarDelistToSold && l.Status == listing.StatusActive {
			return listing.StatusSold, true
		}
	case listing.CategoryPart:
		if pol.PartDelistToOutOfStock && l.Status != listing.StatusOutOfStock {
			return listing.StatusOutOfStock, true
		}
	}
	return l.Status, false
}
