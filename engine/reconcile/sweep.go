package reconcile

import (
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// Sweep partitions auctions into those still running and those whose end
// time has passed. Auctions without an end time never expire by sweep.
func Sweep(auctions map[string]listing.Listing, now time.Time) (kept map[string]listing.Listing, expired []listing.Listing) {
	kept = make(map[string]listing.Listing, len(auctions))
	for id, a := range auctions {
		if !a.EndTime.IsZero() && !a.EndTime.After(now) {
			a.Status = listing.StatusExpired
			expired = append(expired, a)
			continue
		}
		kept[id] = a
	}
	return kept, expired
}
