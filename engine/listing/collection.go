package listing

import (
	"encoding/json"
	"sort"
	"time"
)

// Collection is the persisted store: one keyed set of listings per
// category plus a document-level timestamp. Keys are listing IDs, so
// uniqueness per category holds by construction.
type Collection struct {
	Cars        map[string]Listing
	Parts       map[string]Listing
	Auctions    map[string]Listing
	LastUpdated time.Time
}

// NewCollection returns an empty collection with all sets allocated.
func NewCollection() Collection {
	return Collection{
		Cars:     make(map[string]Listing),
		Parts:    make(map[string]Listing),
		Auctions: make(map[string]Listing),
	}
}

// Set returns the keyed set for a category, or nil for an unknown one.
func (c *Collection) Set(cat Category) map[string]Listing {
	switch cat {
	case CategoryCar:
		return c.Cars
	case CategoryPart:
		return c.Parts
	case CategoryAuction:
		return c.Auctions
	}
	return nil
}

// Put stores a listing in its category's set.
func (c *Collection) Put(l Listing) {
	if set := c.Set(l.Category); set != nil {
		set[l.ID] = l
	}
}

// Len returns the total number of listings across all categories.
func (c Collection) Len() int {
	return len(c.Cars) + len(c.Parts) + len(c.Auctions)
}

// All returns every listing, cars first, each category sorted.
func (c Collection) All() []Listing {
	out := make([]Listing, 0, c.Len())
	out = append(out, sortedListings(c.Cars)...)
	out = append(out, sortedListings(c.Parts)...)
	out = append(out, sortedListings(c.Auctions)...)
	return out
}

// Clone returns a deep copy. Listing holds only value fields, so copying
// the maps is sufficient.
func (c Collection) Clone() Collection {
	out := Collection{
		Cars:        make(map[string]Listing, len(c.Cars)),
		Parts:       make(map[string]Listing, len(c.Parts)),
		Auctions:    make(map[string]Listing, len(c.Auctions)),
		LastUpdated: c.LastUpdated,
	}
	for id, l := range c.Cars {
		out.Cars[id] = l
	}
	for id, l := range c.Parts {
		out.Parts[id] = l
	}
	for id, l := range c.Auctions {
		out.Auctions[id] = l
	}
	return out
}

// collectionDoc is the on-disk document shape: arrays, not maps, in a
// deterministic order so successive saves of the same state are
// byte-identical.
type collectionDoc struct {
	Cars        []Listing `json:"cars"`
	Parts       []Listing `json:"parts"`
	Auctions    []Listing `json:"auctions,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// MarshalJSON renders the collection as the array-based document.
func (c Collection) MarshalJSON() ([]byte, error) {
	doc := collectionDoc{
		Cars:        sortedListings(c.Cars),
		Parts:       sortedListings(c.Parts),
		Auctions:    sortedListings(c.Auctions),
		LastUpdated: c.LastUpdated,
	}
	return json.Marshal(doc)
}

// UnmarshalJSON loads the array-based document back into keyed sets.
// A duplicate ID within a category keeps the earliest-seen entry.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var doc collectionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*c = NewCollection()
	c.LastUpdated = doc.LastUpdated
	for _, l := range doc.Cars {
		putFirst(c.Cars, l)
	}
	for _, l := range doc.Parts {
		putFirst(c.Parts, l)
	}
	for _, l := range doc.Auctions {
		putFirst(c.Auctions, l)
	}
	return nil
}

func putFirst(set map[string]Listing, l Listing) {
	if prev, ok := set[l.ID]; ok && !prev.FirstSeenAt.After(l.FirstSeenAt) {
		return
	}
	set[l.ID] = l
}

func sortedListings(set map[string]Listing) []Listing {
	if len(set) == 0 {
		return []Listing{}
	}
	out := make([]Listing, 0, len(set))
	for _, l := range set {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
