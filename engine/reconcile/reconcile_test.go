package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

var (
	run1 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	run2 = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
)

func carRecord(link string) listing.RawRecord {
	return listing.RawRecord{
		Source: "bat",
		Title:  "2004 Porsche 911 GT3",
		Link:   link,
		Price:  125000,
		Year:   2004,
	}
}

func mustID(t *testing.T, source, link string) string {
	t.Helper()
	id, err := listing.ResolveID(source, link)
	if err != nil {
		t.Fatalf("ResolveID(%q, %q): %v", source, link, err)
	}
	return id
}

func TestRun_AddsNewListings(t *testing.T) {
	batches := []Batch{{
		Source:   "bat",
		Category: listing.CategoryCar,
		Records:  []listing.RawRecord{carRecord("https://example.com/listing/abc123")},
	}}
	next, sum, err := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Added != 1 || len(sum.NewListings) != 1 {
		t.Fatalf("Added = %d, NewListings = %d, want 1 and 1", sum.Added, len(sum.NewListings))
	}
	id := mustID(t, "bat", "https://example.com/listing/abc123")
	l, ok := next.Cars[id]
	if !ok {
		t.Fatalf("car %s not in collection", id)
	}
	if l.Status != listing.StatusActive {
		t.Errorf("status = %q, want active", l.Status)
	}
	if !l.FirstSeenAt.Equal(run1) || !l.LastSeenAt.Equal(run1) {
		t.Errorf("timestamps = %v/%v, want %v", l.FirstSeenAt, l.LastSeenAt, run1)
	}
}

func TestRun_MergePreservesFirstSeen(t *testing.T) {
	link := "https://example.com/listing/abc123"
	batches := []Batch{{Source: "bat", Category: listing.CategoryCar,
		Records: []listing.RawRecord{carRecord(link)}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())

	// Second observation drops most fields and updates the price.
	batches[0].Records = []listing.RawRecord{{Source: "bat", Link: link, Price: 119000}}
	next, sum, err := Run(context.Background(), coll, batches, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Updated != 1 || sum.Added != 0 {
		t.Fatalf("Updated = %d, Added = %d, want 1 and 0", sum.Updated, sum.Added)
	}
	l := next.Cars[mustID(t, "bat", link)]
	if !l.FirstSeenAt.Equal(run1) {
		t.Errorf("FirstSeenAt = %v, want %v", l.FirstSeenAt, run1)
	}
	if !l.LastSeenAt.Equal(run2) {
		t.Errorf("LastSeenAt = %v, want %v", l.LastSeenAt, run2)
	}
	if l.Price != 119000 {
		t.Errorf("Price = %v, want updated price", l.Price)
	}
	if l.Title != "2004 Porsche 911 GT3" {
		t.Errorf("Title = %q, want value from first observation", l.Title)
	}
	if l.Year != 2004 {
		t.Errorf("Year = %d, want 2004", l.Year)
	}
}

func TestRun_DelistedCarFlipsToSold(t *testing.T) {
	link := "https://example.com/listing/abc123"
	batches := []Batch{{Source: "bat", Category: listing.CategoryCar,
		Records: []listing.RawRecord{carRecord(link)}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())

	// Successful but empty scrape of the same source.
	empty := []Batch{{Source: "bat", Category: listing.CategoryCar}}
	next, sum, err := Run(context.Background(), coll, empty, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	l := next.Cars[mustID(t, "bat", link)]
	if l.Status != listing.StatusSold {
		t.Fatalf("status = %q, want sold", l.Status)
	}
	if !l.LastSeenAt.Equal(run2) {
		t.Errorf("LastSeenAt = %v, want transition time %v", l.LastSeenAt, run2)
	}
	if !l.SoldDate.Equal(run2) {
		t.Errorf("SoldDate = %v, want %v", l.SoldDate, run2)
	}
	if sum.Transitioned != 1 || len(sum.Transitions) != 1 {
		t.Fatalf("Transitioned = %d, want 1", sum.Transitioned)
	}
	tr := sum.Transitions[0]
	if tr.From != listing.StatusActive || tr.To != listing.StatusSold {
		t.Errorf("transition %q -> %q, want active -> sold", tr.From, tr.To)
	}
}

func TestRun_FailedBatchCarriesOver(t *testing.T) {
	link := "https://example.com/listing/abc123"
	batches := []Batch{{Source: "bat", Category: listing.CategoryCar,
		Records: []listing.RawRecord{carRecord(link)}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())

	failed := []Batch{{Source: "bat", Category: listing.CategoryCar, Err: context.DeadlineExceeded}}
	next, sum, err := Run(context.Background(), coll, failed, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	l := next.Cars[mustID(t, "bat", link)]
	if l.Status != listing.StatusActive {
		t.Errorf("status after failed scrape = %q, want active", l.Status)
	}
	if !l.LastSeenAt.Equal(run1) {
		t.Errorf("LastSeenAt = %v, want untouched %v", l.LastSeenAt, run1)
	}
	if sum.Transitioned != 0 {
		t.Errorf("Transitioned = %d, want 0", sum.Transitioned)
	}
}

func TestRun_AbsenceScopedToSource(t *testing.T) {
	batches := []Batch{
		{Source: "bat", Category: listing.CategoryCar,
			Records: []listing.RawRecord{carRecord("https://example.com/listing/abc123")}},
		{Source: "pelican", Category: listing.CategoryCar,
			Records: []listing.RawRecord{{Source: "pelican", Title: "997 GT3 RS", Link: "https://pelican.example.com/cars/9"}}},
	}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())

	// Only bat reports this run; pelican's car must not be delisted.
	onlyBat := []Batch{{Source: "bat", Category: listing.CategoryCar,
		Records: []listing.RawRecord{carRecord("https://example.com/listing/abc123")}}}
	next, _, err := Run(context.Background(), coll, onlyBat, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := next.Cars[mustID(t, "pelican", "https://pelican.example.com/cars/9")]
	if p.Status != listing.StatusActive {
		t.Errorf("pelican car = %q, want active", p.Status)
	}
}

func TestRun_MalformedRecordsDroppedNotFatal(t *testing.T) {
	batches := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{
		carRecord("https://example.com/listing/abc123"),
		{Source: "bat", Title: "no link"},
		{Source: "bat", Link: "not a url"},
	}}}
	next, sum, err := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", sum.Malformed)
	}
	if sum.Added != 1 || len(next.Cars) != 1 {
		t.Errorf("Added = %d, cars = %d, want 1 and 1", sum.Added, len(next.Cars))
	}
}

func TestRun_UnknownCategoryBatchDropped(t *testing.T) {
	batches := []Batch{{Source: "bat", Category: listing.Category("boat"), Records: []listing.RawRecord{
		carRecord("https://example.com/listing/abc123"),
	}}}
	next, sum, err := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Malformed != 1 || sum.Added != 0 {
		t.Errorf("Malformed = %d, Added = %d, want 1 and 0", sum.Malformed, sum.Added)
	}
	if next.Len() != 0 {
		t.Errorf("Len = %d, want 0", next.Len())
	}
}

func TestRun_PartBackOrderedOnCreate(t *testing.T) {
	batches := []Batch{{Source: "pelican", Category: listing.CategoryPart, Records: []listing.RawRecord{{
		Source:     "pelican",
		Title:      "GT3 Oil Pump",
		Link:       "https://pelican.example.com/parts/996-107-013-52",
		PartNumber: "996-107-013-52",
		StockText:  "Back Order 2 weeks",
	}}}}
	next, _, err := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	l := next.Parts[mustID(t, "pelican", "https://pelican.example.com/parts/996-107-013-52")]
	if l.Status != listing.StatusBackOrdered {
		t.Errorf("status = %q, want back_ordered", l.Status)
	}
}

func TestRun_AuctionExpiryAndPromotion(t *testing.T) {
	link := "https://example.com/auction/gt2-clubsport"
	auctionBatch := []Batch{{Source: "bat", Category: listing.CategoryAuction, Records: []listing.RawRecord{{
		Source:  "bat",
		Title:   "1998 Porsche 911 GT2",
		Link:    link,
		EndTime: run1.Add(12 * time.Hour),
	}}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), auctionBatch, run1, DefaultPolicy())
	if len(coll.Auctions) != 1 {
		t.Fatalf("auctions = %d, want 1", len(coll.Auctions))
	}

	// Next run is past the end time and the results feed carries the
	// hammer price for the same link.
	resultBatch := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{{
		Source:    "bat",
		Title:     "1998 Porsche 911 GT2",
		Link:      link,
		Year:      1998,
		SoldPrice: 485000,
		SoldDate:  run2.Add(-6 * time.Hour),
	}}}}
	next, sum, err := Run(context.Background(), coll, resultBatch, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Expired != 1 {
		t.Errorf("Expired = %d, want 1", sum.Expired)
	}
	if sum.Promoted != 1 {
		t.Errorf("Promoted = %d, want 1", sum.Promoted)
	}
	if len(next.Auctions) != 0 {
		t.Errorf("auctions = %d, want 0 after sweep", len(next.Auctions))
	}
	car, ok := next.Cars[mustID(t, "bat", link)]
	if !ok {
		t.Fatal("promoted car missing")
	}
	if car.Status != listing.StatusSold || car.SoldPrice != 485000 {
		t.Errorf("promoted car = %q/%v, want sold/485000", car.Status, car.SoldPrice)
	}
	if !car.FirstSeenAt.Equal(run1) {
		t.Errorf("FirstSeenAt = %v, want auction's %v", car.FirstSeenAt, run1)
	}
}

func TestRun_SoldFieldsImmutable(t *testing.T) {
	link := "https://example.com/listing/abc123"
	soldDate := run1.Add(-time.Hour)
	sold := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{{
		Source:    "bat",
		Title:     "2004 Porsche 911 GT3",
		Link:      link,
		SoldPrice: 200000,
		SoldDate:  soldDate,
	}}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), sold, run1, DefaultPolicy())

	// The same result re-observed with a different hammer price must not
	// rewrite the recorded sale.
	again := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{{
		Source:    "bat",
		Title:     "2004 Porsche 911 GT3",
		Link:      link,
		SoldPrice: 999999,
		SoldDate:  run2,
	}}}}
	next, _, err := Run(context.Background(), coll, again, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	car := next.Cars[mustID(t, "bat", link)]
	if car.SoldPrice != 200000 {
		t.Errorf("SoldPrice = %v, want original 200000", car.SoldPrice)
	}
	if !car.SoldDate.Equal(soldDate) {
		t.Errorf("SoldDate = %v, want original %v", car.SoldDate, soldDate)
	}
}

func TestRun_AuctionEndTimeFixedOnceKnown(t *testing.T) {
	link := "https://example.com/auction/gt3-rs"
	end := run2.Add(24 * time.Hour)
	first := []Batch{{Source: "bat", Category: listing.CategoryAuction, Records: []listing.RawRecord{{
		Source:  "bat",
		Title:   "2007 Porsche 911 GT3 RS",
		Link:    link,
		EndTime: end,
	}}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), first, run1, DefaultPolicy())

	restated := []Batch{{Source: "bat", Category: listing.CategoryAuction, Records: []listing.RawRecord{{
		Source:  "bat",
		Title:   "2007 Porsche 911 GT3 RS",
		Link:    link,
		EndTime: end.Add(48 * time.Hour),
	}}}}
	next, _, err := Run(context.Background(), coll, restated, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := next.Auctions[mustID(t, "bat", link)]
	if !a.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want original %v", a.EndTime, end)
	}
}

func TestRun_PromotionKeepsEarliestFirstSeen(t *testing.T) {
	link := "https://example.com/auction/gt2-clubsport"
	run0 := run1.Add(-48 * time.Hour)

	// The car was listed well before the auction feed picked it up.
	carBatch := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{{
		Source: "bat",
		Title:  "1998 Porsche 911 GT2",
		Link:   link,
	}}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), carBatch, run0, DefaultPolicy())

	auctionBatch := []Batch{{Source: "bat", Category: listing.CategoryAuction, Records: []listing.RawRecord{{
		Source:  "bat",
		Title:   "1998 Porsche 911 GT2",
		Link:    link,
		EndTime: run1.Add(12 * time.Hour),
	}}}}
	coll, _, _ = Run(context.Background(), coll, auctionBatch, run1, DefaultPolicy())

	resultBatch := []Batch{{Source: "bat", Category: listing.CategoryCar, Records: []listing.RawRecord{{
		Source:    "bat",
		Title:     "1998 Porsche 911 GT2",
		Link:      link,
		SoldPrice: 485000,
		SoldDate:  run2.Add(-6 * time.Hour),
	}}}}
	next, sum, err := Run(context.Background(), coll, resultBatch, run2, DefaultPolicy())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Promoted != 1 {
		t.Errorf("Promoted = %d, want 1", sum.Promoted)
	}
	car := next.Cars[mustID(t, "bat", link)]
	if !car.FirstSeenAt.Equal(run0) {
		t.Errorf("FirstSeenAt = %v, want earliest sighting %v", car.FirstSeenAt, run0)
	}
	if car.Status != listing.StatusSold || car.SoldPrice != 485000 {
		t.Errorf("car = %q/%v, want sold/485000", car.Status, car.SoldPrice)
	}
}

func TestRun_InputCollectionNotMutated(t *testing.T) {
	link := "https://example.com/listing/abc123"
	batches := []Batch{{Source: "bat", Category: listing.CategoryCar,
		Records: []listing.RawRecord{carRecord(link)}}}
	coll, _, _ := Run(context.Background(), listing.NewCollection(), batches, run1, DefaultPolicy())

	empty := []Batch{{Source: "bat", Category: listing.CategoryCar}}
	if _, _, err := Run(context.Background(), coll, empty, run2, DefaultPolicy()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := coll.Cars[mustID(t, "bat", link)].Status; got != listing.StatusActive {
		t.Errorf("input collection mutated, status = %q", got)
	}
}

func TestSweep(t *testing.T) {
	now := run2
	auctions := map[string]listing.Listing{
		"bat-aaaaaaaaaaaa": {ID: "bat-aaaaaaaaaaaa", Status: listing.StatusAuction, EndTime: now.Add(-time.Hour)},
		"bat-bbbbbbbbbbbb": {ID: "bat-bbbbbbbbbbbb", Status: listing.StatusAuction, EndTime: now.Add(time.Hour)},
		"bat-cccccccccccc": {ID: "bat-cccccccccccc", Status: listing.StatusAuction},
	}
	kept, expired := Sweep(auctions, now)
	if len(kept) != 2 {
		t.Errorf("kept = %d, want 2", len(kept))
	}
	if len(expired) != 1 || expired[0].ID != "bat-aaaaaaaaaaaa" {
		t.Fatalf("expired = %v, want the ended auction only", expired)
	}
	if expired[0].Status != listing.StatusExpired {
		t.Errorf("expired status = %q, want expired", expired[0].Status)
	}
	if _, ok := kept["bat-cccccccccccc"]; !ok {
		t.Error("auction without end time must be kept")
	}
}
