package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

func testCollection() listing.Collection {
	c := listing.NewCollection()
	at := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	c.Put(listing.Listing{ID: "bat-aaaaaaaaaaaa", Category: listing.CategoryCar,
		Status: listing.StatusActive, Source: "bat", Title: "996 GT3",
		Link: "https://example.com/a", FirstSeenAt: at, LastSeenAt: at})
	c.Put(listing.Listing{ID: "pelican-bbbbbbbbbbbb", Category: listing.CategoryPart,
		Status: listing.StatusBackOrdered, Source: "pelican", Title: "Oil Pump",
		Link: "https://example.com/b", FirstSeenAt: at, LastSeenAt: at})
	c.LastUpdated = at
	return c
}

func TestJSONStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "listings.json")
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before save: %v, want ErrNotFound", err)
	}

	want := testCollection()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != want.Len() {
		t.Errorf("Len = %d, want %d", got.Len(), want.Len())
	}
	if got.Cars["bat-aaaaaaaaaaaa"].Status != listing.StatusActive {
		t.Error("car lost in round trip")
	}
	if got.Parts["pelican-bbbbbbbbbbbb"].Status != listing.StatusBackOrdered {
		t.Error("part status lost in round trip")
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, want.LastUpdated)
	}
}

func TestJSONStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(filepath.Join(dir, "listings.json"))
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	if err := s.Save(context.Background(), testCollection()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want just the document", len(entries))
	}
}

func TestJSONStore_SaveReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, testCollection()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	smaller := listing.NewCollection()
	smaller.Put(listing.Listing{ID: "bat-cccccccccccc", Category: listing.CategoryCar,
		Status: listing.StatusSold, Link: "https://example.com/c"})
	if err := s.Save(ctx, smaller); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("Len = %d, want 1 after replacement", got.Len())
	}
	if _, ok := got.Cars["bat-aaaaaaaaaaaa"]; ok {
		t.Error("stale listing survived replacement")
	}
}

func TestJSONStore_LoadRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("Load of corrupt document must fail")
	}
}
