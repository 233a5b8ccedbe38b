package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

const listingsDDL = `
CREATE TABLE IF NOT EXISTS listings (
    listing_id    text PRIMARY KEY,
    category      text NOT NULL,
    status        text NOT NULL,
    source        text NOT NULL,
    source_display text NOT NULL DEFAULT '',
    title         text NOT NULL DEFAULT '',
    link          text NOT NULL DEFAULT '',
    price         double precision NOT NULL DEFAULT 0,
    year          int NOT NULL DEFAULT 0,
    mileage       text NOT NULL DEFAULT '',
    location      text NOT NULL DEFAULT '',
    part_number   text NOT NULL DEFAULT '',
    description   text NOT NULL DEFAULT '',
    stock_text    text NOT NULL DEFAULT '',
    image         text NOT NULL DEFAULT '',
    bid_count     int NOT NULL DEFAULT 0,
    current_bid   double precision NOT NULL DEFAULT 0,
    end_time      timestamptz,
    sold_price    double precision NOT NULL DEFAULT 0,
    sold_date     timestamptz,
    first_seen_at timestamptz NOT NULL,
    last_seen_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_category_status_idx ON listings (category, status);
CREATE INDEX IF NOT EXISTS listings_source_idx ON listings (source);
`

// The update branch never touches first_seen_at, and sold fields only move
// from their zero values, so provenance survives even if a caller hands
// the store a regressed row.
const upsertListing = `
INSERT INTO listings AS l (
    listing_id, category, status, source, source_display, title, link,
    price, year, mileage, location, part_number, description, stock_text,
    image, bid_count, current_bid, end_time, sold_price, sold_date,
    first_seen_at, last_seen_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
ON CONFLICT (listing_id) DO UPDATE SET
    category       = EXCLUDED.category,
    status         = EXCLUDED.status,
    source_display = EXCLUDED.source_display,
    title          = EXCLUDED.title,
    link           = EXCLUDED.link,
    price          = EXCLUDED.price,
    year           = EXCLUDED.year,
    mileage        = EXCLUDED.mileage,
    location       = EXCLUDED.location,
    part_number    = EXCLUDED.part_number,
    description    = EXCLUDED.description,
    stock_text     = EXCLUDED.stock_text,
    image          = EXCLUDED.image,
    bid_count      = EXCLUDED.bid_count,
    current_bid    = EXCLUDED.current_bid,
    end_time       = EXCLUDED.end_time,
    sold_price     = CASE WHEN l.sold_price > 0 THEN l.sold_price ELSE EXCLUDED.sold_price END,
    sold_date      = COALESCE(l.sold_date, EXCLUDED.sold_date),
    last_seen_at   = EXCLUDED.last_seen_at
`

// PGStore persists the collection in a single Postgres table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to databaseURL and ensures the schema exists.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, listingsDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) Load(ctx context.Context) (listing.Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT listing_id, category, status, source, source_display, title, link,
		       price, year, mileage, location, part_number, description, stock_text,
		       image, bid_count, current_bid, end_time, sold_price, sold_date,
		       first_seen_at, last_seen_at
		  FROM listings`)
	if err != nil {
		return listing.Collection{}, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	c := listing.NewCollection()
	n := 0
	for rows.Next() {
		var l listing.Listing
		var endTime, soldDate *time.Time
		if err := rows.Scan(
			&l.ID, &l.Category, &l.Status, &l.Source, &l.SourceDisplay, &l.Title, &l.Link,
			&l.Price, &l.Year, &l.Mileage, &l.Location, &l.PartNumber, &l.Desc, &l.StockText,
			&l.Image, &l.BidCount, &l.CurrentBid, &endTime, &l.SoldPrice, &soldDate,
			&l.FirstSeenAt, &l.LastSeenAt,
		); err != nil {
			return listing.Collection{}, fmt.Errorf("store: scan: %w", err)
		}
		if endTime != nil {
			l.EndTime = *endTime
		}
		if soldDate != nil {
			l.SoldDate = *soldDate
		}
		c.Put(l)
		n++
	}
	if err := rows.Err(); err != nil {
		return listing.Collection{}, fmt.Errorf("store: rows: %w", err)
	}
	if n == 0 {
		return listing.Collection{}, ErrNotFound
	}
	c.LastUpdated = maxLastSeen(c)
	return c, nil
}

// Save upserts every listing and removes rows the collection no longer
// contains, all in one transaction.
func (s *PGStore) Save(ctx context.Context, c listing.Collection) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	ids := make([]string, 0, c.Len())
	for _, l := range c.All() {
		ids = append(ids, l.ID)
		batch.Queue(upsertListing,
			l.ID, string(l.Category), string(l.Status), l.Source, l.SourceDisplay, l.Title, l.Link,
			l.Price, l.Year, l.Mileage, l.Location, l.PartNumber, l.Desc, l.StockText,
			l.Image, l.BidCount, l.CurrentBid, nullTime(l.EndTime), l.SoldPrice, nullTime(l.SoldDate),
			l.FirstSeenAt, l.LastSeenAt)
	}
	batch.Queue(`DELETE FROM listings WHERE NOT listing_id = ANY($1)`, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store: upsert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func maxLastSeen(c listing.Collection) time.Time {
	var max time.Time
	for _, l := range c.All() {
		if l.LastSeenAt.After(max) {
			max = l.LastSeenAt
		}
	}
	return max
}
