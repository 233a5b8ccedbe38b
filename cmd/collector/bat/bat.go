// Package bat adapts Bring a Trailer's RSS feeds into raw listing
// records: the live feed yields auctions, the results feed yields
// completed sales.
package bat

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/MezgerSearch/mezger-engine/cmd/collector/mezger"
	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

const (
	// SourceName keys every record this package produces.
	SourceName    = "bat"
	sourceDisplay = "Bring a Trailer"

	// auctionDuration approximates how long a live auction runs when
	// the feed carries no explicit end time.
	auctionDuration = 7 * 24 * time.Hour
)

var (
	soldForRe    = regexp.MustCompile(`(?i)sold for (?:USD )?\$([\d,]+)`)
	currentBidRe = regexp.MustCompile(`(?i)(?:current bid|bid to) (?:USD )?\$([\d,]+)`)
)

// Client fetches and parses both BaT feeds with shared pacing.
type Client struct {
	parser  *gofeed.Parser
	limiter *rate.Limiter

	auctionsURL string
	resultsURL  string
}

// NewClient builds a client for the given feed URLs. Requests are paced
// to stay well under BaT's rate limits.
func NewClient(auctionsURL, resultsURL string) *Client {
	p := gofeed.NewParser()
	p.UserAgent = "MezgerSearch Data Collector"
	return &Client{
		parser:      p,
		limiter:     rate.NewLimiter(rate.Every(2*time.Second), 1),
		auctionsURL: auctionsURL,
		resultsURL:  resultsURL,
	}
}

// Auctions is the adapter for the live-auction feed.
type Auctions struct{ c *Client }

// Results is the adapter for the completed-results feed.
type Results struct{ c *Client }

// NewAuctions returns the live-auction adapter.
func (c *Client) NewAuctions() *Auctions { return &Auctions{c: c} }

// NewResults returns the completed-results adapter.
func (c *Client) NewResults() *Results { return &Results{c: c} }

func (a *Auctions) Name() string               { return SourceName }
func (a *Auctions) Category() listing.Category { return listing.CategoryAuction }

func (a *Auctions) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	items, err := a.c.fetch(ctx, a.c.auctionsURL)
	if err != nil {
		return nil, err
	}
	var records []listing.RawRecord
	for _, item := range items {
		if !mezger.IsCar(item.Title) {
			continue
		}
		rec := listing.RawRecord{
			Source:        SourceName,
			SourceDisplay: sourceDisplay,
			Title:         item.Title,
			Link:          item.Link,
			Year:          mezger.ExtractYear(item.Title),
			Desc:          item.Description,
			EndTime:       endTime(item),
		}
		if m := currentBidRe.FindStringSubmatch(item.Description); m != nil {
			rec.CurrentBid = mezger.ExtractPrice(m[1])
		}
		if img := itemImage(item); img != "" {
			rec.Image = img
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Results) Name() string               { return SourceName }
func (r *Results) Category() listing.Category { return listing.CategoryCar }

func (r *Results) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	items, err := r.c.fetch(ctx, r.c.resultsURL)
	if err != nil {
		return nil, err
	}
	var records []listing.RawRecord
	for _, item := range items {
		if !mezger.IsCar(item.Title) {
			continue
		}
		m := soldForRe.FindStringSubmatch(item.Description)
		if m == nil {
			// Reserve-not-met results carry no hammer price.
			continue
		}
		rec := listing.RawRecord{
			Source:        SourceName,
			SourceDisplay: sourceDisplay,
			Title:         item.Title,
			Link:          item.Link,
			Year:          mezger.ExtractYear(item.Title),
			Desc:          item.Description,
			SoldPrice:     mezger.ExtractPrice(m[1]),
		}
		if item.PublishedParsed != nil {
			rec.SoldDate = *item.PublishedParsed
		}
		if img := itemImage(item); img != "" {
			rec.Image = img
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]*gofeed.Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	feed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	return feed.Items, nil
}

func endTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed == nil {
		return time.Time{}
	}
	return item.PublishedParsed.Add(auctionDuration)
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
