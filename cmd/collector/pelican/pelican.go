// Package pelican adapts the Pelican Parts catalog endpoint into raw
// part records.
package pelican

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MezgerSearch/mezger-engine/cmd/collector/mezger"
	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/pkg/fn"
	"github.com/MezgerSearch/mezger-engine/pkg/resilience"
)

const (
	// SourceName keys every record this package produces.
	SourceName    = "pelican"
	sourceDisplay = "Pelican Parts"
)

// catalogItem mirrors one entry of the catalog endpoint.
type catalogItem struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Price       float64 `json:"price"`
	PartNumber  string  `json:"part_number"`
	Stock       string  `json:"stock"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
}

type catalogPage struct {
	Items []catalogItem `json:"items"`
}

// Adapter fetches the parts catalog. Requests run through a rate
// limiter and a circuit breaker so a struggling catalog server is left
// alone instead of hammered.
type Adapter struct {
	baseURL string
	client  *http.Client
	limiter *resilience.Limiter
	breaker *resilience.Breaker
	retry   fn.RetryOpts
}

// New builds the catalog adapter for the given base URL.
func New(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 1, Burst: 2}),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 2 * time.Second,
			MaxWait:     15 * time.Second,
			Jitter:      true,
		},
	}
}

func (a *Adapter) Name() string               { return SourceName }
func (a *Adapter) Category() listing.Category { return listing.CategoryPart }

func (a *Adapter) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	r := fn.Retry(ctx, a.retry, func(ctx context.Context) fn.Result[catalogPage] {
		if err := a.limiter.Wait(ctx); err != nil {
			return fn.Err[catalogPage](err)
		}
		return resilience.CallResult(a.breaker, ctx, a.fetchCatalog)
	})
	page, err := r.Unwrap()
	if err != nil {
		return nil, err
	}

	var records []listing.RawRecord
	for _, item := range page.Items {
		if !mezger.IsPart(item.Title) {
			continue
		}
		records = append(records, listing.RawRecord{
			Source:        SourceName,
			SourceDisplay: sourceDisplay,
			Title:         item.Title,
			Link:          item.URL,
			Price:         item.Price,
			PartNumber:    item.PartNumber,
			StockText:     item.Stock,
			Image:         item.Image,
			Desc:          item.Description,
		})
	}
	return records, nil
}

func (a *Adapter) fetchCatalog(ctx context.Context) fn.Result[catalogPage] {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/catalog.json", nil)
	if err != nil {
		return fn.Err[catalogPage](err)
	}
	req.Header.Set("User-Agent", "MezgerSearch Data Collector")

	resp, err := a.client.Do(req)
	if err != nil {
		return fn.Errf[catalogPage]("pelican catalog: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fn.Errf[catalogPage]("pelican catalog: status %d", resp.StatusCode)
	}
	var page catalogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fn.Err[catalogPage](fmt.Errorf("pelican catalog decode: %w", err))
	}
	return fn.Ok(page)
}
