// Package fetch retrieves a contiguous block of grid-cell features from a
// paginated ArcGIS FeatureServer query endpoint and serialises them as one
// well-formed GeoJSON FeatureCollection.
//
// Pages are fetched strictly sequentially in increasing offset order; the
// origin server's offsets must advance in a fixed increment, so concurrent
// or out-of-order fetching would risk duplicate or skipped records.
// Batches are accumulated in memory and the whole document is serialised
// once at the end, so the output is valid JSON for every combination of
// empty and non-empty pages.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gridata-nz/population.report/internal/fsutil"
	"github.com/gridata-nz/population.report/internal/geojson"
	"github.com/gridata-nz/population.report/internal/httputil"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/timeutil"
)

// Defaults matching the source dataset's service limits.
const (
	DefaultPageSize      = 2000
	DefaultMaxPages      = 1000
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 2 * time.Second
)

// Query holds the fixed ArcGIS query parameters sent with every page.
type Query struct {
	Where     string // filter predicate
	OutFields string // requested output fields
	Format    string // response format
	OutSR     string // output spatial reference (EPSG code)
}

// DefaultQuery selects all records, all fields, as WGS84 GeoJSON.
func DefaultQuery() Query {
	return Query{
		Where:     "1=1",
		OutFields: "*",
		Format:    "geojson",
		OutSR:     "4326",
	}
}

// Window is a contiguous range of result positions into the server's total
// record set. Windows produced by Windows are disjoint and collectively
// cover the requested range with no gaps or overlaps.
type Window struct {
	Offset int
	Count  int
}

// Windows splits [start, start+total) into pages of pageSize records. The
// final window is not truncated: the server bounds short pages itself, and
// requesting a full page past the end simply returns fewer records.
func Windows(start, total, pageSize int) ([]Window, error) {
	if start < 0 {
		return nil, fmt.Errorf("start offset %d is negative", start)
	}
	if total <= 0 {
		return nil, fmt.Errorf("total record count %d must be positive", total)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size %d must be positive", pageSize)
	}

	pages := (total + pageSize - 1) / pageSize
	windows := make([]Window, 0, pages)
	for i := 0; i < pages; i++ {
		windows = append(windows, Window{Offset: start + i*pageSize, Count: pageSize})
	}
	return windows, nil
}

// Progress reports what a fetch run accomplished, including partial
// progress when the run aborts.
type Progress struct {
	PagesFetched   int // pages that returned a well-formed response
	PagesEmpty     int // well-formed pages with zero features
	PagesMalformed int // pages treated as empty due to an unparseable body
	Features       int // total accumulated features
}

// Pager fetches pages from an ArcGIS query endpoint.
//
// Error policy: a transport failure (or non-2xx status) on a page is retried
// with backoff; once retries are exhausted the whole run aborts with a
// partial-progress report and no output is written. A malformed body or a
// response without a features key contributes an empty batch and the run
// continues, so one bad page cannot sink an otherwise successful fetch.
type Pager struct {
	Client httputil.Client
	FS     fsutil.FileSystem
	Clock  timeutil.Clock

	BaseURL string
	Query   Query

	// StartOffset is the global offset of the first record to request.
	StartOffset int

	// TotalRecords is the number of records to fetch. When positive the
	// pager issues exactly ceil(TotalRecords/PageSize) requests. When zero
	// it pages until the server returns a short page, bounded by MaxPages.
	TotalRecords int

	PageSize int
	MaxPages int

	RetryAttempts int
	RetryBackoff  time.Duration
}

// NewPager creates a Pager with production collaborators and defaults.
func NewPager(baseURL string) *Pager {
	return &Pager{
		Client:        httputil.NewStandardClient(nil),
		FS:            fsutil.OSFileSystem{},
		Clock:         timeutil.RealClock{},
		BaseURL:       baseURL,
		Query:         DefaultQuery(),
		PageSize:      DefaultPageSize,
		MaxPages:      DefaultMaxPages,
		RetryAttempts: DefaultRetryAttempts,
		RetryBackoff:  DefaultRetryBackoff,
	}
}

// Run fetches all pages and writes the resulting FeatureCollection to
// outputPath as a single JSON document. The write is atomic: an aborted
// run leaves no file behind, and a pre-existing file is overwritten only
// on success.
func (p *Pager) Run(ctx context.Context, outputPath string) (*Progress, error) {
	fc, progress, err := p.Fetch(ctx)
	if err != nil {
		return progress, err
	}

	data, err := fc.Marshal()
	if err != nil {
		return progress, err
	}
	if err := p.FS.WriteFileAtomic(outputPath, data, 0644); err != nil {
		return progress, fmt.Errorf("write output file: %w", err)
	}

	monitoring.Logf("fetch complete: %d features across %d pages, saved to %s",
		progress.Features, progress.PagesFetched, outputPath)
	return progress, nil
}

// Fetch pages through the endpoint and returns the accumulated collection.
// Feature order equals server-returned order across pages; features are
// never deduplicated.
func (p *Pager) Fetch(ctx context.Context) (*geojson.FeatureCollection, *Progress, error) {
	if p.PageSize <= 0 {
		return nil, &Progress{}, fmt.Errorf("page size %d must be positive", p.PageSize)
	}

	var windows []Window
	if p.TotalRecords > 0 {
		w, err := Windows(p.StartOffset, p.TotalRecords, p.PageSize)
		if err != nil {
			return nil, &Progress{}, err
		}
		windows = w
	}

	progress := &Progress{}
	features := []geojson.Feature{}

	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	for page := 0; ; page++ {
		var win Window
		switch {
		case windows != nil:
			if page >= len(windows) {
				return geojson.NewFeatureCollection(features), progress, nil
			}
			win = windows[page]
		default:
			if page >= maxPages {
				monitoring.Logf("fetch: stopping at page cap (%d pages)", maxPages)
				return geojson.NewFeatureCollection(features), progress, nil
			}
			win = Window{Offset: p.StartOffset + page*p.PageSize, Count: p.PageSize}
		}

		if err := ctx.Err(); err != nil {
			return nil, progress, fmt.Errorf("fetch cancelled at page %d: %w", page+1, err)
		}

		batch, malformed, err := p.fetchPage(ctx, win)
		if err != nil {
			return nil, progress, fmt.Errorf(
				"page %d (offset %d): %w; %d features fetched over %d pages before failure",
				page+1, win.Offset, err, progress.Features, progress.PagesFetched)
		}

		if malformed {
			progress.PagesMalformed++
			monitoring.Logf("fetch: page %d (offset %d) returned a malformed body, treating as empty", page+1, win.Offset)
		} else {
			progress.PagesFetched++
		}
		if len(batch) == 0 && !malformed {
			progress.PagesEmpty++
		}

		features = append(features, batch...)
		progress.Features += len(batch)
		monitoring.Logf("fetch: page %d (offset %d) returned %d records (total %d)",
			page+1, win.Offset, len(batch), progress.Features)

		// Short page means the dataset is exhausted when no fixed total was
		// requested. A malformed page says nothing about the dataset's end,
		// so it never terminates the run.
		if windows == nil && !malformed && len(batch) < win.Count {
			return geojson.NewFeatureCollection(features), progress, nil
		}
	}
}

// fetchPage issues one GET for the window, retrying transport failures.
// The malformed return is true when the body could not be parsed and the
// page contributes an empty batch.
func (p *Pager) fetchPage(ctx context.Context, win Window) ([]geojson.Feature, bool, error) {
	attempts := p.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.RetryBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			monitoring.Logf("fetch: retrying offset %d (attempt %d/%d)", win.Offset, attempt, attempts)
			if p.Clock != nil && backoff > 0 {
				p.Clock.Sleep(backoff)
				backoff *= 2
			}
		}

		body, err := p.get(ctx, win)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, false, err
			}
			continue
		}

		batch, ok := parseBatch(body)
		if !ok {
			return nil, true, nil
		}
		return batch, false, nil
	}

	return nil, false, fmt.Errorf("transport failure after %d attempts: %w", attempts, lastErr)
}

func (p *Pager) get(ctx context.Context, win Window) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL(win), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// pageURL renders the query URL for one window.
func (p *Pager) pageURL(win Window) string {
	params := url.Values{}
	params.Set("where", p.Query.Where)
	params.Set("outFields", p.Query.OutFields)
	params.Set("f", p.Query.Format)
	params.Set("outSR", p.Query.OutSR)
	params.Set("resultOffset", strconv.Itoa(win.Offset))
	params.Set("resultRecordCount", strconv.Itoa(win.Count))
	return p.BaseURL + "?" + params.Encode()
}

// parseBatch extracts the features array from a page body. A body that is
// not JSON, or whose features key is absent or unusable, reports ok=false.
func parseBatch(body []byte) ([]geojson.Feature, bool) {
	var page struct {
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false
	}
	if page.Features == nil {
		return nil, false
	}

	var features []geojson.Feature
	if err := json.Unmarshal(page.Features, &features); err != nil {
		return nil, false
	}
	if features == nil {
		features = []geojson.Feature{}
	}
	return features, true
}
