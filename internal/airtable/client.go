// Package airtable provides a client for the Airtable record source API.
// It exposes pages of raw records through a pull-based iterator so the
// import pipeline can consume them one page at a time.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chiro_dashboard_backend/platform/config"

	"golang.org/x/time/rate"
)

// sourceFields is the fixed set of columns fetched from the source table.
var sourceFields = []string{
	"User ID",
	"Name",
	"Clinic",
	"Automation",
	"Booking",
	"Conversation Transcript",
	"Created",
	"Lead Created",
	"Engaged in conversation",
	"Email",
	"Phone",
}

// Record is one raw source record: a stable identifier plus an untyped
// field bag keyed by human-readable column names. Records are transient
// and never persisted as-is.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// Page is one fetched page of records together with the running fetched count.
type Page struct {
	Records []Record
	Fetched int
}

// FetchOptions controls a paged fetch.
type FetchOptions struct {
	// Since limits the fetch to records created after the given instant
	// (incremental mode watermark). Nil fetches everything.
	Since *time.Time
}

// Client is an HTTP client for the Airtable REST API.
type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	tableID    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Airtable client. Requests are paced to stay
// under the source's rate limit; the pacing is not caller-tunable.
func NewClient(cfg config.AirtableConfig) *Client {
	pageSize := cfg.GetAirtablePageSize()
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetAirtableEndpointURL(), "/"),
		apiKey:     cfg.GetAirtableAPIKey(),
		baseID:     cfg.GetAirtableBaseID(),
		tableID:    cfg.GetAirtableTableID(),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Ping fetches a single record to verify connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("maxRecords", "1")

	_, _, err := c.list(ctx, query)
	return err
}

// Fetch returns an iterator over the source pages. The iterator is lazy:
// no request is made until Next is called.
func (c *Client) Fetch(opts FetchOptions) *PageIterator {
	return &PageIterator{client: c, opts: opts}
}

// PageIterator walks source pages in delivery order, in the pull style of
// pgx.Rows: Next advances, Page returns the current page, Err reports the
// first failure. A fetch error ends iteration; there is no page-level retry.
type PageIterator struct {
	client  *Client
	opts    FetchOptions
	offset  string
	started bool
	done    bool
	fetched int
	page    Page
	err     error
}

// Next fetches the next page. It returns false when the source is
// exhausted or a fetch failed; check Err afterwards.
func (it *PageIterator) Next(ctx context.Context) bool {
	for {
		if it.done || it.err != nil {
			return false
		}
		if it.started && it.offset == "" {
			it.done = true
			return false
		}

		records, nextOffset, err := it.client.listPage(ctx, it.opts, it.offset)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}

		it.started = true
		it.offset = nextOffset

		if len(records) == 0 {
			if nextOffset == "" {
				it.done = true
				return false
			}
			continue
		}

		it.fetched += len(records)
		it.page = Page{Records: records, Fetched: it.fetched}
		return true
	}
}

// Page returns the page fetched by the last successful Next call.
func (it *PageIterator) Page() Page {
	return it.page
}

// Err returns the first error encountered during iteration.
func (it *PageIterator) Err() error {
	return it.err
}

func (c *Client) listPage(ctx context.Context, opts FetchOptions, offset string) ([]Record, string, error) {
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	for _, field := range sourceFields {
		query.Add("fields[]", field)
	}
	if opts.Since != nil {
		filterDate := opts.Since.UTC().Format("2006-01-02")
		query.Set("filterByFormula", fmt.Sprintf("IS_AFTER({Created}, '%s')", filterDate))
	}
	if offset != "" {
		query.Set("offset", offset)
	}

	return c.list(ctx, query)
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

func (c *Client) list(ctx context.Context, query url.Values) ([]Record, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s?%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.tableID), query.Encode())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create list request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read list response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("list request returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to decode list response: %w", err)
	}

	return parsed.Records, parsed.Offset, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// StringField returns the named field stringified, or "" when absent.
// Source fields are loosely typed, so numbers and booleans are rendered
// the same way the transformation rules expect.
func (r Record) StringField(name string) string {
	value, ok := r.Fields[name]
	if !ok || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
