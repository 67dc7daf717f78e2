package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Item is a STAC item, read loosely: the builders only need datetime
// properties and asset statistics.
type Item struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	Properties map[string]any   `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// Asset carries the per-asset statistics and classification metadata
// emitted by processing jobs.
type Asset struct {
	Href           string               `json:"href"`
	Roles          []string             `json:"roles,omitempty"`
	Statistics     *Statistics          `json:"statistics,omitempty"`
	Classification []ClassificationBand `json:"classification:classes,omitempty"`
}

// Statistics summarizes one raster asset.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"minimum"`
	Max    float64 `json:"maximum"`
	Stddev float64 `json:"stddev"`
	Valid  float64 `json:"valid_percent"`
}

// ClassificationBand describes one class of a classified raster.
type ClassificationBand struct {
	Value       int     `json:"value"`
	Description string  `json:"description"`
	ColorHint   string  `json:"color-hint,omitempty"`
	AreaKM2     float64 `json:"area_km2"`
	Percent     float64 `json:"percent"`
}

// Datetime extracts the item's datetime property.
func (i *Item) Datetime() (time.Time, bool) {
	raw, ok := i.Properties["datetime"].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SearchParams describes a catalog probe.
type SearchParams struct {
	Collection string
	Intersects json.RawMessage
	DateStart  string
	DateEnd    string
}

type searchRequest struct {
	Collections []string        `json:"collections,omitempty"`
	Intersects  json.RawMessage `json:"intersects,omitempty"`
	Datetime    string          `json:"datetime,omitempty"`
	Limit       int             `json:"limit"`
}

type featureCollection struct {
	Features      []Item `json:"features"`
	NumberMatched *int   `json:"numberMatched"`
	Context       *struct {
		Matched int `json:"matched"`
	} `json:"context"`
}

// Client talks to a STAC API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
	timeout    time.Duration
}

// NewClient builds a STAC client.
func NewClient(baseURL string, httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, log: log, timeout: 30 * time.Second}
}

// Search probes the catalog and returns the matched count. It requests
// a single feature; the count comes from the response metadata.
func (c *Client) Search(ctx context.Context, params SearchParams) (int, error) {
	reqBody := searchRequest{
		Intersects: params.Intersects,
		Limit:      1,
	}
	if params.Collection != "" {
		reqBody.Collections = []string{params.Collection}
	}
	if params.DateStart != "" || params.DateEnd != "" {
		reqBody.Datetime = datetimeInterval(params.DateStart, params.DateEnd)
	}

	fc, err := c.search(ctx, c.baseURL+"/search", reqBody)
	if err != nil {
		return 0, err
	}
	if fc.NumberMatched != nil {
		return *fc.NumberMatched, nil
	}
	if fc.Context != nil {
		return fc.Context.Matched, nil
	}
	return len(fc.Features), nil
}

// CollectionItems fetches the items of a results collection, for chart
// building.
func (c *Client) CollectionItems(ctx context.Context, collection string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 100
	}
	fc, err := c.search(ctx, c.baseURL+"/search", searchRequest{
		Collections: []string{collection},
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	return fc.Features, nil
}

func (c *Client) search(ctx context.Context, endpoint string, body searchRequest) (*featureCollection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog search failed: status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &fc, nil
}

func datetimeInterval(start, end string) string {
	if start == "" {
		start = ".."
	}
	if end == "" {
		end = ".."
	}
	return start + "/" + end
}
