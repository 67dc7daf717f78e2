package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_UsesNumberMatched(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"features":[{"id":"a"}],"numberMatched":42}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	count, err := c.Search(context.Background(), SearchParams{
		Collection: "sentinel-2-l2a",
		Intersects: json.RawMessage(`{"type":"Polygon","coordinates":[]}`),
		DateStart:  "2024-01-01",
		DateEnd:    "2024-02-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	assert.Equal(t, []any{"sentinel-2-l2a"}, got["collections"])
	assert.Equal(t, "2024-01-01/2024-02-01", got["datetime"])
	assert.Equal(t, float64(1), got["limit"])
}

func TestSearch_FallsBackToContextMatched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[],"context":{"matched":7}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	count, err := c.Search(context.Background(), SearchParams{Collection: "x"})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestSearch_OpenEndedInterval(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"features":[],"numberMatched":0}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	_, err := c.Search(context.Background(), SearchParams{Collection: "x", DateStart: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01/..", got["datetime"])
}

func TestHasResults(t *testing.T) {
	var collection string
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Collections []string `json:"collections"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		collection = body.Collections[0]
		fmt.Fprintf(w, `{"features":[],"numberMatched":%d}`, count)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)

	has, err := c.HasResults(context.Background(), "acme", "job-9")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, "col_job-9", collection)

	count = 3
	has, err = c.HasResults(context.Background(), "acme", "job-9")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCollectionItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[
			{"id":"i1","properties":{"datetime":"2024-05-01T10:00:00Z"},"assets":{"data":{"statistics":{"mean":0.4,"minimum":0.1,"maximum":0.8}}}},
			{"id":"i2","properties":{"datetime":"2024-05-08T10:00:00Z"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	items, err := c.CollectionItems(context.Background(), "col_job-9", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	ts, ok := items[0].Datetime()
	require.True(t, ok)
	assert.Equal(t, "2024-05-01T10:00:00Z", ts.Format("2006-01-02T15:04:05Z"))
	assert.Equal(t, 0.4, items[0].Assets["data"].Statistics.Mean)
}
