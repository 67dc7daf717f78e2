package visualization

import (
	"sort"
	"time"

	"github.com/eodatahub/action-creator/internal/stac"
)

// LinePoint is one sample of a spectral-index series.
type LinePoint struct {
	Datetime time.Time `json:"datetime"`
	Mean     float64   `json:"mean"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
}

// LineSeries is a datetime-ordered spectral-index chart series, one per
// raster asset.
type LineSeries struct {
	Name   string      `json:"name"`
	Points []LinePoint `json:"points"`
}

// SpectralIndexSeries builds line series from the statistics of every
// asset across the items. Items without a datetime or assets without
// statistics are skipped.
func SpectralIndexSeries(items []stac.Item) []LineSeries {
	byAsset := map[string][]LinePoint{}
	for i := range items {
		ts, ok := items[i].Datetime()
		if !ok {
			continue
		}
		for name, asset := range items[i].Assets {
			if asset.Statistics == nil {
				continue
			}
			byAsset[name] = append(byAsset[name], LinePoint{
				Datetime: ts,
				Mean:     asset.Statistics.Mean,
				Min:      asset.Statistics.Min,
				Max:      asset.Statistics.Max,
			})
		}
	}

	names := make([]string, 0, len(byAsset))
	for name := range byAsset {
		names = append(names, name)
	}
	sort.Strings(names)

	series := make([]LineSeries, 0, len(names))
	for _, name := range names {
		points := byAsset[name]
		sort.Slice(points, func(a, b int) bool { return points[a].Datetime.Before(points[b].Datetime) })
		series = append(series, LineSeries{Name: name, Points: points})
	}
	return series
}

// Bucket is one datetime bucket of a classification series.
type Bucket struct {
	Datetime time.Time `json:"datetime"`
	AreaKM2  float64   `json:"area_km2"`
	Percent  float64   `json:"percent"`
}

// StackedBarSeries is one class of a classification-statistics chart.
type StackedBarSeries struct {
	Name      string   `json:"name"`
	ColorHint string   `json:"color_hint,omitempty"`
	Buckets   []Bucket `json:"buckets"`
}

// ClassificationSeries builds ranged stacked-bar series from the
// classification metadata of every asset across the items: one series
// per class, one bucket per item datetime.
func ClassificationSeries(items []stac.Item) []StackedBarSeries {
	type classInfo struct {
		colorHint string
		buckets   []Bucket
	}
	byClass := map[string]*classInfo{}
	var order []string

	for i := range items {
		ts, ok := items[i].Datetime()
		if !ok {
			continue
		}
		for _, asset := range items[i].Assets {
			for _, class := range asset.Classification {
				info, seen := byClass[class.Description]
				if !seen {
					info = &classInfo{colorHint: class.ColorHint}
					byClass[class.Description] = info
					order = append(order, class.Description)
				}
				info.buckets = append(info.buckets, Bucket{
					Datetime: ts,
					AreaKM2:  class.AreaKM2,
					Percent:  class.Percent,
				})
			}
		}
	}

	series := make([]StackedBarSeries, 0, len(order))
	for _, name := range order {
		info := byClass[name]
		sort.Slice(info.buckets, func(a, b int) bool {
			return info.buckets[a].Datetime.Before(info.buckets[b].Datetime)
		})
		series = append(series, StackedBarSeries{
			Name:      name,
			ColorHint: info.colorHint,
			Buckets:   info.buckets,
		})
	}
	return series
}
