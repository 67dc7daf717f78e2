package visualization

import (
	"testing"
	"time"

	"github.com/eodatahub/action-creator/internal/stac"
)

func item(id, datetime string, assets map[string]stac.Asset) stac.Item {
	return stac.Item{
		ID:         id,
		Properties: map[string]any{"datetime": datetime},
		Assets:     assets,
	}
}

func TestSpectralIndexSeries_OrdersByDatetime(t *testing.T) {
	items := []stac.Item{
		item("late", "2024-05-08T10:00:00Z", map[string]stac.Asset{
			"ndvi": {Statistics: &stac.Statistics{Mean: 0.6, Min: 0.2, Max: 0.9}},
		}),
		item("early", "2024-05-01T10:00:00Z", map[string]stac.Asset{
			"ndvi": {Statistics: &stac.Statistics{Mean: 0.4, Min: 0.1, Max: 0.8}},
		}),
		{ID: "no-datetime", Properties: map[string]any{}},
	}

	series := SpectralIndexSeries(items)
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1", len(series))
	}
	if series[0].Name != "ndvi" {
		t.Errorf("name = %q", series[0].Name)
	}
	if len(series[0].Points) != 2 {
		t.Fatalf("points = %d, want 2", len(series[0].Points))
	}
	if !series[0].Points[0].Datetime.Before(series[0].Points[1].Datetime) {
		t.Error("points not datetime-ordered")
	}
	if series[0].Points[0].Mean != 0.4 {
		t.Errorf("first mean = %v, want 0.4", series[0].Points[0].Mean)
	}
}

func TestSpectralIndexSeries_SkipsAssetsWithoutStatistics(t *testing.T) {
	items := []stac.Item{
		item("a", "2024-05-01T10:00:00Z", map[string]stac.Asset{
			"thumbnail": {Href: "t.png"},
		}),
	}
	if got := SpectralIndexSeries(items); len(got) != 0 {
		t.Fatalf("series = %d, want 0", len(got))
	}
}

func TestClassificationSeries(t *testing.T) {
	classes := func(forest, water float64) []stac.ClassificationBand {
		return []stac.ClassificationBand{
			{Value: 1, Description: "Forest", ColorHint: "2E8B57", AreaKM2: forest, Percent: forest / 10},
			{Value: 2, Description: "Water", ColorHint: "1E90FF", AreaKM2: water, Percent: water / 10},
		}
	}
	items := []stac.Item{
		item("b", "2024-06-01T00:00:00Z", map[string]stac.Asset{
			"data": {Classification: classes(120, 30)},
		}),
		item("a", "2024-05-01T00:00:00Z", map[string]stac.Asset{
			"data": {Classification: classes(100, 40)},
		}),
	}

	series := ClassificationSeries(items)
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0].Name != "Forest" || series[1].Name != "Water" {
		t.Fatalf("series order = %s,%s", series[0].Name, series[1].Name)
	}
	if series[0].ColorHint != "2E8B57" {
		t.Errorf("color hint = %q", series[0].ColorHint)
	}

	forest := series[0].Buckets
	if len(forest) != 2 {
		t.Fatalf("forest buckets = %d, want 2", len(forest))
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !forest[0].Datetime.Equal(want) {
		t.Errorf("first bucket = %v, want %v", forest[0].Datetime, want)
	}
	if forest[0].AreaKM2 != 100 || forest[1].AreaKM2 != 120 {
		t.Errorf("forest areas = %v,%v", forest[0].AreaKM2, forest[1].AreaKM2)
	}
}
