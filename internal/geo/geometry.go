package geo

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/eodatahub/action-creator/internal/apperr"
)

const (
	// DefaultAreaLimitKM2 is the maximum geodesic area of an AOI polygon.
	DefaultAreaLimitKM2 = 1000.0

	squareMilesPerKM2 = 0.386102
)

// ParsePolygon decodes a GeoJSON geometry and requires it to be a Polygon.
func ParsePolygon(raw json.RawMessage) (orb.Polygon, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrMissingAreaOfInterest()
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, apperr.Newf("missing_area_of_interest_error",
			"area of interest is not a valid GeoJSON geometry: %v", err)
	}

	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, apperr.Newf("missing_area_of_interest_error",
			"area of interest must be a GeoJSON Polygon, got %s", g.Type)
	}

	return poly, nil
}

// ErrMissingAreaOfInterest is the error returned when no AOI was supplied.
func ErrMissingAreaOfInterest() *apperr.Error {
	return apperr.New("missing_area_of_interest_error", "area of interest is missing")
}

// AreaKM2 returns the geodesic surface of the polygon in square kilometers.
func AreaKM2(p orb.Polygon) float64 {
	return math.Abs(orbgeo.Area(p)) / 1e6
}

// EnsureAreaWithinLimit validates that the polygon's geodesic surface does not
// exceed limitKM2. The returned error carries metric and imperial limits for
// client display.
func EnsureAreaWithinLimit(p orb.Polygon, limitKM2 float64) error {
	if p == nil {
		return ErrMissingAreaOfInterest()
	}
	if limitKM2 <= 0 {
		limitKM2 = DefaultAreaLimitKM2
	}

	area := AreaKM2(p)
	if area <= limitKM2 {
		return nil
	}

	return apperr.Newf("area_of_interest_too_big_error",
		"area of interest is too big: %.2f square kilometers exceeds the limit of %.0f square kilometers",
		area, limitKM2).
		With("aoi", geojson.NewGeometry(p)).
		With("max_size_metric", limitKM2).
		With("max_size_imperial", limitKM2*squareMilesPerKM2).
		With("units_metric", "square kilometers").
		With("units_imperial", "square miles")
}

// PolygonJSON encodes the polygon back to a GeoJSON geometry string.
func PolygonJSON(p orb.Polygon) (string, error) {
	raw, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ExceedsLimit reports whether the polygon's area is above limitKM2.
func ExceedsLimit(p orb.Polygon, limitKM2 float64) bool {
	if limitKM2 <= 0 {
		limitKM2 = DefaultAreaLimitKM2
	}
	return AreaKM2(p) > limitKM2
}
