package geo

import (
	"time"

	"github.com/eodatahub/action-creator/internal/apperr"
)

// collectionBounds holds the temporal extent of a dataset collection.
// A zero time means the bound is open on that side.
type collectionBounds struct {
	lower time.Time
	upper time.Time
}

var temporalBounds = map[string]collectionBounds{
	"sentinel-2-l2a":     {lower: mustDate("2015-06-27")},
	"sentinel-2-l2a-ard": {lower: mustDate("2015-06-27")},
	"sentinel-1-grd":     {lower: mustDate("2014-10-10")},
	"esa-lccci-glcm":     {lower: mustDate("1992-01-01"), upper: mustDate("2015-12-31")},
	"clms-corine-lc":     {lower: mustDate("1990-01-01"), upper: mustDate("2018-12-31")},
	"clms-water-bodies":  {lower: mustDate("2020-01-01")},
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a date in either RFC 3339 or YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
	}
	return t, err
}

// ValidateDateRange checks that end does not precede start. Either side may
// be nil, in which case the range is open and always valid.
func ValidateDateRange(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if end.Before(*start) {
		return apperr.Newf("invalid_date_range_error",
			"invalid date range: end date %s precedes start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02")).
			With("date_start", start.Format(time.RFC3339)).
			With("date_end", end.Format(time.RFC3339))
	}
	return nil
}

// ValidateCollectionDateRange checks the requested dates against the
// collection's temporal extent. Collections without a registered extent
// accept any range.
func ValidateCollectionDateRange(collection string, start, end *time.Time) error {
	bounds, ok := temporalBounds[collection]
	if !ok {
		return nil
	}

	fail := func(msg string) error {
		e := apperr.Newf("stac_date_range_error", "%s", msg).
			With("collection", collection)
		if !bounds.lower.IsZero() {
			e.With("valid_from", bounds.lower.Format("2006-01-02"))
		}
		if !bounds.upper.IsZero() {
			e.With("valid_to", bounds.upper.Format("2006-01-02"))
		}
		return e
	}

	if start != nil {
		if !bounds.lower.IsZero() && start.Before(bounds.lower) {
			return fail("date range starts before the collection's temporal extent")
		}
		if !bounds.upper.IsZero() && start.After(bounds.upper.Add(24*time.Hour)) {
			return fail("date range starts after the collection's temporal extent")
		}
	}
	if end != nil {
		if !bounds.upper.IsZero() && end.After(bounds.upper.Add(24*time.Hour)) {
			return fail("date range ends after the collection's temporal extent")
		}
		if !bounds.lower.IsZero() && end.Before(bounds.lower) {
			return fail("date range ends before the collection's temporal extent")
		}
	}
	return nil
}
