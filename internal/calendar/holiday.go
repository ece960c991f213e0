package calendar

import "time"

// HolidayProvider reports exchange holidays. Implementations decide the
// source: a static config list, a published holiday file, etc.
type HolidayProvider interface {
	IsHoliday(t time.Time) bool
}

// DateSet is a HolidayProvider backed by a fixed set of YYYY-MM-DD
// dates, typically read from configuration.
type DateSet map[string]struct{}

// Ensure DateSet implements HolidayProvider.
var _ HolidayProvider = DateSet{}

// NewDateSet builds a DateSet from date strings, skipping blanks.
func NewDateSet(dates []string) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		if d == "" {
			continue
		}
		set[d] = struct{}{}
	}
	return set
}

// IsHoliday returns true when t's local date is in the set.
func (s DateSet) IsHoliday(t time.Time) bool {
	_, ok := s[t.Format(dateLayout)]
	return ok
}
