package digest

import (
	"errors"

	"ghdash/internal/validation"
)

var ErrInvalidPeriod = errors.New("period must be 'daily' or 'weekly'")

// Period is the activity window a digest covers.
type Period string

const (
	Daily  Period = "daily"
	Weekly Period = "weekly"
)

// PageSize is the number of events requested for the window.
func (p Period) PageSize() int {
	if p == Weekly {
		return 100
	}
	return 30
}

// ParsePeriod accepts exactly "daily" or "weekly"; an empty value means
// daily.
func ParsePeriod(raw string) (Period, error) {
	if raw == "" {
		return Daily, nil
	}
	if err := validation.Get().Var(raw, "oneof=daily weekly"); err != nil {
		return "", ErrInvalidPeriod
	}
	return Period(raw), nil
}
