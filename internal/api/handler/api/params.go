// internal/api/handler/api/params.go
package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
)

// parseTime accepts a calendar date or an RFC 3339 timestamp. Empty input
// yields the zero time so the service applies its defaults.
func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, core.Errorf(core.ErrInvalidParameter,
			"%s must be YYYY-MM-DD or RFC 3339, got %q", name, value)
	}
	return t.UTC(), nil
}

func parseBool(q url.Values, name string) (bool, error) {
	value := q.Get(name)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, core.Errorf(core.ErrInvalidParameter, "%s must be a boolean, got %q", name, value)
	}
	return b, nil
}
