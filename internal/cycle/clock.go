package cycle

import "time"

// Clock supplies the current time for default date ranges
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
