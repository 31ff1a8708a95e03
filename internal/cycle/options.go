package cycle

import (
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/indicator"
)

// Default engine parameters. 730 daily observations is roughly two years.
const (
	DefaultWindow           = 730
	DefaultVolumeWindowDays = 30
)

// Options parameterizes one engine
type Options struct {
	Window           int
	Multiplier       float64
	VolumeWindowDays int
	IncludeHalvings  bool
}

// DefaultOptions returns the two-year, x5 configuration
func DefaultOptions() Options {
	return Options{
		Window:           DefaultWindow,
		Multiplier:       indicator.DefaultMultiplier,
		VolumeWindowDays: DefaultVolumeWindowDays,
	}
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	if o.Window <= 0 {
		return core.Errorf(core.ErrInvalidParameter, "window must be positive, got %d", o.Window)
	}
	if o.Multiplier <= 0 {
		return core.Errorf(core.ErrInvalidParameter, "multiplier must be positive, got %g", o.Multiplier)
	}
	if o.VolumeWindowDays <= 0 {
		return core.Errorf(core.ErrInvalidParameter,
			"volume window days must be positive, got %d", o.VolumeWindowDays)
	}
	return nil
}
