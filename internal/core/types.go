package core

import "time"

// Observation is a single timestamped value of a price, volume or index series.
type Observation struct {
	Time  time.Time
	Value float64
}

// Point is the price and volume of an asset observed at one instant
type Point struct {
	Asset    string
	Currency string
	Price    float64
	Volume   float64
	Time     time.Time
	Source   string
}

// IsValid checks if the point has the fields the engine needs
func (p Point) IsValid() bool {
	return p.Price > 0 && !p.Time.IsZero()
}

// Regime classifies where the current price sits relative to the cycle bands
type Regime string

const (
	RegimeAccumulation Regime = "accumulation"
	RegimeDistribution Regime = "distribution"
	RegimeNeutral      Regime = "neutral"
)
