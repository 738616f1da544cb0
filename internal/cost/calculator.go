// Package cost prices backfill requests against the remote data service.
package cost

import (
	"math"
	"time"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	StorTrack StorTrackRate `yaml:"stortrack" mapstructure:"stortrack"`
}

// StorTrackRate holds historical data pricing. The service bills one unit
// per store per calendar year of history requested.
type StorTrackRate struct {
	YearPrice float64 `yaml:"year_price" mapstructure:"year_price"`
}

// Calculator computes costs for remote usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. A zero year price
// falls back to the default.
func NewCalculator(rates Rates) *Calculator {
	if rates.StorTrack.YearPrice <= 0 {
		rates.StorTrack.YearPrice = DefaultRates().StorTrack.YearPrice
	}
	return &Calculator{rates: rates}
}

// YearPrice returns the unit price per entity-year.
func (c *Calculator) YearPrice() float64 {
	return c.rates.StorTrack.YearPrice
}

// PerEntity computes the cost of years calendar years for one entity.
func (c *Calculator) PerEntity(years int) float64 {
	return c.Backfill(years, 1)
}

// Backfill computes years × entities × unit price, rounded to cents.
func (c *Calculator) Backfill(years, entities int) float64 {
	if years <= 0 || entities <= 0 {
		return 0
	}
	return roundCents(float64(years) * float64(entities) * c.rates.StorTrack.YearPrice)
}

// Duration estimates the minimum wall time for calls requests under an
// hourly allowance. Calls within the first hour's allowance cost nothing.
func Duration(calls, hourlyLimit int) time.Duration {
	if calls <= 0 || hourlyLimit <= 0 || calls <= hourlyLimit {
		return 0
	}
	hours := (calls - 1) / hourlyLimit
	return time.Duration(hours) * time.Hour
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		StorTrack: StorTrackRate{YearPrice: 12.50},
	}
}
