package market

import "time"

// Candle represents one OHLC bar. Time is seconds since epoch, UTC.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low extent of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// HourUTC returns the candle's hour of day in UTC. Session boundaries
// are defined in UTC, so this must never use the local zone.
func (c Candle) HourUTC() int {
	return time.Unix(c.Time, 0).UTC().Hour()
}

// DayStartUTC returns the epoch second of midnight UTC on the candle's day.
func (c Candle) DayStartUTC() int64 {
	t := time.Unix(c.Time, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
