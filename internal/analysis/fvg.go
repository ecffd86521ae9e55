package analysis

import (
	"ict-dashboard/internal/market"
)

// FVG represents a Fair Value Gap: a three-candle price imbalance expected
// to attract retracement.
type FVG struct {
	Time                 int64     `json:"time"`
	PriceHigh            float64   `json:"priceHigh"`
	PriceLow             float64   `json:"priceLow"`
	Direction            Direction `json:"direction"`
	Mitigated            bool      `json:"mitigated"`
	IsSilverBulletWindow bool      `json:"isSilverBulletWindow"`
}

// IsSilverBulletHour reports whether the UTC hour falls in a Silver Bullet
// window (03:00, 10:00, 14:00 UTC).
func IsSilverBulletHour(hour int) bool {
	return hour == 3 || hour == 10 || hour == 14
}

// FVGDetector detects Fair Value Gaps in candlestick data.
type FVGDetector struct{}

// NewFVGDetector creates a new FVG detector.
func NewFVGDetector() *FVGDetector {
	return &FVGDetector{}
}

// Detect returns the currently unmitigated gaps, anchored at the middle
// candle of each qualifying triple. A bullish gap is mitigated the first
// time a later candle's low trades below the gap's lower bound; bearish
// gaps mirror with highs.
func (fd *FVGDetector) Detect(candles []market.Candle) []FVG {
	if len(candles) < 3 {
		return nil
	}

	var gaps []FVG
	for i := 0; i < len(candles)-2; i++ {
		c1 := candles[i]
		c2 := candles[i+1] // gap creator
		c3 := candles[i+2]

		if c1.High < c3.Low {
			gap := FVG{
				Time:                 c2.Time,
				PriceHigh:            c3.Low,
				PriceLow:             c1.High,
				Direction:            Bullish,
				IsSilverBulletWindow: IsSilverBulletHour(c2.HourUTC()),
			}
			if !gapMitigated(gap, candles[i+3:]) {
				gaps = append(gaps, gap)
			}
		}

		if c1.Low > c3.High {
			gap := FVG{
				Time:                 c2.Time,
				PriceHigh:            c1.Low,
				PriceLow:             c3.High,
				Direction:            Bearish,
				IsSilverBulletWindow: IsSilverBulletHour(c2.HourUTC()),
			}
			if !gapMitigated(gap, candles[i+3:]) {
				gaps = append(gaps, gap)
			}
		}
	}

	return gaps
}

// gapMitigated reports whether any later candle fully traded through the gap.
func gapMitigated(gap FVG, later []market.Candle) bool {
	for _, c := range later {
		if gap.Direction == Bullish && c.Low < gap.PriceLow {
			return true
		}
		if gap.Direction == Bearish && c.High > gap.PriceHigh {
			return true
		}
	}
	return false
}
