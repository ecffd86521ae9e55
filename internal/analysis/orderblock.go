package analysis

import (
	"ict-dashboard/internal/market"
)

// OrderBlockSubtype distinguishes a standard block from one that has been
// closed through and flipped.
type OrderBlockSubtype string

const (
	StandardBlock OrderBlockSubtype = "standard"
	BreakerBlock  OrderBlockSubtype = "breaker"
)

// OrderBlock is the price zone of a candle that originated an impulsive move.
type OrderBlock struct {
	Time      int64             `json:"time"`
	PriceHigh float64           `json:"priceHigh"`
	PriceLow  float64           `json:"priceLow"`
	Direction Direction         `json:"direction"`
	Subtype   OrderBlockSubtype `json:"subtype"`
	Mitigated bool              `json:"mitigated"`
}

const (
	maxOrderBlocks     = 10  // cap on blocks returned to callers
	bodyLookbackWindow = 100 // trailing window for mean body size
)

// OrderBlockDetector detects impulsive-move origin candles and tracks their
// breaker/mitigation state.
type OrderBlockDetector struct {
	impulseMultiplier float64 // impulse threshold as multiple of mean body
}

// NewOrderBlockDetector creates a new order block detector.
func NewOrderBlockDetector(impulseMultiplier float64) *OrderBlockDetector {
	if impulseMultiplier <= 0 {
		impulseMultiplier = 1.5
	}
	return &OrderBlockDetector{impulseMultiplier: impulseMultiplier}
}

// Detect returns the currently unmitigated order blocks, capped to the most
// recent ten. State transitions use closing prices, never wicks: a standard
// block flips to a breaker (direction inverted) the first time price closes
// through its far edge, and a breaker is mitigated the first time price
// closes back through its own far edge.
func (od *OrderBlockDetector) Detect(candles []market.Candle) []OrderBlock {
	if len(candles) < 6 {
		return nil
	}

	threshold := od.impulseThreshold(candles)
	if threshold <= 0 {
		return nil
	}

	type origin struct {
		index int
		block OrderBlock
	}

	// Detection pass: a bearish candle followed by a bullish impulse closing
	// above its high is a bullish origin, and vice versa.
	var origins []origin
	for i := 2; i < len(candles)-3; i++ {
		c := candles[i]
		next := candles[i+1]

		if c.IsBearish() && next.IsBullish() && next.Body() > threshold && next.Close > c.High {
			origins = append(origins, origin{
				index: i,
				block: OrderBlock{
					Time:      c.Time,
					PriceHigh: c.High,
					PriceLow:  c.Low,
					Direction: Bullish,
					Subtype:   StandardBlock,
				},
			})
		}

		if c.IsBullish() && next.IsBearish() && next.Body() > threshold && next.Close < c.Low {
			origins = append(origins, origin{
				index: i,
				block: OrderBlock{
					Time:      c.Time,
					PriceHigh: c.High,
					PriceLow:  c.Low,
					Direction: Bearish,
					Subtype:   StandardBlock,
				},
			})
		}
	}

	// Mitigation pass: walk each block's future once, carrying flip state.
	var active []OrderBlock
	for _, o := range origins {
		block := o.block
		for j := o.index + 1; j < len(candles); j++ {
			closePrice := candles[j].Close

			if block.Subtype == StandardBlock {
				if block.Direction == Bullish && closePrice < block.PriceLow {
					block.Subtype = BreakerBlock
					block.Direction = Bearish
				} else if block.Direction == Bearish && closePrice > block.PriceHigh {
					block.Subtype = BreakerBlock
					block.Direction = Bullish
				}
				continue
			}

			// Breaker invalidation closes back through the original zone.
			if block.Direction == Bearish && closePrice > block.PriceHigh {
				block.Mitigated = true
				break
			}
			if block.Direction == Bullish && closePrice < block.PriceLow {
				block.Mitigated = true
				break
			}
		}

		if !block.Mitigated {
			active = append(active, block)
		}
	}

	if len(active) > maxOrderBlocks {
		active = active[len(active)-maxOrderBlocks:]
	}

	return active
}

// impulseThreshold computes the minimum body size that counts as an impulse.
func (od *OrderBlockDetector) impulseThreshold(candles []market.Candle) float64 {
	start := len(candles) - bodyLookbackWindow
	if start < 0 {
		start = 0
	}

	sum := 0.0
	count := 0
	for _, c := range candles[start:] {
		sum += c.Body()
		count++
	}
	if count == 0 {
		return 0
	}

	return (sum / float64(count)) * od.impulseMultiplier
}
