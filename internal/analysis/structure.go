package analysis

import (
	"math"

	"ict-dashboard/internal/market"
)

// Direction represents a directional read of price action.
type Direction string

const (
	Bullish       Direction = "bullish"
	Bearish       Direction = "bearish"
	DirectionNone Direction = "none"
)

// Opposite returns the inverse direction. None stays None.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return DirectionNone
	}
}

// StructureKind classifies a swing pivot relative to the previous pivot
// on the same side.
type StructureKind string

const (
	HigherHigh StructureKind = "higher_high"
	LowerHigh  StructureKind = "lower_high"
	HigherLow  StructureKind = "higher_low"
	LowerLow   StructureKind = "lower_low"
)

// StructurePoint is a classified swing pivot. The direction tag denotes the
// swing-completion bias: highs complete bearish swings, lows bullish ones.
type StructurePoint struct {
	Time      int64         `json:"time"`
	Price     float64       `json:"price"`
	Kind      StructureKind `json:"kind"`
	Direction Direction     `json:"direction"`
}

// IsLow reports whether the point sits on the low side of price.
func (sp StructurePoint) IsLow() bool {
	return sp.Kind == LowerLow || sp.Kind == HigherLow
}

// IsHigh reports whether the point sits on the high side of price.
func (sp StructurePoint) IsHigh() bool {
	return sp.Kind == HigherHigh || sp.Kind == LowerHigh
}

// StructureDetector finds swing pivots in candlestick data.
type StructureDetector struct {
	swingLength int // candles required on each side of a pivot
}

// NewStructureDetector creates a new structure detector.
func NewStructureDetector(swingLength int) *StructureDetector {
	if swingLength <= 0 {
		swingLength = 5
	}
	return &StructureDetector{swingLength: swingLength}
}

// Detect returns all classified swing pivots in the series, ordered by time.
// Classification is final once emitted: only candles strictly in the past of
// the scan are considered, so replays over supersets never revise a point.
func (sd *StructureDetector) Detect(candles []market.Candle) []StructurePoint {
	n := len(candles)
	if n < 2*sd.swingLength+1 {
		return nil
	}

	type pivot struct {
		index  int
		price  float64
		isHigh bool
	}

	var pivots []pivot
	for i := sd.swingLength; i < n-sd.swingLength; i++ {
		pivotHigh := true
		pivotLow := true
		for j := i - sd.swingLength; j <= i+sd.swingLength; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				pivotHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				pivotLow = false
			}
			if !pivotHigh && !pivotLow {
				break
			}
		}
		if pivotHigh {
			pivots = append(pivots, pivot{index: i, price: candles[i].High, isHigh: true})
		}
		if pivotLow {
			pivots = append(pivots, pivot{index: i, price: candles[i].Low, isHigh: false})
		}
	}

	points := make([]StructurePoint, 0, len(pivots))
	lastHigh := 0.0
	lastLow := math.MaxFloat64

	for _, p := range pivots {
		if p.isHigh {
			kind := LowerHigh
			if p.price > lastHigh {
				kind = HigherHigh
			}
			points = append(points, StructurePoint{
				Time:      candles[p.index].Time,
				Price:     p.price,
				Kind:      kind,
				Direction: Bearish,
			})
			lastHigh = p.price
		} else {
			kind := HigherLow
			if p.price < lastLow {
				kind = LowerLow
			}
			points = append(points, StructurePoint{
				Time:      candles[p.index].Time,
				Price:     p.price,
				Kind:      kind,
				Direction: Bullish,
			})
			lastLow = p.price
		}
	}

	return points
}
