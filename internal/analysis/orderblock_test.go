package analysis

import (
	"testing"

	"ict-dashboard/internal/market"
)

// baseSeries returns quiet candles plus a bearish origin candle (index 10)
// and a bullish impulse (index 11) that closes above the origin's high.
func baseSeries() []market.Candle {
	var candles []market.Candle
	t := int64(1000)
	for i := 0; i < 10; i++ {
		candles = append(candles, mkCandle(t, 100, 101, 99.5, 100.5))
		t += 60
	}
	candles = append(candles, mkCandle(t, 100.5, 100.6, 99.4, 99.5)) // origin
	t += 60
	candles = append(candles, mkCandle(t, 99.5, 103.2, 99.4, 103)) // impulse
	t += 60
	for i := 0; i < 3; i++ {
		candles = append(candles, mkCandle(t, 103, 103.4, 102.8, 103.2))
		t += 60
	}
	return candles
}

func TestOrderBlockDetector_BullishOrigin(t *testing.T) {
	blocks := NewOrderBlockDetector(1.5).Detect(baseSeries())
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}

	ob := blocks[0]
	if ob.Time != 1600 {
		t.Errorf("Block should anchor at the origin candle (t=1600), got %d", ob.Time)
	}
	if ob.PriceHigh != 100.6 || ob.PriceLow != 99.4 {
		t.Errorf("Expected zone [99.4, 100.6], got [%v, %v]", ob.PriceLow, ob.PriceHigh)
	}
	if ob.Direction != Bullish || ob.Subtype != StandardBlock {
		t.Errorf("Expected standard bullish block, got %s %s", ob.Subtype, ob.Direction)
	}
	if ob.Mitigated {
		t.Error("Fresh block must not be mitigated")
	}
}

func TestOrderBlockDetector_BearishOrigin(t *testing.T) {
	var candles []market.Candle
	ts := int64(1000)
	for i := 0; i < 10; i++ {
		candles = append(candles, mkCandle(ts, 100, 100.5, 99, 99.5))
		ts += 60
	}
	candles = append(candles, mkCandle(ts, 99.5, 100.6, 99.4, 100.5)) // origin
	ts += 60
	candles = append(candles, mkCandle(ts, 100.5, 100.6, 96.9, 97)) // impulse down
	ts += 60
	for i := 0; i < 3; i++ {
		candles = append(candles, mkCandle(ts, 97, 97.4, 96.8, 97.2))
		ts += 60
	}

	blocks := NewOrderBlockDetector(1.5).Detect(candles)
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	if blocks[0].Direction != Bearish || blocks[0].Subtype != StandardBlock {
		t.Errorf("Expected standard bearish block, got %s %s", blocks[0].Subtype, blocks[0].Direction)
	}
}

func TestOrderBlockDetector_WickDoesNotFlip(t *testing.T) {
	// A wick below the zone with a close back inside must not change state.
	candles := append(baseSeries(), mkCandle(2000, 100, 100.2, 99.0, 99.6))

	blocks := NewOrderBlockDetector(1.5).Detect(candles)
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	if blocks[0].Subtype != StandardBlock || blocks[0].Direction != Bullish {
		t.Errorf("Wick-only violation must not flip the block, got %s %s",
			blocks[0].Subtype, blocks[0].Direction)
	}
}

func TestOrderBlockDetector_BreakerFlip(t *testing.T) {
	// Closing below the bullish zone's low flips it to a bearish breaker.
	candles := append(baseSeries(), mkCandle(2000, 103.2, 103.3, 98.9, 99.0))

	blocks := NewOrderBlockDetector(1.5).Detect(candles)
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	if blocks[0].Subtype != BreakerBlock {
		t.Errorf("Expected breaker after close-through, got %s", blocks[0].Subtype)
	}
	if blocks[0].Direction != Bearish {
		t.Errorf("Flipped block must invert direction, got %s", blocks[0].Direction)
	}
}

func TestOrderBlockDetector_BreakerMitigation(t *testing.T) {
	// Flip, then close back above the zone's high: the breaker is mitigated
	// and must never reappear in output.
	candles := append(baseSeries(),
		mkCandle(2000, 103.2, 103.3, 98.9, 99.0),
		mkCandle(2060, 99.0, 101.2, 98.9, 101.0),
	)

	blocks := NewOrderBlockDetector(1.5).Detect(candles)
	for _, ob := range blocks {
		if ob.Time == 1600 {
			t.Fatalf("Mitigated breaker must be excluded from output, got %+v", ob)
		}
	}
}

func TestOrderBlockDetector_ShortSeries(t *testing.T) {
	candles := baseSeries()[:5]
	if blocks := NewOrderBlockDetector(1.5).Detect(candles); blocks != nil {
		t.Errorf("Expected no blocks for short series, got %d", len(blocks))
	}
}
