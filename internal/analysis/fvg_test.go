package analysis

import (
	"testing"

	"ict-dashboard/internal/market"
)

func TestFVGDetector_BullishGap(t *testing.T) {
	// c1.high=100, c3.low=105: a bullish gap [100, 105] anchored at c2.
	candles := []market.Candle{
		mkCandle(1000, 99, 100, 98, 99.5),
		mkCandle(1060, 100, 106, 100, 105.5),
		mkCandle(1120, 105.5, 107, 105, 106),
	}

	gaps := NewFVGDetector().Detect(candles)
	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d", len(gaps))
	}

	gap := gaps[0]
	if gap.Direction != Bullish {
		t.Errorf("Expected bullish gap, got %s", gap.Direction)
	}
	if gap.PriceLow != 100 || gap.PriceHigh != 105 {
		t.Errorf("Expected gap [100, 105], got [%v, %v]", gap.PriceLow, gap.PriceHigh)
	}
	if gap.Time != 1060 {
		t.Errorf("Gap must anchor at the middle candle, got t=%d", gap.Time)
	}
}

func TestFVGDetector_BearishGap(t *testing.T) {
	candles := []market.Candle{
		mkCandle(1000, 106, 107, 105, 106.5),
		mkCandle(1060, 105, 105, 99, 99.5),
		mkCandle(1120, 99.5, 100, 98, 99),
	}

	gaps := NewFVGDetector().Detect(candles)
	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d", len(gaps))
	}
	gap := gaps[0]
	if gap.Direction != Bearish {
		t.Errorf("Expected bearish gap, got %s", gap.Direction)
	}
	if gap.PriceLow != 100 || gap.PriceHigh != 105 {
		t.Errorf("Expected gap [100, 105], got [%v, %v]", gap.PriceLow, gap.PriceHigh)
	}
}

func TestFVGDetector_PartialFillRetainsGap(t *testing.T) {
	// A later wick into the gap that stays above its lower bound is not
	// mitigation.
	candles := []market.Candle{
		mkCandle(1000, 99, 100, 98, 99.5),
		mkCandle(1060, 100, 106, 100, 105.5),
		mkCandle(1120, 105.5, 107, 105, 106),
		mkCandle(1180, 106, 106.5, 102, 104),
	}

	gaps := NewFVGDetector().Detect(candles)
	if len(gaps) != 1 {
		t.Fatalf("Partially filled gap must remain, got %d gaps", len(gaps))
	}
}

func TestFVGDetector_MitigationIsPermanent(t *testing.T) {
	// Once a low trades below the gap's lower bound the gap is gone, no
	// matter what later candles do.
	candles := []market.Candle{
		mkCandle(1000, 99, 100, 98, 99.5),
		mkCandle(1060, 100, 106, 100, 105.5),
		mkCandle(1120, 105.5, 107, 105, 106),
		mkCandle(1180, 106, 106.5, 99.5, 104),
		mkCandle(1240, 104, 108, 103.5, 107.5),
	}

	gaps := NewFVGDetector().Detect(candles)
	for _, gap := range gaps {
		if gap.Time == 1060 {
			t.Fatalf("Mitigated gap must never reappear, got %+v", gap)
		}
	}
}

func TestFVGDetector_SilverBulletTag(t *testing.T) {
	// 2024-01-15 10:00 UTC, inside a Silver Bullet window.
	sbTime := int64(1705312800)
	candles := []market.Candle{
		mkCandle(sbTime-60, 99, 100, 98, 99.5),
		mkCandle(sbTime, 100, 106, 100, 105.5),
		mkCandle(sbTime+60, 105.5, 107, 105, 106),
	}

	gaps := NewFVGDetector().Detect(candles)
	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d", len(gaps))
	}
	if !gaps[0].IsSilverBulletWindow {
		t.Error("Gap forming at 10:00 UTC must carry the Silver Bullet tag")
	}

	// Same shape one hour earlier is not tagged.
	for i := range candles {
		candles[i].Time -= 3600
	}
	gaps = NewFVGDetector().Detect(candles)
	if len(gaps) != 1 || gaps[0].IsSilverBulletWindow {
		t.Error("Gap outside a Silver Bullet window must not be tagged")
	}
}

func TestIsSilverBulletHour(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{3, true},
		{10, true},
		{14, true},
		{0, false},
		{9, false},
		{15, false},
		{23, false},
	}
	for _, tt := range tests {
		if got := IsSilverBulletHour(tt.hour); got != tt.want {
			t.Errorf("IsSilverBulletHour(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestFVGDetector_ShortSeries(t *testing.T) {
	candles := []market.Candle{
		mkCandle(1000, 99, 100, 98, 99.5),
		mkCandle(1060, 100, 106, 100, 105.5),
	}
	if gaps := NewFVGDetector().Detect(candles); gaps != nil {
		t.Errorf("Expected no gaps below 3 candles, got %d", len(gaps))
	}
}
