package signals

import (
	"fmt"

	"ict-dashboard/internal/analysis"
	"ict-dashboard/internal/market"
)

// SetupGrade is a coarse confidence tier derived from the composite score.
type SetupGrade string

const (
	GradeB      SetupGrade = "B"
	GradeAPlus  SetupGrade = "A+"
	GradeAPlus2 SetupGrade = "A++"
)

// TradeStyle distinguishes scalp entries from day-trade entries.
type TradeStyle string

const (
	StyleScalp    TradeStyle = "scalp"
	StyleDayTrade TradeStyle = "daytrade"
)

// Setup model names. When several setups overlap on one candle, all of their
// score additions accumulate but the label is last-writer-wins in the order
// 2022 Model, Unicorn, Silver Bullet.
const (
	SetupOrderBlock   = "Order Block Retest"
	SetupFVG          = "FVG Entry"
	SetupPowerOfThree = "Power of 3"
	Setup2022Model    = "2022 Model"
	SetupUnicorn      = "Unicorn"
	SetupSilverBullet = "Silver Bullet"
)

// SweptLevel records the structure level taken out by a liquidity sweep.
type SweptLevel struct {
	Price float64                `json:"price"`
	Time  int64                  `json:"time"`
	Kind  analysis.StructureKind `json:"kind"`
}

// EntrySignal is a composite, scored trade idea. It is immutable once
// emitted; backtest outcomes are attached in a separate record.
type EntrySignal struct {
	Time              int64                 `json:"time"`
	Direction         analysis.Direction    `json:"direction"`
	Price             float64               `json:"price"`
	Score             int                   `json:"score"`
	ConfluenceReasons []string              `json:"confluenceReasons"`
	StopLoss          float64               `json:"stopLoss"`
	TakeProfit        float64               `json:"takeProfit"`
	WinProbability    int                   `json:"winProbability"`
	Style             TradeStyle            `json:"style"`
	PO3Phase          analysis.SessionPhase `json:"po3Phase"`
	SetupName         string                `json:"setupName"`
	SetupGrade        SetupGrade            `json:"setupGrade"`
	ConfluenceLevel   *float64              `json:"confluenceLevel,omitempty"`
	SweptLevel        *SweptLevel           `json:"sweptLevel,omitempty"`
}

const (
	warmupBars         = 100 // minimum history before any signal
	cooldownSeconds    = 900 // minimum spacing between signals
	minScore           = 4
	dealingRangeBars   = 50
	sweepLookbackBars  = 30
	sweepMaxAgeSeconds = 4 * 3600
	stopBufferFraction = 0.0005 // 0.05% of price
	riskRewardRatio    = 2.0
	maxWinProbability  = 99
)

// Input carries everything one synthesis pass consumes. Bias, when non-nil,
// threads the prior pass's matrix through for session chaining; it is never
// stored between calls.
type Input struct {
	Candles     []market.Candle
	OrderBlocks []analysis.OrderBlock
	FVGs        []analysis.FVG
	Structure   []analysis.StructurePoint
	Timeframe   string
	Bias        *analysis.BiasMatrix
}

// Synthesize walks the candle series once and emits scored, graded entry
// signals. It returns the signals and the refreshed bias matrix.
func Synthesize(in Input) ([]EntrySignal, analysis.BiasMatrix) {
	var bias analysis.BiasMatrix
	if in.Bias != nil {
		bias = *in.Bias
	}
	bias.Asia, bias.London, bias.NewYork = analysis.AnalyzeSessions(in.Candles)

	if len(in.Candles) <= warmupBars {
		return nil, bias
	}

	scalpTF := market.IsScalpingTimeframe(in.Timeframe)
	style := StyleDayTrade
	if scalpTF {
		style = StyleScalp
	}

	var out []EntrySignal
	var lastSignalTime int64

	for i := warmupBars; i < len(in.Candles); i++ {
		c := in.Candles[i]
		phase := bias.PhaseForHour(c.HourUTC())
		rangeHigh, rangeLow := dealingRange(in.Candles, i)
		fib := fibPosition(c.Close, rangeHigh, rangeLow)

		candidate := evaluateDirection(in, i, analysis.Bullish, bias, phase, fib, scalpTF, rangeHigh, rangeLow)
		if candidate == nil {
			candidate = evaluateDirection(in, i, analysis.Bearish, bias, phase, fib, scalpTF, rangeHigh, rangeLow)
		}
		if candidate == nil {
			continue
		}
		if candidate.Score < minScore {
			continue
		}
		if lastSignalTime != 0 && c.Time-lastSignalTime < cooldownSeconds {
			continue
		}

		candidate.Style = style
		candidate.PO3Phase = phase
		candidate.SetupGrade = gradeFor(candidate.Score, candidate.Direction, bias.Daily)
		candidate.WinProbability = winProbability(candidate.Score)

		out = append(out, *candidate)
		lastSignalTime = c.Time
	}

	return out, bias
}

// evaluateDirection runs one directional branch of the per-candle state
// machine and returns a candidate signal, or nil when the candle does not
// qualify in that direction.
func evaluateDirection(in Input, i int, dir analysis.Direction, bias analysis.BiasMatrix,
	phase analysis.SessionPhase, fib float64, scalpTF bool, rangeHigh, rangeLow float64) *EntrySignal {

	c := in.Candles[i]
	ob := nearestTouchedBlock(c, in.OrderBlocks, dir)
	fvg := nearestTouchedGap(c, in.FVGs, dir)
	if ob == nil && fvg == nil {
		return nil
	}

	inZone := fib < 0.5
	if dir == analysis.Bearish {
		inZone = fib > 0.5
	}
	if !inZone && !scalpTF {
		return nil
	}

	// Counter-trend filter: deep retracements against a fully opposed
	// higher-timeframe bias are rejected outright.
	opp := dir.Opposite()
	if bias.Daily == opp && bias.Weekly == opp {
		if (dir == analysis.Bullish && fib > 0.2) || (dir == analysis.Bearish && fib < 0.8) {
			return nil
		}
	}

	score := 2
	var reasons []string
	if dir == analysis.Bullish {
		reasons = append(reasons, fmt.Sprintf("Discount zone (%.2f of dealing range)", fib))
	} else {
		reasons = append(reasons, fmt.Sprintf("Premium zone (%.2f of dealing range)", fib))
	}
	if ob != nil {
		reasons = append(reasons, "Order block retest")
	}
	if fvg != nil {
		reasons = append(reasons, "Fair value gap retracement")
	}

	setup := SetupFVG
	if ob != nil {
		setup = SetupOrderBlock
	}

	biasPoints, biasReason := biasAlignmentScore(dir, bias, phase)
	score += biasPoints
	if biasReason != "" {
		reasons = append(reasons, biasReason)
	}
	if biasPoints == 3 {
		setup = SetupPowerOfThree
	}

	if session, ok := analysis.SessionFor(c.HourUTC()); ok {
		score++
		reasons = append(reasons, fmt.Sprintf("Inside %s session", session))
	}

	swept := findLiquiditySweep(in.Candles, i, in.Structure, dir, rangeHigh, rangeLow)
	if swept != nil {
		score += 3
		setup = Setup2022Model
		reasons = append(reasons, "Liquidity sweep of structure level")
	}

	return finishCandidate(in, i, dir, score, reasons, setup, ob, fvg, swept)
}

// finishCandidate applies the breaker/silver-bullet upgrades and the
// stop/target computation shared by both directional branches.
func finishCandidate(in Input, i int, dir analysis.Direction, score int, reasons []string,
	setup string, ob *analysis.OrderBlock, fvg *analysis.FVG, swept *SweptLevel) *EntrySignal {

	c := in.Candles[i]

	if ob != nil && ob.Subtype == analysis.BreakerBlock {
		score += 3
		setup = SetupUnicorn
		reasons = append(reasons, "Breaker block reclaimed")
	}

	if analysis.IsSilverBulletHour(c.HourUTC()) && fvg != nil && fvg.IsSilverBulletWindow {
		score += 4
		setup = SetupSilverBullet
		reasons = append(reasons, "Silver Bullet window FVG")
	}

	price := c.Close
	stop, ok := stopLossFor(in.Candles, i, dir, ob)
	if !ok {
		return nil
	}

	risk := price - stop
	if dir == analysis.Bearish {
		risk = stop - price
	}
	if risk <= 0 {
		return nil
	}

	target := price + riskRewardRatio*risk
	if dir == analysis.Bearish {
		target = price - riskRewardRatio*risk
	}

	sig := &EntrySignal{
		Time:              c.Time,
		Direction:         dir,
		Price:             price,
		Score:             score,
		ConfluenceReasons: reasons,
		StopLoss:          stop,
		TakeProfit:        target,
		SetupName:         setup,
		SweptLevel:        swept,
	}

	if fvg != nil {
		level := nearEdge(fvg.PriceHigh, fvg.PriceLow, dir)
		sig.ConfluenceLevel = &level
	} else if ob != nil {
		level := nearEdge(ob.PriceHigh, ob.PriceLow, dir)
		sig.ConfluenceLevel = &level
	}

	return sig
}

// biasAlignmentScore scores the trade direction against the daily/weekly
// bias and the session phase.
func biasAlignmentScore(dir analysis.Direction, bias analysis.BiasMatrix, phase analysis.SessionPhase) (int, string) {
	if phase == analysis.PhaseManipulation && bias.Daily == dir && bias.Weekly == dir {
		return 3, "Manipulation phase aligned with HTF bias"
	}
	if bias.Daily != bias.Weekly {
		return 1, "Mixed HTF bias"
	}
	opp := dir.Opposite()
	if bias.Daily == opp && bias.Weekly == opp {
		return -2, "HTF bias opposes entry"
	}
	return 0, ""
}

// dealingRange returns the high/low of the trailing window before candle i.
func dealingRange(candles []market.Candle, i int) (high, low float64) {
	start := i - dealingRangeBars
	if start < 0 {
		start = 0
	}
	window := candles[start:i]
	high = window[0].High
	low = window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// fibPosition returns the retracement position of price inside the dealing
// range. A zero-height range resolves to the neutral 0.5.
func fibPosition(price, high, low float64) float64 {
	if high <= low {
		return 0.5
	}
	return (price - low) / (high - low)
}

// nearestTouchedBlock finds the closest order block of the wanted direction
// whose zone the candle's wick touched without the candle closing through
// its far edge. Only zones created before the candle qualify.
func nearestTouchedBlock(c market.Candle, blocks []analysis.OrderBlock, dir analysis.Direction) *analysis.OrderBlock {
	var best *analysis.OrderBlock
	bestDist := 0.0
	for idx := range blocks {
		ob := blocks[idx]
		if ob.Direction != dir || ob.Mitigated || ob.Time >= c.Time {
			continue
		}
		if !zoneTouched(c, ob.PriceHigh, ob.PriceLow, dir) {
			continue
		}
		dist := zoneDistance(c.Close, ob.PriceHigh, ob.PriceLow, dir)
		if best == nil || dist < bestDist {
			best = &blocks[idx]
			bestDist = dist
		}
	}
	return best
}

// nearestTouchedGap mirrors nearestTouchedBlock for fair value gaps.
func nearestTouchedGap(c market.Candle, gaps []analysis.FVG, dir analysis.Direction) *analysis.FVG {
	var best *analysis.FVG
	bestDist := 0.0
	for idx := range gaps {
		gap := gaps[idx]
		if gap.Direction != dir || gap.Mitigated || gap.Time >= c.Time {
			continue
		}
		if !zoneTouched(c, gap.PriceHigh, gap.PriceLow, dir) {
			continue
		}
		dist := zoneDistance(c.Close, gap.PriceHigh, gap.PriceLow, dir)
		if best == nil || dist < bestDist {
			best = &gaps[idx]
			bestDist = dist
		}
	}
	return best
}

// zoneTouched reports whether the candle's wick reached into the zone while
// the close stayed on the entry side of its far edge.
func zoneTouched(c market.Candle, high, low float64, dir analysis.Direction) bool {
	if c.Low > high || c.High < low {
		return false
	}
	if dir == analysis.Bullish {
		return c.Close > low
	}
	return c.Close < high
}

func zoneDistance(price, high, low float64, dir analysis.Direction) float64 {
	edge := nearEdge(high, low, dir)
	if price >= edge {
		return price - edge
	}
	return edge - price
}

// nearEdge returns the zone edge closest to price for the trade direction:
// the top of a support zone, the bottom of a resistance zone.
func nearEdge(high, low float64, dir analysis.Direction) float64 {
	if dir == analysis.Bullish {
		return high
	}
	return low
}

// findLiquiditySweep looks back through recent candles for a wick through a
// structure level inside the dealing range, with the close reclaiming the
// level, within four hours of the level forming.
func findLiquiditySweep(candles []market.Candle, i int, structure []analysis.StructurePoint,
	dir analysis.Direction, rangeHigh, rangeLow float64) *SweptLevel {

	lo := i - sweepLookbackBars
	if lo < 0 {
		lo = 0
	}

	for j := i; j >= lo; j-- {
		cj := candles[j]
		for k := len(structure) - 1; k >= 0; k-- {
			sp := structure[k]
			if dir == analysis.Bullish && !sp.IsLow() {
				continue
			}
			if dir == analysis.Bearish && !sp.IsHigh() {
				continue
			}
			if sp.Time >= cj.Time || cj.Time-sp.Time > sweepMaxAgeSeconds {
				continue
			}
			if sp.Price < rangeLow || sp.Price > rangeHigh {
				continue
			}
			swept := cj.Low < sp.Price && cj.Close > sp.Price
			if dir == analysis.Bearish {
				swept = cj.High > sp.Price && cj.Close < sp.Price
			}
			if swept {
				return &SweptLevel{Price: sp.Price, Time: sp.Time, Kind: sp.Kind}
			}
		}
	}
	return nil
}

// stopLossFor places the stop beyond the five-candle swing extreme with a
// small buffer, extended past the touched order block's far edge when that
// is more conservative.
func stopLossFor(candles []market.Candle, i int, dir analysis.Direction, ob *analysis.OrderBlock) (float64, bool) {
	start := i - 4
	if start < 0 {
		start = 0
	}
	window := candles[start : i+1]
	price := candles[i].Close
	buffer := price * stopBufferFraction

	if dir == analysis.Bullish {
		low := window[0].Low
		for _, c := range window[1:] {
			if c.Low < low {
				low = c.Low
			}
		}
		stop := low - buffer
		if ob != nil && ob.PriceLow-buffer < stop {
			stop = ob.PriceLow - buffer
		}
		return stop, stop < price
	}

	high := window[0].High
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
	}
	stop := high + buffer
	if ob != nil && ob.PriceHigh+buffer > stop {
		stop = ob.PriceHigh + buffer
	}
	return stop, stop > price
}

func gradeFor(score int, dir analysis.Direction, daily analysis.Direction) SetupGrade {
	switch {
	case score >= 8:
		return GradeAPlus2
	case score >= 6:
		return GradeAPlus
	}
	if dir == daily {
		return GradeAPlus
	}
	return GradeB
}

func winProbability(score int) int {
	p := score*10 + 20
	if p > maxWinProbability {
		p = maxWinProbability
	}
	return p
}
