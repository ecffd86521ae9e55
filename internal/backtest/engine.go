package backtest

import (
	"ict-dashboard/internal/analysis"
	"ict-dashboard/internal/market"
	"ict-dashboard/internal/signals"
)

// Outcome of replaying one signal forward.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomePending Outcome = "pending"
)

// TradeResult annotates one entry signal with its replay outcome.
type TradeResult struct {
	Signal   signals.EntrySignal `json:"signal"`
	Outcome  Outcome             `json:"outcome"`
	PnL      float64             `json:"pnl"`
	LotSize  float64             `json:"lotSize"`
	ExitTime int64               `json:"exitTime,omitempty"`
}

// Stats aggregates performance over one backtest run. It is recomputed in
// full on every invocation; nothing is carried between runs.
type Stats struct {
	TotalTrades  int       `json:"totalTrades"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	WinRate      float64   `json:"winRate"`
	NetPnL       float64   `json:"netPnL"`
	ProfitFactor float64   `json:"profitFactor"`
	MaxDrawdown  float64   `json:"maxDrawdown"`
	EquityCurve  []float64 `json:"equityCurve"`
}

const (
	defaultInitialBalance = 50000.0
	defaultRiskFraction   = 0.01
	// Every trade is built with a fixed 2R target, so the profit factor
	// reduces to a win/loss count ratio. This simplification is deliberate
	// and must not be replaced with gross-profit/gross-loss math.
	profitFactorSentinel = 999.0
)

// Engine replays entry signals against historical candles.
type Engine struct {
	initialBalance float64
	riskFraction   float64
}

// NewEngine creates a backtest engine. Zero or negative parameters fall
// back to the defaults (50,000 starting balance, 1% risk per trade).
func NewEngine(initialBalance, riskFraction float64) *Engine {
	if initialBalance <= 0 {
		initialBalance = defaultInitialBalance
	}
	if riskFraction <= 0 {
		riskFraction = defaultRiskFraction
	}
	return &Engine{initialBalance: initialBalance, riskFraction: riskFraction}
}

// Run replays each signal forward from its candle, in the order given, and
// returns the annotated trades plus aggregate stats. Callers that want
// chronological equity must sort signals by time first. Signals whose time
// is not present in the candle series are left pending, not treated as
// fatal.
func (e *Engine) Run(candles []market.Candle, sigs []signals.EntrySignal) ([]TradeResult, Stats) {
	index := make(map[int64]int, len(candles))
	for i, c := range candles {
		index[c.Time] = i
	}

	balance := e.initialBalance
	peak := balance
	stats := Stats{EquityCurve: []float64{balance}}
	results := make([]TradeResult, 0, len(sigs))

	for _, sig := range sigs {
		riskAmount := balance * e.riskFraction
		stopDistance := sig.Price - sig.StopLoss
		if sig.Direction == analysis.Bearish {
			stopDistance = sig.StopLoss - sig.Price
		}
		if stopDistance < 0 {
			stopDistance = -stopDistance
		}

		lotSize := 0.0
		if stopDistance > 0 {
			lotSize = riskAmount / stopDistance
		}

		result := TradeResult{Signal: sig, Outcome: OutcomePending, LotSize: lotSize}

		start, ok := index[sig.Time]
		if ok {
			result = e.replay(candles, start, sig, lotSize, stopDistance)
		}

		results = append(results, result)
		if result.Outcome == OutcomePending {
			continue
		}

		if result.Outcome == OutcomeWin {
			stats.Wins++
		} else {
			stats.Losses++
		}
		balance += result.PnL
		stats.NetPnL += result.PnL
		stats.EquityCurve = append(stats.EquityCurve, balance)
		if balance > peak {
			peak = balance
		}
		if dd := peak - balance; dd > stats.MaxDrawdown {
			stats.MaxDrawdown = dd
		}
	}

	stats.TotalTrades = len(results)
	resolved := stats.Wins + stats.Losses
	if resolved > 0 {
		stats.WinRate = float64(stats.Wins) / float64(resolved) * 100
	}
	stats.ProfitFactor = profitFactor(stats.Wins, stats.Losses)

	return results, stats
}

// replay scans candles strictly after the signal's candle until the stop or
// the target is touched by wick. The stop is checked first when both land
// in the same candle.
func (e *Engine) replay(candles []market.Candle, start int, sig signals.EntrySignal, lotSize, stopDistance float64) TradeResult {
	result := TradeResult{Signal: sig, Outcome: OutcomePending, LotSize: lotSize}

	for j := start + 1; j < len(candles); j++ {
		c := candles[j]

		if sig.Direction == analysis.Bullish {
			if c.Low <= sig.StopLoss {
				result.Outcome = OutcomeLoss
				result.PnL = -lotSize * stopDistance
				result.ExitTime = c.Time
				return result
			}
			if c.High >= sig.TakeProfit {
				result.Outcome = OutcomeWin
				result.PnL = lotSize * (sig.TakeProfit - sig.Price)
				result.ExitTime = c.Time
				return result
			}
			continue
		}

		if c.High >= sig.StopLoss {
			result.Outcome = OutcomeLoss
			result.PnL = -lotSize * stopDistance
			result.ExitTime = c.Time
			return result
		}
		if c.Low <= sig.TakeProfit {
			result.Outcome = OutcomeWin
			result.PnL = lotSize * (sig.Price - sig.TakeProfit)
			result.ExitTime = c.Time
			return result
		}
	}

	return result
}

func profitFactor(wins, losses int) float64 {
	if losses == 0 {
		if wins > 0 {
			return profitFactorSentinel
		}
		return 0
	}
	return float64(2*wins) / float64(losses)
}
