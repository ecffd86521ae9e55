package analysis

import (
	"ict-dashboard/internal/market"
)

// SessionName identifies one of the three tracked trading sessions.
type SessionName string

const (
	SessionAsia    SessionName = "asia"
	SessionLondon  SessionName = "london"
	SessionNewYork SessionName = "new_york"
)

// SessionStatus tracks a session's lifecycle on the current day.
type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionActive   SessionStatus = "active"
	SessionFinished SessionStatus = "finished"
)

// SessionPhase classifies a session within the Power-of-3 model.
type SessionPhase string

const (
	PhaseAccumulation SessionPhase = "accumulation"
	PhaseManipulation SessionPhase = "manipulation"
	PhaseDistribution SessionPhase = "distribution"
	PhaseExpansion    SessionPhase = "expansion"
	PhaseNone         SessionPhase = "none"
)

// Session windows in UTC hours. London and New York overlap by design.
type sessionWindow struct {
	name      SessionName
	startHour int
	endHour   int
}

var sessionWindows = []sessionWindow{
	{SessionAsia, 0, 8},
	{SessionLondon, 8, 16},
	{SessionNewYork, 13, 21},
}

// SessionFor returns the first session window containing the UTC hour.
func SessionFor(hour int) (SessionName, bool) {
	for _, w := range sessionWindows {
		if hour >= w.startHour && hour < w.endHour {
			return w.name, true
		}
	}
	return "", false
}

// SessionBias is a directional and phase read of one trading session on the
// current day. Explanation and prediction are informational annotations, not
// scoring inputs.
type SessionBias struct {
	Session     SessionName   `json:"session"`
	Direction   Direction     `json:"direction"`
	Open        float64       `json:"open"`
	Close       float64       `json:"close"`
	High        float64       `json:"high"`
	Low         float64       `json:"low"`
	Status      SessionStatus `json:"status"`
	Phase       SessionPhase  `json:"phase"`
	Explanation string        `json:"explanation"`
	Prediction  string        `json:"prediction"`
}

// BiasMatrix carries the higher-timeframe directional reads plus the chained
// session analysis. It is threaded explicitly between synthesis passes; no
// package-level state exists.
type BiasMatrix struct {
	Monthly Direction   `json:"monthly"`
	Weekly  Direction   `json:"weekly"`
	Daily   Direction   `json:"daily"`
	Asia    SessionBias `json:"asia"`
	London  SessionBias `json:"london"`
	NewYork SessionBias `json:"newYork"`
}

// PhaseForHour returns the Power-of-3 phase of the session containing the
// UTC hour, or PhaseNone outside session coverage.
func (m BiasMatrix) PhaseForHour(hour int) SessionPhase {
	name, ok := SessionFor(hour)
	if !ok {
		return PhaseNone
	}
	switch name {
	case SessionAsia:
		return m.Asia.Phase
	case SessionLondon:
		return m.London.Phase
	default:
		return m.NewYork.Phase
	}
}

// DirectionalBias derives a directional read from the last two candles of a
// series: close above the prior high is bullish, below the prior low bearish,
// otherwise the bias inherits the prior candle's body. A liquidity-sweep
// reversal on the prior candle takes priority over the break-of-range result.
func DirectionalBias(candles []market.Candle) Direction {
	n := len(candles)
	if n < 2 {
		return DirectionNone
	}

	last := candles[n-1]
	prev := candles[n-2]

	if n >= 3 {
		before := candles[n-3]
		if prev.Low < before.Low && prev.Close > before.Low {
			return Bullish
		}
		if prev.High > before.High && prev.Close < before.High {
			return Bearish
		}
	}

	if last.Close > prev.High {
		return Bullish
	}
	if last.Close < prev.Low {
		return Bearish
	}

	switch {
	case prev.IsBullish():
		return Bullish
	case prev.IsBearish():
		return Bearish
	default:
		return DirectionNone
	}
}

const (
	rangeLookbackWindow = 50  // trailing candles for the average session range
	accumulationRatio   = 1.2 // below this multiple of avg range
	expansionRatio      = 1.5 // above this multiple of avg range
)

// Fixed per-phase annotations.
var phaseExplanations = map[SessionPhase]string{
	PhaseAccumulation: "Range-bound: liquidity building on both sides of the session range.",
	PhaseManipulation: "Session swept the prior session's extreme and closed back inside.",
	PhaseDistribution: "Directional move underway after the session broke from balance.",
	PhaseExpansion:    "Range expanding well beyond average without a failed sweep.",
	PhaseNone:         "No session data available yet.",
}

var phasePredictions = map[SessionPhase]string{
	PhaseAccumulation: "Expect a stop hunt beyond the range before the real move.",
	PhaseManipulation: "Expect distribution in the opposite direction of the sweep.",
	PhaseDistribution: "Trend continuation favored until the session closes.",
	PhaseExpansion:    "Momentum continuation favored; chasing late entries is risky.",
	PhaseNone:         "Awaiting session open.",
}

// AnalyzeSessions computes the Asia, London and New York session biases for
// the day of the most recent candle. Sessions are chained: each phase
// computation consumes the prior session's result for sweep detection.
func AnalyzeSessions(candles []market.Candle) (asia, london, newYork SessionBias) {
	if len(candles) == 0 {
		asia = emptySession(SessionAsia)
		london = emptySession(SessionLondon)
		newYork = emptySession(SessionNewYork)
		return
	}

	now := candles[len(candles)-1].Time
	dayStart := candles[len(candles)-1].DayStartUTC()

	asia = analyzeSession(candles, sessionWindows[0], dayStart, now, nil)
	london = analyzeSession(candles, sessionWindows[1], dayStart, now, &asia)
	newYork = analyzeSession(candles, sessionWindows[2], dayStart, now, &london)
	return
}

// ComputeBiasMatrix combines the higher-timeframe directional reads with the
// chained session analysis of the intraday series.
func ComputeBiasMatrix(intraday, daily, weekly, monthly []market.Candle) BiasMatrix {
	m := BiasMatrix{
		Daily:   DirectionalBias(daily),
		Weekly:  DirectionalBias(weekly),
		Monthly: DirectionalBias(monthly),
	}
	m.Asia, m.London, m.NewYork = AnalyzeSessions(intraday)
	return m
}

func emptySession(name SessionName) SessionBias {
	return SessionBias{
		Session:     name,
		Direction:   DirectionNone,
		Status:      SessionPending,
		Phase:       PhaseNone,
		Explanation: phaseExplanations[PhaseNone],
		Prediction:  phasePredictions[PhaseNone],
	}
}

func analyzeSession(candles []market.Candle, w sessionWindow, dayStart, now int64, prev *SessionBias) SessionBias {
	start := dayStart + int64(w.startHour)*3600
	end := dayStart + int64(w.endHour)*3600

	status := SessionActive
	if now < start {
		status = SessionPending
	} else if now >= end {
		status = SessionFinished
	}

	var session []market.Candle
	firstIndex := -1
	for i, c := range candles {
		if c.Time >= start && c.Time < end {
			if firstIndex < 0 {
				firstIndex = i
			}
			session = append(session, c)
		}
	}

	if len(session) == 0 {
		sb := emptySession(w.name)
		sb.Status = status
		return sb
	}

	sb := SessionBias{
		Session: w.name,
		Status:  status,
		Open:    session[0].Open,
		Close:   session[len(session)-1].Close,
		High:    session[0].High,
		Low:     session[0].Low,
	}
	for _, c := range session[1:] {
		if c.High > sb.High {
			sb.High = c.High
		}
		if c.Low < sb.Low {
			sb.Low = c.Low
		}
	}

	switch {
	case sb.Close > sb.Open:
		sb.Direction = Bullish
	case sb.Close < sb.Open:
		sb.Direction = Bearish
	default:
		sb.Direction = DirectionNone
	}

	sb.Phase = classifyPhase(sb, candles[:firstIndex], prev)
	sb.Explanation = phaseExplanations[sb.Phase]
	sb.Prediction = phasePredictions[sb.Phase]
	return sb
}

// classifyPhase compares the session range to the trailing average range and
// checks for a sweep-and-fail of the prior session's extremes.
func classifyPhase(sb SessionBias, preceding []market.Candle, prev *SessionBias) SessionPhase {
	sessionRange := sb.High - sb.Low
	avg := averageRange(preceding)
	if avg <= 0 {
		avg = sessionRange
	}
	if avg <= 0 {
		return PhaseNone
	}

	if sessionRange < accumulationRatio*avg {
		return PhaseAccumulation
	}

	if prev != nil && prev.Phase != PhaseNone {
		sweptHigh := sb.High > prev.High && sb.Close < prev.High
		sweptLow := sb.Low < prev.Low && sb.Close > prev.Low
		if sweptHigh || sweptLow {
			return PhaseManipulation
		}
	}

	if sessionRange > expansionRatio*avg {
		return PhaseExpansion
	}

	return PhaseDistribution
}

func averageRange(candles []market.Candle) float64 {
	start := len(candles) - rangeLookbackWindow
	if start < 0 {
		start = 0
	}
	window := candles[start:]
	if len(window) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range window {
		sum += c.Range()
	}
	return sum / float64(len(window))
}
