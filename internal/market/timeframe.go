package market

// HigherTimeframe maps a chart timeframe to the timeframe used for
// directional-bias context.
func HigherTimeframe(interval string) string {
	switch interval {
	case "1m", "3m":
		return "15m"
	case "5m":
		return "1h"
	case "15m", "30m":
		return "4h"
	case "1h", "4h":
		return "1d"
	default:
		return "1d"
	}
}

// IsScalpingTimeframe reports whether the interval is traded scalp-style.
// Scalp timeframes relax the premium/discount entry filter.
func IsScalpingTimeframe(interval string) bool {
	switch interval {
	case "1m", "3m", "5m":
		return true
	default:
		return false
	}
}
