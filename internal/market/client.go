package market

import (
	"context"
	"fmt"
	"strconv"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultCandleLimit is the number of candles fetched for the active chart.
	DefaultCandleLimit = 1000
	// ContextCandleLimit is the number of candles fetched for higher-timeframe context.
	ContextCandleLimit = 200
)

// Client fetches candle data from Binance spot. It is the only component
// that performs I/O; everything downstream operates on materialized slices.
type Client struct {
	api    *gobinance.Client
	logger zerolog.Logger
}

// NewClient creates a new market data client. API keys may be empty since
// kline endpoints are public.
func NewClient(apiKey, secretKey string, logger zerolog.Logger) *Client {
	return &Client{
		api:    gobinance.NewClient(apiKey, secretKey),
		logger: logger.With().Str("component", "market").Logger(),
	}
}

// GetCandles fetches up to limit candles for symbol/interval, ascending by time.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 || limit > DefaultCandleLimit {
		limit = DefaultCandleLimit
	}

	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s %s: %w", symbol, interval, err)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := klineToCandle(k)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping malformed kline")
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetContextCandles fetches the shorter higher-timeframe context series.
func (c *Client) GetContextCandles(ctx context.Context, symbol, interval string) ([]Candle, error) {
	return c.GetCandles(ctx, symbol, interval, ContextCandleLimit)
}

func klineToCandle(k *gobinance.Kline) (Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad low price %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad close price %q: %w", k.Close, err)
	}

	return Candle{
		Time:  k.OpenTime / 1000, // Binance reports milliseconds
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePrice,
	}, nil
}
