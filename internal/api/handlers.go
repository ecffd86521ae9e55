package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"ict-dashboard/internal/analysis"
	"ict-dashboard/internal/backtest"
	"ict-dashboard/internal/market"
	"ict-dashboard/internal/paper"
	"ict-dashboard/internal/signals"

	"github.com/gin-gonic/gin"
)

// ==================== REQUEST/RESPONSE TYPES ====================

// ChartAnalysis bundles everything the chart overlays need.
type ChartAnalysis struct {
	Symbol      string                    `json:"symbol"`
	Interval    string                    `json:"interval"`
	Structure   []analysis.StructurePoint `json:"structure"`
	OrderBlocks []analysis.OrderBlock     `json:"orderBlocks"`
	FVGs        []analysis.FVG            `json:"fvgs"`
	Bias        analysis.BiasMatrix       `json:"bias"`
}

// SignalsResponse carries a synthesis pass's output.
type SignalsResponse struct {
	Symbol   string                `json:"symbol"`
	Interval string                `json:"interval"`
	Signals  []signals.EntrySignal `json:"signals"`
	Bias     analysis.BiasMatrix   `json:"bias"`
}

// BacktestRequest selects the series to replay.
type BacktestRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval" binding:"required"`
}

// BacktestResponse carries annotated trades plus aggregate stats.
type BacktestResponse struct {
	Symbol   string                 `json:"symbol"`
	Interval string                 `json:"interval"`
	Trades   []backtest.TradeResult `json:"trades"`
	Stats    backtest.Stats         `json:"stats"`
}

// UpdateBalanceRequest for manual balance override.
type UpdateBalanceRequest struct {
	Balance float64 `json:"balance" binding:"required"`
}

// OpenPositionRequest for drafting a manual paper trade.
type OpenPositionRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Side       string  `json:"side" binding:"required"`
	EntryPrice float64 `json:"entryPrice" binding:"required"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
	Size       float64 `json:"size" binding:"required"`
}

// ClosePositionRequest settles an open paper trade.
type ClosePositionRequest struct {
	ExitPrice float64 `json:"exitPrice" binding:"required"`
}

// ==================== MARKET & ANALYSIS HANDLERS ====================

func (s *Server) handleGetCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", "15m")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	candles, err := s.client.GetCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Candle fetch failed")
		errorResponse(c, http.StatusBadGateway, "Failed to fetch candles")
		return
	}

	successResponse(c, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", "15m")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	result, _, err := s.analyzeChart(c.Request.Context(), symbol, interval)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Analysis failed")
		errorResponse(c, http.StatusBadGateway, "Failed to analyze chart")
		return
	}

	successResponse(c, result)
}

func (s *Server) handleGetSignals(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", "15m")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	resp, _, err := s.synthesizeSignals(c.Request.Context(), symbol, interval)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Signal synthesis failed")
		errorResponse(c, http.StatusBadGateway, "Failed to compute signals")
		return
	}

	successResponse(c, resp)
}

func (s *Server) handleRunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, candles, err := s.synthesizeSignals(c.Request.Context(), req.Symbol, req.Interval)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Backtest synthesis failed")
		errorResponse(c, http.StatusBadGateway, "Failed to compute signals for backtest")
		return
	}

	// Equity ordering follows signal order; sort chronologically first.
	sigs := make([]signals.EntrySignal, len(resp.Signals))
	copy(sigs, resp.Signals)
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Time < sigs[j].Time })

	engine := backtest.NewEngine(s.cfg.Paper.InitialBalance, s.cfg.Paper.RiskPerTrade)
	trades, stats := engine.Run(candles, sigs)

	successResponse(c, BacktestResponse{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Trades:   trades,
		Stats:    stats,
	})
}

// ==================== PAPER LEDGER HANDLERS ====================

func (s *Server) handleGetAccount(c *gin.Context) {
	successResponse(c, s.ledger.GetAccount())
}

func (s *Server) handleUpdateBalance(c *gin.Context) {
	var req UpdateBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Balance < 10 || req.Balance > 10000000 {
		errorResponse(c, http.StatusBadRequest, "Balance must be between 10 and 10,000,000")
		return
	}

	if err := s.ledger.SetBalance(c.Request.Context(), req.Balance); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, s.ledger.GetAccount())
}

func (s *Server) handleResetAccount(c *gin.Context) {
	s.ledger.Reset(c.Request.Context())
	successResponse(c, s.ledger.GetAccount())
}

func (s *Server) handleGetPositions(c *gin.Context) {
	successResponse(c, gin.H{"positions": s.ledger.OpenPositions()})
}

func (s *Server) handleOpenPosition(c *gin.Context) {
	var req OpenPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	pos, err := s.ledger.OpenPosition(c.Request.Context(), req.Symbol, paper.Side(req.Side),
		req.EntryPrice, req.StopLoss, req.TakeProfit, req.Size)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	var req ClosePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	trade, err := s.ledger.ClosePosition(c.Request.Context(), c.Param("id"), req.ExitPrice)
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, trade)
}

func (s *Server) handleGetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	successResponse(c, gin.H{"history": s.ledger.History(limit)})
}

// ==================== PIPELINE HELPERS ====================

// analyzeChart runs the detection pipeline for one symbol/interval and
// returns the overlays plus the fetched candle series.
func (s *Server) analyzeChart(ctx context.Context, symbol, interval string) (ChartAnalysis, []market.Candle, error) {
	candles, err := s.client.GetCandles(ctx, symbol, interval, market.DefaultCandleLimit)
	if err != nil {
		return ChartAnalysis{}, nil, err
	}

	structure := analysis.NewStructureDetector(s.cfg.Analysis.SwingLength).Detect(candles)
	blocks := analysis.NewOrderBlockDetector(s.cfg.Analysis.ImpulseMultiplier).Detect(candles)
	gaps := analysis.NewFVGDetector().Detect(candles)
	bias := s.computeBias(ctx, symbol, candles)

	return ChartAnalysis{
		Symbol:      symbol,
		Interval:    interval,
		Structure:   structure,
		OrderBlocks: blocks,
		FVGs:        gaps,
		Bias:        bias,
	}, candles, nil
}

// synthesizeSignals runs analysis plus the signal synthesizer.
func (s *Server) synthesizeSignals(ctx context.Context, symbol, interval string) (SignalsResponse, []market.Candle, error) {
	chart, candles, err := s.analyzeChart(ctx, symbol, interval)
	if err != nil {
		return SignalsResponse{}, nil, err
	}

	sigs, bias := signals.Synthesize(signals.Input{
		Candles:     candles,
		OrderBlocks: chart.OrderBlocks,
		FVGs:        chart.FVGs,
		Structure:   chart.Structure,
		Timeframe:   interval,
		Bias:        &chart.Bias,
	})

	return SignalsResponse{
		Symbol:   symbol,
		Interval: interval,
		Signals:  sigs,
		Bias:     bias,
	}, candles, nil
}

// computeBias fetches higher-timeframe context and builds the bias matrix.
// Context fetch failures degrade to a directionless read rather than
// failing the whole request.
func (s *Server) computeBias(ctx context.Context, symbol string, intraday []market.Candle) analysis.BiasMatrix {
	daily := s.contextCandles(ctx, symbol, "1d")
	weekly := s.contextCandles(ctx, symbol, "1w")
	monthly := s.contextCandles(ctx, symbol, "1M")
	return analysis.ComputeBiasMatrix(intraday, daily, weekly, monthly)
}

func (s *Server) contextCandles(ctx context.Context, symbol, interval string) []market.Candle {
	candles, err := s.client.GetContextCandles(ctx, symbol, interval)
	if err != nil {
		s.logger.Warn().Err(err).Str("interval", interval).Msg("HTF context fetch failed")
		return nil
	}
	return candles
}
