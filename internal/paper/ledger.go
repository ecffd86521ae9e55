// Package paper provides the simulated trading ledger behind the dashboard.
//
// State lives in Redis (the local key-value store) so balances and open
// positions survive restarts. When Redis is unavailable the ledger falls
// back to its in-memory copy so the dashboard keeps working offline.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis keys for ledger state.
const (
	balanceKey   = "ict:paper:balance"
	positionsKey = "ict:paper:positions"
	historyKey   = "ict:paper:history"

	maxHistoryEntries = 500
)

// Side of a simulated position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is an open simulated trade, keyed by an opaque id independent of
// any signal identity.
type Position struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	EntryPrice float64 `json:"entryPrice"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
	Size       float64 `json:"size"`
	OpenedAt   int64   `json:"openedAt"`
}

// ClosedTrade is a settled position in the trade history.
type ClosedTrade struct {
	Position
	ExitPrice float64 `json:"exitPrice"`
	ClosedAt  int64   `json:"closedAt"`
	PnL       float64 `json:"pnl"`
}

// Account is the ledger's balance snapshot.
type Account struct {
	Balance   float64 `json:"balance"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Ledger tracks the paper account, open positions and trade history.
type Ledger struct {
	mu             sync.RWMutex
	rdb            *redis.Client // nil means memory-only mode
	logger         zerolog.Logger
	initialBalance float64

	balance   float64
	positions map[string]Position
	history   []ClosedTrade
}

// NewLedger creates a ledger. rdb may be nil for memory-only operation.
func NewLedger(rdb *redis.Client, initialBalance float64, logger zerolog.Logger) *Ledger {
	if initialBalance <= 0 {
		initialBalance = 50000
	}
	return &Ledger{
		rdb:            rdb,
		logger:         logger.With().Str("component", "paper").Logger(),
		initialBalance: initialBalance,
		balance:        initialBalance,
		positions:      make(map[string]Position),
	}
}

// Load restores persisted state from Redis. Missing keys are not errors;
// a fresh account starts at the initial balance.
func (l *Ledger) Load(ctx context.Context) error {
	if l.rdb == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	val, err := l.rdb.Get(ctx, balanceKey).Float64()
	switch {
	case err == redis.Nil:
		// fresh account
	case err != nil:
		l.logger.Warn().Err(err).Msg("Redis unavailable, running ledger in memory")
		return nil
	default:
		l.balance = val
	}

	entries, err := l.rdb.HGetAll(ctx, positionsKey).Result()
	if err == nil {
		for id, raw := range entries {
			var pos Position
			if err := json.Unmarshal([]byte(raw), &pos); err != nil {
				l.logger.Warn().Err(err).Str("id", id).Msg("Dropping unreadable position record")
				continue
			}
			l.positions[pos.ID] = pos
		}
	}

	rawHistory, err := l.rdb.LRange(ctx, historyKey, 0, maxHistoryEntries-1).Result()
	if err == nil {
		for i := len(rawHistory) - 1; i >= 0; i-- {
			var trade ClosedTrade
			if err := json.Unmarshal([]byte(rawHistory[i]), &trade); err != nil {
				continue
			}
			l.history = append(l.history, trade)
		}
	}

	return nil
}

// GetAccount returns the current balance snapshot.
func (l *Ledger) GetAccount() Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Account{Balance: l.balance, UpdatedAt: time.Now().Unix()}
}

// SetBalance overrides the account balance.
func (l *Ledger) SetBalance(ctx context.Context, balance float64) error {
	if balance <= 0 {
		return fmt.Errorf("balance must be positive, got %.2f", balance)
	}

	l.mu.Lock()
	l.balance = balance
	l.mu.Unlock()

	l.persistBalance(ctx, balance)
	return nil
}

// Reset wipes positions and history and restores the initial balance.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	l.balance = l.initialBalance
	l.positions = make(map[string]Position)
	l.history = nil
	l.mu.Unlock()

	if l.rdb != nil {
		if err := l.rdb.Del(ctx, balanceKey, positionsKey, historyKey).Err(); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to clear ledger state in Redis")
		}
	}
}

// OpenPosition opens a simulated position and returns it with its new id.
func (l *Ledger) OpenPosition(ctx context.Context, symbol string, side Side, entry, stopLoss, takeProfit, size float64) (Position, error) {
	if symbol == "" {
		return Position{}, fmt.Errorf("symbol is required")
	}
	if side != SideLong && side != SideShort {
		return Position{}, fmt.Errorf("invalid side %q", side)
	}
	if entry <= 0 || size <= 0 {
		return Position{}, fmt.Errorf("entry price and size must be positive")
	}

	pos := Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Size:       size,
		OpenedAt:   time.Now().Unix(),
	}

	l.mu.Lock()
	l.positions[pos.ID] = pos
	l.mu.Unlock()

	l.persistPosition(ctx, pos)
	l.logger.Info().Str("id", pos.ID).Str("symbol", symbol).Str("side", string(side)).
		Float64("entry", entry).Msg("Opened paper position")
	return pos, nil
}

// ClosePosition settles an open position at exitPrice, updates the balance
// and appends the trade to history.
func (l *Ledger) ClosePosition(ctx context.Context, id string, exitPrice float64) (ClosedTrade, error) {
	if exitPrice <= 0 {
		return ClosedTrade{}, fmt.Errorf("exit price must be positive")
	}

	l.mu.Lock()
	pos, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return ClosedTrade{}, fmt.Errorf("position %s not found", id)
	}
	delete(l.positions, id)

	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	if pos.Side == SideShort {
		pnl = (pos.EntryPrice - exitPrice) * pos.Size
	}
	l.balance += pnl
	balance := l.balance

	trade := ClosedTrade{
		Position:  pos,
		ExitPrice: exitPrice,
		ClosedAt:  time.Now().Unix(),
		PnL:       pnl,
	}
	l.history = append(l.history, trade)
	l.mu.Unlock()

	l.persistClose(ctx, trade, balance)
	l.logger.Info().Str("id", id).Float64("pnl", pnl).Float64("balance", balance).
		Msg("Closed paper position")
	return trade, nil
}

// OpenPositions lists open positions, newest first.
func (l *Ledger) OpenPositions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	// map order is random; present newest first
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt > out[j].OpenedAt })
	return out
}

// History returns up to limit closed trades, newest first.
func (l *Ledger) History(limit int) []ClosedTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	out := make([]ClosedTrade, 0, limit)
	for i := len(l.history) - 1; i >= len(l.history)-limit; i-- {
		out = append(out, l.history[i])
	}
	return out
}

func (l *Ledger) persistBalance(ctx context.Context, balance float64) {
	if l.rdb == nil {
		return
	}
	if err := l.rdb.Set(ctx, balanceKey, balance, 0).Err(); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to persist balance, keeping in-memory value")
	}
}

func (l *Ledger) persistPosition(ctx context.Context, pos Position) {
	if l.rdb == nil {
		return
	}
	raw, err := json.Marshal(pos)
	if err != nil {
		l.logger.Error().Err(err).Str("id", pos.ID).Msg("Failed to encode position")
		return
	}
	if err := l.rdb.HSet(ctx, positionsKey, pos.ID, raw).Err(); err != nil {
		l.logger.Warn().Err(err).Str("id", pos.ID).Msg("Failed to persist position")
	}
}

func (l *Ledger) persistClose(ctx context.Context, trade ClosedTrade, balance float64) {
	if l.rdb == nil {
		return
	}
	if err := l.rdb.HDel(ctx, positionsKey, trade.ID).Err(); err != nil {
		l.logger.Warn().Err(err).Str("id", trade.ID).Msg("Failed to remove persisted position")
	}
	raw, err := json.Marshal(trade)
	if err == nil {
		pipe := l.rdb.Pipeline()
		pipe.LPush(ctx, historyKey, raw)
		pipe.LTrim(ctx, historyKey, 0, maxHistoryEntries-1)
		if _, err := pipe.Exec(ctx); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to persist trade history")
		}
	}
	l.persistBalance(ctx, balance)
}
