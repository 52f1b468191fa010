// Package position owns the per-symbol cost-basis state: the entry price
// captured when a holding is first observed and the trailing high-water mark
// used by trailing stops. The tracker is the only writer of this state; the
// stop-loss evaluator reads it and never mutates it.
package position

import (
	"log/slog"
	"sync"
	"time"

	"driftguard/internal/domain"
)

// Tracker tracks one Position per symbol with a nonzero holding. A position
// is created lazily on the first observation of a nonzero amount with a
// known price, and removed only by Clear (after a successful liquidation).
// A symbol that goes to zero and comes back gets a fresh entry price; prior
// cost basis is forgotten.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	log       *slog.Logger
}

// NewTracker creates an empty Tracker.
func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		positions: make(map[string]*domain.Position),
		log:       log.With("component", "tracker"),
	}
}

// Observe folds one snapshot into the tracker. For every symbol held with a
// known price and no existing position, it seeds EntryPrice = HighestPrice =
// current price. It never overwrites an existing entry price. It then
// ratchets HighestPrice upward for every tracked symbol whose price is known
// this cycle.
func (t *Tracker) Observe(holdings domain.Holdings, prices domain.PriceSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for symbol, amount := range holdings {
		if amount <= 0 || !prices.Known(symbol) {
			continue
		}
		if _, exists := t.positions[symbol]; exists {
			continue
		}
		price := prices[symbol]
		t.positions[symbol] = &domain.Position{
			Symbol:       symbol,
			EntryPrice:   price,
			HighestPrice: price,
			EnteredAt:    time.Now(),
		}
		t.log.Info("initialized entry price", "symbol", symbol, "price", price)
	}

	for symbol, pos := range t.positions {
		if !prices.Known(symbol) {
			continue
		}
		if price := prices[symbol]; price > pos.HighestPrice {
			pos.HighestPrice = price
			t.log.Debug("new high-water mark", "symbol", symbol, "price", price)
		}
	}
}

// Get returns a copy of the tracked position for symbol.
func (t *Tracker) Get(symbol string) (domain.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns a copy of all tracked positions keyed by symbol.
func (t *Tracker) Positions() map[string]domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.Position, len(t.positions))
	for symbol, pos := range t.positions {
		out[symbol] = *pos
	}
	return out
}

// Clear removes the position for symbol. Called after a stop-loss
// liquidation executes successfully or after a full manual sell.
func (t *Tracker) Clear(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.positions[symbol]; ok {
		delete(t.positions, symbol)
		t.log.Info("cleared position", "symbol", symbol)
	}
}
