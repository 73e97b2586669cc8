// Package ledger keeps the virtual cash balance, open grid positions and
// closed-trade history shared by every instrument engine.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"github.com/vadiminshakov/gridsim/internal/storage/ledgerstate"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateStep is returned when a step is already open for the instrument.
	ErrDuplicateStep = errors.New("step is already open")
	// ErrInvalidAmount is returned for non-positive prices or notionals.
	ErrInvalidAmount = errors.New("price and notional must be positive")
)

// StateStore persists ledger tables.
type StateStore interface {
	Load() (*ledgerstate.State, error)
	Save(state ledgerstate.State) error
}

// Journal records successful mutations.
type Journal interface {
	Append(event domain.LedgerEvent) (domain.LedgerEvent, error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal attaches a mutation journal.
func WithJournal(j Journal) Option {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source used for openedAt/closedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger is safe for concurrent use. OpenPosition and ClosePosition are
// serialized by a single lock and re-check their own preconditions.
type Ledger struct {
	mu sync.RWMutex

	initialCash decimal.Decimal
	cash        decimal.Decimal
	feeRate     decimal.Decimal

	positions map[domain.Pair]map[int]domain.Position
	// closed is kept oldest first; readers get it reversed.
	closed []domain.ClosedTrade

	store   StateStore
	journal Journal
	logger  *zap.Logger
	now     func() time.Time

	dirty bool
}

// New creates an empty ledger holding initialCash. Call Load to restore persisted state.
func New(store StateStore, initialCash, feeRate decimal.Decimal, opts ...Option) (*Ledger, error) {
	if initialCash.IsNegative() {
		return nil, errors.Errorf("initial cash must not be negative, got %s", initialCash.String())
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("fee rate must be in [0, 1), got %s", feeRate.String())
	}

	l := &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		feeRate:     feeRate,
		positions:   make(map[domain.Pair]map[int]domain.Position),
		store:       store,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// OpenPosition buys notional/price units of instrument as grid step.
// It returns false with a nil error when cash cannot cover the purchase
// including fee; in that case nothing changes.
func (l *Ledger) OpenPosition(instrument domain.Pair, step int, price, notional decimal.Decimal) (bool, error) {
	if !price.IsPositive() || !notional.IsPositive() {
		return false, errors.Wrapf(ErrInvalidAmount, "open %s step %d: price %s notional %s",
			instrument.String(), step, price.String(), notional.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.logger.With(zap.String("instrument", instrument.String()), zap.Int("step", step))

	if _, exists := l.positions[instrument][step]; exists {
		log.Error("refusing to open duplicate step")
		return false, errors.Wrapf(ErrDuplicateStep, "open %s step %d", instrument.String(), step)
	}

	quantity := notional.Div(price)
	gross := price.Mul(quantity)
	cost := gross.Mul(decimal.NewFromInt(1).Add(l.feeRate))

	if l.cash.LessThan(gross) || l.cash.LessThan(cost) {
		log.Info("insufficient cash, open refused",
			zap.String("cash", l.cash.String()),
			zap.String("cost", cost.String()))
		return false, nil
	}

	position, err := domain.NewPosition(instrument, step, price, quantity, l.now())
	if err != nil {
		return false, errors.Wrap(err, "build position")
	}

	if l.positions[instrument] == nil {
		l.positions[instrument] = make(map[int]domain.Position)
	}
	l.positions[instrument][step] = position
	l.cash = l.cash.Sub(cost)

	l.record(domain.LedgerEvent{
		Kind:       domain.ActionOpen,
		Instrument: instrument,
		Step:       step,
		Price:      price,
		Quantity:   quantity,
		Cash:       l.cash,
		Time:       position.OpenedAt,
	})
	l.persistLocked()

	return true, nil
}

// ClosePosition sells the open step at price. found is false when the step
// is not open; nothing changes then.
func (l *Ledger) ClosePosition(instrument domain.Pair, step int, price decimal.Decimal) (profit decimal.Decimal, found bool, err error) {
	if !price.IsPositive() {
		return decimal.Zero, false, errors.Wrapf(ErrInvalidAmount, "close %s step %d: price %s",
			instrument.String(), step, price.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[instrument][step]
	if !ok {
		return decimal.Zero, false, nil
	}

	one := decimal.NewFromInt(1)
	proceeds := price.Mul(position.Quantity).Mul(one.Sub(l.feeRate))
	cost := position.EntryPrice.Mul(position.Quantity).Mul(one.Add(l.feeRate))
	profit = proceeds.Sub(cost)

	delete(l.positions[instrument], step)
	if len(l.positions[instrument]) == 0 {
		delete(l.positions, instrument)
	}
	l.cash = l.cash.Add(proceeds)

	closedAt := l.now()
	l.closed = append(l.closed, domain.ClosedTrade{
		Instrument: instrument,
		Step:       step,
		Profit:     profit,
		ClosedAt:   closedAt,
	})

	l.record(domain.LedgerEvent{
		Kind:       domain.ActionClose,
		Instrument: instrument,
		Step:       step,
		Price:      price,
		Quantity:   position.Quantity,
		Profit:     profit,
		Cash:       l.cash,
		Time:       closedAt,
	})
	l.persistLocked()

	return profit, true, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// FeeRate returns the fee fraction applied to both sides of a trade.
func (l *Ledger) FeeRate() decimal.Decimal {
	return l.feeRate
}

// Positions returns a copy of the open positions of instrument ordered by step ascending.
func (l *Ledger) Positions(instrument domain.Pair) []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byStep := l.positions[instrument]
	out := make([]domain.Position, 0, len(byStep))
	for _, p := range byStep {
		out = append(out, p)
	}
	domain.SortByStepAsc(out)

	return out
}

// ClosedTrades returns closed trades of instrument, newest first.
// A zero instrument returns trades of every instrument.
func (l *Ledger) ClosedTrades(instrument domain.Pair) []domain.ClosedTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ClosedTrade, 0)
	for i := len(l.closed) - 1; i >= 0; i-- {
		if instrument.IsZero() || l.closed[i].Instrument == instrument {
			out = append(out, l.closed[i])
		}
	}
	return out
}

// RealizedProfit sums profit of closed trades of instrument. A zero instrument sums all trades.
func (l *Ledger) RealizedProfit(instrument domain.Pair) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, t := range l.closed {
		if instrument.IsZero() || t.Instrument == instrument {
			total = total.Add(t.Profit)
		}
	}
	return total
}

// Snapshot is a point-in-time copy of the whole ledger.
type Snapshot struct {
	Cash           decimal.Decimal      `json:"cash"`
	FeeRate        decimal.Decimal      `json:"fee_rate"`
	Positions      []domain.Position    `json:"positions"`
	ClosedTrades   []domain.ClosedTrade `json:"closed_trades"`
	RealizedProfit decimal.Decimal      `json:"realized_profit"`
}

// Snapshot copies the ledger under the read lock. Positions are ordered by instrument, then step.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Cash:           l.cash,
		FeeRate:        l.feeRate,
		Positions:      l.allPositionsLocked(),
		ClosedTrades:   make([]domain.ClosedTrade, 0, len(l.closed)),
		RealizedProfit: decimal.Zero,
	}
	for i := len(l.closed) - 1; i >= 0; i-- {
		snap.ClosedTrades = append(snap.ClosedTrades, l.closed[i])
		snap.RealizedProfit = snap.RealizedProfit.Add(l.closed[i].Profit)
	}

	return snap
}

// Save writes the ledger tables. On failure the in-memory state stays
// authoritative and the next mutation writes again.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// Dirty reports whether the last write attempt failed.
func (l *Ledger) Dirty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty
}

// Load replaces in-memory state with the persisted tables. Rows that cannot
// be decoded are skipped; an unreadable or negative cash value falls back to
// the initial cash. A corrupt file leaves the ledger at its defaults and the
// error is returned for the caller to report.
func (l *Ledger) Load() error {
	if l.store == nil {
		return nil
	}

	state, err := l.store.Load()
	if err != nil {
		return errors.Wrap(err, "load ledger state")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = l.initialCash
	l.positions = make(map[domain.Pair]map[int]domain.Position)
	l.closed = nil

	if state == nil {
		return nil
	}

	if cash, err := decimal.NewFromString(state.Cash); err == nil && !cash.IsNegative() {
		l.cash = cash
	} else {
		l.logger.Warn("invalid persisted cash, using initial cash",
			zap.String("value", state.Cash),
			zap.String("initial_cash", l.initialCash.String()))
	}

	for i, row := range state.Positions {
		position, err := row.ToPosition()
		if err != nil {
			l.logger.Warn("skipping persisted position", zap.Int("row", i), zap.Error(err))
			continue
		}
		if _, exists := l.positions[position.Instrument][position.Step]; exists {
			l.logger.Error("skipping duplicate persisted step",
				zap.String("instrument", position.Instrument.String()),
				zap.Int("step", position.Step))
			continue
		}
		if l.positions[position.Instrument] == nil {
			l.positions[position.Instrument] = make(map[int]domain.Position)
		}
		l.positions[position.Instrument][position.Step] = position
	}

	// rows are stored newest first
	for i := len(state.ClosedTrades) - 1; i >= 0; i-- {
		trade, err := state.ClosedTrades[i].ToClosedTrade()
		if err != nil {
			l.logger.Warn("skipping persisted closed trade", zap.Int("row", i), zap.Error(err))
			continue
		}
		l.closed = append(l.closed, trade)
	}

	l.logger.Info("ledger restored",
		zap.String("cash", l.cash.String()),
		zap.Int("positions", len(state.Positions)),
		zap.Int("closed_trades", len(l.closed)))

	return nil
}

// Replayer yields journaled events oldest first.
type Replayer interface {
	Replay(fn func(domain.LedgerEvent) error) error
}

// Rebuild reconstructs the ledger tables from a full journal history and
// persists the result. It is used when the state file is lost or corrupt.
// On error the ledger is left at its defaults.
func (l *Ledger) Rebuild(r Replayer) error {
	positions := make(map[domain.Pair]map[int]domain.Position)
	var closed []domain.ClosedTrade
	cash := l.initialCash
	applied := 0

	err := r.Replay(func(e domain.LedgerEvent) error {
		switch e.Kind {
		case domain.ActionOpen:
			position, err := domain.NewPosition(e.Instrument, e.Step, e.Price, e.Quantity, e.Time)
			if err != nil {
				return errors.Wrapf(err, "replay event %d", e.Seq)
			}
			if positions[e.Instrument] == nil {
				positions[e.Instrument] = make(map[int]domain.Position)
			}
			positions[e.Instrument][e.Step] = position
		case domain.ActionClose:
			delete(positions[e.Instrument], e.Step)
			if len(positions[e.Instrument]) == 0 {
				delete(positions, e.Instrument)
			}
			closed = append(closed, domain.ClosedTrade{
				Instrument: e.Instrument,
				Step:       e.Step,
				Profit:     e.Profit,
				ClosedAt:   e.Time,
			})
		default:
			return errors.Errorf("replay event %d: unexpected kind %s", e.Seq, e.Kind.String())
		}
		cash = e.Cash
		applied++
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "rebuild ledger from journal")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = cash
	l.positions = positions
	l.closed = closed

	l.logger.Info("ledger rebuilt from journal",
		zap.Int("events", applied),
		zap.String("cash", l.cash.String()),
		zap.Int("closed_trades", len(l.closed)))

	return l.saveLocked()
}

func (l *Ledger) allPositionsLocked() []domain.Position {
	out := make([]domain.Position, 0)
	for _, byStep := range l.positions {
		for _, p := range byStep {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instrument != out[j].Instrument {
			return out[i].Instrument.String() < out[j].Instrument.String()
		}
		return out[i].Step < out[j].Step
	})
	return out
}

func (l *Ledger) stateLocked() ledgerstate.State {
	positions := l.allPositionsLocked()
	state := ledgerstate.State{
		Cash:         l.cash.String(),
		Positions:    make([]ledgerstate.PositionRow, 0, len(positions)),
		ClosedTrades: make([]ledgerstate.ClosedTradeRow, 0, len(l.closed)),
	}
	for _, p := range positions {
		state.Positions = append(state.Positions, ledgerstate.NewPositionRow(p))
	}
	for i := len(l.closed) - 1; i >= 0; i-- {
		state.ClosedTrades = append(state.ClosedTrades, ledgerstate.NewClosedTradeRow(l.closed[i]))
	}
	return state
}

func (l *Ledger) saveLocked() error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(l.stateLocked()); err != nil {
		l.dirty = true
		return errors.Wrap(err, "save ledger state")
	}
	l.dirty = false
	return nil
}

func (l *Ledger) persistLocked() {
	if err := l.saveLocked(); err != nil {
		l.logger.Warn("failed to persist ledger state, will retry on next mutation", zap.Error(err))
	}
}

func (l *Ledger) record(event domain.LedgerEvent) {
	if l.journal == nil {
		return
	}
	event.ID = uuid.NewString()
	if _, err := l.journal.Append(event); err != nil {
		l.logger.Warn("failed to journal ledger event",
			zap.String("instrument", event.Instrument.String()),
			zap.String("kind", event.Kind.String()),
			zap.Error(err))
	}
}
