// Package grid runs the per-instrument grid strategy loop against the shared ledger.
package grid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"github.com/vadiminshakov/gridsim/internal/events"
	"github.com/vadiminshakov/gridsim/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval     = time.Second
	DefaultThrottleInterval = 3 * time.Second
	defaultRecentTrades     = 10
)

type ledgerService interface {
	OpenPosition(instrument domain.Pair, step int, price, notional decimal.Decimal) (bool, error)
	ClosePosition(instrument domain.Pair, step int, price decimal.Decimal) (decimal.Decimal, bool, error)
	Positions(instrument domain.Pair) []domain.Position
	ClosedTrades(instrument domain.Pair) []domain.ClosedTrade
	RealizedProfit(instrument domain.Pair) decimal.Decimal
	Cash() decimal.Decimal
}

type pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Settings are shared by all engines of one orchestrator.
type Settings struct {
	// Notional is the cash committed to every step.
	Notional         decimal.Decimal
	PollInterval     time.Duration
	ThrottleInterval time.Duration
	// RecentTrades caps closed trades attached to each report.
	RecentTrades int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSink sets the destination of log and report messages.
func WithSink(sink events.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Outcome summarizes one iteration. Action is zero when nothing was executed.
type Outcome struct {
	Report domain.TickReport
	Action domain.Action
	Step   int
	Profit decimal.Decimal
}

// Engine drives one instrument. It is Idle until Start and returns to Idle on Stop.
type Engine struct {
	instrument domain.Pair
	settings   Settings
	ledger     ledgerService
	pricer     pricer
	sink       events.Sink
	metrics    *metrics.Collector
	l          *zap.Logger
	now        func() time.Time

	cfgMu sync.RWMutex
	cfg   domain.StrategyConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// tickMu serializes iterations; lastAction is only touched under it.
	tickMu     sync.Mutex
	lastAction time.Time
}

// NewEngine creates an idle engine for cfg.Instrument.
func NewEngine(l *zap.Logger, cfg domain.StrategyConfig, settings Settings, ledger ledgerService, pricer pricer, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid strategy config")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if pricer == nil {
		return nil, errors.New("pricer is required")
	}
	if !settings.Notional.IsPositive() {
		return nil, fmt.Errorf("notional must be positive, got %s", settings.Notional.String())
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if settings.ThrottleInterval < 0 {
		settings.ThrottleInterval = DefaultThrottleInterval
	}
	if settings.RecentTrades <= 0 {
		settings.RecentTrades = defaultRecentTrades
	}
	if l == nil {
		l = zap.NewNop()
	}

	e := &Engine{
		instrument: cfg.Instrument,
		settings:   settings,
		ledger:     ledger,
		pricer:     pricer,
		sink:       events.Discard,
		l:          l.With(zap.String("instrument", cfg.Instrument.String())),
		now:        time.Now,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Instrument returns the engine's instrument.
func (e *Engine) Instrument() domain.Pair {
	return e.instrument
}

// Config returns the current strategy parameters.
func (e *Engine) Config() domain.StrategyConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig replaces the strategy parameters. The running state is left
// untouched; the next iteration uses the new values.
func (e *Engine) UpdateConfig(cfg domain.StrategyConfig) error {
	if cfg.Instrument != e.instrument {
		return errors.Errorf("config instrument %s does not match engine %s", cfg.Instrument.String(), e.instrument.String())
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid strategy config")
	}

	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.emit(events.LevelInfo, "strategy updated: "+cfg.String())
	return nil
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start launches the loop. It returns false if the engine is already running.
// The loop ends on Stop or when ctx is done.
func (e *Engine) Start(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.running = true
	e.cancel = cancel
	e.done = done

	go e.run(runCtx, done)

	e.emit(events.LevelInfo, "started: "+e.Config().String())
	return true
}

// Stop ends the loop and returns immediately; an in-flight price request is
// cancelled. It returns false if the engine is idle. Use Wait to block until
// the loop has exited.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return false
	}

	e.running = false
	e.cancel()
	e.emit(events.LevelInfo, "stopped")
	return true
}

// Wait blocks until the most recently started loop exits or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.done == done && e.running {
			// parent context ended without Stop
			e.running = false
			e.cancel()
		}
		e.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(e.settings.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := e.Tick(ctx); err != nil && ctx.Err() == nil {
			e.l.Debug("tick finished with error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one iteration: price, take-profit, add-on, report.
// Panics are recovered and returned as errors so the loop keeps going.
func (e *Engine) Tick(ctx context.Context) (out Outcome, err error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	started := time.Now()
	defer func() {
		e.metrics.ObserveTick(e.instrument.String(), time.Since(started))
	}()

	defer func() {
		if r := recover(); r != nil {
			e.l.Error("recovered from panic in tick", zap.Any("panic", r))
			e.publish(events.LevelError, fmt.Sprintf("iteration failed: %v", r), nil)
			err = errors.Errorf("tick panic: %v", r)
		}
	}()

	cfg := e.Config()

	price, err := e.pricer.GetPrice(ctx, e.instrument)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, errors.Wrap(ctx.Err(), "tick cancelled")
		}
		e.metrics.IncFeedFailure(e.instrument.String())
		e.l.Warn("price unavailable, skipping tick", zap.Error(err))
		e.publish(events.LevelWarn, "price unavailable: "+err.Error(), nil)
		return Outcome{}, errors.Wrap(err, "get price")
	}

	now := e.now()
	canAct := e.lastAction.IsZero() || now.Sub(e.lastAction) >= e.settings.ThrottleInterval

	if canAct {
		out, err = e.evaluateSell(cfg, price, now)
		if out.Action != 0 {
			canAct = false
		}
	}

	if canAct && err == nil {
		out, err = e.evaluateBuy(cfg, price, now)
	}

	out.Report = e.report(price, now)
	return out, err
}

func (e *Engine) evaluateSell(cfg domain.StrategyConfig, price decimal.Decimal, now time.Time) (Outcome, error) {
	decision := domain.EvaluateTakeProfit(e.ledger.Positions(e.instrument), price, cfg)
	if !decision.ShouldSell {
		return Outcome{}, nil
	}

	e.emit(events.LevelInfo, fmt.Sprintf("step %d take-profit triggered (target %s / current %s)",
		decision.Step, decision.TargetPrice.StringFixed(2), price.String()))

	profit, found, err := e.ledger.ClosePosition(e.instrument, decision.Step, price)
	if err != nil {
		e.l.Error("close failed", zap.Int("step", decision.Step), zap.Error(err))
		e.publish(events.LevelError, fmt.Sprintf("step %d close failed: %v", decision.Step, err), nil)
		return Outcome{}, errors.Wrapf(err, "close step %d", decision.Step)
	}
	if !found {
		e.emit(events.LevelWarn, fmt.Sprintf("step %d is no longer open", decision.Step))
		return Outcome{}, nil
	}

	e.lastAction = now
	e.metrics.IncAction(e.instrument.String(), domain.ActionClose.String())
	e.emit(events.LevelInfo, fmt.Sprintf("step %d closed at %s, profit %s",
		decision.Step, price.String(), profit.StringFixed(2)))

	return Outcome{Action: domain.ActionClose, Step: decision.Step, Profit: profit}, nil
}

func (e *Engine) evaluateBuy(cfg domain.StrategyConfig, price decimal.Decimal, now time.Time) (Outcome, error) {
	decision := domain.EvaluateAddOn(e.ledger.Positions(e.instrument), price, cfg)
	if !decision.ShouldBuy {
		return Outcome{}, nil
	}

	if decision.Step == 1 {
		e.emit(events.LevelInfo, fmt.Sprintf("step 1 entry (current %s)", price.String()))
	} else {
		e.emit(events.LevelInfo, fmt.Sprintf("step %d add-on triggered (threshold %s / current %s)",
			decision.Step, decision.ThresholdPrice.StringFixed(2), price.String()))
	}

	ok, err := e.ledger.OpenPosition(e.instrument, decision.Step, price, e.settings.Notional)
	if err != nil {
		e.l.Error("open failed", zap.Int("step", decision.Step), zap.Error(err))
		e.publish(events.LevelError, fmt.Sprintf("step %d open failed: %v", decision.Step, err), nil)
		return Outcome{}, errors.Wrapf(err, "open step %d", decision.Step)
	}
	if !ok {
		e.emit(events.LevelWarn, fmt.Sprintf("step %d open refused: insufficient cash", decision.Step))
		return Outcome{}, nil
	}

	e.lastAction = now
	e.metrics.IncAction(e.instrument.String(), domain.ActionOpen.String())
	e.emit(events.LevelInfo, fmt.Sprintf("step %d opened at %s", decision.Step, price.String()))

	return Outcome{Action: domain.ActionOpen, Step: decision.Step}, nil
}

func (e *Engine) report(price decimal.Decimal, now time.Time) domain.TickReport {
	positions := e.ledger.Positions(e.instrument)
	trades := e.ledger.ClosedTrades(e.instrument)
	if len(trades) > e.settings.RecentTrades {
		trades = trades[:e.settings.RecentTrades]
	}

	var remaining time.Duration
	if !e.lastAction.IsZero() {
		if left := e.settings.ThrottleInterval - now.Sub(e.lastAction); left > 0 {
			remaining = left
		}
	}

	report := domain.TickReport{
		Instrument:        e.instrument,
		Time:              now,
		Price:             price,
		Cash:              e.ledger.Cash(),
		Running:           e.Running(),
		ThrottleRemaining: remaining,
		Positions:         domain.NewPositionViews(positions, price),
		RealizedProfit:    e.ledger.RealizedProfit(e.instrument),
		RecentTrades:      trades,
	}

	e.metrics.SetCash(report.Cash)
	e.metrics.SetOpenPositions(e.instrument.String(), len(positions))
	e.publish(events.LevelInfo, report.String(), &report)

	return report
}

// emit logs text and forwards it to the sink.
func (e *Engine) emit(level events.Level, text string) {
	switch level {
	case events.LevelError:
		e.l.Error(text)
	case events.LevelWarn:
		e.l.Warn(text)
	default:
		e.l.Info(text)
	}
	e.publish(level, text, nil)
}

func (e *Engine) publish(level events.Level, text string, report *domain.TickReport) {
	e.sink.Publish(events.Message{
		Time:       e.now(),
		Instrument: e.instrument.String(),
		Level:      level,
		Text:       text,
		Report:     report,
	})
}
