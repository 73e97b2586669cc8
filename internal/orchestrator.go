// Package internal wires instrument engines to the shared ledger.
package internal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"github.com/vadiminshakov/gridsim/internal/events"
	"github.com/vadiminshakov/gridsim/internal/ledger"
	"github.com/vadiminshakov/gridsim/internal/services/pricer"
	"github.com/vadiminshakov/gridsim/internal/services/strategy/grid"
	"go.uber.org/zap"
)

var (
	ErrInstrumentExists  = errors.New("instrument already exists")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

type configStore interface {
	Load() ([]domain.StrategyConfig, error)
	Save(configs []domain.StrategyConfig) error
}

// InstrumentStatus describes one managed instrument.
type InstrumentStatus struct {
	Config  domain.StrategyConfig `json:"config"`
	Running bool                  `json:"running"`
}

// Orchestrator owns one engine per instrument, all bound to one ledger.
type Orchestrator struct {
	mu      sync.RWMutex
	engines map[domain.Pair]*grid.Engine
	order   []domain.Pair

	ledger     *ledger.Ledger
	pricer     pricer.Pricer
	store      configStore
	settings   grid.Settings
	defaults   domain.StrategyConfig
	engineOpts []grid.Option
	sink       events.Sink
	l          *zap.Logger

	// loops outlive the callers of Start, so they hang off this context.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Params groups Orchestrator dependencies.
type Params struct {
	Ledger   *ledger.Ledger
	Pricer   pricer.Pricer
	Store    configStore
	Settings grid.Settings
	// Defaults supplies parameters for instruments added without explicit ones.
	Defaults domain.StrategyConfig
	Sink     events.Sink
	Logger   *zap.Logger
	// EngineOptions are applied to every engine (metrics, clock).
	EngineOptions []grid.Option
}

// NewOrchestrator creates an orchestrator with no instruments.
func NewOrchestrator(p Params) (*Orchestrator, error) {
	if p.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if p.Pricer == nil {
		return nil, errors.New("pricer is required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Sink == nil {
		p.Sink = events.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		engines:    make(map[domain.Pair]*grid.Engine),
		ledger:     p.Ledger,
		pricer:     p.Pricer,
		store:      p.Store,
		settings:   p.Settings,
		defaults:   p.Defaults,
		engineOpts: append([]grid.Option{grid.WithSink(p.Sink)}, p.EngineOptions...),
		sink:       p.Sink,
		l:          p.Logger,
		baseCtx:    ctx,
		cancel:     cancel,
	}, nil
}

// Defaults returns the default parameters bound to instrument.
func (o *Orchestrator) Defaults(instrument domain.Pair) domain.StrategyConfig {
	cfg := o.defaults
	cfg.Instrument = instrument
	return cfg
}

// Ledger returns the shared ledger.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// AddInstrument creates an idle engine for cfg.Instrument. If the instrument
// is already managed nothing changes and ErrInstrumentExists is returned
// together with the existing engine.
func (o *Orchestrator) AddInstrument(cfg domain.StrategyConfig) (*grid.Engine, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.engines[cfg.Instrument]; ok {
		return existing, errors.Wrap(ErrInstrumentExists, cfg.Instrument.String())
	}

	engine, err := o.newEngine(cfg)
	if err != nil {
		return nil, err
	}

	o.engines[cfg.Instrument] = engine
	o.order = append(o.order, cfg.Instrument)
	o.persistLocked()

	o.l.Info("instrument added", zap.String("instrument", cfg.Instrument.String()), zap.Stringer("config", cfg))
	o.sink.Publish(events.Message{Time: time.Now(), Instrument: cfg.Instrument.String(), Level: events.LevelInfo, Text: "instrument added: " + cfg.String()})

	return engine, nil
}

// UpdateConfig applies new parameters to a live engine and persists the table.
func (o *Orchestrator) UpdateConfig(cfg domain.StrategyConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	engine, ok := o.engines[cfg.Instrument]
	if !ok {
		return errors.Wrap(ErrUnknownInstrument, cfg.Instrument.String())
	}
	if err := engine.UpdateConfig(cfg); err != nil {
		return err
	}
	o.persistLocked()

	return nil
}

// Start starts the engine of instrument. started is false if it was already running.
func (o *Orchestrator) Start(instrument domain.Pair) (started bool, err error) {
	engine, err := o.engine(instrument)
	if err != nil {
		return false, err
	}
	return engine.Start(o.baseCtx), nil
}

// Stop stops the engine of instrument. stopped is false if it was idle.
func (o *Orchestrator) Stop(instrument domain.Pair) (stopped bool, err error) {
	engine, err := o.engine(instrument)
	if err != nil {
		return false, err
	}
	return engine.Stop(), nil
}

// StartAll starts every idle engine and returns how many were started.
func (o *Orchestrator) StartAll() int {
	started := 0
	for _, engine := range o.snapshotEngines() {
		if engine.Start(o.baseCtx) {
			started++
		}
	}
	return started
}

// Instruments lists managed instruments in the order they were added.
func (o *Orchestrator) Instruments() []InstrumentStatus {
	engines := o.snapshotEngines()
	out := make([]InstrumentStatus, 0, len(engines))
	for _, engine := range engines {
		out = append(out, InstrumentStatus{Config: engine.Config(), Running: engine.Running()})
	}
	return out
}

// Engine returns the engine of instrument.
func (o *Orchestrator) Engine(instrument domain.Pair) (*grid.Engine, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	engine, ok := o.engines[instrument]
	return engine, ok
}

// Restore rebuilds engines from the persisted instrument table. Engines start idle.
// An unreadable table is logged and treated as empty.
func (o *Orchestrator) Restore() int {
	if o.store == nil {
		return 0
	}

	configs, err := o.store.Load()
	if err != nil {
		o.l.Error("failed to load instrument table, starting without instruments", zap.Error(err))
		return 0
	}

	restored := 0
	for _, cfg := range configs {
		if _, err := o.AddInstrument(cfg); err != nil {
			o.l.Warn("skipping persisted instrument", zap.String("instrument", cfg.Instrument.String()), zap.Error(err))
			continue
		}
		restored++
	}
	return restored
}

// Shutdown stops all engines, waits for their loops, and saves the ledger.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	engines := o.snapshotEngines()
	for _, engine := range engines {
		engine.Stop()
	}
	o.cancel()

	var waitErr error
	for _, engine := range engines {
		if err := engine.Wait(ctx); err != nil {
			o.l.Warn("engine did not stop in time", zap.String("instrument", engine.Instrument().String()), zap.Error(err))
			waitErr = err
		}
	}

	o.mu.Lock()
	o.persistLocked()
	o.mu.Unlock()

	if err := o.ledger.Save(); err != nil {
		o.l.Error("final ledger save failed", zap.Error(err))
		return err
	}

	return waitErr
}

func (o *Orchestrator) newEngine(cfg domain.StrategyConfig) (*grid.Engine, error) {
	return grid.NewEngine(o.l, cfg, o.settings, o.ledger, o.pricer, o.engineOpts...)
}

func (o *Orchestrator) engine(instrument domain.Pair) (*grid.Engine, error) {
	engine, ok := o.Engine(instrument)
	if !ok {
		return nil, errors.Wrap(ErrUnknownInstrument, instrument.String())
	}
	return engine, nil
}

func (o *Orchestrator) snapshotEngines() []*grid.Engine {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*grid.Engine, 0, len(o.order))
	for _, instrument := range o.order {
		out = append(out, o.engines[instrument])
	}
	return out
}

func (o *Orchestrator) persistLocked() {
	if o.store == nil {
		return
	}

	configs := make([]domain.StrategyConfig, 0, len(o.order))
	for _, instrument := range o.order {
		configs = append(configs, o.engines[instrument].Config())
	}
	if err := o.store.Save(configs); err != nil {
		o.l.Warn("failed to persist instrument table", zap.Error(err))
	}
}
