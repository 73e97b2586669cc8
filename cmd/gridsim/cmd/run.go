package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal"
	"github.com/vadiminshakov/gridsim/internal/events"
	"github.com/vadiminshakov/gridsim/internal/ledger"
	"github.com/vadiminshakov/gridsim/internal/metrics"
	"github.com/vadiminshakov/gridsim/internal/services/pricer"
	"github.com/vadiminshakov/gridsim/internal/services/strategy/grid"
	"github.com/vadiminshakov/gridsim/internal/storage/instruments"
	"github.com/vadiminshakov/gridsim/internal/storage/ledgerstate"
	"github.com/vadiminshakov/gridsim/internal/storage/tradejournal"
	"github.com/vadiminshakov/gridsim/internal/web"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	priceTimeout    = 5 * time.Second
	reportBuffer    = 256
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulator until interrupted",
	Long: `Run restores the ledger and the instrument table from the state directory,
seeds instruments from the config on first launch and serves the web console.

Example:
  gridsim run --config gridsim.gen.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// app is the wired simulator.
type app struct {
	cfg         config.Config
	l           *zap.Logger
	ledger      *ledger.Ledger
	journal     *tradejournal.WALStore
	broadcaster *events.Broadcaster
	registry    *prometheus.Registry
	orch        *internal.Orchestrator
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	feed, err := internal.NewPricer(cfg.Platform, cfg.HyperliquidURL)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, pricer.WithTimeout(feed, priceTimeout), logger)
	if err != nil {
		return err
	}
	defer a.close()

	if n := a.restore(); n > 0 {
		logger.Info("instruments ready", zap.Int("count", n))
	}
	if cfg.Autostart {
		logger.Info("autostart", zap.Int("started", a.orch.StartAll()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webErr := make(chan error, 1)
	if cfg.WebAddr != "" {
		go func() { webErr <- a.serve(ctx) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-webErr:
		if err != nil {
			logger.Error("web server failed, shutting down", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.orch.Shutdown(shutdownCtx)
}

func newApp(cfg config.Config, feed pricer.Pricer, logger *zap.Logger) (*app, error) {
	stateStore, err := ledgerstate.NewStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	journal, err := tradejournal.NewWALStore(filepath.Join(cfg.StateDir, "journal"))
	if err != nil {
		return nil, err
	}

	book, err := ledger.New(stateStore, cfg.InitialCash, cfg.FeeRate,
		ledger.WithJournal(journal),
		ledger.WithLogger(logger),
	)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}
	if err := book.Load(); err != nil {
		recoverLedger(book, journal, err, logger)
	}

	table, err := instruments.NewStore(cfg.StateDir, cfg.Defaults, logger)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}
	collector.SetCash(book.Cash())

	broadcaster := events.NewBroadcaster(reportBuffer)

	orch, err := internal.NewOrchestrator(internal.Params{
		Ledger: book,
		Pricer: feed,
		Store:  table,
		Settings: grid.Settings{
			Notional:         cfg.OrderAmount,
			PollInterval:     cfg.PollInterval,
			ThrottleInterval: cfg.ThrottleInterval,
		},
		Defaults:      cfg.Defaults,
		Sink:          broadcaster,
		Logger:        logger,
		EngineOptions: []grid.Option{grid.WithMetrics(collector)},
	})
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	return &app{
		cfg:         cfg,
		l:           logger,
		ledger:      book,
		journal:     journal,
		broadcaster: broadcaster,
		registry:    registry,
		orch:        orch,
	}, nil
}

// recoverLedger replays the journal when the state file is corrupt. A rotated
// journal cannot be trusted, so the ledger then stays at initial cash.
func recoverLedger(book *ledger.Ledger, journal *tradejournal.WALStore, loadErr error, logger *zap.Logger) {
	if !errors.Is(loadErr, ledgerstate.ErrCorrupt) {
		logger.Error("ledger state unreadable, starting from initial cash", zap.Error(loadErr))
		return
	}

	logger.Warn("ledger state corrupt, rebuilding from trade journal", zap.Error(loadErr))
	if err := book.Rebuild(journal); err != nil {
		logger.Error("journal rebuild failed, starting from initial cash", zap.Error(err))
	}
}

// restore loads the persisted instrument table. On first launch the table is
// empty and the config instruments are added instead.
func (a *app) restore() int {
	if n := a.orch.Restore(); n > 0 {
		return n
	}

	added := 0
	for _, cfg := range a.cfg.Instruments {
		if _, err := a.orch.AddInstrument(cfg); err != nil {
			a.l.Warn("skipping configured instrument", zap.String("instrument", cfg.Instrument.String()), zap.Error(err))
			continue
		}
		added++
	}
	return added
}

func (a *app) server() *web.Server {
	return web.NewServer(a.cfg.WebAddr, a.orch, a.ledger, a.journal, a.broadcaster, a.registry, a.l)
}

func (a *app) serve(ctx context.Context) error {
	srv := a.server()
	if len(a.cfg.WebTLSDomains) > 0 {
		return srv.StartWithAutoTLS(ctx, a.cfg.WebTLSDomains, filepath.Join(a.cfg.StateDir, "certs"))
	}
	return srv.Start(ctx)
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		a.l.Warn("failed to close trade journal", zap.Error(err))
	}
}
