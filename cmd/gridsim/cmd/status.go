package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"github.com/vadiminshakov/gridsim/internal/ledger"
	"github.com/vadiminshakov/gridsim/internal/storage/instruments"
	"github.com/vadiminshakov/gridsim/internal/storage/ledgerstate"
	"go.uber.org/zap"
)

const statusTrades = 10

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	profitUp   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	profitDown = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted ledger and instrument table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		snap, configs, err := readState(cfg, zap.NewNop())
		if err != nil {
			return err
		}
		renderStatus(cmd.OutOrStdout(), snap, configs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// readState loads the state directory without starting anything.
func readState(cfg config.Config, logger *zap.Logger) (ledger.Snapshot, []domain.StrategyConfig, error) {
	stateStore, err := ledgerstate.NewStore(cfg.StateDir)
	if err != nil {
		return ledger.Snapshot{}, nil, err
	}
	book, err := ledger.New(stateStore, cfg.InitialCash, cfg.FeeRate, ledger.WithLogger(logger))
	if err != nil {
		return ledger.Snapshot{}, nil, err
	}
	if err := book.Load(); err != nil {
		return ledger.Snapshot{}, nil, err
	}

	instrumentStore, err := instruments.NewStore(cfg.StateDir, cfg.Defaults, logger)
	if err != nil {
		return ledger.Snapshot{}, nil, err
	}
	configs, err := instrumentStore.Load()
	if err != nil {
		return ledger.Snapshot{}, nil, err
	}

	return book.Snapshot(), configs, nil
}

func renderStatus(w io.Writer, snap ledger.Snapshot, configs []domain.StrategyConfig) {
	profit := profitUp
	if snap.RealizedProfit.IsNegative() {
		profit = profitDown
	}
	fmt.Fprintln(w, titleStyle.Render("LEDGER"))
	fmt.Fprintf(w, "cash %s  fee %s  realized %s\n\n",
		snap.Cash.StringFixed(2), snap.FeeRate.String(), profit.Render(snap.RealizedProfit.StringFixed(2)))

	open := make(map[domain.Pair]int, len(configs))
	for _, p := range snap.Positions {
		open[p.Instrument]++
	}

	fmt.Fprintln(w, titleStyle.Render("INSTRUMENTS"))
	instrumentsTable := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INSTRUMENT", "TARGET", "DROP", "MAX", "OPEN")
	for _, c := range configs {
		instrumentsTable.Row(c.Instrument.String(), c.TargetRate.String(), c.DropRate.String(),
			strconv.Itoa(c.MaxSteps), strconv.Itoa(open[c.Instrument]))
	}
	fmt.Fprintln(w, instrumentsTable.String())

	if len(snap.Positions) > 0 {
		fmt.Fprintln(w, titleStyle.Render("OPEN POSITIONS"))
		positions := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("INSTRUMENT", "STEP", "ENTRY", "QTY", "OPENED")
		for _, p := range snap.Positions {
			positions.Row(p.Instrument.String(), strconv.Itoa(p.Step), p.EntryPrice.String(),
				p.Quantity.StringFixed(8), p.OpenedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(w, positions.String())
	}

	if len(snap.ClosedTrades) > 0 {
		fmt.Fprintln(w, titleStyle.Render("RECENT TRADES"))
		trades := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("INSTRUMENT", "STEP", "PROFIT", "CLOSED")
		for i, t := range snap.ClosedTrades {
			if i == statusTrades {
				break
			}
			trades.Row(t.Instrument.String(), strconv.Itoa(t.Step), t.Profit.StringFixed(4),
				t.ClosedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(w, trades.String())
	}
}
