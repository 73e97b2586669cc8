package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal/domain"
	pricerMock "github.com/vadiminshakov/gridsim/mocks/pricer"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.ThrottleInterval = 0
	cfg.Instruments = []domain.StrategyConfig{
		domain.DefaultStrategyConfig(domain.Pair{From: "BTC", To: "USDT"}),
		domain.DefaultStrategyConfig(domain.Pair{From: "ETH", To: "USDT"}),
	}
	return cfg
}

func TestAppSeedsTickAndPersists(t *testing.T) {
	cfg := testConfig(t)
	btc := cfg.Instruments[0].Instrument

	feed := pricerMock.NewPricer(t)
	feed.On("GetPrice", mock.Anything, btc).Return(decimal.NewFromInt(100), nil).Once()

	a, err := newApp(cfg, feed, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, a.restore())

	engine, ok := a.orch.Engine(btc)
	require.True(t, ok)
	out, err := engine.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOpen, out.Action)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.orch.Shutdown(ctx))
	a.close()

	snap, configs, err := readState(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "993997", snap.Cash.String())
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, btc, snap.Positions[0].Instrument)
	require.Len(t, configs, 2)

	var buf bytes.Buffer
	renderStatus(&buf, snap, configs)
	assert.Contains(t, buf.String(), "BTC_USDT")
	assert.Contains(t, buf.String(), "ETH_USDT")
	assert.Contains(t, buf.String(), "OPEN POSITIONS")
}

func TestAppRestorePrefersPersistedTable(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg, pricerMock.NewPricer(t), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, a.restore())
	require.NoError(t, a.orch.Shutdown(context.Background()))
	a.close()

	// the config now lists a different instrument; the table from the first run wins
	cfg.Instruments = []domain.StrategyConfig{domain.DefaultStrategyConfig(domain.Pair{From: "SOL", To: "USDT"})}
	b, err := newApp(cfg, pricerMock.NewPricer(t), zap.NewNop())
	require.NoError(t, err)
	defer b.close()

	assert.Equal(t, 2, b.restore())
	_, ok := b.orch.Engine(domain.Pair{From: "SOL", To: "USDT"})
	assert.False(t, ok)
}

func TestAppRebuildsCorruptLedgerFromJournal(t *testing.T) {
	cfg := testConfig(t)
	btc := cfg.Instruments[0].Instrument

	feed := pricerMock.NewPricer(t)
	feed.On("GetPrice", mock.Anything, btc).Return(decimal.NewFromInt(100), nil).Once()

	a, err := newApp(cfg, feed, zap.NewNop())
	require.NoError(t, err)
	a.restore()
	engine, _ := a.orch.Engine(btc)
	_, err = engine.Tick(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.orch.Shutdown(context.Background()))
	a.close()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.StateDir, "ledger.json"), []byte("{broken"), 0o644))

	b, err := newApp(cfg, pricerMock.NewPricer(t), zap.NewNop())
	require.NoError(t, err)
	defer b.close()

	assert.Equal(t, "993997", b.ledger.Cash().String())
	require.Len(t, b.ledger.Positions(btc), 1)
}

func TestRenderStatusEmpty(t *testing.T) {
	snap, configs, err := readState(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, configs)

	var buf bytes.Buffer
	renderStatus(&buf, snap, configs)
	assert.Contains(t, buf.String(), "cash 1000000.00")
	assert.NotContains(t, buf.String(), "RECENT TRADES")
}
