package tradejournal

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

func TestWALStore_AppendAndEventsAfter(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	pair := domain.Pair{From: "BTC", To: "USDT"}
	open, err := store.Append(domain.LedgerEvent{
		ID:         "a",
		Kind:       domain.ActionOpen,
		Instrument: pair,
		Step:       1,
		Price:      decimal.NewFromInt(100),
		Quantity:   decimal.NewFromInt(60),
		Cash:       decimal.NewFromInt(993997),
		Time:       time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), open.Seq)

	closed, err := store.Append(domain.LedgerEvent{
		ID:         "b",
		Kind:       domain.ActionClose,
		Instrument: pair,
		Step:       1,
		Price:      decimal.NewFromInt(100),
		Quantity:   decimal.NewFromInt(60),
		Profit:     decimal.NewFromInt(-6),
		Cash:       decimal.NewFromInt(999994),
		Time:       time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), closed.Seq)

	all, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ActionOpen, all[0].Kind)
	assert.Equal(t, domain.ActionClose, all[1].Kind)
	assert.True(t, all[1].Profit.Equal(decimal.NewFromInt(-6)))

	tail, err := store.EventsAfter(1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "b", tail[0].ID)

	none, err := store.EventsAfter(2)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(2), reopened.CurrentIndex())
}

func TestWALStore_RejectsEventWithoutInstrument(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Append(domain.LedgerEvent{Kind: domain.ActionOpen})
	require.Error(t, err)
}

func TestWALStore_Replay(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	pair := domain.Pair{From: "ETH", To: "USDT"}
	for step := 1; step <= 3; step++ {
		_, err := store.Append(domain.LedgerEvent{Kind: domain.ActionOpen, Instrument: pair, Step: step})
		require.NoError(t, err)
	}

	var steps []int
	require.NoError(t, store.Replay(func(e domain.LedgerEvent) error {
		steps = append(steps, e.Step)
		return nil
	}))
	assert.Equal(t, []int{1, 2, 3}, steps)

	stop := errors.New("stop")
	calls := 0
	err = store.Replay(func(domain.LedgerEvent) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWALStore_Closed(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Append(domain.LedgerEvent{Kind: domain.ActionOpen, Instrument: domain.Pair{From: "BTC", To: "USDT"}})
	require.Error(t, err)
	_, err = store.EventsAfter(0)
	require.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}
