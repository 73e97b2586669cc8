// Package ledgerstate persists ledger tables (cash, open positions, closed trades) as a JSON document.
package ledgerstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

const (
	fileName       = "ledger.json"
	dirPermissions = 0o755
	filePermission = 0o644
)

// ErrCorrupt is returned by Load when the state file cannot be decoded.
// The unreadable file is moved aside so the next save does not destroy it.
var ErrCorrupt = errors.New("ledger state file is corrupt")

// Store persists ledger state so restarts keep balances, positions and history.
type Store struct {
	path  string
	retry backoff
}

// NewStore creates a ledger state store in dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrap(err, "create ledger state dir")
	}

	return &Store{
		path:  filepath.Join(dir, fileName),
		retry: defaultBackoff(),
	}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// State is the logical layout of the ledger tables.
type State struct {
	Cash      string        `json:"cash"`
	Positions []PositionRow `json:"positions"`
	// ClosedTrades are stored newest first.
	ClosedTrades []ClosedTradeRow `json:"closed_trades"`
}

// PositionRow is one row of the open positions table.
type PositionRow struct {
	Instrument string    `json:"instrument"`
	Step       int       `json:"step"`
	Price      string    `json:"price"`
	Amount     string    `json:"amount"`
	OpenedAt   time.Time `json:"opened_at"`
}

// ClosedTradeRow is one row of the closed trades table.
type ClosedTradeRow struct {
	Instrument string    `json:"instrument"`
	Step       int       `json:"step"`
	Profit     string    `json:"profit"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Load reads ledger state from disk. Missing or empty files yield (nil, nil).
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	var payload []byte
	err := s.retry.do(context.Background(), func() (err error) {
		payload, err = os.ReadFile(s.path)
		return err
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read ledger state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		quarantined := s.quarantine()
		return nil, errors.Wrapf(ErrCorrupt, "decode %s (moved to %s): %v", s.path, quarantined, err)
	}

	return &state, nil
}

// Save writes ledger state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode ledger state")
	}

	tmp := s.path + ".tmp"
	return s.retry.do(context.Background(), func() error {
		if err := os.WriteFile(tmp, payload, filePermission); err != nil {
			return errors.Wrap(err, "write ledger state temp file")
		}
		if err := os.Rename(tmp, s.path); err != nil {
			return errors.Wrap(err, "persist ledger state")
		}
		return nil
	})
}

func (s *Store) quarantine() string {
	target := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, target); err != nil {
		return s.path
	}
	return target
}

// isTransient reports whether an I/O error may clear on its own (e.g. the file is locked by another reader).
func isTransient(err error) bool {
	return !errors.Is(err, os.ErrNotExist)
}

// NewPositionRow converts a domain position into its stored representation.
func NewPositionRow(p domain.Position) PositionRow {
	return PositionRow{
		Instrument: p.Instrument.String(),
		Step:       p.Step,
		Price:      p.EntryPrice.String(),
		Amount:     p.Quantity.String(),
		OpenedAt:   p.OpenedAt,
	}
}

// ToPosition reconstructs a domain position from stored data.
func (r PositionRow) ToPosition() (domain.Position, error) {
	instrument, err := domain.ParsePair(r.Instrument)
	if err != nil {
		return domain.Position{}, errors.Wrap(err, "decode position instrument")
	}

	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.Position{}, errors.Wrap(err, "decode position price")
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Position{}, errors.Wrap(err, "decode position amount")
	}

	return domain.NewPosition(instrument, r.Step, price, amount, r.OpenedAt)
}

// NewClosedTradeRow converts a closed trade into its stored representation.
func NewClosedTradeRow(t domain.ClosedTrade) ClosedTradeRow {
	return ClosedTradeRow{
		Instrument: t.Instrument.String(),
		Step:       t.Step,
		Profit:     t.Profit.String(),
		ClosedAt:   t.ClosedAt,
	}
}

// ToClosedTrade reconstructs a closed trade from stored data.
func (r ClosedTradeRow) ToClosedTrade() (domain.ClosedTrade, error) {
	instrument, err := domain.ParsePair(r.Instrument)
	if err != nil {
		return domain.ClosedTrade{}, errors.Wrap(err, "decode closed trade instrument")
	}

	profit, err := decimal.NewFromString(r.Profit)
	if err != nil {
		return domain.ClosedTrade{}, errors.Wrap(err, "decode closed trade profit")
	}
	if r.Step < 1 {
		return domain.ClosedTrade{}, errors.Errorf("closed trade step must be >= 1, got %d", r.Step)
	}

	return domain.ClosedTrade{
		Instrument: instrument,
		Step:       r.Step,
		Profit:     profit,
		ClosedAt:   r.ClosedAt,
	}, nil
}
