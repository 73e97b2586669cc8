// Package tradejournal keeps an append-only WAL of ledger mutations.
package tradejournal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

const (
	// 100 segments of 1000 events; the oldest segment is dropped beyond that.
	segmentLimit = 1000
	maxSegments  = 100

	keyPrefix = "ledger/"
)

// ErrTruncated is returned by Replay when older segments were rotated away
// and the history no longer starts at the first event.
var ErrTruncated = errors.New("trade journal does not start at the first event")

// WALStore persists ledger events in a WAL. The WAL index doubles as the event sequence number.
type WALStore struct {
	mu  sync.RWMutex
	wal *gowal.Wal
}

// NewWALStore opens (or creates) the journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open trade journal")
	}

	return &WALStore{wal: wal}, nil
}

// Append assigns the next sequence number to event and writes it.
func (s *WALStore) Append(event domain.LedgerEvent) (domain.LedgerEvent, error) {
	if event.Instrument.IsZero() {
		return event, errors.New("ledger event instrument is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wal == nil {
		return event, errors.New("trade journal is closed")
	}

	event.Seq = s.wal.CurrentIndex() + 1
	payload, err := json.Marshal(event)
	if err != nil {
		return event, errors.Wrap(err, "encode ledger event")
	}
	if err := s.wal.Write(event.Seq, keyPrefix+event.Instrument.String(), payload); err != nil {
		return event, errors.Wrapf(err, "write ledger event %d", event.Seq)
	}

	return event, nil
}

// Replay calls fn for every retained event, oldest first, and stops at the
// first error fn returns. It fails with ErrTruncated when older segments were
// rotated away, since a partial history cannot rebuild a ledger.
func (s *WALStore) Replay(fn func(domain.LedgerEvent) error) error {
	return s.scan(0, true, fn)
}

// EventsAfter returns the events with Seq > seq, oldest first. A rotated
// history is tolerated.
func (s *WALStore) EventsAfter(seq uint64) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	err := s.scan(seq, false, func(e domain.LedgerEvent) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func (s *WALStore) scan(after uint64, strict bool, fn func(domain.LedgerEvent) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal == nil {
		return errors.New("trade journal is closed")
	}
	if s.wal.CurrentIndex() <= after {
		return nil
	}

	first := true
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, keyPrefix) {
			continue
		}

		var event domain.LedgerEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return errors.Wrapf(err, "decode ledger event %s", msg.Key)
		}
		if first && strict && event.Seq != 1 {
			return errors.Wrapf(ErrTruncated, "oldest event is %d", event.Seq)
		}
		first = false

		if event.Seq <= after {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}

	return nil
}

// CurrentIndex returns the latest sequence number written.
func (s *WALStore) CurrentIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal == nil {
		return 0
	}
	return s.wal.CurrentIndex()
}

// Close flushes and closes the WAL. Further calls fail.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wal == nil {
		return nil
	}
	err := s.wal.Close()
	s.wal = nil
	return err
}
