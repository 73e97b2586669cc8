// Package instruments persists the per-instrument strategy configuration table as YAML.
package instruments

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const fileName = "instruments.yaml"

// ErrCorrupt is returned when the table is not a YAML sequence at all.
var ErrCorrupt = errors.New("instrument table is corrupt")

// Store reads and writes the instrument table.
type Store struct {
	path     string
	defaults domain.StrategyConfig
	logger   *zap.Logger
}

// NewStore creates a store in dir. defaults supply values for missing or malformed fields.
func NewStore(dir string, defaults domain.StrategyConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create instrument table dir")
	}

	return &Store{
		path:     filepath.Join(dir, fileName),
		defaults: defaults,
		logger:   logger,
	}, nil
}

// row is one line of the table. Values are kept as strings so a single
// bad field falls back to its default instead of failing the whole row.
type row struct {
	Instrument string `yaml:"instrument"`
	TargetRate string `yaml:"target_rate"`
	DropRate   string `yaml:"drop_rate"`
	MaxSteps   string `yaml:"max_steps,omitempty"`
}

// Load reads the table. Rows without a parsable instrument are skipped;
// malformed rates or step caps fall back to the store defaults.
func (s *Store) Load() ([]domain.StrategyConfig, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read instrument table")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(payload, &nodes); err != nil {
		target := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
		if renameErr := os.Rename(s.path, target); renameErr != nil {
			target = s.path
		}
		return nil, errors.Wrapf(ErrCorrupt, "decode %s (moved to %s): %v", s.path, target, err)
	}

	configs := make([]domain.StrategyConfig, 0, len(nodes))
	seen := make(map[domain.Pair]bool, len(nodes))
	for i := range nodes {
		var r row
		if err := nodes[i].Decode(&r); err != nil {
			s.logger.Warn("skipping malformed instrument row", zap.Int("row", i), zap.Error(err))
			continue
		}

		cfg, err := s.toConfig(r)
		if err != nil {
			s.logger.Warn("skipping instrument row", zap.Int("row", i), zap.Error(err))
			continue
		}
		if seen[cfg.Instrument] {
			s.logger.Warn("skipping duplicate instrument row", zap.Int("row", i), zap.String("instrument", cfg.Instrument.String()))
			continue
		}
		seen[cfg.Instrument] = true
		configs = append(configs, cfg)
	}

	return configs, nil
}

// Save writes the full table atomically via temp file.
func (s *Store) Save(configs []domain.StrategyConfig) error {
	rows := make([]row, 0, len(configs))
	for _, cfg := range configs {
		rows = append(rows, row{
			Instrument: cfg.Instrument.String(),
			TargetRate: cfg.TargetRate.String(),
			DropRate:   cfg.DropRate.String(),
			MaxSteps:   strconv.Itoa(cfg.MaxSteps),
		})
	}

	payload, err := yaml.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encode instrument table")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write instrument table temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist instrument table")
	}

	return nil
}

func (s *Store) toConfig(r row) (domain.StrategyConfig, error) {
	instrument, err := domain.ParsePair(r.Instrument)
	if err != nil {
		return domain.StrategyConfig{}, err
	}

	cfg := s.defaults
	cfg.Instrument = instrument
	log := s.logger.With(zap.String("instrument", instrument.String()))

	if target, err := decimal.NewFromString(r.TargetRate); err == nil {
		cfg.TargetRate = target
	} else {
		log.Warn("invalid target_rate, using default", zap.String("value", r.TargetRate))
	}

	if drop, err := decimal.NewFromString(r.DropRate); err == nil {
		cfg.DropRate = drop
	} else {
		log.Warn("invalid drop_rate, using default", zap.String("value", r.DropRate))
	}

	if r.MaxSteps != "" {
		if maxSteps, err := strconv.Atoi(r.MaxSteps); err == nil {
			cfg.MaxSteps = maxSteps
		} else {
			log.Warn("invalid max_steps, using default", zap.String("value", r.MaxSteps))
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Warn("instrument config out of range, using defaults", zap.Error(err))
		fallback := s.defaults
		fallback.Instrument = instrument
		return fallback, nil
	}

	return cfg, nil
}
