// Package config loads the simulator settings from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"

	// StateDirEnv overrides state_dir.
	StateDirEnv = "GRIDSIM_STATE_DIR"

	DefaultStateDir = "./state"
)

var (
	DefaultInitialCash = decimal.NewFromInt(1_000_000)
	DefaultFeeRate     = decimal.RequireFromString("0.0005")
	DefaultOrderAmount = decimal.NewFromInt(6000)
)

// Config is the validated application configuration.
type Config struct {
	Platform         string
	StateDir         string
	InitialCash      decimal.Decimal
	FeeRate          decimal.Decimal
	OrderAmount      decimal.Decimal
	PollInterval     time.Duration
	ThrottleInterval time.Duration
	WebAddr          string
	WebTLSDomains    []string
	HyperliquidURL   string
	Autostart        bool
	// Defaults has no instrument; it seeds new and malformed instrument rows.
	Defaults    domain.StrategyConfig
	Instruments []domain.StrategyConfig
}

// ConfigTmp is the on-disk layout. Decimals are strings so they keep their exact value.
type ConfigTmp struct {
	Platform         string          `yaml:"platform" validate:"omitempty,oneof=binance bybit hyperliquid"`
	StateDir         string          `yaml:"state_dir,omitempty"`
	InitialCash      string          `yaml:"initial_cash,omitempty" validate:"omitempty,numeric"`
	FeeRate          string          `yaml:"fee_rate,omitempty" validate:"omitempty,numeric"`
	OrderAmount      string          `yaml:"order_amount,omitempty" validate:"omitempty,numeric"`
	PollInterval     time.Duration   `yaml:"poll_interval,omitempty" validate:"gte=0"`
	ThrottleInterval time.Duration   `yaml:"throttle_interval,omitempty" validate:"gte=0"`
	WebAddr          string          `yaml:"web_addr,omitempty" validate:"omitempty,hostname_port"`
	WebTLSDomains    []string        `yaml:"web_tls_domains,omitempty" validate:"dive,fqdn"`
	HyperliquidURL   string          `yaml:"hyperliquid_url,omitempty" validate:"omitempty,url"`
	Autostart        bool            `yaml:"autostart,omitempty"`
	Defaults         InstrumentTmp   `yaml:"defaults,omitempty"`
	Instruments      []InstrumentTmp `yaml:"instruments,omitempty" validate:"dive"`
}

// InstrumentTmp is one strategy row. Empty fields take the defaults.
type InstrumentTmp struct {
	Instrument string `yaml:"instrument,omitempty"`
	TargetRate string `yaml:"target_rate,omitempty" validate:"omitempty,numeric"`
	DropRate   string `yaml:"drop_rate,omitempty" validate:"omitempty,numeric"`
	MaxSteps   string `yaml:"max_steps,omitempty" validate:"omitempty,numeric"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Platform:         PlatformBinance,
		StateDir:         DefaultStateDir,
		InitialCash:      DefaultInitialCash,
		FeeRate:          DefaultFeeRate,
		OrderAmount:      DefaultOrderAmount,
		PollInterval:     time.Second,
		ThrottleInterval: 3 * time.Second,
		Defaults: domain.StrategyConfig{
			TargetRate: domain.DefaultTargetRate,
			DropRate:   domain.DefaultDropRate,
			MaxSteps:   domain.DefaultMaxSteps,
		},
	}
}

// Load reads path, or returns the defaults when path is empty. GRIDSIM_STATE_DIR wins over state_dir.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}

		var tmp ConfigTmp
		if err := yaml.Unmarshal(payload, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}

		cfg, err = FromTmp(tmp)
		if err != nil {
			return Config{}, err
		}
	}

	if dir := strings.TrimSpace(os.Getenv(StateDirEnv)); dir != "" {
		cfg.StateDir = dir
	}

	return cfg, nil
}

// FromTmp validates raw values and applies defaults.
func FromTmp(tmp ConfigTmp) (Config, error) {
	if err := validator.New().Struct(tmp); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}

	cfg := Default()
	if tmp.Platform != "" {
		cfg.Platform = tmp.Platform
	}
	if tmp.StateDir != "" {
		cfg.StateDir = tmp.StateDir
	}
	if tmp.PollInterval > 0 {
		cfg.PollInterval = tmp.PollInterval
	}
	if tmp.ThrottleInterval > 0 {
		cfg.ThrottleInterval = tmp.ThrottleInterval
	}
	cfg.WebAddr = tmp.WebAddr
	cfg.WebTLSDomains = tmp.WebTLSDomains
	cfg.HyperliquidURL = tmp.HyperliquidURL
	cfg.Autostart = tmp.Autostart

	var err error
	if cfg.InitialCash, err = decimalOr(tmp.InitialCash, cfg.InitialCash, "initial_cash"); err != nil {
		return Config{}, err
	}
	if cfg.FeeRate, err = decimalOr(tmp.FeeRate, cfg.FeeRate, "fee_rate"); err != nil {
		return Config{}, err
	}
	if cfg.OrderAmount, err = decimalOr(tmp.OrderAmount, cfg.OrderAmount, "order_amount"); err != nil {
		return Config{}, err
	}

	if cfg.InitialCash.IsNegative() {
		return Config{}, fmt.Errorf("initial_cash must not be negative, got %s", cfg.InitialCash.String())
	}
	if cfg.FeeRate.IsNegative() || cfg.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("fee_rate must be in [0, 1), got %s", cfg.FeeRate.String())
	}
	if !cfg.OrderAmount.IsPositive() {
		return Config{}, fmt.Errorf("order_amount must be positive, got %s", cfg.OrderAmount.String())
	}

	defaults, err := instrumentConfig(tmp.Defaults, cfg.Defaults, false)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'defaults' section")
	}
	cfg.Defaults = defaults

	seen := make(map[domain.Pair]bool, len(tmp.Instruments))
	for i, row := range tmp.Instruments {
		instrument, err := instrumentConfig(row, cfg.Defaults, true)
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect instrument #%d in yaml config", i+1)
		}
		if seen[instrument.Instrument] {
			return Config{}, fmt.Errorf("instrument %s is listed twice", instrument.Instrument.String())
		}
		seen[instrument.Instrument] = true
		cfg.Instruments = append(cfg.Instruments, instrument)
	}

	return cfg, nil
}

// ToTmp converts cfg back to its on-disk layout.
func (c Config) ToTmp() ConfigTmp {
	tmp := ConfigTmp{
		Platform:         c.Platform,
		StateDir:         c.StateDir,
		InitialCash:      c.InitialCash.String(),
		FeeRate:          c.FeeRate.String(),
		OrderAmount:      c.OrderAmount.String(),
		PollInterval:     c.PollInterval,
		ThrottleInterval: c.ThrottleInterval,
		WebAddr:          c.WebAddr,
		WebTLSDomains:    c.WebTLSDomains,
		HyperliquidURL:   c.HyperliquidURL,
		Autostart:        c.Autostart,
		Defaults: InstrumentTmp{
			TargetRate: c.Defaults.TargetRate.String(),
			DropRate:   c.Defaults.DropRate.String(),
			MaxSteps:   strconv.Itoa(c.Defaults.MaxSteps),
		},
	}
	for _, inst := range c.Instruments {
		tmp.Instruments = append(tmp.Instruments, InstrumentTmp{
			Instrument: inst.Instrument.String(),
			TargetRate: inst.TargetRate.String(),
			DropRate:   inst.DropRate.String(),
			MaxSteps:   strconv.Itoa(inst.MaxSteps),
		})
	}
	return tmp
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	payload, err := yaml.Marshal(cfg.ToTmp())
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

func instrumentConfig(row InstrumentTmp, defaults domain.StrategyConfig, needInstrument bool) (domain.StrategyConfig, error) {
	cfg := defaults
	var err error

	if needInstrument {
		if cfg.Instrument, err = domain.ParsePair(row.Instrument); err != nil {
			return domain.StrategyConfig{}, err
		}
	}
	if cfg.TargetRate, err = decimalOr(row.TargetRate, defaults.TargetRate, "target_rate"); err != nil {
		return domain.StrategyConfig{}, err
	}
	if cfg.DropRate, err = decimalOr(row.DropRate, defaults.DropRate, "drop_rate"); err != nil {
		return domain.StrategyConfig{}, err
	}
	if row.MaxSteps != "" {
		if cfg.MaxSteps, err = strconv.Atoi(row.MaxSteps); err != nil {
			return domain.StrategyConfig{}, fmt.Errorf("incorrect 'max_steps' param (must be an integer), error: %w", err)
		}
	}

	if !needInstrument {
		// validate with a placeholder instrument
		probe := cfg
		probe.Instrument = domain.Pair{From: "X", To: "Y"}
		return cfg, probe.Validate()
	}
	return cfg, cfg.Validate()
}

func decimalOr(raw string, fallback decimal.Decimal, name string) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}
	return v, nil
}
