package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// DefaultOutput is where the wizard writes the generated config.
const DefaultOutput = "gridsim.gen.yaml"

var ErrCancelled = errors.New("setup cancelled by user")

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers holds the raw wizard input before it becomes a config.Config.
type answers struct {
	platform     string
	instruments  string
	initialCash  string
	orderAmount  string
	feeRate      string
	pollInterval string
	throttle     string
	targetRate   string
	dropRate     string
	maxSteps     string
	webAddr      string
	autostart    bool
}

func defaultAnswers() answers {
	def := config.Default()
	return answers{
		platform:     def.Platform,
		instruments:  "BTC_USDT",
		initialCash:  def.InitialCash.String(),
		orderAmount:  def.OrderAmount.String(),
		feeRate:      def.FeeRate.String(),
		pollInterval: def.PollInterval.String(),
		throttle:     def.ThrottleInterval.String(),
		targetRate:   def.Defaults.TargetRate.String(),
		dropRate:     def.Defaults.DropRate.String(),
		maxSteps:     strconv.Itoa(def.Defaults.MaxSteps),
		webAddr:      ":8080",
		autostart:    true,
	}
}

// RunTUI launches the terminal configuration wizard and saves the result to output.
func RunTUI(output string) error {
	if output == "" {
		output = DefaultOutput
	}
	a := defaultAnswers()
	var confirm bool

	screen("")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Paper-trade a grid across as many pairs as you like.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PRICE SOURCE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should prices come from?").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
				).
				Value(&a.platform),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: INSTRUMENTS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Instruments").
				Description("Comma separated, e.g. BTC_USDT, ETH_USDT").
				Value(&a.instruments).
				Validate(validateInstruments),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: MONEY AND TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Initial cash").
				Value(&a.initialCash).
				Validate(validatePositive),
			huh.NewInput().
				Title("Order amount").
				Description("Quote currency spent per grid step").
				Value(&a.orderAmount).
				Validate(validatePositive),
			huh.NewInput().
				Title("Fee rate").
				Description("Fraction per side, 0.0005 = 0.05%").
				Value(&a.feeRate).
				Validate(validateFee),
			huh.NewInput().
				Title("Poll interval").
				Value(&a.pollInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Throttle interval").
				Description("Minimum pause between two trades of one instrument").
				Value(&a.throttle).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: GRID DEFAULTS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target rate").
				Description("Take profit at entry * (1 + rate)").
				Value(&a.targetRate).
				Validate(validateRate),
			huh.NewInput().
				Title("Drop rate").
				Description("Next step opens at previous entry * (1 + rate), negative means below").
				Value(&a.dropRate).
				Validate(validateRate),
			huh.NewInput().
				Title("Max steps").
				Value(&a.maxSteps).
				Validate(validateMaxSteps),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 5: CONSOLE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Web console address").
				Description("Leave empty to disable").
				Value(&a.webAddr),
			huh.NewConfirm().
				Title("Start every instrument on launch?").
				Value(&a.autostart),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(Summary(cfg)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return ErrCancelled
	}

	if err := config.Save(output, cfg); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", output)))
	return nil
}

// Summary renders the parts of cfg a user cares about before saving.
func Summary(cfg config.Config) string {
	names := make([]string, 0, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		names = append(names, inst.Instrument.String())
	}
	web := cfg.WebAddr
	if web == "" {
		web = "disabled"
	}
	return fmt.Sprintf(
		"Platform: %s\nInstruments: %s\nOrder amount: %s\nPoll: %s  Throttle: %s\nGrid: target %s / drop %s / %d steps\nWeb: %s\nAutostart: %t",
		cfg.Platform, strings.Join(names, ", "), cfg.OrderAmount.String(),
		cfg.PollInterval, cfg.ThrottleInterval,
		cfg.Defaults.TargetRate.String(), cfg.Defaults.DropRate.String(), cfg.Defaults.MaxSteps,
		web, cfg.Autostart,
	)
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDSIM CONFIG WIZARD"))
	if step != "" {
		fmt.Println(stepStyle.Render(step))
	}
}

// config converts the answers through the same validation path as a YAML file.
func (a answers) config() (config.Config, error) {
	poll, err := time.ParseDuration(strings.TrimSpace(a.pollInterval))
	if err != nil {
		return config.Config{}, errors.Wrap(err, "poll interval")
	}
	throttle, err := time.ParseDuration(strings.TrimSpace(a.throttle))
	if err != nil {
		return config.Config{}, errors.Wrap(err, "throttle interval")
	}

	tmp := config.ConfigTmp{
		Platform:         a.platform,
		InitialCash:      strings.TrimSpace(a.initialCash),
		FeeRate:          strings.TrimSpace(a.feeRate),
		OrderAmount:      strings.TrimSpace(a.orderAmount),
		PollInterval:     poll,
		ThrottleInterval: throttle,
		WebAddr:          strings.TrimSpace(a.webAddr),
		Autostart:        a.autostart,
		Defaults: config.InstrumentTmp{
			TargetRate: strings.TrimSpace(a.targetRate),
			DropRate:   strings.TrimSpace(a.dropRate),
			MaxSteps:   strings.TrimSpace(a.maxSteps),
		},
	}
	for _, name := range splitInstruments(a.instruments) {
		tmp.Instruments = append(tmp.Instruments, config.InstrumentTmp{Instrument: name})
	}

	return config.FromTmp(tmp)
}

func splitInstruments(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateInstruments(s string) error {
	names := splitInstruments(s)
	if len(names) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	seen := make(map[domain.Pair]bool, len(names))
	for _, name := range names {
		pair, err := domain.ParsePair(name)
		if err != nil {
			return err
		}
		if seen[pair] {
			return fmt.Errorf("%s is listed twice", pair.String())
		}
		seen[pair] = true
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateFee(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validateRate(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return fmt.Errorf("must be greater than -1")
	}
	return nil
}

func validateMaxSteps(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration like 1s or 500ms")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
