package setup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

func TestAnswersConfig(t *testing.T) {
	a := defaultAnswers()
	a.platform = config.PlatformBybit
	a.instruments = " btc_usdt, ETH_USDT ,"
	a.orderAmount = "250"
	a.pollInterval = "2s"
	a.targetRate = "0.01"

	cfg, err := a.config()
	require.NoError(t, err)

	assert.Equal(t, config.PlatformBybit, cfg.Platform)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.True(t, cfg.OrderAmount.Equal(decimal.NewFromInt(250)))
	require.Len(t, cfg.Instruments, 2)
	assert.Equal(t, domain.Pair{From: "BTC", To: "USDT"}, cfg.Instruments[0].Instrument)
	assert.Equal(t, "0.01", cfg.Instruments[1].TargetRate.String())
	assert.True(t, cfg.Instruments[1].DropRate.Equal(domain.DefaultDropRate))
	assert.True(t, cfg.Autostart)
}

func TestAnswersConfigSavedFileLoads(t *testing.T) {
	cfg, err := defaultAnswers().config()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), DefaultOutput)
	require.NoError(t, config.Save(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Instruments, loaded.Instruments)
	assert.Equal(t, cfg.WebAddr, loaded.WebAddr)
}

func TestAnswersConfigBadDuration(t *testing.T) {
	a := defaultAnswers()
	a.throttle = "soon"
	_, err := a.config()
	require.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateInstruments("BTC_USDT,ETH_USDT"))
	assert.Error(t, validateInstruments(" , "))
	assert.Error(t, validateInstruments("BTCUSDT"))
	assert.Error(t, validateInstruments("BTC_USDT, btc_usdt"))

	assert.NoError(t, validatePositive("0.1"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("abc"))

	assert.NoError(t, validateFee("0"))
	assert.Error(t, validateFee("1"))

	assert.NoError(t, validateRate("-0.01"))
	assert.Error(t, validateRate("-1"))

	assert.NoError(t, validateMaxSteps("30"))
	assert.Error(t, validateMaxSteps("0"))

	assert.NoError(t, validateDuration("500ms"))
	assert.Error(t, validateDuration("-1s"))
}

func TestSummary(t *testing.T) {
	cfg, err := defaultAnswers().config()
	require.NoError(t, err)
	cfg.WebAddr = ""

	out := Summary(cfg)
	assert.Contains(t, out, "Instruments: BTC_USDT")
	assert.Contains(t, out, "Web: disabled")
}
