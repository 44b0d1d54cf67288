package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	envcfg "sentiment_trader/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValidDryRun(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.False(t, c.Trading.Live)
	assert.Equal(t, 0.05, c.Trading.TrailingStopPct)
	assert.Equal(t, 0.2, c.Trading.TradePct)
	assert.Equal(t, 0.01, c.Trading.SlippagePct)
	assert.Equal(t, time.Minute, c.Trading.LoopInterval)
	assert.Len(t, c.Instruments, 5)
}

func TestLiveRequiresCredentials(t *testing.T) {
	c := Default()
	c.Trading.Live = true
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BINANCE_API_KEY")

	c.Exchange.APIKey = "k"
	c.Exchange.APISecret = "s"
	require.NoError(t, c.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"no instruments": func(c *Config) { c.Instruments = nil },
		"duplicate":      func(c *Config) { c.Instruments = append(c.Instruments, c.Instruments[0]) },
		"trade pct":      func(c *Config) { c.Trading.TradePct = 1.5 },
		"trailing pct":   func(c *Config) { c.Trading.TrailingStopPct = 0 },
		"slippage":       func(c *Config) { c.Trading.SlippagePct = -0.1 },
		"window":         func(c *Config) { c.Sentiment.WindowStart, c.Sentiment.WindowEnd = 40, 20 },
		"timezone":       func(c *Config) { c.Sentiment.Timezone = "Mars/Olympus" },
		"interval":       func(c *Config) { c.Trading.Interval = "7m" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestNewConfigReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, configDir), 0o755))
	yml := `
trading:
  trade_pct: 0.1
  interval: 4h
  fill_timeout: 30s
instruments:
  - symbol: XRPUSDT
    name: ripple
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configDir, "test.yaml"), []byte(yml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	live := true
	cfg, err := NewConfig(&envcfg.Env{
		ConfigFile:       "test.yaml",
		BinanceAPIKey:    "k",
		BinanceAPISecret: "s",
		Live:             &live,
		DatabaseDSN:      "postgres://x",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Trading.TradePct)
	assert.Equal(t, "4h", cfg.Trading.Interval)
	assert.Equal(t, 30*time.Second, cfg.Trading.FillTimeout)
	assert.True(t, cfg.Trading.Live)
	assert.Equal(t, "postgres://x", cfg.DB)
	require.Len(t, cfg.Instruments, 1)
	assert.Equal(t, "ripple", cfg.Instruments[0].Name)
	// незаданное в YAML остаётся дефолтом
	assert.Equal(t, 0.05, cfg.Trading.TrailingStopPct)
}

func TestNewConfigMissingExplicitFile(t *testing.T) {
	_, err := NewConfig(&envcfg.Env{ConfigFile: "does-not-exist.yaml"})
	require.Error(t, err)
}
