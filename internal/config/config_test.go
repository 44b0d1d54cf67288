package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsBoundEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", " key ")
	t.Setenv("BINANCE_API_SECRET", "secret")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("TRADING_LIVE", "true")

	e, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key", e.BinanceAPIKey)
	assert.Equal(t, "secret", e.BinanceAPISecret)
	assert.Equal(t, int64(42), e.TelegramChatID)
	require.NotNil(t, e.Live)
	assert.True(t, *e.Live)
}

func TestLoadLiveUnset(t *testing.T) {
	t.Setenv("TRADING_LIVE", "")
	e, err := Load()
	require.NoError(t, err)
	assert.Nil(t, e.Live)
}
