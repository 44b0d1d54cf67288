package helper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFloorToStep(t *testing.T) {
	cases := []struct {
		v, step, want string
	}{
		{"100", "0.1", "100"},
		{"99.0099", "0.1", "99"},
		{"12.3456", "0.01", "12.34"},
		{"0.00099", "0.001", "0"},
		{"5", "0", "5"},
	}
	for _, c := range cases {
		got := FloorToStep(d(c.v), d(c.step))
		assert.Truef(t, got.Equal(d(c.want)), "floor(%s, %s) = %s, want %s", c.v, c.step, got, c.want)
	}
}

func TestCeilToStepNeverUndercovers(t *testing.T) {
	owed := d("50.234").Add(d("0.012"))
	got := CeilToStep(owed, d("0.01"))
	assert.True(t, got.Equal(d("50.25")), "got %s", got)

	owed = d("50.234").Add(d("0.12"))
	got = CeilToStep(owed, d("0.01"))
	assert.True(t, got.Equal(d("50.36")), "got %s", got)
	assert.True(t, got.GreaterThanOrEqual(owed))

	exact := CeilToStep(d("50.25"), d("0.01"))
	assert.True(t, exact.Equal(d("50.25")))
}

func TestRoundPriceForSide(t *testing.T) {
	tick := d("0.0001")
	assert.True(t, RoundPriceForSide(d("2.02005"), tick, true).Equal(d("2.0201")))
	assert.True(t, RoundPriceForSide(d("1.97995"), tick, false).Equal(d("1.9799")))
}

func TestIsMultipleOf(t *testing.T) {
	assert.True(t, IsMultipleOf(d("100.0"), d("0.1")))
	assert.False(t, IsMultipleOf(d("100.05"), d("0.1")))
}

func TestIntervalDuration(t *testing.T) {
	dur, err := IntervalDuration("60m")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, dur)

	_, err = IntervalDuration("7m")
	require.Error(t, err)
}

func TestTickerFromSymbol(t *testing.T) {
	assert.Equal(t, "XRP", TickerFromSymbol("xrpusdt", "USDT"))
	assert.Equal(t, "BTC", TickerFromSymbol("BTC", "USDT"))
}
