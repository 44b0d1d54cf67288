package helper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormInterval приводит таймфрейм к формату Binance klines.
func NormInterval(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "60m", "1h", "h1":
		return "1h"
	case "240m", "4h":
		return "4h"
	case "15m", "5m", "1m", "30m":
		return s
	case "1d", "d1", "24h":
		return "1d"
	default:
		return s
	}
}

func IntervalDuration(interval string) (time.Duration, error) {
	switch NormInterval(interval) {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported interval %q", interval)
}

// FloorToStep — вниз к кратному step. Для step <= 0 возвращает v как есть.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// CeilToStep — вверх к кратному step (погашение займа).
func CeilToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Ceil().Mul(step)
}

func IsMultipleOf(v, step decimal.Decimal) bool {
	if !step.IsPositive() {
		return true
	}
	return v.Mod(step).IsZero()
}

// RoundPriceForSide: покупка округляется вверх по тику, продажа вниз,
// чтобы лимитка не оказалась хуже допустимого проскальзывания в сторону неисполнения.
func RoundPriceForSide(px, tick decimal.Decimal, buy bool) decimal.Decimal {
	if buy {
		return CeilToStep(px, tick)
	}
	return FloorToStep(px, tick)
}

// TickerFromSymbol: DOGEUSDT -> DOGE.
func TickerFromSymbol(symbol, quote string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	q := strings.ToUpper(strings.TrimSpace(quote))
	if q != "" && strings.HasSuffix(s, q) && len(s) > len(q) {
		return strings.TrimSuffix(s, q)
	}
	return s
}
