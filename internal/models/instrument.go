package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument — торговые ограничения символа с биржи. Не меняется после загрузки.
type Instrument struct {
	Symbol     string
	Name       string // человекочитаемое имя для сентимента (dogecoin, ripple ...)
	BaseAsset  string
	QuoteAsset string

	StepSize decimal.Decimal // шаг количества (LOT_SIZE.stepSize)
	TickSize decimal.Decimal // шаг цены (PRICE_FILTER.tickSize)
	MinQty   decimal.Decimal // минимальное количество (LOT_SIZE.minQty)
}

// Ticker — символ без quote-валюты: XRPUSDT -> XRP.
func (i Instrument) Ticker() string {
	if i.BaseAsset != "" {
		return i.BaseAsset
	}
	return i.Symbol
}

// Candle — закрытая свеча.
type Candle struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	OpenTime  time.Time
	CloseTime time.Time
}
