package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

func (s OrderStatus) Final() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// OrderIntent — что отправляем на биржу. Всегда LIMIT GTC.
type OrderIntent struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Margin        bool // isolated margin order (sapi)
	ClientOrderID string
}

// OrderResult — что ответила биржа. Только он меняет PositionState.
type OrderResult struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Status        OrderStatus
	ExecutedQty   decimal.Decimal
	AvgPrice      float64
	UpdatedAt     time.Time
}

func (r OrderResult) Filled() bool { return r.ExecutedQty.IsPositive() }
