package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionNone  Direction = "none"
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionNone, DirectionLong, DirectionShort:
		return true
	}
	return false
}

// MarginLoan существует только у шорта. Сумма долга на закрытии берётся с биржи,
// здесь только то, что заняли при открытии.
type MarginLoan struct {
	Asset      string
	Principal  decimal.Decimal
	BorrowedAt time.Time
}

// PositionState — состояние позиции по одному инструменту.
type PositionState struct {
	Symbol     string
	Direction  Direction
	Quantity   decimal.Decimal
	EntryPrice float64
	Extremum   float64 // max с входа для long, min для short
	OpenedAt   time.Time
	Loan       *MarginLoan
	UpdatedAt  time.Time
}

func FlatPosition(symbol string) PositionState {
	return PositionState{Symbol: symbol, Direction: DirectionNone}
}

func (p PositionState) IsOpen() bool { return p.Direction == DirectionLong || p.Direction == DirectionShort }

// Validate проверяет инварианты направления и займа.
func (p PositionState) Validate() error {
	if !p.Direction.Valid() {
		return fmt.Errorf("position %s: unknown direction %q", p.Symbol, p.Direction)
	}
	if p.Direction == DirectionShort && p.Loan == nil {
		return fmt.Errorf("position %s: short without margin loan", p.Symbol)
	}
	if p.Direction != DirectionShort && p.Loan != nil {
		return fmt.Errorf("position %s: margin loan on %s position", p.Symbol, p.Direction)
	}
	if p.IsOpen() && !p.Quantity.IsPositive() {
		return fmt.Errorf("position %s: open with qty=%s", p.Symbol, p.Quantity)
	}
	return nil
}

// IsolatedAccount — срез изолированного маржинального счёта по паре.
type IsolatedAccount struct {
	Symbol string
	Base   IsolatedAsset
	Quote  IsolatedAsset
}

type IsolatedAsset struct {
	Asset    string
	Free     decimal.Decimal
	Borrowed decimal.Decimal
	Interest decimal.Decimal
	NetAsset decimal.Decimal
}

// Owed — principal + накопленный процент.
func (a IsolatedAsset) Owed() decimal.Decimal { return a.Borrowed.Add(a.Interest) }

// MarginIncident — незавершённая маржинальная операция, требует ручной сверки.
type MarginIncident struct {
	Symbol    string
	Operation string // open_short | close_short
	Step      string
	Detail    string
	CreatedAt time.Time
}
