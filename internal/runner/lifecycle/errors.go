package lifecycle

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFilled — ордер принят, но ничего не исполнилось; позиция не создаётся.
var ErrNotFilled = errors.New("order not filled")

const (
	StepTransferIn  = "transfer_collateral"
	StepBorrow      = "borrow"
	StepMarginSell  = "margin_sell"
	StepMarginBuy   = "margin_buy"
	StepRepay       = "repay"
	StepTransferOut = "transfer_back"
)

// PartialMarginError — маржинальная последовательность оборвалась посередине.
// Автоматического отката нет: нужна ручная сверка изолированного счёта.
type PartialMarginError struct {
	Symbol    string
	Operation string // open_short | close_short
	Step      string
	Done      []string
	Err       error
}

func (e *PartialMarginError) Error() string {
	return fmt.Sprintf("PARTIAL MARGIN OPERATION %s %s: failed at %s after %v: %v",
		e.Operation, e.Symbol, e.Step, e.Done, e.Err)
}

func (e *PartialMarginError) Unwrap() error { return e.Err }

func IsPartialMargin(err error) (*PartialMarginError, bool) {
	var pm *PartialMarginError
	if errors.As(err, &pm) {
		return pm, true
	}
	return nil, false
}
