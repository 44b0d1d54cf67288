package lifecycle

import (
	"sentiment_trader/internal/helper"
	"sentiment_trader/internal/models"

	"github.com/shopspring/decimal"
)

// CalcQuantity = floor_to_step(quoteBalance * fraction / price).
// ok=false — меньше minQty, сделку пропускаем.
func CalcQuantity(quoteBalance decimal.Decimal, fraction float64, price decimal.Decimal, inst models.Instrument) (qty decimal.Decimal, ok bool) {
	if !price.IsPositive() || !quoteBalance.IsPositive() || fraction <= 0 {
		return decimal.Zero, false
	}
	raw := quoteBalance.Mul(decimal.NewFromFloat(fraction)).Div(price)
	qty = helper.FloorToStep(raw, inst.StepSize)
	if qty.LessThan(inst.MinQty) || !qty.IsPositive() {
		return qty, false
	}
	return qty, true
}

// LimitPrice — цена с проскальзыванием в сторону исполнения, округлённая по тику.
func LimitPrice(current float64, slippage float64, inst models.Instrument, side models.Side) decimal.Decimal {
	px := decimal.NewFromFloat(current)
	buy := side == models.SideBuy
	if buy {
		px = px.Mul(decimal.NewFromFloat(1 + slippage))
	} else {
		px = px.Mul(decimal.NewFromFloat(1 - slippage))
	}
	return helper.RoundPriceForSide(px, inst.TickSize, buy)
}

// RepayQuantity — покупка под погашение: всегда вверх по шагу, не меньше minQty.
func RepayQuantity(owed decimal.Decimal, inst models.Instrument) decimal.Decimal {
	qty := helper.CeilToStep(owed, inst.StepSize)
	if qty.LessThan(inst.MinQty) {
		qty = helper.CeilToStep(inst.MinQty, inst.StepSize)
	}
	return qty
}
