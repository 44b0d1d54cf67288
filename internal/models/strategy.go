package models

// Decision — результат стратегии на одной свече. Нигде не сохраняется.
type Decision string

const (
	DecisionBuy        Decision = "buy"
	DecisionSell       Decision = "sell"
	DecisionCloseLong  Decision = "close_long"
	DecisionCloseShort Decision = "close_short"
	DecisionHold       Decision = "hold"
)

// IndicatorSet — текущие значения индикаторов по закрытым свечам.
type IndicatorSet struct {
	EMA        float64
	MACD       float64
	MACDSignal float64
	OBVSlope   float64
	ATR        float64
	ATRMean    float64
	Close      float64
	Ready      bool // false до окончания прогрева
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)
