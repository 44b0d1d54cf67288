package service

import "sentiment_trader/internal/models"

const (
	LongSentiment  = 0.7
	ShortSentiment = -0.5
)

// Input — всё, от чего зависит решение по одной закрытой свече.
type Input struct {
	Sentiment  float64
	Indicators models.IndicatorSet
	Direction  models.Direction
}

// Decide — чистая функция. До прогрева индикаторов всегда hold.
// Порядок: buy, sell, close_long, close_short, hold.
func Decide(in Input) models.Decision {
	ind := in.Indicators
	if !ind.Ready {
		return models.DecisionHold
	}

	volatile := ind.ATR > ind.ATRMean
	longBias := in.Sentiment > LongSentiment &&
		ind.EMA < ind.Close &&
		ind.MACD > ind.MACDSignal &&
		ind.OBVSlope > 0 &&
		volatile
	shortBias := in.Sentiment < ShortSentiment &&
		ind.EMA > ind.Close &&
		ind.MACD < ind.MACDSignal &&
		ind.OBVSlope < 0 &&
		volatile

	switch {
	case longBias:
		return models.DecisionBuy
	case shortBias:
		return models.DecisionSell
	case in.Direction == models.DirectionLong && ind.OBVSlope < 0 && ind.MACD < ind.MACDSignal:
		return models.DecisionCloseLong
	case in.Direction == models.DirectionShort && ind.OBVSlope > 0 && ind.MACD > ind.MACDSignal:
		return models.DecisionCloseShort
	}
	return models.DecisionHold
}
