package service

import (
	"fmt"
	"time"

	"sentiment_trader/internal/models"
	"sentiment_trader/internal/modules/config"

	"github.com/pkg/errors"
)

// ErrStaleCandle — свеча не новее последней обработанной.
var ErrStaleCandle = errors.New("candle is not newer than the last processed one")

type Params struct {
	EMAPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	OBVSlopePeriod int
	ATRPeriod      int
	ATRMeanPeriod  int
	MaxHistory     int
}

func NewParams(cfg *config.Config) Params {
	ic := cfg.Indicators
	return Params{
		EMAPeriod:      ic.EMAPeriod,
		MACDFast:       ic.MACDFast,
		MACDSlow:       ic.MACDSlow,
		MACDSignal:     ic.MACDSignal,
		OBVSlopePeriod: ic.OBVSlopePeriod,
		ATRPeriod:      ic.ATRPeriod,
		ATRMeanPeriod:  ic.ATRMeanPeriod,
		MaxHistory:     ic.MaxHistory,
	}
}

// Warmup — сколько закрытых свечей нужно, чтобы определился каждый индикатор.
func (p Params) Warmup() int {
	w := p.EMAPeriod
	for _, v := range []int{
		p.MACDSlow + p.MACDSignal - 1,
		p.OBVSlopePeriod,
		p.ATRPeriod + p.ATRMeanPeriod - 1,
	} {
		if v > w {
			w = v
		}
	}
	return w
}

// Pipeline — история закрытых свечей одного инструмента и индикаторы по ней.
// Не потокобезопасен: им владеет цикл планировщика.
type Pipeline struct {
	symbol  string
	p       Params
	history []models.Candle
	set     models.IndicatorSet
}

func NewPipeline(symbol string, p Params) *Pipeline {
	if p.MaxHistory < p.Warmup() {
		p.MaxHistory = p.Warmup()
	}
	return &Pipeline{symbol: symbol, p: p}
}

// Seed — начальная история (oldest-first). Несвежие и дубли отбрасываются.
func (pl *Pipeline) Seed(candles []models.Candle) models.IndicatorSet {
	for _, c := range candles {
		if !pl.accepts(c) {
			continue
		}
		pl.push(c)
	}
	pl.recompute()
	return pl.set
}

// OnNewCandle добавляет закрытую свечу и пересчитывает индикаторы.
func (pl *Pipeline) OnNewCandle(c models.Candle) (models.IndicatorSet, error) {
	if c.Symbol != "" && c.Symbol != pl.symbol {
		return pl.set, fmt.Errorf("pipeline %s: candle for %s", pl.symbol, c.Symbol)
	}
	if !pl.accepts(c) {
		return pl.set, errors.Wrapf(ErrStaleCandle, "%s close=%s last=%s",
			pl.symbol, c.CloseTime.Format(time.RFC3339), pl.LastCloseTime().Format(time.RFC3339))
	}
	pl.push(c)
	pl.recompute()
	return pl.set, nil
}

func (pl *Pipeline) accepts(c models.Candle) bool {
	return len(pl.history) == 0 || c.CloseTime.After(pl.history[len(pl.history)-1].CloseTime)
}

func (pl *Pipeline) push(c models.Candle) {
	pl.history = append(pl.history, c)
	if over := len(pl.history) - pl.p.MaxHistory; over > 0 {
		pl.history = append(pl.history[:0:0], pl.history[over:]...)
	}
}

func (pl *Pipeline) Ready() bool                     { return pl.set.Ready }
func (pl *Pipeline) Indicators() models.IndicatorSet { return pl.set }
func (pl *Pipeline) Len() int                        { return len(pl.history) }

func (pl *Pipeline) LastCloseTime() time.Time {
	if len(pl.history) == 0 {
		return time.Time{}
	}
	return pl.history[len(pl.history)-1].CloseTime
}

// recompute — полный пересчёт по окну истории.
func (pl *Pipeline) recompute() {
	n := len(pl.history)
	if n == 0 {
		pl.set = models.IndicatorSet{}
		return
	}

	ema := newEMA(pl.p.EMAPeriod)
	fast, slow := newEMA(pl.p.MACDFast), newEMA(pl.p.MACDSlow)
	signal := newEMA(pl.p.MACDSignal)
	atr := newATR(pl.p.ATRPeriod)

	obv := make([]float64, n)
	atrs := make([]float64, 0, n)
	var macd float64

	for i, c := range pl.history {
		ema.Update(c.Close)

		fast.Update(c.Close)
		slow.Update(c.Close)
		if slow.Ready() {
			macd = fast.Value() - slow.Value()
			signal.Update(macd)
		}

		if i > 0 {
			prev := pl.history[i-1].Close
			obv[i] = obv[i-1]
			switch {
			case c.Close > prev:
				obv[i] += c.Volume
			case c.Close < prev:
				obv[i] -= c.Volume
			}
		}

		hasPrev := i > 0
		var prevClose float64
		if hasPrev {
			prevClose = pl.history[i-1].Close
		}
		atr.Update(trueRange(c.High, c.Low, prevClose, hasPrev))
		if atr.Ready() {
			atrs = append(atrs, atr.Value())
		}
	}

	set := models.IndicatorSet{
		EMA:        ema.Value(),
		MACD:       macd,
		MACDSignal: signal.Value(),
		ATR:        atr.Value(),
		Close:      pl.history[n-1].Close,
	}
	if k := pl.p.OBVSlopePeriod; k > 1 && n >= k {
		set.OBVSlope = slope(obv[n-k:])
	}
	if k := pl.p.ATRMeanPeriod; k > 0 && len(atrs) >= k {
		set.ATRMean = mean(atrs[len(atrs)-k:])
	}

	set.Ready = n >= pl.p.Warmup() &&
		ema.Ready() && slow.Ready() && signal.Ready() && atr.Ready() &&
		len(atrs) >= pl.p.ATRMeanPeriod && n >= pl.p.OBVSlopePeriod
	pl.set = set
}
