package service

type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

// Update: первое значение — seed, дальше обычное сглаживание.
func (e *emaState) Update(v float64) {
	if e.warmup == 0 {
		e.value = v
		e.warmup = 1
		return
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

func (e *emaState) Ready() bool    { return e.warmup >= e.period }
func (e *emaState) Value() float64 { return e.value }

// atrState — ATR по Уайлдеру: первые period TR усредняются, дальше (prev*(n-1)+tr)/n.
type atrState struct {
	period int
	sum    float64
	n      int
	value  float64
}

func newATR(period int) atrState {
	if period < 1 {
		period = 1
	}
	return atrState{period: period}
}

func (a *atrState) Update(tr float64) {
	if a.n < a.period {
		a.sum += tr
		a.n++
		a.value = a.sum / float64(a.n)
		return
	}
	p := float64(a.period)
	a.value = (a.value*(p-1) + tr) / p
}

func (a *atrState) Ready() bool    { return a.n >= a.period }
func (a *atrState) Value() float64 { return a.value }

func trueRange(high, low, prevClose float64, hasPrev bool) float64 {
	tr := high - low
	if !hasPrev {
		return tr
	}
	if v := abs(high - prevClose); v > tr {
		tr = v
	}
	if v := abs(low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// slope — наклон МНК-прямой через ys (x = 0..n-1).
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
