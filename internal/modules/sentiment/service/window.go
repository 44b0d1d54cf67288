package service

import (
	"fmt"
	"time"
)

// Window — окно обновления внутри часа [Start, End] минут по локальному времени
// и минимальная пауза между обновлениями.
type Window struct {
	Start       int
	End         int
	MinInterval time.Duration
	Loc         *time.Location
}

func NewWindow(start, end int, minInterval time.Duration, tz string) (Window, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return Window{}, fmt.Errorf("sentiment timezone %q: %w", tz, err)
		}
	}
	return Window{Start: start, End: end, MinInterval: minInterval, Loc: loc}, nil
}

// Due: внутри окна и с прошлого обновления прошло не меньше MinInterval.
func (w Window) Due(now, last time.Time) bool {
	m := now.In(w.Loc).Minute()
	if m < w.Start || m > w.End {
		return false
	}
	return last.IsZero() || now.Sub(last) >= w.MinInterval
}
