package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatPositions(t *testing.T) {
	assert.Contains(t, FormatPositions(nil), "нет")

	out := FormatPositions([]PositionView{{
		Symbol: "XRPUSDT", Direction: "short", Quantity: "101", Entry: 1.98, Extremum: 1.9, Stop: 1.995,
		Loan: "101 XRP", OpenedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "XRPUSDT [SHORT] qty=101")
	assert.Contains(t, out, "loan=101 XRP")
	assert.Contains(t, out, "2025-03-01 12:00")
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(Status{
		Mode:        "paper",
		Instruments: []string{"DOGEUSDT", "XRPUSDT"},
		Sentiment:   map[string]float64{"XRPUSDT": 0.5, "DOGEUSDT": -0.25},
		Halted:      map[string]string{"XRPUSDT": "close_short failed at repay"},
	})
	assert.Contains(t, out, "paper")
	assert.Contains(t, out, "DOGEUSDT=-0.25 XRPUSDT=0.50")
	assert.Contains(t, out, "XRPUSDT остановлен")
}

func TestStdoutLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewStdout(zap.New(core))
	n.Sendf("opened %s", "XRPUSDT")
	assert.Equal(t, 1, logs.FilterMessage("opened XRPUSDT").Len())
}
