package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PositionView — позиция для /positions.
type PositionView struct {
	Symbol    string
	Direction string
	Quantity  string
	Entry     float64
	Extremum  float64
	Stop      float64
	OpenedAt  time.Time
	Loan      string
}

type Status struct {
	Mode        string
	Instruments []string
	LastCycle   time.Time
	Halted      map[string]string
	Sentiment   map[string]float64
}

// StatusSource — снимок состояния планировщика (только чтение).
type StatusSource interface {
	Positions() []PositionView
	Status() Status
}

// Telegram — алерты оператору + команды /positions и /status.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
	src    StatusSource
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		log:    log.Named("telegram"),
	}, nil
}

func (t *Telegram) SetSource(src StatusSource) { t.src = src }

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start: long-polling, только команды из своего чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					t.Send(FormatPositions(t.positions()))
				case "status":
					t.Send(FormatStatus(t.status()))
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

func (t *Telegram) positions() []PositionView {
	if t.src == nil {
		return nil
	}
	return t.src.Positions()
}

func (t *Telegram) status() Status {
	if t.src == nil {
		return Status{}
	}
	return t.src.Status()
}

func FormatPositions(ps []PositionView) string {
	if len(ps) == 0 {
		return "📭 Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range ps {
		fmt.Fprintf(&b, "- %s [%s] qty=%s entry=%.6g best=%.6g stop=%.6g",
			p.Symbol, strings.ToUpper(p.Direction), p.Quantity, p.Entry, p.Extremum, p.Stop)
		if p.Loan != "" {
			fmt.Fprintf(&b, " loan=%s", p.Loan)
		}
		if !p.OpenedAt.IsZero() {
			fmt.Fprintf(&b, " since %s", p.OpenedAt.UTC().Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func FormatStatus(s Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ Режим: %s\n", s.Mode)
	fmt.Fprintf(&b, "Инструменты: %s\n", strings.Join(s.Instruments, ", "))
	if s.LastCycle.IsZero() {
		b.WriteString("Последний цикл: —\n")
	} else {
		fmt.Fprintf(&b, "Последний цикл: %s\n", s.LastCycle.UTC().Format(time.RFC3339))
	}
	if len(s.Sentiment) > 0 {
		keys := make([]string, 0, len(s.Sentiment))
		for k := range s.Sentiment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Сентимент:")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%.2f", k, s.Sentiment[k])
		}
		b.WriteString("\n")
	}
	for sym, why := range s.Halted {
		fmt.Fprintf(&b, "⛔️ %s остановлен: %s\n", sym, why)
	}
	return b.String()
}

// Stdout — без Telegram всё уходит в лог.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout { return &Stdout{log: log.Named("notify")} }

func (s *Stdout) Send(msg string)                  { s.log.Info(msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.log.Info(fmt.Sprintf(format, args...)) }
