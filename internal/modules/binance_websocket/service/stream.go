package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
	maxBackoff   = 30 * time.Second
)

// Stream — один combined-stream WebSocket на все символы (<symbol>@miniTicker).
type Stream struct {
	url     string
	symbols []string
	cache   *PriceCache
	dialer  *websocket.Dialer
	log     *zap.Logger

	onConn func(connected bool)
}

func NewStream(wsURL string, symbols []string, cache *PriceCache, log *zap.Logger) *Stream {
	return &Stream{
		url:     wsURL,
		symbols: symbols,
		cache:   cache,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log.Named("ws"),
	}
}

// OnConnState — колбэк смены состояния соединения (health).
func (s *Stream) OnConnState(fn func(connected bool)) { s.onConn = fn }

func (s *Stream) setConnected(v bool) {
	if s.onConn != nil {
		s.onConn(v)
	}
}

func (s *Stream) endpoint() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@miniTicker")
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run держит соединение до отмены ctx, переподключаясь с экспоненциальной паузой.
func (s *Stream) Run(ctx context.Context) {
	if len(s.symbols) == 0 {
		return
	}
	endpoint, err := s.endpoint()
	if err != nil {
		s.log.Error("bad websocket url", zap.String("url", s.url), zap.Error(err))
		return
	}

	backoff := time.Second
	for {
		started := time.Now()
		err := s.session(ctx, endpoint)
		if ctx.Err() != nil {
			s.log.Info("price stream stopped")
			return
		}
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		s.log.Warn("price stream disconnected, reconnecting", zap.Error(err), zap.Duration("in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Stream) session(ctx context.Context, endpoint string) error {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.setConnected(true)
	defer s.setConnected(false)
	s.log.Info("price stream connected", zap.Int("symbols", len(s.symbols)))

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	// Binance шлёт ping сам, отвечаем pong и продлеваем дедлайн
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				// разбудить ReadMessage
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.handle(msg)
	}
}

type miniTickerFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Close     string `json:"c"`
	} `json:"data"`
}

func (s *Stream) handle(msg []byte) {
	var f miniTickerFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		s.log.Debug("skip frame", zap.Error(err))
		return
	}
	if f.Data.Event != "24hrMiniTicker" || f.Data.Symbol == "" {
		return
	}
	px, err := strconv.ParseFloat(f.Data.Close, 64)
	if err != nil || px <= 0 {
		return
	}
	s.cache.Set(f.Data.Symbol, px, time.UnixMilli(f.Data.EventTime))
}
