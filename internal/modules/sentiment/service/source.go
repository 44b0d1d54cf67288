package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sentiment_trader/pkg/retry"
	"sentiment_trader/pkg/tracing"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Source — внешний сервис оценки настроения: скаляр в [-1, 1].
type Source interface {
	GetSentiment(ctx context.Context, ticker, name string) (float64, error)
}

// HTTPSource: GET <url>?ticker=DOGE&name=dogecoin -> {"score": 0.42}
type HTTPSource struct {
	url    string
	apiKey string
	http   *http.Client
	policy retry.Policy
	log    *zap.Logger
}

func NewHTTPSource(rawURL, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPSource {
	s := &HTTPSource{
		url:    rawURL,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
		log:    log.Named("sentiment"),
	}
	s.policy = retry.Policy{
		Attempts: 2,
		Backoff:  2 * time.Second,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.log.Warn("sentiment request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	return s
}

type scoreResponse struct {
	Score *float64 `json:"score"`
	Error string   `json:"error"`
}

func (s *HTTPSource) GetSentiment(ctx context.Context, ticker, name string) (score float64, err error) {
	span, ctx := tracing.StartSpan(ctx, "sentiment "+ticker)
	defer func() { tracing.Finish(span, err) }()

	u, err := url.Parse(s.url)
	if err != nil {
		return 0, fmt.Errorf("sentiment url: %w", err)
	}
	q := u.Query()
	q.Set("ticker", ticker)
	q.Set("name", name)
	u.RawQuery = q.Encode()

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}
		resp, err := s.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("sentiment %s: http %d: %s", ticker, resp.StatusCode, body)
		}
		var r scoreResponse
		if err := sonic.Unmarshal(body, &r); err != nil {
			return fmt.Errorf("sentiment %s: decode: %w", ticker, err)
		}
		if r.Score == nil {
			return fmt.Errorf("sentiment %s: no score (%s)", ticker, r.Error)
		}
		score = *r.Score
		return nil
	})
	if err != nil {
		return 0, err
	}
	return Clamp(score), nil
}

// Static — фиксированные оценки (без внешнего сервиса всё нейтрально).
type Static map[string]float64

func (s Static) GetSentiment(_ context.Context, ticker, _ string) (float64, error) {
	return Clamp(s[ticker]), nil
}

func Clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
