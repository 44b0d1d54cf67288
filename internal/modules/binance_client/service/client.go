package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/modules/config"
	"sentiment_trader/pkg/retry"
	"sentiment_trader/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrNoCredentials = errors.New("binance: api key/secret not configured")

// APIError — ответ биржи с не-2xx статусом: {"code":-2010,"msg":"..."}.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance http %d: code=%d msg=%s", e.Status, e.Code, e.Msg)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// IsRetryable: сеть, 5xx и лимиты — повторяем; отказ биржи по фильтрам — нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoCredentials) {
		return false
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests || apiErr.Status == 418
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

type Client struct {
	log *zap.Logger

	http       *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int
	timeout    time.Duration

	policy retry.Policy
	now    func() time.Time
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	ex := cfg.Exchange
	c := &Client{
		log:        log.Named("binance"),
		http:       &http.Client{Timeout: ex.RequestTimeout + 5*time.Second},
		baseURL:    ex.BaseURL,
		apiKey:     ex.APIKey,
		apiSecret:  ex.APISecret,
		recvWindow: ex.RecvWindow,
		timeout:    ex.RequestTimeout,
		now:        time.Now,
	}
	c.policy = retry.Policy{
		Attempts:  ex.MaxRetries,
		Backoff:   ex.RetryBackoff,
		MaxDelay:  10 * time.Second,
		Retryable: IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Warn("request failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		},
	}
	return c
}

func (c *Client) HasCredentials() bool { return c.apiKey != "" && c.apiSecret != "" }

type request struct {
	method string
	path   string
	params url.Values
	signed bool
	once   bool // маржинальные шаги не повторяем
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	span, ctx := tracing.StartSpan(ctx, "binance "+r.method+" "+r.path)
	span.SetTag("signed", r.signed)
	defer func() { tracing.Finish(span, err) }()

	policy := c.policy
	if r.once {
		policy = retry.Once
	}

	return policy.Do(ctx, func(ctx context.Context) error {
		data, err := c.send(ctx, r)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := sonic.Unmarshal(data, out); err != nil {
			return &decodeError{err: errors.Wrapf(err, "%s body=%s", r.path, truncate(data, 256))}
		}
		return nil
	})
}

func (c *Client) send(ctx context.Context, r request) (data []byte, err error) {
	defer func() {
		outcome := "ok"
		var apiErr *APIError
		switch {
		case err == nil:
		case errors.As(err, &apiErr):
			outcome = "api_error"
		default:
			outcome = "net_error"
		}
		metrics.ExchangeRequests.WithLabelValues(r.path, outcome).Inc()
	}()

	q := url.Values{}
	for k, v := range r.params {
		q[k] = v
	}
	query := q.Encode()
	if r.signed {
		if !c.HasCredentials() {
			return nil, ErrNoCredentials
		}
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			q.Set("recvWindow", strconv.Itoa(c.recvWindow))
		}
		query = q.Encode()
		query += "&signature=" + c.sign(query)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + r.path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if uerr := sonic.Unmarshal(data, apiErr); uerr != nil || apiErr.Msg == "" {
			apiErr.Msg = string(truncate(data, 512))
		}
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
