package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/riskibarqy/moneyball/internal/platform/logging"
	"github.com/riskibarqy/moneyball/internal/platform/resilience"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com"
	defaultModel          = "gemini-2.5-flash"
	defaultRetryBaseDelay = 15 * time.Second
	maxResponseBytes      = 4 << 20
)

var (
	// ErrRateLimited marks a failure where every attempt hit a quota response.
	ErrRateLimited     = crerr.New("gemini rate limited")
	ErrEmptyResponse   = crerr.New("gemini returned no text")
	errGeminiTransient = crerr.New("gemini transient failure")
)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RatePerMinute  int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client calls the generateContent endpoint. Quota responses are retried
// with a linearly growing delay; every other failure is returned at once.
type Client struct {
	httpClient     *http.Client
	endpoint       string
	apiKey         string
	model          string
	logger         *logging.Logger
	limiter        *rate.Limiter
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	retry          resilience.RetryPolicy
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 60 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}

	baseDelay := cfg.RetryBaseDelay
	if baseDelay < 0 {
		baseDelay = defaultRetryBaseDelay
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}

	c := &Client{
		httpClient:     httpClient,
		endpoint:       fmt.Sprintf("%s/v1beta/models/%s:generateContent", baseURL, url.PathEscape(model)),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          model,
		logger:         logger,
		limiter:        rate.NewLimiter(limit, 1),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
	}
	c.retry = resilience.RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   baseDelay,
		Retryable:   isRateLimited,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("gemini quota hit, backing off", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	return c
}

func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the concatenated
// text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", usecase.ErrInvalidInput)
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: gemini api key is not configured", usecase.ErrDependencyUnavailable)
	}

	body, err := sonic.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "gemini circuit breaker rejected request", "state", c.breaker.State())
			return "", fmt.Errorf("%w: narrative provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	var text string
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		out, err := c.execute(ctx, body)
		if err != nil {
			return err
		}
		text = out
		return nil
	})

	if c.circuitEnabled {
		switch {
		case err != nil && ctx.Err() != nil:
			c.breaker.Release()
		case err != nil && isCircuitFailure(err):
			c.breaker.RecordFailure()
		default:
			c.breaker.RecordSuccess()
		}
	}

	switch {
	case err == nil:
		return text, nil
	case isRateLimited(err):
		c.logger.WarnContext(ctx, "gemini retries exhausted", "model", c.model, "error", err)
		return "", crerr.Mark(fmt.Errorf("%w: %v", usecase.ErrDependencyUnavailable, err), ErrRateLimited)
	case crerr.Is(err, errGeminiTransient):
		c.logger.WarnContext(ctx, "gemini request failed", "model", c.model, "error", err)
		return "", fmt.Errorf("%w: %v", usecase.ErrDependencyUnavailable, err)
	default:
		return "", err
	}
}

func (c *Client) execute(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %s", errGeminiTransient, c.sanitize(err.Error()))
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return "", fmt.Errorf("%w: read response body: %v", errGeminiTransient, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := c.sanitize(abbreviate(raw))
		if resp.StatusCode == http.StatusTooManyRequests || bytes.Contains(raw, []byte("RESOURCE_EXHAUSTED")) {
			return "", fmt.Errorf("%w: status=%d body=%s", ErrRateLimited, resp.StatusCode, detail)
		}
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: status=%d body=%s", errGeminiTransient, resp.StatusCode, detail)
		}
		return "", fmt.Errorf("gemini status=%d body=%s", resp.StatusCode, detail)
	}

	var decoded generateResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode gemini payload: %w", err)
	}
	text := decoded.text()
	if text == "" {
		if decoded.PromptFeedback.BlockReason != "" {
			return "", crerr.Wrapf(ErrEmptyResponse, "blocked: %s", decoded.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}

func isRateLimited(err error) bool {
	return crerr.Is(err, ErrRateLimited)
}

func isCircuitFailure(err error) bool {
	return crerr.Is(err, ErrRateLimited) || crerr.Is(err, errGeminiTransient) || crerr.Is(err, context.DeadlineExceeded)
}

func (c *Client) sanitize(value string) string {
	if c.apiKey == "" {
		return value
	}
	return strings.ReplaceAll(value, c.apiKey, "REDACTED")
}

func abbreviate(raw []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
