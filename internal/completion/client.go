package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/reliability"
)

// ErrEmptyReply is returned when a provider answers without any text.
var ErrEmptyReply = errors.New("completion returned no text")

// Request is one completion call: the system persona followed by the
// conversation turns built from memory.
type Request struct {
	System      string
	Turns       []convo.ChatTurn
	MaxTokens   int
	Temperature float64
}

// Client submits an ordered chat-turn sequence and returns a single reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config controls client construction.
type Config struct {
	Mode       string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// StatusError carries a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion http status %d: %s", e.Code, e.Body)
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	retry := reliability.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   4 * time.Second,
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockClient(), nil
		}
		return NewOpenRouterClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, retry), nil
	case "openrouter":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("OPENROUTER_API_KEY is required for openrouter mode")
		}
		return NewOpenRouterClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, retry), nil
	case "langchain":
		return NewLangChainClient(cfg.BaseURL, cfg.APIKey, cfg.Model, retry)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}

// retryable treats transport failures and throttling/server statuses as
// transient; anything else the provider said is final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return reliability.IsRetryableHTTPStatus(se.Code)
	}
	return !errors.Is(err, ErrEmptyReply)
}
