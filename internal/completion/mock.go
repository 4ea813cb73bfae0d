package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no provider is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Name() string { return "mock" }

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(req.Turns) == 0 {
		return "", ErrEmptyReply
	}

	last := strings.TrimSpace(req.Turns[len(req.Turns)-1].Content)
	if len(req.Turns) == 1 {
		return fmt.Sprintf("Heard you: %s", last), nil
	}
	return fmt.Sprintf("Heard you: %s\n(%d earlier turns in memory)", last, len(req.Turns)-1), nil
}
