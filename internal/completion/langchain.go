package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/reliability"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainClient drives any OpenAI-compatible endpoint through langchaingo.
type LangChainClient struct {
	llm   contentGenerator
	retry reliability.Policy
}

func NewLangChainClient(baseURL, apiKey, model string, retry reliability.Policy) (*LangChainClient, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init langchain openai client: %w", err)
	}
	return &LangChainClient{llm: llm, retry: retry}, nil
}

func (c *LangChainClient) Name() string { return "langchain" }

func (c *LangChainClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	for _, t := range req.Turns {
		messages = append(messages, llms.TextParts(messageType(t.Role), t.Content))
	}

	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(req.Temperature))

	var text string
	err := reliability.Do(ctx, c.retry, retryable, func(ctx context.Context) error {
		resp, err := c.llm.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyReply
		}
		text = strings.TrimSpace(resp.Choices[0].Content)
		if text == "" {
			return ErrEmptyReply
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func messageType(role convo.Role) schema.ChatMessageType {
	switch role {
	case convo.RoleAssistant:
		return schema.ChatMessageTypeAI
	case convo.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}
