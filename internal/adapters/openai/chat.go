package openaiad

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ChatBuilder creates the tool-calling chat model behind the Domain Agents
// and the summary writer.
type ChatBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ ChatBuilder = (*ChatConfig)(nil)

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Enabled reports whether a model can be built at all.
func (c *ChatConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Model) != ""
}

func (c *ChatConfig) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("openai: chat model needs an api key and a model name")
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	temp := c.Temperature
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       strings.TrimSpace(c.Model),
		MaxTokens:   &maxTokens,
		Temperature: &temp,
		Timeout:     c.Timeout,
	}
	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openai: create chat model: %w", err)
	}
	return m, nil
}
