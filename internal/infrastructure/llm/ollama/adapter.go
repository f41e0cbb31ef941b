package ollama

import (
	"context"
	"fmt"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
)

var _ output.LLMPort = (*Adapter)(nil)

// Adapter serves planner requests from a local Ollama server through
// langchaingo. Screenshots are sent as binary parts for vision models.
type Adapter struct {
	llm    llms.Model
	model  string
	logger output.LoggerPort
}

type Config struct {
	ServerURL string
	Model     string
	Logger    output.LoggerPort
}

func DefaultConfig(model string) Config {
	return Config{
		ServerURL: "http://localhost:11434",
		Model:     model,
	}
}

func NewAdapter(cfg Config) (*Adapter, error) {
	opts := []lcollama.Option{lcollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, lcollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := lcollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return newWithModel(llm, cfg), nil
}

func newWithModel(llm llms.Model, cfg Config) *Adapter {
	return &Adapter{llm: llm, model: cfg.Model, logger: cfg.Logger}
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	opts := []llms.CallOption{}
	if req.Model != "" && req.Model != a.model {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := a.llm.GenerateContent(ctx, convertMessages(req.Messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &output.ChatResponse{}, nil
	}
	if a.logger != nil {
		a.logger.Debug("ollama response", "chars", len(resp.Choices[0].Content))
	}
	return &output.ChatResponse{Content: resp.Choices[0].Content}, nil
}

func convertMessages(messages []entity.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		mc := llms.MessageContent{Role: chatRole(msg.Role)}
		if msg.Content != "" {
			mc.Parts = append(mc.Parts, llms.TextPart(msg.Content))
		}
		if msg.Image != nil && len(msg.Image.Data) > 0 {
			format := msg.Image.Format
			if format == "" {
				format = "jpeg"
			}
			mc.Parts = append(mc.Parts, llms.BinaryPart("image/"+format, msg.Image.Data))
		}
		out = append(out, mc)
	}
	return out
}

func chatRole(role entity.MessageRole) llms.ChatMessageType {
	switch role {
	case entity.RoleSystem:
		return llms.ChatMessageTypeSystem
	case entity.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
