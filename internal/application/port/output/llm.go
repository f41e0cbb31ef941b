package output

import (
	"context"

	"taskpilot/internal/domain/entity"
)

// LLMPort is the planner endpoint. An empty Content means "no answer",
// not an error.
type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Model       string
	Messages    []entity.Message
	Temperature float32
	MaxTokens   int
}

type ChatResponse struct {
	Content string
}
