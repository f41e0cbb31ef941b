package compat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
)

var _ output.LLMPort = (*Adapter)(nil)

// Adapter posts chat requests to a loosely OpenAI-shaped endpoint and
// accepts whichever of the known response shapes comes back.
type Adapter struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   output.LoggerPort
}

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Logger   output.LoggerPort
}

func DefaultConfig(endpoint, model string) Config {
	return Config{
		Endpoint: endpoint,
		Model:    model,
		Timeout:  60 * time.Second,
	}
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

type wireImage struct {
	URL string `json:"url"`
}

type wirePart struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *wireImage `json:"image_url,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Response string `json:"response"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	body, err := json.Marshal(wireRequest{
		Model:       model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("chat endpoint returned %s: %s", resp.Status, truncate(string(raw), 200))
	}
	if a.logger != nil {
		a.logger.Debug("compat response", "status", resp.StatusCode, "bytes", len(raw))
	}

	return &output.ChatResponse{Content: ExtractText(raw)}, nil
}

// ExtractText returns the answer text from any supported response shape:
// choices[0].message.content, response, or message.content. Unknown or
// malformed bodies yield "".
func ExtractText(raw []byte) string {
	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return ""
	}
	switch {
	case len(wr.Choices) > 0 && wr.Choices[0].Message.Content != "":
		return wr.Choices[0].Message.Content
	case wr.Response != "":
		return wr.Response
	case wr.Message != nil:
		return wr.Message.Content
	}
	return ""
}

func convertMessages(messages []entity.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wm := wireMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Image != nil && len(msg.Image.Data) > 0 {
			format := msg.Image.Format
			if format == "" {
				format = "jpeg"
			}
			wm.Content = []wirePart{
				{Type: "text", Text: msg.Content},
				{Type: "image_url", ImageURL: &wireImage{
					URL: "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(msg.Image.Data),
				}},
			}
		}
		out = append(out, wm)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
