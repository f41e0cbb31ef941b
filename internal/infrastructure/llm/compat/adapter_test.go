package compat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai shape", `{"choices":[{"message":{"content":"a"}}]}`, "a"},
		{"response field", `{"response":"b"}`, "b"},
		{"message field", `{"message":{"role":"assistant","content":"c"}}`, "c"},
		{"empty choices", `{"choices":[]}`, ""},
		{"unknown shape", `{"data":"x"}`, ""},
		{"not json", `oops`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText([]byte(tt.body)))
		})
	}
}

func TestChat_VisionRequestShape(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"response":"looks like a login form"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL, "gemma-3-12b")
	cfg.APIKey = "secret"
	resp, err := NewAdapter(cfg).Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{{
			Role:    entity.RoleUser,
			Content: "describe",
			Image:   &entity.Screenshot{Data: []byte("img"), Format: "jpeg"},
		}},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "looks like a login form", resp.Content)

	assert.Equal(t, "gemma-3-12b", got["model"])
	msgs := got["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewAdapter(DefaultConfig(server.URL, "m")).Chat(context.Background(), output.ChatRequest{})
	assert.ErrorContains(t, err, "503")
}
