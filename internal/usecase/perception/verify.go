package perception

import (
	"encoding/json"
	"strings"

	"taskpilot/internal/domain/entity"
)

// parseVerification keeps the model's answer as the summary and picks up
// an optional {"changed": bool, "summary": "..."} object. Verification is
// observational; nothing here affects control flow.
func parseVerification(answer string) *entity.Verification {
	v := &entity.Verification{Summary: answer}

	response := strings.TrimSpace(answer)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return v
	}

	var parsed struct {
		Changed *bool  `json:"changed"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return v
	}
	v.Changed = parsed.Changed
	if parsed.Summary != "" {
		v.Summary = parsed.Summary
	}
	return v
}
