package pagescripts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptsAreFunctionExpressions(t *testing.T) {
	for name, src := range map[string]string{
		"page_content":   PageContent,
		"extract_data":   ExtractData,
		"execute_action": ExecuteAction,
	} {
		src = strings.TrimSpace(src)
		assert.NotEmpty(t, src, name)
		assert.True(t, strings.HasPrefix(src, "("), "%s must start with an arrow function", name)
		assert.Contains(t, src, "=>", name)
	}
}
