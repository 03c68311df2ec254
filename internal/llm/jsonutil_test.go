package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		want    any
	}{
		{"fenced", "분석 결과입니다.\n```json\n{\"action\": \"BUY\"}\n```\n끝", "action", "BUY"},
		{"bare", `  {"nutshell": "강세"}  `, "nutshell", "강세"},
		{"prose wrapped", `Here you go: {"n": 2} thanks`, "n", float64(2)},
		{"comments and trailing comma", "```json\n{\n  \"a\": \"http://x\", // note\n  \"b\": [1,2,],\n}\n```", "a", "http://x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := DecodeObject(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj[tt.key])
		})
	}
}

func TestDecodeObjectNoJSON(t *testing.T) {
	for _, content := range []string{"", "no json here", "```json\nnot json\n```", "[1,2]"} {
		_, err := DecodeObject(content)
		assert.ErrorIs(t, err, ErrNoJSON, content)
	}
}
