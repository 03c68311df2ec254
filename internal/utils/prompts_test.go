package utils

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPromptAllStages(t *testing.T) {
	vars := map[string]any{
		"date": "20250307", "date_kr": "3월 7일", "iso_date": "2025-03-07",
		"market_context": "{}", "title_words": "[]", "calendar_context": "",
		"theme": "{}", "base_scripts": "[]", "scripts": "[]", "sections": "[]", "transitions": "[]",
		"ticker": "AAPL", "role": "fundamental", "role_desc": "", "round": 2, "context": "{}",
		"opponents": "", "guidance": "", "rounds": "[]", "consensus": false, "next_step": "end",
		"debate": "{}", "allowed_sources": "[]", "intraday": "{}", "tickers": "[]",
	}
	for _, name := range []string{
		"opening", "theme_worker", "theme_refiner", "debate_expert", "debate_moderator",
		"ticker_writer", "ticker_refiner", "closing",
	} {
		t.Run(name, func(t *testing.T) {
			msgs, err := RenderPrompt(context.Background(), name, vars)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, schema.System, msgs[0].Role)
			assert.Equal(t, schema.User, msgs[1].Role)
			assert.NotContains(t, msgs[1].Content, "{{")
		})
	}
}

func TestLoadPromptMissing(t *testing.T) {
	_, err := LoadPrompt("nope/system")
	assert.Error(t, err)
}
