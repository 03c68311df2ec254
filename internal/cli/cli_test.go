package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/debate"
	"github.com/dyike/BriefCast/internal/storage"
)

func TestParseTickers(t *testing.T) {
	got, err := parseTickers(" aapl, MSFT,,aapl ,brk.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, got)

	empty, err := parseTickers("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseTickers("THISISWAYTOOLONG")
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "debate", "prefetch", "serve", "list", "config", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "3", run.Flags().Lookup("stage").DefValue)
}

func TestRenderers(t *testing.T) {
	tr := &debate.Transcript{
		Ticker:     "AAPL",
		Date:       "20250307",
		Rounds:     []debate.Round{{Round: 1, Fundamental: debate.Utterance{Action: debate.Buy, Confidence: 0.8}}},
		Conclusion: debate.Conclusion{Text: "매수 우위", Action: debate.Buy, Confidence: 0.8},
	}
	out := RenderTranscript(tr)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "매수 우위")

	list := RenderPodcasts([]storage.Podcast{{Date: "20250307", UserTickers: []string{"AAPL"}, TTSDone: true}})
	assert.Contains(t, list, "20250307")
	assert.Contains(t, list, "tts done")
	assert.Contains(t, RenderPodcasts(nil), "no podcasts")

	cfgOut := RenderConfig(&config.Config{LLMProvider: "openai", SECUserAgent: "me@example.com"})
	assert.Contains(t, cfgOut, "openai")
	assert.False(t, strings.Contains(cfgOut, "me@example.com"))

	assert.Equal(t, completedStyle.Render("x"), statusStyle(consts.State_Done).Render("x"))
}
