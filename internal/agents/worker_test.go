package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/internal/llm/llmtest"
)

type echoInput struct {
	Word string `json:"word"`
}

type echoOutput struct {
	Echo string `json:"echo"`
}

func echoTool(fail bool) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "echo",
			Desc: "Echo a word",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"word": {Type: "string", Desc: "word to echo", Required: true},
			}),
		},
		func(ctx context.Context, in echoInput) (*echoOutput, error) {
			if fail {
				return nil, errors.New("echo is down")
			}
			return &echoOutput{Echo: strings.ToUpper(in.Word)}, nil
		},
	)
}

func TestWorkerRunsToolsThenAnswers(t *testing.T) {
	fake := llmtest.Sequence(
		llmtest.ToolCall("c1", "echo", `{"word": "hi"}`),
		llmtest.Text("```json\n{\"answer\": \"HI\"}\n```"),
	)
	w, err := NewWorker(context.Background(), "test", fake, []tool.InvokableTool{echoTool(false)})
	require.NoError(t, err)
	require.Len(t, fake.BoundTools(), 1)

	res, err := w.Run(context.Background(), []*schema.Message{schema.UserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, "HI", res.Data["answer"])

	second := fake.Calls()[1]
	obs := second[len(second)-1]
	assert.Equal(t, schema.Tool, obs.Role)
	assert.Equal(t, "c1", obs.ToolCallID)
	assert.Contains(t, obs.Content, `"echo":"HI"`)
}

func TestWorkerToolErrorIsObservation(t *testing.T) {
	fake := llmtest.Sequence(
		llmtest.ToolCall("c1", "echo", `{"word": "hi"}`),
		llmtest.ToolCall("c2", "missing_tool", `{}`),
		llmtest.Text(`{"answer": "recovered"}`),
	)
	w, err := NewWorker(context.Background(), "test", fake, []tool.InvokableTool{echoTool(true)})
	require.NoError(t, err)

	res, err := w.Run(context.Background(), []*schema.Message{schema.UserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Data["answer"])

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1][len(calls[1])-1].Content, "echo is down")
	assert.Contains(t, calls[2][len(calls[2])-1].Content, "unknown tool")
}

func TestWorkerIterationCap(t *testing.T) {
	fake := llmtest.Sequence(llmtest.ToolCall("c", "echo", `{"word": "again"}`))
	w, err := NewWorker(context.Background(), "loop", fake, []tool.InvokableTool{echoTool(false)}, WithMaxIterations(3))
	require.NoError(t, err)

	res, err := w.Run(context.Background(), []*schema.Message{schema.UserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.CallCount())
	assert.True(t, res.Capped)
	assert.False(t, res.Parsed())
}

func TestWorkerUnparsableAnswer(t *testing.T) {
	w, err := NewWorker(context.Background(), "plain", llmtest.Sequence(llmtest.Text("just prose")), nil)
	require.NoError(t, err)
	res, err := w.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Parsed())
	assert.Equal(t, "just prose", res.Content)
}

func TestWorkerModelError(t *testing.T) {
	w, err := NewWorker(context.Background(), "down", llmtest.Failing(errors.New("503")), nil)
	require.NoError(t, err)
	_, err = w.Run(context.Background(), nil)
	assert.Error(t, err)
}
