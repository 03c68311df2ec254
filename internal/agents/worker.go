package agents

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/BriefCast/internal/llm"
	"github.com/dyike/BriefCast/internal/metrics"
)

const DefaultMaxIterations = 12

// Worker runs one bounded reason/act loop: call the model, execute the
// tool calls it asks for, feed the observations back, and stop when it
// answers without tool calls or the iteration cap is hit. It stands in for
// eino's react.NewAgent with MaxStep: the capped answer is still parsed and
// tool errors go back to the model.
type Worker struct {
	name          string
	model         model.ToolCallingChatModel
	tools         map[string]tool.InvokableTool
	maxIterations int
}

type WorkerOption func(*Worker)

func WithMaxIterations(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// Result is the worker's final answer.
type Result struct {
	Content    string
	Data       map[string]any
	Iterations int
	ToolCalls  int
	Capped     bool
}

// Parsed reports whether the final answer held a JSON object.
func (r *Result) Parsed() bool { return r != nil && r.Data != nil }

func NewWorker(ctx context.Context, name string, m model.ToolCallingChatModel, tools []tool.InvokableTool, opts ...WorkerOption) (*Worker, error) {
	w := &Worker{
		name:          name,
		model:         m,
		tools:         make(map[string]tool.InvokableTool, len(tools)),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(w)
	}
	if len(tools) == 0 {
		return w, nil
	}

	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("worker %s: tool info: %w", name, err)
		}
		w.tools[info.Name] = t
		infos = append(infos, info)
	}
	bound, err := m.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("worker %s: bind tools: %w", name, err)
	}
	w.model = bound
	return w, nil
}

func (w *Worker) Name() string { return w.name }

// Run executes the loop over messages. A model error is returned; a
// final answer without JSON yields a Result with nil Data.
func (w *Worker) Run(ctx context.Context, messages []*schema.Message) (*Result, error) {
	history := append([]*schema.Message(nil), messages...)
	res := &Result{}
	var last *schema.Message

	for res.Iterations < w.maxIterations {
		res.Iterations++
		msg, err := w.model.Generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("worker %s iteration %d: %w", w.name, res.Iterations, err)
		}
		if msg == nil {
			return nil, fmt.Errorf("worker %s iteration %d: empty model response", w.name, res.Iterations)
		}
		last = msg
		history = append(history, msg)

		if len(msg.ToolCalls) == 0 {
			break
		}
		if res.Iterations == w.maxIterations {
			res.Capped = true
			log.Printf("[Worker] %s hit iteration cap %d with pending tool calls", w.name, w.maxIterations)
			break
		}
		for _, call := range msg.ToolCalls {
			res.ToolCalls++
			history = append(history, schema.ToolMessage(w.invoke(ctx, call), call.ID))
		}
	}

	if last != nil {
		res.Content = last.Content
	}
	data, err := llm.DecodeObject(res.Content)
	if err != nil {
		if !errors.Is(err, llm.ErrNoJSON) {
			return nil, err
		}
		log.Printf("[Worker] %s final answer has no JSON object", w.name)
		return res, nil
	}
	res.Data = data
	return res, nil
}

// invoke runs one tool call. Failures become an error observation so the
// model can react to them.
func (w *Worker) invoke(ctx context.Context, call schema.ToolCall) string {
	name := call.Function.Name
	t, ok := w.tools[name]
	if !ok {
		metrics.ToolCalls.WithLabelValues(name, "unknown").Inc()
		return fmt.Sprintf(`{"error": "unknown tool %q"}`, name)
	}
	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	out, err := t.InvokableRun(ctx, args)
	metrics.ToolCalls.WithLabelValues(name, metrics.Outcome(err)).Inc()
	if err != nil {
		log.Printf("[Worker] %s tool %s failed: %v", w.name, name, err)
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return out
}
