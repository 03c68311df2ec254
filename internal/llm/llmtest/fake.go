// Package llmtest provides scripted chat models for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Responder produces the next assistant message for a conversation.
type Responder func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

// Fake is a concurrency-safe model.ToolCallingChatModel driven by a Responder.
type Fake struct {
	mu      sync.Mutex
	respond Responder
	calls   [][]*schema.Message
	tools   []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*Fake)(nil)

func New(r Responder) *Fake {
	return &Fake{respond: r}
}

// Sequence answers with msgs in order, repeating the last one.
func Sequence(msgs ...*schema.Message) *Fake {
	var mu sync.Mutex
	i := 0
	return New(func(context.Context, []*schema.Message) (*schema.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(msgs) == 0 {
			return nil, errors.New("llmtest: no scripted answers")
		}
		m := msgs[min(i, len(msgs)-1)]
		i++
		return m, nil
	})
}

// Failing always returns err.
func Failing(err error) *Fake {
	return New(func(context.Context, []*schema.Message) (*schema.Message, error) {
		return nil, err
	})
}

func (f *Fake) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]*schema.Message(nil), input...))
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.respond(ctx, input)
}

func (f *Fake) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *Fake) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.mu.Lock()
	f.tools = tools
	f.mu.Unlock()
	return f, nil
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Calls returns the inputs of every Generate call so far.
func (f *Fake) Calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.calls...)
}

func (f *Fake) BoundTools() []*schema.ToolInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tools
}

// Text is a final assistant answer.
func Text(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// ToolCall is an assistant message requesting one tool invocation.
func ToolCall(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

// LastUser returns the content of the last user message in msgs.
func LastUser(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

// SystemPrompt returns the content of the first system message.
func SystemPrompt(msgs []*schema.Message) string {
	for _, m := range msgs {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

// Registry serves fakes by profile prefix. Unknown prefixes fail.
type Registry struct {
	mu    sync.Mutex
	fakes map[string]*Fake
}

func NewRegistry() *Registry {
	return &Registry{fakes: map[string]*Fake{}}
}

// Set registers f for prefix and returns the registry.
func (r *Registry) Set(prefix string, f *Fake) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fakes[prefix] = f
	return r
}

func (r *Registry) Get(prefix string) *Fake {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fakes[prefix]
}

func (r *Registry) Model(_ context.Context, prefix string) (model.ToolCallingChatModel, error) {
	if f := r.Get(prefix); f != nil {
		return f, nil
	}
	return nil, errors.New("llmtest: no fake for profile " + prefix)
}
