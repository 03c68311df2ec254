package utils

import (
	"context"
	"embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// RenderPrompt formats prompts/{name}/system.md and user.md with vars
// ({{.key}} placeholders) into a system + user message pair.
func RenderPrompt(ctx context.Context, name string, vars map[string]any) ([]*schema.Message, error) {
	system, err := LoadPrompt(name + "/system")
	if err != nil {
		return nil, err
	}
	user, err := LoadPrompt(name + "/user")
	if err != nil {
		return nil, err
	}
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", name, err)
	}
	return msgs, nil
}
