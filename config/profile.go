package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultDeepSeek    = "deepseek-chat"
	defaultLLMTimeout  = 120 * time.Second
	defaultLLMRetries  = 2
	defaultTemperature = 0.0
)

// LLMProfile is the resolved model setting for one pipeline role.
type LLMProfile struct {
	Name        string        `json:"name"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	BaseURL     string        `json:"base_url,omitempty"`
	APIKey      string        `json:"-"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// LLMProfile resolves {PREFIX}_OPENAI_* keys, falling back to the
// unprefixed OPENAI_* keys and then to built-in defaults.
func (c *Config) LLMProfile(prefix string) LLMProfile {
	prefix = strings.Trim(strings.ToUpper(strings.TrimSpace(prefix)), "_")
	lookup := func(key string) string {
		if prefix != "" {
			if v := strings.TrimSpace(os.Getenv(prefix + "_OPENAI_" + key)); v != "" {
				return v
			}
		}
		return strings.TrimSpace(os.Getenv("OPENAI_" + key))
	}

	p := LLMProfile{
		Name:        prefix,
		Provider:    c.LLMProvider,
		Model:       lookup("MODEL"),
		BaseURL:     lookup("BASE_URL"),
		Temperature: defaultTemperature,
		Timeout:     defaultLLMTimeout,
		MaxRetries:  defaultLLMRetries,
	}
	if p.Provider == "" {
		p.Provider = "openai"
	}

	switch p.Provider {
	case "deepseek":
		p.APIKey = strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
		if p.Model == "" {
			p.Model = defaultDeepSeek
		}
	default:
		p.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if p.Model == "" {
			p.Model = defaultModel
		}
	}

	if v := lookup("TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			p.Temperature = float32(f)
		}
	}
	if v := lookup("TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.Timeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := lookup("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.MaxRetries = n
		}
	}
	if v := lookup("MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxTokens = n
		}
	}
	return p
}
