package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object in model output")

var (
	// fenced ```json ... ``` block, lazily matched so the first block wins
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\s*```")
	// greedy fallback for prose wrapped around an object
	jsonObjectPattern    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the JSON object text found in content: the first
// fenced block, else the whole trimmed content when it is an object, else
// the outermost {...} span. It returns "" when nothing looks like JSON.
func ExtractJSON(content string) string {
	for _, candidate := range candidates(content) {
		if json.Valid([]byte(candidate)) {
			return candidate
		}
		if cleaned := cleanJSON(candidate); json.Valid([]byte(cleaned)) {
			return cleaned
		}
	}
	return ""
}

// DecodeObject parses the JSON object embedded in content.
func DecodeObject(content string) (map[string]any, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoJSON
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, ErrNoJSON
	}
	if out == nil {
		return nil, ErrNoJSON
	}
	return out, nil
}

// Decode is DecodeObject into a typed value.
func Decode(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(raw), v)
}

func candidates(content string) []string {
	var out []string
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		out = append(out, strings.TrimSpace(m[1]))
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		out = append(out, trimmed)
	}
	if m := jsonObjectPattern.FindString(content); m != "" {
		out = append(out, m)
	}
	return out
}

// cleanJSON removes // comments and trailing commas, both common in
// model output.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")
	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
