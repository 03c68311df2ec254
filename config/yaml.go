package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppFile is the app.yaml document. A file without env/secrets blocks
// is read as a flat env map.
type AppFile struct {
	Env     map[string]any `yaml:"env,omitempty" json:"env,omitempty"`
	Secrets map[string]any `yaml:"secrets,omitempty" json:"-"`
}

func parseAppFile(data []byte) (AppFile, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return AppFile{}, fmt.Errorf("parse app config: %w", err)
	}
	var f AppFile
	if raw == nil {
		return f, nil
	}
	env, hasEnv := raw["env"].(map[string]any)
	secrets, hasSecrets := raw["secrets"].(map[string]any)
	if !hasEnv && !hasSecrets {
		f.Env = raw
		return f, nil
	}
	f.Env = env
	f.Secrets = secrets
	return f, nil
}

// EnvMap flattens secrets then env, env winning.
func (f AppFile) EnvMap() map[string]any {
	out := make(map[string]any, len(f.Env)+len(f.Secrets))
	for k, v := range f.Secrets {
		out[k] = v
	}
	for k, v := range f.Env {
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	upper := strings.ToUpper(strings.TrimSpace(key))
	return strings.HasSuffix(upper, "_API_KEY")
}

func coerceEnvValue(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// applyEnv exports the file's values into the process env. Secret keys
// and null values are skipped, as are keys already set unless override.
func applyEnv(f AppFile, override bool) (applied, skipped int) {
	for key, value := range f.EnvMap() {
		key = strings.TrimSpace(key)
		if key == "" || isSecretKey(key) || value == nil {
			skipped++
			continue
		}
		if _, ok := os.LookupEnv(key); ok && !override {
			skipped++
			continue
		}
		if err := os.Setenv(key, coerceEnvValue(value)); err != nil {
			skipped++
			continue
		}
		applied++
	}
	return applied, skipped
}

// LoadEnvFromYAML reads path and exports its values. A missing file is
// not an error and applies nothing.
func LoadEnvFromYAML(path string, override bool) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read app config: %w", err)
	}
	f, err := parseAppFile(data)
	if err != nil {
		return 0, err
	}
	applied, skipped := applyEnv(f, override)
	if applied > 0 {
		log.Printf("[Config] loaded %s (applied=%d, skipped=%d)", path, applied, skipped)
	}
	return applied, nil
}
