package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is the persisted script for one briefing date.
type Artifact struct {
	Date        string         `json:"date"`
	Nutshell    string         `json:"nutshell"`
	UserTickers []string       `json:"user_tickers"`
	Chapter     []ChapterRange `json:"chapter"`
	Scripts     []Turn         `json:"scripts"`
}

func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := ReadJSON(path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Artifact) Save(path string) error {
	if a.UserTickers == nil {
		a.UserTickers = []string{}
	}
	if a.Scripts == nil {
		a.Scripts = []Turn{}
	}
	return WriteJSON(path, a)
}

// WriteJSON writes v as indented JSON through a temp file and rename.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
