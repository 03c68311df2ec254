package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Manager owns app.yaml: reads, edits and persists its env block and
// can watch the file for external edits.
type Manager struct {
	path         string
	mu           sync.RWMutex
	file         AppFile
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	onChange     func(AppFile)
	suppressSelf atomic.Bool
}

type managerOptions struct {
	configPath  string
	initialFile *AppFile
	debounce    time.Duration
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	configPath := options.configPath
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	f, err := loadOrCreateFile(configPath, options)
	if err != nil {
		return nil, err
	}

	return &Manager{
		path:     configPath,
		file:     f,
		debounce: options.debounce,
	}, nil
}

func (m *Manager) Get() AppFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneFile(m.file)
}

func (m *Manager) Path() string {
	return m.path
}

// Value returns the env block entry for key as a string.
func (m *Manager) Value(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.file.Env[key]
	if !ok || v == nil {
		return "", false
	}
	return coerceEnvValue(v), true
}

// Keys lists env block keys in sorted order.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.file.Env))
	for k := range m.file.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set writes key=value into the env block. Secret keys belong in .env.
func (m *Manager) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("config key is empty")
	}
	if isSecretKey(key) {
		return fmt.Errorf("%s is a secret; put it in .env", key)
	}
	f := m.Get()
	if f.Env == nil {
		f.Env = map[string]any{}
	}
	f.Env[key] = value
	return m.Update(f)
}

// Unset removes key from the env block.
func (m *Manager) Unset(key string) error {
	f := m.Get()
	if _, ok := f.Env[key]; !ok {
		return nil
	}
	delete(f.Env, key)
	return m.Update(f)
}

func (m *Manager) Update(newFile AppFile) error {
	m.mu.RLock()
	current := m.file
	m.mu.RUnlock()
	if reflect.DeepEqual(current, newFile) {
		return nil
	}

	m.suppressSelf.Store(true)
	defer time.AfterFunc(m.debounce, func() { m.suppressSelf.Store(false) })

	if err := writeConfigFile(m.path, newFile); err != nil {
		m.suppressSelf.Store(false)
		return err
	}

	m.applyFile(newFile)
	return nil
}

// Apply exports the current env block into the process environment.
func (m *Manager) Apply(override bool) int {
	applied, _ := applyEnv(m.Get(), override)
	return applied
}

func (m *Manager) Watch(ctx context.Context, onChange func(AppFile)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	debounce := m.debounce
	configPath := m.path
	m.mu.Unlock()

	configDir := filepath.Dir(configPath)
	if err := watcher.Add(configDir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher, configPath, debounce)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, configPath string, debounce time.Duration) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, m.reloadFromDisk)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isConfigEvent(evt, configPath) {
				continue
			}
			if m.suppressSelf.Load() {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				log.Printf("[Config] watcher error: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func isConfigEvent(evt fsnotify.Event, configPath string) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(configPath) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (m *Manager) reloadFromDisk() {
	f, err := loadConfigFromFile(m.path)
	if err != nil {
		log.Printf("[Config] reload failed: %v", err)
		return
	}

	m.mu.RLock()
	current := m.file
	m.mu.RUnlock()
	if reflect.DeepEqual(current, f) {
		return
	}
	m.applyFile(f)
}

func (m *Manager) applyFile(f AppFile) {
	m.mu.Lock()
	m.file = f
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(cloneFile(f))
	}
}

func loadConfigFromFile(path string) (AppFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppFile{}, err
	}
	return parseAppFile(data)
}

func loadOrCreateFile(path string, options managerOptions) (AppFile, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := loadConfigFromFile(path)
		if err != nil {
			return AppFile{}, fmt.Errorf("load config: %w", err)
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return AppFile{}, fmt.Errorf("stat config: %w", err)
	}

	f := AppFile{Env: map[string]any{}}
	if options.initialFile != nil {
		f = cloneFile(*options.initialFile)
	}

	if err := writeConfigFile(path, f); err != nil {
		return AppFile{}, fmt.Errorf("write initial config: %w", err)
	}
	return f, nil
}

func defaultConfigPath() (string, error) {
	if p := os.Getenv("APP_CONFIG_PATH"); p != "" {
		return p, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config", "app.yaml"), nil
}

func writeConfigFile(path string, f AppFile) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	encoder := yaml.NewEncoder(tmpFile)
	encoder.SetIndent(2)
	if err := encoder.Encode(&f); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmpFile.Name(), path)
}

func cloneFile(f AppFile) AppFile {
	out := AppFile{}
	if f.Env != nil {
		out.Env = make(map[string]any, len(f.Env))
		for k, v := range f.Env {
			out.Env[k] = v
		}
	}
	if f.Secrets != nil {
		out.Secrets = make(map[string]any, len(f.Secrets))
		for k, v := range f.Secrets {
			out.Secrets[k] = v
		}
	}
	return out
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir == "" {
			return
		}
		o.configPath = filepath.Join(dir, "app.yaml")
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithInitialFile(f *AppFile) ManagerOption {
	return func(o *managerOptions) {
		o.initialFile = f
	}
}
