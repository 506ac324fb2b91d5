// Package prompts serves the model-facing prompt assets: the system
// instruction, the exemplar response, and the response schema. Defaults are
// compiled in; a prompt directory can override them at runtime and is
// watched for changes so prompt tuning does not require a redeploy.
package prompts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Asset file names recognized inside the prompt directory.
const (
	SystemInstructionFile = "system_instruction.txt"
	ExemplarFile          = "exemplar.json"
	ResponseSchemaFile    = "recipe_schema.json"
)

//go:embed assets/system_instruction.txt
var defaultSystemInstruction string

//go:embed assets/exemplar.json
var defaultExemplar string

//go:embed assets/recipe_schema.json
var defaultSchema []byte

// Library holds the current prompt assets. Accessors are safe for
// concurrent use; reloads swap whole assets under the write lock, so a
// request sees either the old asset or the new one, never a partial write.
type Library struct {
	mu       sync.RWMutex
	system   string
	exemplar string
	schema   []byte

	dir       string
	watcher   *fsnotify.Watcher
	debouncer map[string]*time.Timer
	logger    *zap.Logger
	done      chan struct{}
}

// NewLibrary creates a prompt library from the embedded defaults. When
// promptDir is non-empty, files found there override the defaults and the
// directory is watched for changes.
func NewLibrary(promptDir string, logger *zap.Logger) (*Library, error) {
	l := &Library{
		system:   defaultSystemInstruction,
		exemplar: defaultExemplar,
		schema:   defaultSchema,
		dir:      promptDir,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if promptDir == "" {
		return l, nil
	}

	for _, name := range []string{SystemInstructionFile, ExemplarFile, ResponseSchemaFile} {
		if err := l.loadFile(name); err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	if err := watcher.Add(promptDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch prompt directory %s: %w", promptDir, err)
	}
	l.watcher = watcher
	l.debouncer = make(map[string]*time.Timer)
	go l.watchLoop()

	logger.Info("Prompt hot reload enabled", zap.String("dir", promptDir))
	return l, nil
}

// System returns the current system instruction.
func (l *Library) System() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.system
}

// Exemplar returns the serialized example response shown to the model.
func (l *Library) Exemplar() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.exemplar
}

// Schema returns the JSON schema the model response must satisfy. The
// returned slice is shared and must be treated as read-only.
func (l *Library) Schema() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.schema
}

// Close stops the prompt directory watcher. Safe to call when hot reload
// was never enabled.
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}

// loadFile reads one override file into the library. A missing file keeps
// the current asset; a present but invalid file is an error so a bad
// override cannot silently serve stale prompts.
func (l *Library) loadFile(name string) error {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read prompt asset %s: %w", name, err)
	}

	switch name {
	case ExemplarFile, ResponseSchemaFile:
		if !json.Valid(data) {
			return fmt.Errorf("prompt asset %s is not valid JSON", name)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch name {
	case SystemInstructionFile:
		l.system = string(data)
	case ExemplarFile:
		l.exemplar = string(data)
	case ResponseSchemaFile:
		l.schema = data
	}
	return nil
}

// watchLoop is the event loop for prompt directory watching.
func (l *Library) watchLoop() {
	for {
		select {
		case <-l.done:
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(event)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("Prompt watcher error", zap.Error(err))
		}
	}
}

// handleEvent debounces rapid events for the same file before reloading.
// Editors typically emit several writes per save.
func (l *Library) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	name := filepath.Base(event.Name)
	switch name {
	case SystemInstructionFile, ExemplarFile, ResponseSchemaFile:
	default:
		return
	}
	if strings.HasSuffix(event.Name, "~") || strings.HasSuffix(event.Name, ".tmp") {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if timer, exists := l.debouncer[name]; exists {
		timer.Stop()
	}
	l.debouncer[name] = time.AfterFunc(250*time.Millisecond, func() {
		if err := l.loadFile(name); err != nil {
			l.logger.Warn("Prompt asset reload rejected", zap.String("asset", name), zap.Error(err))
		} else {
			l.logger.Info("Prompt asset reloaded", zap.String("asset", name))
		}
		l.mu.Lock()
		delete(l.debouncer, name)
		l.mu.Unlock()
	})
}
