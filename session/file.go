// ABOUTME: File-backed KV storing all keys in one JSON document
// ABOUTME: Writes go through a temp file and rename so a crash never leaves a torn record

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileKV persists values in a single JSON file, readable only by the owner.
type FileKV struct {
	path string
	mu   sync.Mutex
}

type fileData struct {
	Values map[string]json.RawMessage `json:"values"`
}

func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file location
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := data.Values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("session file: value for %q is not valid JSON", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		// An unreadable document is replaced rather than blocking new logins
		slog.Warn("Discarding unreadable session file", "path", f.path, "error", err)
		data = &fileData{Values: make(map[string]json.RawMessage)}
	}
	data.Values[key] = json.RawMessage(append([]byte(nil), value...))
	return f.save(data)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return f.save(&fileData{Values: make(map[string]json.RawMessage)})
	}
	if _, ok := data.Values[key]; !ok {
		return nil
	}
	delete(data.Values, key)
	return f.save(data)
}

func (f *FileKV) load() (*fileData, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileData{Values: make(map[string]json.RawMessage)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if data.Values == nil {
		data.Values = make(map[string]json.RawMessage)
	}
	return &data, nil
}

func (f *FileKV) save(data *fileData) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(raw)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Chmod(tmpPath, 0600)
	}
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			return fmt.Errorf("failed to rename temp file: %v; additionally failed to remove temp file: %w", err, removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
