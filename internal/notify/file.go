package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileNotifier appends messages to a JSONL outbox.
type FileNotifier struct {
	mu   sync.Mutex
	path string
}

func NewFileNotifier(dir string) (*FileNotifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileNotifier{path: filepath.Join(dir, "outbox.jsonl")}, nil
}

func (f *FileNotifier) Path() string { return f.path }

func (f *FileNotifier) Notify(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer out.Close()
	if err := json.NewEncoder(out).Encode(&msg); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
