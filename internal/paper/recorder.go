package paper

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/skswe/tenxsqueeze/internal/execution"
)

// JSONLRecorder appends fills as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create fills dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open fills file: %w", err)
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single fill to the underlying JSONL file.
func (r *JSONLRecorder) Record(fill execution.Fill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return errors.New("recorder closed")
	}
	return r.enc.Encode(fill)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadJSONL loads every fill from a file written by JSONLRecorder.
func ReadJSONL(path string) ([]execution.Fill, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fills file: %w", err)
	}
	defer file.Close()

	var fills []execution.Fill
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var fill execution.Fill
		if err := json.Unmarshal(scanner.Bytes(), &fill); err != nil {
			return nil, fmt.Errorf("fills line %d: %w", line, err)
		}
		fills = append(fills, fill)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fills file: %w", err)
	}
	return fills, nil
}
