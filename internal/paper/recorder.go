package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"dnsebot-go/internal/execution"
)

// JSONLRecorder appends fills as JSON lines for later analysis. Writes go
// through a buffered writer that is flushed per fill; fills are rare enough
// that durability wins over throughput. The first write error is kept and
// every later Record becomes a no-op, so a full disk degrades recording
// without taking the trading loop down.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	err  error
}

// NewJSONLRecorder creates the parent directory if needed and opens the
// target file for appending.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(file)
	return &JSONLRecorder{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
	}, nil
}

// Record writes one fill line. Errors are sticky; check Err after the
// session if the file matters.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.file == nil {
		return
	}
	if err := r.enc.Encode(fill); err != nil {
		r.err = err
		return
	}
	r.err = r.buf.Flush()
}

// Err reports the first write error, if any.
func (r *JSONLRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes and closes the file. A sticky write error takes precedence
// over close errors.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	if err := r.buf.Flush(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}
	r.file = nil
	return r.err
}
