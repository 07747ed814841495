// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel maps a config string onto a [log.Level], defaulting to info.
func ParseLogLevel(level string) log.Level {
	ll, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return ll
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// RotatingFile is an append-only log file that moves itself aside once it grows past MaxBytes.
//
// Rotated files are named <base>_<unix>.log next to the active file.
type RotatingFile struct {
	Path     string
	MaxBytes int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRotatingFile opens (or creates) the file at path for appending.
func OpenRotatingFile(path string, maxBytes int64) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rf := &RotatingFile{Path: path, MaxBytes: maxBytes}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Write implements [io.Writer], rotating before the write when the file is already over the limit.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}

	if r.MaxBytes > 0 && r.size > r.MaxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	ext := filepath.Ext(r.Path)
	base := strings.TrimSuffix(r.Path, ext)
	if ext == "" {
		ext = ".log"
	}
	backup := fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext)
	if err := os.Rename(r.Path, backup); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return r.open()
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewFileLogger creates a debug-level [log.Logger] writing to a [RotatingFile].
func NewFileLogger(path string, maxBytes int64) (*log.Logger, *RotatingFile, error) {
	rf, err := OpenRotatingFile(path, maxBytes)
	if err != nil {
		return nil, nil, err
	}
	l := log.NewWithOptions(rf, log.Options{ReportTimestamp: true, TimeFormat: "2006-01-02 15:04:05.000"})
	l.SetLevel(log.DebugLevel)
	return l, rf, nil
}

// MultiLogger returns a logger that writes to both the given writers.
func MultiLogger(primary io.Writer, secondary io.Writer) *log.Logger {
	if secondary == nil {
		return NewLogger(primary)
	}
	if primary == nil {
		primary = os.Stderr
	}
	return NewLogger(io.MultiWriter(primary, secondary))
}
