package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a .mlog file.
// It is safe for concurrent use.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
	written int
	dropped int
}

// FileLoggerOptions configures NewFileLoggerWithOptions.
type FileLoggerOptions struct {
	// Truncate starts a fresh file instead of appending.
	Truncate bool

	// Perm is the mode of a newly created file (default: 0644).
	Perm os.FileMode
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	return NewFileLoggerWithOptions(path, FileLoggerOptions{})
}

// NewFileLoggerWithOptions opens path according to opts.
func NewFileLoggerWithOptions(path string, opts FileLoggerOptions) (*FileLogger, error) {
	if opts.Perm == 0 {
		opts.Perm = 0o644
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if opts.Truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, opts.Perm)
	if err != nil {
		return nil, err
	}
	return &FileLogger{path: path, file: f, encoder: NewEncoder(f)}, nil
}

// Path returns the file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends event. Events that fail to encode are counted and dropped;
// capture never fails an exchange.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.written++
}

// Stats returns the number of events written and dropped so far.
func (l *FileLogger) Stats() (written, dropped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.dropped
}

// Sync flushes the file to stable storage.
func (l *FileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	return l.file.Sync()
}

// Close closes the file. Later Log calls are ignored and later Close calls
// return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
