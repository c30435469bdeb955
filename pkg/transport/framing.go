package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/whatsminer-go/whatsminer/pkg/log"
)

// Framing constants.
const (
	// DefaultMaxLineSize is the default maximum reply line size (64 KB).
	DefaultMaxLineSize = 65536

	// MaxLogFrameDataSize is the maximum line data to include in logs (4 KB).
	// Larger lines are truncated in log events.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrLineTooLarge indicates a reply line exceeds the maximum size.
	ErrLineTooLarge = errors.New("line too large")

	// ErrMessageEmpty indicates an empty request.
	ErrMessageEmpty = errors.New("message is empty")
)

// frameLogger carries the optional protocol logger of a reader or writer.
type frameLogger struct {
	logger     log.Logger
	connID     string
	remoteAddr string
}

func (fl *frameLogger) log(data []byte, direction log.Direction) {
	if fl.logger == nil {
		return
	}

	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	fl.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fl.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		RemoteAddr:   fl.remoteAddr,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	})
}

// LineWriter writes requests and replies to an underlying writer.
type LineWriter struct {
	w io.Writer
	frameLogger
}

// NewLineWriter creates a new line writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (lw *LineWriter) SetLogger(logger log.Logger, connID, remoteAddr string) {
	lw.frameLogger = frameLogger{logger: logger, connID: connID, remoteAddr: remoteAddr}
}

// Write writes data verbatim.
func (lw *LineWriter) Write(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	lw.log(data, log.DirectionOut)
	return nil
}

// WriteLine writes data followed by a newline.
func (lw *LineWriter) WriteLine(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(append(buf, data...), '\n')
	if _, err := lw.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	lw.log(data, log.DirectionOut)
	return nil
}

// LineReader reads newline-terminated lines from an underlying reader.
type LineReader struct {
	r           *bufio.Reader
	maxLineSize int
	frameLogger
}

// NewLineReader creates a new line reader.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderWithMaxSize(r, DefaultMaxLineSize)
}

// NewLineReaderWithMaxSize creates a line reader with a custom max size.
func NewLineReaderWithMaxSize(r io.Reader, maxSize int) *LineReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxLineSize
	}
	return &LineReader{
		r:           bufio.NewReader(r),
		maxLineSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (lr *LineReader) SetLogger(logger log.Logger, connID, remoteAddr string) {
	lr.frameLogger = frameLogger{logger: logger, connID: connID, remoteAddr: remoteAddr}
}

// ReadLine reads one line and returns it without the terminator.
// A final line closed by EOF is returned as is; io.EOF is only returned
// when nothing was read.
func (lr *LineReader) ReadLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := lr.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > lr.maxLineSize+1 {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLarge, lr.maxLineSize)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == io.EOF && len(line) > 0 {
			break
		}
		return nil, err
	}

	line = bytes.TrimRight(line, "\r\n")
	if len(line) > lr.maxLineSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrLineTooLarge, len(line), lr.maxLineSize)
	}
	lr.log(line, log.DirectionIn)
	return line, nil
}
