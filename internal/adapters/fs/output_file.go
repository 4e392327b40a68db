package fs

import (
	"os"
	"sync"

	"github.com/bft-labs/framedrive/internal/domain"
)

// OutputFile implements ports.MessageSink as an append-only text file with
// one message payload per line.
type OutputFile struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	count  int
	closed bool
}

// OpenOutputFile opens path for appending, creating it if needed. When
// truncate is set any previous content is discarded.
func OpenOutputFile(path string, truncate bool) (*OutputFile, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, &domain.StreamIOError{Op: "open output", Path: path, Err: err}
	}
	return &OutputFile{path: path, f: f}, nil
}

// Append writes the payload followed by a newline in a single write, so
// every message is on disk before the next one is decoded.
func (o *OutputFile) Append(msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return &domain.StreamIOError{Op: "append output", Path: o.path, Err: os.ErrClosed}
	}
	if _, err := o.f.WriteString(msg.Payload + "\n"); err != nil {
		return &domain.StreamIOError{Op: "append output", Path: o.path, Err: err}
	}
	o.count++
	return nil
}

// Count returns the number of messages appended through this handle.
func (o *OutputFile) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Path returns the output file path.
func (o *OutputFile) Path() string {
	return o.path
}

// Close closes the file. Safe to call more than once.
func (o *OutputFile) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.f.Close(); err != nil {
		return &domain.StreamIOError{Op: "close output", Path: o.path, Err: err}
	}
	return nil
}
