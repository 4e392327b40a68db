package ports

import "github.com/bft-labs/framedrive/internal/domain"

// MessageSink persists decoded messages. Append is called from the decode
// goroutine only; the sink must make each message durable before returning
// so partial results survive a crashed or hung backend.
type MessageSink interface {
	Append(msg domain.Message) error
	Close() error
}

// ProgressReporter prints coarse progress. done is 1-based.
type ProgressReporter interface {
	Progress(done, total int) error
}
