package frame

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/bft-labs/framedrive/internal/domain"
)

const (
	// DefaultMaxMessageSize bounds the declared length of a single payload.
	DefaultMaxMessageSize = 64 << 20 // 64MB

	// maxLineLength bounds header and separator lines.
	maxLineLength = 4096
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxMessageSize sets the largest payload the decoder accepts.
// Values <= 0 keep the default.
func WithMaxMessageSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// Decoder reads frames from a stream one at a time.
//
// The first error is sticky: once Next fails, every later call returns the
// same error. A Decoder is not safe for concurrent use.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
	err     error
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:       bufio.NewReader(r),
		maxSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next decodes the next frame and returns its payload.
//
// Next returns io.EOF when the stream ends before a header line, which is
// normal completion. A stream that ends inside a frame yields a
// *domain.StreamIOError wrapping io.ErrUnexpectedEOF; a short payload is
// never returned. Malformed headers yield a *domain.ProtocolFormatError.
func (d *Decoder) Next() (string, error) {
	if d.err != nil {
		return "", d.err
	}
	msg, err := d.next()
	if err != nil {
		d.err = err
		return "", err
	}
	return msg, nil
}

func (d *Decoder) next() (string, error) {
	header, err := d.readLine("header")
	if err != nil {
		return "", err
	}

	length, err := parseHeader(header, d.maxSize)
	if err != nil {
		return "", err
	}

	sep, err := d.readLine("separator")
	if errors.Is(err, io.EOF) {
		return "", &domain.StreamIOError{Op: "read separator", Err: io.ErrUnexpectedEOF}
	}
	if err != nil {
		return "", err
	}
	if sep != "" {
		return "", &domain.ProtocolFormatError{Header: sep, Reason: "separator line is not empty"}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", &domain.StreamIOError{Op: "read payload", Err: err}
	}
	return string(payload), nil
}

// readLine reads one line without its terminator. It returns io.EOF only
// when the stream ends before any byte of the line.
func (d *Decoder) readLine(stage string) (string, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineLength {
			return "", &domain.ProtocolFormatError{Header: string(line[:64]) + "...", Reason: stage + " line too long"}
		}
		switch {
		case err == nil:
			return strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return "", io.EOF
			}
			return "", &domain.StreamIOError{Op: "read " + stage, Err: io.ErrUnexpectedEOF}
		default:
			return "", &domain.StreamIOError{Op: "read " + stage, Err: err}
		}
	}
}

func parseHeader(header string, maxSize int) (int, error) {
	value, ok := strings.CutPrefix(header, HeaderPrefix)
	if !ok {
		return 0, &domain.ProtocolFormatError{Header: header, Reason: "missing " + strings.TrimSuffix(HeaderPrefix, ": ") + " prefix"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &domain.ProtocolFormatError{Header: header, Reason: "length is not a decimal integer"}
	}
	if n < 0 {
		return 0, &domain.ProtocolFormatError{Header: header, Reason: "negative length"}
	}
	if n > maxSize {
		return 0, &domain.ProtocolFormatError{Header: header, Reason: "length exceeds " + strconv.Itoa(maxSize) + " bytes"}
	}
	return n, nil
}

// Messages returns the lazy sequence of payloads decoded from r.
//
// The sequence ends silently at a clean end of stream. Any other error is
// yielded once, with an empty payload, and ends the sequence. The sequence
// consumes r and cannot be restarted.
func Messages(r io.Reader, opts ...Option) iter.Seq2[string, error] {
	d := NewDecoder(r, opts...)
	return func(yield func(string, error) bool) {
		for {
			msg, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
