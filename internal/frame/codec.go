package frame

import (
	"io"
	"strconv"

	"github.com/bft-labs/framedrive/internal/domain"
)

// HeaderPrefix starts every frame header line.
const HeaderPrefix = "Content-Length: "

// crlf terminates the header line and the empty separator line.
const crlf = "\r\n"

// AppendFrame appends the frame for payload to dst and returns the extended
// slice. The declared length is len(payload), the byte length.
func AppendFrame(dst []byte, payload string) []byte {
	dst = append(dst, HeaderPrefix...)
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, crlf+crlf...)
	return append(dst, payload...)
}

// Encode returns the frame for payload.
func Encode(payload string) []byte {
	// header + up to 20 length digits + two CRLFs
	return AppendFrame(make([]byte, 0, len(HeaderPrefix)+24+len(payload)), payload)
}

// Writer encodes payloads as frames onto an underlying io.Writer.
// It is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	buf    []byte
	frames int
	bytes  int64
}

// NewWriter creates a Writer that writes frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame carrying payload. A frame is written with a
// single Write call so frames are never interleaved on a shared stream.
func (w *Writer) WriteFrame(payload string) error {
	w.buf = AppendFrame(w.buf[:0], payload)
	n, err := w.w.Write(w.buf)
	w.bytes += int64(n)
	if err != nil {
		return &domain.StreamIOError{Op: "write frame", Err: err}
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written successfully.
func (w *Writer) Frames() int {
	return w.frames
}

// Bytes returns the number of bytes written, including partial writes.
func (w *Writer) Bytes() int64 {
	return w.bytes
}
