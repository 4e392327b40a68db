package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"ascii", "ping", "Content-Length: 4\r\n\r\nping"},
		{"empty", "", "Content-Length: 0\r\n\r\n"},
		{"multibyte counts bytes", "héllo", "Content-Length: 6\r\n\r\nhéllo"},
		{"json", `{"method":"exit"}`, "Content-Length: 17\r\n\r\n{\"method\":\"exit\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.payload)))
		})
	}
}

func TestAppendFrame_Concatenates(t *testing.T) {
	var buf []byte
	buf = AppendFrame(buf, "ping")
	buf = AppendFrame(buf, "status")

	assert.Equal(t, "Content-Length: 4\r\n\r\npingContent-Length: 6\r\n\r\nstatus", string(buf))
}

func TestWriter_WriteFrame(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	require.NoError(t, w.WriteFrame("ping"))
	require.NoError(t, w.WriteFrame("status"))

	assert.Equal(t, 2, w.Frames())
	assert.Equal(t, int64(out.Len()), w.Bytes())
	assert.Equal(t, string(Encode("ping"))+string(Encode("status")), out.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriter_WriteFrameError(t *testing.T) {
	w := NewWriter(failingWriter{})

	err := w.WriteFrame("ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, 0, w.Frames())
}
