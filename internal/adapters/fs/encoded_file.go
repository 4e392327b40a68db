package fs

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/frame"
)

// EncodedSuffix is appended to the command file path to name the artifact.
const EncodedSuffix = ".encoded"

// EncodedFile implements ports.ArtifactWriter. The artifact is written to a
// temp file and renamed into place so the backend never sees a partial file.
type EncodedFile struct {
	path string
}

// NewEncodedFile creates an EncodedFile writing to path.
func NewEncodedFile(path string) *EncodedFile {
	return &EncodedFile{path: path}
}

// EncodedPathFor returns the artifact path for a command file.
func EncodedPathFor(commandPath string) string {
	return commandPath + EncodedSuffix
}

// WriteArtifact encodes every command and writes the concatenated frames.
func (e *EncodedFile) WriteArtifact(ctx context.Context, commands []domain.Command) (string, error) {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return "", &domain.StreamIOError{Op: "create artifact dir", Path: e.path, Err: err}
	}

	tmp := e.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", &domain.StreamIOError{Op: "create artifact", Path: tmp, Err: err}
	}

	if err := writeFrames(ctx, f, commands); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", &domain.StreamIOError{Op: "write artifact", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", &domain.StreamIOError{Op: "close artifact", Path: tmp, Err: err}
	}

	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return "", &domain.StreamIOError{Op: "rename artifact", Path: e.path, Err: err}
	}
	return e.path, nil
}

func writeFrames(ctx context.Context, f *os.File, commands []domain.Command) error {
	bw := bufio.NewWriter(f)
	w := frame.NewWriter(bw)
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.WriteFrame(cmd.Text); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
