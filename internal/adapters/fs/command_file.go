package fs

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/bft-labs/framedrive/internal/domain"
)

// CommandFile implements ports.CommandSource over a plain text file holding
// one command per line.
type CommandFile struct {
	path      string
	keepBlank bool
}

// NewCommandFile creates a CommandFile for path. Blank lines are skipped
// unless keepBlank is set, in which case they are sent as empty commands.
func NewCommandFile(path string, keepBlank bool) *CommandFile {
	return &CommandFile{path: path, keepBlank: keepBlank}
}

// Path returns the command file path.
func (c *CommandFile) Path() string {
	return c.path
}

// Load reads every command in file order with trailing whitespace trimmed.
func (c *CommandFile) Load(ctx context.Context) ([]domain.Command, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, &domain.StreamIOError{Op: "open commands", Path: c.path, Err: err}
	}
	defer f.Close()

	var cmds []domain.Command
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &domain.StreamIOError{Op: "read commands", Path: c.path, Err: err}
		}
		// a final line without terminator still counts
		if line == "" && errors.Is(err, io.EOF) {
			break
		}

		text := strings.TrimRightFunc(line, unicode.IsSpace)
		if text != "" || c.keepBlank {
			cmds = append(cmds, domain.Command{Index: len(cmds) + 1, Line: lineNo, Text: text})
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}
	return cmds, nil
}
