package ports

import (
	"context"

	"github.com/bft-labs/framedrive/internal/domain"
)

// CommandSource loads the commands to deliver, in order.
type CommandSource interface {
	Load(ctx context.Context) ([]domain.Command, error)
}

// ArtifactWriter writes all commands as concatenated frames to a side file
// and returns its path.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, commands []domain.Command) (string, error)
}
