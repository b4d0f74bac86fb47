//go:build !sdl

package sdlreader

import (
	"context"

	"github.com/pkg/errors"

	"github.com/soar/padview/internal/gamepad"
)

// ErrUnavailable is returned by Run in builds without the sdl tag.
var ErrUnavailable = errors.New("built without SDL3 support (rebuild with -tags sdl)")

// Reader stands in for the SDL3 reader in builds without it.
type Reader struct {
	OnInit func()
}

// NewReader returns a Reader whose Run always fails.
func NewReader(frames gamepad.Sink) *Reader {
	return &Reader{}
}

// Run returns ErrUnavailable.
func (r *Reader) Run(ctx context.Context) error {
	return ErrUnavailable
}
