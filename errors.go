package gbcore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gbcore/internal/status"
)

// Status sentinels. Every error returned by this package wraps one of these.
var (
	ErrInvalidArgument = status.ErrInvalidArgument
	ErrDomainMismatch  = status.ErrDomainMismatch
	ErrOverflow        = status.ErrOverflow
	ErrOutOfMemory     = status.ErrOutOfMemory
	ErrCorruption      = status.ErrCorruption
	ErrNotFinalized    = status.ErrNotFinalized
)

// ErrClosed is returned when a closed runtime is asked for new matrices.
var ErrClosed = errors.New("runtime closed")

// IndexError reports a coordinate outside the matrix dimensions.
// It unwraps to ErrInvalidArgument.
type IndexError struct {
	Row, Col     uint64
	Nrows, Ncols uint64
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index (%d,%d) out of range for %dx%d matrix", e.Row, e.Col, e.Nrows, e.Ncols)
}

func (e *IndexError) Unwrap() error { return ErrInvalidArgument }
