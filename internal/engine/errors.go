package engine

import (
	"errors"
	"fmt"

	"github.com/wangqiqi/md2docx/internal/token"
)

// ErrNilTokens is returned by Convert for a nil token stream. An empty,
// non-nil stream is valid input.
var ErrNilTokens = errors.New("engine: nil token stream")

// Causes of a malformed unit.
var (
	ErrMissingContent     = errors.New("missing content token")
	ErrUnsupportedHeading = errors.New("unsupported heading depth")
	ErrUnterminated       = errors.New("unterminated block")
	ErrEmptyTable         = errors.New("table has no header row")
)

// UnitError describes one semantic unit that could not be built. The
// engine replaces the unit with an empty placeholder paragraph.
type UnitError struct {
	Index int
	Kind  token.Kind
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s unit at token %d: %v", e.Kind, e.Index, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Report summarises what a conversion recovered from.
type Report struct {
	Malformed         []*UnitError
	SkippedBlocks     int
	ImageFailures     int
	NumberingFailures int
}

// Issues returns the total number of recovered problems.
func (r Report) Issues() int {
	return len(r.Malformed) + r.SkippedBlocks + r.ImageFailures + r.NumberingFailures
}
