package docmodel

import (
	"errors"
	"fmt"
)

// MaxNumberingLevels is the number of list levels a numbering definition
// can describe.
const MaxNumberingLevels = 9

var (
	ErrUnknownNumbering = errors.New("unknown numbering definition")
	ErrNumberingLevel   = errors.New("numbering level out of range")
)

// Definition is one numbering identity bound to a (level, ordered) pair.
type Definition struct {
	ID      int
	Level   int
	Ordered bool
}

type numberingKey struct {
	level   int
	ordered bool
}

// NumberingRegistry allocates numbering definitions for one document.
// Ids are sequential from 1 in allocation order.
type NumberingRegistry struct {
	defs    []Definition
	current map[numberingKey]int
}

// GetOrCreate returns the current definition id for (level, ordered),
// allocating one on first use.
func (r *NumberingRegistry) GetOrCreate(level int, ordered bool) int {
	if id, ok := r.current[numberingKey{level, ordered}]; ok {
		return id
	}
	return r.Create(level, ordered)
}

// Create allocates a new definition for (level, ordered) and makes it the
// current one for that pair. Used when a list restarts.
func (r *NumberingRegistry) Create(level int, ordered bool) int {
	if r.current == nil {
		r.current = make(map[numberingKey]int)
	}
	id := len(r.defs) + 1
	r.defs = append(r.defs, Definition{ID: id, Level: level, Ordered: ordered})
	r.current[numberingKey{level, ordered}] = id
	return id
}

// Lookup returns the definition with the given id.
func (r *NumberingRegistry) Lookup(id int) (Definition, bool) {
	if id < 1 || id > len(r.defs) {
		return Definition{}, false
	}
	return r.defs[id-1], true
}

// Definitions returns all definitions in allocation order.
func (r *NumberingRegistry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *NumberingRegistry) validate(ref NumberingRef) error {
	if _, ok := r.Lookup(ref.ID); !ok {
		return fmt.Errorf("numbering id %d: %w", ref.ID, ErrUnknownNumbering)
	}
	if ref.Level < 0 || ref.Level >= MaxNumberingLevels {
		return fmt.Errorf("level %d: %w", ref.Level, ErrNumberingLevel)
	}
	return nil
}
