package engine

import (
	"fmt"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

// Frame is one open list level.
type Frame struct {
	Level       int
	Ordered     bool
	NumberingID int
}

// ListState is what the renumbering decision sees for one list item.
// Frames runs from shallow to deep.
type ListState struct {
	Level        int
	Ordered      bool
	Frames       []Frame
	AfterHeading bool
	AfterBlock   bool
}

// RestartFunc decides whether an item starts a new numbering sequence.
type RestartFunc func(ListState) bool

// NumberingPolicy is the default RestartFunc and its two knobs.
//
// By default a nested ordered list starts at 1 and its siblings count on
// from there. NestedAlwaysRestart numbers every nested item 1 instead.
// A top-level list after an unrelated top-level block restarts unless
// ContinueAcrossBlocks is set.
type NumberingPolicy struct {
	NestedAlwaysRestart  bool
	ContinueAcrossBlocks bool
}

// Restart implements RestartFunc.
func (p NumberingPolicy) Restart(st ListState) bool {
	if !st.Ordered {
		return false
	}
	if st.Level > 1 {
		if p.NestedAlwaysRestart {
			return true
		}
	} else {
		if len(st.Frames) == 0 || st.AfterHeading {
			return true
		}
		if st.AfterBlock && !p.ContinueAcrossBlocks {
			return true
		}
	}
	for i := len(st.Frames) - 1; i >= 0; i-- {
		f := st.Frames[i]
		switch {
		case f.Level > st.Level:
			continue
		case f.Level == st.Level:
			return f.Ordered != st.Ordered
		default:
			return true
		}
	}
	return true
}

// listMachine tracks open list levels and per-level counters. Counters
// are keyed by level so an absurd indent costs one entry, not a slice of
// that length.
type listMachine struct {
	frames   []Frame
	counters map[int]int
}

// placement is the outcome of placing one item.
type placement struct {
	Level       int
	Ordered     bool
	Number      int
	NumberingID int
	Restarted   bool
}

func (m *listMachine) state(level int, ordered bool) ListState {
	frames := make([]Frame, len(m.frames))
	copy(frames, m.frames)
	return ListState{Level: level, Ordered: ordered, Frames: frames}
}

func (m *listMachine) place(st ListState, restart bool, reg *docmodel.NumberingRegistry) placement {
	if m.counters == nil {
		m.counters = make(map[int]int)
	}

	pl := placement{Level: st.Level, Ordered: st.Ordered}
	switch {
	case !st.Ordered:
		pl.NumberingID = reg.GetOrCreate(st.Level, false)
	case restart:
		pl.NumberingID = reg.Create(st.Level, true)
		pl.Restarted = true
		m.counters[st.Level] = 1
	default:
		pl.NumberingID = reg.GetOrCreate(st.Level, true)
		m.counters[st.Level]++
	}
	if st.Ordered {
		pl.Number = m.counters[st.Level]
	}

	for n := len(m.frames); n > 0 && m.frames[n-1].Level > st.Level; n-- {
		m.frames = m.frames[:n-1]
	}
	f := Frame{Level: st.Level, Ordered: st.Ordered, NumberingID: pl.NumberingID}
	if n := len(m.frames); n > 0 && m.frames[n-1].Level == st.Level {
		m.frames[n-1] = f
	} else {
		m.frames = append(m.frames, f)
	}
	return pl
}

// listIndent is the indentation of a list or task paragraph at level.
func listIndent(level int) docmodel.Indent {
	return docmodel.Indent{
		Left:      docmodel.QuarterInch * docmodel.Length(level-1),
		FirstLine: -docmodel.QuarterInch,
	}
}

func listStyle(ordered bool, level int) string {
	name := "List Bullet"
	if ordered {
		name = "List Number"
	}
	if level > 1 {
		name = fmt.Sprintf("%s %d", name, level)
	}
	return name
}

func (s *session) listOpen(i int) ([]docmodel.Block, int, error) {
	tok := s.toks[i]
	ordered := tok.Kind == token.KindOrderedListOpen || (tok.List != nil && tok.List.Ordered)
	s.open = append(s.open, ordered)
	return nil, i + 1, nil
}

func (s *session) listClose(i int) ([]docmodel.Block, int, error) {
	if n := len(s.open); n > 0 {
		s.open = s.open[:n-1]
	}
	return nil, i + 1, nil
}

func (s *session) listItemClose(i int) ([]docmodel.Block, int, error) {
	if n := len(s.items); n > 0 {
		s.items = s.items[:n-1]
	}
	return nil, i + 1, nil
}

// itemKind derives level and ordered-ness of the item opened at toks[i].
func (s *session) itemKind(tok token.Token) (level int, ordered bool) {
	indent := 2 * (len(s.open) - 1)
	if tok.List != nil {
		indent = tok.List.Indent
		ordered = tok.List.Ordered
	}
	if n := len(s.open); n > 0 && s.open[n-1] {
		ordered = true
	}
	if indent < 0 {
		indent = 0
	}
	return indent/2 + 1, ordered
}

// itemContent finds the inline token of an item's first paragraph. A nil
// token means the item has no text of its own.
func (s *session) itemContent(i int) (*token.Token, int, error) {
	j := i + 1
	if j >= len(s.toks) {
		return nil, j, nil
	}
	switch s.toks[j].Kind {
	case token.KindParagraphOpen:
		return s.inlineAfter(j, token.KindParagraphClose)
	case token.KindInline:
		return &s.toks[j], j + 1, nil
	}
	return nil, j, nil
}

func (s *session) listItem(i int) ([]docmodel.Block, int, error) {
	level, ordered := s.itemKind(s.toks[i])
	s.items = append(s.items, level)
	content, next, err := s.itemContent(i)
	if err != nil {
		return nil, next, err
	}

	if content != nil {
		if checked, rest, ok := matchTask(content.Children); ok {
			return []docmodel.Block{s.taskParagraph(level, checked, rest)}, next, nil
		}
	}

	st := s.lists.state(level, ordered)
	st.AfterHeading = s.lastUnit == token.KindHeadingOpen
	st.AfterBlock = s.blockSinceList
	pl := s.lists.place(st, s.opts.Restart(st), s.doc.Numbering())

	p := &docmodel.Paragraph{
		Style:  listStyle(ordered, level),
		Indent: listIndent(level),
		List:   &docmodel.ListInfo{Level: level, Ordered: ordered, Number: pl.Number},
	}
	if ordered {
		ref := docmodel.NumberingRef{ID: pl.NumberingID, Level: level - 1}
		if err := p.SetNumbering(ref, s.doc.Numbering()); err != nil {
			s.report.NumberingFailures++
			s.log.Debug("numbering not applied", "level", level, "error", err)
		}
	}
	if content != nil {
		p.Runs = s.runs(content.Children)
	}
	s.applyQuote(p)
	return []docmodel.Block{p}, next, nil
}
