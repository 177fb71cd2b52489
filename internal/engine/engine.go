// Package engine assembles a flat Markdown token stream into a document
// model: paragraphs, styled runs, tables, lists and numbering.
//
// Nested ordered items count on within their own sub-list (1, 2, 3) rather
// than restarting at 1 on every item. Set NumberingPolicy.NestedAlwaysRestart
// to get the per-item restart.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

// ImageFetcher returns the bytes of an image reference or fails.
type ImageFetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// RawRenderer renders a raw HTML fragment whose leading tag is tag. It may
// return no paragraphs for tags it does not recognise.
type RawRenderer interface {
	Render(tag, content string) ([]*docmodel.Paragraph, error)
}

// Highlighter splits code into lines of styled runs.
type Highlighter interface {
	Highlight(lang, code string) ([][]docmodel.Run, error)
}

// Options configures an Engine. All collaborators are optional.
type Options struct {
	Logger      *slog.Logger
	Images      ImageFetcher
	Raw         RawRenderer
	Highlighter Highlighter

	// Numbering tunes the default renumbering decision. Restart, when set,
	// replaces the decision entirely.
	Numbering NumberingPolicy
	Restart   RestartFunc

	// QuoteIndent is the extra left indent per blockquote level.
	QuoteIndent docmodel.Length
}

// Engine converts token streams. It holds configuration only; each
// Convert call runs in its own session, so an Engine may be shared.
type Engine struct {
	opts Options
}

// New returns an Engine with defaults filled in.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.QuoteIndent <= 0 {
		opts.QuoteIndent = docmodel.Inch / 2
	}
	if opts.Restart == nil {
		opts.Restart = opts.Numbering.Restart
	}
	return &Engine{opts: opts}
}

// Convert builds a document from toks. Malformed units are replaced by
// placeholder paragraphs and listed in the report; only a nil stream is
// an error.
func (e *Engine) Convert(ctx context.Context, toks []token.Token) (*docmodel.Document, Report, error) {
	if toks == nil {
		return nil, Report{}, ErrNilTokens
	}
	s := &session{
		ctx:    ctx,
		opts:   &e.opts,
		log:    e.opts.Logger,
		toks:   toks,
		doc:    docmodel.New(),
		images: make(map[string]imageResult),
	}
	s.run()
	return s.doc, s.report, nil
}

// handler builds one semantic unit starting at toks[i] and returns the
// index of the first token after the unit.
type handler func(s *session, i int) ([]docmodel.Block, int, error)

var dispatch = [token.KindCount]handler{
	token.KindHeadingOpen:      (*session).heading,
	token.KindParagraphOpen:    (*session).paragraph,
	token.KindInline:           (*session).bareInline,
	token.KindBulletListOpen:   (*session).listOpen,
	token.KindOrderedListOpen:  (*session).listOpen,
	token.KindBulletListClose:  (*session).listClose,
	token.KindOrderedListClose: (*session).listClose,
	token.KindListItemOpen:     (*session).listItem,
	token.KindListItemClose:    (*session).listItemClose,
	token.KindBlockquoteOpen:   (*session).quoteOpen,
	token.KindBlockquoteClose:  (*session).quoteClose,
	token.KindTableOpen:        (*session).table,
	token.KindFence:            (*session).code,
	token.KindCodeBlock:        (*session).code,
	token.KindHTMLBlock:        (*session).htmlBlock,
	token.KindHR:               (*session).rule,
}

// structural kinds adjust session state but are not units of their own.
func structural(k token.Kind) bool {
	switch k {
	case token.KindBulletListOpen, token.KindBulletListClose,
		token.KindOrderedListOpen, token.KindOrderedListClose,
		token.KindListItemClose,
		token.KindBlockquoteOpen, token.KindBlockquoteClose:
		return true
	}
	return false
}

// session is the mutable state of one conversion.
type session struct {
	ctx  context.Context
	opts *Options
	log  *slog.Logger
	toks []token.Token
	doc  *docmodel.Document

	lists  listMachine
	quotes quoteNester

	open  []bool // ordered flag of each open list container
	items []int  // level of each open list item

	lastUnit       token.Kind
	blockSinceList bool

	images map[string]imageResult
	report Report
}

func (s *session) run() {
	for i := 0; i < len(s.toks); {
		kind := s.toks[i].Kind
		var h handler
		if kind < token.KindCount {
			h = dispatch[kind]
		}
		if h == nil {
			i++
			continue
		}

		blocks, next, err := s.unit(h, i)
		if err != nil {
			uerr := &UnitError{Index: i, Kind: kind, Err: err}
			s.report.Malformed = append(s.report.Malformed, uerr)
			s.log.Debug("malformed unit replaced by placeholder", "kind", kind.String(), "index", i, "error", err)
			blocks = []docmodel.Block{&docmodel.Paragraph{Placeholder: true}}
		}
		for _, b := range blocks {
			switch b := b.(type) {
			case *docmodel.Paragraph:
				s.doc.AppendParagraph(b)
			case *docmodel.Table:
				s.doc.AppendTable(b)
			}
		}
		if !structural(kind) {
			s.noteUnit(kind)
		}

		if next <= i {
			next = i + 1
		}
		i = next
	}
}

// unit runs one handler, turning a panic into a unit error.
func (s *session) unit(h handler, i int) (blocks []docmodel.Block, next int, err error) {
	defer func() {
		if r := recover(); r != nil {
			blocks, next, err = nil, i+1, fmt.Errorf("builder panic: %v", r)
		}
	}()
	return h(s, i)
}

func (s *session) noteUnit(kind token.Kind) {
	s.lastUnit = kind
	switch {
	case kind == token.KindListItemOpen:
		s.blockSinceList = false
	case len(s.open) == 0:
		s.blockSinceList = true
	}
}

// inlineAfter expects toks[open+1] to be an inline token and toks[open+2]
// to close the unit. It returns the inline token and the index after the
// unit.
func (s *session) inlineAfter(open int, closeKind token.Kind) (*token.Token, int, error) {
	j := open + 1
	if j >= len(s.toks) || s.toks[j].Kind != token.KindInline {
		return nil, s.skipTo(open, closeKind), ErrMissingContent
	}
	next := j + 1
	if next < len(s.toks) && s.toks[next].Kind == closeKind {
		next++
	}
	return &s.toks[j], next, nil
}

// skipTo returns the index after the first closeKind following open, or
// open+1 when there is none.
func (s *session) skipTo(open int, closeKind token.Kind) int {
	for j := open + 1; j < len(s.toks); j++ {
		if s.toks[j].Kind == closeKind {
			return j + 1
		}
	}
	return open + 1
}
