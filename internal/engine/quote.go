package engine

import "github.com/wangqiqi/md2docx/internal/docmodel"

// quoteNester counts open blockquotes. The depth never goes below zero.
type quoteNester struct {
	depth int
}

func (q *quoteNester) open() { q.depth++ }

func (q *quoteNester) close() {
	if q.depth > 0 {
		q.depth--
	}
}

func (s *session) quoteOpen(i int) ([]docmodel.Block, int, error) {
	s.quotes.open()
	return nil, i + 1, nil
}

// quoteClose ignores a close without a matching open.
func (s *session) quoteClose(i int) ([]docmodel.Block, int, error) {
	s.quotes.close()
	return nil, i + 1, nil
}

// applyQuote tags p with the current quote depth and indents it.
func (s *session) applyQuote(p *docmodel.Paragraph) {
	d := s.quotes.depth
	if d == 0 {
		return
	}
	p.QuoteDepth = d
	p.Indent.Left += docmodel.Length(d) * s.opts.QuoteIndent
	if p.Style == "" {
		p.Style = "Quote"
	}
}
