package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

const maxHeadingLevel = 6

func headingLevel(tag string) (int, error) {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '0'+maxHeadingLevel {
		return int(tag[1] - '0'), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedHeading, tag)
}

func (s *session) heading(i int) ([]docmodel.Block, int, error) {
	level, err := headingLevel(s.toks[i].Tag)
	if err != nil {
		return nil, s.skipTo(i, token.KindHeadingClose), err
	}
	content, next, err := s.inlineAfter(i, token.KindHeadingClose)
	if err != nil {
		return nil, next, err
	}
	p := &docmodel.Paragraph{
		Style: fmt.Sprintf("Heading %d", level),
		Runs:  s.runs(content.Children),
	}
	s.applyQuote(p)
	return []docmodel.Block{p}, next, nil
}

func (s *session) paragraph(i int) ([]docmodel.Block, int, error) {
	content, next, err := s.inlineAfter(i, token.KindParagraphClose)
	if err != nil {
		return nil, next, err
	}
	return []docmodel.Block{s.bodyParagraph(content)}, next, nil
}

// bareInline handles an inline token outside any paragraph.
func (s *session) bareInline(i int) ([]docmodel.Block, int, error) {
	return []docmodel.Block{s.bodyParagraph(&s.toks[i])}, i + 1, nil
}

// bodyParagraph builds a text paragraph. Inside a list item it is indented
// to the item's text.
func (s *session) bodyParagraph(content *token.Token) *docmodel.Paragraph {
	p := &docmodel.Paragraph{Runs: s.runs(content.Children)}
	s.continueItem(p)
	s.applyQuote(p)
	return p
}

func (s *session) continueItem(p *docmodel.Paragraph) {
	if n := len(s.items); n > 0 {
		p.Indent.Left = listIndent(s.items[n-1]).Left
	}
}

func (s *session) rule(i int) ([]docmodel.Block, int, error) {
	p := &docmodel.Paragraph{Rule: true, Alignment: docmodel.AlignCenter}
	s.applyQuote(p)
	return []docmodel.Block{p}, i + 1, nil
}

// code renders a fenced or indented code block as one paragraph with a
// break run between lines.
func (s *session) code(i int) ([]docmodel.Block, int, error) {
	tok := s.toks[i]
	src := strings.TrimSuffix(tok.Content, "\n")
	lang := ""
	if tok.Fence != nil {
		lang = tok.Fence.Lang
	}

	lines := s.codeLines(lang, src)
	p := &docmodel.Paragraph{Style: "Code"}
	for n, line := range lines {
		if n > 0 {
			p.Runs = append(p.Runs, docmodel.Run{Break: true})
		}
		p.Runs = append(p.Runs, line...)
	}
	s.continueItem(p)
	s.applyQuote(p)
	return []docmodel.Block{p}, i + 1, nil
}

func (s *session) codeLines(lang, src string) [][]docmodel.Run {
	if src == "" {
		return nil
	}
	if s.opts.Highlighter != nil {
		lines, err := s.opts.Highlighter.Highlight(lang, src)
		if err == nil {
			return lines
		}
		s.log.Warn("highlighting failed, using plain code", "lang", lang, "error", err)
	}
	var lines [][]docmodel.Run
	for _, l := range strings.Split(src, "\n") {
		var runs []docmodel.Run
		if l != "" {
			runs = []docmodel.Run{{Text: l, Code: true}}
		}
		lines = append(lines, runs)
	}
	return lines
}

var leadingTag = regexp.MustCompile(`^\s*<\s*([A-Za-z][A-Za-z0-9-]*)`)

// htmlBlock hands raw HTML to the fallback renderer. A renderer failure
// skips the block.
func (s *session) htmlBlock(i int) ([]docmodel.Block, int, error) {
	if s.opts.Raw == nil {
		return nil, i + 1, nil
	}
	content := s.toks[i].Content
	tag := ""
	if m := leadingTag.FindStringSubmatch(content); m != nil {
		tag = strings.ToLower(m[1])
	}
	paras, err := s.opts.Raw.Render(tag, content)
	if err != nil {
		s.report.SkippedBlocks++
		s.log.Warn("raw html block skipped", "tag", tag, "error", err)
		return nil, i + 1, nil
	}
	blocks := make([]docmodel.Block, 0, len(paras))
	for _, p := range paras {
		if p == nil {
			continue
		}
		s.applyQuote(p)
		blocks = append(blocks, p)
	}
	return blocks, i + 1, nil
}
