package engine

import (
	"regexp"
	"strings"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

var (
	breakTag = regexp.MustCompile(`(?i)^<br\s*/?>$`)
	styleTag = regexp.MustCompile(`(?i)^<(/?)([a-z]+)(?:\s[^>]*)?>$`)
)

// runBuilder turns one inline token list into runs. Pending text is
// flushed before every style toggle, so each run carries the flags that
// were in effect while its text was read.
type runBuilder struct {
	s *session

	bold, italic, strike, code bool
	href                       string

	buf  strings.Builder
	runs []docmodel.Run
}

func (s *session) runs(children []token.Token) []docmodel.Run {
	b := runBuilder{s: s}
	for _, t := range children {
		b.add(t)
	}
	b.flush()
	return b.runs
}

func (b *runBuilder) add(t token.Token) {
	switch t.Kind {
	case token.KindText:
		b.buf.WriteString(strings.ReplaceAll(t.Content, "\n", " "))
	case token.KindSoftbreak:
		pending := strings.TrimRight(b.buf.String(), " ")
		b.buf.Reset()
		b.buf.WriteString(pending)
		b.buf.WriteByte(' ')
	case token.KindHardbreak:
		b.lineBreak()

	case token.KindStrongOpen, token.KindStrongClose:
		b.flush()
		b.bold = t.Kind == token.KindStrongOpen
	case token.KindEmOpen, token.KindEmClose:
		b.flush()
		b.italic = t.Kind == token.KindEmOpen
	case token.KindStrikeOpen, token.KindStrikeClose:
		b.flush()
		b.strike = t.Kind == token.KindStrikeOpen

	case token.KindCodeInline:
		b.flush()
		if t.Content != "" {
			b.runs = append(b.runs, docmodel.Run{Text: t.Content, Code: true, Hyperlink: b.href})
		}

	case token.KindLinkOpen:
		b.flush()
		if t.Link != nil {
			b.href = t.Link.Href
		}
	case token.KindLinkClose:
		b.flush()
		b.href = ""

	case token.KindImage:
		b.flush()
		run := b.s.imageRun(t.Image)
		run.Hyperlink = b.href
		b.runs = append(b.runs, run)

	case token.KindHTMLInline:
		b.htmlTag(strings.TrimSpace(t.Content))

	default:
		if len(t.Children) > 0 {
			for _, c := range t.Children {
				b.add(c)
			}
		}
	}
}

// htmlTag applies an inline HTML tag. Formatting tags toggle the matching
// flag; any other tag is dropped while the text around it is kept.
func (b *runBuilder) htmlTag(tag string) {
	if breakTag.MatchString(tag) {
		b.lineBreak()
		return
	}
	m := styleTag.FindStringSubmatch(tag)
	if m == nil {
		return
	}
	var flag *bool
	switch strings.ToLower(m[2]) {
	case "b", "strong":
		flag = &b.bold
	case "i", "em":
		flag = &b.italic
	case "s", "del", "strike":
		flag = &b.strike
	case "code", "kbd":
		flag = &b.code
	default:
		return
	}
	b.flush()
	*flag = m[1] == ""
}

func (b *runBuilder) lineBreak() {
	b.flush()
	b.runs = append(b.runs, docmodel.Run{Break: true})
}

// flush emits pending text as a run. Empty text never becomes a run.
func (b *runBuilder) flush() {
	if b.buf.Len() == 0 {
		return
	}
	b.runs = append(b.runs, docmodel.Run{
		Text:      b.buf.String(),
		Bold:      b.bold,
		Italic:    b.italic,
		Strike:    b.strike,
		Code:      b.code,
		Hyperlink: b.href,
	})
	b.buf.Reset()
}
