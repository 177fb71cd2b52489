package engine

import (
	"regexp"
	"strings"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

var taskMarker = regexp.MustCompile(`^\s*\[([ xX])\]\s*`)

const (
	glyphUnchecked = "☐ "
	glyphChecked   = "☑ "
)

// matchTask looks for a checkbox marker in the leading text of an item.
// On a match it returns the checked state and the children with the
// marker removed.
func matchTask(children []token.Token) (checked bool, rest []token.Token, ok bool) {
	var lead strings.Builder
	for _, c := range children {
		if c.Kind != token.KindText {
			break
		}
		lead.WriteString(c.Content)
	}
	m := taskMarker.FindStringSubmatch(lead.String())
	if m == nil {
		return false, nil, false
	}
	checked = strings.EqualFold(m[1], "x")

	strip := len(m[0])
	rest = make([]token.Token, 0, len(children))
	for _, c := range children {
		if strip > 0 && c.Kind == token.KindText {
			if len(c.Content) <= strip {
				strip -= len(c.Content)
				continue
			}
			c.Content = c.Content[strip:]
			strip = 0
		}
		rest = append(rest, c)
	}
	return checked, rest, true
}

// taskParagraph renders a task item: list indentation, a checkbox glyph and
// no numbering.
func (s *session) taskParagraph(level int, checked bool, rest []token.Token) *docmodel.Paragraph {
	glyph := glyphUnchecked
	if checked {
		glyph = glyphChecked
	}
	p := &docmodel.Paragraph{
		Style:  "List Paragraph",
		Indent: listIndent(level),
		Task:   &docmodel.TaskInfo{Checked: checked},
		Runs:   append([]docmodel.Run{{Text: glyph}}, s.runs(rest)...),
	}
	s.applyQuote(p)
	return p
}
