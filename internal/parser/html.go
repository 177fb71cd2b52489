package parser

import (
	"fmt"
	"strings"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "blockquote": true, "pre": true, "li": true,
	"section": true, "article": true, "center": true, "details": true, "summary": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var inlineTags = map[string]bool{
	"span": true, "b": true, "strong": true, "i": true, "em": true, "s": true,
	"del": true, "code": true, "a": true, "br": true, "u": true, "mark": true,
	"kbd": true, "sub": true, "sup": true,
}

// HTMLFallback renders raw HTML blocks that Markdown passes through
// untouched. Only simple text markup is understood; anything else is
// dropped.
type HTMLFallback struct{}

// Render converts content, whose leading tag is tag, into paragraphs.
// Unrecognised tags yield no paragraphs and no error.
func (h *HTMLFallback) Render(tag, content string) ([]*docmodel.Paragraph, error) {
	tag = strings.ToLower(tag)
	if !blockTags[tag] && !inlineTags[tag] {
		return nil, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil, fmt.Errorf("parse html fragment: %w", err)
	}

	r := &htmlRenderer{}
	for _, n := range nodes {
		r.walk(n, runStyle{})
	}
	r.finish()
	return r.out, nil
}

type runStyle struct {
	bold, italic, strike, code, pre bool
	href                            string
}

type htmlRenderer struct {
	out []*docmodel.Paragraph
	cur *docmodel.Paragraph
}

func (r *htmlRenderer) para() *docmodel.Paragraph {
	if r.cur == nil {
		r.cur = &docmodel.Paragraph{}
	}
	return r.cur
}

// finish closes the current paragraph, dropping it when it has no text.
func (r *htmlRenderer) finish() {
	if r.cur == nil {
		return
	}
	p := r.cur
	r.cur = nil
	trimRuns(p)
	if len(p.Runs) > 0 {
		r.out = append(r.out, p)
	}
}

func (r *htmlRenderer) walk(n *html.Node, st runStyle) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data, st)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			r.walk(c, st)
		}
		return
	}

	name := strings.ToLower(n.Data)
	switch name {
	case "script", "style", "template":
		return
	case "br":
		r.para().Runs = append(r.para().Runs, docmodel.Run{Break: true})
		return
	case "b", "strong":
		st.bold = true
	case "i", "em":
		st.italic = true
	case "s", "del", "strike":
		st.strike = true
	case "code", "kbd":
		st.code = true
	case "a":
		st.href = attr(n, "href")
	}

	block := blockTags[name]
	if block {
		r.finish()
		p := r.para()
		switch {
		case len(name) == 2 && name[0] == 'h':
			p.Style = "Heading " + name[1:]
		case name == "pre":
			p.Style = "Code"
			st.pre, st.code = true, true
		case name == "blockquote":
			p.Style = "Quote"
		case name == "li":
			p.Style = "List Paragraph"
		}
		switch strings.ToLower(attr(n, "align")) {
		case "center":
			p.Alignment = docmodel.AlignCenter
		case "right":
			p.Alignment = docmodel.AlignRight
		case "left":
			p.Alignment = docmodel.AlignLeft
		}
		if name == "center" {
			p.Alignment = docmodel.AlignCenter
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, st)
	}
	if block {
		r.finish()
	}
}

func (r *htmlRenderer) text(s string, st runStyle) {
	if !st.pre {
		s = collapseSpace(s)
		if s == "" || (s == " " && r.cur == nil) {
			return
		}
	}
	p := r.para()
	if st.pre {
		for i, line := range strings.Split(s, "\n") {
			if i > 0 {
				p.Runs = append(p.Runs, docmodel.Run{Break: true})
			}
			if line != "" {
				p.Runs = append(p.Runs, styledRun(line, st))
			}
		}
		return
	}
	if n := len(p.Runs); n > 0 && strings.HasPrefix(s, " ") && strings.HasSuffix(p.Runs[n-1].Text, " ") {
		s = s[1:]
	}
	if s != "" {
		p.Runs = append(p.Runs, styledRun(s, st))
	}
}

func styledRun(s string, st runStyle) docmodel.Run {
	return docmodel.Run{
		Text:      s,
		Bold:      st.bold,
		Italic:    st.italic,
		Strike:    st.strike,
		Code:      st.code,
		Hyperlink: st.href,
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

// trimRuns strips leading and trailing whitespace from a paragraph's text
// and removes runs left empty.
func trimRuns(p *docmodel.Paragraph) {
	for len(p.Runs) > 0 {
		first := &p.Runs[0]
		if first.Break || first.Image != nil || first.Code {
			break
		}
		first.Text = strings.TrimLeft(first.Text, " ")
		if first.Text != "" {
			break
		}
		p.Runs = p.Runs[1:]
	}
	for len(p.Runs) > 0 {
		last := &p.Runs[len(p.Runs)-1]
		if last.Break || last.Image != nil || last.Code {
			break
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		p.Runs = p.Runs[:len(p.Runs)-1]
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
