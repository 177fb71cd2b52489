package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/wangqiqi/md2docx/internal/token"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// MarkdownParser tokenizes GitHub flavoured Markdown with goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]token.Token, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return p.Tokenize(src), nil
}

// Tokenize flattens the Markdown AST of src into a token stream. The
// result is never nil.
func (p *MarkdownParser) Tokenize(src []byte) []token.Token {
	src = norm.NFC.Bytes(src)

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	f := &flattener{src: src, toks: make([]token.Token, 0, 64)}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		f.block(n, 0)
	}
	return f.toks
}

type flattener struct {
	src  []byte
	toks []token.Token
}

func (f *flattener) emit(t token.Token) {
	f.toks = append(f.toks, t)
}

// block emits the tokens of a block node. depth is the number of lists
// enclosing n.
func (f *flattener) block(n ast.Node, depth int) {
	switch node := n.(type) {
	case *ast.Heading:
		tag := fmt.Sprintf("h%d", node.Level)
		markup := strings.Repeat("#", node.Level)
		f.emit(token.Token{Kind: token.KindHeadingOpen, Tag: tag, Markup: markup})
		f.inline(node)
		f.emit(token.Token{Kind: token.KindHeadingClose, Tag: tag, Markup: markup})

	case *ast.Paragraph, *ast.TextBlock:
		f.emit(token.Token{Kind: token.KindParagraphOpen, Tag: "p"})
		f.inline(node)
		f.emit(token.Token{Kind: token.KindParagraphClose, Tag: "p"})

	case *ast.List:
		info := &token.List{Ordered: node.IsOrdered(), Indent: 2 * depth, Start: node.Start}
		open, closeKind, tag := token.KindBulletListOpen, token.KindBulletListClose, "ul"
		if info.Ordered {
			open, closeKind, tag = token.KindOrderedListOpen, token.KindOrderedListClose, "ol"
		}
		f.emit(token.Token{Kind: open, Tag: tag, Markup: string(node.Marker), List: info})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			f.block(c, depth+1)
		}
		f.emit(token.Token{Kind: closeKind, Tag: tag, Markup: string(node.Marker)})

	case *ast.ListItem:
		info := &token.List{Indent: 2 * (depth - 1)}
		markup := ""
		if l, ok := node.Parent().(*ast.List); ok {
			info.Ordered = l.IsOrdered()
			markup = string(l.Marker)
		}
		f.emit(token.Token{Kind: token.KindListItemOpen, Tag: "li", Markup: markup, List: info})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			f.block(c, depth)
		}
		f.emit(token.Token{Kind: token.KindListItemClose, Tag: "li", Markup: markup})

	case *ast.Blockquote:
		f.emit(token.Token{Kind: token.KindBlockquoteOpen, Tag: "blockquote", Markup: ">"})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			f.block(c, depth)
		}
		f.emit(token.Token{Kind: token.KindBlockquoteClose, Tag: "blockquote", Markup: ">"})

	case *ast.FencedCodeBlock:
		f.emit(token.Token{
			Kind:    token.KindFence,
			Tag:     "code",
			Markup:  "```",
			Content: f.lines(node),
			Fence:   &token.Fence{Lang: string(node.Language(f.src))},
		})

	case *ast.CodeBlock:
		f.emit(token.Token{Kind: token.KindCodeBlock, Tag: "code", Content: f.lines(node)})

	case *ast.HTMLBlock:
		content := f.lines(node)
		if node.HasClosure() {
			content += string(node.ClosureLine.Value(f.src))
		}
		f.emit(token.Token{Kind: token.KindHTMLBlock, Content: content})

	case *ast.ThematicBreak:
		f.emit(token.Token{Kind: token.KindHR, Tag: "hr", Markup: "---"})

	case *east.Table:
		f.table(node)

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			f.block(c, depth)
		}
	}
}

func (f *flattener) table(n *east.Table) {
	aligns := make([]token.Align, len(n.Alignments))
	for i, a := range n.Alignments {
		aligns[i] = tableAlign(a)
	}
	f.emit(token.Token{Kind: token.KindTableOpen, Tag: "table", Table: &token.Table{Align: aligns}})

	inBody := false
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *east.TableHeader:
			f.emit(token.Token{Kind: token.KindTheadOpen, Tag: "thead"})
			f.row(row, token.KindThOpen, token.KindThClose, "th")
			f.emit(token.Token{Kind: token.KindTheadClose, Tag: "thead"})
		case *east.TableRow:
			if !inBody {
				f.emit(token.Token{Kind: token.KindTbodyOpen, Tag: "tbody"})
				inBody = true
			}
			f.row(row, token.KindTdOpen, token.KindTdClose, "td")
		}
	}
	if inBody {
		f.emit(token.Token{Kind: token.KindTbodyClose, Tag: "tbody"})
	}
	f.emit(token.Token{Kind: token.KindTableClose, Tag: "table"})
}

func (f *flattener) row(n ast.Node, open, closeKind token.Kind, tag string) {
	f.emit(token.Token{Kind: token.KindTrOpen, Tag: "tr"})
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		cell, ok := c.(*east.TableCell)
		if !ok {
			continue
		}
		f.emit(token.Token{Kind: open, Tag: tag, Cell: &token.Cell{Align: tableAlign(cell.Alignment)}})
		children := f.inlines(cell)
		f.emit(token.Inline(f.plain(cell), children...))
		f.emit(token.Token{Kind: closeKind, Tag: tag})
	}
	f.emit(token.Token{Kind: token.KindTrClose, Tag: "tr"})
}

func tableAlign(a east.Alignment) token.Align {
	switch a {
	case east.AlignLeft:
		return token.AlignLeft
	case east.AlignCenter:
		return token.AlignCenter
	case east.AlignRight:
		return token.AlignRight
	}
	return token.AlignNone
}

// inline emits the inline container of a text-bearing block. Its content
// is the block's raw source.
func (f *flattener) inline(n ast.Node) {
	content := strings.TrimRight(f.lines(n), " \t\r\n")
	f.emit(token.Inline(content, f.inlines(n)...))
}

func (f *flattener) inlines(parent ast.Node) []token.Token {
	var out []token.Token
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		out = f.inlineNode(c, out)
	}
	return out
}

func (f *flattener) inlineNode(n ast.Node, out []token.Token) []token.Token {
	switch node := n.(type) {
	case *ast.Text:
		if v := node.Segment.Value(f.src); len(v) > 0 {
			out = append(out, token.Text(string(v)))
		}
		switch {
		case node.HardLineBreak():
			out = append(out, token.Token{Kind: token.KindHardbreak, Tag: "br"})
		case node.SoftLineBreak():
			out = append(out, token.Token{Kind: token.KindSoftbreak})
		}

	case *ast.String:
		if len(node.Value) > 0 {
			out = append(out, token.Text(string(node.Value)))
		}

	case *ast.Emphasis:
		open, closeKind, markup := token.KindEmOpen, token.KindEmClose, "*"
		if node.Level >= 2 {
			open, closeKind, markup = token.KindStrongOpen, token.KindStrongClose, "**"
		}
		out = append(out, token.Token{Kind: open, Markup: markup})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = f.inlineNode(c, out)
		}
		out = append(out, token.Token{Kind: closeKind, Markup: markup})

	case *east.Strikethrough:
		out = append(out, token.Token{Kind: token.KindStrikeOpen, Tag: "s", Markup: "~~"})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = f.inlineNode(c, out)
		}
		out = append(out, token.Token{Kind: token.KindStrikeClose, Tag: "s", Markup: "~~"})

	case *ast.CodeSpan:
		out = append(out, token.Token{Kind: token.KindCodeInline, Tag: "code", Markup: "`", Content: f.plain(node)})

	case *ast.Link:
		out = append(out, token.Token{
			Kind: token.KindLinkOpen,
			Tag:  "a",
			Link: &token.Link{Href: string(node.Destination), Title: string(node.Title)},
		})
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = f.inlineNode(c, out)
		}
		out = append(out, token.Token{Kind: token.KindLinkClose, Tag: "a"})

	case *ast.AutoLink:
		out = append(out,
			token.Token{Kind: token.KindLinkOpen, Tag: "a", Link: &token.Link{Href: string(node.URL(f.src))}},
			token.Text(string(node.Label(f.src))),
			token.Token{Kind: token.KindLinkClose, Tag: "a"},
		)

	case *ast.Image:
		out = append(out, token.Token{
			Kind:  token.KindImage,
			Tag:   "img",
			Image: &token.Image{Src: string(node.Destination), Alt: f.plain(node), Title: string(node.Title)},
		})

	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			buf.Write(seg.Value(f.src))
		}
		out = append(out, token.Token{Kind: token.KindHTMLInline, Content: buf.String()})

	case *east.TaskCheckBox:
		marker := "[ ] "
		if node.IsChecked {
			marker = "[x] "
		}
		out = append(out, token.Text(marker))

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = f.inlineNode(c, out)
		}
	}
	return out
}

// lines returns the raw source lines of a block node.
func (f *flattener) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(f.src))
	}
	return buf.String()
}

// plain returns the text of n's inline descendants without markup.
func (f *flattener) plain(n ast.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(f.src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(f.plain(c))
		}
	}
	return buf.String()
}
