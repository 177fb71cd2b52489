// Package docxwriter serialises a document model to .docx.
package docxwriter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/wangqiqi/md2docx/internal/docmodel"
)

const (
	linkColor   = "0563C1"
	mutedColor  = "808080"
	headerShade = "E7E6E6"
	codeFont    = "Consolas"
)

var bullets = []string{"•", "◦", "▪"}

// Options tunes serialisation.
type Options struct {
	// TextMarkers writes a literal "1. " or bullet at the start of list
	// paragraphs. The built-in template has no numbering part, so without
	// markers numbered paragraphs show no number in most viewers.
	TextMarkers bool
	Logger      *slog.Logger
}

// DefaultOptions returns the options used by the command line tool.
func DefaultOptions() Options {
	return Options{TextMarkers: true}
}

// Write serialises doc to w.
func Write(w io.Writer, doc *docmodel.Document, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	f := docx.New().WithDefaultTheme()
	wr := &writer{f: f, opts: opts}
	for _, b := range doc.Blocks {
		switch b := b.(type) {
		case *docmodel.Paragraph:
			wr.paragraph(f.AddParagraph(), b)
		case *docmodel.Table:
			wr.table(b)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

type writer struct {
	f    *docx.Docx
	opts Options
}

// StyleID maps a style name to the identifier stored in the file:
// "Heading 1" becomes "Heading1".
func StyleID(name string) string {
	return strings.ReplaceAll(name, " ", "")
}

func justification(a docmodel.Alignment) string {
	switch a {
	case docmodel.AlignLeft:
		return "left"
	case docmodel.AlignCenter:
		return "center"
	case docmodel.AlignRight:
		return "right"
	}
	return ""
}

func (w *writer) paragraph(p *docx.Paragraph, src *docmodel.Paragraph) {
	if src.Style != "" {
		p.Style(StyleID(src.Style))
	}
	if j := justification(src.Alignment); j != "" {
		p.Justification(j)
	}
	if src.Indent != (docmodel.Indent{}) {
		if p.Properties == nil {
			p.Properties = &docx.ParagraphProperties{}
		}
		ind := &docx.Ind{Left: int(src.Indent.Left)}
		if src.Indent.FirstLine < 0 {
			ind.Hanging = int(-src.Indent.FirstLine)
		} else {
			ind.FirstLine = int(src.Indent.FirstLine)
		}
		p.Properties.Ind = ind
	}
	if src.Numbering != nil {
		p.NumPr(fmt.Sprint(src.Numbering.ID), fmt.Sprint(src.Numbering.Level))
	}

	switch {
	case src.Placeholder:
		return
	case src.Rule:
		p.AddText(strings.Repeat("─", 24)).Color(mutedColor)
		return
	}

	if w.opts.TextMarkers && src.List != nil && src.Task == nil {
		p.AddText(marker(src.List))
	}
	for _, r := range src.Runs {
		w.run(p, r)
	}
}

func marker(l *docmodel.ListInfo) string {
	if l.Ordered {
		return fmt.Sprintf("%d. ", l.Number)
	}
	level := max(l.Level, 1)
	return bullets[(level-1)%len(bullets)] + " "
}

func (w *writer) run(p *docx.Paragraph, src docmodel.Run) {
	switch {
	case src.Break:
		r := p.AddText("")
		r.Children = append(r.Children, &docx.BarterRabbet{})
		return
	case src.Image != nil:
		w.image(p, src.Image)
		return
	case src.Hyperlink != "":
		h := p.AddLink(src.Text, src.Hyperlink)
		style(&h.Run, src)
		h.Run.Color(linkColor).Underline("single")
		return
	}
	style(p.AddText(src.Text), src)
}

func style(r *docx.Run, src docmodel.Run) {
	if src.Code {
		r.Font(codeFont, codeFont, codeFont, "default")
	}
	if src.Bold {
		r.Bold()
	}
	if src.Italic {
		r.Italic()
	}
	if src.Strike {
		r.Strike(true)
	}
	if src.Color != "" {
		r.Color(src.Color)
	}
}

func (w *writer) image(p *docx.Paragraph, img *docmodel.Image) {
	if len(img.Data) > 0 {
		_, err := p.AddInlineDrawing(img.Data)
		if err == nil {
			return
		}
		w.opts.Logger.Warn("image not embedded, using placeholder", "source", img.Source, "error", err)
	}
	label := img.Alt
	if label == "" {
		label = img.Source
	}
	p.AddText("[image: " + label + "]").Italic().Color(mutedColor)
}

func (w *writer) table(src *docmodel.Table) {
	cols := src.Columns()
	if cols == 0 || len(src.Rows) == 0 {
		return
	}
	tbl := w.f.AddTable(len(src.Rows), cols, 0, nil)
	for i, row := range src.Rows {
		for j := 0; j < cols && j < len(row.Cells); j++ {
			cell := tbl.TableRows[i].TableCells[j]
			if row.Header {
				cell.Shade("clear", "auto", headerShade)
			}
			p := cell.AddParagraph()
			if a := justification(src.Align[j]); a != "" {
				p.Justification(a)
			}
			for _, r := range row.Cells[j].Runs {
				if row.Header {
					r.Bold = true
				}
				w.run(p, r)
			}
		}
	}
}
