// Package docmodel is the in-memory word-processing document produced by
// the assembly engine, independent of any on-disk serialization.
package docmodel

import "strings"

// Length is a distance in twips (1/1440 inch).
type Length int

const (
	Twip        Length = 1
	Inch        Length = 1440
	QuarterInch Length = Inch / 4
)

// Inches returns l in inches.
func (l Length) Inches() float64 { return float64(l) / float64(Inch) }

// Alignment is a paragraph or cell justification.
type Alignment uint8

const (
	AlignDefault Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	}
	return ""
}

// Block is a top-level node: *Paragraph or *Table.
type Block interface {
	block()
}

// Indent holds paragraph indentation. A negative FirstLine is a hanging
// indent.
type Indent struct {
	Left      Length
	FirstLine Length
}

// NumberingRef points a paragraph at a numbering definition. Level is
// 0-based.
type NumberingRef struct {
	ID    int
	Level int
}

// ListInfo records the list placement the engine computed for an item.
// Number is the item's position in its numbering sequence (0 for bullets).
type ListInfo struct {
	Level   int
	Ordered bool
	Number  int
}

// TaskInfo marks a task-list paragraph.
type TaskInfo struct {
	Checked bool
}

// Paragraph is an ordered sequence of runs plus paragraph formatting.
type Paragraph struct {
	Style       string
	Alignment   Alignment
	Indent      Indent
	Numbering   *NumberingRef
	List        *ListInfo
	Task        *TaskInfo
	QuoteDepth  int
	Rule        bool
	Placeholder bool
	Runs        []Run
}

func (*Paragraph) block() {}

// Text concatenates the text of all runs.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		if r.Break {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(r.Text)
	}
	return b.String()
}

// SetNumbering attaches ref after checking it against reg. On error the
// paragraph is left unnumbered.
func (p *Paragraph) SetNumbering(ref NumberingRef, reg *NumberingRegistry) error {
	if err := reg.validate(ref); err != nil {
		return err
	}
	p.Numbering = &ref
	return nil
}

// Run is a text fragment with flat character attributes. Adjacent runs are
// never merged.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Strike    bool
	Code      bool
	Hyperlink string
	Color     string
	Break     bool
	Image     *Image
}

// Image is an inline picture. Nil Data marks a placeholder for an image
// that could not be fetched.
type Image struct {
	Source string
	Alt    string
	Data   []byte
}

// Table is a grid whose rows all have len(Align) cells.
type Table struct {
	Style string
	Align []Alignment
	Rows  []Row
}

func (*Table) block() {}

// Columns returns the column count.
func (t *Table) Columns() int { return len(t.Align) }

// Row is one table row. Header rows carry the header style.
type Row struct {
	Header bool
	Cells  []Cell
}

// Cell holds the runs of one table cell.
type Cell struct {
	Runs []Run
}

// Text concatenates the text of the cell's runs.
func (c Cell) Text() string {
	p := Paragraph{Runs: c.Runs}
	return p.Text()
}

// Document is an append-only sequence of blocks plus its numbering
// definitions.
type Document struct {
	Blocks    []Block
	numbering NumberingRegistry
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// AppendParagraph adds p at the end of the document.
func (d *Document) AppendParagraph(p *Paragraph) {
	d.Blocks = append(d.Blocks, p)
}

// AppendTable adds t at the end of the document.
func (d *Document) AppendTable(t *Table) {
	d.Blocks = append(d.Blocks, t)
}

// Numbering returns the document's numbering registry.
func (d *Document) Numbering() *NumberingRegistry {
	return &d.numbering
}

// Paragraphs returns the top-level paragraphs in order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range d.Blocks {
		if p, ok := b.(*Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// Tables returns the tables in order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, b := range d.Blocks {
		if t, ok := b.(*Table); ok {
			out = append(out, t)
		}
	}
	return out
}
