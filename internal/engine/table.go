package engine

import (
	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

type rowBuf struct {
	header bool
	cells  []docmodel.Cell
	align  []token.Align
}

// table builds a grid from table_open through table_close. Every row is
// padded or truncated to the header's column count.
func (s *session) table(i int) ([]docmodel.Block, int, error) {
	end := -1
	for j := i + 1; j < len(s.toks); j++ {
		if s.toks[j].Kind == token.KindTableClose {
			end = j
			break
		}
	}
	if end < 0 {
		return nil, i + 1, ErrUnterminated
	}

	var (
		rows   []rowBuf
		cur    *rowBuf
		cell   *docmodel.Cell
		inHead bool
	)
	for j := i + 1; j < end; j++ {
		tok := s.toks[j]
		switch tok.Kind {
		case token.KindTheadOpen:
			inHead = true
		case token.KindTheadClose:
			inHead = false
		case token.KindTrOpen:
			cur = &rowBuf{header: inHead}
		case token.KindTrClose:
			if cur != nil {
				rows = append(rows, *cur)
				cur = nil
			}
		case token.KindThOpen, token.KindTdOpen:
			if cur == nil {
				cur = &rowBuf{header: inHead}
			}
			align := token.AlignNone
			if tok.Cell != nil {
				align = tok.Cell.Align
			}
			cur.align = append(cur.align, align)
			cell = &docmodel.Cell{}
		case token.KindInline:
			if cell != nil {
				cell.Runs = s.runs(tok.Children)
			}
		case token.KindThClose, token.KindTdClose:
			if cur != nil && cell != nil {
				cur.cells = append(cur.cells, *cell)
			}
			cell = nil
		}
	}
	if cur != nil {
		rows = append(rows, *cur)
	}
	if len(rows) == 0 || len(rows[0].cells) == 0 {
		return nil, end + 1, ErrEmptyTable
	}

	head := rows[0]
	cols := len(head.cells)
	declared := head.align
	if p := s.toks[i].Table; p != nil && len(p.Align) > 0 {
		declared = p.Align
	}

	t := &docmodel.Table{
		Style: "Table Grid",
		Align: make([]docmodel.Alignment, cols),
		Rows:  make([]docmodel.Row, 0, len(rows)),
	}
	for c := 0; c < cols && c < len(declared); c++ {
		t.Align[c] = alignment(declared[c])
	}
	t.Rows = append(t.Rows, docmodel.Row{Header: true, Cells: head.cells})
	for _, r := range rows[1:] {
		t.Rows = append(t.Rows, docmodel.Row{Cells: normalizeCells(r.cells, cols)})
	}
	return []docmodel.Block{t}, end + 1, nil
}

// normalizeCells pads with empty cells or drops the excess.
func normalizeCells(cells []docmodel.Cell, cols int) []docmodel.Cell {
	out := make([]docmodel.Cell, cols)
	copy(out, cells)
	return out
}

func alignment(a token.Align) docmodel.Alignment {
	switch a {
	case token.AlignLeft:
		return docmodel.AlignLeft
	case token.AlignCenter:
		return docmodel.AlignCenter
	case token.AlignRight:
		return docmodel.AlignRight
	}
	return docmodel.AlignDefault
}
