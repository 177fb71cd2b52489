package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/parser"
	"github.com/wangqiqi/md2docx/internal/token"
)

func concat(parts ...[]token.Token) []token.Token {
	out := []token.Token{}
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func item(ordered bool, indent int, text string) []token.Token {
	return append(token.Item(ordered, indent, token.Text(text)), token.Close(token.KindListItemClose))
}

func list(ordered bool, items ...[]token.Token) []token.Token {
	open, closeKind := token.KindBulletListOpen, token.KindBulletListClose
	if ordered {
		open, closeKind = token.KindOrderedListOpen, token.KindOrderedListClose
	}
	out := []token.Token{token.Open(open)}
	out = append(out, concat(items...)...)
	return append(out, token.Close(closeKind))
}

func convert(t *testing.T, opts Options, toks []token.Token) (*docmodel.Document, Report) {
	t.Helper()
	doc, rep, err := New(opts).Convert(context.Background(), toks)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc, rep
}

func convertMarkdown(t *testing.T, opts Options, src string) (*docmodel.Document, Report) {
	t.Helper()
	p := &parser.MarkdownParser{}
	return convert(t, opts, p.Tokenize([]byte(src)))
}

func numbers(paras []*docmodel.Paragraph) []int {
	var out []int
	for _, p := range paras {
		if p.List != nil {
			out = append(out, p.List.Number)
		}
	}
	return out
}

func TestConvert_NilTokens(t *testing.T) {
	doc, _, err := New(Options{}).Convert(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilTokens)
	require.Nil(t, doc)
}

func TestConvert_EmptyStream(t *testing.T) {
	doc, rep := convert(t, Options{}, []token.Token{})
	require.Empty(t, doc.Blocks)
	require.Zero(t, rep.Issues())
}

func TestConvert_BlockOrder(t *testing.T) {
	toks := concat(
		token.Heading(1, token.Text("Title")),
		token.Paragraph(token.Text("body")),
		[]token.Token{{Kind: token.KindHR}},
		token.Heading(2, token.Text("Next")),
	)
	doc, _ := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Len(t, paras, 4)
	require.Equal(t, "Heading 1", paras[0].Style)
	require.Equal(t, "Title", paras[0].Text())
	require.Equal(t, "body", paras[1].Text())
	require.True(t, paras[2].Rule)
	require.Equal(t, docmodel.AlignCenter, paras[2].Alignment)
	require.Equal(t, "Heading 2", paras[3].Style)
}

func TestConvert_MalformedUnitsBecomePlaceholders(t *testing.T) {
	toks := concat(
		[]token.Token{{Kind: token.KindHeadingOpen, Tag: "h1"}, {Kind: token.KindHeadingClose, Tag: "h1"}},
		token.Heading(7, token.Text("too deep")),
		token.Paragraph(token.Text("still here")),
	)
	doc, rep := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Len(t, paras, 3)
	require.True(t, paras[0].Placeholder)
	require.True(t, paras[1].Placeholder)
	require.Equal(t, "still here", paras[2].Text())

	require.Len(t, rep.Malformed, 2)
	require.ErrorIs(t, rep.Malformed[0], ErrMissingContent)
	require.ErrorIs(t, rep.Malformed[1], ErrUnsupportedHeading)
	require.Equal(t, token.KindHeadingOpen, rep.Malformed[1].Kind)
	require.Equal(t, 2, rep.Malformed[1].Index)

	var uerr *UnitError
	require.True(t, errors.As(rep.Malformed[0], &uerr))
}

func TestConvert_UnknownKindsIgnored(t *testing.T) {
	toks := concat(
		[]token.Token{{Kind: token.KindInvalid}, {Kind: token.Kind(200)}, token.Close(token.KindParagraphClose)},
		token.Paragraph(token.Text("ok")),
	)
	doc, rep := convert(t, Options{}, toks)
	require.Len(t, doc.Blocks, 1)
	require.Zero(t, rep.Issues())
}

func TestList_UnorderedNeverNumbered(t *testing.T) {
	toks := list(false,
		item(false, 0, "a"),
		item(false, 2, "b"),
		item(false, 4, "c"),
		item(false, 0, "d"),
	)
	doc, _ := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Len(t, paras, 4)
	for _, p := range paras {
		require.Nil(t, p.Numbering, p.Text())
		require.Zero(t, p.List.Number)
	}
	require.Equal(t, "List Bullet", paras[0].Style)
	require.Equal(t, "List Bullet 2", paras[1].Style)
	require.Equal(t, 3, paras[2].List.Level)
}

func TestList_OrderedConsecutive(t *testing.T) {
	toks := list(true, item(true, 0, "a"), item(true, 0, "b"), item(true, 0, "c"))
	doc, _ := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Equal(t, []int{1, 2, 3}, numbers(paras))
	for _, p := range paras {
		require.NotNil(t, p.Numbering)
		require.Equal(t, paras[0].Numbering.ID, p.Numbering.ID)
		require.Zero(t, p.Numbering.Level)
		require.Equal(t, "List Number", p.Style)
	}
}

func TestList_HeadingRestarts(t *testing.T) {
	toks := concat(
		list(true, item(true, 0, "a"), item(true, 0, "b")),
		token.Heading(2, token.Text("break")),
		list(true, item(true, 0, "c")),
	)
	doc, _ := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Equal(t, []int{1, 2, 1}, numbers(paras))
	require.NotEqual(t, paras[0].Numbering.ID, paras[3].Numbering.ID)
}

func TestList_BlockBetweenLists(t *testing.T) {
	toks := concat(
		list(true, item(true, 0, "a"), item(true, 0, "b")),
		token.Paragraph(token.Text("interlude")),
		list(true, item(true, 0, "c")),
	)

	doc, _ := convert(t, Options{}, toks)
	require.Equal(t, []int{1, 2, 1}, numbers(doc.Paragraphs()))

	doc, _ = convert(t, Options{Numbering: NumberingPolicy{ContinueAcrossBlocks: true}}, toks)
	require.Equal(t, []int{1, 2, 3}, numbers(doc.Paragraphs()))
}

func TestList_KindChangeRestarts(t *testing.T) {
	toks := concat(
		list(true, item(true, 0, "a"), item(true, 0, "b")),
		list(false, item(false, 0, "x")),
		list(true, item(true, 0, "c")),
	)
	doc, _ := convert(t, Options{}, toks)
	require.Equal(t, []int{1, 2, 0, 1}, numbers(doc.Paragraphs()))
}

func TestList_NestedStartsAtOne(t *testing.T) {
	toks := list(true,
		item(true, 0, "1"),
		item(true, 0, "2"),
		item(true, 0, "3"),
		item(true, 2, "3.1"),
		item(true, 2, "3.2"),
		item(true, 0, "4"),
		item(true, 2, "4.1"),
	)

	doc, _ := convert(t, Options{}, toks)
	paras := doc.Paragraphs()
	require.Equal(t, []int{1, 2, 3, 1, 2, 4, 1}, numbers(paras))
	require.Equal(t, 1, paras[3].Numbering.Level)
	require.NotEqual(t, paras[3].Numbering.ID, paras[6].Numbering.ID)
	require.Equal(t, paras[0].Numbering.ID, paras[5].Numbering.ID)

	doc, _ = convert(t, Options{Numbering: NumberingPolicy{NestedAlwaysRestart: true}}, toks)
	require.Equal(t, []int{1, 2, 3, 1, 1, 4, 1}, numbers(doc.Paragraphs()))
}

func TestList_CustomRestart(t *testing.T) {
	var seen []ListState
	never := func(st ListState) bool {
		seen = append(seen, st)
		return false
	}
	toks := concat(
		list(true, item(true, 0, "a")),
		token.Heading(1, token.Text("h")),
		list(true, item(true, 0, "b")),
	)
	doc, _ := convert(t, Options{Restart: never}, toks)

	require.Equal(t, []int{1, 2}, numbers(doc.Paragraphs()))
	require.Len(t, seen, 2)
	require.True(t, seen[1].AfterHeading)
	require.Len(t, seen[1].Frames, 1)
}

func TestList_Indentation(t *testing.T) {
	toks := list(false, item(false, 0, "a"), item(false, 2, "b"), item(false, 4, "c"))
	doc, _ := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	for i, p := range paras {
		require.Equal(t, docmodel.QuarterInch*docmodel.Length(i), p.Indent.Left)
		require.Equal(t, -docmodel.QuarterInch, p.Indent.FirstLine)
	}
}

func TestList_NumberingFailureIsNonFatal(t *testing.T) {
	toks := list(true, item(true, 18, "too deep"))
	doc, rep := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Len(t, paras, 1)
	require.Nil(t, paras[0].Numbering)
	require.Equal(t, "too deep", paras[0].Text())
	require.Equal(t, 1, rep.NumberingFailures)
	require.Empty(t, rep.Malformed)
}

func TestList_HugeIndentStaysBounded(t *testing.T) {
	toks := []token.Token{
		{Kind: token.KindListItemOpen, List: &token.List{Ordered: true, Indent: 100_000_000}},
		token.Inline("deep", token.Text("deep")),
		token.Close(token.KindListItemClose),
	}
	doc, rep := convert(t, Options{}, toks)

	paras := doc.Paragraphs()
	require.Len(t, paras, 1)
	require.Equal(t, "deep", paras[0].Text())
	require.Nil(t, paras[0].Numbering)
	require.Equal(t, 1, rep.NumberingFailures)

	var m listMachine
	reg := &docmodel.NumberingRegistry{}
	pl := m.place(m.state(50_000_001, true), false, reg)
	require.Equal(t, 1, pl.Number)
	require.Len(t, m.counters, 1)
}

func TestList_EmptyItem(t *testing.T) {
	toks := list(false,
		[]token.Token{{Kind: token.KindListItemOpen, List: &token.List{}}, token.Close(token.KindListItemClose)},
	)
	doc, rep := convert(t, Options{}, toks)
	require.Len(t, doc.Paragraphs(), 1)
	require.Empty(t, doc.Paragraphs()[0].Runs)
	require.Zero(t, rep.Issues())
}

func TestList_ContinuationParagraph(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "- first\n\n  more text\n- second\n")

	paras := doc.Paragraphs()
	require.Len(t, paras, 3)
	require.Equal(t, "more text", paras[1].Text())
	require.Nil(t, paras[1].List)
	require.Equal(t, paras[0].Indent.Left, paras[1].Indent.Left)
}

func TestInline_StyleAttribution(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "A**B**C\n")

	require.Equal(t, []docmodel.Run{
		{Text: "A"},
		{Text: "B", Bold: true},
		{Text: "C"},
	}, doc.Paragraphs()[0].Runs)
}

func TestInline_OverlappingToggles(t *testing.T) {
	toks := token.Paragraph(
		token.Open(token.KindStrongOpen),
		token.Text("a"),
		token.Open(token.KindEmOpen),
		token.Text("b"),
		token.Close(token.KindStrongClose),
		token.Text("c"),
		token.Close(token.KindEmClose),
		token.Open(token.KindStrikeOpen),
		token.Close(token.KindStrikeClose),
	)
	doc, _ := convert(t, Options{}, toks)

	require.Equal(t, []docmodel.Run{
		{Text: "a", Bold: true},
		{Text: "b", Bold: true, Italic: true},
		{Text: "c", Italic: true},
	}, doc.Paragraphs()[0].Runs)
}

func TestInline_BreaksAndCode(t *testing.T) {
	toks := token.Paragraph(
		token.Text("one  "),
		token.Token{Kind: token.KindSoftbreak},
		token.Text("two"),
		token.Token{Kind: token.KindHardbreak},
		token.Open(token.KindStrongOpen),
		token.Token{Kind: token.KindCodeInline, Content: "x()"},
		token.Close(token.KindStrongClose),
		token.Token{Kind: token.KindHTMLInline, Content: "<br/>"},
		token.Token{Kind: token.KindLinkOpen, Link: &token.Link{Href: "https://go.dev"}},
		token.Text("go"),
		token.Close(token.KindLinkClose),
	)
	doc, _ := convert(t, Options{}, toks)

	require.Equal(t, []docmodel.Run{
		{Text: "one two"},
		{Break: true},
		{Text: "x()", Code: true},
		{Break: true},
		{Text: "go", Hyperlink: "https://go.dev"},
	}, doc.Paragraphs()[0].Runs)
}

func TestInline_HTMLFormattingTags(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "a <b>x</b> c <em>y</em> <code>z()</code> <span>w</span>\n")

	require.Equal(t, []docmodel.Run{
		{Text: "a "},
		{Text: "x", Bold: true},
		{Text: " c "},
		{Text: "y", Italic: true},
		{Text: " "},
		{Text: "z()", Code: true},
		{Text: " w"},
	}, doc.Paragraphs()[0].Runs)
}

func TestInline_HTMLTagCaseAndAttributes(t *testing.T) {
	toks := token.Paragraph(
		token.Token{Kind: token.KindHTMLInline, Content: `<STRONG class="k">`},
		token.Text("a"),
		token.Token{Kind: token.KindHTMLInline, Content: "<del>"},
		token.Text("b"),
		token.Token{Kind: token.KindHTMLInline, Content: "</STRONG>"},
		token.Token{Kind: token.KindHTMLInline, Content: "</del>"},
		token.Token{Kind: token.KindHTMLInline, Content: "<!-- note -->"},
		token.Text("c"),
	)
	doc, _ := convert(t, Options{}, toks)

	require.Equal(t, []docmodel.Run{
		{Text: "a", Bold: true},
		{Text: "b", Bold: true, Strike: true},
		{Text: "c"},
	}, doc.Paragraphs()[0].Runs)
}

func TestTable_Normalization(t *testing.T) {
	cell := func(k token.Kind, text string) []token.Token {
		return []token.Token{{Kind: k}, token.Inline(text, token.Text(text)), {Kind: k + 1}}
	}
	row := func(cells ...[]token.Token) []token.Token {
		return concat([]token.Token{token.Open(token.KindTrOpen)}, concat(cells...), []token.Token{token.Close(token.KindTrClose)})
	}
	toks := concat(
		[]token.Token{{Kind: token.KindTableOpen, Table: &token.Table{Align: []token.Align{token.AlignLeft, token.AlignCenter, token.AlignRight}}}},
		[]token.Token{token.Open(token.KindTheadOpen)},
		row(cell(token.KindThOpen, "A"), cell(token.KindThOpen, "B"), cell(token.KindThOpen, "C")),
		[]token.Token{token.Close(token.KindTheadClose), token.Open(token.KindTbodyOpen)},
		row(cell(token.KindTdOpen, "1")),
		row(cell(token.KindTdOpen, "1"), cell(token.KindTdOpen, "2"), cell(token.KindTdOpen, "3"), cell(token.KindTdOpen, "4")),
		[]token.Token{token.Close(token.KindTbodyClose), token.Close(token.KindTableClose)},
		token.Paragraph(token.Text("after")),
	)
	doc, rep := convert(t, Options{}, toks)
	require.Zero(t, rep.Issues())

	tables := doc.Tables()
	require.Len(t, tables, 1)
	tbl := tables[0]
	require.Equal(t, 3, tbl.Columns())
	require.Equal(t, []docmodel.Alignment{docmodel.AlignLeft, docmodel.AlignCenter, docmodel.AlignRight}, tbl.Align)
	require.Len(t, tbl.Rows, 3)
	require.True(t, tbl.Rows[0].Header)
	for _, r := range tbl.Rows {
		require.Len(t, r.Cells, 3)
	}
	require.Equal(t, "1", tbl.Rows[1].Cells[0].Text())
	require.Empty(t, tbl.Rows[1].Cells[2].Runs)
	require.Equal(t, "3", tbl.Rows[2].Cells[2].Text())

	require.IsType(t, &docmodel.Paragraph{}, doc.Blocks[1])
}

func TestTable_HeaderOnly(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "| A | B |\n|---|:-:|\n")

	tbl := doc.Tables()[0]
	require.Len(t, tbl.Rows, 1)
	require.Equal(t, []docmodel.Alignment{docmodel.AlignDefault, docmodel.AlignCenter}, tbl.Align)
}

func TestTable_Malformed(t *testing.T) {
	toks := concat(
		[]token.Token{token.Open(token.KindTableOpen), token.Open(token.KindTrOpen)},
		token.Paragraph(token.Text("orphan")),
	)
	doc, rep := convert(t, Options{}, toks)

	require.Len(t, rep.Malformed, 1)
	require.ErrorIs(t, rep.Malformed[0], ErrUnterminated)
	paras := doc.Paragraphs()
	require.True(t, paras[0].Placeholder)
	require.Equal(t, "orphan", paras[len(paras)-1].Text())

	doc, rep = convert(t, Options{}, []token.Token{token.Open(token.KindTableOpen), token.Close(token.KindTableClose)})
	require.ErrorIs(t, rep.Malformed[0], ErrEmptyTable)
	require.Empty(t, doc.Tables())
}

func TestQuote_DepthClampedAtZero(t *testing.T) {
	toks := concat(
		[]token.Token{token.Close(token.KindBlockquoteClose)},
		[]token.Token{token.Open(token.KindBlockquoteOpen), token.Open(token.KindBlockquoteOpen)},
		token.Paragraph(token.Text("two")),
		[]token.Token{token.Close(token.KindBlockquoteClose)},
		token.Paragraph(token.Text("one")),
		[]token.Token{token.Close(token.KindBlockquoteClose), token.Close(token.KindBlockquoteClose)},
		token.Paragraph(token.Text("zero")),
		[]token.Token{token.Open(token.KindBlockquoteOpen)},
		token.Paragraph(token.Text("one again")),
	)
	doc, _ := convert(t, Options{QuoteIndent: 100}, toks)

	paras := doc.Paragraphs()
	require.Equal(t, []int{2, 1, 0, 1}, []int{paras[0].QuoteDepth, paras[1].QuoteDepth, paras[2].QuoteDepth, paras[3].QuoteDepth})
	require.Equal(t, docmodel.Length(200), paras[0].Indent.Left)
	require.Equal(t, "Quote", paras[0].Style)
	require.Equal(t, "", paras[2].Style)
}

func TestQuote_ListInsideQuote(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "> 1. a\n> 2. b\n")

	paras := doc.Paragraphs()
	require.Len(t, paras, 2)
	require.Equal(t, []int{1, 2}, numbers(paras))
	require.Equal(t, 1, paras[1].QuoteDepth)
	require.Equal(t, "List Number", paras[1].Style)
	require.Equal(t, docmodel.Inch/2, paras[1].Indent.Left)
}

func TestTask_EndToEnd(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "- [ ] a\n- [x] b\n")

	paras := doc.Paragraphs()
	require.Len(t, paras, 2)
	require.Equal(t, glyphUnchecked+"a", paras[0].Text())
	require.Equal(t, glyphChecked+"b", paras[1].Text())
	for i, p := range paras {
		require.Nil(t, p.Numbering)
		require.Nil(t, p.List)
		require.NotNil(t, p.Task)
		require.Equal(t, i == 1, p.Task.Checked)
		require.Equal(t, listIndent(1), p.Indent)
	}
}

func TestTask_MarkerPatterns(t *testing.T) {
	tests := []struct {
		name     string
		children []token.Token
		checked  bool
		rest     string
		ok       bool
	}{
		{"unchecked", []token.Token{token.Text("[ ] todo")}, false, "todo", true},
		{"upper x", []token.Token{token.Text("[X] done")}, true, "done", true},
		{"split text", []token.Token{token.Text("["), token.Text("x] "), token.Text("done")}, true, "done", true},
		{"marker only", []token.Token{token.Text("[ ]")}, false, "", true},
		{"not a task", []token.Token{token.Text("[y] no")}, false, "", false},
		{"marker after style", []token.Token{token.Open(token.KindStrongOpen), token.Text("[ ] no")}, false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checked, rest, ok := matchTask(tt.children)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			require.Equal(t, tt.checked, checked)
			var got strings.Builder
			for _, r := range rest {
				got.WriteString(r.Content)
			}
			require.Equal(t, tt.rest, got.String())
		})
	}
}

func TestTask_NestedUsesLevelIndent(t *testing.T) {
	toks := list(false, item(false, 0, "parent"), item(false, 2, "[x] child"))
	doc, _ := convert(t, Options{}, toks)

	child := doc.Paragraphs()[1]
	require.NotNil(t, child.Task)
	require.Equal(t, listIndent(2), child.Indent)
}

func TestEndToEnd_NestedOrdered(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "1. a\n   1. b\n      1. c\n")

	paras := doc.Paragraphs()
	require.Len(t, paras, 3)
	require.Equal(t, []int{1, 1, 1}, numbers(paras))
	for i := 1; i < len(paras); i++ {
		require.Equal(t, paras[i-1].Indent.Left+docmodel.QuarterInch, paras[i].Indent.Left)
		require.Equal(t, i, paras[i].Numbering.Level)
	}
	ids := map[int]bool{}
	for _, p := range paras {
		ids[p.Numbering.ID] = true
	}
	require.Len(t, ids, 3)
}

func TestEndToEnd_Table(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{}, "| A | B |\n|---|---|\n| 1 | 2 |\n| 3 | 4 |\n")

	tables := doc.Tables()
	require.Len(t, tables, 1)
	require.Len(t, tables[0].Rows, 3)
	for _, r := range tables[0].Rows {
		require.Len(t, r.Cells, 2)
		for _, c := range r.Cells {
			require.NotEmpty(t, c.Text())
		}
	}
	require.Equal(t, "A", tables[0].Rows[0].Cells[0].Text())
	require.Equal(t, "4", tables[0].Rows[2].Cells[1].Text())
}

const richDoc = `# Report

Intro with **bold**, *italic*, ~~gone~~ and ` + "`code`" + `.

1. first
2. second
   - nested bullet
   1. nested number
3. third

> quoted text
>
> > deeper

- [ ] open task
- [x] closed task

| Name | Qty |
|:-----|----:|
| a | 1 |

![logo](logo.png)

---
`

func TestConvert_Deterministic(t *testing.T) {
	p := &parser.MarkdownParser{}
	toks := p.Tokenize([]byte(richDoc))

	a, ra, err := New(Options{}).Convert(context.Background(), toks)
	require.NoError(t, err)
	b, rb, err := New(Options{}).Convert(context.Background(), toks)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, ra, rb)
}

func TestConvert_SharedEngineConcurrent(t *testing.T) {
	p := &parser.MarkdownParser{}
	toks := p.Tokenize([]byte(richDoc))
	e := New(Options{})
	want, _, err := e.Convert(context.Background(), toks)
	require.NoError(t, err)

	var wg sync.WaitGroup
	docs := make([]*docmodel.Document, 8)
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], _, _ = e.Convert(context.Background(), toks)
		}()
	}
	wg.Wait()
	for _, d := range docs {
		require.Equal(t, want, d)
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, src string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[src]++
	if d, ok := f.data[src]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

func TestImage_MemoizedAndPlaceholder(t *testing.T) {
	fetch := &fakeFetcher{data: map[string][]byte{"ok.png": []byte("PNG")}}
	img := func(src string) token.Token {
		return token.Token{Kind: token.KindImage, Image: &token.Image{Src: src, Alt: "alt " + src}}
	}
	toks := concat(
		token.Paragraph(img("ok.png"), img("missing.png")),
		token.Paragraph(img("ok.png"), img("missing.png")),
	)
	doc, rep := convert(t, Options{Images: fetch}, toks)

	require.Equal(t, map[string]int{"ok.png": 1, "missing.png": 1}, fetch.calls)
	require.Equal(t, 1, rep.ImageFailures)

	runs := doc.Paragraphs()[1].Runs
	require.Len(t, runs, 2)
	require.Equal(t, []byte("PNG"), runs[0].Image.Data)
	require.Nil(t, runs[1].Image.Data)
	require.Equal(t, "alt missing.png", runs[1].Image.Alt)
}

func TestImage_NoFetcher(t *testing.T) {
	toks := token.Paragraph(token.Token{Kind: token.KindImage, Image: &token.Image{Src: "x.png"}})
	doc, rep := convert(t, Options{}, toks)

	require.Equal(t, 1, rep.ImageFailures)
	require.Equal(t, "x.png", doc.Paragraphs()[0].Runs[0].Image.Source)
}

type fakeRaw struct {
	paras []*docmodel.Paragraph
	err   error
	tags  []string
}

func (f *fakeRaw) Render(tag, _ string) ([]*docmodel.Paragraph, error) {
	f.tags = append(f.tags, tag)
	return f.paras, f.err
}

func TestHTMLBlock_Fallback(t *testing.T) {
	toks := concat(
		[]token.Token{{Kind: token.KindHTMLBlock, Content: "<DIV class=x>hi</DIV>"}},
		token.Paragraph(token.Text("after")),
	)

	raw := &fakeRaw{paras: []*docmodel.Paragraph{{Runs: []docmodel.Run{{Text: "hi"}}}, nil}}
	doc, rep := convert(t, Options{Raw: raw}, toks)
	require.Equal(t, []string{"div"}, raw.tags)
	require.Len(t, doc.Paragraphs(), 2)
	require.Equal(t, "hi", doc.Paragraphs()[0].Text())
	require.Zero(t, rep.Issues())

	raw = &fakeRaw{err: errors.New("bad markup")}
	doc, rep = convert(t, Options{Raw: raw}, toks)
	require.Len(t, doc.Paragraphs(), 1)
	require.Equal(t, 1, rep.SkippedBlocks)

	doc, _ = convert(t, Options{}, toks)
	require.Len(t, doc.Paragraphs(), 1)
}

func TestHTMLBlock_RealRenderer(t *testing.T) {
	doc, _ := convertMarkdown(t, Options{Raw: &parser.HTMLFallback{}}, "<p align=\"center\">Hello <b>there</b></p>\n")

	paras := doc.Paragraphs()
	require.Len(t, paras, 1)
	require.Equal(t, docmodel.AlignCenter, paras[0].Alignment)
	require.Equal(t, "Hello there", paras[0].Text())
}

type fakeHighlighter struct{ err error }

func (f fakeHighlighter) Highlight(_, code string) ([][]docmodel.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out [][]docmodel.Run
	for _, l := range strings.Split(code, "\n") {
		out = append(out, []docmodel.Run{{Text: l, Code: true, Color: "FF0000"}})
	}
	return out, nil
}

func TestCode_Highlighting(t *testing.T) {
	toks := []token.Token{{Kind: token.KindFence, Content: "a\nb\n", Fence: &token.Fence{Lang: "go"}}}

	doc, _ := convert(t, Options{Highlighter: fakeHighlighter{}}, toks)
	p := doc.Paragraphs()[0]
	require.Equal(t, "Code", p.Style)
	require.Equal(t, "a\nb", p.Text())
	require.Equal(t, "FF0000", p.Runs[0].Color)

	doc, _ = convert(t, Options{Highlighter: fakeHighlighter{err: errors.New("no lexer")}}, toks)
	p = doc.Paragraphs()[0]
	require.Equal(t, "a\nb", p.Text())
	require.Empty(t, p.Runs[0].Color)
	require.True(t, p.Runs[0].Code)
}

func TestCode_BlankLinesKept(t *testing.T) {
	toks := []token.Token{{Kind: token.KindCodeBlock, Content: "a\n\nb\n"}}
	doc, _ := convert(t, Options{}, toks)
	require.Equal(t, "a\n\nb", doc.Paragraphs()[0].Text())
}
