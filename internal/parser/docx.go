package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// OutlineEntry describes one paragraph of a .docx body.
type OutlineEntry struct {
	Style string `json:"style,omitempty"`
	Level int    `json:"level,omitempty"` // heading level, 0 for body text
	Text  string `json:"text"`
}

// ReadOutline lists the paragraphs of a .docx file in body order. Tables
// and empty paragraphs are skipped.
func ReadOutline(r io.Reader) ([]OutlineEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var out []OutlineEntry
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		out = append(out, OutlineEntry{
			Style: docxStyle(para),
			Level: docxHeadingLevel(para),
			Text:  text,
		})
	}
	return out, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(para *docx.Paragraph) int {
	style := strings.ToLower(strings.ReplaceAll(docxStyle(para), " ", ""))
	if len(style) == len("heading1") && strings.HasPrefix(style, "heading") {
		if d := style[len(style)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			runText(&buf, c)
		case *docx.Hyperlink:
			runText(&buf, &c.Run)
		}
	}
	return strings.TrimSpace(buf.String())
}

func runText(buf *strings.Builder, run *docx.Run) {
	for _, rc := range run.Children {
		if t, ok := rc.(*docx.Text); ok {
			buf.WriteString(t.Text)
		}
	}
}
