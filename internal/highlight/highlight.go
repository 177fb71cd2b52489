// Package highlight colours code blocks with chroma.
package highlight

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/wangqiqi/md2docx/internal/docmodel"
)

// DefaultStyle suits the white page of a printed document.
const DefaultStyle = "github"

// Highlighter splits code into lines of coloured runs. It is safe for
// concurrent use.
type Highlighter struct {
	style *chroma.Style

	mu    sync.RWMutex
	cache map[string]chroma.Lexer
}

// New returns a Highlighter using the named chroma style, falling back to
// the chroma default for unknown names.
func New(styleName string) *Highlighter {
	if styleName == "" {
		styleName = DefaultStyle
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{style: style, cache: make(map[string]chroma.Lexer)}
}

// Highlight tokenises code with the lexer for lang. Without a known
// language the lexer is guessed from the content.
func (h *Highlighter) Highlight(lang, code string) ([][]docmodel.Run, error) {
	iter, err := h.lexer(lang, code).Tokenise(nil, code)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", lang, err)
	}

	lines := [][]docmodel.Run{nil}
	for _, tok := range iter.Tokens() {
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, nil)
			}
			if part == "" {
				continue
			}
			n := len(lines) - 1
			lines[n] = append(lines[n], h.run(tok.Type, part))
		}
	}
	// A trailing newline leaves an empty last line.
	if n := len(lines); n > 1 && lines[n-1] == nil && strings.HasSuffix(code, "\n") {
		lines = lines[:n-1]
	}
	return lines, nil
}

func (h *Highlighter) run(tt chroma.TokenType, text string) docmodel.Run {
	entry := h.style.Get(tt)
	r := docmodel.Run{
		Text:   text,
		Code:   true,
		Bold:   entry.Bold == chroma.Yes,
		Italic: entry.Italic == chroma.Yes,
	}
	if entry.Colour.IsSet() {
		r.Color = fmt.Sprintf("%02X%02X%02X", entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue())
	}
	return r
}

func (h *Highlighter) lexer(lang, code string) chroma.Lexer {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang != "" {
		h.mu.RLock()
		l := h.cache[lang]
		h.mu.RUnlock()
		if l != nil {
			return l
		}
		l = lexers.Get(lang)
		if l == nil {
			l = lexers.Match("file." + lang)
		}
		if l != nil {
			l = chroma.Coalesce(l)
			h.mu.Lock()
			h.cache[lang] = l
			h.mu.Unlock()
			return l
		}
	}
	if l := lexers.Analyse(code); l != nil {
		return chroma.Coalesce(l)
	}
	return lexers.Fallback
}
