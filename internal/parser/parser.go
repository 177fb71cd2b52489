// Package parser turns source documents into the token stream consumed by
// the engine, renders raw HTML fragments, and reads back .docx output.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/wangqiqi/md2docx/internal/token"
)

// Parser converts raw document bytes into a token stream.
type Parser interface {
	Parse(r io.Reader, filename string) ([]token.Token, error)
}

// SupportedExtensions lists file extensions this tool can convert.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".json":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown", ".txt":
		return &MarkdownParser{}, nil
	case ".json":
		return &TokenStreamParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// TokenStreamParser reads a token stream produced elsewhere and stored as
// a JSON array.
type TokenStreamParser struct{}

func (p *TokenStreamParser) Parse(r io.Reader, filename string) ([]token.Token, error) {
	var toks []token.Token
	if err := json.NewDecoder(r).Decode(&toks); err != nil {
		return nil, fmt.Errorf("decode token stream %s: %w", filename, err)
	}
	if toks == nil {
		return nil, errors.New("token stream is null")
	}
	return toks, nil
}
