package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Conversion holds the settings that shape a converted document. It is
// read from YAML; absent fields keep their defaults.
type Conversion struct {
	Numbering NumberingSettings `yaml:"numbering"`

	// QuoteIndent is the extra left indent per blockquote level, in inches.
	QuoteIndent float64 `yaml:"quote_indent"`

	// TextMarkers writes literal list markers into list paragraphs.
	TextMarkers bool `yaml:"text_markers"`

	// RawHTML renders HTML blocks instead of dropping them.
	RawHTML bool `yaml:"raw_html"`

	Highlight HighlightSettings `yaml:"highlight"`
	Images    ImageSettings     `yaml:"images"`
}

type NumberingSettings struct {
	NestedAlwaysRestart  bool `yaml:"nested_always_restart"`
	ContinueAcrossBlocks bool `yaml:"continue_across_blocks"`
}

type HighlightSettings struct {
	Enabled bool   `yaml:"enabled"`
	Style   string `yaml:"style"`
}

type ImageSettings struct {
	Enabled     bool          `yaml:"enabled"`
	AllowRemote bool          `yaml:"allow_remote"`
	AllowLocal  bool          `yaml:"allow_local"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxDownload int64         `yaml:"max_download_bytes"`
	MaxEmbed    int64         `yaml:"max_embed_bytes"`
}

// DefaultConversion returns the settings used when no file is given.
func DefaultConversion() Conversion {
	return Conversion{
		QuoteIndent: 0.5,
		TextMarkers: true,
		RawHTML:     true,
		Highlight:   HighlightSettings{Enabled: true, Style: "github"},
		Images: ImageSettings{
			Enabled:     true,
			AllowRemote: true,
			AllowLocal:  true,
			Timeout:     15 * time.Second,
			MaxDownload: 20 << 20,
			MaxEmbed:    2 << 20,
		},
	}
}

// LoadConversion reads settings from path over the defaults. An empty path
// returns the defaults.
func LoadConversion(path string) (Conversion, error) {
	cfg := DefaultConversion()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read conversion config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse conversion config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("conversion config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Conversion) Validate() error {
	if c.QuoteIndent < 0 || c.QuoteIndent > 3 {
		return fmt.Errorf("quote_indent must be between 0 and 3 inches, got %v", c.QuoteIndent)
	}
	if c.Images.Timeout < 0 {
		return fmt.Errorf("images.timeout must not be negative")
	}
	if c.Images.MaxDownload < 0 || c.Images.MaxEmbed < 0 {
		return fmt.Errorf("image byte limits must not be negative")
	}
	return nil
}
