// Package convert wires tokenizer, engine and writer into one call per
// document.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/docxwriter"
	"github.com/wangqiqi/md2docx/internal/engine"
	"github.com/wangqiqi/md2docx/internal/highlight"
	"github.com/wangqiqi/md2docx/internal/imagefetch"
	"github.com/wangqiqi/md2docx/internal/metrics"
	"github.com/wangqiqi/md2docx/internal/parser"
	"github.com/wangqiqi/md2docx/internal/token"
)

var (
	ErrInputNotFound = errors.New("input file not found")
	ErrNotRegular    = errors.New("input is not a regular file")
)

// Result describes one finished conversion.
type Result struct {
	Output   string
	Blocks   int
	Report   engine.Report
	Duration time.Duration
}

// Converter turns Markdown or token streams into .docx. It is safe for
// concurrent use; every call runs its own engine session.
type Converter struct {
	log     *slog.Logger
	metrics metrics.Recorder
	source  string

	engine  engine.Options
	fetcher *imagefetch.Fetcher
	writer  docxwriter.Options
	parser  parser.Parser
}

// Option customises a Converter.
type Option func(*Converter)

// WithMetrics reports conversions to rec under the given source label.
func WithMetrics(rec metrics.Recorder, source string) Option {
	return func(c *Converter) {
		c.metrics = rec
		c.source = source
	}
}

// WithParser forces one tokenizer for every file, regardless of its
// extension.
func WithParser(p parser.Parser) Option {
	return func(c *Converter) { c.parser = p }
}

// New builds a Converter from conversion settings.
func New(cfg config.Conversion, log *slog.Logger, opts ...Option) *Converter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &Converter{
		log:     log,
		metrics: metrics.NoopRecorder{},
		source:  "cli",
		writer:  docxwriter.Options{TextMarkers: cfg.TextMarkers, Logger: log},
		engine: engine.Options{
			Logger: log,
			Numbering: engine.NumberingPolicy{
				NestedAlwaysRestart:  cfg.Numbering.NestedAlwaysRestart,
				ContinueAcrossBlocks: cfg.Numbering.ContinueAcrossBlocks,
			},
			QuoteIndent: docmodel.Length(cfg.QuoteIndent * float64(docmodel.Inch)),
		},
	}
	if cfg.RawHTML {
		c.engine.Raw = &parser.HTMLFallback{}
	}
	if cfg.Highlight.Enabled {
		c.engine.Highlighter = highlight.New(cfg.Highlight.Style)
	}
	if cfg.Images.Enabled {
		c.fetcher = imagefetch.New(imagefetch.Options{
			AllowRemote:  cfg.Images.AllowRemote,
			NoLocalFiles: !cfg.Images.AllowLocal,
			Timeout:      cfg.Images.Timeout,
			MaxDownload:  cfg.Images.MaxDownload,
			MaxEmbed:     cfg.Images.MaxEmbed,
			Logger:       log,
		})
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// countingFetcher reports every fetch to the metrics recorder.
type countingFetcher struct {
	f   *imagefetch.Fetcher
	rec metrics.Recorder
}

func (c countingFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	data, err := c.f.Fetch(ctx, src)
	c.rec.IncImageFetch(err == nil)
	return data, err
}

func (c *Converter) engineFor(baseDir string) *engine.Engine {
	opts := c.engine
	if c.fetcher != nil {
		opts.Images = countingFetcher{f: c.fetcher.WithBaseDir(baseDir), rec: c.metrics}
	}
	return engine.New(opts)
}

// Document assembles toks into a document model. Relative image paths
// resolve against baseDir.
func (c *Converter) Document(ctx context.Context, toks []token.Token, baseDir string) (*docmodel.Document, engine.Report, error) {
	doc, rep, err := c.engineFor(baseDir).Convert(ctx, toks)
	if err != nil {
		return nil, rep, err
	}
	c.metrics.AddRecoveredUnits(rep.Issues())
	for _, u := range rep.Malformed {
		c.log.Debug("recovered malformed unit", "kind", u.Kind.String(), "index", u.Index, "error", u.Err)
	}
	return doc, rep, nil
}

// Convert renders Markdown src as .docx into w.
func (c *Converter) Convert(ctx context.Context, src []byte, w io.Writer) (Result, error) {
	p := &parser.MarkdownParser{}
	return c.convertTokens(ctx, p.Tokenize(src), "", w)
}

// ConvertTokens renders a token stream as .docx into w.
func (c *Converter) ConvertTokens(ctx context.Context, toks []token.Token, baseDir string, w io.Writer) (Result, error) {
	return c.convertTokens(ctx, toks, baseDir, w)
}

func (c *Converter) convertTokens(ctx context.Context, toks []token.Token, baseDir string, w io.Writer) (res Result, err error) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		c.observe(res, err)
	}()

	doc, rep, err := c.Document(ctx, toks, baseDir)
	res.Report = rep
	if err != nil {
		return res, err
	}
	res.Blocks = len(doc.Blocks)
	if err := docxwriter.Write(w, doc, c.writer); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Converter) observe(res Result, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
	case res.Report.Issues() > 0:
		outcome = metrics.OutcomeDegraded
	}
	c.metrics.ObserveConversion(c.source, res.Duration, outcome)
}

// DefaultOutput returns the output path used when none is given: the input
// path with a .docx extension.
func DefaultOutput(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".docx"
}

// ConvertFile converts the file at in and saves it at out (or the default
// output path). A locked output is saved under a timestamped name;
// Result.Output holds the path actually written.
func (c *Converter) ConvertFile(ctx context.Context, in, out string) (Result, error) {
	info, err := os.Stat(in)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrInputNotFound, in)
		}
		return Result{}, fmt.Errorf("stat input: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRegular, in)
	}
	if out == "" {
		out = DefaultOutput(in)
	}

	p := c.parser
	if p == nil {
		if p, err = parser.ForFile(in); err != nil {
			return Result{}, err
		}
	}
	f, err := os.Open(in)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	toks, err := p.Parse(f, filepath.Base(in))
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", in, err)
	}

	var res Result
	written, err := docxwriter.SaveFile(out, func(w io.Writer) error {
		var cerr error
		res, cerr = c.convertTokens(ctx, toks, filepath.Dir(in), w)
		return cerr
	})
	if err != nil {
		return res, err
	}
	res.Output = written
	if written != out {
		c.log.Warn("output file locked, saved under another name", "wanted", out, "saved", written)
	}
	return res, nil
}

// Inspect lists the paragraphs of an existing .docx file.
func Inspect(path string) ([]parser.OutlineEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parser.ReadOutline(bytes.NewReader(data))
}
