package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/parser"
	"github.com/wangqiqi/md2docx/internal/watch"
)

// Global carries process-wide state into every command.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Debug   bool             `short:"d" help:"Enable debug logging"`
	Config  string           `short:"c" type:"path" help:"Conversion settings YAML file"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Convert ConvertCmd `cmd:"" help:"Convert one Markdown file to .docx"`
	Batch   BatchCmd   `cmd:"" help:"Convert every file matching a glob"`
	Inspect InspectCmd `cmd:"" help:"List the paragraphs of a .docx file"`
}

func (c *CLI) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *CLI) converter(log *slog.Logger, opts ...convert.Option) (*convert.Converter, error) {
	cfg, err := config.LoadConversion(c.Config)
	if err != nil {
		return nil, err
	}
	return convert.New(cfg, log, opts...), nil
}

type ConvertCmd struct {
	Input  string `arg:"" type:"path" help:"Markdown, text or token JSON file"`
	Output string `arg:"" optional:"" type:"path" help:"Output .docx (default: input name with .docx extension)"`
	Watch  bool   `short:"w" help:"Convert again whenever the input changes"`
	Tokens bool   `help:"Read the input as a JSON token stream whatever its extension"`
}

func (cmd *ConvertCmd) Run(g *Global, root *CLI) error {
	var opts []convert.Option
	if cmd.Tokens {
		opts = append(opts, convert.WithParser(&parser.TokenStreamParser{}))
	}
	conv, err := root.converter(g.Logger, opts...)
	if err != nil {
		return err
	}

	run := func(ctx context.Context) error {
		res, err := conv.ConvertFile(ctx, cmd.Input, cmd.Output)
		if err != nil {
			return err
		}
		g.Logger.Info("converted",
			"input", cmd.Input,
			"output", res.Output,
			"blocks", res.Blocks,
			"recovered", res.Report.Issues(),
			"duration", res.Duration)
		return nil
	}
	if err := run(g.Ctx); err != nil {
		return err
	}
	if !cmd.Watch {
		return nil
	}

	fw, err := watch.New(cmd.Input, watch.DefaultDebounce, g.Logger, run)
	if err != nil {
		return err
	}
	return fw.Run(g.Ctx)
}

type BatchCmd struct {
	Pattern string `arg:"" help:"Glob of input files, e.g. docs/**/*.md"`
	OutDir  string `short:"o" type:"path" help:"Output directory (default: next to each input)"`
	Workers int    `short:"n" default:"4" help:"Parallel conversions"`
}

func (cmd *BatchCmd) Run(g *Global, root *CLI) error {
	inputs, err := cmd.inputs()
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no convertible files match %q", cmd.Pattern)
	}
	conv, err := root.converter(g.Logger)
	if err != nil {
		return err
	}

	workers := max(cmd.Workers, 1)
	sem := make(chan struct{}, workers)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []error
	)
	for _, in := range inputs {
		out, err := cmd.outputFor(in)
		if err != nil {
			return err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := conv.ConvertFile(g.Ctx, in, out)
			if err != nil {
				g.Logger.Error("conversion failed", "input", in, "error", err)
				mu.Lock()
				failed = append(failed, fmt.Errorf("%s: %w", in, err))
				mu.Unlock()
				return
			}
			g.Logger.Info("converted", "input", in, "output", res.Output, "recovered", res.Report.Issues())
		}()
	}
	wg.Wait()

	g.Logger.Info("batch complete", "files", len(inputs), "failed", len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d conversions failed: %w", len(failed), len(inputs), errors.Join(failed...))
	}
	return nil
}

// inputs returns the supported regular files matching the pattern.
func (cmd *BatchCmd) inputs() ([]string, error) {
	matches, err := doublestar.FilepathGlob(cmd.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", cmd.Pattern, err)
	}
	var out []string
	for _, m := range matches {
		if parser.IsSupportedExtension(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// outputFor mirrors the input's position below the pattern's static
// prefix into OutDir.
func (cmd *BatchCmd) outputFor(in string) (string, error) {
	if cmd.OutDir == "" {
		return convert.DefaultOutput(in), nil
	}
	base, _ := doublestar.SplitPattern(filepath.ToSlash(cmd.Pattern))
	rel, err := filepath.Rel(filepath.FromSlash(base), in)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(in)
	}
	out := filepath.Join(cmd.OutDir, convert.DefaultOutput(rel))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return out, nil
}

type InspectCmd struct {
	File string `arg:"" type:"existingfile" help:".docx file to read"`
	JSON bool   `help:"Print the outline as JSON"`
}

func (cmd *InspectCmd) Run(g *Global, _ *CLI) error {
	entries, err := convert.Inspect(cmd.File)
	if err != nil {
		return err
	}
	if cmd.JSON {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		switch {
		case e.Level > 0:
			fmt.Fprintf(g.Out, "%s %s\n", strings.Repeat("#", e.Level), e.Text)
		case e.Style != "":
			fmt.Fprintf(g.Out, "  [%s] %s\n", e.Style, e.Text)
		default:
			fmt.Fprintf(g.Out, "  %s\n", e.Text)
		}
	}
	return nil
}
