package convert

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/metrics"
	"github.com/wangqiqi/md2docx/internal/parser"
)

type fakeRecorder struct {
	mu        sync.Mutex
	outcomes  []metrics.Outcome
	sources   []string
	recovered int
	images    map[bool]int
}

func (f *fakeRecorder) ObserveConversion(source string, _ time.Duration, o metrics.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	f.outcomes = append(f.outcomes, o)
}

func (f *fakeRecorder) AddRecoveredUnits(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovered += n
}

func (f *fakeRecorder) IncImageFetch(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images == nil {
		f.images = map[bool]int{}
	}
	f.images[ok]++
}

func (f *fakeRecorder) SetQueueDepth(int) {}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func outline(t *testing.T, data []byte) []string {
	t.Helper()
	entries, err := parser.ReadOutline(bytes.NewReader(data))
	require.NoError(t, err)
	var texts []string
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	return texts
}

func TestConvert_InMemory(t *testing.T) {
	rec := &fakeRecorder{}
	c := New(config.DefaultConversion(), nil, WithMetrics(rec, "http"))

	var buf bytes.Buffer
	res, err := c.Convert(context.Background(), []byte("# Title\n\n1. one\n2. two\n\n- [x] done\n"), &buf)
	require.NoError(t, err)
	require.Equal(t, 4, res.Blocks)
	require.Zero(t, res.Report.Issues())

	require.Equal(t, []string{"Title", "1. one", "2. two", "☑ done"}, outline(t, buf.Bytes()))
	require.Equal(t, []metrics.Outcome{metrics.OutcomeSuccess}, rec.outcomes)
	require.Equal(t, []string{"http"}, rec.sources)
}

func TestConvertFile_ResolvesImagesAndDefaultsOutput(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "pic.png"))
	in := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(in, []byte("# Notes\n\n![pic](pic.png) ![gone](gone.png)\n"), 0o644))

	rec := &fakeRecorder{}
	c := New(config.DefaultConversion(), nil, WithMetrics(rec, "cli"))
	res, err := c.ConvertFile(context.Background(), in, "")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "notes.docx"), res.Output)
	require.FileExists(t, res.Output)
	require.Equal(t, 1, res.Report.ImageFailures)
	require.Equal(t, map[bool]int{true: 1, false: 1}, rec.images)
	require.Equal(t, 1, rec.recovered)
	require.Equal(t, []metrics.Outcome{metrics.OutcomeDegraded}, rec.outcomes)

	entries, err := Inspect(res.Output)
	require.NoError(t, err)
	require.Equal(t, "Notes", entries[0].Text)
	require.Equal(t, 1, entries[0].Level)
}

func TestConvertFile_TokenStream(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "stream.tokens")
	require.NoError(t, os.WriteFile(in, []byte(`[
		{"kind":"heading_open","tag":"h2"},
		{"kind":"inline","children":[{"kind":"text","content":"From tokens"}]},
		{"kind":"heading_close","tag":"h2"}
	]`), 0o644))

	c := New(config.DefaultConversion(), nil, WithParser(&parser.TokenStreamParser{}))
	out := filepath.Join(dir, "out.docx")
	res, err := c.ConvertFile(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, out, res.Output)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []string{"From tokens"}, outline(t, data))
}

func TestConvertFile_InputErrors(t *testing.T) {
	dir := t.TempDir()
	c := New(config.DefaultConversion(), nil)

	_, err := c.ConvertFile(context.Background(), filepath.Join(dir, "missing.md"), "")
	require.ErrorIs(t, err, ErrInputNotFound)

	_, err = c.ConvertFile(context.Background(), dir, "")
	require.ErrorIs(t, err, ErrNotRegular)

	pdf := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	_, err = c.ConvertFile(context.Background(), pdf, "")
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(dir, "doc.docx"))
}

func TestNew_Settings(t *testing.T) {
	cfg := config.DefaultConversion()
	cfg.RawHTML = false
	cfg.Highlight.Enabled = false
	cfg.Images.Enabled = false
	cfg.QuoteIndent = 1
	c := New(cfg, nil)

	require.Nil(t, c.engine.Raw)
	require.Nil(t, c.engine.Highlighter)
	require.Nil(t, c.fetcher)
	require.EqualValues(t, 1440, c.engine.QuoteIndent)
}

func TestDefaultOutput(t *testing.T) {
	require.Equal(t, filepath.Join("a", "b.docx"), DefaultOutput(filepath.Join("a", "b.md")))
	require.Equal(t, "README.docx", DefaultOutput("README"))
}
