// Package imagefetch resolves image references in Markdown to embeddable
// bytes: data URIs, remote URLs and local files.
package imagefetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrRemoteDisabled = errors.New("remote images are disabled")
	ErrTooLarge       = errors.New("image exceeds download limit")
	ErrUnsupported    = errors.New("unsupported image source")
	ErrLocalDisabled  = errors.New("local image files are disabled")
)

// Options configures a Fetcher.
type Options struct {
	// BaseDir resolves relative file paths, usually the Markdown file's
	// directory.
	BaseDir     string
	AllowRemote bool
	// NoLocalFiles rejects file paths; only data URIs and URLs resolve.
	NoLocalFiles bool
	Timeout      time.Duration
	// MaxDownload caps the bytes read from any source.
	MaxDownload int64
	// MaxEmbed is the size above which images are downscaled.
	MaxEmbed int64

	Client  *http.Client
	Logger  *slog.Logger
	Backoff func(attempt int) time.Duration
}

// Fetcher implements the engine's image collaborator.
type Fetcher struct {
	opts Options
}

// New returns a Fetcher with defaults filled in.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxDownload <= 0 {
		opts.MaxDownload = 20 << 20
	}
	if opts.MaxEmbed <= 0 {
		opts.MaxEmbed = 2 << 20
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	return &Fetcher{opts: opts}
}

// WithBaseDir returns a copy of f resolving relative paths against dir.
func (f *Fetcher) WithBaseDir(dir string) *Fetcher {
	opts := f.opts
	opts.BaseDir = dir
	return &Fetcher{opts: opts}
}

// Fetch returns embeddable bytes for source.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	var (
		data []byte
		err  error
	)
	switch {
	case source == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupported)
	case strings.HasPrefix(source, "data:"):
		data, err = decodeDataURI(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = f.fetchRemote(ctx, source)
	default:
		data, err = f.readFile(source)
	}
	if err != nil {
		return nil, err
	}
	return normalize(data, f.opts.MaxEmbed)
}

func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrUnsupported)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(s), nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, src string) ([]byte, error) {
	if !f.opts.AllowRemote {
		return nil, ErrRemoteDisabled
	}
	log := f.opts.Logger.With("url", src)

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			wait := f.opts.Backoff(attempt - 1)
			log.Debug("retrying image download", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		data, err := f.get(ctx, src)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) get(ctx context.Context, src string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.opts.MaxDownload {
		return nil, ErrTooLarge
	}
	return readLimited(resp.Body, f.opts.MaxDownload)
}

func (f *Fetcher) readFile(src string) ([]byte, error) {
	if f.opts.NoLocalFiles {
		return nil, ErrLocalDisabled
	}
	path := src
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			if len(u.Scheme) == 1 {
				// Windows drive letter, not a scheme.
				return f.open(src)
			}
			return nil, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
		}
		path = u.Path
	} else if err == nil {
		// Markdown may percent-encode spaces in relative paths.
		if p, uerr := url.PathUnescape(src); uerr == nil {
			path = p
		}
	}
	if !filepath.IsAbs(path) && f.opts.BaseDir != "" {
		path = filepath.Join(f.opts.BaseDir, path)
	}
	return f.open(path)
}

func (f *Fetcher) open(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	return readLimited(file, f.opts.MaxDownload)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
