package engine

import (
	"errors"

	"github.com/wangqiqi/md2docx/internal/docmodel"
	"github.com/wangqiqi/md2docx/internal/token"
)

var errNoFetcher = errors.New("no image fetcher configured")

type imageResult struct {
	data []byte
	err  error
}

// imageRun resolves an image token. Each source is fetched at most once
// per session; failures become placeholder runs.
func (s *session) imageRun(img *token.Image) docmodel.Run {
	if img == nil {
		return docmodel.Run{Image: &docmodel.Image{}}
	}
	res, ok := s.images[img.Src]
	if !ok {
		res = s.fetchImage(img.Src)
		s.images[img.Src] = res
		if res.err != nil {
			s.report.ImageFailures++
			if !errors.Is(res.err, errNoFetcher) {
				s.log.Warn("image fetch failed, using placeholder", "source", img.Src, "error", res.err)
			}
		}
	}
	return docmodel.Run{Image: &docmodel.Image{Source: img.Src, Alt: img.Alt, Data: res.data}}
}

func (s *session) fetchImage(src string) imageResult {
	if s.opts.Images == nil {
		return imageResult{err: errNoFetcher}
	}
	if src == "" {
		return imageResult{err: errors.New("empty image source")}
	}
	data, err := s.opts.Images.Fetch(s.ctx, src)
	if err != nil {
		return imageResult{err: err}
	}
	return imageResult{data: data}
}
