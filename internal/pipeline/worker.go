package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/parser"
)

// Worker converts queued jobs.
type Worker struct {
	conv  *convert.Converter
	stats *ConversionStats
	log   *slog.Logger
}

func NewWorker(conv *convert.Converter, stats *ConversionStats, log *slog.Logger) *Worker {
	return &Worker{conv: conv, stats: stats, log: log}
}

// Process runs one job from upload to rendered document.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.Fail("parsing", err)
		return
	}
	toks, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.Fail("parsing", fmt.Errorf("parse: %w", err))
		return
	}

	job.SetStatus(StatusAssembling, "assembling")
	var buf bytes.Buffer
	res, err := w.conv.ConvertTokens(ctx, toks, "", &buf)
	if err != nil {
		log.Error("conversion failed", "error", err)
		job.Fail("assembling", err)
		return
	}
	for _, u := range res.Report.Malformed {
		job.AddError(u.Error())
	}
	w.stats.Record(res.Duration, res.Report.Issues() > 0)
	job.Complete(buf.Bytes(), res)
	log.Info("conversion complete",
		"blocks", res.Blocks,
		"recovered", res.Report.Issues(),
		"bytes", buf.Len(),
		"duration", res.Duration)
}
