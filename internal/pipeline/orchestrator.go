package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/metrics"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator runs conversion jobs on a bounded worker pool.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	conv    *convert.Converter
	stats   *ConversionStats
	metrics metrics.Recorder
	log     *slog.Logger
	cfg     config.Config

	// slots bounds in-request conversions to the worker count.
	slots chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, conv *convert.Converter, rec metrics.Recorder, log *slog.Logger) *Orchestrator {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		conv:    conv,
		stats:   NewConversionStats(time.Hour),
		metrics: rec,
		log:     log,
		cfg:     cfg,
		slots:   make(chan struct{}, cfg.WorkerCount),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.conv, o.stats, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.metrics.SetQueueDepth(len(o.queue))
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.metrics.SetQueueDepth(len(o.queue))
		return nil
	default:
		job.Fail("queue_full", ErrQueueFull)
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// ConvertSync converts Markdown src within the request, waiting for a free
// slot while ctx allows.
func (o *Orchestrator) ConvertSync(ctx context.Context, src []byte) ([]byte, convert.Result, error) {
	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		return nil, convert.Result{}, ctx.Err()
	}

	var buf bytes.Buffer
	res, err := o.conv.Convert(ctx, src, &buf)
	if err != nil {
		return nil, res, err
	}
	o.stats.Record(res.Duration, res.Report.Issues() > 0)
	return buf.Bytes(), res, nil
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the rolling conversion latency aggregate.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}
