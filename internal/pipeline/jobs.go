package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wangqiqi/md2docx/internal/convert"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusAssembling JobStatus = "assembling"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single document conversion.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	BatchID string `json:"batch_id,omitempty"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   []byte
	errors   []string
}

// Progress summarises what the conversion produced and recovered from.
type Progress struct {
	Blocks            int      `json:"blocks"`
	MalformedUnits    int      `json:"malformed_units"`
	SkippedBlocks     int      `json:"skipped_blocks"`
	ImageFailures     int      `json:"image_failures"`
	NumberingFailures int      `json:"numbering_failures"`
	DurationMs        int64    `json:"duration_ms"`
	Errors            []string `json:"errors"`
}

// NewJob returns a queued job for the named upload.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs idle for longer than the TTL, finished or not.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// FileData returns the uploaded bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Complete stores the rendered document and marks the job completed. The
// upload is released.
func (j *Job) Complete(docx []byte, res convert.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = docx
	j.fileData = nil
	j.ContentHash = ContentHashHex(docx)
	j.Progress.Blocks = res.Blocks
	j.Progress.MalformedUnits = len(res.Report.Malformed)
	j.Progress.SkippedBlocks = res.Report.SkippedBlocks
	j.Progress.ImageFailures = res.Report.ImageFailures
	j.Progress.NumberingFailures = res.Report.NumberingFailures
	j.Progress.DurationMs = res.Duration.Milliseconds()
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed in phase and releases the upload.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
	j.errors = append(j.errors, err.Error())
	j.Progress.Errors = j.errors
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Result returns the rendered document once the job has completed.
func (j *Job) Result() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusCompleted {
		return nil, false
	}
	return j.result, true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	BatchID     string    `json:"batch_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		BatchID:     j.BatchID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Progress:    progress,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
