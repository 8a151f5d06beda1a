// Package jobs runs extractions asynchronously for callers that upload work
// and poll for completion. Jobs live in memory; finished jobs are swept after
// a retention window.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/pipeline"
)

// DefaultRetention is how long finished jobs remain queryable.
const DefaultRetention = 15 * time.Minute

var (
	// ErrNotFound is returned for unknown or swept job IDs.
	ErrNotFound = errors.New("jobs: not found")
	// ErrNotFinished is returned when results are requested before the job
	// reaches a terminal state.
	ErrNotFinished = errors.New("jobs: not finished")
)

// Task performs the actual extraction. It should report progress in [0, 1]
// through the callback and respect ctx cancellation.
type Task func(ctx context.Context, progress func(float64)) ([]*pipeline.Document, error)

// Job tracks one asynchronous extraction through the
// pending/running/succeeded/failed/canceled lifecycle.
type Job struct {
	id       string
	created  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	state    ocr.JobState
	message  string
	progress float64
	docs     []*pipeline.Document
	err      error
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Status returns the current lifecycle state.
func (j *Job) Status() ocr.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ocr.JobStatus{State: j.state, Message: j.message, Progress: j.progress}
}

// Documents returns the extraction results once the job has succeeded.
func (j *Job) Documents() ([]*pipeline.Document, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case ocr.JobStateSucceeded:
		return j.docs, nil
	case ocr.JobStateFailed:
		return nil, j.err
	case ocr.JobStateCanceled:
		return nil, context.Canceled
	default:
		return nil, ErrNotFinished
	}
}

// Cancel requests cooperative cancellation. Canceling a terminal job is a
// no-op.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == ocr.JobStatePending {
		j.state = ocr.JobStateRunning
	}
}

func (j *Job) setProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Terminal() {
		j.progress = p
	}
}

func (j *Job) finish(docs []*pipeline.Document, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case errors.Is(err, context.Canceled):
		j.state = ocr.JobStateCanceled
		j.message = "canceled"
	case err != nil:
		j.state = ocr.JobStateFailed
		j.message = err.Error()
		j.err = err
	default:
		j.state = ocr.JobStateSucceeded
		j.progress = 1
		j.docs = docs
	}
	close(j.done)
}

// Manager owns the job table.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	logger    observability.Logger
	now       func() time.Time
}

// NewManager constructs a Manager. A retention of 0 means DefaultRetention.
func NewManager(retention time.Duration, logger observability.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Manager{
		jobs:      make(map[string]*Job),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit registers and starts a job. The job runs on a background context so
// it outlives the submitting request.
func (m *Manager) Submit(task Task) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		id:      uuid.NewString(),
		created: m.now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   ocr.JobStatePending,
	}

	m.mu.Lock()
	m.sweepLocked()
	m.jobs[job.id] = job
	m.mu.Unlock()

	go func() {
		defer cancel()
		job.setRunning()
		docs, err := task(ctx, job.setProgress)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		job.finish(docs, err)
		m.logger.Debug("job finished",
			observability.String("job", job.id),
			observability.String("state", string(job.Status().State)),
		)
	}()
	return job
}

// Get returns a job by ID.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// Cancel cancels a job by ID.
func (m *Manager) Cancel(id string) error {
	job, err := m.Get(id)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// Len reports the number of tracked jobs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// sweepLocked drops terminal jobs older than the retention window. Callers
// must hold m.mu.
func (m *Manager) sweepLocked() {
	cutoff := m.now().Add(-m.retention)
	for id, job := range m.jobs {
		if job.Status().State.Terminal() && job.created.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
