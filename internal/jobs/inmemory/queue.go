// Package inmemory runs jobs on goroutines fed by a buffered channel. It is
// meant for single-instance deployments and tests.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/receipt-reader/internal/jobs"
	"github.com/dvloznov/receipt-reader/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Options configures a Queue. Zero values select the defaults.
type Options struct {
	BufferSize int           // default 64
	Workers    int           // default 2
	Backoff    time.Duration // base retry delay, multiplied by the attempt; default 1s
	Store      jobs.JobStore // optional
	Log        zerolog.Logger
}

// Queue is an in-memory publisher and consumer of export jobs.
type Queue struct {
	jobChan   chan *jobs.ExportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool

	workers int
	backoff time.Duration
	store   jobs.JobStore
	log     zerolog.Logger
}

// NewQueue creates a new in-memory job queue.
func NewQueue(opts Options) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Queue{
		jobChan:   make(chan *jobs.ExportJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		workers:   opts.Workers,
		backoff:   opts.Backoff,
		store:     opts.Store,
		log:       opts.Log,
	}
}

// PublishExport enqueues job, blocking while the buffer is full.
func (q *Queue) PublishExport(ctx context.Context, job *jobs.ExportJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	q.save(ctx, job)

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the workers. Jobs are handled with ctx, so it should
// outlive individual requests.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			q.drain(ctx, handler)
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

// drain handles whatever is still buffered once the queue is closed.
func (q *Queue) drain(ctx context.Context, handler jobs.Handler) {
	for {
		select {
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		default:
			return
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.ExportJob, handler jobs.Handler) {
	log := q.log.With().Str("job_id", job.JobID).Int64("receipt_id", job.ReceiptID).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var delay time.Duration
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Msg("Export job completed")
	case job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		delay = time.Duration(job.RetryCount) * q.backoff
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", delay).Msg("Export job failed, retrying")
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Export job failed")
	}

	metrics.ExportJobFinished(string(job.Status))
	q.save(ctx, job)

	if job.Status == jobs.JobStatusRetrying {
		time.AfterFunc(delay, func() { q.retry(ctx, job) })
	}
}

func (q *Queue) retry(ctx context.Context, job *jobs.ExportJob) {
	job.Status = jobs.JobStatusPending
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := q.PublishExport(ctx, job); err != nil {
		job.Status = jobs.JobStatusFailed
		q.save(context.Background(), job)
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Could not requeue export job")
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.ExportJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job state")
	}
}

// Stop closes the queue, lets workers finish buffered jobs and waits for
// them or for ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue, waiting at most 30 seconds for in-flight jobs.
func (q *Queue) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return q.Stop(ctx)
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
