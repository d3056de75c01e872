// Package jobs defines background work run off the request path, currently
// the export of processed receipts to the analytics warehouse.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without a retry budget.
const DefaultMaxRetries = 3

// ExportJob exports one processed receipt.
type ExportJob struct {
	JobID     string          `json:"job_id"`
	ReceiptID int64           `json:"receipt_id"`
	Receipt   *domain.Receipt `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues export jobs.
type Publisher interface {
	PublishExport(ctx context.Context, job *ExportJob) error
	Close() error
}

// Consumer runs a handler for every published job.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes a job. A returned error makes the job eligible for retry.
type Handler func(ctx context.Context, job *ExportJob) error

// JobStore records job state for inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportJob) error
	GetJob(ctx context.Context, jobID string) (*ExportJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportJob, error)
}

// JobFilter defines filtering criteria for listing jobs. Zero values match everything.
type JobFilter struct {
	ReceiptID int64
	Status    JobStatus
	Limit     int
}

// AsyncExporter satisfies the synchronous exporter contract by publishing a
// job and returning as soon as it is queued.
type AsyncExporter struct {
	pub        Publisher
	maxRetries int
}

// NewAsyncExporter wraps pub. maxRetries <= 0 selects DefaultMaxRetries.
func NewAsyncExporter(pub Publisher, maxRetries int) *AsyncExporter {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &AsyncExporter{pub: pub, maxRetries: maxRetries}
}

// ExportReceipt enqueues r for export.
func (e *AsyncExporter) ExportReceipt(ctx context.Context, r *domain.Receipt) error {
	return e.pub.PublishExport(ctx, &ExportJob{
		ReceiptID:  r.ID,
		Receipt:    r,
		MaxRetries: e.maxRetries,
	})
}

// ReceiptExporter is the synchronous export performed by a job.
type ReceiptExporter interface {
	ExportReceipt(ctx context.Context, r *domain.Receipt) error
}

// ExportHandler returns a Handler that runs exp for each job's receipt.
func ExportHandler(exp ReceiptExporter) Handler {
	return func(ctx context.Context, job *ExportJob) error {
		return exp.ExportReceipt(ctx, job.Receipt)
	}
}
