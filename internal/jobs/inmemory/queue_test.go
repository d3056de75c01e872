package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/receipt-reader/internal/domain"
	"github.com/dvloznov/receipt-reader/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExporter struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding
	calls    int
	exported []int64
}

func (e *recordingExporter) ExportReceipt(ctx context.Context, r *domain.Receipt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failures {
		return errors.New("warehouse unavailable")
	}
	e.exported = append(e.exported, r.ID)
	return nil
}

func (e *recordingExporter) snapshot() (int, []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls, append([]int64(nil), e.exported...)
}

func newTestQueue(store jobs.JobStore) *Queue {
	return NewQueue(Options{
		BufferSize: 8,
		Workers:    2,
		Backoff:    time.Millisecond,
		Store:      store,
		Log:        zerolog.Nop(),
	})
}

func waitForStatus(t *testing.T, store *Store, receiptID int64, status jobs.JobStatus) *jobs.ExportJob {
	t.Helper()
	var found *jobs.ExportJob
	require.Eventually(t, func() bool {
		list, err := store.ListJobs(context.Background(), jobs.JobFilter{ReceiptID: receiptID, Status: status})
		if err != nil || len(list) == 0 {
			return false
		}
		found = list[0]
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

func TestQueue_ExportsPublishedReceipts(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	exp := &recordingExporter{}
	require.NoError(t, q.Start(context.Background(), jobs.ExportHandler(exp)))

	async := jobs.NewAsyncExporter(q, 0)
	require.NoError(t, async.ExportReceipt(context.Background(), &domain.Receipt{ID: 1}))
	require.NoError(t, async.ExportReceipt(context.Background(), &domain.Receipt{ID: 2}))

	job := waitForStatus(t, store, 1, jobs.JobStatusCompleted)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)
	assert.NotEmpty(t, job.JobID)
	assert.NotNil(t, job.CompletedAt)
	waitForStatus(t, store, 2, jobs.JobStatusCompleted)

	require.NoError(t, q.Stop(context.Background()))
	_, exported := exp.snapshot()
	assert.ElementsMatch(t, []int64{1, 2}, exported)
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	exp := &recordingExporter{failures: 2}
	require.NoError(t, q.Start(context.Background(), jobs.ExportHandler(exp)))

	require.NoError(t, jobs.NewAsyncExporter(q, 3).ExportReceipt(context.Background(), &domain.Receipt{ID: 7}))

	job := waitForStatus(t, store, 7, jobs.JobStatusCompleted)
	assert.Equal(t, 2, job.RetryCount)
	assert.Empty(t, job.Error)

	require.NoError(t, q.Stop(context.Background()))
	calls, _ := exp.snapshot()
	assert.Equal(t, 3, calls)
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	exp := &recordingExporter{failures: 100}
	require.NoError(t, q.Start(context.Background(), jobs.ExportHandler(exp)))

	require.NoError(t, jobs.NewAsyncExporter(q, 1).ExportReceipt(context.Background(), &domain.Receipt{ID: 9}))

	job := waitForStatus(t, store, 9, jobs.JobStatusFailed)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "warehouse unavailable", job.Error)

	require.NoError(t, q.Stop(context.Background()))
	calls, _ := exp.snapshot()
	assert.Equal(t, 2, calls)
}

func TestQueue_StopDrainsBufferedJobs(t *testing.T) {
	q := newTestQueue(nil)
	var handled atomic.Int32
	release := make(chan struct{})

	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.ExportJob) error {
		<-release
		handled.Add(1)
		return nil
	}))

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.PublishExport(context.Background(), &jobs.ExportJob{ReceiptID: i}))
	}

	stopped := make(chan error, 1)
	go func() { stopped <- q.Stop(context.Background()) }()
	close(release)

	require.NoError(t, <-stopped)
	assert.Equal(t, int32(5), handled.Load())
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := newTestQueue(nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishExport(context.Background(), &jobs.ExportJob{ReceiptID: 1})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)
}

func TestStore_GetAndList(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Error(t, store.SaveJob(ctx, &jobs.ExportJob{}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ExportJob{JobID: "b", ReceiptID: 2, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ExportJob{JobID: "a", ReceiptID: 1, Status: jobs.JobStatusCompleted, CreatedAt: base}))

	job, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	job.Status = jobs.JobStatusFailed
	again, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, again.Status)

	_, err = store.GetJob(ctx, "missing")
	assert.Error(t, err)

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].JobID)

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].ReceiptID)

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
