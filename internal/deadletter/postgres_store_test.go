package deadletter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
)

type fakeQueue struct {
	pushedBlockJobs []domain.BlockJob
	pushedLogJobs   []domain.LogJob
}

func (f *fakeQueue) PushBlockJob(ctx context.Context, job domain.BlockJob) error {
	f.pushedBlockJobs = append(f.pushedBlockJobs, job)
	return nil
}
func (f *fakeQueue) PushLogJob(ctx context.Context, job domain.LogJob) error {
	f.pushedLogJobs = append(f.pushedLogJobs, job)
	return nil
}
func (f *fakeQueue) PopBlockJob(ctx context.Context, timeoutSeconds int) (*domain.BlockJob, error) {
	return nil, nil
}
func (f *fakeQueue) PopLogJob(ctx context.Context, timeoutSeconds int) (*domain.LogJob, error) {
	return nil, nil
}
func (f *fakeQueue) Ack(ctx context.Context, jobID string) error { return nil }

// TestRepublish_PreservesOriginalPayload guards against the dead-letter
// round trip silently dropping the original job's fields: a redriven job
// must carry the same block number/hash it failed with, not an empty
// shell with just the id and a new status.
func TestRepublish_PreservesOriginalPayload(t *testing.T) {
	q := &fakeQueue{}
	s := &PostgresStore{queue: q, log: logging.NewNop()}

	payload := `{"job_id":"block-100","block_number":100,"block_hash":"0xabc","status":"new"}`
	err := s.republish(context.Background(), domain.JobTypeBlock, "block-100", payload)
	require.NoError(t, err)

	require.Len(t, q.pushedBlockJobs, 1)
	got := q.pushedBlockJobs[0]
	require.Equal(t, "block-100", got.JobID)
	require.Equal(t, uint64(100), got.BlockNumber)
	require.Equal(t, "0xabc", got.BlockHash)
	require.Equal(t, "retrying", got.Status)
}

func TestRepublish_LogJobPreservesRange(t *testing.T) {
	q := &fakeQueue{}
	s := &PostgresStore{queue: q, log: logging.NewNop()}

	payload := `{"job_id":"log-100","block_number":100,"block_hash":"0xdef","from_block":90,"to_block":100,"status":"new"}`
	err := s.republish(context.Background(), domain.JobTypeLog, "log-100", payload)
	require.NoError(t, err)

	require.Len(t, q.pushedLogJobs, 1)
	got := q.pushedLogJobs[0]
	require.Equal(t, uint64(90), got.FromBlock)
	require.Equal(t, uint64(100), got.ToBlock)
	require.Equal(t, "retrying", got.Status)
}

func TestRepublish_UnknownJobType(t *testing.T) {
	q := &fakeQueue{}
	s := &PostgresStore{queue: q, log: logging.NewNop()}

	err := s.republish(context.Background(), domain.JobType("unknown"), "x", "{}")
	require.Error(t, err)
}
