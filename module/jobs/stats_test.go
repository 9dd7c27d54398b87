package jobs

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vijaygopal97/convergent-server/model"
)

type stubStatsStore struct {
	batches []model.QCBatch
	listErr error
	failIDs map[string]bool

	recalcCalls int
}

func (s *stubStatsStore) ListBatchesForStatsRefresh(_ context.Context) ([]model.QCBatch, error) {
	return s.batches, s.listErr
}

func (s *stubStatsStore) RecalculateBatchStats(_ context.Context, batch *model.QCBatch) (model.QCStats, error) {
	s.recalcCalls++
	if s.failIDs[batch.ID.Hex()] {
		return model.QCStats{}, errors.New("write conflict")
	}
	return batch.QCStats, nil
}

type stubInvalidator struct {
	err   error
	calls int
}

func (s *stubInvalidator) InvalidateBatchDetailsCache(_ context.Context, _ string) error {
	s.calls++
	return s.err
}

func (s *stubInvalidator) InvalidateBatchStatsCache(_ context.Context, _ string) error {
	s.calls++
	return s.err
}

func makeBatches(n int) []model.QCBatch {
	batches := make([]model.QCBatch, n)
	for i := range batches {
		batches[i] = model.QCBatch{ID: primitive.NewObjectID(), Status: model.BatchStatusQCPending}
	}
	return batches
}

func quickRefresher(store BatchStatsStore, cache BatchCacheInvalidator) *StatsRefresher {
	j := NewStatsRefresher(store, cache)
	j.chunkDelay = 0 // keep the test fast
	return j
}

func TestUpdateAllQCBatchStats(t *testing.T) {
	store := &stubStatsStore{batches: makeBatches(25)}
	j := quickRefresher(store, &stubInvalidator{})

	result := j.UpdateAllQCBatchStats(context.Background())
	if result.Total != 25 || result.Updated != 25 || result.Failed != 0 {
		t.Fatalf("bad result: %+v", result)
	}
	if store.recalcCalls != 25 {
		t.Fatalf("recalc ran %d times, want 25", store.recalcCalls)
	}
}

func TestPerBatchFailureIsCountedNotFatal(t *testing.T) {
	batches := makeBatches(12)
	store := &stubStatsStore{
		batches: batches,
		failIDs: map[string]bool{
			batches[3].ID.Hex(): true,
			batches[9].ID.Hex(): true,
		},
	}
	j := quickRefresher(store, &stubInvalidator{})

	result := j.UpdateAllQCBatchStats(context.Background())
	if result.Updated != 10 || result.Failed != 2 || result.Total != 12 {
		t.Fatalf("bad result: %+v", result)
	}
	if store.recalcCalls != 12 {
		t.Fatal("a failing batch must not stop the run")
	}
}

func TestInvalidationFailureIsNotAStatsFailure(t *testing.T) {
	store := &stubStatsStore{batches: makeBatches(3)}
	inv := &stubInvalidator{err: errors.New("redis down")}
	j := quickRefresher(store, inv)

	result := j.UpdateAllQCBatchStats(context.Background())
	if result.Failed != 0 || result.Updated != 3 {
		t.Fatalf("cache outage leaked into the stats result: %+v", result)
	}
	if inv.calls != 6 {
		t.Fatalf("invalidation attempted %d times, want 6", inv.calls)
	}
}

func TestListFailureReturnsEmptyResult(t *testing.T) {
	store := &stubStatsStore{listErr: errors.New("cursor timeout")}
	j := quickRefresher(store, &stubInvalidator{})

	result := j.UpdateAllQCBatchStats(context.Background())
	if result.Total != 0 || result.Updated != 0 || result.Failed != 0 {
		t.Fatalf("bad result: %+v", result)
	}
}

func TestRunStopsBetweenChunksOnCancel(t *testing.T) {
	store := &stubStatsStore{batches: makeBatches(30)}
	j := NewStatsRefresher(store, &stubInvalidator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := j.UpdateAllQCBatchStats(ctx)
	// the first chunk completes, then the cancelled context wins the delay
	if result.Updated != j.chunkSize {
		t.Fatalf("updated %d batches after cancel, want %d", result.Updated, j.chunkSize)
	}
}
