package jobs

import (
	"context"
	"log"
	"time"

	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/utils"
)

// BatchStatsStore is the slice of the qcbatch repository the refresh job
// needs.
type BatchStatsStore interface {
	ListBatchesForStatsRefresh(ctx context.Context) ([]model.QCBatch, error)
	RecalculateBatchStats(ctx context.Context, batch *model.QCBatch) (model.QCStats, error)
}

// BatchCacheInvalidator clears the cached read views of one batch.
type BatchCacheInvalidator interface {
	InvalidateBatchDetailsCache(ctx context.Context, batchID string) error
	InvalidateBatchStatsCache(ctx context.Context, batchID string) error
}

// StatsRefreshResult reports one full run of the refresh job.
type StatsRefreshResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// StatsRefresher recomputes and persists qcStats for every batch that is
// closed for stats, then invalidates those batches' cache entries. Request
// paths never recompute stats synchronously; recomputing on every read was
// the prior design and exhausted the database.
type StatsRefresher struct {
	store      BatchStatsStore
	cache      BatchCacheInvalidator
	chunkSize  int
	chunkDelay time.Duration
}

func NewStatsRefresher(store BatchStatsStore, cache BatchCacheInvalidator) *StatsRefresher {
	return &StatsRefresher{
		store:      store,
		cache:      cache,
		chunkSize:  10,
		chunkDelay: 500 * time.Millisecond,
	}
}

// UpdateAllQCBatchStats processes batches in fixed-size chunks with a small
// delay between chunks to bound concurrent database load. A per-batch
// failure is counted and logged, never aborting the run.
func (j *StatsRefresher) UpdateAllQCBatchStats(ctx context.Context) StatsRefreshResult {
	var result StatsRefreshResult

	batches, err := j.store.ListBatchesForStatsRefresh(ctx)
	if err != nil {
		utils.LogError("Stats refresh: failed to list batches", err)
		return result
	}
	result.Total = len(batches)
	if result.Total == 0 {
		return result
	}

	log.Printf("Stats refresh: updating %d batches", result.Total)

	for start := 0; start < len(batches); start += j.chunkSize {
		end := start + j.chunkSize
		if end > len(batches) {
			end = len(batches)
		}

		for i := start; i < end; i++ {
			if j.UpdateBatchStats(ctx, &batches[i]) {
				result.Updated++
			} else {
				result.Failed++
			}
		}

		log.Printf("Stats refresh: %d/%d batches processed (updated=%d failed=%d)",
			end, result.Total, result.Updated, result.Failed)

		if end < len(batches) && j.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				log.Printf("Stats refresh: cancelled after %d/%d batches", end, result.Total)
				return result
			case <-time.After(j.chunkDelay):
			}
		}
	}

	log.Printf("Stats refresh: done, updated=%d failed=%d total=%d",
		result.Updated, result.Failed, result.Total)
	return result
}

// UpdateBatchStats recomputes one batch's stats and invalidates its cached
// views. A cache invalidation failure is logged but never reported as a
// stats failure; the cache is not authoritative.
func (j *StatsRefresher) UpdateBatchStats(ctx context.Context, batch *model.QCBatch) bool {
	if _, err := j.store.RecalculateBatchStats(ctx, batch); err != nil {
		utils.LogError("Stats refresh: recompute failed for batch "+batch.ID.Hex(), err)
		return false
	}

	id := batch.ID.Hex()
	_ = j.cache.InvalidateBatchDetailsCache(ctx, id)
	_ = j.cache.InvalidateBatchStatsCache(ctx, id)
	return true
}
