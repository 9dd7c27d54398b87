package qcbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/vijaygopal97/convergent-server/cache"
	"github.com/vijaygopal97/convergent-server/utils"
)

// All three cache categories share one TTL; the cache is a snapshot of a
// DB-computed payload and absence of an entry always means "recompute".
const (
	batchListTTL    = 300 * time.Second
	batchDetailsTTL = 300 * time.Second
	batchStatsTTL   = 300 * time.Second

	// The default paginated variant is the only one invalidation clears;
	// other page/limit combinations age out via TTL.
	DefaultResponsePage  = 1
	DefaultResponseLimit = 50
)

// BatchCache is the read-model cache in front of the aggregation layer. Every
// getter returns nil on miss or store error so callers always fall back to
// the database; every setter swallows failures.
type BatchCache struct {
	kv cache.Client
}

func NewBatchCache(kv cache.Client) *BatchCache {
	return &BatchCache{kv: kv}
}

func batchListKey(surveyID string, page, limit int, f ListFilters) string {
	return fmt.Sprintf("qc_batch_list:%s:page:%d:limit:%d:filters:%s",
		surveyID, page, limit, utils.FilterHash(f))
}

func batchDetailsKey(batchID string, rpage, rlimit int) string {
	return fmt.Sprintf("qc_batch_details:%s:rpage:%d:rlimit:%d", batchID, rpage, rlimit)
}

func batchStatsKey(batchID string) string {
	return fmt.Sprintf("qc_batch_stats:%s", batchID)
}

func (c *BatchCache) GetBatchList(ctx context.Context, surveyID string, page, limit int, f ListFilters) *BatchListResult {
	var result BatchListResult
	if !c.getJSON(ctx, batchListKey(surveyID, page, limit, f), &result) {
		return nil
	}
	return &result
}

func (c *BatchCache) SetBatchList(ctx context.Context, surveyID string, page, limit int, f ListFilters, data *BatchListResult) {
	c.setJSON(ctx, batchListKey(surveyID, page, limit, f), data, batchListTTL)
}

func (c *BatchCache) GetBatchDetails(ctx context.Context, batchID string, rpage, rlimit int) *BatchDetailResult {
	var result BatchDetailResult
	if !c.getJSON(ctx, batchDetailsKey(batchID, rpage, rlimit), &result) {
		return nil
	}
	return &result
}

func (c *BatchCache) SetBatchDetails(ctx context.Context, batchID string, rpage, rlimit int, data *BatchDetailResult) {
	c.setJSON(ctx, batchDetailsKey(batchID, rpage, rlimit), data, batchDetailsTTL)
}

func (c *BatchCache) GetBatchStats(ctx context.Context, batchID string) *RealTimeStats {
	var stats RealTimeStats
	if !c.getJSON(ctx, batchStatsKey(batchID), &stats) {
		return nil
	}
	return &stats
}

func (c *BatchCache) SetBatchStats(ctx context.Context, batchID string, stats *RealTimeStats) {
	c.setJSON(ctx, batchStatsKey(batchID), stats, batchStatsTTL)
}

// InvalidateBatchDetailsCache clears the default-page details entry for a
// batch. Other paginated variants stay cached until TTL expiry; data is
// eventually fresh, not correctness-critical.
func (c *BatchCache) InvalidateBatchDetailsCache(ctx context.Context, batchID string) error {
	key := batchDetailsKey(batchID, DefaultResponsePage, DefaultResponseLimit)
	if err := c.kv.Delete(ctx, key); err != nil {
		utils.LogError("Failed to invalidate batch details cache for "+batchID, err)
		return err
	}
	return nil
}

func (c *BatchCache) InvalidateBatchStatsCache(ctx context.Context, batchID string) error {
	if err := c.kv.Delete(ctx, batchStatsKey(batchID)); err != nil {
		utils.LogError("Failed to invalidate batch stats cache for "+batchID, err)
		return err
	}
	return nil
}

// InvalidateBatchListCache is a no-op: the cache client has no pattern
// delete, so list entries for a survey rely on TTL expiry alone.
func (c *BatchCache) InvalidateBatchListCache(ctx context.Context, surveyID string) {
	log.Printf("Batch list cache for survey %s left to TTL expiry (no pattern delete)", surveyID)
}

func (c *BatchCache) getJSON(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if err != cache.ErrMiss {
			utils.LogError("Cache read failed for "+key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		utils.LogError("Cache entry corrupt for "+key, err)
		return false
	}
	return true
}

func (c *BatchCache) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		utils.LogError("Cache marshal failed for "+key, err)
		return
	}
	if err := c.kv.Set(ctx, key, string(raw), ttl); err != nil {
		utils.LogError("Cache write failed for "+key, err)
	}
}
