package qcbatch

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vijaygopal97/convergent-server/model"
)

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrPermissionDenied = errors.New("batch belongs to another company")
)

// ListOptions are the query knobs of the batch list endpoint.
type ListOptions struct {
	Page          int
	Limit         int
	Status        string
	InterviewerID string
	UseCache      bool
}

// BatchListResult is the full payload of the batch list endpoint; the whole
// envelope, pagination included, is what gets cached.
type BatchListResult struct {
	Batches    []BatchListItem           `json:"batches"`
	Pagination model.BatchListPagination `json:"pagination"`
}

// BatchView is the detail endpoint's shape of a batch, with joined display
// fields instead of raw object ids and the realTimeStats envelope attached.
type BatchView struct {
	ID                    primitive.ObjectID     `json:"id"`
	Survey                SurveyRef              `json:"survey"`
	Interviewer           UserRef                `json:"interviewer"`
	BatchDate             time.Time              `json:"batchDate"`
	Status                string                 `json:"status"`
	TotalResponses        int                    `json:"totalResponses"`
	SampleSize            int                    `json:"sampleSize"`
	RemainingSize         int                    `json:"remainingSize"`
	QCStats               model.QCStats          `json:"qcStats"`
	RemainingDecision     string                 `json:"remainingDecision,omitempty"`
	ProcessingStartedAt   *time.Time             `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time             `json:"processingCompletedAt,omitempty"`
	BatchConfig           model.BatchConfig      `json:"batchConfig,omitempty"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt             time.Time              `json:"createdAt"`
	UpdatedAt             time.Time              `json:"updatedAt"`
	RealTimeStats         RealTimeStats          `json:"realTimeStats"`
}

// BatchResponses partitions one page of responses: sample and remaining are
// disjoint subsets of all, keyed off the batch's two id arrays.
type BatchResponses struct {
	All        []ResponseView           `json:"all"`
	Sample     []ResponseView           `json:"sample"`
	Remaining  []ResponseView           `json:"remaining"`
	Pagination model.ResponsePagination `json:"pagination"`
}

type BatchDetailResult struct {
	Batch     BatchView      `json:"batch"`
	Responses BatchResponses `json:"responses"`
}

// Service is the QC batch read-model. Both operations are cache-aside: try
// the cache, fall back to the aggregation layer, write the result back.
type Service interface {
	GetBatchesBySurveyV2(ctx context.Context, companyID primitive.ObjectID, surveyID string, opts ListOptions) (*BatchListResult, bool, error)
	GetBatchByIDV2(ctx context.Context, companyID primitive.ObjectID, batchID string, rpage, rlimit int) (*BatchDetailResult, bool, error)
	GetBatchStatsV2(ctx context.Context, companyID primitive.ObjectID, batchID string) (*RealTimeStats, bool, error)
}

type serviceImpl struct {
	repo  Repository
	cache *BatchCache
}

func NewService(repo Repository, cache *BatchCache) Service {
	return &serviceImpl{repo: repo, cache: cache}
}

// GetBatchesBySurveyV2 returns the paginated, denormalized batch list for a
// survey. The second return value reports whether the payload came from
// cache.
func (s *serviceImpl) GetBatchesBySurveyV2(ctx context.Context, companyID primitive.ObjectID, surveyID string, opts ListOptions) (*BatchListResult, bool, error) {
	surveyOID, err := primitive.ObjectIDFromHex(surveyID)
	if err != nil {
		return nil, false, ErrInvalidID
	}

	survey, err := s.repo.FindSurveyInCompany(ctx, surveyOID, companyID)
	if err != nil {
		return nil, false, err
	}
	if survey == nil {
		return nil, false, ErrSurveyNotFound
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}

	filters := ListFilters{Status: opts.Status}
	// an unparseable interviewer id is dropped rather than matched literally
	if opts.InterviewerID != "" {
		if _, err := primitive.ObjectIDFromHex(opts.InterviewerID); err == nil {
			filters.InterviewerID = opts.InterviewerID
		}
	}

	if opts.UseCache {
		if cached := s.cache.GetBatchList(ctx, surveyID, opts.Page, opts.Limit, filters); cached != nil {
			return cached, true, nil
		}
	}

	batches, total, err := s.repo.AggregateBatchList(ctx, surveyOID, filters, opts.Page, opts.Limit)
	if err != nil {
		return nil, false, err
	}

	result := &BatchListResult{
		Batches:    batches,
		Pagination: model.NewBatchListPagination(opts.Page, opts.Limit, total),
	}
	s.cache.SetBatchList(ctx, surveyID, opts.Page, opts.Limit, filters, result)
	return result, false, nil
}

// GetBatchByIDV2 returns one batch with a paginated page of its responses
// partitioned into sample/remaining, plus the realTimeStats envelope built
// from the persisted qcStats snapshot.
func (s *serviceImpl) GetBatchByIDV2(ctx context.Context, companyID primitive.ObjectID, batchID string, rpage, rlimit int) (*BatchDetailResult, bool, error) {
	batchOID, err := primitive.ObjectIDFromHex(batchID)
	if err != nil {
		return nil, false, ErrInvalidID
	}

	if rpage < 1 {
		rpage = DefaultResponsePage
	}
	if rlimit < 1 {
		rlimit = DefaultResponseLimit
	}

	if cached := s.cache.GetBatchDetails(ctx, batchID, rpage, rlimit); cached != nil {
		// ownership still enforced on cache hits
		if cached.Batch.Survey.ID != primitive.NilObjectID && s.batchInCompany(ctx, batchOID, companyID) {
			return cached, true, nil
		}
	}

	detail, err := s.repo.FindBatchByID(ctx, batchOID)
	if err != nil {
		return nil, false, err
	}
	if detail == nil {
		return nil, false, ErrBatchNotFound
	}
	if detail.SurveyCompany != companyID {
		return nil, false, ErrPermissionDenied
	}

	page, total, err := s.repo.AggregateBatchResponses(ctx, detail.Responses, rpage, rlimit)
	if err != nil {
		return nil, false, err
	}

	sampleSet := idSet(detail.SampleResponses)
	remainingSet := idSet(detail.RemainingResponses)
	sample := make([]ResponseView, 0, len(page))
	remaining := make([]ResponseView, 0, len(page))
	for _, r := range page {
		hex := r.ID.Hex()
		if sampleSet[hex] {
			sample = append(sample, r)
		} else if remainingSet[hex] {
			remaining = append(remaining, r)
		}
	}

	result := &BatchDetailResult{
		Batch: BatchView{
			ID:                    detail.ID,
			Survey:                SurveyRef{ID: detail.Survey, Name: detail.SurveyName},
			Interviewer:           UserRef{ID: detail.Interviewer, Name: detail.InterviewerName, Email: detail.InterviewerEmail},
			BatchDate:             detail.BatchDate,
			Status:                detail.Status,
			TotalResponses:        detail.TotalResponses,
			SampleSize:            detail.SampleSize,
			RemainingSize:         detail.RemainingSize,
			QCStats:               detail.QCStats,
			RemainingDecision:     detail.RemainingDecision,
			ProcessingStartedAt:   detail.ProcessingStartedAt,
			ProcessingCompletedAt: detail.ProcessingCompletedAt,
			BatchConfig:           detail.BatchConfig,
			Metadata:              detail.Metadata,
			CreatedAt:             detail.CreatedAt,
			UpdatedAt:             detail.UpdatedAt,
			RealTimeStats:         buildRealTimeStats(detail.QCStats),
		},
		Responses: BatchResponses{
			All:        page,
			Sample:     sample,
			Remaining:  remaining,
			Pagination: model.NewResponsePagination(rpage, rlimit, total),
		},
	}
	s.cache.SetBatchDetails(ctx, batchID, rpage, rlimit, result)
	return result, false, nil
}

// GetBatchStatsV2 serves just the realTimeStats envelope from its own cache
// category.
func (s *serviceImpl) GetBatchStatsV2(ctx context.Context, companyID primitive.ObjectID, batchID string) (*RealTimeStats, bool, error) {
	batchOID, err := primitive.ObjectIDFromHex(batchID)
	if err != nil {
		return nil, false, ErrInvalidID
	}

	if cached := s.cache.GetBatchStats(ctx, batchID); cached != nil {
		if s.batchInCompany(ctx, batchOID, companyID) {
			return cached, true, nil
		}
	}

	detail, err := s.repo.FindBatchByID(ctx, batchOID)
	if err != nil {
		return nil, false, err
	}
	if detail == nil {
		return nil, false, ErrBatchNotFound
	}
	if detail.SurveyCompany != companyID {
		return nil, false, ErrPermissionDenied
	}

	stats := buildRealTimeStats(detail.QCStats)
	s.cache.SetBatchStats(ctx, batchID, &stats)
	return &stats, false, nil
}

// batchInCompany re-checks ownership before serving a cached payload, so a
// cache hit can never leak another company's batch. Errors read as "not
// owned": the caller then falls through to the database path.
func (s *serviceImpl) batchInCompany(ctx context.Context, batchID, companyID primitive.ObjectID) bool {
	ok, err := s.repo.BatchInCompany(ctx, batchID, companyID)
	return err == nil && ok
}

func idSet(ids []primitive.ObjectID) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id.Hex()] = true
	}
	return set
}
