package qcbatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vijaygopal97/convergent-server/model"
)

type stubRepo struct {
	survey    *model.Survey
	batches   []BatchListItem
	total     int64
	detail    *BatchDetail
	responses []ResponseView
	respTotal int64
	err       error

	listCalls   int
	detailCalls int
}

func (s *stubRepo) FindSurveyInCompany(_ context.Context, surveyID, companyID primitive.ObjectID) (*model.Survey, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.survey != nil && s.survey.ID == surveyID && s.survey.Company == companyID {
		return s.survey, nil
	}
	return nil, nil
}

func (s *stubRepo) AggregateBatchList(_ context.Context, _ primitive.ObjectID, _ ListFilters, _, _ int) ([]BatchListItem, int64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	s.listCalls++
	return s.batches, s.total, nil
}

func (s *stubRepo) FindBatchByID(_ context.Context, batchID primitive.ObjectID) (*BatchDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.detailCalls++
	if s.detail != nil && s.detail.ID == batchID {
		return s.detail, nil
	}
	return nil, nil
}

func (s *stubRepo) BatchInCompany(_ context.Context, batchID, companyID primitive.ObjectID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.detail == nil || s.detail.ID != batchID {
		return false, nil
	}
	return s.detail.SurveyCompany == companyID, nil
}

func (s *stubRepo) AggregateBatchResponses(_ context.Context, _ []primitive.ObjectID, _, _ int) ([]ResponseView, int64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.responses, s.respTotal, nil
}

func (s *stubRepo) RecalculateBatchStats(_ context.Context, batch *model.QCBatch) (model.QCStats, error) {
	return batch.QCStats, s.err
}

func (s *stubRepo) ListBatchesForStatsRefresh(_ context.Context) ([]model.QCBatch, error) {
	return nil, s.err
}

func day(n int) time.Time {
	return time.Date(2025, 3, n, 0, 0, 0, 0, time.UTC)
}

func fixtures() (primitive.ObjectID, primitive.ObjectID, *stubRepo) {
	companyID := primitive.NewObjectID()
	surveyID := primitive.NewObjectID()
	repo := &stubRepo{
		survey: &model.Survey{ID: surveyID, Company: companyID, Name: "Household Survey"},
	}
	return companyID, surveyID, repo
}

func TestGetBatchesBySurveyPaginationScenario(t *testing.T) {
	// survey with 3 batches dated day 1/2/3; page 1 limit 2 returns the two
	// freshest, newest first
	companyID, surveyID, repo := fixtures()
	repo.batches = []BatchListItem{
		{ID: primitive.NewObjectID(), BatchDate: day(3)},
		{ID: primitive.NewObjectID(), BatchDate: day(2)},
	}
	repo.total = 3

	svc := NewService(repo, NewBatchCache(newMemKV()))

	result, cached, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, surveyID.Hex(),
		ListOptions{Page: 1, Limit: 2, UseCache: true})
	if err != nil {
		t.Fatalf("GetBatchesBySurveyV2: %v", err)
	}
	if cached {
		t.Fatal("first call must be a cache miss")
	}
	if len(result.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(result.Batches))
	}
	if !result.Batches[0].BatchDate.After(result.Batches[1].BatchDate) {
		t.Fatal("batches must be ordered newest first")
	}

	p := result.Pagination
	if p.TotalBatches != 3 || p.TotalPages != 2 || p.CurrentPage != 1 {
		t.Fatalf("bad pagination: %+v", p)
	}
	if !p.HasNextPage || p.HasPrevPage {
		t.Fatalf("bad page booleans: %+v", p)
	}
}

func TestGetBatchesBySurveySecondCallIsCached(t *testing.T) {
	companyID, surveyID, repo := fixtures()
	repo.batches = []BatchListItem{{ID: primitive.NewObjectID(), BatchDate: day(1)}}
	repo.total = 1

	svc := NewService(repo, NewBatchCache(newMemKV()))
	opts := ListOptions{Page: 1, Limit: 10, UseCache: true}

	first, cached, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, surveyID.Hex(), opts)
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}

	second, cached, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, surveyID.Hex(), opts)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !cached {
		t.Fatal("second call must hit the cache")
	}
	if second.Pagination.TotalBatches != first.Pagination.TotalBatches {
		t.Fatal("cached payload differs from computed payload")
	}
	if repo.listCalls != 1 {
		t.Fatalf("aggregation ran %d times, want 1", repo.listCalls)
	}
}

func TestGetBatchesBySurveyCacheOutage(t *testing.T) {
	companyID, surveyID, repo := fixtures()
	repo.batches = []BatchListItem{{ID: primitive.NewObjectID(), BatchDate: day(1)}}
	repo.total = 1

	kv := newMemKV()
	kv.fail = true
	svc := NewService(repo, NewBatchCache(kv))

	result, cached, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, surveyID.Hex(),
		ListOptions{Page: 1, Limit: 10, UseCache: true})
	if err != nil {
		t.Fatalf("endpoint must survive a dead cache store: %v", err)
	}
	if cached {
		t.Fatal("dead cache cannot produce a hit")
	}
	if len(result.Batches) != 1 {
		t.Fatal("data must still come from the database")
	}
}

func TestGetBatchesBySurveyUnknownSurvey(t *testing.T) {
	companyID, _, repo := fixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	_, _, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, primitive.NewObjectID().Hex(),
		ListOptions{Page: 1, Limit: 10})
	if err != ErrSurveyNotFound {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}

	_, _, err = svc.GetBatchesBySurveyV2(context.Background(), companyID, "not-an-id", ListOptions{})
	if err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestGetBatchesBySurveyCrossCompany(t *testing.T) {
	_, surveyID, repo := fixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	// same survey id, different company: must read as not found
	_, _, err := svc.GetBatchesBySurveyV2(context.Background(), primitive.NewObjectID(), surveyID.Hex(),
		ListOptions{Page: 1, Limit: 10})
	if err != ErrSurveyNotFound {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}
}

func detailFixtures() (primitive.ObjectID, *stubRepo, []primitive.ObjectID) {
	companyID := primitive.NewObjectID()
	surveyID := primitive.NewObjectID()

	ids := make([]primitive.ObjectID, 6)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}

	batch := model.QCBatch{
		ID:                 primitive.NewObjectID(),
		Survey:             surveyID,
		Interviewer:        primitive.NewObjectID(),
		BatchDate:          day(5),
		Status:             model.BatchStatusQCPending,
		TotalResponses:     6,
		SampleSize:         3,
		RemainingSize:      3,
		Responses:          ids,
		SampleResponses:    ids[:3],
		RemainingResponses: ids[3:],
		QCStats:            model.QCStats{ApprovedCount: 2, RejectedCount: 1, PendingCount: 0, ApprovalRate: 66.67},
	}

	views := make([]ResponseView, len(ids))
	for i, id := range ids {
		views[i] = ResponseView{ID: id, Status: model.ResponseStatusPending}
	}

	repo := &stubRepo{
		survey:    &model.Survey{ID: surveyID, Company: companyID, Name: "Household Survey"},
		detail:    &BatchDetail{QCBatch: batch, SurveyName: "Household Survey", SurveyCompany: companyID},
		responses: views,
		respTotal: int64(len(views)),
	}
	return companyID, repo, ids
}

func TestGetBatchByIDPartitionsResponses(t *testing.T) {
	companyID, repo, _ := detailFixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	result, cached, err := svc.GetBatchByIDV2(context.Background(), companyID, repo.detail.ID.Hex(), 1, 50)
	if err != nil {
		t.Fatalf("GetBatchByIDV2: %v", err)
	}
	if cached {
		t.Fatal("first call must be a cache miss")
	}

	all := make(map[string]bool, len(result.Responses.All))
	for _, r := range result.Responses.All {
		all[r.ID.Hex()] = true
	}
	seen := make(map[string]string)
	for _, r := range result.Responses.Sample {
		if !all[r.ID.Hex()] {
			t.Fatal("sample must be a subset of all")
		}
		seen[r.ID.Hex()] = "sample"
	}
	for _, r := range result.Responses.Remaining {
		if !all[r.ID.Hex()] {
			t.Fatal("remaining must be a subset of all")
		}
		if seen[r.ID.Hex()] == "sample" {
			t.Fatal("sample and remaining must be disjoint")
		}
	}
	if len(result.Responses.Sample) != 3 || len(result.Responses.Remaining) != 3 {
		t.Fatalf("partition sizes: sample=%d remaining=%d",
			len(result.Responses.Sample), len(result.Responses.Remaining))
	}

	stats := result.Batch.RealTimeStats
	if stats.TotalQCed != 3 {
		t.Fatalf("totalQCed = %d, want approved+rejected = 3", stats.TotalQCed)
	}
	if stats.ApprovalRate != 66.67 {
		t.Fatalf("approvalRate = %v, want persisted snapshot value", stats.ApprovalRate)
	}
}

func TestGetBatchByIDCrossCompanyDenied(t *testing.T) {
	_, repo, _ := detailFixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	_, _, err := svc.GetBatchByIDV2(context.Background(), primitive.NewObjectID(), repo.detail.ID.Hex(), 1, 50)
	if err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestGetBatchByIDCachedHitStillChecksOwnership(t *testing.T) {
	companyID, repo, _ := detailFixtures()
	kv := newMemKV()
	svc := NewService(repo, NewBatchCache(kv))

	// warm the cache as the owning company
	if _, _, err := svc.GetBatchByIDV2(context.Background(), companyID, repo.detail.ID.Hex(), 1, 50); err != nil {
		t.Fatalf("warm-up: %v", err)
	}

	// a different company must not be served the cached payload
	_, _, err := svc.GetBatchByIDV2(context.Background(), primitive.NewObjectID(), repo.detail.ID.Hex(), 1, 50)
	if err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied on cached entry, got %v", err)
	}

	// the owner still gets the hit, and the hit must not load the full
	// batch document again
	before := repo.detailCalls
	_, cached, err := svc.GetBatchByIDV2(context.Background(), companyID, repo.detail.ID.Hex(), 1, 50)
	if err != nil || !cached {
		t.Fatalf("owner should hit the cache: cached=%v err=%v", cached, err)
	}
	if repo.detailCalls != before {
		t.Fatal("a cache hit must check ownership without a full batch load")
	}
}

func TestGetBatchByIDNotFound(t *testing.T) {
	companyID, repo, _ := detailFixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	_, _, err := svc.GetBatchByIDV2(context.Background(), companyID, primitive.NewObjectID().Hex(), 1, 50)
	if err != ErrBatchNotFound {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestGetBatchStats(t *testing.T) {
	companyID, repo, _ := detailFixtures()
	svc := NewService(repo, NewBatchCache(newMemKV()))

	stats, cached, err := svc.GetBatchStatsV2(context.Background(), companyID, repo.detail.ID.Hex())
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	if stats.ApprovedCount != 2 || stats.RejectedCount != 1 || stats.TotalQCed != 3 {
		t.Fatalf("bad stats: %+v", stats)
	}

	_, cached, err = svc.GetBatchStatsV2(context.Background(), companyID, repo.detail.ID.Hex())
	if err != nil || !cached {
		t.Fatalf("second call should be cached: cached=%v err=%v", cached, err)
	}
}

func TestServiceSurfacesRepoErrors(t *testing.T) {
	companyID, surveyID, repo := fixtures()
	repo.err = errors.New("replica set unavailable")
	svc := NewService(repo, NewBatchCache(newMemKV()))

	if _, _, err := svc.GetBatchesBySurveyV2(context.Background(), companyID, surveyID.Hex(),
		ListOptions{Page: 1, Limit: 10}); err == nil {
		t.Fatal("database errors must abort the request")
	}
}

func TestApprovalRate(t *testing.T) {
	cases := []struct {
		approved, rejected int
		want               float64
	}{
		{0, 0, 0},
		{1, 0, 100},
		{0, 1, 0},
		{2, 1, 66.67},
		{1, 2, 33.33},
		{3, 3, 50},
	}
	for _, tc := range cases {
		if got := ApprovalRate(tc.approved, tc.rejected); got != tc.want {
			t.Errorf("ApprovalRate(%d, %d) = %v, want %v", tc.approved, tc.rejected, got, tc.want)
		}
	}
}
