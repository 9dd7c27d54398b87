package qcbatch

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
)

// ListFilters narrows the batch list. Field order matters: the struct is
// hashed into the cache key, so keep it stable.
type ListFilters struct {
	Status        string `json:"status"`
	InterviewerID string `json:"interviewerId"`
}

// UserRef is the joined interviewer projection used by the read views.
type UserRef struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name,omitempty" json:"name,omitempty"`
	Email string             `bson:"email,omitempty" json:"email,omitempty"`
}

type SurveyRef struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

// BatchListItem is one row of the denormalized batch list. The full response
// id arrays are deliberately left out; only their count survives projection.
type BatchListItem struct {
	ID                primitive.ObjectID `bson:"_id" json:"id"`
	BatchDate         time.Time          `bson:"batchDate" json:"batchDate"`
	Status            string             `bson:"status" json:"status"`
	TotalResponses    int                `bson:"totalResponses" json:"totalResponses"`
	SampleSize        int                `bson:"sampleSize" json:"sampleSize"`
	RemainingSize     int                `bson:"remainingSize" json:"remainingSize"`
	RemainingDecision string             `bson:"remainingDecision,omitempty" json:"remainingDecision,omitempty"`
	Interviewer       *UserRef           `bson:"interviewer,omitempty" json:"interviewer,omitempty"`
	SurveyName        string             `bson:"surveyName,omitempty" json:"surveyName,omitempty"`
	ApprovedCount     int                `bson:"approvedCount" json:"approvedCount"`
	RejectedCount     int                `bson:"rejectedCount" json:"rejectedCount"`
	PendingCount      int                `bson:"pendingCount" json:"pendingCount"`
	ApprovalRate      float64            `bson:"approvalRate" json:"approvalRate"`
	ResponseCount     int                `bson:"responseCount" json:"responseCount"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
}

// ResponseView is one row of a batch's paginated response page.
type ResponseView struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	Status          string             `bson:"status" json:"status"`
	Interviewer     *UserRef           `bson:"interviewer,omitempty" json:"interviewer,omitempty"`
	RespondentPhone string             `bson:"respondentPhone,omitempty" json:"respondentPhone,omitempty"`
	Location        string             `bson:"location,omitempty" json:"location,omitempty"`
	ReviewedAt      *time.Time         `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewNote      string             `bson:"reviewNote,omitempty" json:"reviewNote,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// BatchDetail is a batch plus the populated survey/interviewer display fields
// the detail endpoint needs for its ownership check and header block.
type BatchDetail struct {
	model.QCBatch
	SurveyName       string
	SurveyCompany    primitive.ObjectID
	InterviewerName  string
	InterviewerEmail string
}

// Repository is the data access surface of the QC batch read model.
type Repository interface {
	FindSurveyInCompany(ctx context.Context, surveyID, companyID primitive.ObjectID) (*model.Survey, error)
	AggregateBatchList(ctx context.Context, surveyID primitive.ObjectID, f ListFilters, page, limit int) ([]BatchListItem, int64, error)
	FindBatchByID(ctx context.Context, batchID primitive.ObjectID) (*BatchDetail, error)
	BatchInCompany(ctx context.Context, batchID, companyID primitive.ObjectID) (bool, error)
	AggregateBatchResponses(ctx context.Context, ids []primitive.ObjectID, page, limit int) ([]ResponseView, int64, error)
	RecalculateBatchStats(ctx context.Context, batch *model.QCBatch) (model.QCStats, error)
	ListBatchesForStatsRefresh(ctx context.Context) ([]model.QCBatch, error)
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) FindSurveyInCompany(ctx context.Context, surveyID, companyID primitive.ObjectID) (*model.Survey, error) {
	var survey model.Survey
	err := config.DB.Collection("surveys").
		FindOne(ctx, bson.M{"_id": surveyID, "company": companyID}).
		Decode(&survey)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

// statusCountExpr pulls the count for one status out of the grouped
// statusCounts array, defaulting to 0 when the status never occurred.
func statusCountExpr(status string) bson.M {
	return bson.M{"$ifNull": bson.A{
		bson.M{"$arrayElemAt": bson.A{
			bson.M{"$map": bson.M{
				"input": bson.M{"$filter": bson.M{
					"input": "$statusCounts",
					"cond":  bson.M{"$eq": bson.A{"$$this._id", status}},
				}},
				"in": "$$this.count",
			}},
			0,
		}},
		0,
	}}
}

// AggregateBatchList computes the denormalized, paginated batch list for one
// survey in a single round trip: match, sort newest-first, join interviewer
// and survey name, count sample response statuses, derive the approval rate,
// then facet into {total, page slice}.
func (r *repositoryImpl) AggregateBatchList(ctx context.Context, surveyID primitive.ObjectID, f ListFilters, page, limit int) ([]BatchListItem, int64, error) {
	match := bson.M{"survey": surveyID}
	if f.Status != "" {
		match["status"] = f.Status
	}
	if f.InterviewerID != "" {
		if oid, err := primitive.ObjectIDFromHex(f.InterviewerID); err == nil {
			match["interviewer"] = oid
		}
	}

	skip := (page - 1) * limit

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "batchDate", Value: -1}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "interviewer",
			"foreignField": "_id",
			"as":           "interviewerDoc",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$interviewerDoc",
			"preserveNullAndEmptyArrays": true,
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "surveys",
			"localField":   "survey",
			"foreignField": "_id",
			"as":           "surveyDoc",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$surveyDoc",
			"preserveNullAndEmptyArrays": true,
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": "surveyresponses",
			"let":  bson.M{"sample": bson.M{"$ifNull": bson.A{"$sampleResponses", bson.A{}}}},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$in": bson.A{"$_id", "$$sample"}}}},
				bson.M{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
			},
			"as": "statusCounts",
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"approvedCount": statusCountExpr(model.ResponseStatusApproved),
			"rejectedCount": statusCountExpr(model.ResponseStatusRejected),
			"pendingCount":  statusCountExpr(model.ResponseStatusPending),
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"approvalRate": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{bson.M{"$add": bson.A{"$approvedCount", "$rejectedCount"}}, 0}},
				0,
				bson.M{"$round": bson.A{
					bson.M{"$multiply": bson.A{
						bson.M{"$divide": bson.A{"$approvedCount", bson.M{"$add": bson.A{"$approvedCount", "$rejectedCount"}}}},
						100,
					}},
					2,
				}},
			}},
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"batchDate":         1,
			"status":            1,
			"totalResponses":    1,
			"sampleSize":        1,
			"remainingSize":     1,
			"remainingDecision": 1,
			"createdAt":         1,
			"approvedCount":     1,
			"rejectedCount":     1,
			"pendingCount":      1,
			"approvalRate":      1,
			"surveyName":        "$surveyDoc.name",
			"interviewer": bson.M{
				"_id":  "$interviewerDoc._id",
				"name": "$interviewerDoc.name",
			},
			"responseCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$responses", bson.A{}}}},
		}}},
		bson.D{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data":     bson.A{bson.M{"$skip": skip}, bson.M{"$limit": limit}},
		}}},
	}

	cursor, err := config.AnalyticsCollection("qcbatches").
		Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []BatchListItem `bson:"data"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}
	if len(results) == 0 {
		return []BatchListItem{}, 0, nil
	}

	var total int64
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}
	return results[0].Data, total, nil
}

// FindBatchByID loads one batch and populates the survey name/company and
// interviewer name/email the detail view needs.
func (r *repositoryImpl) FindBatchByID(ctx context.Context, batchID primitive.ObjectID) (*BatchDetail, error) {
	detail := &BatchDetail{}
	err := config.AnalyticsCollection("qcbatches").
		FindOne(ctx, bson.M{"_id": batchID}).
		Decode(&detail.QCBatch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var survey model.Survey
	if err := config.DB.Collection("surveys").
		FindOne(ctx, bson.M{"_id": detail.Survey}).
		Decode(&survey); err == nil {
		detail.SurveyName = survey.Name
		detail.SurveyCompany = survey.Company
	} else if err != mongo.ErrNoDocuments {
		return nil, err
	}

	var interviewer model.User
	if err := config.DB.Collection("users").
		FindOne(ctx, bson.M{"_id": detail.Interviewer}).
		Decode(&interviewer); err == nil {
		detail.InterviewerName = interviewer.Name
		detail.InterviewerEmail = interviewer.Email
	} else if err != mongo.ErrNoDocuments {
		return nil, err
	}

	return detail, nil
}

// BatchInCompany reports whether the batch's survey belongs to the company.
// Both reads are projected point lookups; this runs on every cache hit, so
// it must stay far cheaper than the aggregations the cache avoids.
func (r *repositoryImpl) BatchInCompany(ctx context.Context, batchID, companyID primitive.ObjectID) (bool, error) {
	var batch struct {
		Survey primitive.ObjectID `bson:"survey"`
	}
	err := config.DB.Collection("qcbatches").
		FindOne(ctx, bson.M{"_id": batchID},
			options.FindOne().SetProjection(bson.M{"survey": 1})).
		Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = config.DB.Collection("surveys").
		FindOne(ctx, bson.M{"_id": batch.Survey, "company": companyID},
			options.FindOne().SetProjection(bson.M{"_id": 1})).
		Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AggregateBatchResponses pages through the given response ids with the
// interviewer display fields joined in, faceted into {total, page slice}.
func (r *repositoryImpl) AggregateBatchResponses(ctx context.Context, ids []primitive.ObjectID, page, limit int) ([]ResponseView, int64, error) {
	if len(ids) == 0 {
		return []ResponseView{}, 0, nil
	}

	skip := (page - 1) * limit

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": ids}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "interviewer",
			"foreignField": "_id",
			"as":           "interviewerDoc",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$interviewerDoc",
			"preserveNullAndEmptyArrays": true,
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"status":          1,
			"respondentPhone": 1,
			"location":        1,
			"reviewedAt":      1,
			"reviewNote":      1,
			"createdAt":       1,
			"interviewer": bson.M{
				"_id":  "$interviewerDoc._id",
				"name": "$interviewerDoc.name",
			},
		}}},
		bson.D{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data":     bson.A{bson.M{"$skip": skip}, bson.M{"$limit": limit}},
		}}},
	}

	cursor, err := config.AnalyticsCollection("surveyresponses").
		Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []ResponseView `bson:"data"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}
	if len(results) == 0 {
		return []ResponseView{}, 0, nil
	}

	var total int64
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}
	return results[0].Data, total, nil
}

// RecalculateBatchStats recomputes the persisted qcStats snapshot for one
// batch by counting its sample response statuses, then writes it back.
func (r *repositoryImpl) RecalculateBatchStats(ctx context.Context, batch *model.QCBatch) (model.QCStats, error) {
	var stats model.QCStats

	sample := batch.SampleResponses
	if len(sample) > 0 {
		pipeline := mongo.Pipeline{
			bson.D{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": sample}}}},
			bson.D{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
		}
		cursor, err := config.AnalyticsCollection("surveyresponses").Aggregate(ctx, pipeline)
		if err != nil {
			return stats, err
		}
		defer cursor.Close(ctx)

		var counts []struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cursor.All(ctx, &counts); err != nil {
			return stats, err
		}
		for _, c := range counts {
			switch c.Status {
			case model.ResponseStatusApproved:
				stats.ApprovedCount = c.Count
			case model.ResponseStatusRejected:
				stats.RejectedCount = c.Count
			case model.ResponseStatusPending:
				stats.PendingCount = c.Count
			}
		}
	}
	stats.ApprovalRate = ApprovalRate(stats.ApprovedCount, stats.RejectedCount)

	_, err := config.DB.Collection("qcbatches").UpdateOne(ctx,
		bson.M{"_id": batch.ID},
		bson.M{"$set": bson.M{"qcStats": stats, "updatedAt": time.Now()}},
	)
	if err != nil {
		return stats, err
	}
	batch.QCStats = stats
	return stats, nil
}

// ListBatchesForStatsRefresh returns every batch that is closed for stats,
// i.e. anything not still collecting.
func (r *repositoryImpl) ListBatchesForStatsRefresh(ctx context.Context) ([]model.QCBatch, error) {
	opts := options.Find().SetProjection(bson.M{
		"_id":             1,
		"status":          1,
		"sampleResponses": 1,
	})
	cursor, err := config.AnalyticsCollection("qcbatches").
		Find(ctx, bson.M{"status": bson.M{"$ne": model.BatchStatusCollecting}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var batches []model.QCBatch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}
