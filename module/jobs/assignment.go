package jobs

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/utils"
)

// AssignmentQueueRefresher maintains the two assignment read models the
// dashboard's work queues are served from. Both are pure recomputations, so
// duplicate runs are wasteful but harmless.
type AssignmentQueueRefresher struct{}

func NewAssignmentQueueRefresher() *AssignmentQueueRefresher {
	return &AssignmentQueueRefresher{}
}

// RefreshInterviewerQueues rebuilds the per-interviewer pending-review
// counters in the assignmentqueues collection.
func (r *AssignmentQueueRefresher) RefreshInterviewerQueues(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"status": model.ResponseStatusPending}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":          "$interviewer",
			"pendingCount": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := config.AnalyticsCollection("surveyresponses").Aggregate(ctx, pipeline)
	if err != nil {
		utils.LogError("Assignment queue refresh failed", err)
		return err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Interviewer interface{} `bson:"_id"`
		Pending     int         `bson:"pendingCount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		utils.LogError("Assignment queue refresh failed", err)
		return err
	}

	queues := config.DB.Collection("assignmentqueues")
	now := time.Now()
	for _, row := range rows {
		_, err := queues.UpdateOne(ctx,
			bson.M{"_id": row.Interviewer},
			bson.M{"$set": bson.M{"pendingCount": row.Pending, "updatedAt": now}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			utils.LogError("Assignment queue upsert failed", err)
			return err
		}
	}

	log.Printf("Assignment queues refreshed for %d interviewers", len(rows))
	return nil
}

// RefreshReviewerQueue rebuilds the per-survey count of batches awaiting QC
// in the reviewqueues collection.
func (r *AssignmentQueueRefresher) RefreshReviewerQueue(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"status": model.BatchStatusQCPending}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":            "$survey",
			"pendingBatches": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := config.AnalyticsCollection("qcbatches").Aggregate(ctx, pipeline)
	if err != nil {
		utils.LogError("Reviewer queue refresh failed", err)
		return err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Survey  interface{} `bson:"_id"`
		Batches int         `bson:"pendingBatches"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		utils.LogError("Reviewer queue refresh failed", err)
		return err
	}

	queues := config.DB.Collection("reviewqueues")
	now := time.Now()
	for _, row := range rows {
		_, err := queues.UpdateOne(ctx,
			bson.M{"_id": row.Survey},
			bson.M{"$set": bson.M{"pendingBatches": row.Batches, "updatedAt": now}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			utils.LogError("Reviewer queue upsert failed", err)
			return err
		}
	}

	log.Printf("Reviewer queue refreshed for %d surveys", len(rows))
	return nil
}
