package jobs

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/utils"
)

const duplicatePhoneNote = "Auto-rejected: duplicate respondent phone in survey"

// DuplicatePhoneSweep rejects pending responses that share a respondent
// phone with an earlier response in the same survey, keeping only the first
// submission per (survey, phone). Returns the number of rejected responses.
func DuplicatePhoneSweep(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"status":          model.ResponseStatusPending,
			"respondentPhone": bson.M{"$nin": bson.A{nil, ""}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"survey": "$survey", "phone": "$respondentPhone"},
			"ids":   bson.M{"$push": "$_id"},
			"count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
	}

	cursor, err := config.AnalyticsCollection("surveyresponses").Aggregate(ctx, pipeline)
	if err != nil {
		utils.LogError("Duplicate phone sweep failed", err)
		return 0, err
	}
	defer cursor.Close(ctx)

	var groups []struct {
		IDs []primitive.ObjectID `bson:"ids"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		utils.LogError("Duplicate phone sweep failed", err)
		return 0, err
	}

	var duplicates []primitive.ObjectID
	for _, g := range groups {
		if len(g.IDs) > 1 {
			// the first (oldest) submission survives
			duplicates = append(duplicates, g.IDs[1:]...)
		}
	}
	if len(duplicates) == 0 {
		return 0, nil
	}

	now := time.Now()
	res, err := config.DB.Collection("surveyresponses").UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": duplicates}, "status": model.ResponseStatusPending},
		bson.M{"$set": bson.M{
			"status":     model.ResponseStatusRejected,
			"reviewNote": duplicatePhoneNote,
			"reviewedAt": now,
			"updatedAt":  now,
		}},
	)
	if err != nil {
		utils.LogError("Duplicate phone sweep update failed", err)
		return 0, err
	}

	log.Printf("Duplicate phone sweep rejected %d responses", res.ModifiedCount)
	return res.ModifiedCount, nil
}
