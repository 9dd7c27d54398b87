package qcreview

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/module/qcbatch"
	"github.com/vijaygopal97/convergent-server/utils"
)

var (
	batchRepo  qcbatch.Repository
	batchCache *qcbatch.BatchCache
)

// InitService wires the review handler to the batch repository and cache so
// a review immediately refreshes the reviewed batch's stats snapshot.
func InitService(repo qcbatch.Repository, cache *qcbatch.BatchCache) {
	batchRepo = repo
	batchCache = cache
}

type reviewRequest struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

// ReviewResponseHandler handles PUT /api/qc-responses/:id/review. This is
// the mutation that moves a sampled response to Approved/Rejected; the
// batch's persisted qcStats snapshot is recomputed right after.
func ReviewResponseHandler(c *gin.Context) {
	companyID := c.MustGet("company_id").(primitive.ObjectID)
	reviewerID := c.MustGet("user_id").(primitive.ObjectID)

	if role := c.GetString("user_role"); role != model.RoleAdmin && role != model.RoleQCReviewer {
		utils.SendError(c, http.StatusForbidden, "Only QC reviewers can review responses", nil)
		return
	}

	responseID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid response ID", err)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid review payload", err)
		return
	}
	if req.Decision != model.ResponseStatusApproved && req.Decision != model.ResponseStatusRejected {
		utils.SendError(c, http.StatusBadRequest, "Decision must be Approved or Rejected", nil)
		return
	}

	ctx := c.Request.Context()

	var resp model.SurveyResponse
	err = config.DB.Collection("surveyresponses").
		FindOne(ctx, bson.M{"_id": responseID}).
		Decode(&resp)
	if err == mongo.ErrNoDocuments {
		utils.SendError(c, http.StatusNotFound, "Response not found", nil)
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load response", err)
		return
	}

	survey, err := batchRepo.FindSurveyInCompany(ctx, resp.Survey, companyID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to verify survey", err)
		return
	}
	if survey == nil {
		utils.SendError(c, http.StatusForbidden, "Access denied", nil)
		return
	}

	now := time.Now()
	_, err = config.DB.Collection("surveyresponses").UpdateOne(ctx,
		bson.M{"_id": responseID},
		bson.M{"$set": bson.M{
			"status":     req.Decision,
			"reviewedBy": reviewerID,
			"reviewedAt": now,
			"reviewNote": req.Note,
			"updatedAt":  now,
		}},
	)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to save review", err)
		return
	}

	// refresh the owning batch's stats snapshot and drop its cached views;
	// a failure here is logged but the review itself already succeeded
	if resp.QCBatch != nil {
		refreshBatchStats(c, *resp.QCBatch)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":         responseID,
			"status":     req.Decision,
			"reviewedAt": now,
		},
	})
}

func refreshBatchStats(c *gin.Context, batchID primitive.ObjectID) {
	ctx := c.Request.Context()

	var batch model.QCBatch
	err := config.DB.Collection("qcbatches").
		FindOne(ctx, bson.M{"_id": batchID}).
		Decode(&batch)
	if err != nil {
		utils.LogError("Review: failed to load batch "+batchID.Hex(), err)
		return
	}

	if _, err := batchRepo.RecalculateBatchStats(ctx, &batch); err != nil {
		utils.LogError("Review: failed to refresh stats for batch "+batchID.Hex(), err)
		return
	}
	_ = batchCache.InvalidateBatchDetailsCache(ctx, batchID.Hex())
	_ = batchCache.InvalidateBatchStatsCache(ctx, batchID.Hex())
	batchCache.InvalidateBatchListCache(ctx, batch.Survey.Hex())
}
