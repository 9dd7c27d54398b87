package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QCStats is the persisted stats snapshot on a batch. It is recomputed by the
// background refresh job and by review actions, never on the read path.
type QCStats struct {
	ApprovedCount int     `bson:"approvedCount" json:"approvedCount"`
	RejectedCount int     `bson:"rejectedCount" json:"rejectedCount"`
	PendingCount  int     `bson:"pendingCount" json:"pendingCount"`
	ApprovalRate  float64 `bson:"approvalRate" json:"approvalRate"`
}

// BatchConfig captures the sampling parameters the batch was built with.
type BatchConfig struct {
	SamplePercentage int    `bson:"samplePercentage,omitempty" json:"samplePercentage,omitempty"`
	SamplingMethod   string `bson:"samplingMethod,omitempty" json:"samplingMethod,omitempty"`
	MinSampleSize    int    `bson:"minSampleSize,omitempty" json:"minSampleSize,omitempty"`
}

// QCBatch groups one interviewer's responses for one survey on one date,
// sampled for quality-control review. Responses are referenced by id, not
// embedded; sampleResponses and remainingResponses partition responses.
type QCBatch struct {
	ID                    primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Survey                primitive.ObjectID     `bson:"survey" json:"survey"`
	Interviewer           primitive.ObjectID     `bson:"interviewer" json:"interviewer"`
	BatchDate             time.Time              `bson:"batchDate" json:"batchDate"`
	Status                string                 `bson:"status" json:"status"`
	TotalResponses        int                    `bson:"totalResponses" json:"totalResponses"`
	SampleSize            int                    `bson:"sampleSize" json:"sampleSize"`
	RemainingSize         int                    `bson:"remainingSize" json:"remainingSize"`
	QCStats               QCStats                `bson:"qcStats" json:"qcStats"`
	RemainingDecision     string                 `bson:"remainingDecision,omitempty" json:"remainingDecision,omitempty"`
	ProcessingStartedAt   *time.Time             `bson:"processingStartedAt,omitempty" json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time             `bson:"processingCompletedAt,omitempty" json:"processingCompletedAt,omitempty"`
	BatchConfig           BatchConfig            `bson:"batchConfig,omitempty" json:"batchConfig,omitempty"`
	Metadata              map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	SampleResponses       []primitive.ObjectID   `bson:"sampleResponses" json:"-"`
	RemainingResponses    []primitive.ObjectID   `bson:"remainingResponses" json:"-"`
	Responses             []primitive.ObjectID   `bson:"responses" json:"-"`
	CreatedAt             time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// TotalQCed is the number of sample responses with a final decision.
func (s QCStats) TotalQCed() int {
	return s.ApprovedCount + s.RejectedCount
}
