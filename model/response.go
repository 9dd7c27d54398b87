package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SurveyResponse is one interview response. It belongs to exactly one survey
// and at most one QC batch; the batch references it by id only.
type SurveyResponse struct {
	ID              primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Survey          primitive.ObjectID     `bson:"survey" json:"survey"`
	Interviewer     primitive.ObjectID     `bson:"interviewer" json:"interviewer"`
	QCBatch         *primitive.ObjectID    `bson:"qcBatch,omitempty" json:"qcBatch,omitempty"`
	Status          string                 `bson:"status" json:"status"`
	RespondentPhone string                 `bson:"respondentPhone,omitempty" json:"respondentPhone,omitempty"`
	Answers         map[string]interface{} `bson:"answers,omitempty" json:"answers,omitempty"`
	Location        string                 `bson:"location,omitempty" json:"location,omitempty"`
	ReviewedBy      *primitive.ObjectID    `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time             `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewNote      string                 `bson:"reviewNote,omitempty" json:"reviewNote,omitempty"`
	CreatedAt       time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt" json:"updatedAt"`
}
