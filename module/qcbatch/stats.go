package qcbatch

import (
	"math"

	"github.com/vijaygopal97/convergent-server/model"
)

// RealTimeStats is the stats envelope on the batch detail view. It is built
// from the persisted qcStats snapshot, not recomputed live; the background
// refresh job keeps the snapshot fresh.
type RealTimeStats struct {
	ApprovedCount int     `json:"approvedCount"`
	RejectedCount int     `json:"rejectedCount"`
	PendingCount  int     `json:"pendingCount"`
	TotalQCed     int     `json:"totalQCed"`
	ApprovalRate  float64 `json:"approvalRate"`
}

// ApprovalRate is round(approved/(approved+rejected)*100, 2), and exactly 0
// when nothing has been decided yet.
func ApprovalRate(approved, rejected int) float64 {
	qced := approved + rejected
	if qced == 0 {
		return 0
	}
	return math.Round(float64(approved)/float64(qced)*100*100) / 100
}

func buildRealTimeStats(s model.QCStats) RealTimeStats {
	return RealTimeStats{
		ApprovedCount: s.ApprovedCount,
		RejectedCount: s.RejectedCount,
		PendingCount:  s.PendingCount,
		TotalQCed:     s.TotalQCed(),
		ApprovalRate:  s.ApprovalRate,
	}
}
