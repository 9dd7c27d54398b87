package model

// QC batch lifecycle. A batch in "collecting" is still accepting responses and
// has no stable stats; every other status is closed for stats purposes.
const (
	BatchStatusCollecting = "collecting"
	BatchStatusProcessing = "processing"
	BatchStatusQCPending  = "qc_pending"
	BatchStatusCompleted  = "completed"
)

// Survey response review states.
const (
	ResponseStatusPending  = "Pending_Approval"
	ResponseStatusApproved = "Approved"
	ResponseStatusRejected = "Rejected"
)

// Decision for the remaining (unsampled) responses of a batch once QC closes.
const (
	RemainingDecisionPending     = "pending"
	RemainingDecisionApproveAll  = "approve_all"
	RemainingDecisionRejectAll   = "reject_all"
	RemainingDecisionManualCheck = "manual_check"
)

const (
	RoleAdmin       = "admin"
	RoleQCReviewer  = "qc_reviewer"
	RoleInterviewer = "interviewer"
)
