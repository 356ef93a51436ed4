package models

type ReassignmentStatus string

const (
	ReassignmentSuccess       ReassignmentStatus = "SUCCESS"
	ReassignmentNoCandidate   ReassignmentStatus = "NO_CANDIDATE"
	ReassignmentSkippedMerged ReassignmentStatus = "SKIPPED_MERGED"
)

// Reassignment records one reviewer slot touched during bulk deactivation.
// NewReviewer is empty when the slot was removed without replacement or the
// pull request turned out to be merged.
type Reassignment struct {
	PullRequestID   string             `json:"pull_request_id"`
	PullRequestName string             `json:"pull_request_name"`
	OldReviewer     string             `json:"old_reviewer"`
	NewReviewer     string             `json:"new_reviewer,omitempty"`
	Status          ReassignmentStatus `json:"status"`
}

type FailedDeactivation struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type DeactivationResult struct {
	Deactivated     []string             `json:"deactivated_users"`
	Failed          []FailedDeactivation `json:"failed_deactivations"`
	Reassignments   []Reassignment       `json:"reassigned_prs"`
	TotalOperations int                  `json:"total_operations"`
}
