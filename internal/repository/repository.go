package repository

import (
	"context"
	"errors"

	"prreviewer/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrNotOpen reports that a reviewer-list write matched no OPEN row,
	// i.e. the pull request is merged or gone.
	ErrNotOpen = errors.New("pull request is not open")
)

// ReviewerUpdate is one pull request's final reviewer list computed by the
// bulk deactivation sweep.
type ReviewerUpdate struct {
	PullRequestID string
	Reviewers     models.ReviewerList
}

type Repository interface {
	CreateTeam(ctx context.Context, name string) (models.Team, error)
	GetTeamByName(ctx context.Context, name string) (models.Team, error)
	ListTeamMembers(ctx context.Context, teamName string) ([]models.User, error)

	UpsertUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	SetUserActive(ctx context.Context, id string, active bool) (models.User, error)
	BatchSetActive(ctx context.Context, ids []string, active bool) error
	ActiveTeamMembers(ctx context.Context, teamName, excludeID string) ([]models.User, error)

	CreatePR(ctx context.Context, pr models.PullRequest) (models.PullRequest, error)
	GetPRByID(ctx context.Context, id string) (models.PullRequest, error)
	SetPRMerged(ctx context.Context, id string) (models.PullRequest, error)
	// UpdatePRReviewers persists the list only while the row is still OPEN
	// (single-statement compare-and-set); ErrNotOpen otherwise.
	UpdatePRReviewers(ctx context.Context, prID string, reviewers models.ReviewerList) error
	// ApplyReviewerUpdates runs all updates in one transaction with the same
	// OPEN guard per row and returns the ids of pull requests it skipped.
	ApplyReviewerUpdates(ctx context.Context, updates []ReviewerUpdate) ([]string, error)

	ListOpenPRsByReviewers(ctx context.Context, userIDs []string) ([]models.PullRequest, error)
	ListPRsByReviewer(ctx context.Context, userID string) ([]models.PullRequest, error)
	CountOpenAssignments(ctx context.Context, teamName string, userIDs []string) (map[string]int, error)

	AssignmentStats(ctx context.Context) (models.AssignmentStats, error)
}
