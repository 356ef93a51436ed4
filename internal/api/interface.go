package api

import (
	"context"

	"prreviewer/internal/models"
)

type ServiceInterface interface {
	CreateTeam(ctx context.Context, name string, members []models.TeamMember) (models.TeamWithMembers, error)
	GetTeam(ctx context.Context, name string) (models.TeamWithMembers, error)
	SetUserActive(ctx context.Context, userID string, active bool) (models.User, error)
	CreatePR(ctx context.Context, prID, prName, authorID string) (models.PullRequest, error)
	MergePR(ctx context.Context, prID string) (models.PullRequest, error)
	ReassignReviewer(ctx context.Context, prID, oldUserID string) (models.PullRequest, string, error)
	ListPRsForReviewer(ctx context.Context, userID string) ([]models.PullRequestShort, error)
	DeactivateUsers(ctx context.Context, teamName string, userIDs []string) (models.DeactivationResult, error)
	AssignmentStats(ctx context.Context) (models.AssignmentStats, error)
}
