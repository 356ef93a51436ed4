package seed

import (
	"context"
	"errors"
	"log/slog"

	"prreviewer/internal/models"
	"prreviewer/internal/service"
)

type demoTeam struct {
	name    string
	members []models.TeamMember
}

var demoTeams = []demoTeam{
	{
		name: "backend",
		members: []models.TeamMember{
			{UserID: "1", Username: "Alice", IsActive: true},
			{UserID: "2", Username: "Bob", IsActive: true},
			{UserID: "3", Username: "Charlie", IsActive: true},
			{UserID: "4", Username: "David", IsActive: false},
		},
	},
	{
		name: "frontend",
		members: []models.TeamMember{
			{UserID: "5", Username: "Eve", IsActive: true},
			{UserID: "6", Username: "Frank", IsActive: true},
			{UserID: "7", Username: "Grace", IsActive: true},
		},
	},
	{
		name: "mobile",
		members: []models.TeamMember{
			{UserID: "8", Username: "Henry", IsActive: true},
			{UserID: "9", Username: "Ivy", IsActive: true},
		},
	},
}

type demoPR struct {
	id, name, authorID string
}

var demoPRs = []demoPR{
	{id: "pr-1", name: "Add user authentication", authorID: "1"},
	{id: "pr-2", name: "Fix database connection pool", authorID: "2"},
	{id: "pr-3", name: "Update landing page", authorID: "5"},
}

// Run populates demo teams and pull requests for local experimentation.
// It bails out quietly if the data is already there.
func Run(ctx context.Context, svc *service.Service, logger *slog.Logger) error {
	for _, t := range demoTeams {
		if _, err := svc.CreateTeam(ctx, t.name, t.members); err != nil {
			if errors.Is(err, service.ErrTeamExists) {
				logger.Info("demo data already seeded, skipping", "team", t.name)
				return nil
			}
			return err
		}
	}

	for _, pr := range demoPRs {
		if _, err := svc.CreatePR(ctx, pr.id, pr.name, pr.authorID); err != nil && !errors.Is(err, service.ErrPRExists) {
			return err
		}
	}

	logger.Info("demo data seeded", "teams", len(demoTeams), "prs", len(demoPRs))
	return nil
}
