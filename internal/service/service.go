package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"prreviewer/internal/models"
	"prreviewer/internal/repository"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrTeamNotFound = errors.New("team not found")
	ErrUserNotFound = errors.New("user not found")
	ErrPRNotFound   = errors.New("pull request not found")
	ErrTeamExists   = errors.New("team already exists")
	ErrPRExists     = errors.New("pull request already exists")
	ErrPRMerged     = errors.New("cannot modify merged PR")
	ErrNotAssigned  = errors.New("reviewer is not assigned to this PR")
	ErrNoCandidate  = errors.New("no active replacement candidate in team")
)

const defaultMaxReviewers = 2

type Service struct {
	repo         repository.Repository
	picker       ReviewerPicker
	logger       *slog.Logger
	maxReviewers int
}

func NewService(r repository.Repository, picker ReviewerPicker, logger *slog.Logger, maxReviewers int) *Service {
	if picker == nil {
		picker = NewRandomPicker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxReviewers <= 0 {
		maxReviewers = defaultMaxReviewers
	}
	return &Service{
		repo:         r,
		picker:       picker,
		logger:       logger,
		maxReviewers: maxReviewers,
	}
}

func (s *Service) CreateTeam(ctx context.Context, name string, members []models.TeamMember) (models.TeamWithMembers, error) {
	s.logger.Info("creating team", "name", name, "members", len(members))

	if name == "" {
		return models.TeamWithMembers{}, fmt.Errorf("%w: team name empty", ErrBadRequest)
	}

	if _, err := s.repo.CreateTeam(ctx, name); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Warn("team already exists", "name", name)
			return models.TeamWithMembers{}, fmt.Errorf("%w: %s", ErrTeamExists, name)
		}
		s.logger.Error("failed to create team", "error", err, "name", name)
		return models.TeamWithMembers{}, err
	}

	// Members are upserted: re-submitting an existing user id moves the
	// user onto this team and overwrites username and active flag.
	for _, m := range members {
		if m.UserID == "" {
			return models.TeamWithMembers{}, fmt.Errorf("%w: member user_id empty", ErrBadRequest)
		}
		u := models.User{ID: m.UserID, Username: m.Username, TeamName: name, IsActive: m.IsActive}
		if _, err := s.repo.UpsertUser(ctx, u); err != nil {
			s.logger.Error("failed to upsert team member", "error", err, "user_id", m.UserID, "team", name)
			return models.TeamWithMembers{}, err
		}
	}

	s.logger.Info("team created successfully", "name", name, "members", len(members))
	return s.GetTeam(ctx, name)
}

func (s *Service) GetTeam(ctx context.Context, name string) (models.TeamWithMembers, error) {
	team, err := s.repo.GetTeamByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TeamWithMembers{}, fmt.Errorf("%w: %s", ErrTeamNotFound, name)
		}
		s.logger.Error("failed to get team", "error", err, "name", name)
		return models.TeamWithMembers{}, err
	}

	users, err := s.repo.ListTeamMembers(ctx, team.Name)
	if err != nil {
		s.logger.Error("failed to list team members", "error", err, "name", name)
		return models.TeamWithMembers{}, err
	}

	res := models.TeamWithMembers{Name: team.Name, Members: make([]models.TeamMember, 0, len(users))}
	for _, u := range users {
		res.Members = append(res.Members, models.TeamMember{UserID: u.ID, Username: u.Username, IsActive: u.IsActive})
	}
	return res, nil
}

func (s *Service) SetUserActive(ctx context.Context, userID string, active bool) (models.User, error) {
	s.logger.Info("setting user active flag", "user_id", userID, "is_active", active)

	if userID == "" {
		return models.User{}, fmt.Errorf("%w: user_id empty", ErrBadRequest)
	}

	u, err := s.repo.SetUserActive(ctx, userID, active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("user not found", "user_id", userID)
			return models.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		s.logger.Error("failed to set user active flag", "error", err, "user_id", userID)
		return models.User{}, err
	}
	return u, nil
}

func (s *Service) CreatePR(ctx context.Context, prID, prName, authorID string) (models.PullRequest, error) {
	s.logger.Info("creating PR", "pr_id", prID, "author_id", authorID)

	if prID == "" || prName == "" || authorID == "" {
		return models.PullRequest{}, fmt.Errorf("%w: pull_request_id, pull_request_name and author_id are required", ErrBadRequest)
	}

	author, err := s.repo.GetUserByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("author not found", "author_id", authorID)
			return models.PullRequest{}, fmt.Errorf("%w: author %s", ErrUserNotFound, authorID)
		}
		s.logger.Error("failed to get author", "error", err, "author_id", authorID)
		return models.PullRequest{}, err
	}

	reviewers, err := s.assignReviewers(ctx, author, s.maxReviewers)
	if err != nil {
		return models.PullRequest{}, err
	}

	pr, err := s.repo.CreatePR(ctx, models.PullRequest{
		ID:        prID,
		Name:      prName,
		AuthorID:  authorID,
		Status:    models.PRStatusOpen,
		Reviewers: reviewers,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Warn("PR id already exists", "pr_id", prID)
			return models.PullRequest{}, fmt.Errorf("%w: %s", ErrPRExists, prID)
		}
		s.logger.Error("failed to create PR", "error", err, "pr_id", prID)
		return models.PullRequest{}, err
	}

	s.logger.Info("PR created successfully", "pr_id", pr.ID, "reviewers_count", len(pr.Reviewers), "reviewer_ids", pr.Reviewers)
	return pr, nil
}

// assignReviewers draws up to max distinct active teammates of the author,
// uniformly at random. An empty pool yields an empty list; a pull request
// may legitimately start with no reviewers.
func (s *Service) assignReviewers(ctx context.Context, author models.User, max int) (models.ReviewerList, error) {
	candidates, err := s.repo.ActiveTeamMembers(ctx, author.TeamName, author.ID)
	if err != nil {
		s.logger.Error("failed to get team candidates", "error", err, "team", author.TeamName)
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, u := range candidates {
		ids = append(ids, u.ID)
	}

	// The reviewers column is NOT NULL; an empty pick must persist as an
	// empty array, never as SQL NULL.
	reviewers := models.ReviewerList(s.picker.Pick(ids, max))
	if reviewers == nil {
		reviewers = models.ReviewerList{}
	}
	return reviewers, nil
}

func (s *Service) ReassignReviewer(ctx context.Context, prID, oldUserID string) (models.PullRequest, string, error) {
	s.logger.Info("reassigning reviewer", "pr_id", prID, "old_user_id", oldUserID)

	pr, err := s.repo.GetPRByID(ctx, prID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("PR not found for reassignment", "pr_id", prID)
			return models.PullRequest{}, "", fmt.Errorf("%w: %s", ErrPRNotFound, prID)
		}
		s.logger.Error("failed to get PR", "error", err, "pr_id", prID)
		return models.PullRequest{}, "", err
	}

	if pr.Status == models.PRStatusMerged {
		s.logger.Warn("attempt to reassign reviewer on merged PR", "pr_id", prID)
		return models.PullRequest{}, "", ErrPRMerged
	}

	if !pr.Reviewers.Contains(oldUserID) {
		s.logger.Warn("old reviewer not assigned to PR", "pr_id", prID, "user_id", oldUserID)
		return models.PullRequest{}, "", ErrNotAssigned
	}

	oldUser, err := s.repo.GetUserByID(ctx, oldUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("old reviewer not found", "user_id", oldUserID)
			return models.PullRequest{}, "", fmt.Errorf("%w: %s", ErrUserNotFound, oldUserID)
		}
		s.logger.Error("failed to get old reviewer", "error", err, "user_id", oldUserID)
		return models.PullRequest{}, "", err
	}

	candidates, err := s.repo.ActiveTeamMembers(ctx, oldUser.TeamName, oldUserID)
	if err != nil {
		s.logger.Error("failed to get team candidates", "error", err, "team", oldUser.TeamName)
		return models.PullRequest{}, "", err
	}

	pool := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if u.ID == pr.AuthorID || pr.Reviewers.Contains(u.ID) {
			continue
		}
		pool = append(pool, u.ID)
	}

	newID, ok := s.picker.PickOne(pool)
	if !ok {
		s.logger.Warn("no available candidates for reassignment", "pr_id", prID, "old_user_id", oldUserID, "team", oldUser.TeamName)
		return models.PullRequest{}, "", ErrNoCandidate
	}

	reviewers := pr.Reviewers.Clone()
	reviewers.Replace(oldUserID, newID)

	if err := s.repo.UpdatePRReviewers(ctx, prID, reviewers); err != nil {
		if errors.Is(err, repository.ErrNotOpen) {
			// A merge won the race between our status check and the write.
			s.logger.Warn("PR merged while reassigning", "pr_id", prID)
			return models.PullRequest{}, "", ErrPRMerged
		}
		s.logger.Error("failed to replace reviewer", "error", err, "pr_id", prID, "old_user", oldUserID, "new_user", newID)
		return models.PullRequest{}, "", err
	}

	pr.Reviewers = reviewers
	s.logger.Info("reviewer reassigned successfully", "pr_id", prID, "old_user_id", oldUserID, "new_user_id", newID)
	return pr, newID, nil
}

func (s *Service) MergePR(ctx context.Context, prID string) (models.PullRequest, error) {
	s.logger.Info("merging PR", "pr_id", prID)

	pr, err := s.repo.GetPRByID(ctx, prID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("PR not found for merge", "pr_id", prID)
			return models.PullRequest{}, fmt.Errorf("%w: %s", ErrPRNotFound, prID)
		}
		s.logger.Error("failed to get PR", "error", err, "pr_id", prID)
		return models.PullRequest{}, err
	}

	if pr.Status == models.PRStatusMerged {
		s.logger.Info("PR already merged", "pr_id", prID)
		return pr, nil
	}

	merged, err := s.repo.SetPRMerged(ctx, prID)
	if err != nil {
		if errors.Is(err, repository.ErrNotOpen) {
			// Concurrent merge already flipped the status; re-read and return.
			return s.repo.GetPRByID(ctx, prID)
		}
		s.logger.Error("failed to set PR status to merged", "error", err, "pr_id", prID)
		return models.PullRequest{}, err
	}

	s.logger.Info("PR merged successfully", "pr_id", prID)
	return merged, nil
}

func (s *Service) ListPRsForReviewer(ctx context.Context, userID string) ([]models.PullRequestShort, error) {
	s.logger.Debug("listing PRs for reviewer", "user_id", userID)

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		s.logger.Error("failed to get user", "error", err, "user_id", userID)
		return nil, err
	}

	prs, err := s.repo.ListPRsByReviewer(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list PRs for reviewer", "error", err, "user_id", userID)
		return nil, err
	}

	out := make([]models.PullRequestShort, 0, len(prs))
	for _, pr := range prs {
		out = append(out, pr.Short())
	}
	return out, nil
}

func (s *Service) AssignmentStats(ctx context.Context) (models.AssignmentStats, error) {
	stats, err := s.repo.AssignmentStats(ctx)
	if err != nil {
		s.logger.Error("failed to get assignment stats", "error", err)
		return models.AssignmentStats{}, err
	}
	return stats, nil
}
