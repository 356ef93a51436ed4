package service

import (
	"context"
	"errors"
	"fmt"

	"prreviewer/internal/models"
	"prreviewer/internal/repository"
)

// teamSnapshot caches one team's active roster and open-review load for the
// duration of a deactivation sweep. Loads are advanced in memory as the sweep
// assigns, so later slots in the same batch see earlier picks.
type teamSnapshot struct {
	members []models.User // active, sorted by id
	loads   map[string]int
}

// DeactivateUsers deactivates a batch of team members after migrating every
// open review slot they hold. Invalid ids degrade to per-id failures; an
// unknown team aborts the whole call. Reviewer-list rewrites are committed in
// one transaction before the active flags are flipped.
func (s *Service) DeactivateUsers(ctx context.Context, teamName string, userIDs []string) (models.DeactivationResult, error) {
	s.logger.Info("bulk deactivation started", "team", teamName, "user_ids", userIDs)

	result := models.DeactivationResult{
		Deactivated:   []string{},
		Failed:        []models.FailedDeactivation{},
		Reassignments: []models.Reassignment{},
	}

	if _, err := s.repo.GetTeamByName(ctx, teamName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("team not found for bulk deactivation", "team", teamName)
			return result, fmt.Errorf("%w: %s", ErrTeamNotFound, teamName)
		}
		s.logger.Error("failed to get team", "error", err, "team", teamName)
		return result, err
	}

	valid, failed, err := s.partitionUsers(ctx, teamName, userIDs)
	if err != nil {
		return result, err
	}
	result.Failed = failed

	if len(valid) == 0 {
		s.logger.Info("bulk deactivation: no valid users", "team", teamName, "failed", len(failed))
		return result, nil
	}

	validSet := make(map[string]bool, len(valid))
	for _, id := range valid {
		validSet[id] = true
	}

	prs, err := s.repo.ListOpenPRsByReviewers(ctx, valid)
	if err != nil {
		s.logger.Error("failed to discover affected PRs", "error", err, "team", teamName)
		return result, err
	}

	snapshots := make(map[string]*teamSnapshot)
	authorTeams := make(map[string]string)
	updates := make([]repository.ReviewerUpdate, 0, len(prs))
	entriesByPR := make(map[string][]int)

	for i := range prs {
		pr := &prs[i]

		affected := make([]string, 0, len(pr.Reviewers))
		for _, id := range pr.Reviewers {
			if validSet[id] {
				affected = append(affected, id)
			}
		}
		if len(affected) == 0 {
			continue
		}

		// Re-check defensively; a merge may have raced discovery.
		if pr.Status != models.PRStatusOpen {
			for _, old := range affected {
				result.Reassignments = append(result.Reassignments, models.Reassignment{
					PullRequestID:   pr.ID,
					PullRequestName: pr.Name,
					OldReviewer:     old,
					Status:          models.ReassignmentSkippedMerged,
				})
			}
			continue
		}

		team, ok := authorTeams[pr.AuthorID]
		if !ok {
			author, err := s.repo.GetUserByID(ctx, pr.AuthorID)
			if err != nil {
				s.logger.Error("failed to get PR author", "error", err, "pr_id", pr.ID, "author_id", pr.AuthorID)
				return result, err
			}
			team = author.TeamName
			authorTeams[pr.AuthorID] = team
		}

		snap, err := s.teamSnapshot(ctx, snapshots, team)
		if err != nil {
			return result, err
		}

		for _, old := range affected {
			newID := pickLeastLoaded(snap, func(id string) bool {
				return validSet[id] || id == pr.AuthorID || pr.Reviewers.Contains(id)
			})

			entry := models.Reassignment{
				PullRequestID:   pr.ID,
				PullRequestName: pr.Name,
				OldReviewer:     old,
			}
			if newID != "" {
				pr.Reviewers.Replace(old, newID)
				snap.loads[newID]++
				entry.NewReviewer = newID
				entry.Status = models.ReassignmentSuccess
			} else {
				pr.Reviewers = pr.Reviewers.Remove(old)
				entry.Status = models.ReassignmentNoCandidate
			}
			entriesByPR[pr.ID] = append(entriesByPR[pr.ID], len(result.Reassignments))
			result.Reassignments = append(result.Reassignments, entry)
		}

		updates = append(updates, repository.ReviewerUpdate{PullRequestID: pr.ID, Reviewers: pr.Reviewers.Clone()})
	}

	skipped, err := s.repo.ApplyReviewerUpdates(ctx, updates)
	if err != nil {
		s.logger.Error("failed to commit reassignments", "error", err, "team", teamName)
		return result, err
	}
	for _, prID := range skipped {
		// The CAS lost to a merge after the sweep decided; downgrade the
		// slots to skipped since nothing was written.
		for _, idx := range entriesByPR[prID] {
			result.Reassignments[idx].NewReviewer = ""
			result.Reassignments[idx].Status = models.ReassignmentSkippedMerged
		}
	}

	if err := s.repo.BatchSetActive(ctx, valid, false); err != nil {
		s.logger.Error("failed to deactivate users", "error", err, "team", teamName, "user_ids", valid)
		return result, err
	}

	result.Deactivated = valid
	result.TotalOperations = len(valid) + len(result.Reassignments)

	s.logger.Info("bulk deactivation finished",
		"team", teamName,
		"deactivated", len(result.Deactivated),
		"failed", len(result.Failed),
		"reassignments", len(result.Reassignments))
	return result, nil
}

// partitionUsers splits the requested ids into processable ones and per-id
// failures. A valid id names an existing, currently active member of the team;
// everything else fails without blocking the rest of the batch.
func (s *Service) partitionUsers(ctx context.Context, teamName string, userIDs []string) ([]string, []models.FailedDeactivation, error) {
	valid := make([]string, 0, len(userIDs))
	failed := make([]models.FailedDeactivation, 0)
	seen := make(map[string]bool, len(userIDs))

	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		u, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("user not found for deactivation", "user_id", id)
				failed = append(failed, models.FailedDeactivation{UserID: id, Reason: "user not found"})
				continue
			}
			return nil, nil, err
		}
		if u.TeamName != teamName {
			s.logger.Warn("user does not belong to team", "user_id", id, "team", teamName)
			failed = append(failed, models.FailedDeactivation{UserID: id, Reason: "user does not belong to team " + teamName})
			continue
		}
		if !u.IsActive {
			failed = append(failed, models.FailedDeactivation{UserID: id, Reason: "already inactive"})
			continue
		}
		valid = append(valid, id)
	}
	return valid, failed, nil
}

func (s *Service) teamSnapshot(ctx context.Context, cache map[string]*teamSnapshot, teamName string) (*teamSnapshot, error) {
	if snap, ok := cache[teamName]; ok {
		return snap, nil
	}

	members, err := s.repo.ActiveTeamMembers(ctx, teamName, "")
	if err != nil {
		s.logger.Error("failed to get team members", "error", err, "team", teamName)
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	loads, err := s.repo.CountOpenAssignments(ctx, teamName, ids)
	if err != nil {
		s.logger.Error("failed to count open assignments", "error", err, "team", teamName)
		return nil, err
	}
	if loads == nil {
		loads = map[string]int{}
	}

	snap := &teamSnapshot{members: members, loads: loads}
	cache[teamName] = snap
	return snap, nil
}

// pickLeastLoaded returns the non-excluded member with the fewest open review
// assignments. Members arrive sorted by id, so equal loads resolve to the
// lexicographically smallest id.
func pickLeastLoaded(snap *teamSnapshot, excluded func(id string) bool) string {
	best := ""
	bestLoad := 0
	for _, m := range snap.members {
		if excluded(m.ID) {
			continue
		}
		load := snap.loads[m.ID]
		if best == "" || load < bestLoad {
			best = m.ID
			bestLoad = load
		}
	}
	return best
}
