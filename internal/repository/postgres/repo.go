package postgres

import (
	"context"
	"errors"
	"fmt"

	"prreviewer/internal/models"
	"prreviewer/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) repository.Repository {
	return &repo{pool: pool}
}

func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *repo) CreateTeam(ctx context.Context, name string) (models.Team, error) {
	var t models.Team
	row := r.pool.QueryRow(ctx, `INSERT INTO teams(name) VALUES($1) RETURNING name, created_at`, name)
	if err := row.Scan(&t.Name, &t.CreatedAt); err != nil {
		return t, mapErr("create team", err)
	}
	return t, nil
}

func (r *repo) GetTeamByName(ctx context.Context, name string) (models.Team, error) {
	var t models.Team
	row := r.pool.QueryRow(ctx, `SELECT name, created_at FROM teams WHERE name=$1`, name)
	if err := row.Scan(&t.Name, &t.CreatedAt); err != nil {
		return t, mapErr("get team", err)
	}
	return t, nil
}

func (r *repo) ListTeamMembers(ctx context.Context, teamName string) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, team_name, is_active, created_at FROM users WHERE team_name=$1 ORDER BY id`, teamName)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *repo) UpsertUser(ctx context.Context, u models.User) (models.User, error) {
	var res models.User
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users(id, username, team_name, is_active) VALUES($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, team_name=EXCLUDED.team_name, is_active=EXCLUDED.is_active
		RETURNING id, username, team_name, is_active, created_at`,
		u.ID, u.Username, u.TeamName, u.IsActive)
	if err := row.Scan(&res.ID, &res.Username, &res.TeamName, &res.IsActive, &res.CreatedAt); err != nil {
		return res, mapErr("upsert user", err)
	}
	return res, nil
}

func (r *repo) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	row := r.pool.QueryRow(ctx, `SELECT id, username, team_name, is_active, created_at FROM users WHERE id=$1`, id)
	if err := row.Scan(&u.ID, &u.Username, &u.TeamName, &u.IsActive, &u.CreatedAt); err != nil {
		return u, mapErr("get user", err)
	}
	return u, nil
}

func (r *repo) SetUserActive(ctx context.Context, id string, active bool) (models.User, error) {
	var u models.User
	row := r.pool.QueryRow(ctx, `UPDATE users SET is_active=$2 WHERE id=$1 RETURNING id, username, team_name, is_active, created_at`, id, active)
	if err := row.Scan(&u.ID, &u.Username, &u.TeamName, &u.IsActive, &u.CreatedAt); err != nil {
		return u, mapErr("set user active", err)
	}
	return u, nil
}

func (r *repo) BatchSetActive(ctx context.Context, ids []string, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `UPDATE users SET is_active=$2 WHERE id = ANY($1)`, ids, active); err != nil {
		return fmt.Errorf("batch set active: %w", err)
	}
	return nil
}

func (r *repo) ActiveTeamMembers(ctx context.Context, teamName, excludeID string) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, team_name, is_active, created_at FROM users
		WHERE team_name=$1 AND is_active=true AND id <> $2 ORDER BY id`, teamName, excludeID)
	if err != nil {
		return nil, fmt.Errorf("active team members: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *repo) CreatePR(ctx context.Context, pr models.PullRequest) (models.PullRequest, error) {
	var res models.PullRequest
	var reviewers []string
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pull_requests(id, name, author_id, status, reviewers) VALUES($1,$2,$3,$4,$5)
		RETURNING id, name, author_id, status, reviewers, created_at, merged_at`,
		pr.ID, pr.Name, pr.AuthorID, pr.Status, []string(pr.Reviewers))
	if err := row.Scan(&res.ID, &res.Name, &res.AuthorID, &res.Status, &reviewers, &res.CreatedAt, &res.MergedAt); err != nil {
		return res, mapErr("create PR", err)
	}
	res.Reviewers = reviewers
	return res, nil
}

func (r *repo) GetPRByID(ctx context.Context, id string) (models.PullRequest, error) {
	var p models.PullRequest
	var reviewers []string
	row := r.pool.QueryRow(ctx, `SELECT id, name, author_id, status, reviewers, created_at, merged_at FROM pull_requests WHERE id=$1`, id)
	if err := row.Scan(&p.ID, &p.Name, &p.AuthorID, &p.Status, &reviewers, &p.CreatedAt, &p.MergedAt); err != nil {
		return p, mapErr("get PR", err)
	}
	p.Reviewers = reviewers
	return p, nil
}

func (r *repo) SetPRMerged(ctx context.Context, id string) (models.PullRequest, error) {
	var p models.PullRequest
	var reviewers []string
	row := r.pool.QueryRow(ctx, `
		UPDATE pull_requests SET status='MERGED', merged_at=now()
		WHERE id=$1 AND status='OPEN'
		RETURNING id, name, author_id, status, reviewers, created_at, merged_at`, id)
	if err := row.Scan(&p.ID, &p.Name, &p.AuthorID, &p.Status, &reviewers, &p.CreatedAt, &p.MergedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("set PR merged: %w", repository.ErrNotOpen)
		}
		return p, mapErr("set PR merged", err)
	}
	p.Reviewers = reviewers
	return p, nil
}

func (r *repo) UpdatePRReviewers(ctx context.Context, prID string, reviewers models.ReviewerList) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pull_requests SET reviewers=$2 WHERE id=$1 AND status='OPEN'`, prID, []string(reviewers))
	if err != nil {
		return fmt.Errorf("update PR reviewers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update PR reviewers: %w", repository.ErrNotOpen)
	}
	return nil
}

func (r *repo) ApplyReviewerUpdates(ctx context.Context, updates []repository.ReviewerUpdate) ([]string, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	skipped := make([]string, 0)
	for _, u := range updates {
		tag, err := tx.Exec(ctx, `UPDATE pull_requests SET reviewers=$2 WHERE id=$1 AND status='OPEN'`, u.PullRequestID, []string(u.Reviewers))
		if err != nil {
			return nil, fmt.Errorf("update reviewers for PR %s: %w", u.PullRequestID, err)
		}
		if tag.RowsAffected() == 0 {
			skipped = append(skipped, u.PullRequestID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return skipped, nil
}

func (r *repo) ListOpenPRsByReviewers(ctx context.Context, userIDs []string) ([]models.PullRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, author_id, status, reviewers, created_at, merged_at FROM pull_requests
		WHERE status='OPEN' AND reviewers && $1 ORDER BY id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list open PRs by reviewers: %w", err)
	}
	defer rows.Close()
	return scanPRs(rows)
}

func (r *repo) ListPRsByReviewer(ctx context.Context, userID string) ([]models.PullRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, author_id, status, reviewers, created_at, merged_at FROM pull_requests
		WHERE $1 = ANY(reviewers) ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list PRs by reviewer: %w", err)
	}
	defer rows.Close()
	return scanPRs(rows)
}

func (r *repo) CountOpenAssignments(ctx context.Context, teamName string, userIDs []string) (map[string]int, error) {
	if len(userIDs) == 0 {
		return map[string]int{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, COUNT(p.id)
		FROM users u
		JOIN pull_requests p ON u.id = ANY(p.reviewers) AND p.status='OPEN'
		WHERE u.team_name=$1 AND u.id = ANY($2)
		GROUP BY u.id`, teamName, userIDs)
	if err != nil {
		return nil, fmt.Errorf("count open assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(userIDs))
	for rows.Next() {
		var id string
		var c int
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("scan assignment count: %w", err)
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

func (r *repo) AssignmentStats(ctx context.Context) (models.AssignmentStats, error) {
	var stats models.AssignmentStats

	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.username, u.team_name, u.is_active, COUNT(p.id)
		FROM users u
		JOIN pull_requests p ON u.id = ANY(p.reviewers)
		GROUP BY u.id, u.username, u.team_name, u.is_active
		ORDER BY COUNT(p.id) DESC, u.id`)
	if err != nil {
		return stats, fmt.Errorf("user assignment stats: %w", err)
	}
	defer rows.Close()

	stats.UserAssignments = make([]models.UserAssignmentStat, 0)
	for rows.Next() {
		var s models.UserAssignmentStat
		if err := rows.Scan(&s.UserID, &s.Username, &s.TeamName, &s.IsActive, &s.AssignmentCount); err != nil {
			return stats, fmt.Errorf("scan assignment stat: %w", err)
		}
		stats.UserAssignments = append(stats.UserAssignments, s)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("user assignment stats: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT SUM(cardinality(reviewers)) FROM pull_requests), 0),
		       (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM users WHERE is_active=true)`)
	if err := row.Scan(&stats.Summary.TotalAssignments, &stats.Summary.TotalUsers, &stats.Summary.ActiveUsers); err != nil {
		return stats, fmt.Errorf("stats summary: %w", err)
	}
	stats.Summary.InactiveUsers = stats.Summary.TotalUsers - stats.Summary.ActiveUsers

	statusRows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM pull_requests GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("PR status stats: %w", err)
	}
	defer statusRows.Close()

	stats.Summary.PRByStatus = make(map[string]int)
	for statusRows.Next() {
		var status string
		var c int
		if err := statusRows.Scan(&status, &c); err != nil {
			return stats, fmt.Errorf("scan PR status stat: %w", err)
		}
		stats.Summary.PRByStatus[status] = c
	}
	return stats, statusRows.Err()
}

func scanUsers(rows pgx.Rows) ([]models.User, error) {
	res := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.TeamName, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func scanPRs(rows pgx.Rows) ([]models.PullRequest, error) {
	res := make([]models.PullRequest, 0)
	for rows.Next() {
		var p models.PullRequest
		var reviewers []string
		if err := rows.Scan(&p.ID, &p.Name, &p.AuthorID, &p.Status, &reviewers, &p.CreatedAt, &p.MergedAt); err != nil {
			return nil, fmt.Errorf("scan PR: %w", err)
		}
		p.Reviewers = reviewers
		res = append(res, p)
	}
	return res, rows.Err()
}
