package models

import "time"

type Team struct {
	Name      string    `json:"team_name"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamMember struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

type TeamWithMembers struct {
	Name    string       `json:"team_name"`
	Members []TeamMember `json:"members"`
}

type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	TeamName  string    `json:"team_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type PRStatus string

const (
	PRStatusOpen   PRStatus = "OPEN"
	PRStatusMerged PRStatus = "MERGED"
)

type PullRequest struct {
	ID        string       `json:"pull_request_id"`
	Name      string       `json:"pull_request_name"`
	AuthorID  string       `json:"author_id"`
	Status    PRStatus     `json:"status"`
	Reviewers ReviewerList `json:"assigned_reviewers"`
	CreatedAt time.Time    `json:"created_at"`
	MergedAt  *time.Time   `json:"merged_at,omitempty"`
}

type PullRequestShort struct {
	ID       string   `json:"pull_request_id"`
	Name     string   `json:"pull_request_name"`
	AuthorID string   `json:"author_id"`
	Status   PRStatus `json:"status"`
}

func (pr PullRequest) Short() PullRequestShort {
	return PullRequestShort{ID: pr.ID, Name: pr.Name, AuthorID: pr.AuthorID, Status: pr.Status}
}
