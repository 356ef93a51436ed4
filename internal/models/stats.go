package models

type UserAssignmentStat struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	TeamName        string `json:"team_name"`
	IsActive        bool   `json:"is_active"`
	AssignmentCount int    `json:"assignment_count"`
}

type StatsSummary struct {
	TotalAssignments int            `json:"total_assignments"`
	TotalUsers       int            `json:"total_users"`
	ActiveUsers      int            `json:"active_users"`
	InactiveUsers    int            `json:"inactive_users"`
	PRByStatus       map[string]int `json:"pr_by_status"`
}

type AssignmentStats struct {
	UserAssignments []UserAssignmentStat `json:"user_assignments"`
	Summary         StatsSummary         `json:"summary"`
}
