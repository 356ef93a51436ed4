package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"prreviewer/internal/models"
	"prreviewer/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Handler struct {
	svc      ServiceInterface
	r        *chi.Mux
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(s ServiceInterface, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:      s,
		r:        chi.NewRouter(),
		validate: validator.New(),
		logger:   logger,
	}
	h.routes()
	return h
}

func (h *Handler) Router() http.Handler { return h.r }

func (h *Handler) routes() {
	h.r.Post("/team/add", h.createTeam)
	h.r.Get("/team/get", h.getTeam)
	h.r.Post("/team/deactivateUsers", h.deactivateUsers)
	h.r.Post("/users/setIsActive", h.setIsActive)
	h.r.Get("/users/getReview", h.getReview)
	h.r.Post("/pullRequest/create", h.createPR)
	h.r.Post("/pullRequest/merge", h.mergePR)
	h.r.Post("/pullRequest/reassign", h.reassign)
	h.r.Get("/stats/assignments", h.stats)
	h.r.Get("/health", h.health)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResp := ErrorResponse{}
	errorResp.Error.Code = code
	errorResp.Error.Message = message
	json.NewEncoder(w).Encode(errorResp)
}

// decode unmarshals and validates a request body, writing the error response
// itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("invalid JSON in request", "path", r.URL.Path, "error", err)
		h.writeError(w, "BAD_REQUEST", "invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.Warn("request validation failed", "path", r.URL.Path, "error", err)
		h.writeError(w, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTeamExists):
		h.writeError(w, "TEAM_EXISTS", "team_name already exists", http.StatusBadRequest)
	case errors.Is(err, service.ErrPRExists):
		h.writeError(w, "PR_EXISTS", "PR id already exists", http.StatusConflict)
	case errors.Is(err, service.ErrPRMerged):
		h.writeError(w, "PR_MERGED", "cannot reassign on merged PR", http.StatusConflict)
	case errors.Is(err, service.ErrNotAssigned):
		h.writeError(w, "NOT_ASSIGNED", "reviewer is not assigned to this PR", http.StatusConflict)
	case errors.Is(err, service.ErrNoCandidate):
		h.writeError(w, "NO_CANDIDATE", "no active replacement candidate in team", http.StatusConflict)
	case errors.Is(err, service.ErrTeamNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPRNotFound):
		h.writeError(w, "NOT_FOUND", "resource not found", http.StatusNotFound)
	case errors.Is(err, service.ErrBadRequest):
		h.writeError(w, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
	default:
		h.writeError(w, "INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var body CreateTeamRequest
	if !h.decode(w, r, &body) {
		return
	}

	members := make([]models.TeamMember, 0, len(body.Members))
	for _, m := range body.Members {
		members = append(members, models.TeamMember{UserID: m.UserID, Username: m.Username, IsActive: m.IsActive})
	}

	team, err := h.svc.CreateTeam(r.Context(), body.TeamName, members)
	if err != nil {
		h.logger.Error("failed to create team", "error", err, "team", body.TeamName)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, team, http.StatusCreated)
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("team_name")
	if name == "" {
		h.writeError(w, "BAD_REQUEST", "team_name is required", http.StatusBadRequest)
		return
	}

	team, err := h.svc.GetTeam(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, team, http.StatusOK)
}

func (h *Handler) deactivateUsers(w http.ResponseWriter, r *http.Request) {
	var body DeactivateUsersRequest
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.svc.DeactivateUsers(r.Context(), body.TeamName, body.UserIDs)
	if err != nil {
		h.logger.Error("bulk deactivation failed", "error", err, "team", body.TeamName)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}

func (h *Handler) setIsActive(w http.ResponseWriter, r *http.Request) {
	var body SetIsActiveRequest
	if !h.decode(w, r, &body) {
		return
	}

	u, err := h.svc.SetUserActive(r.Context(), body.UserID, *body.IsActive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, u, http.StatusOK)
}

func (h *Handler) getReview(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, "BAD_REQUEST", "user_id is required", http.StatusBadRequest)
		return
	}

	prs, err := h.svc.ListPRsForReviewer(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"user_id":       userID,
		"pull_requests": prs,
	}, http.StatusOK)
}

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	var body CreatePRRequest
	if !h.decode(w, r, &body) {
		return
	}

	pr, err := h.svc.CreatePR(r.Context(), body.PullRequestID, body.PullRequestName, body.AuthorID)
	if err != nil {
		h.logger.Error("failed to create PR", "error", err, "pr_id", body.PullRequestID)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, pr, http.StatusCreated)
}

func (h *Handler) mergePR(w http.ResponseWriter, r *http.Request) {
	var body MergePRRequest
	if !h.decode(w, r, &body) {
		return
	}

	pr, err := h.svc.MergePR(r.Context(), body.PullRequestID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, pr, http.StatusOK)
}

func (h *Handler) reassign(w http.ResponseWriter, r *http.Request) {
	var body ReassignRequest
	if !h.decode(w, r, &body) {
		return
	}

	pr, newID, err := h.svc.ReassignReviewer(r.Context(), body.PullRequestID, body.OldUserID)
	if err != nil {
		h.logger.Error("failed to reassign reviewer", "error", err, "pr_id", body.PullRequestID, "old_user_id", body.OldUserID)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"pr":          pr,
		"replaced_by": newID,
	}, http.StatusOK)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.AssignmentStats(r.Context())
	if err != nil {
		h.writeError(w, "INTERNAL_ERROR", "failed to get statistics", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, stats, http.StatusOK)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}
