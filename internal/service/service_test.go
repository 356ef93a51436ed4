package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"prreviewer/internal/models"
	"prreviewer/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTeam(ctx context.Context, name string) (models.Team, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.Team), args.Error(1)
}

func (m *MockRepository) GetTeamByName(ctx context.Context, name string) (models.Team, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.Team), args.Error(1)
}

func (m *MockRepository) ListTeamMembers(ctx context.Context, teamName string) ([]models.User, error) {
	args := m.Called(ctx, teamName)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockRepository) UpsertUser(ctx context.Context, u models.User) (models.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) SetUserActive(ctx context.Context, id string, active bool) (models.User, error) {
	args := m.Called(ctx, id, active)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) BatchSetActive(ctx context.Context, ids []string, active bool) error {
	args := m.Called(ctx, ids, active)
	return args.Error(0)
}

func (m *MockRepository) ActiveTeamMembers(ctx context.Context, teamName, excludeID string) ([]models.User, error) {
	args := m.Called(ctx, teamName, excludeID)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockRepository) CreatePR(ctx context.Context, pr models.PullRequest) (models.PullRequest, error) {
	args := m.Called(ctx, pr)
	return args.Get(0).(models.PullRequest), args.Error(1)
}

func (m *MockRepository) GetPRByID(ctx context.Context, id string) (models.PullRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.PullRequest), args.Error(1)
}

func (m *MockRepository) SetPRMerged(ctx context.Context, id string) (models.PullRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.PullRequest), args.Error(1)
}

func (m *MockRepository) UpdatePRReviewers(ctx context.Context, prID string, reviewers models.ReviewerList) error {
	args := m.Called(ctx, prID, reviewers)
	return args.Error(0)
}

func (m *MockRepository) ApplyReviewerUpdates(ctx context.Context, updates []repository.ReviewerUpdate) ([]string, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) ListOpenPRsByReviewers(ctx context.Context, userIDs []string) ([]models.PullRequest, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).([]models.PullRequest), args.Error(1)
}

func (m *MockRepository) ListPRsByReviewer(ctx context.Context, userID string) ([]models.PullRequest, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.PullRequest), args.Error(1)
}

func (m *MockRepository) CountOpenAssignments(ctx context.Context, teamName string, userIDs []string) (map[string]int, error) {
	args := m.Called(ctx, teamName, userIDs)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockRepository) AssignmentStats(ctx context.Context) (models.AssignmentStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AssignmentStats), args.Error(1)
}

// firstPicker deterministically takes candidates in slice order.
type firstPicker struct{}

func (firstPicker) Pick(ids []string, limit int) []string {
	if limit > len(ids) {
		limit = len(ids)
	}
	if limit <= 0 {
		return nil
	}
	return append([]string(nil), ids[:limit]...)
}

func (firstPicker) PickOne(ids []string) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo repository.Repository) *Service {
	return NewService(repo, firstPicker{}, createTestLogger(), 2)
}

func activeUser(id, team string) models.User {
	return models.User{ID: id, Username: "user " + id, TeamName: team, IsActive: true}
}

func TestCreateTeam(t *testing.T) {
	t.Run("success with members", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		members := []models.TeamMember{
			{UserID: "u1", Username: "Alice", IsActive: true},
			{UserID: "u2", Username: "Bob", IsActive: false},
		}

		mockRepo.On("CreateTeam", mock.Anything, "backend").Return(models.Team{Name: "backend"}, nil)
		mockRepo.On("UpsertUser", mock.Anything, mock.AnythingOfType("models.User")).Return(models.User{}, nil)
		mockRepo.On("GetTeamByName", mock.Anything, "backend").Return(models.Team{Name: "backend"}, nil)
		mockRepo.On("ListTeamMembers", mock.Anything, "backend").Return([]models.User{
			activeUser("u1", "backend"),
			{ID: "u2", Username: "user u2", TeamName: "backend", IsActive: false},
		}, nil)

		result, err := svc.CreateTeam(context.Background(), "backend", members)

		assert.NoError(t, err)
		assert.Equal(t, "backend", result.Name)
		assert.Len(t, result.Members, 2)
		mockRepo.AssertNumberOfCalls(t, "UpsertUser", 2)
	})

	t.Run("duplicate team", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("CreateTeam", mock.Anything, "backend").Return(models.Team{}, repository.ErrDuplicate)

		_, err := svc.CreateTeam(context.Background(), "backend", nil)

		assert.ErrorIs(t, err, ErrTeamExists)
		mockRepo.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("empty name", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		_, err := svc.CreateTeam(context.Background(), "", nil)

		assert.ErrorIs(t, err, ErrBadRequest)
	})
}

func TestSetUserActive(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		want := models.User{ID: "u1", IsActive: false, TeamName: "backend"}
		mockRepo.On("SetUserActive", mock.Anything, "u1", false).Return(want, nil)

		got, err := svc.SetUserActive(context.Background(), "u1", false)

		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("user not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("SetUserActive", mock.Anything, "ghost", true).Return(models.User{}, repository.ErrNotFound)

		_, err := svc.SetUserActive(context.Background(), "ghost", true)

		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCreatePR(t *testing.T) {
	t.Run("assigns two distinct teammates", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetUserByID", mock.Anything, "u1").Return(activeUser("u1", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u1").Return([]models.User{
			activeUser("u2", "backend"),
			activeUser("u3", "backend"),
			activeUser("u4", "backend"),
		}, nil)
		mockRepo.On("CreatePR", mock.Anything, mock.MatchedBy(func(pr models.PullRequest) bool {
			return pr.ID == "pr-1" &&
				pr.Status == models.PRStatusOpen &&
				len(pr.Reviewers) == 2 &&
				!pr.Reviewers.Contains("u1") &&
				pr.Reviewers[0] != pr.Reviewers[1]
		})).Return(models.PullRequest{
			ID: "pr-1", Name: "feature", AuthorID: "u1",
			Status: models.PRStatusOpen, Reviewers: models.ReviewerList{"u2", "u3"},
		}, nil)

		pr, err := svc.CreatePR(context.Background(), "pr-1", "feature", "u1")

		assert.NoError(t, err)
		assert.Equal(t, models.ReviewerList{"u2", "u3"}, pr.Reviewers)
	})

	t.Run("team with no other active members yields zero reviewers", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetUserByID", mock.Anything, "u1").Return(activeUser("u1", "solo"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "solo", "u1").Return([]models.User{}, nil)
		var persisted models.PullRequest
		mockRepo.On("CreatePR", mock.Anything, mock.AnythingOfType("models.PullRequest")).
			Run(func(args mock.Arguments) {
				persisted = args.Get(1).(models.PullRequest)
			}).
			Return(models.PullRequest{ID: "pr-2", AuthorID: "u1", Status: models.PRStatusOpen, Reviewers: models.ReviewerList{}}, nil)

		pr, err := svc.CreatePR(context.Background(), "pr-2", "lonely", "u1")

		assert.NoError(t, err)
		assert.Empty(t, pr.Reviewers)
		// A nil slice would be written as SQL NULL and violate the NOT NULL
		// reviewers column; the insert must carry an empty list.
		assert.NotNil(t, persisted.Reviewers)
		assert.Len(t, persisted.Reviewers, 0)
	})

	t.Run("pool smaller than max assigns everyone available", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetUserByID", mock.Anything, "u1").Return(activeUser("u1", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u1").Return([]models.User{
			activeUser("u2", "backend"),
		}, nil)
		mockRepo.On("CreatePR", mock.Anything, mock.MatchedBy(func(pr models.PullRequest) bool {
			return len(pr.Reviewers) == 1 && pr.Reviewers[0] == "u2"
		})).Return(models.PullRequest{ID: "pr-3", AuthorID: "u1", Status: models.PRStatusOpen, Reviewers: models.ReviewerList{"u2"}}, nil)

		pr, err := svc.CreatePR(context.Background(), "pr-3", "small team", "u1")

		assert.NoError(t, err)
		assert.Len(t, pr.Reviewers, 1)
	})

	t.Run("author not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetUserByID", mock.Anything, "ghost").Return(models.User{}, repository.ErrNotFound)

		_, err := svc.CreatePR(context.Background(), "pr-4", "nope", "ghost")

		assert.ErrorIs(t, err, ErrUserNotFound)
		mockRepo.AssertNotCalled(t, "CreatePR")
	})

	t.Run("duplicate PR id", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetUserByID", mock.Anything, "u1").Return(activeUser("u1", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u1").Return([]models.User{}, nil)
		mockRepo.On("CreatePR", mock.Anything, mock.AnythingOfType("models.PullRequest")).
			Return(models.PullRequest{}, repository.ErrDuplicate)

		_, err := svc.CreatePR(context.Background(), "pr-1", "again", "u1")

		assert.ErrorIs(t, err, ErrPRExists)
	})
}

func TestReassignReviewer(t *testing.T) {
	openPR := func() models.PullRequest {
		return models.PullRequest{
			ID: "pr-1", Name: "feature", AuthorID: "u1",
			Status:    models.PRStatusOpen,
			Reviewers: models.ReviewerList{"u2", "u5"},
		}
	}

	t.Run("replaces exactly the matching slot", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(openPR(), nil)
		mockRepo.On("GetUserByID", mock.Anything, "u2").Return(activeUser("u2", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u2").Return([]models.User{
			activeUser("u1", "backend"), // author, must be filtered
			activeUser("u3", "backend"),
			activeUser("u5", "backend"), // already assigned, must be filtered
		}, nil)
		mockRepo.On("UpdatePRReviewers", mock.Anything, "pr-1", models.ReviewerList{"u3", "u5"}).Return(nil)

		pr, newID, err := svc.ReassignReviewer(context.Background(), "pr-1", "u2")

		assert.NoError(t, err)
		assert.Equal(t, "u3", newID)
		assert.Equal(t, models.ReviewerList{"u3", "u5"}, pr.Reviewers)
	})

	t.Run("no candidate leaves list unchanged", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(openPR(), nil)
		mockRepo.On("GetUserByID", mock.Anything, "u2").Return(activeUser("u2", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u2").Return([]models.User{
			activeUser("u1", "backend"),
			activeUser("u5", "backend"),
		}, nil)

		_, _, err := svc.ReassignReviewer(context.Background(), "pr-1", "u2")

		assert.ErrorIs(t, err, ErrNoCandidate)
		mockRepo.AssertNotCalled(t, "UpdatePRReviewers")
	})

	t.Run("merged PR", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		merged := openPR()
		merged.Status = models.PRStatusMerged
		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(merged, nil)

		_, _, err := svc.ReassignReviewer(context.Background(), "pr-1", "u2")

		assert.ErrorIs(t, err, ErrPRMerged)
		mockRepo.AssertNotCalled(t, "UpdatePRReviewers")
	})

	t.Run("reviewer not assigned", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(openPR(), nil)

		_, _, err := svc.ReassignReviewer(context.Background(), "pr-1", "u9")

		assert.ErrorIs(t, err, ErrNotAssigned)
	})

	t.Run("PR not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "missing").Return(models.PullRequest{}, repository.ErrNotFound)

		_, _, err := svc.ReassignReviewer(context.Background(), "missing", "u2")

		assert.ErrorIs(t, err, ErrPRNotFound)
	})

	t.Run("merge racing the write surfaces as merged", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(openPR(), nil)
		mockRepo.On("GetUserByID", mock.Anything, "u2").Return(activeUser("u2", "backend"), nil)
		mockRepo.On("ActiveTeamMembers", mock.Anything, "backend", "u2").Return([]models.User{
			activeUser("u3", "backend"),
		}, nil)
		mockRepo.On("UpdatePRReviewers", mock.Anything, "pr-1", mock.Anything).Return(repository.ErrNotOpen)

		_, _, err := svc.ReassignReviewer(context.Background(), "pr-1", "u2")

		assert.ErrorIs(t, err, ErrPRMerged)
	})
}

func TestMergePR(t *testing.T) {
	t.Run("merges open PR", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		open := models.PullRequest{ID: "pr-1", Status: models.PRStatusOpen}
		merged := models.PullRequest{ID: "pr-1", Status: models.PRStatusMerged}
		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(open, nil)
		mockRepo.On("SetPRMerged", mock.Anything, "pr-1").Return(merged, nil)

		pr, err := svc.MergePR(context.Background(), "pr-1")

		assert.NoError(t, err)
		assert.Equal(t, models.PRStatusMerged, pr.Status)
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		merged := models.PullRequest{ID: "pr-1", Status: models.PRStatusMerged, Reviewers: models.ReviewerList{"u2"}}
		mockRepo.On("GetPRByID", mock.Anything, "pr-1").Return(merged, nil)

		pr, err := svc.MergePR(context.Background(), "pr-1")

		assert.NoError(t, err)
		assert.Equal(t, merged, pr)
		mockRepo.AssertNotCalled(t, "SetPRMerged")
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestService(mockRepo)

		mockRepo.On("GetPRByID", mock.Anything, "missing").Return(models.PullRequest{}, repository.ErrNotFound)

		_, err := svc.MergePR(context.Background(), "missing")

		assert.ErrorIs(t, err, ErrPRNotFound)
	})
}

func TestListPRsForReviewer(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetUserByID", mock.Anything, "u2").Return(activeUser("u2", "backend"), nil)
	mockRepo.On("ListPRsByReviewer", mock.Anything, "u2").Return([]models.PullRequest{
		{ID: "pr-1", Name: "feature", AuthorID: "u1", Status: models.PRStatusOpen, Reviewers: models.ReviewerList{"u2"}},
	}, nil)

	prs, err := svc.ListPRsForReviewer(context.Background(), "u2")

	assert.NoError(t, err)
	assert.Equal(t, []models.PullRequestShort{
		{ID: "pr-1", Name: "feature", AuthorID: "u1", Status: models.PRStatusOpen},
	}, prs)
}
