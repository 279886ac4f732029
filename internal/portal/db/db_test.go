package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/gartstein/staffing/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SetupTestDB initializes an in-memory SQLite database for testing.
func SetupTestDB(t *testing.T) *Repository {
	repo, err := NewRepository(&Config{Driver: DriverSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newClient(code string) *models.Client {
	return &models.Client{
		ID:          uuid.New(),
		CompanyName: "Acme Corp",
		ContactName: "Jane Doe",
		Email:       "jane@acme.test",
		AccessCode:  code,
		IsActive:    true,
	}
}

func newPosting(owner *uuid.UUID) *models.JobPosting {
	return &models.JobPosting{
		ID:               uuid.New(),
		ContactName:      "Jane Doe",
		CompanyName:      "Acme Corp",
		Email:            "jane@acme.test",
		Phone:            "555-0100",
		JobTitle:         "Welder",
		Location:         "Austin, TX",
		EmploymentType:   models.Permanent,
		Status:           models.JobStatusNew,
		IsExistingClient: owner != nil,
		OwnerClientID:    owner,
	}
}

func TestNewRepository_UnsupportedDriver(t *testing.T) {
	_, err := NewRepository(&Config{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestCreateAndGetClient(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	client := newClient("AAAA-BBBB")
	require.NoError(t, repo.CreateClient(ctx, client))

	got, err := repo.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.CompanyName)
	assert.True(t, got.IsActive)
	assert.Zero(t, got.LoginCount)
}

func TestGetClientNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.GetClient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestCreateClient_DuplicateCode(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateClient(ctx, newClient("SAME-CODE")))
	err := repo.CreateClient(ctx, newClient("SAME-CODE"))
	assert.ErrorIs(t, err, e.ErrConflict)
}

func TestFindActiveClientByCode(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	client := newClient("FIND-ME00")
	require.NoError(t, repo.CreateClient(ctx, client))

	found, err := repo.FindActiveClientByCode(ctx, "FIND-ME00")
	require.NoError(t, err)
	assert.Equal(t, client.ID, found.ID)

	require.NoError(t, repo.SetClientActive(ctx, client.ID, false, now))
	_, err = repo.FindActiveClientByCode(ctx, "FIND-ME00")
	assert.ErrorIs(t, err, e.ErrNotFound, "inactive clients are not found by code")

	_, err = repo.FindActiveClientByCode(ctx, "NOPE-0000")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestRecordLogin(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	client := newClient("LOGIN-0001")
	require.NoError(t, repo.CreateClient(ctx, client))

	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.RecordLogin(ctx, client.ID, at))
	require.NoError(t, repo.RecordLogin(ctx, client.ID, at.Add(time.Minute)))

	got, err := repo.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.LoginCount)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(at.Add(time.Minute)))

	assert.ErrorIs(t, repo.RecordLogin(ctx, uuid.New(), at), e.ErrNotFound)
}

func TestUpdateClientAndAccessCode(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	a := newClient("CODE-AAAA")
	b := newClient("CODE-BBBB")
	require.NoError(t, repo.CreateClient(ctx, a))
	require.NoError(t, repo.CreateClient(ctx, b))

	require.NoError(t, repo.UpdateClient(ctx, &models.ClientUpdate{ID: a.ID, ContactName: utils.Ptr("John Roe")}, now))
	got, err := repo.GetClient(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Roe", got.ContactName)
	assert.Equal(t, "jane@acme.test", got.Email, "untouched fields are kept")

	expiry := now.Add(time.Hour)
	require.NoError(t, repo.UpdateClient(ctx, &models.ClientUpdate{ID: a.ID, CodeExpiresAt: &expiry}, now))
	got, err = repo.GetClient(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CodeExpiresAt)
	require.NoError(t, repo.UpdateClient(ctx, &models.ClientUpdate{ID: a.ID, ClearCodeExpiry: true}, now))
	got, err = repo.GetClient(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CodeExpiresAt)

	assert.ErrorIs(t, repo.SetAccessCode(ctx, a.ID, "CODE-BBBB", now), e.ErrConflict)
	require.NoError(t, repo.SetAccessCode(ctx, a.ID, "CODE-CCCC", now))
	assert.ErrorIs(t, repo.SetAccessCode(ctx, uuid.New(), "CODE-DDDD", now), e.ErrNotFound)
}

func TestActivities(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	client := newClient("ACTV-0001")
	require.NoError(t, repo.CreateClient(ctx, client))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AddActivity(ctx, &models.ClientActivity{
			ID:           uuid.New(),
			ClientID:     client.ID,
			ActivityType: models.ActivityLogin,
			IPAddress:    "192.0.2.10",
			Details:      map[string]any{"n": i},
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	acts, err := repo.ListActivities(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	assert.True(t, acts[0].CreatedAt.After(acts[2].CreatedAt), "newest first")
	assert.Equal(t, json.Number("2"), acts[0].Details["n"])
}

func TestResolveCodeRequest(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	req := &models.CodeRequest{ID: uuid.New(), CompanyName: "Acme", ContactName: "Jane", Email: "j@a.test", Status: models.CodeRequestPending}
	require.NoError(t, repo.CreateCodeRequest(ctx, req))

	clientID := uuid.New()
	require.NoError(t, repo.ResolveCodeRequest(ctx, req.ID, models.CodeRequestApproved, &clientID, "", now))

	got, err := repo.GetCodeRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeRequestApproved, got.Status)
	require.NotNil(t, got.ClientID)
	assert.Equal(t, clientID, *got.ClientID)
	assert.NotNil(t, got.ReviewedAt)

	err = repo.ResolveCodeRequest(ctx, req.ID, models.CodeRequestRejected, nil, "late", now)
	assert.ErrorIs(t, err, e.ErrInvalidState)

	err = repo.ResolveCodeRequest(ctx, uuid.New(), models.CodeRequestRejected, nil, "", now)
	assert.ErrorIs(t, err, e.ErrNotFound)

	err = repo.ResolveCodeRequest(ctx, req.ID, models.CodeRequestPending, nil, "", now)
	assert.ErrorIs(t, err, e.ErrValidation)
}

func TestListCodeRequests_Filter(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	for _, s := range []models.CodeRequestStatus{models.CodeRequestPending, models.CodeRequestPending, models.CodeRequestRejected} {
		require.NoError(t, repo.CreateCodeRequest(ctx, &models.CodeRequest{ID: uuid.New(), CompanyName: "C", ContactName: "N", Email: "e@x.test", Status: s}))
	}

	all, err := repo.ListCodeRequests(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := repo.ListCodeRequests(ctx, utils.Ptr(models.CodeRequestPending))
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := repo.CountCodeRequests(ctx, models.CodeRequestPending)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestJobPostingLifecycle(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	owner := uuid.New()
	posting := newPosting(&owner)
	require.NoError(t, repo.CreateJobPosting(ctx, posting))
	require.NoError(t, repo.CreateJobPosting(ctx, newPosting(nil)))

	later := time.Now().Add(time.Hour).UTC()
	require.NoError(t, repo.UpdateJobPostingStatus(ctx, posting.ID, models.JobStatusPosted, later))
	require.NoError(t, repo.UpdateJobPosting(ctx, posting.ID, map[string]any{"job_title": "Lead Welder"}, later))

	got, err := repo.GetJobPosting(ctx, posting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPosted, got.Status)
	assert.Equal(t, "Lead Welder", got.JobTitle)
	assert.True(t, got.UpdatedAt.Equal(later))

	owned, err := repo.ListJobPostingsByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	posted, err := repo.ListJobPostings(ctx, utils.Ptr(models.JobStatusPosted))
	require.NoError(t, err)
	assert.Len(t, posted, 1)

	counts, err := repo.CountJobPostingsByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.JobStatusNew])
	assert.EqualValues(t, 1, counts[models.JobStatusPosted])
	assert.EqualValues(t, 0, counts[models.JobStatusClosed])

	require.NoError(t, repo.DeleteJobPosting(ctx, posting.ID))
	_, err = repo.GetJobPosting(ctx, posting.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteJobPosting(ctx, posting.ID), e.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateJobPostingStatus(ctx, posting.ID, models.JobStatusClosed, later), e.ErrNotFound)
}

func TestJobApplications(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateJobApplication(ctx, &models.JobApplication{ID: uuid.New(), FullName: "Sam Lee", Email: "sam@x.test", Position: "Driver"}))

	apps, err := repo.ListJobApplications(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	n, err := repo.CountJobApplications(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRevokedTokens(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	require.NoError(t, repo.Revoke(ctx, "jti-1", now.Add(time.Hour)), "revoking twice is a no-op")
	require.NoError(t, repo.Revoke(ctx, "jti-old", now.Add(-time.Hour)))

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	purged, err := repo.PurgeRevokedTokens(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

// TestWithTransaction ensures transactions commit and roll back as a unit.
func TestWithTransaction(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	committed := newClient("TX-COMMIT")
	err := repo.WithTransaction(ctx, func(txRepo *Repository) error {
		return txRepo.CreateClient(ctx, committed)
	})
	require.NoError(t, err)
	_, err = repo.GetClient(ctx, committed.ID)
	assert.NoError(t, err, "client should exist after commit")

	rolledBack := newClient("TX-ROLLBACK")
	boom := errors.New("boom")
	err = repo.WithTransaction(ctx, func(txRepo *Repository) error {
		if err := txRepo.CreateClient(ctx, rolledBack); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = repo.GetClient(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, e.ErrNotFound, "client should be rolled back")
}

func TestWithTransaction_NestedConflictKeepsOuter(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateClient(ctx, newClient("TAKEN-000")))

	req := &models.CodeRequest{ID: uuid.New(), CompanyName: "Acme", ContactName: "Jane", Email: "j@a.test", Status: models.CodeRequestPending}
	err := repo.WithTransaction(ctx, func(txRepo *Repository) error {
		if err := txRepo.CreateCodeRequest(ctx, req); err != nil {
			return err
		}
		inner := txRepo.WithTransaction(ctx, func(sp *Repository) error {
			return sp.CreateClient(ctx, newClient("TAKEN-000"))
		})
		assert.ErrorIs(t, inner, e.ErrConflict)
		return txRepo.CreateClient(ctx, newClient("FREE-0000"))
	})
	require.NoError(t, err)

	_, err = repo.GetCodeRequest(ctx, req.ID)
	assert.NoError(t, err, "outer work survives a failed savepoint")
	_, err = repo.FindActiveClientByCode(ctx, "FREE-0000")
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	repo := SetupTestDB(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
