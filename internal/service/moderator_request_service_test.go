package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

func newModeratorRequestService(store *memStore, mailer Mailer, now time.Time) *ModeratorRequestService {
	svc := NewModeratorRequestService(ModeratorRequestDependencies{
		RequestRepo: memRequests{store},
		UserRepo:    memUsers{store},
		Cache:       passThroughCache(),
		Mailer:      mailer,
		Logger:      zap.NewNop(),
	})
	svc.now = func() time.Time { return now }
	return svc
}

func TestSplitSkills(t *testing.T) {
	assert.Equal(t, []string{"react", "node js", "go"}, SplitSkills(" React, react ,Node   JS,,Go "))
	assert.Empty(t, SplitSkills(""))
}

func TestCreateModeratorRequest(t *testing.T) {
	store := newMemStore()
	mod := store.addUser(domain.User{Username: "mo", Email: "mo@example.com", Role: domain.RoleModerator})
	admin := store.addUser(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin})
	applicant := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser})
	mailer := &recordingMailer{}
	svc := newModeratorRequestService(store, mailer, time.Now())
	ctx := context.Background()

	req, err := svc.Create(ctx, applicant, ModeratorRequestInput{Skills: "Go, SQL, go"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeratorRequestPending, req.Status)
	assert.Equal(t, []string{"go", "sql"}, req.Skills)
	assert.Equal(t, "bob@example.com", req.Email)

	require.Len(t, mailer.to("bob@example.com"), 1)
	reviewerMail := mailer.to(mod.Email)
	require.Len(t, reviewerMail, 1, "the first moderator reviews")
	assert.Contains(t, reviewerMail[0].Body, "bob (bob@example.com)")

	_, err = svc.Create(ctx, applicant, ModeratorRequestInput{Skills: "go"})
	assert.Equal(t, "CONFLICT", errCode(err))

	_, err = svc.Create(ctx, admin, ModeratorRequestInput{Skills: "go"})
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))
}

func TestCreateModeratorRequestCooldown(t *testing.T) {
	store := newMemStore()
	applicant := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rejectedAt := now.Add(-10*time.Hour - 30*time.Minute)
	require.NoError(t, memRequests{store}.Create(context.Background(), &domain.ModeratorRequest{
		ApplicantID: applicant.ID,
		Status:      domain.ModeratorRequestRejected,
		RejectedAt:  &rejectedAt,
		CreatedAt:   rejectedAt,
	}))

	svc := newModeratorRequestService(store, nil, now)
	_, err := svc.Create(context.Background(), applicant, ModeratorRequestInput{Skills: "go"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))
	assert.Contains(t, err.Error(), "62 more hour(s)")

	req, wait, err := svc.Mine(context.Background(), applicant)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 62, wait)

	later := newModeratorRequestService(store, nil, rejectedAt.Add(ReapplyCooldown+time.Minute))
	_, err = later.Create(context.Background(), applicant, ModeratorRequestInput{Skills: "go"})
	assert.NoError(t, err)
}

func TestMineWithoutRequest(t *testing.T) {
	store := newMemStore()
	applicant := store.addUser(domain.User{Username: "bob", Role: domain.RoleUser})
	svc := newModeratorRequestService(store, nil, time.Now())

	req, wait, err := svc.Mine(context.Background(), applicant)
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Zero(t, wait)
}

func TestDecideAcceptPromotesApplicant(t *testing.T) {
	store := newMemStore()
	admin := store.addUser(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin})
	applicant := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser, Skills: []string{"sql"}})
	mailer := &recordingMailer{}
	svc := newModeratorRequestService(store, mailer, time.Now())
	ctx := context.Background()

	req, err := svc.Create(ctx, applicant, ModeratorRequestInput{Skills: "Go, SQL"})
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.Decide(ctx, applicant, req.ID, DecisionAccept)
	assert.Equal(t, "FORBIDDEN", errCode(err))
	_, err = svc.Decide(ctx, admin, req.ID, "maybe")
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))

	decided, err := svc.Decide(ctx, admin, req.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeratorRequestAccepted, decided.Status)
	assert.Equal(t, admin.ID, *decided.ReviewedBy)
	assert.Nil(t, decided.RejectedAt)

	promoted := store.user(applicant.ID)
	assert.Equal(t, domain.RoleModerator, promoted.Role)
	assert.Equal(t, []string{"sql", "go"}, promoted.Skills)

	verdict := mailer.to("bob@example.com")
	require.Len(t, verdict, 2)
	assert.Equal(t, "Moderator request accepted", verdict[1].Subject)

	_, err = svc.Decide(ctx, admin, req.ID, DecisionReject)
	assert.Equal(t, "CONFLICT", errCode(err))
	_, err = svc.Decide(ctx, admin, "missing", DecisionReject)
	assert.Equal(t, "NOT_FOUND", errCode(err))
}

func TestDecideRejectStampsRejection(t *testing.T) {
	store := newMemStore()
	mod := store.addUser(domain.User{Username: "mo", Role: domain.RoleModerator})
	applicant := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newModeratorRequestService(store, nil, now)
	ctx := context.Background()

	req, err := svc.Create(ctx, applicant, ModeratorRequestInput{Skills: "go"})
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, mod, req.ID, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeratorRequestRejected, decided.Status)
	require.NotNil(t, decided.RejectedAt)
	assert.Equal(t, now, *decided.RejectedAt)
	assert.Equal(t, domain.RoleUser, store.user(applicant.ID).Role)

	_, wait, err := svc.Mine(ctx, applicant)
	require.NoError(t, err)
	assert.Equal(t, 72, wait)
}

func TestListPendingStaffOnly(t *testing.T) {
	store := newMemStore()
	member := store.addUser(domain.User{Username: "bob", Role: domain.RoleUser})
	svc := newModeratorRequestService(store, nil, time.Now())

	_, err := svc.ListPending(context.Background(), member)
	assert.Equal(t, "FORBIDDEN", errCode(err))
}
