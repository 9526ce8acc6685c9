package service

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/events"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

func testConfig() config.Config {
	return config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}}
}

func newUserService(store *memStore, c *cache.Cache, dispatcher events.Dispatcher) *UserService {
	return NewUserService(testConfig(), UserDependencies{
		UserRepo:   memUsers{store},
		Cache:      c,
		TTL:        cache.DefaultTTLPolicy(),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
}

func errCode(err error) string {
	if de := apperrors.ToDomainError(err); de != nil {
		return de.Code
	}
	return ""
}

func TestSignupFirstAccountIsAdmin(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{}
	svc := newUserService(store, passThroughCache(), dispatcher)
	ctx := context.Background()

	first, token, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: "ada@example.com", Password: "pw", Skills: []string{" Go ", "go"}})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)
	assert.Equal(t, []string{"go"}, first.Skills)
	assert.NotEmpty(t, token.Value)
	assert.Equal(t, domain.PresenceOnline, first.Presence)

	second, _, err := svc.Signup(ctx, SignupInput{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, second.Role)

	signups := dispatcher.ofType(events.EventUserSignup)
	require.Len(t, signups, 2)
	assert.Equal(t, "bob@example.com", signups[1].Payload.(events.UserSignupPayload).Email)
}

func TestSignupRejectsDuplicatesAndBadInput(t *testing.T) {
	store := newMemStore()
	svc := newUserService(store, passThroughCache(), nil)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)

	_, _, err = svc.Signup(ctx, SignupInput{Username: "ada2", Email: "ADA@example.com", Password: "pw"})
	assert.Equal(t, "CONFLICT", errCode(err))

	_, _, err = svc.Signup(ctx, SignupInput{Username: "ada", Email: "other@example.com", Password: "pw"})
	assert.Equal(t, "CONFLICT", errCode(err))

	_, _, err = svc.Signup(ctx, SignupInput{Username: "eve", Email: "not-an-email", Password: "pw"})
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))

	_, _, err = svc.Signup(ctx, SignupInput{Username: "eve", Email: "eve@example.com"})
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))
}

func TestLogin(t *testing.T) {
	store := newMemStore()
	svc := newUserService(store, passThroughCache(), nil)
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: "ada@example.com", Password: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, memUsers{store}.UpdatePresence(ctx, created.ID, domain.PresenceOffline, created.CreatedAt))

	user, token, err := svc.Login(ctx, "ada", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, domain.PresenceOnline, store.user(created.ID).Presence)

	claims, err := svc.TokenManager().ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject)

	_, _, err = svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada", "wrong")
	assert.Equal(t, "UNAUTHORIZED", errCode(err))
	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	assert.Equal(t, "UNAUTHORIZED", errCode(err))
}

func TestUpdateUserRequiresAdminAndInvalidates(t *testing.T) {
	store := newMemStore()
	admin := store.addUser(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin})
	member := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser, Skills: []string{"sql"}})

	rdb, mock := redismock.NewClientMock()
	client := cache.NewClient(rdb, zap.NewNop())
	mock.ExpectPing().SetVal("PONG")
	mock.ExpectFlushDB().SetVal("OK")
	require.NoError(t, client.Connect(context.Background()))
	c := cache.New(client, zap.NewNop(), cache.Options{})
	svc := newUserService(store, c, nil)

	_, err := svc.UpdateUser(context.Background(), member, UpdateUserInput{Email: admin.Email, Role: domain.RoleUser})
	assert.Equal(t, "FORBIDDEN", errCode(err))

	mock.ExpectDel("moderators:with-skills", "moderator:"+member.ID+":skills", "session:"+member.ID).SetVal(1)
	updated, err := svc.UpdateUser(context.Background(), admin, UpdateUserInput{
		Email:  "bob@example.com",
		Role:   domain.RoleModerator,
		Skills: []string{"React", "Go"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, updated.Role)
	assert.Equal(t, []string{"react", "go"}, store.user(member.ID).Skills)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.UpdateUser(context.Background(), admin, UpdateUserInput{Email: "ghost@example.com"})
	assert.Equal(t, "NOT_FOUND", errCode(err))
	_, err = svc.UpdateUser(context.Background(), admin, UpdateUserInput{Email: "bob@example.com", Role: "root"})
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))
}

func TestListUsersAdminOnly(t *testing.T) {
	store := newMemStore()
	admin := store.addUser(domain.User{Username: "root", Role: domain.RoleAdmin})
	member := store.addUser(domain.User{Username: "bob", Role: domain.RoleUser})
	svc := newUserService(store, passThroughCache(), nil)

	users, err := svc.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.ListUsers(context.Background(), member)
	assert.Equal(t, "FORBIDDEN", errCode(err))
}

func TestUpdatePresence(t *testing.T) {
	store := newMemStore()
	member := store.addUser(domain.User{Username: "bob", Role: domain.RoleUser})
	svc := newUserService(store, passThroughCache(), nil)

	updated, err := svc.UpdatePresence(context.Background(), member, domain.PresenceDND)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceDND, updated.Presence)
	assert.NotNil(t, store.user(member.ID).LastSeen)

	_, err = svc.UpdatePresence(context.Background(), member, "away")
	assert.Equal(t, "VALIDATION_FAILED", errCode(err))
}

func TestModeratorSkills(t *testing.T) {
	store := newMemStore()
	mod := store.addUser(domain.User{Username: "mo", Role: domain.RoleModerator, Skills: []string{"go", "sql"}})
	member := store.addUser(domain.User{Username: "bob", Role: domain.RoleUser, Skills: []string{"go"}})
	svc := newUserService(store, passThroughCache(), nil)

	skills, err := svc.ModeratorSkills(context.Background(), mod.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql"}, skills)

	_, err = svc.ModeratorSkills(context.Background(), member.ID)
	assert.Equal(t, "NOT_FOUND", errCode(err))
	_, err = svc.ModeratorSkills(context.Background(), "missing")
	assert.Equal(t, "NOT_FOUND", errCode(err))
}

func TestSessionUserReadsThroughCache(t *testing.T) {
	store := newMemStore()
	member := store.addUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser})

	rdb, mock := redismock.NewClientMock()
	client := cache.NewClient(rdb, zap.NewNop())
	mock.ExpectPing().SetVal("PONG")
	mock.ExpectFlushDB().SetVal("OK")
	require.NoError(t, client.Connect(context.Background()))
	c := cache.New(client, zap.NewNop(), cache.Options{})
	svc := newUserService(store, c, nil)

	mock.ExpectGet("session:"+member.ID).SetVal(`{"id":"` + member.ID + `","username":"cached","role":"user"}`)
	user, err := svc.SessionUser(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}
