package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/checkerhub/checkerhub/internal/domain/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/memory"
)

func newService() *Service {
	return NewService(memory.NewStore().Users(), zerolog.Nop())
}

func TestService_BootstrapOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	admin, err := svc.Bootstrap(ctx, "Operator", "Ops", "s3cure-pass-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Equal(t, "operator", admin.Username)

	_, err = svc.Bootstrap(ctx, "second", "", "s3cure-pass-2")
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	u, err := svc.Register(ctx, "client1", "Client One", "correct-horse-9")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, u.Role)
	assert.True(t, u.IsActive())
	assert.True(t, u.CheckPassword("correct-horse-9"))

	_, err = svc.Register(ctx, "CLIENT1", "", "correct-horse-9")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = svc.Register(ctx, "client2", "", "short1")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	u, err := svc.Register(ctx, "client1", "", "correct-horse-9")
	require.NoError(t, err)

	disabled := domain.StatusDisabled
	name := "  Client One "
	updated, err := svc.UpdateUser(ctx, u.UserID, UpdateInput{Status: &disabled, DisplayName: &name})
	require.NoError(t, err)
	assert.False(t, updated.IsActive())
	assert.Equal(t, "Client One", updated.DisplayName)

	bogus := domain.Role("ROOT")
	_, err = svc.UpdateUser(ctx, u.UserID, UpdateInput{Role: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = svc.UpdateUser(ctx, uuid.New(), UpdateInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_SetPassword(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	clock := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	u, err := svc.Register(ctx, "client1", "", "correct-horse-9")
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	require.NoError(t, svc.SetPassword(ctx, u.UserID, "battery-staple-7"))
	got, err := svc.GetUser(ctx, u.UserID)
	require.NoError(t, err)
	assert.True(t, got.CheckPassword("battery-staple-7"))
	assert.Equal(t, clock, got.UpdatedAt)

	assert.ErrorIs(t, svc.SetPassword(ctx, u.UserID, "nodigits-here"), domain.ErrInvalid)
}

func TestService_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	for _, name := range []string{"alice1", "bob22", "carol3"} {
		_, err := svc.Register(ctx, name, "", "correct-horse-9")
		require.NoError(t, err)
	}
	_, err := svc.CreateUser(ctx, CreateInput{Username: "ops01", DisplayName: "Bob Ops", Password: "correct-horse-9", Role: domain.RoleAdmin})
	require.NoError(t, err)

	all, err := svc.ListUsers(ctx, domain.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	bobs, err := svc.ListUsers(ctx, domain.Filter{Search: "BOB"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, bobs, 2)

	admin := domain.RoleAdmin
	admins, err := svc.ListUsers(ctx, domain.Filter{Role: &admin}, 10, 0)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "ops01", admins[0].Username)

	none, err := svc.ListUsers(ctx, domain.Filter{Search: "zed"}, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
