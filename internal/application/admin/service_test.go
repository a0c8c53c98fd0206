package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	convMocks "github.com/checkerhub/checkerhub/internal/domain/conversation/mocks"
	"github.com/checkerhub/checkerhub/internal/domain/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/memory"
)

var operator = authz.Actor{UserID: uuid.New(), Role: user.RoleMember}

func newService(repo conversation.Repository) *Service {
	logger := zerolog.Nop()
	return NewService(repo, authz.NewAuthorizer([]uuid.UUID{operator.UserID}, uuid.Nil), notify.New(nil, logger), logger)
}

func seed(t *testing.T, store *memory.Store, status conversation.Status) *conversation.Conversation {
	t.Helper()
	c, err := conversation.New(uuid.New(), uuid.New(), decimal.NewFromInt(50))
	require.NoError(t, err)
	c.Status = status
	require.NoError(t, store.Conversations().Create(context.Background(), c))
	return c
}

func TestNormalizeID(t *testing.T) {
	id := uuid.New()
	for _, raw := range []string{
		id.String(),
		"  " + id.String() + "\n",
		"#" + id.String(),
		"\"#" + id.String() + "\"",
		"[" + id.String() + "]",
		"'" + id.String() + "'",
	} {
		got, err := NormalizeID(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, id, got, raw)
	}
	for _, raw := range []string{"", "#", "not-an-id", "12345"} {
		_, err := NormalizeID(raw)
		assert.ErrorIs(t, err, conversation.ErrNotFound, raw)
	}
}

func TestService_ActivatePaymentPending(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store.Conversations())
	ctx := context.Background()
	c := seed(t, store, conversation.StatusPaymentPending)

	res, err := svc.Activate(ctx, operator, "#"+c.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Activated)
	assert.False(t, res.AlreadyActive)
	assert.Equal(t, conversation.StatusApproved, res.Conversation.Status)

	again, err := svc.Activate(ctx, operator, c.ID.String())
	require.NoError(t, err)
	assert.False(t, again.Activated)
	assert.True(t, again.AlreadyActive)
	assert.Equal(t, conversation.StatusApproved, again.Conversation.Status)

	trs, err := store.Conversations().ListTransitions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, trs, 2)
}

func TestService_ActivateStatuses(t *testing.T) {
	cases := []struct {
		status    conversation.Status
		activated bool
		already   bool
		err       error
	}{
		{conversation.StatusPendingApproval, true, false, nil},
		{conversation.StatusPaymentNegotiation, true, false, nil},
		{conversation.StatusApproved, false, true, nil},
		{conversation.StatusPaid, false, true, nil},
		{conversation.StatusRejected, false, false, conversation.ErrTerminal},
		{conversation.StatusCancelled, false, false, conversation.ErrTerminal},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			store := memory.NewStore()
			svc := newService(store.Conversations())
			c := seed(t, store, tc.status)

			res, err := svc.Activate(context.Background(), operator, c.ID.String())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				got, gerr := store.Conversations().GetByID(context.Background(), c.ID)
				require.NoError(t, gerr)
				assert.Equal(t, tc.status, got.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.activated, res.Activated)
			assert.Equal(t, tc.already, res.AlreadyActive)
		})
	}
}

func TestService_LookupAndAuthorization(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store.Conversations())
	ctx := context.Background()
	c := seed(t, store, conversation.StatusPaid)

	_, err := svc.Lookup(ctx, authz.Actor{UserID: uuid.New(), Role: user.RoleMember}, c.ID.String())
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = svc.Activate(ctx, authz.Actor{UserID: c.ClientID, Role: user.RoleMember}, c.ID.String())
	assert.ErrorIs(t, err, authz.ErrForbidden)

	res, err := svc.Lookup(ctx, authz.Actor{UserID: uuid.New(), Role: user.RoleAdmin}, " "+c.ID.String())
	require.NoError(t, err)
	assert.True(t, res.AlreadyActive)
	assert.Equal(t, c.ID, res.Conversation.ID)

	_, err = svc.Lookup(ctx, operator, uuid.NewString())
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	_, err = svc.Lookup(ctx, operator, "garbage")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestService_ActivateLosesRaceToPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := convMocks.NewMockRepository(ctrl)
	svc := newService(repo)
	ctx := context.Background()

	id := uuid.New()
	pending := &conversation.Detail{Conversation: conversation.Conversation{ID: id, Status: conversation.StatusPendingApproval}}
	paid := &conversation.Detail{Conversation: conversation.Conversation{ID: id, Status: conversation.StatusPaid}}

	gomock.InOrder(
		repo.EXPECT().GetDetail(ctx, id).Return(pending, nil),
		repo.EXPECT().Apply(ctx, gomock.Any()).Return(nil, &conversation.ConflictError{ConversationID: id, Event: conversation.EventAdminActivate, Current: conversation.StatusApproved}),
		repo.EXPECT().GetDetail(ctx, id).Return(paid, nil),
	)

	res, err := svc.Activate(ctx, operator, id.String())
	require.NoError(t, err)
	assert.True(t, res.AlreadyActive)
	assert.Equal(t, conversation.StatusPaid, res.Conversation.Status)
}
