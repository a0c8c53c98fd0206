package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	"github.com/checkerhub/checkerhub/internal/application/support"
	"github.com/checkerhub/checkerhub/internal/domain/checker"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	domain "github.com/checkerhub/checkerhub/internal/domain/payment"
	paymentMocks "github.com/checkerhub/checkerhub/internal/domain/payment/mocks"
	"github.com/checkerhub/checkerhub/internal/domain/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/memory"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fixture struct {
	store       *memory.Store
	client      authz.Actor
	supportUser uuid.UUID
	booking     *conversation.Conversation
	verifier    *paymentMocks.MockVerifier
	receipts    *paymentMocks.MockReceiptStore
	svc         *Service
}

// newFixture seeds an approved booking priced at 50 and an admin checker.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := memory.NewStore()
	supportUser := uuid.New()

	admin, err := checker.New(supportUser, "Support", "", decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, store.Checkers().Create(ctx, admin))

	k, err := checker.New(uuid.New(), "K1", "", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, store.Checkers().Create(ctx, k))

	client := authz.Actor{UserID: uuid.New(), Role: user.RoleMember}
	booking, err := conversation.New(client.UserID, k.ID, k.Price)
	require.NoError(t, err)
	require.NoError(t, store.Conversations().Create(ctx, booking))
	accept, err := conversation.PlanChange(booking.ID, conversation.EventAccept, "user:"+k.UserID.String(), "")
	require.NoError(t, err)
	_, err = store.Conversations().Apply(ctx, accept)
	require.NoError(t, err)

	logger := zerolog.Nop()
	az := authz.NewAuthorizer(nil, supportUser)
	notifier := notify.New(nil, logger)
	supportSvc := support.NewService(store.Conversations(), store.Checkers(), az, notifier, logger)
	verifier := paymentMocks.NewMockVerifier(ctrl)
	receipts := paymentMocks.NewMockReceiptStore(ctrl)
	svc := NewService(store.Conversations(), verifier, receipts, supportSvc, Config{Currency: "USD", MaxReceiptBytes: 1 << 20}, notifier, logger)

	return &fixture{
		store:       store,
		client:      client,
		supportUser: supportUser,
		booking:     booking,
		verifier:    verifier,
		receipts:    receipts,
		svc:         svc,
	}
}

func TestService_ConfirmCheckout(t *testing.T) {
	t.Run("verified order marks booking paid", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.verifier.EXPECT().
			VerifyOrder(ctx, "ORDER-1").
			Return(&domain.Capture{OrderID: "ORDER-1", Status: "COMPLETED", Amount: decimal.NewFromInt(50), Currency: "USD"}, nil)

		d, err := f.svc.ConfirmCheckout(ctx, f.client, f.booking.ID, " ORDER-1 ")
		require.NoError(t, err)
		assert.Equal(t, conversation.StatusPaid, d.Status)
		assert.True(t, d.Price.Equal(decimal.NewFromInt(50)))
		require.NotNil(t, d.PaymentRef)
		assert.Equal(t, "ORDER-1", *d.PaymentRef)

		again, err := f.svc.ConfirmCheckout(ctx, f.client, f.booking.ID, "ORDER-1")
		require.NoError(t, err)
		assert.Equal(t, conversation.StatusPaid, again.Status)
	})

	t.Run("underpaid order is refused", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.verifier.EXPECT().
			VerifyOrder(ctx, "ORDER-2").
			Return(&domain.Capture{OrderID: "ORDER-2", Status: "COMPLETED", Amount: decimal.NewFromInt(10), Currency: "USD"}, nil)

		_, err := f.svc.ConfirmCheckout(ctx, f.client, f.booking.ID, "ORDER-2")
		assert.ErrorIs(t, err, domain.ErrAmountMismatch)

		c, err := f.store.Conversations().GetByID(ctx, f.booking.ID)
		require.NoError(t, err)
		assert.Equal(t, conversation.StatusApproved, c.Status)
	})

	t.Run("provider failure leaves booking approved", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.verifier.EXPECT().VerifyOrder(ctx, "ORDER-3").Return(nil, errors.New("provider down"))

		_, err := f.svc.ConfirmCheckout(ctx, f.client, f.booking.ID, "ORDER-3")
		assert.ErrorIs(t, err, domain.ErrVerificationFailed)

		c, err := f.store.Conversations().GetByID(ctx, f.booking.ID)
		require.NoError(t, err)
		assert.Equal(t, conversation.StatusApproved, c.Status)
	})

	t.Run("only the client may pay", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ConfirmCheckout(context.Background(), authz.Actor{UserID: uuid.New()}, f.booking.ID, "ORDER-4")
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("empty order id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ConfirmCheckout(context.Background(), f.client, f.booking.ID, "  ")
		assert.ErrorIs(t, err, ErrOrderIDRequired)
	})

	t.Run("no verifier configured", func(t *testing.T) {
		f := newFixture(t)
		f.svc.verifier = nil
		_, err := f.svc.ConfirmCheckout(context.Background(), f.client, f.booking.ID, "ORDER-5")
		assert.ErrorIs(t, err, domain.ErrVerifierUnavailable)
	})
}

func TestService_ConfirmCheckoutRequiresApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receipts.EXPECT().Put(ctx, gomock.Any(), "image/png", pngHeader).Return("https://files.example/r.png", nil)

	_, err := f.svc.SubmitReceipt(ctx, f.client, f.booking.ID, pngHeader)
	require.NoError(t, err)

	_, err = f.svc.ConfirmCheckout(ctx, f.client, f.booking.ID, "ORDER-6")
	var conflict *conversation.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, conversation.StatusPaymentPending, conflict.Current)
}

func TestService_SubmitReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receipts.EXPECT().
		Put(ctx, gomock.Any(), "image/png", pngHeader).
		DoAndReturn(func(_ context.Context, key, _ string, _ []byte) (string, error) {
			assert.Contains(t, key, f.booking.ID.String())
			return "https://files.example/" + key, nil
		})

	res, err := f.svc.SubmitReceipt(ctx, f.client, f.booking.ID, pngHeader)
	require.NoError(t, err)
	require.NoError(t, res.SupportErr)

	assert.Equal(t, conversation.StatusPaymentPending, res.Conversation.Status)
	require.NotNil(t, res.Conversation.ReceiptURL)
	assert.Contains(t, *res.Conversation.ReceiptURL, "https://files.example/receipts/")

	require.NotNil(t, res.Support)
	assert.True(t, res.Support.Created)
	assert.Equal(t, conversation.StatusPaymentNegotiation, res.Support.Conversation.Status)
	assert.Equal(t, f.supportUser, res.Support.Conversation.CheckerUserID)

	msgs, err := f.store.Messages().ListByConversation(ctx, res.Support.Conversation.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, f.client.UserID, msgs[0].SenderID)
}

func TestService_SubmitReceiptRejectsBadFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitReceipt(ctx, f.client, f.booking.ID, []byte("just some text"))
	assert.ErrorIs(t, err, domain.ErrReceiptType)

	_, err = f.svc.SubmitReceipt(ctx, f.client, f.booking.ID, nil)
	assert.ErrorIs(t, err, domain.ErrReceiptEmpty)

	c, err := f.store.Conversations().GetByID(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusApproved, c.Status)
	assert.Nil(t, c.ReceiptURL)
}

func TestService_SubmitReceiptStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receipts.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bucket unavailable"))

	_, err := f.svc.SubmitReceipt(ctx, f.client, f.booking.ID, pngHeader)
	assert.Error(t, err)

	c, err := f.store.Conversations().GetByID(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusApproved, c.Status)
	assert.Nil(t, c.ReceiptURL)
}
