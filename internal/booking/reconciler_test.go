package booking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"
)

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		name        string
		transaction string
		fraud       string
		want        models.OrderStatus
		ok          bool
	}{
		{"capture accepted", "capture", "accept", models.StatusLunas, true},
		{"capture challenged", "capture", "challenge", models.StatusChallenge, true},
		{"capture unknown fraud", "capture", "review", "", false},
		{"settlement", "settlement", "", models.StatusLunas, true},
		{"cancel", "cancel", "", models.StatusGagal, true},
		{"deny", "deny", "", models.StatusGagal, true},
		{"expire", "expire", "", models.StatusGagal, true},
		{"pending", "pending", "", models.StatusPending, true},
		{"refund is unmapped", "refund", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := booking.MapGatewayStatus(&models.TransactionStatus{
				TransactionStatus: tc.transaction,
				FraudStatus:       tc.fraud,
			})
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

// placePendingOrder commits one PENDING order through the normal purchase
// flow and returns its gateway reference.
func placePendingOrder(t *testing.T, f *fixture) string {
	t.Helper()
	resp, err := f.service.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)
	return resp.OrderRef
}

func gatewaySays(f *fixture, transaction, fraud string) {
	f.gateway.statusFn = func(orderRef string) (*models.TransactionStatus, error) {
		return &models.TransactionStatus{
			OrderRef:          orderRef,
			TransactionStatus: transaction,
			FraudStatus:       fraud,
		}, nil
	}
}

func TestCheckStatusSettlementMintsAndMails(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)
	gatewaySays(f, "settlement", "")

	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusMinted, resp.OrderStatus)
	assert.Empty(t, resp.MintingError)

	order, err := f.store.GetOrderByRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMinted, order.Status)
	assert.Equal(t, "0xhash", order.MintHash)

	assert.Equal(t, 1, f.minter.callCount())
	assert.Equal(t, 1, f.events.settled)
	assert.Equal(t, 1, f.events.minted)

	mail := f.mailer.waitForMail(t)
	assert.Equal(t, ref, mail.GatewayRef)
	assert.Equal(t, models.StatusMinted, mail.Status)
	assert.Equal(t, "0xhash", mail.MintHash)
}

func TestReconcileTwiceIssuesOnce(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)
	gatewaySays(f, "settlement", "")

	first, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, first.Updated)

	// Second observation of the same paid status: no second mint, no
	// second mail, just the current state.
	second, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, second.Updated)
	assert.Equal(t, models.StatusMinted, second.OrderStatus)

	assert.Equal(t, 1, f.minter.callCount())
	assert.Equal(t, 1, f.store.mintOutcomeWrites)
	f.mailer.waitForMail(t)
	select {
	case <-f.mailer.sent:
		t.Fatal("duplicate e-ticket mail dispatched")
	default:
	}
}

func TestPushThenPullConverge(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)
	gatewaySays(f, "settlement", "")

	f.service.HandleNotification(context.Background(), models.NotificationPayload{
		OrderRef:          ref,
		TransactionStatus: "settlement",
	})

	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, resp.Updated)
	assert.Equal(t, models.StatusMinted, resp.OrderStatus)
	assert.Equal(t, 1, f.minter.callCount())
}

func TestMintFailureKeepsPayment(t *testing.T) {
	f := newFixture()
	f.minter.err = errors.New("rpc unreachable")
	ref := placePendingOrder(t, f)
	gatewaySays(f, "settlement", "")

	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusLunasMintFailed, resp.OrderStatus)
	assert.Contains(t, resp.MintingError, "rpc unreachable")

	order, err := f.store.GetOrderByRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLunasMintFailed, order.Status)
	assert.Equal(t, models.MintFailedHash, order.MintHash)

	assert.Equal(t, 1, f.minter.callCount())
	assert.Equal(t, 1, f.events.mintFailed)

	// The buyer still gets their ticket mail; it just carries no hash.
	mail := f.mailer.waitForMail(t)
	assert.Equal(t, models.StatusLunasMintFailed, mail.Status)
	assert.Equal(t, models.MintFailedHash, mail.MintHash)
}

func TestMissingWalletSkipsMint(t *testing.T) {
	f := newFixture()
	f.store.users["budi@example.com"].WalletAddress = ""
	ref := placePendingOrder(t, f)
	gatewaySays(f, "settlement", "")

	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusLunas, resp.OrderStatus)
	assert.Contains(t, resp.MintingError, "wallet address not found")

	// Payment stands, no mint was attempted, and the mail still goes out.
	assert.Equal(t, 0, f.minter.callCount())
	assert.Equal(t, models.StatusLunas, f.store.orderStatus(ref))
	mail := f.mailer.waitForMail(t)
	assert.Equal(t, models.StatusLunas, mail.Status)
}

func TestChallengeThenSettlement(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)

	gatewaySays(f, "capture", "challenge")
	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusChallenge, resp.OrderStatus)

	gatewaySays(f, "settlement", "")
	resp, err = f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusMinted, resp.OrderStatus)
}

func TestLatePendingDoesNotRewindChallenge(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)

	gatewaySays(f, "capture", "challenge")
	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusChallenge, resp.OrderStatus)

	// An out-of-order pending observation after the fraud review began
	// must not pull the order back.
	gatewaySays(f, "pending", "")
	resp, err = f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, resp.Updated)
	assert.Equal(t, models.StatusChallenge, resp.OrderStatus)
}

func TestRepeatedPendingIsNotAnUpdate(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)

	gatewaySays(f, "pending", "")
	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, resp.Updated)
	assert.Equal(t, models.StatusPending, resp.OrderStatus)
}

func TestLateFailureCannotRevertSettlement(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)

	gatewaySays(f, "settlement", "")
	_, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)

	// A stale expire observation after settlement is a no-op.
	gatewaySays(f, "expire", "")
	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, resp.Updated)
	assert.Equal(t, models.StatusMinted, resp.OrderStatus)
}

func TestFailureReleasesSeatForRebooking(t *testing.T) {
	f := newFixture()
	f.seats.denyAll = false
	ref := placePendingOrder(t, f)

	gatewaySays(f, "expire", "")
	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resp.Updated)
	assert.Equal(t, models.StatusGagal, resp.OrderStatus)

	// The failed order no longer guards the seat in the store, but the
	// advisory hold from the first purchase may still be live, so clear it
	// the way an expiring TTL would.
	f.seats.holds = map[string]string{}

	_, err = f.service.Purchase(context.Background(), purchaseReq())
	assert.NoError(t, err)
}

func TestUnmappedStatusIsNoOp(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)
	gatewaySays(f, "refund", "")

	resp, err := f.service.CheckStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, resp.Updated)
	assert.Equal(t, models.StatusPending, resp.OrderStatus)
}

func TestCheckStatusUnknownOrder(t *testing.T) {
	f := newFixture()
	gatewaySays(f, "settlement", "")

	_, err := f.service.CheckStatus(context.Background(), "TIKET-404")
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.Equal(t, 0, f.gateway.statusCalls)
}

func TestCheckStatusGatewayDownChangesNothing(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)
	f.gateway.statusFn = func(string) (*models.TransactionStatus, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.service.CheckStatus(context.Background(), ref)
	assert.ErrorIs(t, err, booking.ErrGateway)
	assert.Equal(t, models.StatusPending, f.store.orderStatus(ref))
}

func TestNotificationWithoutIdentityIsDropped(t *testing.T) {
	f := newFixture()

	f.service.HandleNotification(context.Background(), models.NotificationPayload{})
	assert.Equal(t, 0, f.gateway.statusCalls)
}

func TestNotificationBodyIsNeverTrusted(t *testing.T) {
	f := newFixture()
	ref := placePendingOrder(t, f)

	// The pushed body claims settlement; the gateway re-query says the
	// transaction actually expired. The re-query wins.
	gatewaySays(f, "expire", "")
	f.service.HandleNotification(context.Background(), models.NotificationPayload{
		OrderRef:          ref,
		TransactionStatus: "settlement",
	})

	assert.Equal(t, models.StatusGagal, f.store.orderStatus(ref))
	assert.Equal(t, 0, f.minter.callCount())
}

func TestNotificationForUnknownOrderIsAbsorbed(t *testing.T) {
	f := newFixture()
	gatewaySays(f, "settlement", "")

	// Spoofed ref: the gateway knows it, our store does not. Nothing to
	// update, nothing to issue, no panic.
	f.service.HandleNotification(context.Background(), models.NotificationPayload{
		OrderRef:          "TIKET-SPOOFED",
		TransactionStatus: "settlement",
	})
	assert.Equal(t, 0, f.minter.callCount())
}
