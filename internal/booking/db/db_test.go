package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/models"
)

const activeSeatIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_active_seat
ON orders (rute, operator, jam, tanggal, seat_number)
WHERE status NOT IN ('CANCEL', 'GAGAL')`

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	// The Route model carries Postgres array columns, so route queries are
	// not exercised against SQLite.
	for _, model := range []interface{}{
		(*models.Order)(nil),
		(*models.Promo)(nil),
		(*models.User)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}
	_, err = bunDB.ExecContext(ctx, activeSeatIndex)
	require.NoError(t, err)

	return &db.DB{Bun: bunDB}
}

func sampleOrder(ref, seat string, status models.OrderStatus) *models.Order {
	return &models.Order{
		OrderID:       "oid-" + ref,
		GatewayRef:    ref,
		Email:         "budi@example.com",
		Route:         "Medan - Parapat",
		Operator:      "ALS",
		TimeSlot:      "08:00",
		TravelDate:    "DEFAULT",
		SeatNumber:    seat,
		BasePrice:     110000,
		Total:         110000,
		PassengerName: "Budi",
		Status:        status,
		CreatedAt:     time.Now().Round(time.Second),
	}
}

func TestCreateOrderSeatConflict(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))

	// Same seat key while the first order is still live.
	err := store.CreateOrder(ctx, sampleOrder("TIKET-2", "A1", models.StatusPending))
	assert.ErrorIs(t, err, db.ErrSeatTaken)

	// A different seat on the same departure is fine.
	assert.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-3", "A2", models.StatusPending)))
}

func TestFailedOrderReleasesSeat(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusGagal)))

	// GAGAL does not hold the seat, so a new attempt may take it.
	assert.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-2", "A1", models.StatusPending)))

	held, err := store.IsSeatHeld(ctx, "Medan - Parapat", "ALS", "08:00", "DEFAULT", "A1")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestClaimPaidExactlyOnce(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))

	claimed, err := store.ClaimPaid(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// The second claim loses: the order already left the pre-paid states.
	claimed, err = store.ClaimPaid(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	order, err := store.GetOrderByRef(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusLunas, order.Status)
}

func TestClaimPaidFromChallenge(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusChallenge)))

	claimed, err := store.ClaimPaid(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestTransitionStatusNeverRevertsTerminal(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))

	changed, err := store.TransitionStatus(ctx, "TIKET-1", models.StatusGagal)
	require.NoError(t, err)
	assert.True(t, changed)

	// GAGAL is terminal; a late PENDING notification must not revive it.
	changed, err = store.TransitionStatus(ctx, "TIKET-1", models.StatusPending)
	require.NoError(t, err)
	assert.False(t, changed)

	order, err := store.GetOrderByRef(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusGagal, order.Status)
}

func TestTransitionStatusNeverRewindsChallenge(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))

	changed, err := store.TransitionStatus(ctx, "TIKET-1", models.StatusChallenge)
	require.NoError(t, err)
	assert.True(t, changed)

	// A late pending observation after the fraud review started must not
	// pull the order out of CHALLENGE.
	changed, err = store.TransitionStatus(ctx, "TIKET-1", models.StatusPending)
	require.NoError(t, err)
	assert.False(t, changed)

	order, err := store.GetOrderByRef(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusChallenge, order.Status)
}

func TestTransitionStatusSameStatusIsNotAnUpdate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))
	changed, err := store.TransitionStatus(ctx, "TIKET-1", models.StatusPending)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-2", "A2", models.StatusChallenge)))
	changed, err = store.TransitionStatus(ctx, "TIKET-2", models.StatusChallenge)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetMintOutcomeOnlyFromLunas(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusLunas)))

	written, err := store.SetMintOutcome(ctx, "TIKET-1", models.StatusMinted, "0xabc123")
	require.NoError(t, err)
	assert.True(t, written)

	// The order already carries an outcome; a duplicate attempt is a no-op.
	written, err = store.SetMintOutcome(ctx, "TIKET-1", models.StatusLunasMintFailed, models.MintFailedHash)
	require.NoError(t, err)
	assert.False(t, written)

	order, err := store.GetOrderByRef(ctx, "TIKET-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMinted, order.Status)
	assert.Equal(t, "0xabc123", order.MintHash)
}

func TestGetOrderByHash(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	order := sampleOrder("TIKET-1", "A1", models.StatusMinted)
	order.MintHash = "0xdeadbeef"
	require.NoError(t, store.CreateOrder(ctx, order))

	found, err := store.GetOrderByHash(ctx, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, "TIKET-1", found.GatewayRef)

	_, err = store.GetOrderByHash(ctx, "0xmissing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestHeldSeatsExcludesReleasedStatuses(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-1", "A1", models.StatusPending)))
	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-2", "A2", models.StatusLunas)))
	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-3", "A3", models.StatusGagal)))
	require.NoError(t, store.CreateOrder(ctx, sampleOrder("TIKET-4", "A4", models.StatusCancel)))

	seats, err := store.HeldSeats(ctx, "Medan - Parapat", "ALS", "08:00", "DEFAULT")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, seats)

	byDest, err := store.HeldSeatsByDestination(ctx, "parapat", "DEFAULT")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, byDest)
}

func TestConsumePromoUntilExhausted(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.Bun.NewInsert().
		Model(&models.Promo{Code: "HEMAT10", Active: true, Quota: 2, Discount: 10000}).
		Exec(ctx)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		promo, err := store.ConsumePromo(ctx, "HEMAT10")
		require.NoError(t, err)
		require.NotNil(t, promo)
		assert.Equal(t, int64(10000), promo.Discount)
	}

	// Quota spent: the code stops matching instead of going negative.
	promo, err := store.ConsumePromo(ctx, "HEMAT10")
	require.NoError(t, err)
	assert.Nil(t, promo)

	require.NoError(t, store.RestorePromo(ctx, "HEMAT10"))

	promo, err = store.ConsumePromo(ctx, "HEMAT10")
	require.NoError(t, err)
	assert.NotNil(t, promo)
}

func TestConsumePromoInactive(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.Bun.NewInsert().
		Model(&models.Promo{Code: "MATI", Active: false, Quota: 5, Discount: 5000}).
		Exec(ctx)
	require.NoError(t, err)

	promo, err := store.ConsumePromo(ctx, "MATI")
	require.NoError(t, err)
	assert.Nil(t, promo)

	_, err = store.GetActivePromo(ctx, "MATI")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPaidOrderStats(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	paid := sampleOrder("TIKET-1", "A1", models.StatusLunas)
	paid.Total = 100000
	minted := sampleOrder("TIKET-2", "A2", models.StatusMinted)
	minted.Total = 150000
	pending := sampleOrder("TIKET-3", "A3", models.StatusPending)

	require.NoError(t, store.CreateOrder(ctx, paid))
	require.NoError(t, store.CreateOrder(ctx, minted))
	require.NoError(t, store.CreateOrder(ctx, pending))

	stats, err := store.PaidOrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTickets)
	assert.Equal(t, int64(250000), stats.TotalRevenue)
	assert.Len(t, stats.RecentOrders, 3)
}
