package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

var (
	// ErrSeatTaken surfaces the unique-violation on the active-seat index.
	// The constraint, not an application-level pre-check, is the
	// serialization point for a seat key.
	ErrSeatTaken = errors.New("seat already held for this route and date")
	ErrNotFound  = errors.New("record not found")
)

type DB struct {
	Bun *bun.DB
}

// isUniqueViolation matches both the pgdriver ("23505"/"duplicate key") and
// the sqlite ("UNIQUE constraint failed") wording. Only the active-seat
// index and gateway_ref carry unique constraints on orders.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// ---------------- ORDERS ----------------

// CreateOrder inserts a new purchase attempt. Two concurrent inserts for
// the same seat key race on the partial unique index and exactly one wins;
// the loser gets ErrSeatTaken.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	if isUniqueViolation(err) {
		return ErrSeatTaken
	}
	return err
}

func (d *DB) GetOrderByRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("gateway_ref = ?", ref).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByHash(ctx context.Context, hash string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("email = ?", email).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ClaimPaid is the single issuance ticket: it moves an order into LUNAS
// only while the reconciler still owns it (PENDING or CHALLENGE). When
// push and pull observe a paid gateway status concurrently, exactly one
// caller sees true.
func (d *DB) ClaimPaid(ctx context.Context, ref string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.StatusLunas).
		Where("gateway_ref = ?", ref).
		Where("status IN (?)", bun.In([]models.OrderStatus{models.StatusPending, models.StatusChallenge})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TransitionStatus applies a forward-only move. Each target has its own
// set of allowed source states: GAGAL from either pre-paid state,
// CHALLENGE only from PENDING. Terminal states are never reverted, a
// late pending observation never rewinds a challenge, and re-writing the
// stored status is not a transition.
func (d *DB) TransitionStatus(ctx context.Context, ref string, to models.OrderStatus) (bool, error) {
	var from []models.OrderStatus
	switch to {
	case models.StatusGagal:
		from = []models.OrderStatus{models.StatusPending, models.StatusChallenge}
	case models.StatusChallenge:
		from = []models.OrderStatus{models.StatusPending}
	default:
		return false, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Where("gateway_ref = ?", ref).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetMintOutcome records the issuance artifact exactly once: the write is
// conditional on the order still being in LUNAS, so a second attempt after
// MINTED or LUNAS_MINT_FAILED is a no-op.
func (d *DB) SetMintOutcome(ctx context.Context, ref string, status models.OrderStatus, hash string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("hash = ?", hash).
		Where("gateway_ref = ?", ref).
		Where("status = ?", models.StatusLunas).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---------------- SEAT LEDGER ----------------

// HeldSeats lists seat numbers held for one seat key prefix (route label,
// operator, time slot, travel date). Cancelled and failed orders release
// their seats.
func (d *DB) HeldSeats(ctx context.Context, routeLabel, operator, timeSlot, date string) ([]string, error) {
	var seats []string
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("seat_number").
		Where("rute = ?", routeLabel).
		Where("operator = ?", operator).
		Where("jam = ?", timeSlot).
		Where("tanggal = ?", date).
		Where("status NOT IN (?)", bun.In([]models.OrderStatus{models.StatusCancel, models.StatusGagal})).
		Scan(ctx, &seats)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// HeldSeatsByDestination is the looser seat-map query: any route label
// containing the destination, matched case-insensitively.
func (d *DB) HeldSeatsByDestination(ctx context.Context, destination, date string) ([]string, error) {
	var seats []string
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("seat_number").
		Where("LOWER(rute) LIKE ?", "%"+strings.ToLower(destination)+"%").
		Where("tanggal = ?", date).
		Where("status NOT IN (?)", bun.In([]models.OrderStatus{models.StatusCancel, models.StatusGagal})).
		Scan(ctx, &seats)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

func (d *DB) IsSeatHeld(ctx context.Context, routeLabel, operator, timeSlot, date, seatNumber string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("rute = ?", routeLabel).
		Where("operator = ?", operator).
		Where("jam = ?", timeSlot).
		Where("tanggal = ?", date).
		Where("seat_number = ?", seatNumber).
		Where("status NOT IN (?)", bun.In([]models.OrderStatus{models.StatusCancel, models.StatusGagal})).
		Exists(ctx)
}

// ---------------- PROMOS ----------------

func (d *DB) GetActivePromo(ctx context.Context, code string) (*models.Promo, error) {
	var promo models.Promo
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Where("active = ?", true).
		Where("quota > 0").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// ConsumePromo decrements one quota unit with a conditional update, so
// concurrent redemptions of the same code cannot overdraw it. The returned
// promo is nil when the code does not match or the quota is exhausted.
func (d *DB) ConsumePromo(ctx context.Context, code string) (*models.Promo, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Promo)(nil)).
		Set("quota = quota - 1").
		Where("code = ?", code).
		Where("active = ?", true).
		Where("quota > 0").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	var promo models.Promo
	if err := d.Bun.NewSelect().Model(&promo).Where("code = ?", code).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &promo, nil
}

// RestorePromo gives back one quota unit when a purchase that consumed it
// fails before the order is committed.
func (d *DB) RestorePromo(ctx context.Context, code string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Promo)(nil)).
		Set("quota = quota + 1").
		Where("code = ?", code).
		Exec(ctx)
	return err
}

// ---------------- ROUTES ----------------

func (d *DB) GetRouteByID(ctx context.Context, id int64) (*models.Route, error) {
	var route models.Route
	err := d.Bun.NewSelect().
		Model(&route).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (d *DB) SearchRoutes(ctx context.Context, origin, destination string, limit int) ([]models.Route, error) {
	var routes []models.Route
	q := d.Bun.NewSelect().Model(&routes)
	if origin != "" {
		q = q.Where("LOWER(asal) LIKE ?", "%"+strings.ToLower(origin)+"%")
	}
	if destination != "" {
		q = q.Where("LOWER(tujuan) LIKE ?", "%"+strings.ToLower(destination)+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return routes, nil
}

// ---------------- USERS ----------------

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ---------------- ADMIN ----------------

func (d *DB) PaidOrderStats(ctx context.Context) (*models.AdminStats, error) {
	paid := []models.OrderStatus{models.StatusLunas, models.StatusMinted}

	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("status IN (?)", bun.In(paid)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	var revenue int64
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(total_bayar), 0)").
		Where("status IN (?)", bun.In(paid)).
		Scan(ctx, &revenue)
	if err != nil {
		return nil, err
	}

	var recent []models.Order
	err = d.Bun.NewSelect().
		Model(&recent).
		Order("created_at DESC").
		Limit(5).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &models.AdminStats{
		TotalTickets: int64(count),
		TotalRevenue: revenue,
		RecentOrders: recent,
	}, nil
}
