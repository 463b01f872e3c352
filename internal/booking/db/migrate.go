package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// activeSeatIndex enforces the seat-uniqueness invariant at write time:
// at most one non-cancelled, non-failed order per (route label, operator,
// time slot, travel date, seat number). Both Postgres and SQLite accept
// this partial index form.
const activeSeatIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_active_seat
ON orders (rute, operator, jam, tanggal, seat_number)
WHERE status NOT IN ('CANCEL', 'GAGAL')`

// Migrate creates the schema and the seat-uniqueness index, then seeds a
// handful of routes when the catalog is empty. Full fleet seeding belongs
// to the reference-data pipeline, not this service.
func Migrate(ctx context.Context, bunDB *bun.DB) error {
	tables := []interface{}{
		(*models.Order)(nil),
		(*models.Promo)(nil),
		(*models.Route)(nil),
		(*models.User)(nil),
	}
	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	if _, err := bunDB.ExecContext(ctx, activeSeatIndex); err != nil {
		return fmt.Errorf("create seat index: %w", err)
	}

	return seedRoutes(ctx, bunDB)
}

func seedRoutes(ctx context.Context, bunDB *bun.DB) error {
	count, err := bunDB.NewSelect().Model((*models.Route)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count routes: %w", err)
	}
	if count > 0 {
		return nil
	}

	samples := []models.Route{
		{
			ID: 1, Origin: "Medan", Destination: "Parapat",
			Operator: "ALS", VehicleType: "Executive AC", TimeSlot: "08:00",
			Fare: 110000, Category: "BUS", Capacity: 40,
			Facilities:   []string{"Toilet", "Selimut"},
			PickupPoints: []string{"Loket Amplas (Jl. SM Raja KM 6,5)", "Pool ALS Pusat"},
			DropPoints:   []string{"Pelabuhan Tiga Raja", "Hotel Niagara"},
		},
		{
			ID: 2, Origin: "Medan", Destination: "Pematang Siantar",
			Operator: "Sejahtera", VehicleType: "Patas AC", TimeSlot: "10:00",
			Fare: 20000, Category: "BUS", Capacity: 45,
			Facilities:   []string{"AC"},
			PickupPoints: []string{"Loket Pinang Baris"},
			DropPoints:   []string{"Terminal Tanjung Pinggir", "Ramayana"},
		},
		{
			ID: 3, Origin: "Medan", Destination: "Balige",
			Operator: "KBT Travel", VehicleType: "Hiace", TimeSlot: "14:00",
			Fare: 160000, Category: "TRAVEL", Capacity: 10,
			Facilities:   []string{"Captain Seat"},
			PickupPoints: []string{"Loket Ringroad"},
			DropPoints:   []string{"Pasar Balige", "Pantai Bulbul"},
		},
	}

	_, err = bunDB.NewInsert().Model(&samples).Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed routes: %w", err)
	}
	return nil
}
