package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of a purchase attempt.
type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusChallenge       OrderStatus = "CHALLENGE"
	StatusLunas           OrderStatus = "LUNAS"
	StatusGagal           OrderStatus = "GAGAL"
	StatusCancel          OrderStatus = "CANCEL"
	StatusMinted          OrderStatus = "MINTED"
	StatusLunasMintFailed OrderStatus = "LUNAS_MINT_FAILED"
)

// MintFailedHash is stored in place of a transaction hash when the
// minting call failed after payment was confirmed.
const MintFailedHash = "TRANSACTION_FAILED"

// IsSeatReleasing reports whether an order in this status frees its seat.
// Only cancelled and failed orders release the seat they were holding.
func (s OrderStatus) IsSeatReleasing() bool {
	return s == StatusCancel || s == StatusGagal
}

// IsPrePaid reports whether the settlement reconciler may still advance
// this order. LUNAS and everything after it is owned by issuance.
func (s OrderStatus) IsPrePaid() bool {
	return s == StatusPending || s == StatusChallenge
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID    string `bun:"order_id,pk" json:"order_id"`
	GatewayRef string `bun:"gateway_ref,notnull,unique" json:"orderId"`
	SnapToken  string `bun:"snap_token" json:"snap_token,omitempty"`

	Email   string `bun:"email,notnull" json:"email"`
	RouteID int64  `bun:"id_rute" json:"idRute"`

	// Route snapshot taken at purchase time. Later catalog edits must not
	// rewrite historical orders.
	Route       string `bun:"rute,notnull" json:"rute"`
	Operator    string `bun:"operator,notnull" json:"operator"`
	TimeSlot    string `bun:"jam,notnull" json:"jam"`
	VehicleType string `bun:"tipe" json:"tipe"`
	Category    string `bun:"kategori" json:"kategori"`

	// TravelDate is an opaque match key, not a calendar date. Upstream
	// search uses a literal "DEFAULT" placeholder.
	TravelDate string `bun:"tanggal,notnull" json:"tanggal"`
	SeatNumber string `bun:"seat_number,notnull" json:"seatNumber"`

	BasePrice int64 `bun:"harga_asli,notnull" json:"hargaAsli"`
	Discount  int64 `bun:"diskon,notnull,default:0" json:"diskon"`
	Total     int64 `bun:"total_bayar,notnull" json:"totalBayar"`

	PassengerName string `bun:"nama_penumpang" json:"namaPenumpang"`
	PassengerNIK  string `bun:"nik_penumpang" json:"nikPenumpang"`
	PickupPoint   string `bun:"lokasi_jemput" json:"lokasi_jemput"`
	DropPoint     string `bun:"lokasi_turun" json:"lokasi_turun"`

	Status   OrderStatus `bun:"status,notnull" json:"status"`
	MintHash string      `bun:"hash,nullzero" json:"hash,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Promo is a finite-quota discount code. Quota decrements are the only
// mutation; once zero the code stops matching regardless of the active flag.
type Promo struct {
	bun.BaseModel `bun:"table:promos"`

	Code     string `bun:"code,pk" json:"code"`
	Active   bool   `bun:"active,notnull" json:"active"`
	Quota    int    `bun:"quota,notnull" json:"quota"`
	Discount int64  `bun:"discount,notnull" json:"discount"`
}

type Route struct {
	bun.BaseModel `bun:"table:routes"`

	ID          int64    `bun:"id,pk" json:"id"`
	Origin      string   `bun:"asal,notnull" json:"asal"`
	Destination string   `bun:"tujuan,notnull" json:"tujuan"`
	Operator    string   `bun:"operator,notnull" json:"operator"`
	VehicleType string   `bun:"tipe" json:"tipe"`
	TimeSlot    string   `bun:"jam,notnull" json:"jam"`
	Fare        int64    `bun:"harga,notnull" json:"harga"`
	Category    string   `bun:"kategori" json:"kategori"`
	Capacity    int      `bun:"kapasitas,notnull" json:"kapasitas"`
	Image       string   `bun:"image" json:"image"`
	Facilities  []string `bun:"fasilitas,array" json:"fasilitas"`
	PickupPoints []string `bun:"titik_jemput,array" json:"titik_jemput"`
	DropPoints   []string `bun:"titik_turun,array" json:"titik_turun"`
}

// Label is the human-readable origin-destination pair recorded on orders.
func (r *Route) Label() string {
	return r.Origin + " - " + r.Destination
}

// RouteAvailability decorates a route with seat ledger results for one
// travel date.
type RouteAvailability struct {
	Route
	RemainingSeats int      `json:"sisaKursi"`
	BookedSeats    []string `json:"bookedSeats"`
	Full           bool     `json:"isFull"`
}

// User is the identity record consulted by the issuance pipeline for the
// payer's on-chain wallet address.
type User struct {
	bun.BaseModel `bun:"table:users"`

	Email         string `bun:"email,pk" json:"email"`
	Name          string `bun:"nama" json:"nama"`
	WalletAddress string `bun:"wallet_address" json:"walletAddress"`
}
