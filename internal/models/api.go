package models

// PurchaseRequest is the body of POST /api/beli.
type PurchaseRequest struct {
	RouteID       int64  `json:"idRute"`
	Email         string `json:"emailUser"`
	TravelDate    string `json:"tanggal"`
	PromoCode     string `json:"promoCode,omitempty"`
	SeatNumber    string `json:"seatNumber"`
	PickupPoint   string `json:"lokasiJemput"`
	DropPoint     string `json:"lokasiTurun"`
	PassengerName string `json:"namaPenumpang"`
	PassengerNIK  string `json:"nikPenumpang"`
}

type PurchaseResponse struct {
	OrderRef    string `json:"orderId"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CheckStatusRequest is the body of POST /api/check-status, the pull-path
// trigger for reconciliation.
type CheckStatusRequest struct {
	OrderRef string `json:"orderId"`
}

type CheckStatusResponse struct {
	OrderStatus  OrderStatus `json:"orderStatus"`
	Updated      bool        `json:"updated"`
	MintingError string      `json:"mintingError,omitempty"`
}

type PromoCheckRequest struct {
	Code string `json:"code"`
}

type PromoCheckResponse struct {
	Valid    bool  `json:"valid"`
	Discount int64 `json:"discount,omitempty"`
}

type VerifyTicketRequest struct {
	Hash string `json:"hash"`
}

type VerifyTicketResponse struct {
	Valid bool          `json:"valid"`
	Data  *TicketDetail `json:"data,omitempty"`
}

type TicketDetail struct {
	PassengerName string      `json:"nama"`
	Route         string      `json:"rute"`
	TravelDate    string      `json:"tanggal"`
	TimeSlot      string      `json:"jam"`
	Seat          string      `json:"seat"`
	Status        OrderStatus `json:"status"`
}

// TicketMetadata is the deterministic projection of an order served to the
// minting network as the ticket token's descriptive metadata.
type TicketMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type AdminStats struct {
	TotalTickets int64   `json:"totalTiket"`
	TotalRevenue int64   `json:"totalPendapatan"`
	RecentOrders []Order `json:"recentOrders"`
}
