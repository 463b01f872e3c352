package booking

import "errors"

// Error taxonomy surfaced to the HTTP layer. Minting and notification
// failures are deliberately absent: they are contained inside the issuance
// pipeline and never fail a request.
var (
	ErrSeatConflict  = errors.New("seat already booked for this route and date")
	ErrInvalidAmount = errors.New("total payable is below the gateway minimum")
	ErrNotFound      = errors.New("record not found")
	ErrGateway       = errors.New("payment gateway error")
)
