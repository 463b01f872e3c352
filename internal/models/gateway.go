package models

// SessionRequest carries what the payment gateway needs to open a payable
// transaction for one order.
type SessionRequest struct {
	OrderRef      string `json:"order_ref"`
	GrossAmount   int64  `json:"gross_amount"`
	ItemName      string `json:"item_name"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

// Session is the gateway-issued transaction context.
type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the gateway's authoritative answer for one order
// reference.
type TransactionStatus struct {
	OrderRef          string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// NotificationPayload is the inbound webhook body. Every field is optional:
// the gateway's test traffic arrives on the same channel and may carry
// none of them. The pushed status is never trusted; only the reference is
// used, and the authoritative status is re-queried from the gateway.
type NotificationPayload struct {
	OrderRef          string `json:"order_id,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`
	FraudStatus       string `json:"fraud_status,omitempty"`
}
