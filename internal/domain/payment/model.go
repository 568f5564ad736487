package payment

import "time"

// OrderStatus tracks an order through its payment lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a purchase awaiting payment.
type Order struct {
	ID        string         `json:"_id"`
	UserID    string         `json:"userId"`
	Amount    float64        `json:"amount"`
	Currency  string         `json:"currency"`
	Status    OrderStatus    `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CreateOrderInput defines order creation fields.
type CreateOrderInput struct {
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QRStatus is the displayed state of the active payment QR code.
type QRStatus string

const (
	QRPending   QRStatus = "pending"
	QRPaid      QRStatus = "paid"
	QRExpired   QRStatus = "expired"
	QRCancelled QRStatus = "cancelled"
)

// QRResult is a server-issued payment QR code with an absolute deadline.
type QRResult struct {
	QRID      string    `json:"qrId"`
	QRImage   string    `json:"qrImage"`
	ExpiresAt time.Time `json:"expiresAt"`
	Amount    float64   `json:"amount"`
}

// SampleOrderResult bundles a demo order with its immediately-active QR.
type SampleOrderResult struct {
	Order     Order     `json:"order"`
	QRID      string    `json:"qrId"`
	QRImage   string    `json:"qrImage"`
	ExpiresAt time.Time `json:"expiresAt"`
	Amount    float64   `json:"amount"`
}

/// ConfirmedEvent is the payload of a payment:confirmed event. It originates
// server-side; there is no local precursor to deduplicate against.
type ConfirmedEvent struct {
	OrderID  string  `json:"orderId"`
	QRID     string  `json:"qrId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ExpiredEvent is the payload of a payment:expired event.
type ExpiredEvent struct {
	OrderID string `json:"orderId"`
	QRID    string `json:"qrId"`
}
