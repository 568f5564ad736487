package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boardsync/boardsync/internal/domain/payment"
)

// OrdersAPI groups order endpoints.
type OrdersAPI struct {
	c *Client
}

// Orders returns the order endpoint group.
func (c *Client) Orders() OrdersAPI { return OrdersAPI{c: c} }

// List pages through orders, newest first.
func (a OrdersAPI) List(ctx context.Context, skip, limit int) ([]payment.Order, int, error) {
	return getList[payment.Order](ctx, a.c, fmt.Sprintf("/orders?skip=%d&limit=%d", skip, limit))
}

// Create creates an order.
func (a OrdersAPI) Create(ctx context.Context, input payment.CreateOrderInput) (*payment.Order, error) {
	return mutateEntity[payment.Order](ctx, a.c, http.MethodPost, "/orders", input)
}

// Cancel cancels a pending order, returning raw entity JSON for merging.
func (a OrdersAPI) Cancel(ctx context.Context, id string) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/cancel", nil)
}

// PaymentsAPI groups payment QR endpoints.
type PaymentsAPI struct {
	c *Client
}

// Payments returns the payment endpoint group.
func (c *Client) Payments() PaymentsAPI { return PaymentsAPI{c: c} }

// SampleOrder creates a demo order with an immediately-active QR code.
func (a PaymentsAPI) SampleOrder(ctx context.Context) (*payment.SampleOrderResult, error) {
	return mutateEntity[payment.SampleOrderResult](ctx, a.c, http.MethodPost, "/payments/sample-order", nil)
}

// GenerateQR issues a payment QR code for an order with a server-side
// expiry deadline.
func (a PaymentsAPI) GenerateQR(ctx context.Context, orderID, currency string) (*payment.QRResult, error) {
	body := map[string]string{"orderId": orderID, "currency": currency}
	return mutateEntity[payment.QRResult](ctx, a.c, http.MethodPost, "/payments/qr", body)
}
