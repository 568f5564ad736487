package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/sched"
)

var ErrNotFound = errors.New("order not found")

// OrdersAPI is the order surface the store mutates through.
type OrdersAPI interface {
	List(ctx context.Context, skip, limit int) ([]Order, int, error)
	Create(ctx context.Context, input CreateOrderInput) (*Order, error)
	Cancel(ctx context.Context, id string) (json.RawMessage, error)
}

// QRAPI issues payment QR codes.
type QRAPI interface {
	SampleOrder(ctx context.Context) (*SampleOrderResult, error)
	GenerateQR(ctx context.Context, orderID, currency string) (*QRResult, error)
}

// Realtime is the slice of the socket the store subscribes through.
type Realtime interface {
	ClientID() string
	JoinRoom(room string)
	LeaveRoom(room string)
	On(event string, fn realtime.Handler) int
	Off(event string, tokens ...int)
}

// Store holds the order list and the single active payment QR. The active
// QR's id is the correlation key: confirmation and expiry events naming a
// different QR are stale and ignored. Payment events have no origin client,
// they come from the payment provider, so none are suppressed.
type Store struct {
	orders   OrdersAPI
	payments QRAPI
	rt       Realtime
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	// tickInterval shortens the countdown tick in tests. Zero means 1s.
	tickInterval time.Duration

	mu            sync.RWMutex
	orderList     map[string]Order
	total         int
	activeOrderID string
	activeQR      *QRResult
	qrStatus      QRStatus
	countdown     *sched.Countdown
	remaining     time.Duration
	subscribed    bool
	userRoom      string
	tokens        map[string][]int
}

type StoreOptions struct {
	Orders   OrdersAPI
	Payments QRAPI
	Realtime Realtime
	Notifier notify.Notifier
	Logger   *slog.Logger
	OnChange func()
	// TickInterval overrides the countdown tick. Zero means 1s.
	TickInterval time.Duration
}

func NewStore(opts StoreOptions) *Store {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		orders:       opts.Orders,
		payments:     opts.Payments,
		rt:           opts.Realtime,
		notifier:     notifier,
		logger:       logger,
		onChange:     opts.OnChange,
		tickInterval: opts.TickInterval,
		orderList:    make(map[string]Order),
		tokens:       make(map[string][]int),
	}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces the order list with one page.
func (s *Store) Load(ctx context.Context, skip, limit int) error {
	orders, total, err := s.orders.List(ctx, skip, limit)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	s.mu.Lock()
	s.orderList = make(map[string]Order, len(orders))
	for _, o := range orders {
		s.orderList[o.ID] = o
	}
	s.total = total
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orderList[id]
	return o, ok
}

// All returns the loaded orders, newest first.
func (s *Store) All() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orderList))
	for _, o := range s.orderList {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Total returns the server-side order count from the last Load.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// ActiveQR returns the current QR, its status, and the remaining time.
func (s *Store) ActiveQR() (*QRResult, QRStatus, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeQR == nil {
		return nil, "", 0
	}
	qr := *s.activeQR
	return &qr, s.qrStatus, s.remaining
}

// CreateOrder creates a plain order without a QR.
func (s *Store) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	created, err := s.orders.Create(ctx, input)
	if err != nil {
		s.notifier.Error("Failed to create order")
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.mu.Lock()
	s.orderList[created.ID] = *created
	s.total++
	s.mu.Unlock()
	s.notifyChange()
	return created, nil
}

// CreateSampleOrder creates a demo order whose QR is active immediately
// and starts the expiry countdown.
func (s *Store) CreateSampleOrder(ctx context.Context) (*SampleOrderResult, error) {
	result, err := s.payments.SampleOrder(ctx)
	if err != nil {
		s.notifier.Error("Failed to create sample order")
		return nil, fmt.Errorf("create sample order: %w", err)
	}

	s.mu.Lock()
	s.orderList[result.Order.ID] = result.Order
	s.total++
	s.mu.Unlock()

	s.activateQR(result.Order.ID, &QRResult{
		QRID:      result.QRID,
		QRImage:   result.QRImage,
		ExpiresAt: result.ExpiresAt,
		Amount:    result.Amount,
	})
	s.notifyChange()
	return result, nil
}

// GenerateQR issues a fresh QR for an existing pending order, replacing
// any previously active QR.
func (s *Store) GenerateQR(ctx context.Context, orderID, currency string) (*QRResult, error) {
	s.mu.RLock()
	_, ok := s.orderList[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	qr, err := s.payments.GenerateQR(ctx, orderID, currency)
	if err != nil {
		s.notifier.Error("Failed to generate payment QR")
		return nil, fmt.Errorf("generate qr: %w", err)
	}

	s.activateQR(orderID, qr)
	s.notifyChange()
	return qr, nil
}

func (s *Store) activateQR(orderID string, qr *QRResult) {
	s.mu.Lock()
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.activeOrderID = orderID
	s.activeQR = qr
	s.qrStatus = QRPending
	s.remaining = time.Until(qr.ExpiresAt)
	if s.remaining < 0 {
		s.remaining = 0
	}

	qrID := qr.QRID
	s.countdown = sched.StartCountdown(sched.CountdownOptions{
		Deadline: qr.ExpiresAt,
		Interval: s.tickInterval,
		OnTick: func(remaining time.Duration) {
			s.mu.Lock()
			if s.activeQR != nil && s.activeQR.QRID == qrID {
				s.remaining = remaining
			}
			s.mu.Unlock()
			s.notifyChange()
		},
		OnExpire: func() { s.expireQR(qrID) },
	})
	s.mu.Unlock()
}

// expireQR marks the active QR expired when the local countdown hits zero.
// A paid or replaced QR is left alone.
func (s *Store) expireQR(qrID string) {
	s.mu.Lock()
	if s.activeQR == nil || s.activeQR.QRID != qrID || s.qrStatus != QRPending {
		s.mu.Unlock()
		return
	}
	s.qrStatus = QRExpired
	s.remaining = 0
	s.mu.Unlock()

	s.notifier.Info("Payment QR expired")
	s.notifyChange()
}

// CancelOrder cancels a pending order. Cancelling the order behind the
// active QR also retires the QR.
func (s *Store) CancelOrder(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.orderList[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	raw, err := s.orders.Cancel(ctx, id)
	if err != nil {
		s.notifier.Error("Failed to cancel order")
		return fmt.Errorf("cancel order: %w", err)
	}

	s.mu.Lock()
	if current, ok := s.orderList[id]; ok {
		merged := current
		if err := json.Unmarshal(raw, &merged); err == nil {
			s.orderList[id] = merged
		}
	}
	if s.activeOrderID == id {
		if s.countdown != nil {
			s.countdown.Stop()
		}
		s.qrStatus = QRCancelled
		s.remaining = 0
	}
	s.mu.Unlock()

	s.notifyChange()
	s.notifier.Success("Order cancelled")
	return nil
}

// Subscribe joins the user's room for payment provider events.
func (s *Store) Subscribe(userID string) {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return
	}
	s.subscribed = true
	s.mu.Unlock()

	s.rt.JoinRoom(realtime.UserRoom(userID))
	confirmToken := s.rt.On(realtime.EventPaymentConfirmed, func(raw json.RawMessage) {
		var ev ConfirmedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Debug("undecodable payment event dropped", "error", err)
			return
		}
		s.handleConfirmed(ev)
	})
	expireToken := s.rt.On(realtime.EventPaymentExpired, func(raw json.RawMessage) {
		var ev ExpiredEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Debug("undecodable payment event dropped", "error", err)
			return
		}
		s.handleExpired(ev)
	})

	s.mu.Lock()
	s.tokens[realtime.EventPaymentConfirmed] = append(s.tokens[realtime.EventPaymentConfirmed], confirmToken)
	s.tokens[realtime.EventPaymentExpired] = append(s.tokens[realtime.EventPaymentExpired], expireToken)
	s.userRoom = realtime.UserRoom(userID)
	s.mu.Unlock()
}

// Unsubscribe leaves the user room and removes the handlers.
func (s *Store) Unsubscribe() {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if !s.subscribed {
		s.mu.Unlock()
		return
	}
	s.subscribed = false
	room := s.userRoom
	s.userRoom = ""
	tokens := s.tokens
	s.tokens = make(map[string][]int)
	s.mu.Unlock()

	s.rt.LeaveRoom(room)
	for event, ids := range tokens {
		s.rt.Off(event, ids...)
	}
}

// handleConfirmed applies a provider confirmation. The event must name the
// active QR; confirmations for a replaced or stale QR only update the
// order record.
func (s *Store) handleConfirmed(ev ConfirmedEvent) {
	s.mu.Lock()
	if order, ok := s.orderList[ev.OrderID]; ok {
		order.Status = OrderConfirmed
		s.orderList[ev.OrderID] = order
	}

	matches := s.activeQR != nil && s.activeQR.QRID == ev.QRID
	if matches {
		s.qrStatus = QRPaid
		s.remaining = 0
		if s.countdown != nil {
			s.countdown.Stop()
		}
	}
	s.mu.Unlock()

	if matches {
		s.notifier.Success("Payment received")
	}
	s.notifyChange()
}

// handleExpired applies a provider-side expiry for the active QR. The
// local countdown usually fires first; this is the authoritative backstop.
func (s *Store) handleExpired(ev ExpiredEvent) {
	s.mu.Lock()
	if s.activeQR == nil || s.activeQR.QRID != ev.QRID || s.qrStatus != QRPending {
		s.mu.Unlock()
		return
	}
	s.qrStatus = QRExpired
	s.remaining = 0
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.mu.Unlock()

	s.notifier.Info("Payment QR expired")
	s.notifyChange()
}
