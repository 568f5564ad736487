package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/realtime"
)

type fakeOrders struct {
	list   func(ctx context.Context, skip, limit int) ([]Order, int, error)
	create func(ctx context.Context, input CreateOrderInput) (*Order, error)
	cancel func(ctx context.Context, id string) (json.RawMessage, error)
}

func (f *fakeOrders) List(ctx context.Context, skip, limit int) ([]Order, int, error) {
	return f.list(ctx, skip, limit)
}
func (f *fakeOrders) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	return f.create(ctx, input)
}
func (f *fakeOrders) Cancel(ctx context.Context, id string) (json.RawMessage, error) {
	return f.cancel(ctx, id)
}

type fakeQR struct {
	sample   func(ctx context.Context) (*SampleOrderResult, error)
	generate func(ctx context.Context, orderID, currency string) (*QRResult, error)
}

func (f *fakeQR) SampleOrder(ctx context.Context) (*SampleOrderResult, error) {
	return f.sample(ctx)
}
func (f *fakeQR) GenerateQR(ctx context.Context, orderID, currency string) (*QRResult, error) {
	return f.generate(ctx, orderID, currency)
}

type fakeBus struct {
	clientID string
	rooms    map[string]int
	handlers map[string]map[int]realtime.Handler
	nextID   int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		clientID: "me",
		rooms:    make(map[string]int),
		handlers: make(map[string]map[int]realtime.Handler),
	}
}

func (b *fakeBus) ClientID() string     { return b.clientID }
func (b *fakeBus) JoinRoom(room string) { b.rooms[room]++ }
func (b *fakeBus) LeaveRoom(room string) {
	if b.rooms[room] > 0 {
		b.rooms[room]--
	}
}
func (b *fakeBus) On(event string, fn realtime.Handler) int {
	b.nextID++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]realtime.Handler)
	}
	b.handlers[event][b.nextID] = fn
	return b.nextID
}
func (b *fakeBus) Off(event string, tokens ...int) {
	for _, token := range tokens {
		delete(b.handlers[event], token)
	}
}
func (b *fakeBus) emit(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	for _, fn := range b.handlers[event] {
		fn(raw)
	}
}

func sampleResult(expiresIn time.Duration) *SampleOrderResult {
	return &SampleOrderResult{
		Order:     Order{ID: "o1", Amount: 5, Currency: "USD", Status: OrderPending, CreatedAt: time.Now()},
		QRID:      "qr1",
		QRImage:   "data:image/png;base64,xyz",
		ExpiresAt: time.Now().Add(expiresIn),
		Amount:    5,
	}
}

func paymentStore(t *testing.T, bus *fakeBus, expiresIn time.Duration) *Store {
	t.Helper()
	qr := &fakeQR{
		sample: func(context.Context) (*SampleOrderResult, error) {
			return sampleResult(expiresIn), nil
		},
	}
	opts := StoreOptions{
		Orders:       &fakeOrders{},
		Payments:     qr,
		TickInterval: 10 * time.Millisecond,
	}
	if bus != nil {
		opts.Realtime = bus
	}
	s := NewStore(opts)

	_, err := s.CreateSampleOrder(context.Background())
	require.NoError(t, err)
	return s
}

func TestSampleOrderActivatesQR(t *testing.T) {
	s := paymentStore(t, nil, time.Minute)

	qr, status, remaining := s.ActiveQR()
	require.NotNil(t, qr)
	require.Equal(t, "qr1", qr.QRID)
	require.Equal(t, QRPending, status)
	require.Greater(t, remaining, 50*time.Second)

	order, ok := s.Get("o1")
	require.True(t, ok)
	require.Equal(t, OrderPending, order.Status)
}

func TestCountdownExpiresPendingQR(t *testing.T) {
	s := paymentStore(t, nil, 40*time.Millisecond)

	require.Eventually(t, func() bool {
		_, status, _ := s.ActiveQR()
		return status == QRExpired
	}, time.Second, 5*time.Millisecond)

	_, _, remaining := s.ActiveQR()
	require.Zero(t, remaining)
}

func TestConfirmationMatchingActiveQR(t *testing.T) {
	bus := newFakeBus()
	s := paymentStore(t, bus, time.Minute)
	s.Subscribe("u1")
	require.Equal(t, 1, bus.rooms[realtime.UserRoom("u1")])

	bus.emit(t, realtime.EventPaymentConfirmed, ConfirmedEvent{
		OrderID: "o1", QRID: "qr1", Amount: 5, Currency: "USD",
	})

	_, status, _ := s.ActiveQR()
	require.Equal(t, QRPaid, status)

	order, _ := s.Get("o1")
	require.Equal(t, OrderConfirmed, order.Status)

	// Paid QRs never regress to expired, locally or remotely.
	bus.emit(t, realtime.EventPaymentExpired, ExpiredEvent{OrderID: "o1", QRID: "qr1"})
	_, status, _ = s.ActiveQR()
	require.Equal(t, QRPaid, status)
}

func TestConfirmationForStaleQRLeavesActiveQRAlone(t *testing.T) {
	bus := newFakeBus()
	s := paymentStore(t, bus, time.Minute)
	s.Subscribe("u1")

	bus.emit(t, realtime.EventPaymentConfirmed, ConfirmedEvent{
		OrderID: "other-order", QRID: "old-qr",
	})

	_, status, _ := s.ActiveQR()
	require.Equal(t, QRPending, status)
}

func TestRemoteExpiryForActiveQR(t *testing.T) {
	bus := newFakeBus()
	s := paymentStore(t, bus, time.Minute)
	s.Subscribe("u1")

	bus.emit(t, realtime.EventPaymentExpired, ExpiredEvent{OrderID: "o1", QRID: "qr1"})

	_, status, remaining := s.ActiveQR()
	require.Equal(t, QRExpired, status)
	require.Zero(t, remaining)
}

func TestCancelOrderRetiresActiveQR(t *testing.T) {
	orders := &fakeOrders{
		cancel: func(_ context.Context, id string) (json.RawMessage, error) {
			return json.RawMessage(`{"_id":"o1","status":"cancelled"}`), nil
		},
	}
	qr := &fakeQR{
		sample: func(context.Context) (*SampleOrderResult, error) {
			return sampleResult(time.Minute), nil
		},
	}
	s := NewStore(StoreOptions{Orders: orders, Payments: qr, TickInterval: 10 * time.Millisecond})
	_, err := s.CreateSampleOrder(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.CancelOrder(context.Background(), "o1"))

	_, status, _ := s.ActiveQR()
	require.Equal(t, QRCancelled, status)

	order, _ := s.Get("o1")
	require.Equal(t, OrderCancelled, order.Status)
}

func TestGenerateQRReplacesActiveQR(t *testing.T) {
	qr := &fakeQR{
		sample: func(context.Context) (*SampleOrderResult, error) {
			return sampleResult(time.Minute), nil
		},
		generate: func(_ context.Context, orderID, currency string) (*QRResult, error) {
			return &QRResult{QRID: "qr2", QRImage: "img2", ExpiresAt: time.Now().Add(time.Minute), Amount: 5}, nil
		},
	}
	s := NewStore(StoreOptions{Orders: &fakeOrders{}, Payments: qr, TickInterval: 10 * time.Millisecond})
	_, err := s.CreateSampleOrder(context.Background())
	require.NoError(t, err)

	_, err = s.GenerateQR(context.Background(), "o1", "USD")
	require.NoError(t, err)

	active, status, _ := s.ActiveQR()
	require.Equal(t, "qr2", active.QRID)
	require.Equal(t, QRPending, status)

	_, err = s.GenerateQR(context.Background(), "missing", "USD")
	require.ErrorIs(t, err, ErrNotFound)
}
