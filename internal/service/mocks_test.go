package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	d "github.com/mtalha0777/arfurniture/domain"
	"github.com/mtalha0777/arfurniture/internal/cart"
	"github.com/mtalha0777/arfurniture/internal/money"
	"github.com/mtalha0777/arfurniture/internal/payment"
	r "github.com/mtalha0777/arfurniture/internal/repository"
)

// mockCart is an in-memory cart store for one or more users.
type mockCart struct {
	m         sync.Mutex
	carts     map[string]*d.Cart
	clearErr  error
	clearNoop bool
	readErr   error
	removeErr error
	removed   []string
	nextID    int
}

func newMockCart() *mockCart {
	return &mockCart{carts: make(map[string]*d.Cart)}
}

func (m *mockCart) add(userID string, lines ...d.CartLine) {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		m.nextID++
		c = &d.Cart{ID: fmt.Sprintf("cart-%d", m.nextID), UserID: userID}
		m.carts[userID] = c
	}
	c.Lines = append(c.Lines, lines...)
}

func (m *mockCart) setPrice(userID, productID string, price money.Amount) {
	m.m.Lock()
	defer m.m.Unlock()
	for i, l := range m.carts[userID].Lines {
		if l.ProductID == productID {
			m.carts[userID].Lines[i].UnitPrice = price
		}
	}
}

func (m *mockCart) lines(userID string) []d.CartLine {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil
	}
	return append([]d.CartLine(nil), c.Lines...)
}

func (m *mockCart) Snapshot(_ context.Context, userID string) (*d.CartSnapshot, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	snap := &d.CartSnapshot{UserID: userID, Lines: []d.CartLine{}, CapturedAt: time.Now()}
	if c, ok := m.carts[userID]; ok {
		snap.CartID = c.ID
		snap.Lines = append(snap.Lines, c.Lines...)
	}
	return snap, nil
}

func (m *mockCart) Clear(_ context.Context, userID string) (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.clearErr != nil {
		return 0, m.clearErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return 0, cart.ErrCartNotFound
	}
	if m.clearNoop {
		return 0, nil
	}
	delete(m.carts, userID)
	return len(c.Lines), nil
}

func (m *mockCart) RemoveLine(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return cart.ErrCartNotFound
	}
	for i, l := range c.Lines {
		if l.ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			m.removed = append(m.removed, productID)
			return nil
		}
	}
	return cart.ErrLineNotFound
}

// mockSessions stores copies so the service never shares memory with the store.
type mockSessions struct {
	m         sync.Mutex
	byKey     map[string]*r.CheckoutSession
	createErr error
	updateErr error
	created   int
}

func newMockSessions() *mockSessions {
	return &mockSessions{byKey: make(map[string]*r.CheckoutSession)}
}

func (m *mockSessions) CreateCheckoutSession(_ context.Context, s *r.CheckoutSession) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byKey[s.IdempotencyKey]; ok {
		return r.ErrDuplicateIdempotencyKey
	}
	s.Status = d.CheckoutStatusAwaitingPayment
	cp := *s
	m.byKey[s.IdempotencyKey] = &cp
	m.created++
	return nil
}

func (m *mockSessions) GetCheckoutSessionByIdempotencyKey(_ context.Context, key string) (*r.CheckoutSession, error) {
	m.m.Lock()
	defer m.m.Unlock()
	s, ok := m.byKey[key]
	if !ok {
		return nil, r.ErrIdempotencyKeyNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessions) find(id uuid.UUID) *r.CheckoutSession {
	for _, s := range m.byKey {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *mockSessions) UpdateCheckoutSessionStatus(_ context.Context, id uuid.UUID, status d.CheckoutStatus, reason string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	s := m.find(id)
	if s == nil {
		return r.ErrSessionNotFound
	}
	s.Status = status
	s.FailureReason = reason
	return nil
}

func (m *mockSessions) RestartCheckoutSession(_ context.Context, id uuid.UUID, method d.PaymentMethod, intentID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	s := m.find(id)
	if s == nil || s.OrderID != nil {
		return r.ErrSessionNotFound
	}
	s.Status = d.CheckoutStatusAwaitingPayment
	s.PaymentMethod = method
	s.PaymentIntentID = intentID
	s.FailureReason = ""
	return nil
}

func (m *mockSessions) SetPaymentConfirmed(_ context.Context, id uuid.UUID, paymentRef string, shipping d.Shipping, email string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	s := m.find(id)
	if s == nil || s.OrderID != nil {
		return r.ErrSessionNotFound
	}
	s.Status = d.CheckoutStatusPaymentConfirmed
	s.PaymentRef = paymentRef
	s.Shipping = &shipping
	s.Email = email
	return nil
}

func (m *mockSessions) SetPaymentPending(_ context.Context, id uuid.UUID, shipping d.Shipping, email, reason string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	s := m.find(id)
	if s == nil || s.OrderID != nil ||
		(s.Status != d.CheckoutStatusAwaitingPayment && s.Status != d.CheckoutStatusPaymentPending) {
		return r.ErrSessionNotFound
	}
	s.Status = d.CheckoutStatusPaymentPending
	s.Shipping = &shipping
	s.Email = email
	s.FailureReason = reason
	return nil
}

// stuck mirrors the repository's recovery query without the grace period.
func (m *mockSessions) stuck() []*r.CheckoutSession {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*r.CheckoutSession
	for _, s := range m.byKey {
		unsettled := s.OrderID == nil &&
			(s.Status == d.CheckoutStatusPaymentConfirmed || s.Status == d.CheckoutStatusPaymentPending)
		if unsettled || s.Status == d.CheckoutStatusOrderPersisted {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

// linkOrder mirrors the repository linking the session inside the order transaction.
func (m *mockSessions) linkOrder(checkoutID, orderID uuid.UUID) {
	m.m.Lock()
	defer m.m.Unlock()
	if s := m.find(checkoutID); s != nil && s.OrderID == nil {
		id := orderID
		s.OrderID = &id
		s.Status = d.CheckoutStatusOrderPersisted
	}
}

func (m *mockSessions) get(key string) *r.CheckoutSession {
	m.m.Lock()
	defer m.m.Unlock()
	s, ok := m.byKey[key]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *mockSessions) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.created
}

type mockOrders struct {
	m         sync.Mutex
	orders    []*d.Order
	events    []*r.OutboxEvent
	createErr error
	sessions  *mockSessions
}

func (m *mockOrders) CreateOrder(_ context.Context, order *d.Order, event *r.OutboxEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, o := range m.orders {
		if o.CheckoutID == order.CheckoutID || o.PaymentRef == order.PaymentRef {
			return r.ErrDuplicatePayment
		}
	}
	cp := *order
	cp.Items = append([]d.OrderItem(nil), order.Items...)
	m.orders = append(m.orders, &cp)
	if event != nil {
		m.events = append(m.events, event)
	}
	if m.sessions != nil {
		m.sessions.linkOrder(order.CheckoutID, order.ID)
	}
	return nil
}

func (m *mockOrders) findBy(match func(*d.Order) bool) (*d.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, r.ErrOrderNotFound
}

func (m *mockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*d.Order, error) {
	return m.findBy(func(o *d.Order) bool { return o.ID == id })
}

func (m *mockOrders) GetOrderByCheckoutID(_ context.Context, checkoutID uuid.UUID) (*d.Order, error) {
	return m.findBy(func(o *d.Order) bool { return o.CheckoutID == checkoutID })
}

func (m *mockOrders) GetOrderByPaymentRef(_ context.Context, paymentRef string) (*d.Order, error) {
	return m.findBy(func(o *d.Order) bool { return o.PaymentRef == paymentRef })
}

func (m *mockOrders) filter(match func(*d.Order) bool) []*d.Order {
	m.m.Lock()
	defer m.m.Unlock()
	out := []*d.Order{}
	for _, o := range m.orders {
		if match(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out
}

func (m *mockOrders) ListOrdersByUserID(_ context.Context, userID string) ([]*d.Order, error) {
	return m.filter(func(o *d.Order) bool { return o.UserID == userID }), nil
}

func (m *mockOrders) ListOrdersByShopID(_ context.Context, shopID string) ([]*d.Order, error) {
	return m.filter(func(o *d.Order) bool { return len(o.ItemsForShop(shopID)) > 0 }), nil
}

func (m *mockOrders) ListRecentOrders(_ context.Context, limit int) ([]*d.Order, error) {
	all := m.filter(func(*d.Order) bool { return true })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockOrders) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to d.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			if o.Status != from {
				return r.ErrStatusConflict
			}
			o.Status = to
			return nil
		}
	}
	return r.ErrOrderNotFound
}

func (m *mockOrders) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.orders)
}

type mockReconciliation struct {
	m        sync.Mutex
	events   []*r.ReconciliationEvent
	resolved []uuid.UUID
}

func (m *mockReconciliation) RecordReconciliation(_ context.Context, e *r.ReconciliationEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockReconciliation) ResolveReconciliations(_ context.Context, checkoutID uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.resolved = append(m.resolved, checkoutID)
	return nil
}

type mockNotifier struct {
	wakes atomic.Int32
}

func (m *mockNotifier) Wake() {
	m.wakes.Add(1)
}

// mockGateway de-duplicates intents by idempotency key like a real provider.
type mockGateway struct {
	m           sync.Mutex
	intents     map[string]*payment.Intent
	createCalls int
	verifyCalls int
	createErr   error
	verifyErr   error
	status      string
	paidDelta   money.Amount
	block       bool
}

func newMockGateway() *mockGateway {
	return &mockGateway{intents: make(map[string]*payment.Intent), status: payment.StatusSucceeded}
}

func (m *mockGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	if intent, ok := m.intents[req.IdempotencyKey]; ok {
		cp := *intent
		return &cp, nil
	}
	id := "pi_" + uuid.NewString()
	intent := &payment.Intent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Currency: req.Currency}
	m.intents[req.IdempotencyKey] = intent
	cp := *intent
	return &cp, nil
}

func (m *mockGateway) Verify(ctx context.Context, token string) (*payment.Confirmation, error) {
	m.m.Lock()
	m.verifyCalls++
	block := m.block
	m.m.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.m.Lock()
	defer m.m.Unlock()
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	for _, intent := range m.intents {
		if intent.ID == token {
			c := &payment.Confirmation{
				PaymentRef: intent.ID,
				IntentID:   intent.ID,
				Status:     m.status,
				Amount:     intent.Amount + m.paidDelta,
				Currency:   intent.Currency,
			}
			if m.status != payment.StatusSucceeded {
				c.FailureReason = "card_declined"
			}
			return c, nil
		}
	}
	return nil, payment.ErrInvalidToken
}

func (m *mockGateway) setBlock(block bool) {
	m.m.Lock()
	defer m.m.Unlock()
	m.block = block
}

func (m *mockGateway) calls() (create, verify int) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.createCalls, m.verifyCalls
}

// logBuffer collects JSON log lines from concurrent goroutines.
type logBuffer struct {
	m   sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.Write(p)
}

// records returns the decoded log lines whose msg matches.
func (b *logBuffer) records(msg string) []map[string]any {
	b.m.Lock()
	defer b.m.Unlock()
	var out []map[string]any
	for _, raw := range bytes.Split(b.buf.Bytes(), []byte("\n")) {
		var rec map[string]any
		if json.Unmarshal(raw, &rec) != nil {
			continue
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}
