package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/gateway"
	"go.uber.org/zap"
)

var (
	ErrNoShipment = errors.New("order has no shipment")
	ErrNoPayment  = errors.New("order has no payment")
)

// Session is the shopper's cart for the life of one request: the token, the
// last fetched order and the state machine around them.
type Session struct {
	m      *Manager
	tokens TokenStore

	mu      sync.Mutex
	state   domain.SessionState
	token   string
	order   *domain.Order
	err     error
	retired []string
	synced  map[string]bool
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Order returns the last fetched snapshot, nil before the first fetch.
func (s *Session) Order() *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// Err returns the error that put the session in the Error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) ActiveCouponCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return "", false
	}
	return s.order.CouponCode()
}

// Load brings the session to Ready. A stored token the backend rejects, or
// one naming an already completed order, is replaced by a fresh cart once;
// a second failure leaves the session in Error.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureReady(ctx)
}

// Refresh re-fetches the order bypassing the snapshot cache.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionReady {
		return s.refetch(ctx)
	}
	return s.ensureReady(ctx)
}

func (s *Session) AddItem(ctx context.Context, variantCode string, quantity int) error {
	return s.mutate(ctx, "add item", func(token string) error {
		_, err := s.m.api.AddItem(ctx, token, variantCode, quantity)
		return err
	})
}

func (s *Session) UpdateItem(ctx context.Context, itemID int64, quantity int) error {
	return s.mutate(ctx, "update item", func(token string) error {
		_, err := s.m.api.UpdateItem(ctx, token, itemID, quantity)
		return err
	})
}

func (s *Session) RemoveItem(ctx context.Context, itemID int64) error {
	return s.mutate(ctx, "remove item", func(token string) error {
		return s.m.api.RemoveItem(ctx, token, itemID)
	})
}

// SetAddresses writes the address step. A *domain.ValidationError is returned
// as is so callers can map it to form fields.
func (s *Session) SetAddresses(ctx context.Context, update gateway.AddressUpdate) error {
	return s.mutate(ctx, "set addresses", func(token string) error {
		_, err := s.m.api.SetAddresses(ctx, token, update)
		return err
	})
}

// SelectShippingMethod applies code to the order's first shipment.
func (s *Session) SelectShippingMethod(ctx context.Context, code string) error {
	return s.mutate(ctx, "select shipping method", func(token string) error {
		shipment, ok := s.order.FirstShipment()
		if !ok {
			return ErrNoShipment
		}
		return s.m.api.SelectShippingMethod(ctx, token, shipment.ID, code)
	})
}

// SelectPaymentMethod applies code to the order's first payment.
func (s *Session) SelectPaymentMethod(ctx context.Context, code string) error {
	return s.mutate(ctx, "select payment method", func(token string) error {
		payment, ok := s.order.FirstPayment()
		if !ok {
			return ErrNoPayment
		}
		return s.m.api.SelectPaymentMethod(ctx, token, payment.ID, code)
	})
}

// SyncIdentity attaches customer to a guest order and copies the customer's
// email to the billing contact when it is missing. It runs at most once per
// (customer, order) pairing; a failed attach is not retried.
func (s *Session) SyncIdentity(ctx context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer == nil || customer.IRI == "" {
		return nil
	}
	if s.state != domain.SessionReady || s.order == nil || !s.order.IsGuest() {
		return nil
	}

	pairing := customer.IRI + "|" + s.token
	if s.synced[pairing] {
		return nil
	}
	s.synced[pairing] = true
	if !s.m.acquireSync(ctx, customer.IRI, s.token) {
		return nil
	}

	log := s.m.log(ctx).With(zap.String("customer", customer.IRI))
	if err := s.m.api.AttachCustomer(ctx, s.token, customer); err != nil {
		log.Warn("attach customer failed", zap.Error(err))
		return fmt.Errorf("attach customer: %w", err)
	}
	if s.order.BillingEmail() == "" && customer.Email != "" {
		if err := s.m.api.SetBillingEmail(ctx, s.token, customer.Email); err != nil {
			log.Warn("set billing email failed", zap.Error(err))
		}
	}
	log.Info("customer attached to order")
	return s.refetch(ctx)
}

// CompleteOrder finalizes the checkout and returns the completed order. The
// token no longer names a cart afterwards; callers follow with ResetCart.
func (s *Session) CompleteOrder(ctx context.Context, notes string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	token := s.token
	completed, err := s.m.api.CompleteOrder(ctx, token, notes)
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.invalidate(ctx, token)

	order, err := s.m.fetch(ctx, token, true)
	if err != nil {
		s.m.log(ctx).Warn("fetch of completed order failed", zap.Error(err))
		order = completed
	}
	if order.TokenValue == "" {
		order.TokenValue = token
	}
	s.order = order
	s.m.log(ctx).Info("order completed", zap.String("number", order.Number))
	return order, nil
}

// ResetCart retires the current token and starts over with a fresh cart.
func (s *Session) ResetCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		if stored, ok := s.tokens.Read(); ok {
			s.token = stored
		}
	}
	s.discard(ctx)
	s.err = nil
	s.state = domain.SessionNoToken
	return s.startFresh(ctx)
}

// mutate runs one backend mutation and then re-fetches the order. The
// mutation's own response is never taken as the new state.
func (s *Session) mutate(ctx context.Context, op string, fn func(token string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	if err := fn(s.token); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.refetch(ctx)
}

func (s *Session) ensureReady(ctx context.Context) error {
	switch s.state {
	case domain.SessionReady:
		return nil
	case domain.SessionError:
		return s.err
	}

	token, ok := s.tokens.Read()
	if !ok {
		s.state = domain.SessionNoToken
		return s.startFresh(ctx)
	}

	s.state = domain.SessionLoading
	s.token = token
	order, err := s.m.fetch(ctx, token, false)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	switch {
	case err == nil && !order.IsCompleted():
		s.ready(order)
		return nil
	case err == nil:
		s.m.log(ctx).Info("stored token names a completed order, starting a new cart")
	case errors.Is(err, domain.ErrTokenInvalid):
		s.m.log(ctx).Info("stored cart token rejected, starting a new cart", zap.Error(err))
	default:
		return s.fail(ctx, err)
	}

	s.discard(ctx)
	return s.startFresh(ctx)
}

// startFresh creates a cart, persists its token and fetches it. It never
// recurses into recovery, which bounds the reset-and-retry path to one try.
func (s *Session) startFresh(ctx context.Context) error {
	s.state = domain.SessionLoading

	token, err := s.m.api.CreateCart(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return s.fail(ctx, err)
	}
	for _, old := range s.retired {
		if old == token {
			return s.fail(ctx, errNoFreshToken)
		}
	}

	s.tokens.Write(token)
	s.token = token

	order, err := s.m.fetch(ctx, token, true)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return s.fail(ctx, err)
	}
	s.ready(order)
	return nil
}

// refetch replaces the snapshot with the backend's current order. A failure
// keeps the previous snapshot and state.
func (s *Session) refetch(ctx context.Context) error {
	s.m.invalidate(ctx, s.token)

	order, err := s.m.fetch(ctx, s.token, true)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("refresh order: %w", err)
	}
	s.ready(order)
	return nil
}

// discard clears the token and snapshot and remembers the token as retired.
func (s *Session) discard(ctx context.Context) {
	if s.token != "" {
		s.retired = append(s.retired, s.token)
		s.m.invalidate(ctx, s.token)
	}
	s.tokens.Clear()
	s.token = ""
	s.order = nil
}

func (s *Session) ready(order *domain.Order) {
	s.order = order
	s.err = nil
	s.state = domain.SessionReady
}

func (s *Session) fail(ctx context.Context, err error) error {
	s.m.log(ctx).Error("cart session failed", zap.Error(err))
	s.err = err
	s.state = domain.SessionError
	return err
}
