package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/gateway"
	"github.com/Sylius/FrontWing/internal/logger"
	"github.com/Sylius/FrontWing/internal/outbox"
	"github.com/Sylius/FrontWing/internal/session"
	"github.com/Sylius/FrontWing/internal/tokenstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Checkout steps as the storefront routes them.
const (
	StepAddress        = "address"
	StepSelectShipping = "select-shipping"
	StepSelectPayment  = "select-payment"
	StepComplete       = "complete"
	StepThankYou       = "thank-you"
)

// CheckoutAPI is the read side of checkout the session does not cover.
type CheckoutAPI interface {
	FetchOrder(ctx context.Context, token string) (*domain.Order, error)
	ShippingMethods(ctx context.Context, token string, shipmentID int64) ([]domain.ShippingMethod, error)
	PaymentMethods(ctx context.Context, token string, paymentID int64) ([]domain.PaymentMethod, error)
	SelectPaymentMethod(ctx context.Context, token string, paymentID int64, code string) error
}

// EventRecorder stores events for asynchronous publication.
type EventRecorder interface {
	Record(ctx context.Context, e *outbox.Event) error
}

type CheckoutHandler struct {
	sessions Sessions
	tokens   *tokenstore.Store
	api      CheckoutAPI
	events   EventRecorder
	timeout  time.Duration
	now      func() time.Time
}

func NewCheckoutHandler(sessions Sessions, tokens *tokenstore.Store, api CheckoutAPI, events EventRecorder, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		tokens:   tokens,
		api:      api,
		events:   events,
		timeout:  timeout,
		now:      time.Now,
	}
}

type CheckoutResponseDTO struct {
	Step  string        `json:"step"`
	Order *domain.Order `json:"order"`
}

type StepResponseDTO struct {
	Next  string        `json:"next"`
	Order *domain.Order `json:"order"`
}

type AddressRequestDTO struct {
	Email           string          `json:"email"`
	BillingAddress  *domain.Address `json:"billingAddress"`
	ShippingAddress *domain.Address `json:"shippingAddress,omitempty"`
	CouponCode      *string         `json:"couponCode,omitempty"`
}

type SelectMethodRequestDTO struct {
	Method string `json:"method"`
}

type CompleteRequestDTO struct {
	Notes string `json:"notes"`
}

type PayAgainResponseDTO struct {
	Order          *domain.Order          `json:"order"`
	PaymentMethods []domain.PaymentMethod `json:"paymentMethods"`
}

// stepFor maps the backend checkout state to the step the shopper is on.
func stepFor(checkoutState string) string {
	switch checkoutState {
	case "addressed":
		return StepSelectShipping
	case "shipping_selected", "shipping_skipped":
		return StepSelectPayment
	case "payment_selected", "payment_skipped":
		return StepComplete
	case domain.CheckoutStateCompleted:
		return StepThankYou
	default:
		return StepAddress
	}
}

// GET /api/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.Refresh(ctx); err != nil {
		handleAPIError(w, r, err)
		return
	}
	syncIdentity(ctx, sess)

	order := sess.Order()
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Step: stepFor(order.CheckoutState), Order: order})
}

// PUT /api/checkout/address
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BillingAddress == nil {
		respondValidation(w, map[string]string{"billingAddress": "billing address is required"})
		return
	}
	shipping := req.ShippingAddress
	if shipping == nil {
		copied := *req.BillingAddress
		shipping = &copied
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	err := sess.SetAddresses(ctx, gateway.AddressUpdate{
		Email:           req.Email,
		BillingAddress:  req.BillingAddress,
		ShippingAddress: shipping,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, StepResponseDTO{Next: StepSelectShipping, Order: sess.Order()})
}

// GET /api/checkout/shipping-methods
func (h *CheckoutHandler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.Load(ctx); err != nil {
		handleAPIError(w, r, err)
		return
	}
	shipment, ok := sess.Order().FirstShipment()
	if !ok {
		handleAPIError(w, r, session.ErrNoShipment)
		return
	}

	methods, err := h.api.ShippingMethods(ctx, sess.Token(), shipment.ID)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

// PUT /api/checkout/shipping
func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Method == "" {
		respondValidation(w, map[string]string{"method": "choose a shipping method"})
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.SelectShippingMethod(ctx, req.Method); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, StepResponseDTO{Next: StepSelectPayment, Order: sess.Order()})
}

// GET /api/checkout/payment-methods
func (h *CheckoutHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.Load(ctx); err != nil {
		handleAPIError(w, r, err)
		return
	}
	payment, ok := sess.Order().FirstPayment()
	if !ok {
		handleAPIError(w, r, session.ErrNoPayment)
		return
	}

	methods, err := h.api.PaymentMethods(ctx, sess.Token(), payment.ID)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

// PUT /api/checkout/payment
func (h *CheckoutHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Method == "" {
		respondValidation(w, map[string]string{"method": "choose a payment method"})
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.SelectPaymentMethod(ctx, req.Method); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, StepResponseDTO{Next: StepComplete, Order: sess.Order()})
}

// POST /api/checkout/complete
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CompleteRequestDTO
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	order, err := sess.CompleteOrder(ctx, req.Notes)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	log := logger.FromContext(ctx).With(zap.String("order_number", order.Number))
	h.recordCompleted(ctx, log, order)

	if err := sess.ResetCart(ctx); err != nil {
		log.Warn("cart reset after checkout failed", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, StepResponseDTO{Next: StepThankYou, Order: order})
}

func (h *CheckoutHandler) recordCompleted(ctx context.Context, log *zap.Logger, order *domain.Order) {
	if h.events == nil {
		return
	}
	event, err := outbox.NewOrderCompleted(order, h.now())
	if err != nil {
		log.Error("failed to build order completed event", zap.Error(err))
		return
	}
	if err := h.events.Record(context.WithoutCancel(ctx), event); err != nil {
		log.Error("failed to record order completed event", zap.Error(err))
		return
	}
	log.Info("order completed event recorded", zap.String("event_id", event.EventID))
}

// GET /api/orders/{token}/pay
func (h *CheckoutHandler) GetPayAgain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := chi.URLParam(r, "token")
	order, err := h.api.FetchOrder(ctx, token)
	if err != nil {
		handleOrderLookupError(w, r, err)
		return
	}

	methods := []domain.PaymentMethod{}
	if payment, ok := order.FirstPayment(); ok {
		methods, err = h.api.PaymentMethods(ctx, token, payment.ID)
		if err != nil {
			handleAPIError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, PayAgainResponseDTO{Order: order, PaymentMethods: methods})
}

// PUT /api/orders/{token}/pay
func (h *CheckoutHandler) PayAgain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectMethodRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Method == "" {
		respondValidation(w, map[string]string{"method": "choose a payment method"})
		return
	}

	token := chi.URLParam(r, "token")
	order, err := h.api.FetchOrder(ctx, token)
	if err != nil {
		handleOrderLookupError(w, r, err)
		return
	}
	payment, ok := order.FirstPayment()
	if !ok {
		handleAPIError(w, r, session.ErrNoPayment)
		return
	}
	if err := h.api.SelectPaymentMethod(ctx, token, payment.ID, req.Method); err != nil {
		handleAPIError(w, r, err)
		return
	}

	order, err = h.api.FetchOrder(ctx, token)
	if err != nil {
		handleOrderLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// handleOrderLookupError reports an unknown order token as 404 rather than
// as an unavailable cart.
func handleOrderLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrTokenInvalid) {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	handleAPIError(w, r, err)
}
