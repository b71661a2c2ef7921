package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Sylius/FrontWing/internal/auth"
	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/logger"
	"github.com/Sylius/FrontWing/internal/session"
	"github.com/Sylius/FrontWing/internal/tokenstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Sessions opens the cart session of one request.
type Sessions interface {
	Open(tokens session.TokenStore) *session.Session
}

type CartHandler struct {
	sessions Sessions
	tokens   *tokenstore.Store
	timeout  time.Duration
}

func NewCartHandler(sessions Sessions, tokens *tokenstore.Store, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		tokens:   tokens,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	State            string        `json:"state"`
	Token            string        `json:"token"`
	Order            *domain.Order `json:"order"`
	ActiveCouponCode string        `json:"activeCouponCode,omitempty"`
	ItemCount        int           `json:"itemCount"`
}

func newCartResponse(sess *session.Session) CartResponseDTO {
	resp := CartResponseDTO{
		State: sess.State().String(),
		Token: sess.Token(),
		Order: sess.Order(),
	}
	if code, ok := sess.ActiveCouponCode(); ok {
		resp.ActiveCouponCode = code
	}
	if resp.Order != nil {
		resp.ItemCount = resp.Order.ItemCount()
	}
	return resp
}

// openSession binds a session to the request's cart cookie.
func openSession(sessions Sessions, tokens *tokenstore.Store, w http.ResponseWriter, r *http.Request) *session.Session {
	return sessions.Open(tokens.Bind(w, r))
}

// syncIdentity attaches the signed in customer to a guest cart. Failures are
// logged; the cart stays usable as a guest cart.
func syncIdentity(ctx context.Context, sess *session.Session) {
	customer := auth.FromContext(ctx)
	if customer == nil {
		return
	}
	if err := sess.SyncIdentity(ctx, customer); err != nil {
		logger.FromContext(ctx).Warn("identity sync failed", zap.Error(err))
	}
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.Load(ctx); err != nil {
		handleAPIError(w, r, err)
		return
	}
	syncIdentity(ctx, sess)

	respondJSON(w, http.StatusOK, newCartResponse(sess))
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Variant == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant", "variant is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.AddItem(ctx, req.Variant, req.Quantity); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(sess))
}

// PUT /api/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.UpdateItem(ctx, itemID, req.Quantity); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess))
}

// DELETE /api/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.RemoveItem(ctx, itemID); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess))
}

// POST /api/cart/reset
func (h *CartHandler) ResetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := openSession(h.sessions, h.tokens, w, r)
	if err := sess.ResetCart(ctx); err != nil {
		handleAPIError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess))
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return 0, false
	}
	return itemID, true
}
