package http

import (
	"net/http"
	"time"

	"github.com/Sylius/FrontWing/internal/auth"
	"github.com/Sylius/FrontWing/internal/tokenstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions Sessions
	Tokens   *tokenstore.Store
	Checkout CheckoutAPI
	Catalog  CatalogAPI
	Accounts AccountAPI
	Events   EventRecorder
	Limiter  *RateLimiter
	Logger   *zap.Logger

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	SecureCookies  bool
}

// NewRouter assembles the storefront API.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	cartHandler := NewCartHandler(cfg.Sessions, cfg.Tokens, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Sessions, cfg.Tokens, cfg.Checkout, cfg.Events, cfg.RequestTimeout)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.RequestTimeout)
	accountHandler := NewAccountHandler(cfg.Accounts, cfg.SecureCookies, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}
	r.Use(auth.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limited := func(r chi.Router) chi.Router {
		if cfg.Limiter == nil {
			return r
		}
		return r.With(cfg.Limiter.Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			limited(r).Post("/items", cartHandler.AddItem)
			limited(r).Put("/items/{item_id}", cartHandler.UpdateQuantity)
			limited(r).Delete("/items/{item_id}", cartHandler.RemoveItem)
			limited(r).Post("/reset", cartHandler.ResetCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetCheckout)
			limited(r).Put("/address", checkoutHandler.SetAddress)
			r.Get("/shipping-methods", checkoutHandler.ShippingMethods)
			limited(r).Put("/shipping", checkoutHandler.SelectShipping)
			r.Get("/payment-methods", checkoutHandler.PaymentMethods)
			limited(r).Put("/payment", checkoutHandler.SelectPayment)
			limited(r).Post("/complete", checkoutHandler.Complete)
		})

		r.Route("/orders/{token}", func(r chi.Router) {
			r.Get("/pay", checkoutHandler.GetPayAgain)
			limited(r).Put("/pay", checkoutHandler.PayAgain)
		})

		r.Get("/taxons", catalogHandler.ListTaxons)
		r.Get("/taxons/{code}", catalogHandler.GetTaxon)
		r.Get("/taxons/{code}/products", catalogHandler.ListProducts)
		r.Get("/products/{code}", catalogHandler.GetProduct)
		r.Get("/products/{code}/reviews", catalogHandler.ListReviews)

		r.Route("/account", func(r chi.Router) {
			limited(r).Post("/register", accountHandler.Register)
			limited(r).Post("/login", accountHandler.Login)
			r.Post("/logout", accountHandler.Logout)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
