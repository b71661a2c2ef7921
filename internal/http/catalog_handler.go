package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type CatalogAPI interface {
	Taxons(ctx context.Context) ([]domain.Taxon, error)
	Taxon(ctx context.Context, code string) (*domain.Taxon, error)
	TaxonPath(ctx context.Context, code string) ([]domain.Taxon, error)
	Products(ctx context.Context, taxonCode string, page int, filters url.Values) (*domain.ProductPage, error)
	Product(ctx context.Context, code string) (*domain.Product, error)
	ProductReviews(ctx context.Context, code string) ([]domain.Review, error)
}

type CatalogHandler struct {
	api     CatalogAPI
	timeout time.Duration
}

func NewCatalogHandler(api CatalogAPI, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		api:     api,
		timeout: timeout,
	}
}

type TaxonResponseDTO struct {
	Taxon       *domain.Taxon  `json:"taxon"`
	Breadcrumbs []domain.Taxon `json:"breadcrumbs"`
}

// GET /api/taxons
func (h *CatalogHandler) ListTaxons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	taxons, err := h.api.Taxons(ctx)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, taxons)
}

// GET /api/taxons/{code}
func (h *CatalogHandler) GetTaxon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	code := chi.URLParam(r, "code")
	var resp TaxonResponseDTO

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		taxon, err := h.api.Taxon(gctx, code)
		resp.Taxon = taxon
		return err
	})
	g.Go(func() error {
		path, err := h.api.TaxonPath(gctx, code)
		resp.Breadcrumbs = path
		return err
	})
	if err := g.Wait(); err != nil {
		handleAPIError(w, r, err)
		return
	}
	if resp.Breadcrumbs == nil {
		resp.Breadcrumbs = []domain.Taxon{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/taxons/{code}/products?page=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	page := 1
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
			return
		}
		page = n
	}
	query.Del("page")

	products, err := h.api.Products(ctx, chi.URLParam(r, "code"), page, query)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/products/{code}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.api.Product(ctx, chi.URLParam(r, "code"))
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/products/{code}/reviews
func (h *CatalogHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reviews, err := h.api.ProductReviews(ctx, chi.URLParam(r, "code"))
	if err != nil {
		handleAPIError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	respondJSON(w, http.StatusOK, reviews)
}
