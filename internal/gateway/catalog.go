package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/Sylius/FrontWing/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductsPerPage is the page size used for taxon product listings.
const ProductsPerPage = 9

// maxConcurrentLookups bounds the fan-out when resolving nested IRIs.
const maxConcurrentLookups = 4

// taxonWire is the backend representation, where children are IRIs.
type taxonWire struct {
	ID          int64        `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Level       int          `json:"level"`
	Parent      domain.Ref   `json:"parent"`
	Children    []domain.Ref `json:"children"`
}

func (w taxonWire) taxon() domain.Taxon {
	return domain.Taxon{
		ID:          w.ID,
		Code:        w.Code,
		Name:        w.Name,
		Slug:        w.Slug,
		Description: w.Description,
		Level:       w.Level,
		Parent:      w.Parent,
	}
}

// Taxons returns the top level taxons, each with its direct children.
func (c *Client) Taxons(ctx context.Context) ([]domain.Taxon, error) {
	wires, _, err := getList[taxonWire](ctx, c, c.shopURL("/taxons"))
	if err != nil {
		return nil, fmt.Errorf("list taxons: %w", err)
	}

	taxons := make([]domain.Taxon, len(wires))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, w := range wires {
		taxons[i] = w.taxon()
		g.Go(func() error {
			children, err := c.TaxonChildren(gctx, w.Code)
			if err != nil {
				return err
			}
			taxons[i].Children = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list taxons: %w", err)
	}
	return taxons, nil
}

// TaxonChildren returns the direct children of a taxon from its tree branch.
func (c *Client) TaxonChildren(ctx context.Context, code string) ([]domain.Taxon, error) {
	branch, _, err := getList[taxonWire](ctx, c, c.shopURL("/taxon-tree/%s/branch", code))
	if err != nil {
		return nil, fmt.Errorf("taxon branch %s: %w", code, err)
	}

	children := make([]domain.Taxon, 0, len(branch))
	for _, w := range branch {
		if w.Parent.Code == code {
			children = append(children, w.taxon())
		}
	}
	return children, nil
}

// TaxonPath returns the breadcrumb path from the root down to the taxon.
func (c *Client) TaxonPath(ctx context.Context, code string) ([]domain.Taxon, error) {
	path, _, err := getList[taxonWire](ctx, c, c.shopURL("/taxon-tree/%s/path", code))
	if err != nil {
		return nil, fmt.Errorf("taxon path %s: %w", code, err)
	}
	taxons := make([]domain.Taxon, len(path))
	for i, w := range path {
		taxons[i] = w.taxon()
	}
	return taxons, nil
}

// Taxon fetches one taxon and resolves its child IRIs. Children that fail to
// resolve are skipped.
func (c *Client) Taxon(ctx context.Context, code string) (*domain.Taxon, error) {
	var w taxonWire
	if err := c.do(ctx, call{method: http.MethodGet, url: c.shopURL("/taxons/%s", code)}, &w); err != nil {
		return nil, fmt.Errorf("get taxon %s: %w", code, err)
	}

	taxon := w.taxon()
	resolved := make([]*domain.Taxon, len(w.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, ref := range w.Children {
		if ref.IRI == "" {
			continue
		}
		g.Go(func() error {
			var child taxonWire
			if err := c.do(gctx, call{method: http.MethodGet, url: c.iriURL(ref.IRI)}, &child); err != nil {
				c.logger.Debug("skipping unresolved child taxon", zap.String("iri", ref.IRI), zap.Error(err))
				return nil
			}
			t := child.taxon()
			resolved[i] = &t
			return nil
		})
	}
	_ = g.Wait()

	for _, child := range resolved {
		if child != nil {
			taxon.Children = append(taxon.Children, *child)
		}
	}
	return &taxon, nil
}

// Products lists one page of products in a taxon. Extra filters (sorting,
// attributes) are passed through as query parameters.
func (c *Client) Products(ctx context.Context, taxonCode string, page int, filters url.Values) (*domain.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, vs := range filters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("itemsPerPage", strconv.Itoa(ProductsPerPage))
	q.Set("page", strconv.Itoa(page))
	if taxonCode != "" {
		q.Set("productTaxons.taxon.code", taxonCode)
	}

	products, total, err := getList[domain.Product](ctx, c, c.shopURL("/products")+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &domain.ProductPage{
		Products: products,
		Page:     page,
		Total:    total,
		HasMore:  page*ProductsPerPage < total,
	}, nil
}

func (c *Client) Product(ctx context.Context, code string) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, call{method: http.MethodGet, url: c.shopURL("/products/%s", code)}, &p); err != nil {
		return nil, fmt.Errorf("get product %s: %w", code, err)
	}
	return &p, nil
}

// ProductReviews resolves every review referenced by the product, newest first.
func (c *Client) ProductReviews(ctx context.Context, code string) ([]domain.Review, error) {
	p, err := c.Product(ctx, code)
	if err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, len(p.Reviews))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, ref := range p.Reviews {
		g.Go(func() error {
			target := ref.IRI
			if target == "" {
				target = "/api/v2/shop/product-reviews/" + url.PathEscape(ref.Code)
			}
			if err := c.do(gctx, call{method: http.MethodGet, url: c.iriURL(target)}, &reviews[i]); err != nil {
				return fmt.Errorf("review %s: %w", target, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("product reviews %s: %w", code, err)
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	return reviews, nil
}
