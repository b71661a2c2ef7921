package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sylius/FrontWing/internal/domain"
)

// RegisterCustomer creates a shop customer account. Backend violations come
// back as a *domain.ValidationError keyed by property path.
func (c *Client) RegisterCustomer(ctx context.Context, reg domain.Registration) error {
	err := c.do(ctx, call{method: http.MethodPost, url: c.shopURL("/customers"), body: reg}, nil)
	if err != nil {
		var rf *domain.RequestFailedError
		if errors.As(err, &rf) && len(rf.Violations) > 0 {
			return domain.NewValidationError(rf.Violations, "")
		}
		return fmt.Errorf("register customer: %w", err)
	}
	return nil
}

// Login exchanges credentials for a backend-issued bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Customer, error) {
	var resp struct {
		Token    string `json:"token"`
		Customer string `json:"customer"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		url:    c.shopURL("/customers/token"),
		body:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: backend returned no token")
	}
	return &domain.Customer{IRI: resp.Customer, Email: email, Token: resp.Token}, nil
}
