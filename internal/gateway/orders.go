package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sylius/FrontWing/internal/domain"
)

type AddressUpdate struct {
	Email           string          `json:"email,omitempty"`
	BillingAddress  *domain.Address `json:"billingAddress"`
	ShippingAddress *domain.Address `json:"shippingAddress"`
	CouponCode      *string         `json:"couponCode"`
}

// CreateCart picks up a new, empty cart and returns its token. Works for
// anonymous shoppers.
func (c *Client) CreateCart(ctx context.Context) (string, error) {
	var created struct {
		TokenValue string `json:"tokenValue"`
	}
	err := c.do(ctx, call{method: http.MethodPost, url: c.shopURL("/orders"), body: struct{}{}}, &created)
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	if created.TokenValue == "" {
		return "", fmt.Errorf("create cart: backend returned no token")
	}
	return created.TokenValue, nil
}

// FetchOrder loads the order identified by token. Rejections of the token
// itself match domain.ErrTokenInvalid.
func (c *Client) FetchOrder(ctx context.Context, token string) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, call{method: http.MethodGet, url: c.shopURL("/orders/%s", token)}, &order)
	if err != nil {
		var rf *domain.RequestFailedError
		if errors.As(err, &rf) {
			rf.AsTokenLookup()
		}
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	return &order, nil
}

func (c *Client) AddItem(ctx context.Context, token, variantCode string, quantity int) (*domain.Order, error) {
	body := map[string]any{"productVariant": variantCode, "quantity": quantity}
	var order domain.Order
	err := c.do(ctx, call{method: http.MethodPost, url: c.shopURL("/orders/%s/items", token), body: body}, &order)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	return &order, nil
}

func (c *Client) UpdateItem(ctx context.Context, token string, itemID int64, quantity int) (*domain.Order, error) {
	body := map[string]any{"quantity": quantity}
	var order domain.Order
	err := c.do(ctx, call{method: http.MethodPut, url: c.shopURL("/orders/%s/items/%d", token, itemID), body: body}, &order)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return &order, nil
}

func (c *Client) RemoveItem(ctx context.Context, token string, itemID int64) error {
	err := c.do(ctx, call{method: http.MethodDelete, url: c.shopURL("/orders/%s/items/%d", token, itemID)}, nil)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	return nil
}

// AttachCustomer assigns the authenticated customer to the order, acting with
// the customer's bearer token.
func (c *Client) AttachCustomer(ctx context.Context, token string, customer *domain.Customer) error {
	err := c.do(ctx, call{
		method:      http.MethodPatch,
		url:         c.shopURL("/orders/%s", token),
		body:        map[string]string{"customer": customer.IRI},
		contentType: contentTypeMergePatch,
		bearer:      customer.Token,
	}, nil)
	if err != nil {
		return fmt.Errorf("attach customer: %w", err)
	}
	return nil
}

func (c *Client) SetBillingEmail(ctx context.Context, token, email string) error {
	err := c.do(ctx, call{
		method:      http.MethodPatch,
		url:         c.shopURL("/orders/%s", token),
		body:        map[string]any{"billingAddress": map[string]string{"email": email}},
		contentType: contentTypeMergePatch,
	}, nil)
	if err != nil {
		return fmt.Errorf("set billing email: %w", err)
	}
	return nil
}

// SetAddresses submits the address step. Backend violations come back as a
// *domain.ValidationError keyed by billing form field.
func (c *Client) SetAddresses(ctx context.Context, token string, update AddressUpdate) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, call{method: http.MethodPut, url: c.shopURL("/orders/%s", token), body: update}, &order)
	if err != nil {
		var rf *domain.RequestFailedError
		if errors.As(err, &rf) && len(rf.Violations) > 0 {
			return nil, domain.NewValidationError(rf.Violations, "billingAddress.")
		}
		return nil, fmt.Errorf("set addresses: %w", err)
	}
	return &order, nil
}

func (c *Client) ShippingMethods(ctx context.Context, token string, shipmentID int64) ([]domain.ShippingMethod, error) {
	methods, _, err := getList[domain.ShippingMethod](ctx, c, c.shopURL("/orders/%s/shipments/%d/methods", token, shipmentID))
	if err != nil {
		return nil, fmt.Errorf("shipping methods: %w", err)
	}
	return methods, nil
}

func (c *Client) SelectShippingMethod(ctx context.Context, token string, shipmentID int64, code string) error {
	err := c.do(ctx, call{
		method:      http.MethodPatch,
		url:         c.shopURL("/orders/%s/shipments/%d", token, shipmentID),
		body:        map[string]string{"shippingMethod": code},
		contentType: contentTypeMergePatch,
	}, nil)
	if err != nil {
		return fmt.Errorf("select shipping method: %w", err)
	}
	return nil
}

// PaymentMethods lists methods available for the payment, falling back to the
// channel-wide list when the order specific one is empty or unavailable.
func (c *Client) PaymentMethods(ctx context.Context, token string, paymentID int64) ([]domain.PaymentMethod, error) {
	if paymentID != 0 {
		methods, _, err := getList[domain.PaymentMethod](ctx, c, c.shopURL("/orders/%s/payments/%d/methods", token, paymentID))
		if err == nil && len(methods) > 0 {
			return methods, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("payment methods: %w", err)
		}
	}

	methods, _, err := getList[domain.PaymentMethod](ctx, c, c.shopURL("/payment-methods"))
	if err != nil {
		return nil, fmt.Errorf("payment methods: %w", err)
	}
	return methods, nil
}

func (c *Client) SelectPaymentMethod(ctx context.Context, token string, paymentID int64, code string) error {
	err := c.do(ctx, call{
		method:      http.MethodPatch,
		url:         c.shopURL("/orders/%s/payments/%d", token, paymentID),
		body:        map[string]string{"paymentMethod": code},
		contentType: contentTypeMergePatch,
	}, nil)
	if err != nil {
		return fmt.Errorf("select payment method: %w", err)
	}
	return nil
}

// CompleteOrder finalizes the checkout. Irreversible: the token must not be
// used as a cart afterwards.
func (c *Client) CompleteOrder(ctx context.Context, token, notes string) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, call{
		method:      http.MethodPatch,
		url:         c.shopURL("/orders/%s/complete", token),
		body:        map[string]string{"notes": notes},
		contentType: contentTypeMergePatch,
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	return &order, nil
}
