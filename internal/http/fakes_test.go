package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/gateway"
	"github.com/Sylius/FrontWing/internal/outbox"
	"github.com/Sylius/FrontWing/internal/session"
	"github.com/Sylius/FrontWing/internal/tokenstore"
	"github.com/stretchr/testify/require"
)

// fakeShop is an in-memory commerce backend.
type fakeShop struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	nextID  int
	nextRow int64
	calls   map[string]int
	failOn  map[string]error
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		orders: map[string]*domain.Order{},
		calls:  map[string]int{},
		failOn: map[string]error{},
	}
}

func (s *fakeShop) enter(op string) error {
	s.calls[op]++
	return s.failOn[op]
}

func (s *fakeShop) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeShop) order(token string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.orders[token])
}

func clone(o *domain.Order) *domain.Order {
	if o == nil {
		return nil
	}
	raw, _ := json.Marshal(o)
	var c domain.Order
	_ = json.Unmarshal(raw, &c)
	return &c
}

func notFound(token string) error {
	return domain.NewRequestFailed(http.StatusNotFound, "Not Found", nil).AsTokenLookup()
}

func (s *fakeShop) CreateCart(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateCart"); err != nil {
		return "", err
	}
	s.nextID++
	token := fmt.Sprintf("tok-%d", s.nextID)
	s.orders[token] = &domain.Order{
		TokenValue:    token,
		CheckoutState: domain.CheckoutStateCart,
		CurrencyCode:  "USD",
		Shipments:     []domain.Shipment{{ID: 11}},
		Payments:      []domain.Payment{{ID: 21}},
	}
	return token, nil
}

func (s *fakeShop) FetchOrder(ctx context.Context, token string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FetchOrder"); err != nil {
		return nil, err
	}
	o, ok := s.orders[token]
	if !ok {
		return nil, notFound(token)
	}
	return clone(o), nil
}

func (s *fakeShop) AddItem(ctx context.Context, token, variantCode string, quantity int) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddItem"); err != nil {
		return nil, err
	}
	o, ok := s.orders[token]
	if !ok {
		return nil, notFound(token)
	}
	s.nextRow++
	o.Items = append(o.Items, domain.LineItem{ID: s.nextRow, Variant: domain.Ref{Code: variantCode}, Quantity: quantity, UnitPrice: 1000})
	o.Total += int64(quantity) * 1000
	return clone(o), nil
}

func (s *fakeShop) UpdateItem(ctx context.Context, token string, itemID int64, quantity int) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateItem"); err != nil {
		return nil, err
	}
	o, ok := s.orders[token]
	if !ok {
		return nil, notFound(token)
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].Quantity = quantity
			return clone(o), nil
		}
	}
	return nil, domain.NewRequestFailed(http.StatusNotFound, "item not found", nil)
}

func (s *fakeShop) RemoveItem(ctx context.Context, token string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RemoveItem"); err != nil {
		return err
	}
	o, ok := s.orders[token]
	if !ok {
		return notFound(token)
	}
	items := o.Items[:0]
	for _, it := range o.Items {
		if it.ID != itemID {
			items = append(items, it)
		}
	}
	o.Items = items
	return nil
}

func (s *fakeShop) AttachCustomer(ctx context.Context, token string, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AttachCustomer"); err != nil {
		return err
	}
	s.orders[token].Customer = customer.IRI
	return nil
}

func (s *fakeShop) SetBillingEmail(ctx context.Context, token, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetBillingEmail"); err != nil {
		return err
	}
	o := s.orders[token]
	if o.BillingAddress == nil {
		o.BillingAddress = &domain.Address{}
	}
	o.BillingAddress.Email = email
	return nil
}

func (s *fakeShop) SetAddresses(ctx context.Context, token string, update gateway.AddressUpdate) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetAddresses"); err != nil {
		return nil, err
	}
	if update.BillingAddress.FirstName == "" {
		return nil, domain.NewValidationError([]domain.Violation{
			{PropertyPath: "billingAddress.firstName", Message: "Please enter first name."},
		}, "billingAddress.")
	}
	o := s.orders[token]
	billing := *update.BillingAddress
	billing.Email = update.Email
	o.BillingAddress = &billing
	o.ShippingAddress = update.ShippingAddress
	o.CheckoutState = "addressed"
	return clone(o), nil
}

func (s *fakeShop) ShippingMethods(ctx context.Context, token string, shipmentID int64) ([]domain.ShippingMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ShippingMethods"); err != nil {
		return nil, err
	}
	return []domain.ShippingMethod{{Code: "ups", Name: "UPS", Price: 500}, {Code: "dhl", Name: "DHL", Price: 700}}, nil
}

func (s *fakeShop) SelectShippingMethod(ctx context.Context, token string, shipmentID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SelectShippingMethod"); err != nil {
		return err
	}
	o := s.orders[token]
	o.Shipments[0].Method = domain.Ref{Code: code}
	o.CheckoutState = "shipping_selected"
	return nil
}

func (s *fakeShop) PaymentMethods(ctx context.Context, token string, paymentID int64) ([]domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PaymentMethods"); err != nil {
		return nil, err
	}
	return []domain.PaymentMethod{{Code: "cash_on_delivery", Name: "Cash on delivery"}}, nil
}

func (s *fakeShop) SelectPaymentMethod(ctx context.Context, token string, paymentID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SelectPaymentMethod"); err != nil {
		return err
	}
	o, ok := s.orders[token]
	if !ok {
		return notFound(token)
	}
	o.Payments[0].Method = domain.Ref{Code: code}
	if o.CheckoutState != domain.CheckoutStateCompleted {
		o.CheckoutState = "payment_selected"
	}
	return nil
}

func (s *fakeShop) CompleteOrder(ctx context.Context, token, notes string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CompleteOrder"); err != nil {
		return nil, err
	}
	o := s.orders[token]
	completedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.CheckoutState = domain.CheckoutStateCompleted
	o.Number = fmt.Sprintf("%06d", len(s.orders))
	o.Notes = notes
	o.CheckoutCompletedAt = &completedAt
	return clone(o), nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*outbox.Event
	err    error
}

func (r *recordingEvents) Record(ctx context.Context, e *outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

type catalogMock struct {
	taxons  []domain.Taxon
	taxon   *domain.Taxon
	path    []domain.Taxon
	page    *domain.ProductPage
	product *domain.Product
	reviews []domain.Review
	err     error

	gotPage    int
	gotFilters url.Values
}

func (c *catalogMock) Taxons(ctx context.Context) ([]domain.Taxon, error) {
	return c.taxons, c.err
}

func (c *catalogMock) Taxon(ctx context.Context, code string) (*domain.Taxon, error) {
	return c.taxon, c.err
}

func (c *catalogMock) TaxonPath(ctx context.Context, code string) ([]domain.Taxon, error) {
	return c.path, c.err
}

func (c *catalogMock) Products(ctx context.Context, taxonCode string, page int, filters url.Values) (*domain.ProductPage, error) {
	c.gotPage = page
	c.gotFilters = filters
	return c.page, c.err
}

func (c *catalogMock) Product(ctx context.Context, code string) (*domain.Product, error) {
	return c.product, c.err
}

func (c *catalogMock) ProductReviews(ctx context.Context, code string) ([]domain.Review, error) {
	return c.reviews, c.err
}

type accountMock struct {
	registered []domain.Registration
	customer   *domain.Customer
	err        error
}

func (a *accountMock) RegisterCustomer(ctx context.Context, reg domain.Registration) error {
	if a.err != nil {
		return a.err
	}
	a.registered = append(a.registered, reg)
	return nil
}

func (a *accountMock) Login(ctx context.Context, email, password string) (*domain.Customer, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.customer, nil
}

type testServer struct {
	shop    *fakeShop
	events  *recordingEvents
	catalog *catalogMock
	account *accountMock
	handler http.Handler
}

func newTestServer(t *testing.T, mutate ...func(*RouterConfig)) *testServer {
	t.Helper()
	ts := &testServer{
		shop:    newFakeShop(),
		events:  &recordingEvents{},
		catalog: &catalogMock{},
		account: &accountMock{},
	}
	cfg := RouterConfig{
		Tokens:         tokenstore.New(tokenstore.Options{}),
		Checkout:       ts.shop,
		Catalog:        ts.catalog,
		Accounts:       ts.account,
		Events:         ts.events,
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
	cfg.Sessions = session.NewManager(ts.shop)
	for _, m := range mutate {
		m(&cfg)
	}
	ts.handler = NewRouter(cfg)
	return ts
}

// do sends a request with an optional JSON body and cookies.
func (ts *testServer) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// newCart creates a cart through the API and returns its cookie.
func (ts *testServer) newCart(t *testing.T) *http.Cookie {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := orderCookie(rec)
	require.NotNil(t, c)
	return c
}

// orderCookie returns the last orderToken cookie set on the response.
func orderCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenstore.CookieName {
			found = c
		}
	}
	return found
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
