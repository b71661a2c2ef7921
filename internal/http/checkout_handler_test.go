package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func billingAddress() *domain.Address {
	return &domain.Address{
		FirstName:   "Jane",
		LastName:    "Doe",
		Street:      "1 Main St",
		City:        "Springfield",
		Postcode:    "12345",
		CountryCode: "US",
	}
}

func TestCheckout_FullFlow(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.newCart(t)
	ts.do(t, http.MethodPost, "/api/cart/items", AddItemRequestDTO{Variant: "MUG-RED", Quantity: 2}, cookie)

	rec := ts.do(t, http.MethodPut, "/api/checkout/address", AddressRequestDTO{
		Email:          "jane@example.com",
		BillingAddress: billingAddress(),
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	step := decodeBody[StepResponseDTO](t, rec)
	assert.Equal(t, StepSelectShipping, step.Next)
	require.NotNil(t, step.Order.ShippingAddress)
	assert.Equal(t, "Springfield", step.Order.ShippingAddress.City)

	rec = ts.do(t, http.MethodGet, "/api/checkout/shipping-methods", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.ShippingMethod](t, rec), 2)

	rec = ts.do(t, http.MethodPut, "/api/checkout/shipping", SelectMethodRequestDTO{Method: "ups"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	step = decodeBody[StepResponseDTO](t, rec)
	assert.Equal(t, StepSelectPayment, step.Next)
	assert.Equal(t, "ups", step.Order.Shipments[0].Method.Code)

	rec = ts.do(t, http.MethodGet, "/api/checkout/payment-methods", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.PaymentMethod](t, rec), 1)

	rec = ts.do(t, http.MethodPut, "/api/checkout/payment", SelectMethodRequestDTO{Method: "cash_on_delivery"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepComplete, decodeBody[StepResponseDTO](t, rec).Next)

	rec = ts.do(t, http.MethodGet, "/api/checkout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepComplete, decodeBody[CheckoutResponseDTO](t, rec).Step)

	rec = ts.do(t, http.MethodPost, "/api/checkout/complete", CompleteRequestDTO{Notes: "leave at the door"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	step = decodeBody[StepResponseDTO](t, rec)
	assert.Equal(t, StepThankYou, step.Next)
	assert.Equal(t, cookie.Value, step.Order.TokenValue)
	assert.True(t, step.Order.IsCompleted())
	assert.Equal(t, "leave at the door", step.Order.Notes)

	fresh := orderCookie(rec)
	require.NotNil(t, fresh)
	assert.NotEqual(t, cookie.Value, fresh.Value)
	assert.Equal(t, domain.CheckoutStateCart, ts.shop.order(fresh.Value).CheckoutState)

	require.Len(t, ts.events.events, 1)
	event := ts.events.events[0]
	assert.Equal(t, outbox.EventOrderCompleted, event.EventType)
	assert.Equal(t, cookie.Value, event.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, step.Order.Number, payload["order_number"])
	assert.Equal(t, "jane@example.com", payload["email"])
}

func TestSetAddress_ValidationErrorMapsFields(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.newCart(t)
	address := billingAddress()
	address.FirstName = ""

	rec := ts.do(t, http.MethodPut, "/api/checkout/address", AddressRequestDTO{BillingAddress: address}, cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Equal(t, "Please enter first name.", resp.Fields["firstName"])
}

func TestSetAddress_MissingBilling(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/checkout/address", AddressRequestDTO{Email: "jane@example.com"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, "billingAddress")
	assert.Zero(t, ts.shop.count("SetAddresses"))
}

func TestSelectShipping_RequiresMethod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/checkout/shipping", SelectMethodRequestDTO{})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, ts.shop.count("SelectShippingMethod"))
}

func TestSelectShipping_BackendFailure(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.newCart(t)
	ts.shop.failOn["SelectShippingMethod"] = domain.NewRequestFailed(http.StatusServiceUnavailable, "maintenance", nil)

	rec := ts.do(t, http.MethodPut, "/api/checkout/shipping", SelectMethodRequestDTO{Method: "ups"}, cookie)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeBody[ErrorResponse](t, rec).Code)
}

func TestComplete_RecorderFailureDoesNotFailCheckout(t *testing.T) {
	ts := newTestServer(t)
	ts.events.err = errors.New("disk full")
	cookie := ts.newCart(t)

	rec := ts.do(t, http.MethodPost, "/api/checkout/complete", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepThankYou, decodeBody[StepResponseDTO](t, rec).Next)
	assert.NotEqual(t, cookie.Value, orderCookie(rec).Value)
}

func TestComplete_BackendRejects(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.newCart(t)
	ts.shop.failOn["CompleteOrder"] = domain.NewRequestFailed(http.StatusUnprocessableEntity, "Order cannot be completed.", nil)

	rec := ts.do(t, http.MethodPost, "/api/checkout/complete", CompleteRequestDTO{}, cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, ts.events.events)
	assert.Nil(t, orderCookie(rec))
}

func TestPayAgain_UnknownOrder(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/orders/nope/pay", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decodeBody[ErrorResponse](t, rec).Code)
}

func TestPayAgain_ListsAndSelectsMethod(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.newCart(t)
	ts.do(t, http.MethodPost, "/api/checkout/complete", nil, cookie)

	rec := ts.do(t, http.MethodGet, "/api/orders/"+cookie.Value+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[PayAgainResponseDTO](t, rec)
	assert.True(t, page.Order.IsCompleted())
	require.Len(t, page.PaymentMethods, 1)

	rec = ts.do(t, http.MethodPut, "/api/orders/"+cookie.Value+"/pay", SelectMethodRequestDTO{Method: "cash_on_delivery"})
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeBody[domain.Order](t, rec)
	assert.Equal(t, "cash_on_delivery", order.Payments[0].Method.Code)
}

func TestStepFor(t *testing.T) {
	tests := map[string]string{
		"cart":              StepAddress,
		"":                  StepAddress,
		"addressed":         StepSelectShipping,
		"shipping_selected": StepSelectPayment,
		"shipping_skipped":  StepSelectPayment,
		"payment_selected":  StepComplete,
		"payment_skipped":   StepComplete,
		"completed":         StepThankYou,
	}

	for state, want := range tests {
		assert.Equal(t, want, stepFor(state), state)
	}
}
