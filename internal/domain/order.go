package domain

import "time"

const (
	CheckoutStateCart      = "cart"
	CheckoutStateCompleted = "completed"
)

// CouponOpaque is reported as the active coupon when the order carries a
// promotion discount whose coupon code the backend does not expose.
const CouponOpaque = "__USED__"

// Order is the last fetched representation of the shopper's order.
// Money fields are integer minor units (cents).
type Order struct {
	ID                  int64      `json:"id,omitempty"`
	TokenValue          string     `json:"tokenValue"`
	Number              string     `json:"number,omitempty"`
	CheckoutState       string     `json:"checkoutState,omitempty"`
	PaymentState        string     `json:"paymentState,omitempty"`
	ShippingState       string     `json:"shippingState,omitempty"`
	CurrencyCode        string     `json:"currencyCode,omitempty"`
	LocaleCode          string     `json:"localeCode,omitempty"`
	ItemsSubtotal       int64      `json:"itemsSubtotal"`
	TaxTotal            int64      `json:"taxTotal"`
	ShippingTotal       int64      `json:"shippingTotal"`
	OrderPromotionTotal int64      `json:"orderPromotionTotal"`
	Total               int64      `json:"total"`
	Items               []LineItem `json:"items"`
	BillingAddress      *Address   `json:"billingAddress,omitempty"`
	ShippingAddress     *Address   `json:"shippingAddress,omitempty"`
	Customer            string     `json:"customer,omitempty"`
	Payments            []Payment  `json:"payments,omitempty"`
	Shipments           []Shipment `json:"shipments,omitempty"`
	PromotionCoupon     *Coupon    `json:"promotionCoupon,omitempty"`
	CheckoutCompletedAt *time.Time `json:"checkoutCompletedAt,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

type LineItem struct {
	ID          int64  `json:"id"`
	Variant     Ref    `json:"variant"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
	Total       int64  `json:"total"`
}

type Address struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Company      string `json:"company,omitempty"`
	Street       string `json:"street"`
	City         string `json:"city"`
	Postcode     string `json:"postcode"`
	CountryCode  string `json:"countryCode"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	ProvinceName string `json:"provinceName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Email        string `json:"email,omitempty"`
}

type Payment struct {
	ID     int64  `json:"id"`
	State  string `json:"state,omitempty"`
	Method Ref    `json:"method"`
}

type Shipment struct {
	ID     int64  `json:"id"`
	State  string `json:"state,omitempty"`
	Method Ref    `json:"method"`
}

type Coupon struct {
	Code string `json:"code"`
}

// IsGuest reports whether no customer account is attached to the order.
func (o *Order) IsGuest() bool {
	return o.Customer == ""
}

func (o *Order) IsCompleted() bool {
	return o.CheckoutState == CheckoutStateCompleted
}

func (o *Order) BillingEmail() string {
	if o.BillingAddress == nil {
		return ""
	}
	return o.BillingAddress.Email
}

func (o *Order) FirstPayment() (Payment, bool) {
	if len(o.Payments) == 0 {
		return Payment{}, false
	}
	return o.Payments[0], true
}

func (o *Order) FirstShipment() (Shipment, bool) {
	if len(o.Shipments) == 0 {
		return Shipment{}, false
	}
	return o.Shipments[0], true
}

// ItemCount returns the total quantity across all line items.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// CouponCode derives the coupon code to show the shopper. The second return
// value is false when no promotion is applied at all.
func (o *Order) CouponCode() (string, bool) {
	if o.PromotionCoupon != nil && o.PromotionCoupon.Code != "" {
		return o.PromotionCoupon.Code, true
	}
	if o.OrderPromotionTotal != 0 {
		return CouponOpaque, true
	}
	return "", false
}

// Clone returns a deep copy that shares no slices or pointers with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Items != nil {
		c.Items = append([]LineItem(nil), o.Items...)
	}
	if o.Payments != nil {
		c.Payments = append([]Payment(nil), o.Payments...)
	}
	if o.Shipments != nil {
		c.Shipments = append([]Shipment(nil), o.Shipments...)
	}
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		c.BillingAddress = &a
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		c.ShippingAddress = &a
	}
	if o.PromotionCoupon != nil {
		cp := *o.PromotionCoupon
		c.PromotionCoupon = &cp
	}
	if o.CheckoutCompletedAt != nil {
		t := *o.CheckoutCompletedAt
		c.CheckoutCompletedAt = &t
	}
	return &c
}
