package domain

// Customer is the authenticated shopper as reported by the commerce backend.
type Customer struct {
	IRI   string `json:"iri"`
	Email string `json:"email,omitempty"`
	Token string `json:"-"`
}

type Registration struct {
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Email                  string  `json:"email"`
	PhoneNumber            *string `json:"phoneNumber"`
	SubscribedToNewsletter bool    `json:"subscribedToNewsletter"`
	PlainPassword          string  `json:"plainPassword"`
	Password               string  `json:"password"`
}
