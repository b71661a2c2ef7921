package domain

import "time"

type Product struct {
	ID               int64          `json:"id"`
	Code             string         `json:"code"`
	Name             string         `json:"name"`
	Slug             string         `json:"slug,omitempty"`
	Description      string         `json:"description,omitempty"`
	ShortDescription string         `json:"shortDescription,omitempty"`
	Images           []ProductImage `json:"images,omitempty"`
	Variants         []Ref          `json:"variants,omitempty"`
	Options          []Ref          `json:"options,omitempty"`
	ProductTaxons    []Ref          `json:"productTaxons,omitempty"`
	Reviews          []Ref          `json:"reviews,omitempty"`
	AverageRating    float64        `json:"averageRating,omitempty"`
}

type ProductImage struct {
	ID   int64  `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Path string `json:"path"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

type Taxon struct {
	ID          int64   `json:"id,omitempty"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug,omitempty"`
	Description string  `json:"description,omitempty"`
	Level       int     `json:"level,omitempty"`
	Parent      Ref     `json:"parent,omitempty"`
	Children    []Taxon `json:"children,omitempty"`
}

type Review struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Author    Ref       `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ShippingMethod struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price,omitempty"`
}

type PaymentMethod struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
