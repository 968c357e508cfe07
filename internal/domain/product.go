package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderImage is rendered for products without an image.
const PlaceholderImage = "products/placeholder.jpg"

type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	Image          string          `json:"image,omitempty"`
	ImageURL       string          `json:"image_url"`
	CategoryID     int64           `json:"category_id"`
	Category       *Category       `json:"category,omitempty"`
	IsSpecialOffer bool            `json:"is_special_offer"`
	OfferExpiresAt *time.Time      `json:"offer_expires_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"-"`
}

// OfferActive reports whether the product is a special offer that has not expired.
func (p Product) OfferActive(now time.Time) bool {
	if !p.IsSpecialOffer {
		return false
	}
	return p.OfferExpiresAt == nil || p.OfferExpiresAt.After(now)
}

// ImageURL joins an image path to base, falling back to the placeholder.
func ImageURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.TrimSpace(path) == "" {
		path = PlaceholderImage
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
