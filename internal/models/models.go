package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a purchasable catalog entry. The client never mutates items,
// it only displays what the storefront returned.
type Item struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

// CartLine is one (item, quantity) pairing in the user's cart.
// The server guarantees at most one line per item id.
type CartLine struct {
	ID       uint      `json:"id"`
	Item     Item      `json:"item"`
	Quantity uint      `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
