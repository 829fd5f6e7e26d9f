// Package catalog fetches purchasable items with optional filters.
package catalog

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shopfront/internal/gateway"
	"github.com/Skotchmaster/shopfront/internal/models"
)

// Filter narrows a search. Zero-valued fields are left out of the query
// entirely: absent means "no constraint", never "match empty".
type Filter struct {
	Text     string
	Category string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
}

func (f Filter) query() string {
	params := url.Values{}
	if f.Text != "" {
		params.Set("q", f.Text)
	}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if f.PriceMin != nil {
		params.Set("price_min", f.PriceMin.String())
	}
	if f.PriceMax != nil {
		params.Set("price_max", f.PriceMax.String())
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

type Client struct {
	GW *gateway.Client
}

// Search issues one GET and returns the matching items. Works anonymously;
// a token is attached when present but never required.
func (c *Client) Search(ctx context.Context, f Filter) ([]models.Item, error) {
	resp, err := c.GW.Do(ctx, http.MethodGet, "/api/items/"+f.query(), nil, true)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var items []models.Item
	if err := resp.DecodeJSON(&items); err != nil {
		return nil, err
	}
	return items, nil
}
