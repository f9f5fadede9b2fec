package client

import (
	"context"
	"net/url"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

// BatchResult holds per-product batch results. Products with no offers or a
// failed calculation map to nil.
type BatchResult struct {
	Results map[string]*domain.Result `json:"results"`
	Errors  map[string]string         `json:"errors,omitempty"`
}

func productPath(productID, suffix string) string {
	return "/api/v1/products/" + url.PathEscape(productID) + suffix
}

// GetBuyBox returns a product's Buy Box result. force recalculates even when
// a cached result exists.
func (c *Client) GetBuyBox(ctx context.Context, productID string, force bool) (*domain.Result, error) {
	path := productPath(productID, "/buybox")
	if force {
		path += "?force=true"
	}

	var res domain.Result
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetWinner returns the winning offer ID for a product.
func (c *Client) GetWinner(ctx context.Context, productID string) (string, error) {
	var body struct {
		WinnerOfferID string `json:"winner_offer_id"`
	}
	if err := c.get(ctx, productPath(productID, "/buybox/winner"), &body); err != nil {
		return "", err
	}
	return body.WinnerOfferID, nil
}

// BatchBuyBox calculates several products in one request.
func (c *Client) BatchBuyBox(ctx context.Context, productIDs []string) (*BatchResult, error) {
	req := map[string][]string{"product_ids": productIDs}

	var res BatchResult
	if err := c.post(ctx, "/api/v1/buybox/batch", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// InvalidateBuyBox drops a product's cached result.
func (c *Client) InvalidateBuyBox(ctx context.Context, productID string) error {
	return c.del(ctx, productPath(productID, "/buybox/cache"))
}
