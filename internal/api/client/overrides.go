package client

import (
	"context"
	"time"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

// OverrideRequest contains the fields the API accepts when setting an
// override.
type OverrideRequest struct {
	OfferID   string     `json:"offer_id"`
	VendorID  string     `json:"vendor_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	SetBy     string     `json:"set_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SetOverride forces a product's Buy Box winner.
func (c *Client) SetOverride(ctx context.Context, productID string, req *OverrideRequest) (*domain.Override, error) {
	var o domain.Override
	if err := c.put(ctx, productPath(productID, "/override"), req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOverride returns a product's active override.
func (c *Client) GetOverride(ctx context.Context, productID string) (*domain.Override, error) {
	var o domain.Override
	if err := c.get(ctx, productPath(productID, "/override"), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ClearOverride removes a product's override.
func (c *Client) ClearOverride(ctx context.Context, productID string) error {
	return c.del(ctx, productPath(productID, "/override"))
}
