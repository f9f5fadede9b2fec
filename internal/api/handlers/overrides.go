package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/engine"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

// OverrideHandler manages admin Buy Box overrides.
type OverrideHandler struct {
	svc BuyBoxService
}

// NewOverrideHandler creates a new OverrideHandler.
func NewOverrideHandler(svc BuyBoxService) *OverrideHandler {
	return &OverrideHandler{svc: svc}
}

// SetOverrideInput is the request to force a product's winner.
type SetOverrideInput struct {
	ProductID string `path:"product_id" doc:"Catalog product ID"`
	Body      struct {
		OfferID   string     `json:"offer_id"             minLength:"1" doc:"Offer to force as winner"`
		VendorID  string     `json:"vendor_id,omitempty"  doc:"Vendor of the offer"`
		Reason    string     `json:"reason,omitempty"     doc:"Why the override was set"`
		SetBy     string     `json:"set_by,omitempty"     doc:"Admin who set the override"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" doc:"When the override lapses; never if omitted"`
	}
}

// OverrideInput identifies a product's override.
type OverrideInput struct {
	ProductID string `path:"product_id" doc:"Catalog product ID"`
}

// OverrideOutput is an admin override.
type OverrideOutput struct {
	Body domain.Override
}

// Set stores an override for a product.
func (h *OverrideHandler) Set(
	ctx context.Context,
	input *SetOverrideInput,
) (*OverrideOutput, error) {
	o := &domain.Override{
		ProductID: input.ProductID,
		OfferID:   input.Body.OfferID,
		VendorID:  input.Body.VendorID,
		Reason:    input.Body.Reason,
		SetBy:     input.Body.SetBy,
		ExpiresAt: input.Body.ExpiresAt,
	}

	if err := h.svc.SetOverride(ctx, o); err != nil {
		return nil, overrideError("setting override failed", err)
	}

	return &OverrideOutput{Body: *o}, nil
}

// Get returns a product's active override.
func (h *OverrideHandler) Get(
	ctx context.Context,
	input *OverrideInput,
) (*OverrideOutput, error) {
	o, err := h.svc.GetOverride(ctx, input.ProductID)
	if err != nil {
		return nil, overrideError("reading override failed", err)
	}
	if o == nil {
		return nil, huma.Error404NotFound("no active override")
	}

	return &OverrideOutput{Body: *o}, nil
}

// Clear removes a product's override.
func (h *OverrideHandler) Clear(
	ctx context.Context,
	input *OverrideInput,
) (*struct{}, error) {
	if err := h.svc.ClearOverride(ctx, input.ProductID); err != nil {
		return nil, overrideError("clearing override failed", err)
	}

	return nil, nil
}

func overrideError(msg string, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidOverride):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, cache.ErrUnavailable):
		return huma.Error503ServiceUnavailable(msg + ": " + err.Error())
	default:
		return huma.Error500InternalServerError(msg + ": " + err.Error())
	}
}

// RegisterOverrideRoutes registers the admin override endpoints with the
// Huma API.
func RegisterOverrideRoutes(api huma.API, h *OverrideHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "set-admin-override",
		Method:      http.MethodPut,
		Path:        "/api/v1/products/{product_id}/override",
		Summary:     "Set an admin override",
		Description: "Forces the given offer to win the product's Buy Box until cleared or expired.",
		Tags:        []string{"overrides"},
		Errors: []int{
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, h.Set)

	huma.Register(api, huma.Operation{
		OperationID: "get-admin-override",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{product_id}/override",
		Summary:     "Get the admin override",
		Description: "Returns the product's active override.",
		Tags:        []string{"overrides"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID:   "clear-admin-override",
		Method:        http.MethodDelete,
		Path:          "/api/v1/products/{product_id}/override",
		Summary:       "Clear the admin override",
		Description:   "Reverts the product to its computed ranking.",
		Tags:          []string{"overrides"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, h.Clear)
}
