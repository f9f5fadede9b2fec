package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/buybox/internal/engine"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

// BuyBoxService is the engine surface used by the HTTP handlers.
type BuyBoxService interface {
	Calculate(ctx context.Context, productID string, force bool) (*domain.Result, error)
	Winner(ctx context.Context, productID string) (string, error)
	BatchCalculate(ctx context.Context, productIDs []string) (map[string]*domain.Result, error)
	InvalidateCache(ctx context.Context, productID string) error
	SetOverride(ctx context.Context, o *domain.Override) error
	GetOverride(ctx context.Context, productID string) (*domain.Override, error)
	ClearOverride(ctx context.Context, productID string) error
}

// BuyBoxHandler serves Buy Box calculations.
type BuyBoxHandler struct {
	svc BuyBoxService
}

// NewBuyBoxHandler creates a new BuyBoxHandler.
func NewBuyBoxHandler(svc BuyBoxService) *BuyBoxHandler {
	return &BuyBoxHandler{svc: svc}
}

// --- Input/Output types ---

// CalculateInput is the request for a product's Buy Box.
type CalculateInput struct {
	ProductID string `path:"product_id" doc:"Catalog product ID"`
	Force     bool   `query:"force" doc:"Bypass the result cache and recalculate"`
}

// CalculateOutput is the Buy Box result for one product.
type CalculateOutput struct {
	Body domain.Result
}

// WinnerInput is the request for a product's winning offer.
type WinnerInput struct {
	ProductID string `path:"product_id" doc:"Catalog product ID"`
}

// WinnerBody identifies a product's winning offer.
type WinnerBody struct {
	ProductID     string `json:"product_id"      example:"sku-123"`
	WinnerOfferID string `json:"winner_offer_id" example:"offer-a"`
}

// WinnerOutput is the response for the winner endpoint.
type WinnerOutput struct {
	Body WinnerBody
}

// BatchInput is the request for a batch calculation.
type BatchInput struct {
	Body struct {
		ProductIDs []string `json:"product_ids" minItems:"1" maxItems:"100" doc:"Products to calculate"`
	}
}

// BatchBody holds the per-product results of a batch. A product with no
// active offers, or whose calculation failed, maps to null; failures are
// also listed in Errors.
type BatchBody struct {
	Results map[string]*domain.Result `json:"results"`
	Errors  map[string]string         `json:"errors,omitempty"`
}

// BatchOutput is the response for a batch calculation.
type BatchOutput struct {
	Body BatchBody
}

// InvalidateInput identifies the product whose cached result is dropped.
type InvalidateInput struct {
	ProductID string `path:"product_id" doc:"Catalog product ID"`
}

// --- Handlers ---

// Calculate returns the Buy Box result for a product.
func (h *BuyBoxHandler) Calculate(
	ctx context.Context,
	input *CalculateInput,
) (*CalculateOutput, error) {
	res, err := h.svc.Calculate(ctx, input.ProductID, input.Force)
	if err != nil {
		return nil, calculationError(err)
	}
	if res == nil {
		return nil, huma.Error404NotFound("product has no active offers")
	}

	return &CalculateOutput{Body: *res}, nil
}

// Winner returns only the winning offer ID for a product.
func (h *BuyBoxHandler) Winner(
	ctx context.Context,
	input *WinnerInput,
) (*WinnerOutput, error) {
	id, err := h.svc.Winner(ctx, input.ProductID)
	if err != nil {
		return nil, calculationError(err)
	}
	if id == "" {
		return nil, huma.Error404NotFound("product has no active offers")
	}

	return &WinnerOutput{Body: WinnerBody{ProductID: input.ProductID, WinnerOfferID: id}}, nil
}

// Batch calculates several products independently.
func (h *BuyBoxHandler) Batch(
	ctx context.Context,
	input *BatchInput,
) (*BatchOutput, error) {
	results, err := h.svc.BatchCalculate(ctx, input.Body.ProductIDs)
	body := BatchBody{Results: results}
	if body.Results == nil {
		body.Results = map[string]*domain.Result{}
	}
	for _, pe := range engine.ProductErrors(err) {
		if body.Errors == nil {
			body.Errors = map[string]string{}
		}
		body.Errors[pe.ProductID] = pe.Err.Error()
	}

	return &BatchOutput{Body: body}, nil
}

// Invalidate drops the cached result for a product.
func (h *BuyBoxHandler) Invalidate(
	ctx context.Context,
	input *InvalidateInput,
) (*struct{}, error) {
	if err := h.svc.InvalidateCache(ctx, input.ProductID); err != nil {
		return nil, huma.Error500InternalServerError("invalidating cache failed: " + err.Error())
	}

	return nil, nil
}

func calculationError(err error) error {
	if errors.Is(err, domain.ErrMalformedOffer) {
		return huma.Error502BadGateway("offer source returned malformed data: " + err.Error())
	}
	return huma.Error500InternalServerError("buy box calculation failed: " + err.Error())
}

// RegisterBuyBoxRoutes registers the Buy Box endpoints with the Huma API.
func RegisterBuyBoxRoutes(api huma.API, h *BuyBoxHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "calculate-buybox",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{product_id}/buybox",
		Summary:     "Calculate the Buy Box",
		Description: "Returns the ranked offers and winner for a product. " +
			"An active admin override always wins; otherwise a cached result is served unless force is set.",
		Tags:   []string{"buybox"},
		Errors: []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway},
	}, h.Calculate)

	huma.Register(api, huma.Operation{
		OperationID: "get-buybox-winner",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{product_id}/buybox/winner",
		Summary:     "Get the Buy Box winner",
		Description: "Returns the winning offer ID for a product.",
		Tags:        []string{"buybox"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Winner)

	huma.Register(api, huma.Operation{
		OperationID: "batch-calculate-buybox",
		Method:      http.MethodPost,
		Path:        "/api/v1/buybox/batch",
		Summary:     "Calculate the Buy Box for several products",
		Description: "Calculates each product independently. One product's failure does not affect the others.",
		Tags:        []string{"buybox"},
	}, h.Batch)

	huma.Register(api, huma.Operation{
		OperationID:   "invalidate-buybox-cache",
		Method:        http.MethodDelete,
		Path:          "/api/v1/products/{product_id}/buybox/cache",
		Summary:       "Invalidate a cached Buy Box",
		Description:   "Drops the cached result so the next request recalculates.",
		Tags:          []string{"buybox"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusInternalServerError},
	}, h.Invalidate)
}
