// Package domain defines the core business types for the Buy Box service.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedOffer is returned when an offer supplied by the offer source is
// missing required fields or carries out-of-range values.
var ErrMalformedOffer = errors.New("malformed offer")

// Offer is a single vendor's offer for a catalog product. Offers are owned by
// the catalog subsystem; the engine only reads them.
type Offer struct {
	ID                 string          `json:"offer_id"              db:"id"`
	ProductID          string          `json:"product_id"            db:"product_id"`
	VendorID           string          `json:"vendor_id"             db:"vendor_id"`
	Price              decimal.Decimal `json:"price"                 db:"price"`
	StockQuantity      int             `json:"stock_quantity"        db:"stock_quantity"`
	SLAInDays          int             `json:"sla_in_days"           db:"sla_in_days"`
	HandlingTimeInDays int             `json:"handling_time_in_days" db:"handling_time_in_days"`
}

// TotalDeliveryDays returns handling time plus shipping SLA.
func (o *Offer) TotalDeliveryDays() int {
	return o.HandlingTimeInDays + o.SLAInDays
}

// Validate reports whether the offer satisfies the offer source contract.
func (o *Offer) Validate() error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, errors.New("offer_id is required"))
	}
	if o.ProductID == "" {
		errs = append(errs, errors.New("product_id is required"))
	}
	if o.VendorID == "" {
		errs = append(errs, errors.New("vendor_id is required"))
	}
	if o.Price.IsNegative() {
		errs = append(errs, fmt.Errorf("price must be >= 0 (got %s)", o.Price))
	}
	if o.StockQuantity < 0 {
		errs = append(errs, fmt.Errorf("stock_quantity must be >= 0 (got %d)", o.StockQuantity))
	}
	if o.SLAInDays < 0 {
		errs = append(errs, fmt.Errorf("sla_in_days must be >= 0 (got %d)", o.SLAInDays))
	}
	if o.HandlingTimeInDays < 0 {
		errs = append(errs, fmt.Errorf(
			"handling_time_in_days must be >= 0 (got %d)", o.HandlingTimeInDays,
		))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrMalformedOffer, o.ID, errors.Join(errs...))
}

// VendorMetrics is a point-in-time snapshot of a vendor's reputation.
type VendorMetrics struct {
	VendorID         string  `json:"vendor_id"         bson:"vendor_id"`
	Rating           float64 `json:"rating"            bson:"rating"`
	TotalReviews     int     `json:"total_reviews"     bson:"total_reviews"`
	CancellationRate float64 `json:"cancellation_rate" bson:"cancellation_rate"`
}

// NeutralVendorMetrics returns metrics that score 50 on every vendor factor.
// Used when the metrics provider cannot answer for a vendor.
func NeutralVendorMetrics(vendorID string) *VendorMetrics {
	return &VendorMetrics{
		VendorID:         vendorID,
		Rating:           2.5,
		TotalReviews:     0,
		CancellationRate: 0.5,
	}
}

// ScoreBreakdown holds the per-factor scores for one offer.
type ScoreBreakdown struct {
	OfferID           string  `json:"offer_id"`
	VendorID          string  `json:"vendor_id"`
	PriceScore        float64 `json:"price_score"`
	VendorRatingScore float64 `json:"vendor_rating_score"`
	DeliverySLAScore  float64 `json:"delivery_sla_score"`
	CancellationScore float64 `json:"cancellation_score"`
	StockScore        float64 `json:"stock_score"`
	TotalScore        float64 `json:"total_score"`
}

// Source describes how a Result was produced.
type Source string

// Source constants.
const (
	SourceCalculated    Source = "calculated"
	SourceAdminOverride Source = "admin_override"
	SourceCached        Source = "cached"
)

// Result is the Buy Box decision for a product.
type Result struct {
	ProductID      string           `json:"product_id"`
	WinnerOfferID  string           `json:"winner_offer_id"`
	WinnerScore    float64          `json:"winner_score"`
	AllScores      []ScoreBreakdown `json:"all_scores"`
	CalculatedAt   time.Time        `json:"calculated_at"`
	Source         Source           `json:"source"            enum:"calculated,admin_override,cached"`
	CacheExpiresAt *time.Time       `json:"cache_expires_at,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.AllScores = slices.Clone(r.AllScores)
	if c.AllScores == nil {
		c.AllScores = []ScoreBreakdown{}
	}
	if r.CacheExpiresAt != nil {
		t := *r.CacheExpiresAt
		c.CacheExpiresAt = &t
	}
	return &c
}

// Override is an admin-asserted Buy Box winner for a product.
type Override struct {
	ProductID string     `json:"product_id"`
	OfferID   string     `json:"offer_id"`
	VendorID  string     `json:"vendor_id"`
	Reason    string     `json:"reason"`
	SetBy     string     `json:"set_by"`
	SetAt     time.Time  `json:"set_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the override has passed its expiry at now.
// Overrides without an expiry never expire.
func (o *Override) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
