package score

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinDeliveryDays and MaxDeliveryDays bound the delivery window that
	// DeliverySLAScore interpolates over.
	MinDeliveryDays = 1
	MaxDeliveryDays = 30

	// StockCap is the quantity above which additional stock earns nothing.
	StockCap = 1000

	maxRating = 5.0
)

// Weights defines the relative importance of each scoring factor.
type Weights struct {
	Price        float64 `json:"price"`
	VendorRating float64 `json:"vendor_rating"`
	DeliverySLA  float64 `json:"delivery_sla"`
	Cancellation float64 `json:"cancellation"`
	Stock        float64 `json:"stock"`
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Price:        0.40,
		VendorRating: 0.25,
		DeliverySLA:  0.20,
		Cancellation: 0.10,
		Stock:        0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Price + w.VendorRating + w.DeliverySLA + w.Cancellation + w.Stock
}

// Validate checks that no weight is negative and that the weights sum to 1.0.
func (w Weights) Validate() error {
	if w.Price < 0 || w.VendorRating < 0 || w.DeliverySLA < 0 ||
		w.Cancellation < 0 || w.Stock < 0 {
		return errors.New("weights must not be negative")
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0 (got %.6f)", sum)
	}
	return nil
}

// OfferData holds the fields needed for scoring (decoupled from the domain model).
type OfferData struct {
	Price             float64
	StockQuantity     int
	TotalDeliveryDays int
	Rating            float64
	CancellationRate  float64
}

// PriceBounds is the price range across the competing offers.
type PriceBounds struct {
	Min float64
	Max float64
}

// Bounds returns the min/max of prices. An empty slice yields zero bounds.
func Bounds(prices []float64) PriceBounds {
	if len(prices) == 0 {
		return PriceBounds{}
	}
	b := PriceBounds{Min: prices[0], Max: prices[0]}
	for _, p := range prices[1:] {
		b.Min = math.Min(b.Min, p)
		b.Max = math.Max(b.Max, p)
	}
	return b
}

// Breakdown shows per-factor scores, each in [0,100].
type Breakdown struct {
	Price        float64 `json:"price"`
	VendorRating float64 `json:"vendor_rating"`
	DeliverySLA  float64 `json:"delivery_sla"`
	Cancellation float64 `json:"cancellation"`
	Stock        float64 `json:"stock"`
	Total        float64 `json:"total"`
}

// Perfect returns a breakdown with every factor at 100. An offer with no
// competitors has nothing to be normalized against.
func Perfect() Breakdown {
	return Breakdown{
		Price:        100,
		VendorRating: 100,
		DeliverySLA:  100,
		Cancellation: 100,
		Stock:        100,
		Total:        100,
	}
}

// Score computes the composite Buy Box score for one offer.
func Score(data OfferData, bounds PriceBounds, w Weights) Breakdown {
	b := Breakdown{
		Price:        PriceScore(data.Price, bounds.Min, bounds.Max),
		VendorRating: VendorRatingScore(data.Rating),
		DeliverySLA:  DeliverySLAScore(data.TotalDeliveryDays),
		Cancellation: CancellationScore(data.CancellationRate),
		Stock:        StockScore(data.StockQuantity),
	}

	b.Total = b.Price*w.Price +
		b.VendorRating*w.VendorRating +
		b.DeliverySLA*w.DeliverySLA +
		b.Cancellation*w.Cancellation +
		b.Stock*w.Stock

	return b
}

// PriceScore maps a price to 0-100 relative to the competing offers. The
// cheapest offer scores 100 and the costliest 0. When every offer has the
// same price, nobody is penalized.
func PriceScore(price, minPrice, maxPrice float64) float64 {
	if minPrice == maxPrice {
		return 100
	}
	return clamp(100*(1-(price-minPrice)/(maxPrice-minPrice)), 0, 100)
}

// VendorRatingScore maps a 0-5 star rating linearly onto 0-100.
func VendorRatingScore(rating float64) float64 {
	return clamp(rating/maxRating*100, 0, 100)
}

// DeliverySLAScore maps total delivery days onto 0-100. One day scores 100,
// thirty days or more scores 0.
func DeliverySLAScore(totalDeliveryDays int) float64 {
	days := clamp(float64(totalDeliveryDays), MinDeliveryDays, MaxDeliveryDays)
	return 100 * (1 - (days-MinDeliveryDays)/(MaxDeliveryDays-MinDeliveryDays))
}

// CancellationScore maps a 0-1 cancellation rate onto 100-0.
func CancellationScore(rate float64) float64 {
	return clamp(100*(1-rate), 0, 100)
}

// StockScore rewards inventory logarithmically with diminishing returns
// above StockCap. Out-of-stock offers score 0.
func StockScore(quantity int) float64 {
	if quantity <= 0 {
		return 0
	}
	q := float64(min(quantity, StockCap))
	return clamp(math.Log10(q+1)/math.Log10(StockCap+1)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
