// Package reputation provides the vendor reputation metrics the Buy Box engine
// scores offers with. Metrics are owned by an external reputation system and
// read through MetricsProvider.
package reputation

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

// ErrVendorNotFound is returned when the provider has no metrics for a vendor.
var ErrVendorNotFound = errors.New("vendor not found")

// MetricsProvider returns a vendor's current reputation metrics.
type MetricsProvider interface {
	GetMetrics(ctx context.Context, vendorID string) (*domain.VendorMetrics, error)
}

// validate rejects metrics outside the documented ranges.
func validate(m *domain.VendorMetrics) error {
	var errs []error
	if m.Rating < 0 || m.Rating > 5 {
		errs = append(errs, fmt.Errorf("rating must be in [0,5] (got %g)", m.Rating))
	}
	if m.TotalReviews < 0 {
		errs = append(errs, fmt.Errorf("total_reviews must be >= 0 (got %d)", m.TotalReviews))
	}
	if m.CancellationRate < 0 || m.CancellationRate > 1 {
		errs = append(errs, fmt.Errorf("cancellation_rate must be in [0,1] (got %g)", m.CancellationRate))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid metrics for vendor %s: %w", m.VendorID, errors.Join(errs...))
}
