package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/engine"
	reputationMocks "github.com/donaldgifford/buybox/internal/reputation/mocks"
	storeMocks "github.com/donaldgifford/buybox/internal/store/mocks"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

type testEngine struct {
	eng     *engine.Engine
	offers  *storeMocks.MockOfferSource
	vendors *reputationMocks.MockMetricsProvider
}

// newTestEngine wires a real engine over an in-memory KV store and mocked
// collaborators.
func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := cache.NewMemory()
	results := engine.NewResultCache(kv, "")
	overrides := engine.NewOverrideRegistry(kv, "", results, engine.WithOverrideLogger(log))

	mo := storeMocks.NewMockOfferSource(t)
	mv := reputationMocks.NewMockMetricsProvider(t)

	return &testEngine{
		eng:     engine.NewEngine(mo, mv, results, overrides, engine.WithLogger(log)),
		offers:  mo,
		vendors: mv,
	}
}

func (te *testEngine) expectTwoOffers(productID string) {
	te.offers.EXPECT().ListActiveOffers(mock.Anything, productID).Return([]domain.Offer{
		{
			ID: "offer-a", ProductID: productID, VendorID: "vendor-a",
			Price: decimal.RequireFromString("90"), StockQuantity: 10, HandlingTimeInDays: 1, SLAInDays: 2,
		},
		{
			ID: "offer-b", ProductID: productID, VendorID: "vendor-b",
			Price: decimal.RequireFromString("110"), StockQuantity: 200, HandlingTimeInDays: 2, SLAInDays: 3,
		},
	}, nil)
	te.vendors.EXPECT().GetMetrics(mock.Anything, "vendor-a").Return(&domain.VendorMetrics{
		VendorID: "vendor-a", Rating: 4.5, TotalReviews: 100, CancellationRate: 0.02,
	}, nil).Maybe()
	te.vendors.EXPECT().GetMetrics(mock.Anything, "vendor-b").Return(&domain.VendorMetrics{
		VendorID: "vendor-b", Rating: 4.0, TotalReviews: 100, CancellationRate: 0.05,
	}, nil).Maybe()
}

// fakeService returns canned errors for paths a real engine cannot easily
// reach.
type fakeService struct {
	err error
}

func (f *fakeService) Calculate(context.Context, string, bool) (*domain.Result, error) {
	return nil, f.err
}

func (f *fakeService) Winner(context.Context, string) (string, error) {
	return "", f.err
}

func (f *fakeService) BatchCalculate(_ context.Context, ids []string) (map[string]*domain.Result, error) {
	out := make(map[string]*domain.Result, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	return out, f.err
}

func (f *fakeService) InvalidateCache(context.Context, string) error { return f.err }

func (f *fakeService) SetOverride(context.Context, *domain.Override) error { return f.err }

func (f *fakeService) GetOverride(context.Context, string) (*domain.Override, error) {
	return nil, f.err
}

func (f *fakeService) ClearOverride(context.Context, string) error { return f.err }
