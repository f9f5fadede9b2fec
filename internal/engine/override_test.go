package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/buybox/internal/cache"
	cacheMocks "github.com/donaldgifford/buybox/internal/cache/mocks"
	"github.com/donaldgifford/buybox/internal/notify"
	notifyMocks "github.com/donaldgifford/buybox/internal/notify/mocks"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

type overrideRig struct {
	reg      *OverrideRegistry
	results  *ResultCache
	kv       *cache.Memory
	notifier *notifyMocks.MockNotifier
	clock    *testClock
}

func newOverrideRig(t *testing.T) *overrideRig {
	t.Helper()

	clock := newTestClock()
	kv := cache.NewMemory()
	results := NewResultCache(kv, "", WithResultCacheNowFunc(clock.Now))
	mn := notifyMocks.NewMockNotifier(t)

	return &overrideRig{
		reg: NewOverrideRegistry(kv, "", results,
			WithOverrideLogger(quietLogger()),
			WithOverrideNowFunc(clock.Now),
			WithNotifier(mn),
		),
		results:  results,
		kv:       kv,
		notifier: mn,
		clock:    clock,
	}
}

func TestOverrideRegistry_SetGetClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newOverrideRig(t)

	r.notifier.EXPECT().SendOverrideEvent(mock.Anything, mock.MatchedBy(func(ev *notify.OverrideEvent) bool {
		return ev.Action == notify.OverrideSet && ev.ProductID == "p1" && ev.Override.OfferID == "o2"
	})).Return(nil).Once()
	r.notifier.EXPECT().SendOverrideEvent(mock.Anything, mock.MatchedBy(func(ev *notify.OverrideEvent) bool {
		return ev.Action == notify.OverrideCleared && ev.ProductID == "p1" && ev.Override == nil
	})).Return(nil).Once()

	o := &domain.Override{ProductID: "p1", OfferID: "o2", VendorID: "v2", Reason: "promo", SetBy: "ops"}
	require.NoError(t, r.reg.Set(ctx, o))
	assert.Equal(t, r.clock.Now(), o.SetAt, "SetAt defaults to now")

	got, err := r.reg.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "o2", got.OfferID)
	assert.Equal(t, "promo", got.Reason)
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, r.reg.Clear(ctx, "p1"))
	got, err = r.reg.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOverrideRegistry_SetAndClearInvalidateResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newOverrideRig(t)
	r.notifier.EXPECT().SendOverrideEvent(mock.Anything, mock.Anything).Return(nil).Twice()

	require.NoError(t, r.results.Set(ctx, "p1", testResult(r.clock), time.Minute))
	require.NoError(t, r.reg.Set(ctx, &domain.Override{ProductID: "p1", OfferID: "o2"}))

	cached, err := r.results.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, cached, "set invalidates")

	require.NoError(t, r.results.Set(ctx, "p1", testResult(r.clock), time.Minute))
	require.NoError(t, r.reg.Clear(ctx, "p1"))

	cached, err = r.results.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, cached, "clear invalidates")
}

func TestOverrideRegistry_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newOverrideRig(t)
	r.notifier.EXPECT().SendOverrideEvent(mock.Anything, mock.Anything).Return(nil).Once()

	expires := r.clock.Now().Add(time.Hour)
	require.NoError(t, r.reg.Set(ctx, &domain.Override{ProductID: "p1", OfferID: "o2", ExpiresAt: &expires}))

	r.clock.Advance(59 * time.Minute)
	got, err := r.reg.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)

	r.clock.Advance(time.Minute)
	got, err = r.reg.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOverrideRegistry_ExpiredEntryEvictedOnRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newOverrideRig(t)

	// Written without a store TTL, as an older instance might have.
	past := r.clock.Now().Add(-time.Second)
	data, err := json.Marshal(&domain.Override{ProductID: "p1", OfferID: "o2", ExpiresAt: &past})
	require.NoError(t, err)
	require.NoError(t, r.kv.Set(ctx, "buybox:override:p1", data, 0))

	got, err := r.reg.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, r.kv.Len(), "expired override is deleted")
}

func TestOverrideRegistry_Validation(t *testing.T) {
	t.Parallel()

	r := newOverrideRig(t)
	past := r.clock.Now().Add(-time.Minute)
	now := r.clock.Now()

	tests := []struct {
		name     string
		override *domain.Override
		wantMsg  string
	}{
		{name: "nil", override: nil, wantMsg: "override is required"},
		{name: "missing product", override: &domain.Override{OfferID: "o1"}, wantMsg: "product_id is required"},
		{name: "missing offer", override: &domain.Override{ProductID: "p1"}, wantMsg: "offer_id is required"},
		{name: "already expired", override: &domain.Override{ProductID: "p1", OfferID: "o1", ExpiresAt: &past}, wantMsg: "not in the future"},
		{name: "expires now", override: &domain.Override{ProductID: "p1", OfferID: "o1", ExpiresAt: &now}, wantMsg: "not in the future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := r.reg.Set(context.Background(), tt.override)
			require.ErrorIs(t, err, ErrInvalidOverride)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	require.ErrorIs(t, r.reg.Clear(context.Background(), ""), ErrInvalidOverride)
}

func TestOverrideRegistry_NotificationFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	r := newOverrideRig(t)
	r.notifier.EXPECT().SendOverrideEvent(mock.Anything, mock.Anything).Return(errors.New("webhook down")).Once()

	require.NoError(t, r.reg.Set(context.Background(), &domain.Override{ProductID: "p1", OfferID: "o1"}))
}

func TestOverrideRegistry_StoreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := cacheMocks.NewMockStore(t)
	reg := NewOverrideRegistry(ms, "", nil, WithOverrideLogger(quietLogger()))

	ms.EXPECT().Set(mock.Anything, "buybox:override:p1", mock.Anything, time.Duration(0)).Return(errors.New("down")).Once()
	err := reg.Set(ctx, &domain.Override{ProductID: "p1", OfferID: "o1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing override")

	ms.EXPECT().Get(mock.Anything, "buybox:override:p1").Return(nil, errors.New("down")).Once()
	_, err = reg.Get(ctx, "p1")
	require.Error(t, err)

	ms.EXPECT().Delete(mock.Anything, "buybox:override:p1").Return(errors.New("down")).Once()
	require.Error(t, reg.Clear(ctx, "p1"))
}

func TestOverrideRegistry_InvalidationFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	overrides := cache.NewMemory()
	broken := cacheMocks.NewMockStore(t)
	broken.EXPECT().Delete(mock.Anything, "buybox:result:p1").Return(errors.New("down")).Twice()

	reg := NewOverrideRegistry(overrides, "", NewResultCache(broken, ""), WithOverrideLogger(quietLogger()))

	require.NoError(t, reg.Set(ctx, &domain.Override{ProductID: "p1", OfferID: "o1"}))
	require.NoError(t, reg.Clear(ctx, "p1"))
}

func TestOverrideRegistry_TTLFollowsExpiry(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	ms := cacheMocks.NewMockStore(t)
	reg := NewOverrideRegistry(ms, "", nil,
		WithOverrideLogger(quietLogger()),
		WithOverrideNowFunc(clock.Now),
	)

	expires := clock.Now().Add(90 * time.Minute)
	ms.EXPECT().Set(mock.Anything, "buybox:override:p1", mock.Anything, 90*time.Minute).Return(nil).Once()

	require.NoError(t, reg.Set(context.Background(), &domain.Override{ProductID: "p1", OfferID: "o1", ExpiresAt: &expires}))
}
