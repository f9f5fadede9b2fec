package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          string
		wantType     Type
		wantProducts []string
		wantErr      string
	}{
		{
			name:         "offer updated",
			raw:          `{"type":"offer.updated","product_id":"p1","offer_id":"o1"}`,
			wantType:     OfferUpdated,
			wantProducts: []string{"p1"},
		},
		{
			name:         "offer deleted with list and duplicates",
			raw:          `{"type":"offer.deleted","product_id":"p1","product_ids":["p2"," p1 ",""]}`,
			wantType:     OfferDeleted,
			wantProducts: []string{"p1", "p2"},
		},
		{
			name:         "vendor metrics with vendor only",
			raw:          `{"type":"vendor.metrics.updated","vendor_id":"v1"}`,
			wantType:     VendorMetricsUpdated,
			wantProducts: []string{},
		},
		{
			name:         "unknown fields are ignored",
			raw:          `{"type":"offer.created","product_id":"p9","price":"12.00"}`,
			wantType:     OfferCreated,
			wantProducts: []string{"p9"},
		},
		{
			name:    "offer event without product",
			raw:     `{"type":"offer.created","offer_id":"o1"}`,
			wantErr: "without product_id",
		},
		{
			name:    "vendor event without vendor or products",
			raw:     `{"type":"vendor.metrics.updated"}`,
			wantErr: "without vendor_id",
		},
		{
			name:    "unknown type",
			raw:     `{"type":"price.changed","product_id":"p1"}`,
			wantErr: "unknown event type",
		},
		{
			name:    "not json",
			raw:     `offer.updated p1`,
			wantErr: "decode event payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := Decode([]byte(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.wantProducts, ev.Products())
		})
	}
}

func TestDecode_UnknownTypeIsSentinel(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"nope"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}
