package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.GetBuyBox(context.Background(), "p1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server not running")
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetBuyBox(context.Background(), "p1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 500)")
	assert.False(t, IsNotFound(err))
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetOverride(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_GetBuyBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		productID string
		force     bool
		wantPath  string
		wantQuery string
	}{
		{name: "cached read", productID: "p1", wantPath: "/api/v1/products/p1/buybox"},
		{name: "forced", productID: "p1", force: true, wantPath: "/api/v1/products/p1/buybox", wantQuery: "force=true"},
		{name: "escapes id", productID: "a/b", wantPath: "/api/v1/products/a%2Fb/buybox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.EscapedPath())
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(domain.Result{
					ProductID:     tt.productID,
					WinnerOfferID: "offer-a",
					WinnerScore:   92.66,
					Source:        domain.SourceCalculated,
				})
			}))
			defer srv.Close()

			res, err := New(srv.URL).GetBuyBox(context.Background(), tt.productID, tt.force)
			require.NoError(t, err)
			assert.Equal(t, "offer-a", res.WinnerOfferID)
			assert.Equal(t, domain.SourceCalculated, res.Source)
		})
	}
}

func TestClient_GetWinner(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/p1/buybox/winner", r.URL.Path)
		_, _ = w.Write([]byte(`{"product_id":"p1","winner_offer_id":"offer-b"}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL).GetWinner(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "offer-b", id)
}

func TestClient_BatchBuyBox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/buybox/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			ProductIDs []string `json:"product_ids"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"p1", "p2"}, req.ProductIDs)

		_, _ = w.Write([]byte(`{"results":{"p1":{"product_id":"p1","winner_offer_id":"offer-a"},"p2":null},` +
			`"errors":{"p2":"timeout"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).BatchBuyBox(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Contains(t, res.Results, "p2")
	assert.Nil(t, res.Results["p2"])
	assert.Equal(t, "offer-a", res.Results["p1"].WinnerOfferID)
	assert.Equal(t, "timeout", res.Errors["p2"])
}

func TestClient_InvalidateBuyBox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/products/p1/buybox/cache", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).InvalidateBuyBox(context.Background(), "p1"))
}

func TestClient_Overrides(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/p1/override", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			var req OverrideRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "offer-b", req.OfferID)
			assert.Equal(t, "ops", req.SetBy)
			if assert.NotNil(t, req.ExpiresAt) {
				assert.True(t, expires.Equal(*req.ExpiresAt))
			}
			_ = json.NewEncoder(w).Encode(domain.Override{
				ProductID: "p1", OfferID: req.OfferID, SetBy: req.SetBy, ExpiresAt: req.ExpiresAt,
			})
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Override{ProductID: "p1", OfferID: "offer-b"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	o, err := c.SetOverride(ctx, "p1", &OverrideRequest{OfferID: "offer-b", SetBy: "ops", ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, "offer-b", o.OfferID)

	o, err = c.GetOverride(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", o.ProductID)

	require.NoError(t, c.ClearOverride(ctx, "p1"))
}
