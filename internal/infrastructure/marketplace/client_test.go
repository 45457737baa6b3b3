package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{BaseURL: server.URL, Token: "secret", RequestsPerSecond: 100}, nil)
}

func TestSearchSoldMapsItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sold", r.URL.Path)
		assert.Equal(t, "seiko skx007", r.URL.Query().Get("q"))
		assert.Equal(t, "watch", r.URL.Query().Get("category"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[
			{"title":"SKX007 diver","price":180,"condition":"Pre-owned","sold_at":"2026-09-01T10:00:00Z","shipping":{"free":true}},
			{"title":"SKX007 box","price":240,"condition":"New","sold_at":"yesterday","shipping":{"amount":12.5}}
		]}`))
	})

	comps, err := client.SearchSold(context.Background(), ports.SoldQuery{Keywords: " seiko skx007 ", Category: domain.CategoryWatch, Limit: 25})
	require.NoError(t, err)
	require.Len(t, comps, 2)

	assert.Equal(t, 180.0, comps[0].TotalPrice())
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), comps[0].SoldAt)
	assert.Equal(t, 252.5, comps[1].TotalPrice())
	assert.True(t, comps[1].SoldAt.IsZero())
}

func TestSearchSoldRequiresKeywords(t *testing.T) {
	client := New(Options{BaseURL: "http://unused"}, nil)
	_, err := client.SearchSold(context.Background(), ports.SoldQuery{Keywords: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchSoldThrottledIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := client.SearchSold(context.Background(), ports.SoldQuery{Keywords: "lego 75192"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrTemporary))
}

func TestFetchListing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listings/resolve", r.URL.Path)
		assert.Equal(t, "https://market.example/item/9", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"id":"9","title":"Omega Speedmaster Professional","price":3900,"image_urls":["https://img.example/9.jpg"]}`))
	})

	listing, err := client.FetchListing(context.Background(), "https://market.example/item/9")
	require.NoError(t, err)
	assert.Equal(t, "Omega Speedmaster Professional", listing.Title)
	assert.Equal(t, "https://market.example/item/9", listing.URL)
	assert.Equal(t, []string{"https://img.example/9.jpg"}, listing.ImageURLs)
}

func TestFetchListingRejectsBadURL(t *testing.T) {
	client := New(Options{BaseURL: "http://unused"}, nil)
	for _, raw := range []string{"", "ftp://x/y", "not a url", "https://"} {
		_, err := client.FetchListing(context.Background(), raw)
		require.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

func TestFetchListingWithoutTitleFailsLookup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"9"}`))
	})
	_, err := client.FetchListing(context.Background(), "https://market.example/item/9")
	require.ErrorIs(t, err, domain.ErrLookupFailed)
}

func TestFetchImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	client := New(Options{BaseURL: "http://unused", RequestsPerSecond: 100}, nil)
	data, err := client.FetchImage(context.Background(), server.URL+"/9.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}
