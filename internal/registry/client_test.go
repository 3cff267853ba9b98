package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/util"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestGetProductsScrollAllWithRetry(t *testing.T) {
	attempt := 0

	cfg, _ := config.Load()
	cfg.RegistryAPIToken = "test"
	cfg.RegistryAPIBaseURL = "https://example.test/api/v1"
	cfg.RegistryRateLimitRPS = 1000

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/product/scroll" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test" {
				t.Fatalf("missing auth header")
			}
			attempt++
			if attempt == 1 {
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(strings.NewReader(`{"error":"boom"}`)),
					Header:     make(http.Header),
				}, nil
			}

			payload := map[string]any{"success": true, "data": map[string]any{"products": []map[string]any{}, "scrollId": nil}}
			if attempt == 2 {
				payload = map[string]any{"success": true, "data": map[string]any{"products": []map[string]any{{"id": 1, "name": "Frozen Chicken Breast", "aliases": []string{"chicken breast"}}}, "scrollId": "abc"}}
			}
			if attempt == 3 {
				payload = map[string]any{"success": true, "data": map[string]any{"products": []map[string]any{{"id": 2, "name": "Canned Tuna in Brine"}}, "scrollId": nil}}
			}
			blob, _ := json.Marshal(payload)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(string(blob))),
				Header:     make(http.Header),
			}, nil
		}),
	}

	products, err := client.GetProductsScrollAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 {
		t.Fatalf("len=%d", len(products))
	}
	if products[0].Name != "Frozen Chicken Breast" || len(products[0].Aliases) != 1 {
		t.Fatalf("product=%+v", products[0])
	}
}

func TestGetProductsIncrementalMode(t *testing.T) {
	cfg, _ := config.Load()
	cfg.RegistryAPIToken = "test"
	cfg.RegistryAPIBaseURL = "https://example.test/api/v1"
	cfg.RegistryRateLimitRPS = 1000

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Query().Get("day") == "" {
				t.Fatalf("expected day param, got %s", r.URL.RawQuery)
			}
			payload := `{"success":true,"data":{"products":[],"scrollId":null}}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(payload)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := client.GetProductsIncremental(context.Background(), "day"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.GetProductsIncremental(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestBuildIndex(t *testing.T) {
	products := []internal.CatalogProduct{
		{ID: 1, SyncUID: util.StringPtr("sync-1"), Name: "Frozen Chicken Breast", Aliases: []string{"chicken breast"}},
		{ID: 2, Name: "Canned Tuna in Brine"},
	}
	idx := BuildIndex(products)

	if len(idx.ProductsByID) != 2 {
		t.Fatalf("products=%d", len(idx.ProductsByID))
	}
	if got := idx.ByAlias["CHICKEN BREAST"]; len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("alias lookup: %+v", got)
	}
	if got := idx.ByName["CANNED TUNA IN BRINE"]; len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("name lookup: %+v", got)
	}
	if _, ok := idx.TokenToProductIDs["CHICKEN"][1]; !ok {
		t.Fatalf("token index missing CHICKEN -> 1")
	}
}
