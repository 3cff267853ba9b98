package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/util"
)

// Client pulls the canonical product registry from the reference API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Products []map[string]any `json:"products"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RegistryTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.RegistryRateLimitRPS),
	}
}

func (c *Client) GetProductsScrollAll(ctx context.Context) ([]internal.CatalogProduct, error) {
	return c.getProductsScroll(ctx, map[string]string{})
}

func (c *Client) GetProductsIncremental(ctx context.Context, mode string) ([]internal.CatalogProduct, error) {
	params := map[string]string{}
	switch mode {
	case "day":
		params["day"] = strconv.Itoa(c.cfg.IncrementalLookbackDay)
	case "hour":
		params["hour"] = strconv.Itoa(c.cfg.IncrementalLookbackHrs)
	default:
		return nil, fmt.Errorf("unsupported incremental mode: %s", mode)
	}
	return c.getProductsScroll(ctx, params)
}

func (c *Client) getProductsScroll(ctx context.Context, params map[string]string) ([]internal.CatalogProduct, error) {
	all := make([]internal.CatalogProduct, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "product/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Products {
			product, err := toCatalogProduct(raw)
			if err != nil {
				continue
			}
			all = append(all, product)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Products) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.RegistryAPIToken) == "" {
		return nil, errors.New("missing REGISTRY_API_TOKEN")
	}
	if strings.TrimSpace(c.cfg.RegistryAPIBaseURL) == "" {
		return nil, errors.New("missing REGISTRY_API_BASE_URL")
	}

	baseURL := strings.TrimRight(c.cfg.RegistryAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.RegistryAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("registry status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("registry api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("registry api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("registry request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toCatalogProduct(raw map[string]any) (internal.CatalogProduct, error) {
	name, _ := raw["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return internal.CatalogProduct{}, errors.New("empty name")
	}

	id, ok := toInt(raw["id"])
	if !ok {
		return internal.CatalogProduct{}, errors.New("missing id")
	}

	rawJSON, _ := json.Marshal(raw)
	product := internal.CatalogProduct{
		ID:      id,
		Name:    name,
		RawJSON: string(rawJSON),
	}
	product.SyncUID = toStringPtr(raw["syncUid"])
	product.Category = toStringPtr(raw["category"])
	product.Unit = toStringPtr(raw["unit"])
	product.UpdatedAt = toStringPtr(raw["updatedAt"])
	product.Aliases = toStringSlice(raw["aliases"])

	return product, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
