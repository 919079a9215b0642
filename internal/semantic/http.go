package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FunctionClient calls a hosted mapping function over HTTP.
//
// Request:  {"uploadedHeaders": [...], "shopifyFields": [...]}
// Response: {"mapping": {"Title": "Product Name", ...}}
// Errors:   any non-2xx status, optionally with {"error": "..."}
type FunctionClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewFunctionClient returns a client for endpoint. apiKey, when set, is sent
// as a bearer token.
func NewFunctionClient(endpoint, apiKey string, timeout time.Duration) *FunctionClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FunctionClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type functionRequest struct {
	UploadedHeaders []string `json:"uploadedHeaders"`
	ShopifyFields   []string `json:"shopifyFields"`
}

type functionResponse struct {
	Mapping map[string]any `json:"mapping"`
	Error   string         `json:"error"`
}

// Configured reports whether an endpoint is set.
func (c *FunctionClient) Configured() bool {
	return c != nil && c.endpoint != ""
}

// Suggest posts headers and fields to the function and returns its mapping.
func (c *FunctionClient) Suggest(ctx context.Context, headers []string, fields []string) (map[string]string, error) {
	body, err := json.Marshal(functionRequest{UploadedHeaders: headers, ShopifyFields: fields})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapping request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out functionResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != "" {
			return nil, fmt.Errorf("mapping function returned status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("mapping function returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if out.Mapping == nil {
		return nil, fmt.Errorf("response has no mapping")
	}
	return stringValues(out.Mapping), nil
}
