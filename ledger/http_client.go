package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	syncerrors "github.com/openshelf/shelf-sync-node/errors"
	"github.com/openshelf/shelf-sync-node/constant"
	"github.com/openshelf/shelf-sync-node/keys"
)

const requestTimeout = 30 * time.Second

// HTTPClient implements Client over the bundler's HTTP API, a fast-index
// GraphQL endpoint, a canonical GraphQL endpoint, and N content gateways.
type HTTPClient struct {
	bundlerURL   string
	fastIndexURL string
	canonicalURL string
	gateways     []string
	token        string
	hc           *http.Client
	logger       zerolog.Logger
}

// NewHTTPClient creates a ledger client for the given endpoints.
func NewHTTPClient(bundlerURL, fastIndexURL, canonicalURL string, gateways []string, token string, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		bundlerURL:   strings.TrimRight(bundlerURL, "/"),
		fastIndexURL: fastIndexURL,
		canonicalURL: canonicalURL,
		gateways:     gateways,
		token:        token,
		hc:           &http.Client{Timeout: requestTimeout},
		logger:       logger.With().Str("component", "ledger_client").Logger(),
	}
}

type submitRequest struct {
	Data string `json:"data"`
	Tags []Tag  `json:"tags"`
}

type submitResponse struct {
	ID string `json:"id"`
}

// Submit posts the signed payload. A 402 maps to ErrPaymentRequired without
// reading the body; any other non-200 is a network error for the caller's
// queue.
func (c *HTTPClient) Submit(ctx context.Context, payload []byte, tags []Tag) (string, error) {
	if err := validateTags(tags); err != nil {
		return "", err
	}

	body, err := json.Marshal(submitRequest{
		Data: base64.RawURLEncoding.EncodeToString(payload),
		Tags: tags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submit request: %w", err)
	}

	url := fmt.Sprintf("%s/tx/%s", c.bundlerURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", syncerrors.NewNetworkError("ledger submit failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", syncerrors.NewNetworkError("malformed submit response", err)
		}
		if out.ID == "" {
			return "", syncerrors.NewNetworkError("submit response missing id", nil)
		}
		return out.ID, nil
	case http.StatusPaymentRequired:
		return "", ErrPaymentRequired
	default:
		return "", syncerrors.NewNetworkError(
			fmt.Sprintf("ledger submit returned status %d", resp.StatusCode), nil)
	}
}

// Query runs the tag-filtered query against the fast index first, then the
// canonical endpoint, merging and de-duplicating by id. Refs seen on the
// canonical endpoint are marked settled. Both endpoints failing is an error;
// one succeeding is enough.
func (c *HTTPClient) Query(ctx context.Context, filters []Tag) ([]TxRef, error) {
	if err := validateTags(filters); err != nil {
		return nil, err
	}

	fast, fastErr := c.queryEndpoint(ctx, c.fastIndexURL, filters)
	canonical, canonErr := c.queryEndpoint(ctx, c.canonicalURL, filters)

	if fastErr != nil && canonErr != nil {
		return nil, syncerrors.NewNetworkError("both query endpoints failed", fastErr)
	}
	if fastErr != nil {
		c.logger.Warn().Err(fastErr).Msg("fast index query failed, using canonical only")
	}
	if canonErr != nil {
		c.logger.Debug().Err(canonErr).Msg("canonical query failed, using fast index only")
	}

	merged := make([]TxRef, 0, len(fast)+len(canonical))
	seen := make(map[string]int)
	for _, ref := range fast {
		seen[ref.ID] = len(merged)
		merged = append(merged, ref)
	}
	for _, ref := range canonical {
		ref.Settled = true
		if i, ok := seen[ref.ID]; ok {
			merged[i].Settled = true
			continue
		}
		seen[ref.ID] = len(merged)
		merged = append(merged, ref)
	}
	return merged, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		Transactions struct {
			Edges []struct {
				Node struct {
					ID   string `json:"id"`
					Tags []Tag  `json:"tags"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"transactions"`
	} `json:"data"`
}

const txQuery = `query($tags: [TagFilter!]) {
  transactions(tags: $tags, first: 100) {
    edges { node { id tags { name value } } }
  }
}`

func (c *HTTPClient) queryEndpoint(ctx context.Context, endpoint string, filters []Tag) ([]TxRef, error) {
	tagVars := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		tagVars = append(tagVars, map[string]any{
			"name":   f.Name,
			"values": []string{f.Value},
		})
	}

	body, err := json.Marshal(gqlRequest{
		Query:     txQuery,
		Variables: map[string]any{"tags": tagVars},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query endpoint returned status %d", resp.StatusCode)
	}

	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed query response: %w", err)
	}

	refs := make([]TxRef, 0, len(out.Data.Transactions.Edges))
	for _, edge := range out.Data.Transactions.Edges {
		refs = append(refs, TxRef{ID: edge.Node.ID, Tags: edge.Node.Tags})
	}
	return refs, nil
}

// EnvelopeSize returns the exact byte size of the submit body for a signed,
// tagged payload. Tags and encoding overhead inflate the size beyond the raw
// payload length, and the bundler prices the bytes it receives, so price
// estimation must measure this, not len(payload).
func EnvelopeSize(payload []byte, tags []Tag) (int, error) {
	body, err := json.Marshal(submitRequest{
		Data: base64.RawURLEncoding.EncodeToString(payload),
		Tags: tags,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return len(body), nil
}

// FetchData fetches payload bytes by id from the content gateways, first
// success wins.
func (c *HTTPClient) FetchData(ctx context.Context, id string) ([]byte, error) {
	var lastErr error
	for _, gw := range c.gateways {
		url := fmt.Sprintf("%s/%s", strings.TrimRight(gw, "/"), id)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("gateway %s returned status %d", gw, resp.StatusCode)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, syncerrors.NewGatewayError(
		fmt.Sprintf("all gateways failed for %s", id), lastErr)
}

// EstimatePrice returns the write price in wei for the exact byte size.
func (c *HTTPClient) EstimatePrice(ctx context.Context, byteSize int) (*big.Int, error) {
	url := fmt.Sprintf("%s/price/%s/%d", c.bundlerURL, c.token, byteSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, syncerrors.NewNetworkError("price request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, syncerrors.NewNetworkError(
			fmt.Sprintf("price endpoint returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerrors.NewNetworkError("failed to read price response", err)
	}

	price, ok := new(big.Int).SetString(strings.TrimSpace(string(raw)), 10)
	if !ok {
		return nil, syncerrors.NewNetworkError(
			fmt.Sprintf("malformed price %q", strings.TrimSpace(string(raw))), nil)
	}
	return price, nil
}

// IsSettled queries the canonical endpoint for the id.
func (c *HTTPClient) IsSettled(ctx context.Context, id string) (bool, error) {
	body, err := json.Marshal(gqlRequest{
		Query:     `query($ids: [ID!]) { transactions(ids: $ids) { edges { node { id } } } }`,
		Variables: map[string]any{"ids": []string{id}},
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode settlement query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.canonicalURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build settlement query: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, syncerrors.NewNetworkError("settlement query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, syncerrors.NewNetworkError(
			fmt.Sprintf("settlement query returned status %d", resp.StatusCode), nil)
	}

	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, syncerrors.NewNetworkError("malformed settlement response", err)
	}
	for _, edge := range out.Data.Transactions.Edges {
		if edge.Node.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// validateTags rejects malformed tag input before it can reach a query
// template or a write endpoint. Credential lookup keys must be exactly 64
// lowercase hex characters.
func validateTags(tags []Tag) error {
	for _, t := range tags {
		if t.Name == "" {
			return syncerrors.NewValidationError("tag with empty name")
		}
		if t.Name == constant.TagCredentialLookup && !keys.ValidLookupKey(t.Value) {
			return syncerrors.NewValidationError("invalid credential lookup key")
		}
	}
	return nil
}
