// Package explorer reads program mappings and off-chain metadata over HTTP. It implements the
// ledgerapi mapping capabilities against a node API for point queries and an indexing
// explorer for whole-mapping listings.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudx-io/auctionview/ledgerapi"
)

// maxBodyBytes bounds every response body read by the client.
const maxBodyBytes = 8 << 20

// FetchError reports a failed HTTP exchange. StatusCode is zero when no response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// NodeURL serves single mapping values, e.g. "https://api.explorer.provable.com/v1".
	NodeURL string
	// ListingURL serves whole-mapping listings, e.g. "https://api.testnet.aleoscan.io".
	ListingURL string
	// Network is the path segment naming the network on the node API.
	Network string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the node and listing APIs.
type Client struct {
	nodeURL    string
	listingURL string
	network    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ ledgerapi.MappingSource = (*Client)(nil)
)

// NewClient validates config and creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.NodeURL == "" {
		return nil, errors.New("explorer: NodeURL is required")
	}
	if config.Network == "" {
		return nil, errors.New("explorer: Network is required")
	}
	for _, raw := range []string{config.NodeURL, config.ListingURL} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("explorer: invalid URL %q: %w", raw, err)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listing := config.ListingURL
	if listing == "" {
		listing = config.NodeURL
	}
	return &Client{
		nodeURL:    strings.TrimRight(config.NodeURL, "/"),
		listingURL: strings.TrimRight(listing, "/"),
		network:    config.Network,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GetMappingValue returns the raw literal stored under key, or ledgerapi.ErrMappingValueNotFound
// when the node answers null.
func (c *Client) GetMappingValue(ctx context.Context, program, mapping, key string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/program/%s/mapping/%s/%s",
		c.nodeURL, url.PathEscape(c.network), url.PathEscape(program), url.PathEscape(mapping), url.PathEscape(key))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound {
			return "", ledgerapi.ErrMappingValueNotFound
		}
		return "", err
	}

	var value *string
	if err := json.Unmarshal(body, &value); err != nil {
		return "", &FetchError{URL: endpoint, Err: fmt.Errorf("failed to decode mapping value: %w", err)}
	}
	if value == nil {
		return "", ledgerapi.ErrMappingValueNotFound
	}
	return *value, nil
}

type listingResponse struct {
	Result []ledgerapi.MappingEntry `json:"result"`
}

// ListMappingValues returns every entry of mapping.
func (c *Client) ListMappingValues(ctx context.Context, program, mapping string) ([]ledgerapi.MappingEntry, error) {
	endpoint := fmt.Sprintf("%s/v2/mapping/list_program_mapping_values/%s/%s",
		c.listingURL, url.PathEscape(program), url.PathEscape(mapping))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{URL: endpoint, Err: fmt.Errorf("failed to decode mapping listing: %w", err)}
	}
	c.logger.Debug("listed mapping", "program", program, "mapping", mapping, "entries", len(resp.Result))
	return resp.Result, nil
}

// FetchJSON downloads a JSON document, used for off-chain item metadata.
func (c *Client) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &FetchError{URL: rawURL, Err: errors.New("unsupported metadata URL")}
	}
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &FetchError{URL: rawURL, Err: errors.New("response is not JSON")}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return body, nil
}
