// Package metadata resolves the off-chain description of auctioned items. Each auction stores
// the URL of a JSON document as field-encoded text; the cache decodes it, fetches the document
// once per URL and keeps the result for the session.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/fieldcodec"
)

// DefaultSize is the cache capacity used when none is configured.
const DefaultSize = 512

// Fetcher downloads a JSON document.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string) ([]byte, error)
}

// Options configure a Cache.
type Options struct {
	Fetcher Fetcher
	// Size bounds the number of cached documents. Zero means DefaultSize.
	Size   int
	Logger *slog.Logger
}

// Cache maps metadata URLs to resolved metadata. It is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	entries *lru.Cache[string, core.Metadata]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCache creates a Cache.
func NewCache(opts Options) (*Cache, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("metadata: Fetcher is required")
	}
	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, core.Metadata](size)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{fetcher: opts.Fetcher, entries: entries, logger: logger}, nil
}

// Key decodes a field-encoded metadata reference into the URL used as cache key.
func Key(refs []string) (string, error) {
	text, err := fieldcodec.DecodeLiteralsToText(refs)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(text)
	if key == "" {
		return "", errors.New("empty metadata reference")
	}
	return key, nil
}

// Peek returns a cached entry without fetching.
func (c *Cache) Peek(key string) (core.Metadata, bool) {
	return c.entries.Peek(key)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Get resolves the metadata of an auction. Concurrent requests for the same URL share one
// fetch. Failures are logged and yield empty metadata; they are not cached, so a later call
// retries.
func (c *Cache) Get(ctx context.Context, auctionID string, refs []string) core.Metadata {
	key, err := Key(refs)
	if err != nil {
		c.logger.Warn("undecodable metadata reference", "auction_id", auctionID, "reason", err)
		return core.Metadata{}
	}
	m, err := c.Resolve(ctx, key)
	if err != nil {
		c.logger.Warn("metadata unavailable", "auction_id", auctionID, "url", key, "reason", err)
		return core.Metadata{}
	}
	return m
}

// Resolve returns the metadata stored at url, fetching it on a miss.
func (c *Cache) Resolve(ctx context.Context, url string) (core.Metadata, error) {
	if m, ok := c.entries.Get(url); ok {
		return m, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		// A concurrent caller may have filled the entry while this one waited.
		if m, ok := c.entries.Get(url); ok {
			return m, nil
		}
		body, err := c.fetcher.FetchJSON(ctx, url)
		if err != nil {
			return nil, err
		}
		m, err := Decode(body)
		if err != nil {
			return nil, err
		}
		c.entries.Add(url, m)
		return m, nil
	})
	if err != nil {
		return core.Metadata{}, err
	}
	return v.(core.Metadata), nil
}

// Decode parses a metadata document. Some publishers store the document as a JSON string
// holding JSON; both forms are accepted.
func Decode(body []byte) (core.Metadata, error) {
	var m core.Metadata
	err := json.Unmarshal(body, &m)
	if err == nil {
		return m, nil
	}

	var inner string
	if strErr := json.Unmarshal(body, &inner); strErr != nil {
		return core.Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(inner), &m); err != nil {
		return core.Metadata{}, fmt.Errorf("failed to decode nested metadata: %w", err)
	}
	return m, nil
}
