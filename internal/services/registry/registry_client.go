package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/services/cache"
	"ondc-bap/pkg/errors"

	"go.uber.org/zap"
)

// KeyCache caches resolved public keys. The client treats a nil cache and a
// cache error the same way: fall through to a registry lookup.
type KeyCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Client resolves counterparty signing public keys, preferring statically
// configured keys (closed networks, tests), then the cache, then a registry
// lookup call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	staticKeys map[string]string
	cache      KeyCache
	logger     *zap.Logger
}

// NewClient creates a registry client. keyCache may be nil.
func NewClient(cfg config.RegistryConfig, keyCache KeyCache, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.URL,
		staticKeys: cfg.StaticKeys,
		cache:      keyCache,
		logger:     logger,
	}
}

// lookupRequest is the registry lookup filter
type lookupRequest struct {
	SubscriberID string `json:"subscriber_id"`
	UkID         string `json:"ukId"`
}

// subscriberRecord is one entry of the registry lookup response
type subscriberRecord struct {
	SubscriberID     string `json:"subscriber_id"`
	UniqueKeyID      string `json:"ukId"`
	SigningPublicKey string `json:"signing_public_key"`
}

// LookupPublicKey returns the base64 signing public key for a subscriber key.
func (c *Client) LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error) {
	mapKey := subscriberID + "|" + ukID

	if key, ok := c.staticKeys[mapKey]; ok {
		return key, nil
	}

	cacheKey := cache.BuildKey("registry_key", subscriberID, ukID)
	if c.cache != nil {
		if key, found, err := c.cache.Get(ctx, cacheKey); err == nil && found {
			return key, nil
		}
	}

	if c.baseURL == "" {
		return "", errors.NewDomainError(65011, "registry unavailable", "no registry url configured and no static key for "+mapKey)
	}

	key, err := c.lookup(ctx, subscriberID, ukID)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, key); err != nil {
			c.logger.Warn("failed to cache registry key", zap.String("subscriber_id", subscriberID), zap.Error(err))
		}
	}

	return key, nil
}

func (c *Client) lookup(ctx context.Context, subscriberID, ukID string) (string, error) {
	body, err := json.Marshal(lookupRequest{SubscriberID: subscriberID, UkID: ukID})
	if err != nil {
		return "", errors.WrapDomainError(err, 65020, "registry lookup failed", "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lookup", bytes.NewReader(body))
	if err != nil {
		return "", errors.WrapDomainError(err, 65020, "registry lookup failed", "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.WrapDomainError(err, 65011, "registry unavailable", "lookup request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewDomainError(65011, "registry unavailable", fmt.Sprintf("unexpected status: %d", resp.StatusCode))
	}

	var records []subscriberRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return "", errors.WrapDomainError(err, 65011, "registry unavailable", "malformed lookup response")
	}
	if len(records) == 0 || records[0].SigningPublicKey == "" {
		return "", errors.NewDomainError(65006, "subscriber not found", subscriberID)
	}

	return records[0].SigningPublicKey, nil
}
