package utils

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultFetchTimeout bounds a single key-set download.
	DefaultFetchTimeout = 5 * time.Second

	maxKeySetBytes = 1 << 20
	refreshKey     = "jwks"
)

var (
	// ErrKeyNotFound is returned when a kid is absent even after a refresh.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrKeySetUnavailable is returned when the key-set document cannot be fetched or decoded.
	ErrKeySetUnavailable = errors.New("signing key set unavailable")
)

// Refresh outcomes passed to the refresh observer.
const (
	RefreshOK        = "ok"
	RefreshFailed    = "failed"
	RefreshThrottled = "throttled"
)

// KeySetCache holds the public keys of a remote JWKS document, keyed by kid.
// The key map is replaced wholesale on refresh, so readers never see a
// partially populated set.
type KeySetCache struct {
	url          string
	client       *http.Client
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger
	observe      func(outcome string)

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

// KeySetOption configures a KeySetCache.
type KeySetOption func(*KeySetCache)

// WithHTTPClient sets the client used to download the key set.
func WithHTTPClient(client *http.Client) KeySetOption {
	return func(c *KeySetCache) {
		c.client = client
	}
}

// WithFetchTimeout bounds each download.
func WithFetchTimeout(timeout time.Duration) KeySetOption {
	return func(c *KeySetCache) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

// WithRefreshLimiter caps how often unknown kids may trigger a download.
func WithRefreshLimiter(limiter *rate.Limiter) KeySetOption {
	return func(c *KeySetCache) {
		c.limiter = limiter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) KeySetOption {
	return func(c *KeySetCache) {
		c.logger = logger
	}
}

// WithRefreshObserver registers a callback invoked with the outcome of every refresh attempt.
func WithRefreshObserver(observe func(outcome string)) KeySetOption {
	return func(c *KeySetCache) {
		c.observe = observe
	}
}

// NewKeySetCache creates an empty cache for the JWKS document at url.
func NewKeySetCache(url string, opts ...KeySetOption) *KeySetCache {
	c := &KeySetCache{
		url:          url,
		client:       http.DefaultClient,
		fetchTimeout: DefaultFetchTimeout,
		logger:       zap.NewNop(),
		observe:      func(string) {},
		keys:         map[string]crypto.PublicKey{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JWKSURL returns the well-known key-set location for an issuer.
func JWKSURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + "/.well-known/jwks.json"
}

// NewKeySetHTTPClient returns the client used for key-set downloads. With
// ssrfGuard enabled only public https endpoints on port 443 are reachable.
func NewKeySetHTTPClient(timeout time.Duration, ssrfGuard bool) *http.Client {
	if !ssrfGuard {
		return &http.Client{Timeout: timeout}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()
	return safeurl.Client(config).Client
}

// Get returns the public key for kid. A miss triggers at most one refresh.
func (c *KeySetCache) Get(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
}

// Refresh downloads the key set. Concurrent callers share one download.
func (c *KeySetCache) Refresh(ctx context.Context) error {
	if c.limiter != nil && !c.limiter.Allow() {
		c.observe(RefreshThrottled)
		c.logger.Warn("JWKS refresh throttled", zap.String("url", c.url))
		return nil
	}

	// The shared download must outlive any single caller's cancellation.
	result := c.group.DoChan(refreshKey, func() (any, error) {
		return nil, c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, ctx.Err())
	}
}

// FetchedAt returns when the key set was last replaced.
func (c *KeySetCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Len returns the number of cached keys.
func (c *KeySetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *KeySetCache) lookup(kid string) (crypto.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[kid]
	return key, ok
}

func (c *KeySetCache) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	keys, err := c.download(ctx)
	if err != nil {
		c.observe(RefreshFailed)
		c.logger.Warn("JWKS refresh failed", zap.String("url", c.url), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.observe(RefreshOK)
	c.logger.Debug("JWKS refreshed", zap.String("url", c.url), zap.Int("keys", len(keys)))
	return nil
}

func (c *KeySetCache) download(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrKeySetUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrKeySetUnavailable, resp.StatusCode)
	}

	// Keys are decoded one by one so that a single unsupported entry does not
	// invalidate the rest of the set.
	var document struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrKeySetUnavailable, err)
	}

	keys := make(map[string]crypto.PublicKey, len(document.Keys))
	for _, raw := range document.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			c.logger.Debug("skipping unsupported JWK", zap.Error(err))
			continue
		}
		if jwk.KeyID == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		public := jwk.Public()
		if public.Key == nil || !public.Valid() {
			continue
		}
		keys[jwk.KeyID] = public.Key
	}
	return keys, nil
}
