package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
)

// Location is a coarse position of a client address. Fields are nil when
// unknown.
type Location struct {
	CountryCode *string `json:"countryCode"`
	City        *string `json:"city"`
	Region      *string `json:"region"`
}

// GeoResolver looks an address up in some external service. A nil Location
// with a nil error means the service has no match for ip.
type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// NoopResolver never finds anything. Used when geolocation is disabled.
type NoopResolver struct{}

func (NoopResolver) Lookup(context.Context, string) (*Location, error) {
	return nil, nil
}

const DefaultIPAPIEndpoint = "https://ipapi.co"

// IPAPI resolves addresses with the ipapi.co JSON API.
type IPAPI struct {
	Endpoint string
	Client   *http.Client
}

func NewIPAPI(endpoint string, timeout time.Duration) *IPAPI {
	if endpoint == "" {
		endpoint = DefaultIPAPIEndpoint
	}

	return &IPAPI{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
	}
}

type ipapiResponse struct {
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	Region      string `json:"region"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
	Reserved    bool   `json:"reserved"`
}

func (a *IPAPI) Lookup(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Endpoint+"/"+url.PathEscape(ip)+"/json/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geolocation request, %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query geolocation service, %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("geolocation service returned status %d", resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response, %w", err)
	}

	if body.Error {
		if body.Reserved {
			return nil, nil
		}
		return nil, fmt.Errorf("geolocation service error: %s", body.Reason)
	}

	if body.CountryCode == "" && body.City == "" && body.Region == "" {
		return nil, nil
	}

	return &Location{
		CountryCode: nonEmpty(body.CountryCode),
		City:        nonEmpty(body.City),
		Region:      nonEmpty(body.Region),
	}, nil
}

// cachedLookup wraps the result so misses can be cached too.
type cachedLookup struct {
	loc *Location
}

// CachedResolver remembers answers of another resolver for a while so repeat
// opens from one address don't spend API quota. Failed lookups aren't cached.
type CachedResolver struct {
	next  GeoResolver
	cache *ttlcache.Cache
}

func NewCachedResolver(next GeoResolver, ttl time.Duration, size int) *CachedResolver {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	cache.SkipTTLExtensionOnHit(true)

	if size > 0 {
		cache.SetCacheSizeLimit(size)
	}

	return &CachedResolver{
		next:  next,
		cache: cache,
	}
}

func (c *CachedResolver) Lookup(ctx context.Context, ip string) (*Location, error) {
	v, err := c.cache.Get(ip)
	if err == nil {
		if hit, ok := v.(cachedLookup); ok {
			return hit.loc, nil
		}
	} else if !errors.Is(err, ttlcache.ErrNotFound) {
		zap.L().Debug("Geolocation cache read failed", zap.Error(err))
	}

	loc, err := c.next.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ip, cachedLookup{loc: loc}); err != nil {
		zap.L().Debug("Geolocation cache write failed", zap.Error(err))
	}

	return loc, nil
}

// Close stops the cache's expiry goroutine.
func (c *CachedResolver) Close() error {
	return c.cache.Close()
}
