package classify

import (
	"context"
	"net"

	"go.uber.org/zap"
)

// Addresses that can't be geolocated resolve to this placeholder so local
// testing doesn't burn lookup quota or show up as a real country.
var localLocation = Location{
	CountryCode: strPtr("US"),
	City:        strPtr("Local"),
	Region:      strPtr("Development"),
}

func strPtr(s string) *string { return &s }

// Locator turns a client address into a Location on a best effort basis.
type Locator struct {
	Resolver GeoResolver
}

func NewLocator(r GeoResolver) *Locator {
	if r == nil {
		r = NoopResolver{}
	}

	return &Locator{Resolver: r}
}

// Resolve never fails. Any resolver error or missing match yields a Location
// with every field nil, so a partial answer is never recorded.
func (l *Locator) Resolve(ctx context.Context, ip string) Location {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Location{}
	}

	if addr.IsLoopback() || addr.IsPrivate() {
		return localLocation
	}

	loc, err := l.Resolver.Lookup(ctx, addr.String())
	if err != nil {
		zap.L().Warn("Failed to resolve client location", zap.Error(err))
		return Location{}
	}

	if loc == nil {
		return Location{}
	}

	return *loc
}
