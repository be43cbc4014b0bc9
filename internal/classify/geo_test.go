package classify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPAPILookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/8.8.8.8/json/":
			w.Write([]byte(`{"ip":"8.8.8.8","city":"Mountain View","region":"California","country_code":"US"}`))
		case "/41.0.0.1/json/":
			w.Write([]byte(`{"ip":"41.0.0.1","city":null,"region":"","country_code":"ZA"}`))
		case "/0.0.0.1/json/":
			w.Write([]byte(`{"ip":"0.0.0.1","error":true,"reason":"Reserved IP Address","reserved":true}`))
		case "/1.1.1.1/json/":
			w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	api := NewIPAPI(srv.URL+"/", time.Second)

	got, err := api.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "US", *got.CountryCode)
	assert.Equal(t, "Mountain View", *got.City)
	assert.Equal(t, "California", *got.Region)

	// A partial answer is kept as the resolver gave it
	got, err = api.Lookup(context.Background(), "41.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ZA", *got.CountryCode)
	assert.Nil(t, got.City)
	assert.Nil(t, got.Region)

	got, err = api.Lookup(context.Background(), "0.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = api.Lookup(context.Background(), "1.1.1.1")
	assert.Error(t, err)

	_, err = api.Lookup(context.Background(), "9.9.9.9")
	assert.Error(t, err)
}

func TestIPAPITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewIPAPI(srv.URL, 20*time.Millisecond).Lookup(context.Background(), "8.8.8.8")
	assert.Error(t, err)
}

func TestCachedResolver(t *testing.T) {
	stub := &stubResolver{results: map[string]*Location{"8.8.8.8": loc("US", "Mountain View", "CA")}}
	c := NewCachedResolver(stub, time.Minute, 100)
	defer c.Close()

	for i := 0; i < 3; i++ {
		got, err := c.Lookup(context.Background(), "8.8.8.8")
		require.NoError(t, err)
		assert.Equal(t, "US", *got.CountryCode)
	}
	assert.Equal(t, int32(1), stub.calls.Load())

	// Misses are remembered as well
	for i := 0; i < 2; i++ {
		got, err := c.Lookup(context.Background(), "4.4.4.4")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCachedResolverDoesNotCacheErrors(t *testing.T) {
	stub := &stubResolver{err: errors.New("down")}
	c := NewCachedResolver(stub, time.Minute, 0)
	defer c.Close()

	_, err := c.Lookup(context.Background(), "8.8.8.8")
	assert.Error(t, err)
	_, err = c.Lookup(context.Background(), "8.8.8.8")
	assert.Error(t, err)

	assert.Equal(t, int32(2), stub.calls.Load())
}
