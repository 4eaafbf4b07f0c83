package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}
}

func newTestResolver(serverURL string, offline bool) *Resolver {
	return NewResolver(Options{
		RegistryURL: serverURL,
		Offline:     offline,
		Retry:       fastRetry(),
	})
}

func TestResolver_ResolvesLatestTag(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		require.Equal(t, "/react/latest", r.URL.Path)
		fmt.Fprint(w, `{"version":"19.1.0"}`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^19.1.0", r.Resolve(context.Background(), "react"))

	// Second lookup is served from the memory cache.
	assert.Equal(t, "^19.1.0", r.Resolve(context.Background(), "react"))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))
}

func TestResolver_MaxMajorCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eslint", r.URL.Path)
		fmt.Fprint(w, `{"versions":{"9.39.0":{},"9.10.0":{},"10.0.0":{},"10.1.0-beta.1":{}}}`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^9.39.0", r.Resolve(context.Background(), "eslint"))
}

func TestResolver_OfflineModeSkipsNetwork(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, true)
	assert.Equal(t, "^19.0.0", r.Resolve(context.Background(), "react"))
	assert.Equal(t, "latest", r.Resolve(context.Background(), "left-pad-reborn"))
	assert.Equal(t, int64(0), atomic.LoadInt64(&requests), "offline mode must not touch the network")
}

func TestResolver_ServerErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^19.0.0", r.Resolve(context.Background(), "react"))
}

func TestResolver_MalformedPayloadFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^5.0.0", r.Resolve(context.Background(), "zustand"))
}

func TestResolver_InvalidVersionStringFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"not-a-release"}`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^19.0.0", r.Resolve(context.Background(), "react"))
}

func TestResolver_OfflineStateIsSticky(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		// Drop the connection so the client sees a transport failure.
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	r := NewResolver(Options{
		RegistryURL:     server.URL,
		OfflineCooldown: time.Hour,
		Retry:           &RetryPolicy{MaxRetries: 0, InitialDelay: time.Millisecond, BackoffMultiplier: 1, MaxDelay: time.Millisecond},
	})

	r.Resolve(context.Background(), "react")
	seen := atomic.LoadInt64(&requests)
	require.Greater(t, seen, int64(0))

	// Registry already known unreachable; further packages must not probe
	// again within the cooldown window.
	assert.Equal(t, "^5.0.0", r.Resolve(context.Background(), "zustand"))
	assert.Equal(t, seen, atomic.LoadInt64(&requests))
}

func TestResolver_PackageFailureDoesNotPoisonOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/no-such-pkg/latest":
			w.WriteHeader(http.StatusNotFound)
		case "/eslint":
			// Only versions above the major ceiling exist.
			fmt.Fprint(w, `{"versions":{"10.0.0":{},"10.1.0":{}}}`)
		default:
			fmt.Fprint(w, `{"version":"19.1.0"}`)
		}
	}))
	defer server.Close()

	r := NewResolver(Options{
		RegistryURL:     server.URL,
		OfflineCooldown: time.Hour,
		Retry:           &RetryPolicy{MaxRetries: 0, InitialDelay: time.Millisecond, BackoffMultiplier: 1, MaxDelay: time.Millisecond},
	})

	// A 404 and an unsatisfiable ceiling fall back for those packages only.
	assert.Equal(t, "latest", r.Resolve(context.Background(), "no-such-pkg"))
	assert.Equal(t, "^9.17.0", r.Resolve(context.Background(), "eslint"))

	// The registry answered, so later packages still resolve live.
	assert.Equal(t, "^19.1.0", r.Resolve(context.Background(), "react"))
}

func TestResolver_RetriesBeforeGivingUp(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"version":"19.1.0"}`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	assert.Equal(t, "^19.1.0", r.Resolve(context.Background(), "react"))
	assert.Equal(t, int64(3), atomic.LoadInt64(&requests))
}

func TestResolver_PrefetchWarmsCache(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		fmt.Fprint(w, `{"version":"19.1.0"}`)
	}))
	defer server.Close()

	r := newTestResolver(server.URL, false)
	r.Prefetch(context.Background(), []string{"react", "react-dom"})
	r.AwaitPrefetch(context.Background())

	before := atomic.LoadInt64(&requests)
	r.Resolve(context.Background(), "react")
	r.Resolve(context.Background(), "react-dom")
	assert.Equal(t, before, atomic.LoadInt64(&requests), "prefetched packages resolve from cache")
}

func TestRetryPolicy_DelayIsCappedExponential(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:        5,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          500 * time.Millisecond,
	}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 500*time.Millisecond, p.Delay(3), "delay is capped at MaxDelay")
}

func TestLooksLikeVersion(t *testing.T) {
	assert.True(t, looksLikeVersion("latest"))
	assert.True(t, looksLikeVersion("1.2.3"))
	assert.True(t, looksLikeVersion("^19.0.0"))
	assert.True(t, looksLikeVersion("~5.7.2"))
	assert.False(t, looksLikeVersion(""))
	assert.False(t, looksLikeVersion("banana"))
	assert.False(t, looksLikeVersion("^1.0.0-beta.1"))
}

func TestFallbackVersion(t *testing.T) {
	assert.Equal(t, "^19.0.0", FallbackVersion("react"))
	assert.Equal(t, "latest", FallbackVersion("never-heard-of-it"))
}
