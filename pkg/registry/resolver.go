package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
)

const (
	defaultRegistryURL = "https://registry.npmjs.org"

	// DefaultRequestTimeout bounds every registry request so a slow
	// registry cannot stall a run.
	DefaultRequestTimeout = 3 * time.Second

	// DefaultOfflineCooldown is how long a failed connectivity state is
	// trusted before the registry is probed again.
	DefaultOfflineCooldown = 30 * time.Second

	DefaultMemoryCacheTTL = 15 * time.Minute
	DefaultDiskCacheTTL   = 24 * time.Hour
)

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	RegistryURL     string
	Offline         bool
	RequestTimeout  time.Duration
	OfflineCooldown time.Duration
	MemoryCacheTTL  time.Duration
	Retry           *RetryPolicy
	DiskCache       *DiskCache
	Logger          *zerolog.Logger
}

// Resolver resolves installable version ranges for npm packages. Its public
// contract is that Resolve always returns a usable range: every failure mode
// (timeout, malformed payload, non-2xx, offline) degrades to the pinned
// fallback for known packages or "latest" for unknown ones.
type Resolver struct {
	client   *http.Client
	baseURL  string
	timeout  time.Duration
	cooldown time.Duration
	offline  bool
	retry    RetryPolicy
	mem      *memoryCache
	disk     *DiskCache
	log      zerolog.Logger

	mu        sync.Mutex
	netDown   bool
	lastProbe time.Time

	prefetchMu   sync.Mutex
	prefetchDone chan struct{}
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts Options) *Resolver {
	if opts.RegistryURL == "" {
		opts.RegistryURL = defaultRegistryURL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.OfflineCooldown <= 0 {
		opts.OfflineCooldown = DefaultOfflineCooldown
	}
	if opts.MemoryCacheTTL <= 0 {
		opts.MemoryCacheTTL = DefaultMemoryCacheTTL
	}
	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Resolver{
		client:   &http.Client{Timeout: opts.RequestTimeout},
		baseURL:  strings.TrimRight(opts.RegistryURL, "/"),
		timeout:  opts.RequestTimeout,
		cooldown: opts.OfflineCooldown,
		offline:  opts.Offline,
		retry:    retry,
		mem:      newMemoryCache(opts.MemoryCacheTTL),
		disk:     opts.DiskCache,
		log:      log,
	}
}

// Resolve returns the installable version range for name. It never fails:
// any resolution error is converted to the fallback at this boundary.
func (r *Resolver) Resolve(ctx context.Context, name string) string {
	if v, ok := r.mem.Get(name); ok {
		return v
	}
	if r.disk != nil {
		if v, ok := r.disk.Get(name); ok {
			r.mem.Set(name, v)
			return v
		}
	}

	version, err := r.resolve(ctx, name)
	if err != nil {
		version = FallbackVersion(name)
		r.log.Debug().Err(err).Str("package", name).Str("fallback", version).
			Msg("Version resolution failed, using fallback")
	}

	r.mem.Set(name, version)
	if r.disk != nil && err == nil {
		r.disk.Set(name, version)
	}
	return version
}

// errUnreachable marks transport-level failures. Only these flip the sticky
// offline state: a non-2xx or a bad payload means the registry answered, so
// the failure stays scoped to the one package.
var errUnreachable = errors.New("registry unreachable")

// resolve performs the live lookup. Errors stay internal to the Resolver.
func (r *Resolver) resolve(ctx context.Context, name string) (string, error) {
	if !r.networkAllowed() {
		return "", fmt.Errorf("registry offline")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var version string
	var err error
	if ceiling, ok := MaxMajor(name); ok {
		version, err = r.fetchHighestBelowCeiling(ctx, name, ceiling)
	} else {
		version, err = r.fetchLatest(ctx, name)
	}
	if err != nil {
		if errors.Is(err, errUnreachable) {
			r.markOffline()
		}
		return "", err
	}
	if !looksLikeVersion(version) {
		return "", fmt.Errorf("registry returned invalid version %q for %s", version, name)
	}
	return version, nil
}

// fetchLatest resolves the registry's "latest" dist-tag.
func (r *Resolver) fetchLatest(ctx context.Context, name string) (string, error) {
	var payload struct {
		Version string `json:"version"`
	}
	if err := r.getJSON(ctx, r.packageURL(name)+"/latest", &payload); err != nil {
		return "", err
	}
	if payload.Version == "" {
		return "", fmt.Errorf("registry returned no version for %s", name)
	}
	return "^" + payload.Version, nil
}

// fetchHighestBelowCeiling fetches the full version list and picks the
// highest release whose major does not exceed the ceiling. Prereleases are
// skipped. An empty result falls back like any other failure.
func (r *Resolver) fetchHighestBelowCeiling(ctx context.Context, name string, ceiling uint64) (string, error) {
	var payload struct {
		Versions map[string]json.RawMessage `json:"versions"`
	}
	if err := r.getJSON(ctx, r.packageURL(name), &payload); err != nil {
		return "", err
	}

	var candidates []*semver.Version
	for raw := range payload.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if v.Major() <= ceiling {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no version of %s satisfies major <= %d", name, ceiling)
	}
	sort.Sort(semver.Collection(candidates))
	return "^" + candidates[len(candidates)-1].String(), nil
}

func (r *Resolver) packageURL(name string) string {
	return r.baseURL + "/" + url.PathEscape(name)
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	return r.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "spark-scaffolder")

		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: fetching %s: %v", errUnreachable, rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("registry returned status %d for %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing registry response: %w", err)
		}
		return nil
	})
}

// networkAllowed reports whether a registry request may be attempted.
// Offline mode is absolute; a detected outage is sticky until the cooldown
// elapses so an unreachable registry is not hammered once per package.
func (r *Resolver) networkAllowed() bool {
	if r.offline {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.netDown {
		return true
	}
	if time.Since(r.lastProbe) < r.cooldown {
		return false
	}
	r.netDown = false
	return true
}

func (r *Resolver) markOffline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.netDown = true
	r.lastProbe = time.Now()
}

// Prefetch starts background resolution for the given packages so the cache
// is warm before the run needs them. It returns immediately.
func (r *Resolver) Prefetch(ctx context.Context, names []string) {
	r.prefetchMu.Lock()
	defer r.prefetchMu.Unlock()
	if r.prefetchDone != nil {
		return
	}
	done := make(chan struct{})
	r.prefetchDone = done
	go func() {
		defer close(done)
		for _, name := range names {
			if ctx.Err() != nil {
				return
			}
			r.Resolve(ctx, name)
		}
	}()
}

// AwaitPrefetch blocks until a previously started prefetch finishes or the
// context is cancelled. It returns immediately if Prefetch was never called.
func (r *Resolver) AwaitPrefetch(ctx context.Context) {
	r.prefetchMu.Lock()
	done := r.prefetchDone
	r.prefetchMu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Flush persists the disk cache, if one is attached.
func (r *Resolver) Flush() error {
	if r.disk == nil {
		return nil
	}
	return r.disk.Flush()
}

// looksLikeVersion reports whether s is a plausible version range: a release
// tag with an optional ^ or ~ prefix, or the wildcard "latest".
func looksLikeVersion(s string) bool {
	if s == "latest" {
		return true
	}
	trimmed := strings.TrimLeft(s, "^~")
	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return false
	}
	return v.Prerelease() == ""
}
