// Package profile resolves public account profiles from an external
// profile source. Resolution is read-only; results may be served from a
// short-lived local cache, but the cache is never authoritative.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Typed failures surfaced by this package. Callers distinguish them with
// errors.Is: a missing account is terminal, an unavailable source may be
// retried later.
var (
	// ErrNotFound means the source has no account with the given username.
	ErrNotFound = errors.New("profile not found")

	// ErrSourceUnavailable means the profile source is unreachable or not
	// configured at all.
	ErrSourceUnavailable = errors.New("profile source unavailable")
)

// Snapshot is a point-in-time view of an account's public profile.
// It is immutable once fetched.
type Snapshot struct {
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	ImageURL    string            `json:"image_url"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Source abstracts the external profile data provider.
type Source interface {
	Lookup(ctx context.Context, username string) (*Snapshot, error)
}

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Resolver fetches profiles through a Source, with a read-through TTL
// cache in front. A Resolver constructed without a Source reports every
// lookup as ErrSourceUnavailable, which is how a disabled or
// unconfigured profile integration is modelled.
type Resolver struct {
	source Source
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given source. A nil
// source is allowed and yields ErrSourceUnavailable on every call.
func NewResolver(source Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source: source,
		cache:  gocache.New(cacheTTL, cacheCleanup),
		logger: logger.With(slog.String("component", "profile")),
	}
}

// Resolve returns the profile snapshot for username. Transient transport
// failures and context expiry both surface as ErrSourceUnavailable; retry
// policy belongs to the caller.
func (r *Resolver) Resolve(ctx context.Context, username string) (*Snapshot, error) {
	if username == "" {
		return nil, fmt.Errorf("resolve: %w", ErrNotFound)
	}
	if r.source == nil {
		return nil, fmt.Errorf("resolve %q: %w", username, ErrSourceUnavailable)
	}

	if cached, ok := r.cache.Get(username); ok {
		snap := cached.(*Snapshot)
		r.logger.Debug("profile cache hit", "username", username)
		return snap, nil
	}

	snap, err := r.source.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("resolve %q: %w: %v", username, ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("resolve %q: %w", username, err)
	}

	r.cache.Set(username, snap, gocache.DefaultExpiration)
	return snap, nil
}
