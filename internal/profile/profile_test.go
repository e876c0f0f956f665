package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scripted Source for resolver tests.
type fakeSource struct {
	snap    *Snapshot
	err     error
	lookups int
}

func (f *fakeSource) Lookup(ctx context.Context, username string) (*Snapshot, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func TestResolverWithoutSource(t *testing.T) {
	r := NewResolver(nil, nil)

	_, err := r.Resolve(context.Background(), "bob")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestResolverEmptyUsername(t *testing.T) {
	r := NewResolver(&fakeSource{}, nil)

	_, err := r.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolverCachesLookups(t *testing.T) {
	src := &fakeSource{snap: &Snapshot{Username: "bob", DisplayName: "Bob"}}
	r := NewResolver(src, nil)

	first, err := r.Resolve(context.Background(), "bob")
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), "bob")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.lookups, "second resolve should hit the cache")
}

func TestResolverPassesThroughTypedErrors(t *testing.T) {
	src := &fakeSource{err: ErrNotFound}
	r := NewResolver(src, nil)

	_, err := r.Resolve(context.Background(), "ghost_user")
	require.ErrorIs(t, err, ErrNotFound)

	// Failed lookups must not be cached.
	_, err = r.Resolve(context.Background(), "ghost_user")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, src.lookups)
}

func TestResolverMapsContextExpiry(t *testing.T) {
	src := &fakeSource{err: context.DeadlineExceeded}
	r := NewResolver(src, nil)

	_, err := r.Resolve(context.Background(), "bob")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
