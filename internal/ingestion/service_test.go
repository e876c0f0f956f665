package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivaldex/rivaldex/internal/competitor"
	"github.com/rivaldex/rivaldex/internal/imagestore"
	"github.com/rivaldex/rivaldex/internal/profile"
)

type fakeResolver struct {
	snap  *profile.Snapshot
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, username string) (*profile.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakeMaterializer struct {
	img   *imagestore.StoredImage
	err   error
	calls int
}

func (f *fakeMaterializer) Materialize(ctx context.Context, sourceURL string) (*imagestore.StoredImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

// fakeStore performs an atomic in-memory upsert keyed by (owner, target),
// preserving created_at across refreshes like the real table does.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[[2]string]*competitor.Record
	err     error
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[[2]string]*competitor.Record)}
}

func (f *fakeStore) Upsert(ctx context.Context, owner, target string, snap *profile.Snapshot, imageURL string) (*competitor.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.err != nil {
		return nil, f.err
	}

	key := [2]string{owner, target}
	now := time.Now()
	created := now
	if existing, ok := f.rows[key]; ok {
		created = existing.CreatedAt
	}
	rec := &competitor.Record{
		Owner:       owner,
		Username:    target,
		DisplayName: snap.DisplayName,
		ImageURL:    imageURL,
		Profile:     snap.Fields,
		CreatedAt:   created,
		RefreshedAt: now,
	}
	f.rows[key] = rec
	return rec, nil
}

func bobSnapshot() *profile.Snapshot {
	return &profile.Snapshot{
		Username:    "bob",
		DisplayName: "Bob Example",
		ImageURL:    "https://cdn.source.test/bob.jpg",
	}
}

func TestAddCompetitorSuccess(t *testing.T) {
	resolver := &fakeResolver{snap: bobSnapshot()}
	images := &fakeMaterializer{img: &imagestore.StoredImage{Key: "avatars/ab/cd", PublicURL: "https://img.test/avatars/ab/cd"}}
	store := newFakeStore()
	svc := NewService(resolver, images, store, nil)

	rec, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "bob", rec.Username)
	assert.Equal(t, "Bob Example", rec.DisplayName)
	assert.Equal(t, "https://img.test/avatars/ab/cd", rec.ImageURL)
	assert.Equal(t, 1, images.calls)
}

func TestAddCompetitorNotFound(t *testing.T) {
	resolver := &fakeResolver{err: profile.ErrNotFound}
	store := newFakeStore()
	svc := NewService(resolver, &fakeMaterializer{}, store, nil)

	_, err := svc.AddCompetitor(context.Background(), "alice", "ghost_user")
	require.ErrorIs(t, err, profile.ErrNotFound)
	assert.Zero(t, store.upserts, "no record may be written for a missing target")
}

func TestAddCompetitorSourceUnavailable(t *testing.T) {
	resolver := &fakeResolver{err: profile.ErrSourceUnavailable}
	store := newFakeStore()
	svc := NewService(resolver, &fakeMaterializer{}, store, nil)

	_, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, profile.ErrSourceUnavailable)
	assert.Zero(t, store.upserts, "no partial record may be written")
}

func TestAddCompetitorImageDegradesGracefully(t *testing.T) {
	resolver := &fakeResolver{snap: bobSnapshot()}
	images := &fakeMaterializer{err: imagestore.ErrSourceUnreachable}
	store := newFakeStore()
	svc := NewService(resolver, images, store, nil)

	rec, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.NoError(t, err, "image failure must not fail the ingestion")
	assert.Empty(t, rec.ImageURL)
	assert.Equal(t, 1, store.upserts)
}

func TestAddCompetitorSkipsImageWhenProfileHasNone(t *testing.T) {
	snap := bobSnapshot()
	snap.ImageURL = ""
	resolver := &fakeResolver{snap: snap}
	images := &fakeMaterializer{}
	svc := NewService(resolver, images, newFakeStore(), nil)

	rec, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, rec.ImageURL)
	assert.Zero(t, images.calls)
}

func TestAddCompetitorStoreFailureIsFatal(t *testing.T) {
	resolver := &fakeResolver{snap: bobSnapshot()}
	store := newFakeStore()
	store.err = competitor.ErrUnavailable
	svc := NewService(resolver, &fakeMaterializer{img: &imagestore.StoredImage{}}, store, nil)

	_, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, competitor.ErrUnavailable)
}

func TestAddCompetitorIdempotent(t *testing.T) {
	resolver := &fakeResolver{snap: bobSnapshot()}
	images := &fakeMaterializer{img: &imagestore.StoredImage{PublicURL: "https://img.test/x"}}
	store := newFakeStore()
	svc := NewService(resolver, images, store, nil)

	first, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.NoError(t, err)

	second, err := svc.AddCompetitor(context.Background(), "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created timestamp must survive re-ingestion")
	assert.Equal(t, first.Owner, second.Owner)
	assert.Equal(t, first.Username, second.Username)
	assert.Len(t, store.rows, 1)
}

func TestAddCompetitorConcurrentSamePair(t *testing.T) {
	resolver := &fakeResolver{snap: bobSnapshot()}
	images := &fakeMaterializer{img: &imagestore.StoredImage{PublicURL: "https://img.test/x"}}
	store := newFakeStore()
	svc := NewService(resolver, images, store, nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddCompetitor(context.Background(), "alice", "bob")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	assert.Len(t, store.rows, 1, "concurrent same-pair ingestion must leave exactly one row")
}
