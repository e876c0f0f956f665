package imagestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Typed failures surfaced by Materialize. Both are recoverable at the
// pipeline level: a competitor record without a cached image is still
// useful.
var (
	// ErrSourceUnreachable means the source image could not be downloaded
	// within the retry budget.
	ErrSourceUnreachable = errors.New("source image unreachable")

	// ErrStorageWrite means the image was downloaded but could not be
	// persisted to object storage.
	ErrStorageWrite = errors.New("image storage write failed")
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 250 * time.Millisecond
	maxImageBytes      = 10 << 20
)

// StoredImage is a durably cached copy of a source image.
type StoredImage struct {
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
}

// Materializer downloads source images and places them in a BlobStore
// under a content-addressed key, at most once per source reference.
// Safe for concurrent use.
type Materializer struct {
	store       BlobStore
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	group       singleflight.Group
	logger      *slog.Logger
}

// NewMaterializer creates a Materializer over the given store.
func NewMaterializer(store BlobStore, client *http.Client, logger *slog.Logger) *Materializer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		store:       store,
		client:      client,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		logger:      logger.With(slog.String("component", "imagestore")),
	}
}

// ContentKey derives the stable storage key for a source image reference.
// Identical references always map to the same object.
func ContentKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	hash := hex.EncodeToString(sum[:])
	return "avatars/" + hash[:2] + "/" + hash
}

// Materialize ensures a durable copy of the image at sourceURL exists and
// returns its storage location. Concurrent calls for the same reference
// are collapsed into a single download and a single conditional upload.
func (m *Materializer) Materialize(ctx context.Context, sourceURL string) (*StoredImage, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: empty source reference", ErrSourceUnreachable)
	}

	key := ContentKey(sourceURL)
	result, err, _ := m.group.Do(key, func() (any, error) {
		return m.materialize(ctx, key, sourceURL)
	})
	if err != nil {
		return nil, err
	}
	return result.(*StoredImage), nil
}

func (m *Materializer) materialize(ctx context.Context, key, sourceURL string) (*StoredImage, error) {
	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if exists {
		m.logger.Debug("image already materialized", "key", key)
		return &StoredImage{Key: key, PublicURL: m.store.PublicURL(key)}, nil
	}

	data, contentType, err := m.download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if err := m.store.PutIfAbsent(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	m.logger.Info("image materialized", "key", key, "bytes", len(data), "content_type", contentType)
	return &StoredImage{Key: key, PublicURL: m.store.PublicURL(key)}, nil
}

// download fetches the image with bounded retries. Only transient
// failures (transport errors and 5xx responses) are retried; a 4xx means
// the source is gone and retrying cannot help.
func (m *Materializer) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		if attempt > 0 {
			wait := m.backoffBase * (1 << (attempt - 1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, "", fmt.Errorf("%w: %v", ErrSourceUnreachable, ctx.Err())
			}
		}

		data, contentType, retryable, err := m.attempt(ctx, sourceURL)
		if err == nil {
			return data, contentType, nil
		}
		if !retryable {
			return nil, "", err
		}
		lastErr = err
		m.logger.Warn("image download failed", "url", sourceURL, "attempt", attempt+1, "error", err)
	}
	return nil, "", fmt.Errorf("%w: retries exhausted: %v", ErrSourceUnreachable, lastErr)
}

func (m *Materializer) attempt(ctx context.Context, sourceURL string) (data []byte, contentType string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, http.NoBody)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, "", false, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
		}
		return nil, "", true, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, "", true, fmt.Errorf("%w: source returned %d", ErrSourceUnreachable, resp.StatusCode)
	default:
		return nil, "", false, fmt.Errorf("%w: source returned %d", ErrSourceUnreachable, resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", true, fmt.Errorf("%w: read body: %v", ErrSourceUnreachable, err)
	}
	if len(data) == 0 {
		return nil, "", false, fmt.Errorf("%w: empty payload", ErrSourceUnreachable)
	}
	if len(data) > maxImageBytes {
		return nil, "", false, fmt.Errorf("%w: payload exceeds %d bytes", ErrSourceUnreachable, maxImageBytes)
	}

	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", false, fmt.Errorf("%w: payload is %s, not an image", ErrSourceUnreachable, contentType)
	}
	return data, contentType, false, nil
}
