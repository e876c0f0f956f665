// Package ingestion orchestrates the competitor-ingestion pipeline:
// profile resolution, image materialization, and record upsert.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rivaldex/rivaldex/internal/competitor"
	"github.com/rivaldex/rivaldex/internal/imagestore"
	"github.com/rivaldex/rivaldex/internal/metrics"
	"github.com/rivaldex/rivaldex/internal/profile"
)

// Resolver abstracts profile resolution so the pipeline can be tested
// with substitutable fakes.
type Resolver interface {
	Resolve(ctx context.Context, username string) (*profile.Snapshot, error)
}

// Materializer abstracts image materialization.
type Materializer interface {
	Materialize(ctx context.Context, sourceURL string) (*imagestore.StoredImage, error)
}

// Store abstracts competitor persistence.
type Store interface {
	Upsert(ctx context.Context, owner, target string, snap *profile.Snapshot, imageURL string) (*competitor.Record, error)
}

// Service runs the ingestion pipeline. Each call is a stateless,
// independently retriable transaction across the three dependencies;
// there is no cross-call session state.
type Service struct {
	resolver Resolver
	images   Materializer
	store    Store
	logger   *slog.Logger
}

// NewService creates a new ingestion Service.
func NewService(resolver Resolver, images Materializer, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		images:   images,
		store:    store,
		logger:   logger.With(slog.String("component", "ingestion")),
	}
}

// AddCompetitor ensures target is recorded as a tracked competitor of
// owner, resolving the target's profile and caching its image.
//
// Failure containment: resolution failures abort the call with their
// typed error; image failures degrade gracefully to an empty image URL;
// store failures are always fatal. Whether owner may equal target is a
// caller policy and is not checked here.
func (s *Service) AddCompetitor(ctx context.Context, owner, target string) (*competitor.Record, error) {
	start := time.Now()
	log := s.logger.With(
		slog.String("request_id", uuid.New().String()),
		slog.String("owner", owner),
		slog.String("target", target),
	)

	snap, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Warn("profile resolution failed", "error", err)
		return nil, err
	}

	imageURL := s.materializeImage(ctx, log, snap.ImageURL)

	rec, err := s.store.Upsert(ctx, owner, target, snap, imageURL)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(metrics.OutcomeInternalError).Inc()
		log.Error("competitor upsert failed", "error", err)
		return nil, fmt.Errorf("persist competitor: %w", err)
	}

	metrics.IngestionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	log.Info("competitor ingested",
		"image_cached", imageURL != "",
		"duration_ms", time.Since(start).Milliseconds())
	return rec, nil
}

// materializeImage caches the profile image and returns its public URL.
// Image caching is an enhancement, not the deliverable: any failure is
// logged and absorbed, and the record proceeds with an empty URL.
func (s *Service) materializeImage(ctx context.Context, log *slog.Logger, sourceURL string) string {
	if sourceURL == "" || s.images == nil {
		metrics.ImagesTotal.WithLabelValues(metrics.ImageSkipped).Inc()
		return ""
	}

	img, err := s.images.Materialize(ctx, sourceURL)
	if err != nil {
		metrics.ImagesTotal.WithLabelValues(metrics.ImageDegraded).Inc()
		log.Warn("image materialization failed, continuing without image", "error", err)
		return ""
	}

	metrics.ImagesTotal.WithLabelValues(metrics.ImageStored).Inc()
	return img.PublicURL
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, profile.ErrSourceUnavailable):
		return metrics.OutcomeSourceUnavailable
	default:
		return metrics.OutcomeInternalError
	}
}
