package geocode

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
)

// DefaultPause is the delay inserted after each successfully enriched segment.
const DefaultPause = 100 * time.Millisecond

// Resolver turns an address into coordinates. ok is false when the address
// could not be resolved for any reason.
type Resolver interface {
	Resolve(ctx context.Context, address string) (coords models.Coordinates, ok bool)
}

// Stats summarises one enrichment pass.
type Stats struct {
	Segments int
	Resolved int
	Failed   int
	Skipped  bool
}

// Enricher adds coordinates to every street segment it can resolve, one
// segment at a time in document order.
type Enricher struct {
	resolver Resolver
	pause    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewEnricher returns an Enricher. A nil resolver yields an Enricher that
// leaves documents untouched. A nil clock means real time.
func NewEnricher(resolver Resolver, pause time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Enricher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Enricher{
		resolver: resolver,
		pause:    pause,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Enrich mutates doc in place, adding coordinates only. A segment gets both
// coordinate pairs or neither. Resolution failures are counted, never
// returned; the only error is cancellation of ctx.
func (e *Enricher) Enrich(ctx context.Context, doc *models.ExtractionDocument) (Stats, error) {
	stats := Stats{}
	if doc != nil {
		stats.Segments = doc.SegmentCount()
	}
	if e == nil || e.resolver == nil || doc == nil {
		stats.Skipped = true
		return stats, nil
	}

	for i := range doc.Events {
		for j := range doc.Events[i].Closures {
			streets := doc.Events[i].Closures[j].Streets
			for k := range streets {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
				if !e.enrichSegment(ctx, &streets[k]) {
					stats.Failed++
					e.count("failed")
					continue
				}
				stats.Resolved++
				e.count("resolved")
				if err := e.wait(ctx); err != nil {
					return stats, err
				}
			}
		}
	}

	e.logger.Info("Geocoding enrichment finished",
		"segments", stats.Segments,
		"resolved", stats.Resolved,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (e *Enricher) enrichSegment(ctx context.Context, seg *models.StreetSegment) bool {
	start, ok := e.resolver.Resolve(ctx, seg.StartLocation)
	if !ok {
		e.logger.Warn("Skipping segment, start location unresolved",
			"start_location", seg.StartLocation,
			"end_location", seg.EndLocation,
		)
		return false
	}
	end, ok := e.resolver.Resolve(ctx, seg.EndLocation)
	if !ok {
		e.logger.Warn("Skipping segment, end location unresolved",
			"start_location", seg.StartLocation,
			"end_location", seg.EndLocation,
		)
		return false
	}
	seg.SetCoordinates(start, end)
	return true
}

func (e *Enricher) wait(ctx context.Context) error {
	if e.pause <= 0 {
		return nil
	}
	t := e.clock.NewTimer(e.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

func (e *Enricher) count(outcome string) {
	if e.metrics != nil {
		e.metrics.Segments.WithLabelValues(outcome).Inc()
	}
}
