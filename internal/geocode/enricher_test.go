package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
)

type fakeResolver struct {
	mu    sync.Mutex
	known map[string]models.Coordinates
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, address string) (models.Coordinates, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	c, ok := f.known[address]
	return c, ok
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func segment(start, end string) models.StreetSegment {
	return models.StreetSegment{StartLocation: start, EndLocation: end}
}

func docWith(segments ...models.StreetSegment) *models.ExtractionDocument {
	return &models.ExtractionDocument{Events: []models.ClosureEvent{{
		EventName: "2025 NYC Pride March",
		EventDate: "2025-06-29",
		Closures:  []models.Closure{{Type: models.ClosureRoute, Streets: segments}},
	}}}
}

var (
	a = models.Coordinates{Lat: 40.7484, Lng: -73.9857}
	b = models.Coordinates{Lat: 40.7433, Lng: -73.9882}
	c = models.Coordinates{Lat: 40.7317, Lng: -73.9965}
)

func TestEnrich_AllResolved(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"A": a, "B": b, "C": c}}
	m := observability.NewMetricsForTesting()
	e := NewEnricher(res, 0, nil, discardLogger(), m)

	doc := docWith(segment("A", "B"), segment("B", "C"))
	stats, err := e.Enrich(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, Stats{Segments: 2, Resolved: 2}, stats)
	assert.Equal(t, []string{"A", "B", "B", "C"}, res.calls)

	want := docWith(segment("A", "B"), segment("B", "C"))
	want.Events[0].Closures[0].Streets[0].SetCoordinates(a, b)
	want.Events[0].Closures[0].Streets[1].SetCoordinates(b, c)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("Enrich() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Segments.WithLabelValues("resolved")))
}

func TestEnrich_StartFailureSkipsWholeSegment(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"B": b}}
	e := NewEnricher(res, 0, nil, discardLogger(), nil)

	doc := docWith(segment("Unknown", "B"))
	stats, err := e.Enrich(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, Stats{Segments: 1, Failed: 1}, stats)
	assert.Equal(t, []string{"Unknown"}, res.calls, "end location must not be attempted")
	seg := doc.Events[0].Closures[0].Streets[0]
	assert.False(t, seg.Geocoded())
	assert.Nil(t, seg.StartLat)
	assert.Nil(t, seg.EndLat)
}

func TestEnrich_EndFailureLeavesNoPartialCoordinates(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"A": a, "C": c}}
	m := observability.NewMetricsForTesting()
	e := NewEnricher(res, 0, nil, discardLogger(), m)

	doc := docWith(segment("A", "Unknown"), segment("A", "C"))
	stats, err := e.Enrich(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, Stats{Segments: 2, Resolved: 1, Failed: 1}, stats)
	streets := doc.Events[0].Closures[0].Streets
	assert.Nil(t, streets[0].StartLat)
	assert.Nil(t, streets[0].StartLng)
	assert.True(t, streets[1].Geocoded())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Segments.WithLabelValues("failed")))
}

func TestEnrich_NilResolverIsNoOp(t *testing.T) {
	e := NewEnricher(nil, DefaultPause, nil, discardLogger(), nil)

	doc := docWith(segment("A", "B"))
	stats, err := e.Enrich(context.Background(), doc)
	require.NoError(t, err)

	assert.True(t, stats.Skipped)
	assert.Equal(t, 1, stats.Segments)
	if diff := cmp.Diff(docWith(segment("A", "B")), doc); diff != "" {
		t.Errorf("document changed (-want +got):\n%s", diff)
	}
}

func TestEnrich_OnlyCoordinatesChange(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"A": a, "B": b}}
	e := NewEnricher(res, 0, nil, discardLogger(), nil)

	doc := docWith(segment("A", "B"))
	_, err := e.Enrich(context.Background(), doc)
	require.NoError(t, err)

	ignoreCoords := cmp.FilterPath(func(p cmp.Path) bool {
		switch p.Last().String() {
		case ".StartLat", ".StartLng", ".EndLat", ".EndLng":
			return true
		}
		return false
	}, cmp.Ignore())
	if diff := cmp.Diff(docWith(segment("A", "B")), doc, ignoreCoords); diff != "" {
		t.Errorf("non-coordinate fields changed (-want +got):\n%s", diff)
	}
}

func TestEnrich_PausesAfterEachSuccessfulSegment(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"A": a, "B": b, "C": c}}
	clock := clockwork.NewFakeClock()
	e := NewEnricher(res, DefaultPause, clock, discardLogger(), nil)

	doc := docWith(segment("A", "B"), segment("Unknown", "C"), segment("B", "C"))
	type result struct {
		stats Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := e.Enrich(context.Background(), doc)
		done <- result{stats, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// First segment resolved; the enricher now waits before touching the next one.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, res.callCount())
	clock.Advance(DefaultPause)

	// The failed segment does not pause, so the next wait follows the third segment.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 5, res.callCount())
	clock.Advance(DefaultPause)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, Stats{Segments: 3, Resolved: 2, Failed: 1}, r.stats)
	case <-ctx.Done():
		t.Fatal("enrichment did not finish")
	}
}

func TestEnrich_CancelledDuringPause(t *testing.T) {
	res := &fakeResolver{known: map[string]models.Coordinates{"A": a, "B": b}}
	clock := clockwork.NewFakeClock()
	e := NewEnricher(res, DefaultPause, clock, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Enrich(ctx, docWith(segment("A", "B"), segment("A", "B")))
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-waitCtx.Done():
		t.Fatal("enrichment ignored cancellation")
	}
	assert.Equal(t, 2, res.callCount())
}
