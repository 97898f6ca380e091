package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/extraction"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/geocode"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/section"
)

// Stage names used in errors, logs and metric labels.
const (
	StageFetch   = "fetch"
	StageSection = "section"
	StageExtract = "extract"
	StageParse   = "parse"
	StageEnrich  = "enrich"
	StageEncode  = "encode"
	StagePersist = "persist"
)

// PageFetcher downloads the advisory page.
type PageFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Extractor turns section text into the raw JSON extraction payload.
type Extractor interface {
	Extract(ctx context.Context, sectionText string) (string, error)
}

// Enricher adds coordinates to a parsed document in place.
type Enricher interface {
	Enrich(ctx context.Context, doc *models.ExtractionDocument) (geocode.Stats, error)
}

// Store writes one object, replacing any existing object under key.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
}

// RunRecorder keeps a ledger of run progress. Recorder failures are logged
// and never fail a run.
type RunRecorder interface {
	Start(ctx context.Context, rec models.RunRecord) error
	Transition(ctx context.Context, runID, status string, fields map[string]any) error
}

// Notification is handed to a Notifier after a successful persist.
type Notification struct {
	RunID      string `json:"runId"`
	Region     string `json:"region"`
	ObjectName string `json:"objectName"`
	EventCount int    `json:"eventCount"`
}

// Notifier starts downstream processing of a persisted document and returns
// an identifier for what it started.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (string, error)
}

// RunError reports the stage at which a run stopped.
type RunError struct {
	Stage string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Deps are the collaborators of a Pipeline. Extractor, Store, RunRecorder
// and Notifier may be nil; Enricher may be nil to skip enrichment.
type Deps struct {
	Fetcher   PageFetcher
	Extractor Extractor
	Enricher  Enricher
	Store     Store
	Recorder  RunRecorder
	Notifier  Notifier
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Pipeline runs fetch, section isolation, extraction, enrichment and
// persistence for one region, strictly in that order.
type Pipeline struct {
	region    string
	fetcher   PageFetcher
	extractor Extractor
	enricher  Enricher
	store     Store
	recorder  RunRecorder
	notifier  Notifier
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline for the region whose anchor id is region.
func New(region string, d Deps) *Pipeline {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Pipeline{
		region:    region,
		fetcher:   d.Fetcher,
		extractor: d.Extractor,
		enricher:  d.Enricher,
		store:     d.Store,
		recorder:  d.Recorder,
		notifier:  d.Notifier,
		clock:     d.Clock,
		logger:    d.Logger,
		metrics:   d.Metrics,
	}
}

// Result describes a completed run.
type Result struct {
	RunID             string
	Status            string
	ObjectName        string
	Document          *models.ExtractionDocument
	Body              []byte
	Enrichment        geocode.Stats
	WorkflowExecution string
}

// Response converts the result into the HTTP payload.
func (r *Result) Response() models.RunResponse {
	enrichment := "enriched"
	if r.Enrichment.Skipped {
		enrichment = "skipped"
	}
	events := 0
	if r.Document != nil {
		events = len(r.Document.Events)
	}
	return models.RunResponse{
		Status:           "success",
		RunID:            r.RunID,
		ObjectName:       r.ObjectName,
		EventCount:       events,
		Enrichment:       enrichment,
		ResolvedSegments: r.Enrichment.Resolved,
		FailedSegments:   r.Enrichment.Failed,
	}
}

// ObjectKey returns the storage key for a run on the given day.
func ObjectKey(region string, now time.Time) string {
	return fmt.Sprintf("%s/%s.json", region, now.UTC().Format(time.DateOnly))
}

// Run executes one pipeline run. Every stage failure except per-segment
// geocoding is terminal and returned as a *RunError. Nothing is written to
// the store unless a valid document exists. With req.DryRun the document is
// built and returned but not persisted.
func (p *Pipeline) Run(ctx context.Context, req models.RunRequest) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logCtx := p.logger.With("runId", res.RunID, "region", p.region, "trigger", req.Trigger)
	logCtx.Info("Starting traffic advisory run.", "eventId", req.EventID, "dryRun", req.DryRun)

	now := p.clock.Now()
	p.startRecord(ctx, logCtx, models.RunRecord{
		RunID:     res.RunID,
		Region:    p.region,
		Trigger:   req.Trigger,
		Status:    models.StatusStarted,
		CreatedAt: now,
		UpdatedAt: now,
	})

	if p.fetcher == nil {
		return nil, p.fail(ctx, logCtx, req, res, StageFetch, fmt.Errorf("%w: no page fetcher configured", models.ErrConfiguration))
	}
	if p.extractor == nil {
		return nil, p.fail(ctx, logCtx, req, res, StageExtract, fmt.Errorf("%w: extraction service API key is not set", models.ErrConfiguration))
	}
	if p.store == nil && !req.DryRun {
		return nil, p.fail(ctx, logCtx, req, res, StagePersist, fmt.Errorf("%w: no object store configured", models.ErrConfiguration))
	}

	// --- 1. Fetch ---
	var page string
	err := p.timed(StageFetch, func() (err error) {
		page, err = p.fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StageFetch, err)
	}
	p.transition(ctx, logCtx, res, models.StatusFetched, nil)
	logCtx.Info("Fetched advisory page.", "bytes", len(page))

	// --- 2. Isolate the region section ---
	var sec section.Section
	err = p.timed(StageSection, func() (err error) {
		sec, err = section.Extract(page, p.region)
		return err
	})
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StageSection, err)
	}
	p.transition(ctx, logCtx, res, models.StatusSectionIsolated, nil)
	logCtx.Info("Isolated region section.", "tag", sec.Tag, "chars", len(sec.Text))

	// --- 3. Extract and re-validate ---
	var raw string
	err = p.timed(StageExtract, func() (err error) {
		raw, err = p.extractor.Extract(ctx, sec.Text)
		return err
	})
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StageExtract, err)
	}
	doc, err := extraction.Parse(raw)
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StageParse, err)
	}
	res.Document = doc
	p.transition(ctx, logCtx, res, models.StatusExtracted, map[string]any{"eventCount": len(doc.Events)})
	logCtx.Info("Extraction complete.", "events", len(doc.Events), "segments", doc.SegmentCount(), "contractVersion", extraction.ContractVersion)

	// --- 4. Enrich ---
	if p.enricher == nil {
		res.Enrichment = geocode.Stats{Segments: doc.SegmentCount(), Skipped: true}
	} else {
		err = p.timed(StageEnrich, func() (err error) {
			res.Enrichment, err = p.enricher.Enrich(ctx, doc)
			return err
		})
		if err != nil {
			return nil, p.fail(ctx, logCtx, req, res, StageEnrich, err)
		}
	}
	if res.Enrichment.Skipped {
		logCtx.Warn("Geocoding API key is not set; skipping enrichment.")
		p.transition(ctx, logCtx, res, models.StatusEnrichmentSkipped, nil)
	} else {
		p.transition(ctx, logCtx, res, models.StatusEnriched, map[string]any{
			"resolvedSegments": res.Enrichment.Resolved,
			"failedSegments":   res.Enrichment.Failed,
		})
	}

	// --- 5. Persist ---
	res.Body, err = extraction.Encode(doc)
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StageEncode, err)
	}
	res.ObjectName = ObjectKey(p.region, p.clock.Now())
	if req.DryRun {
		res.Status = res.statusAfterEnrichment()
		logCtx.Info("Dry run; document not persisted.", "objectName", res.ObjectName)
		return res, nil
	}
	err = p.timed(StagePersist, func() error {
		if err := p.store.Put(ctx, res.ObjectName, res.Body); err != nil {
			return fmt.Errorf("%w: %w", models.ErrPersist, err)
		}
		return nil
	})
	if err != nil {
		return nil, p.fail(ctx, logCtx, req, res, StagePersist, err)
	}
	res.Status = models.StatusPersisted
	p.transition(ctx, logCtx, res, models.StatusPersisted, map[string]any{"objectName": res.ObjectName})
	logCtx.Info("Persisted extraction document.", "objectName", res.ObjectName, "bytes", len(res.Body))

	p.notify(ctx, logCtx, res)

	if p.metrics != nil {
		p.metrics.Runs.WithLabelValues(req.Trigger, "success").Inc()
		p.metrics.EventsPerRun.Observe(float64(len(doc.Events)))
		p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	}
	logCtx.Info("Run complete.")
	return res, nil
}

func (r *Result) statusAfterEnrichment() string {
	if r.Enrichment.Skipped {
		return models.StatusEnrichmentSkipped
	}
	return models.StatusEnriched
}

func (p *Pipeline) notify(ctx context.Context, logCtx *slog.Logger, res *Result) {
	if p.notifier == nil {
		return
	}
	execution, err := p.notifier.Notify(ctx, Notification{
		RunID:      res.RunID,
		Region:     p.region,
		ObjectName: res.ObjectName,
		EventCount: len(res.Document.Events),
	})
	if err != nil {
		logCtx.Error("Failed to hand off persisted document; the document itself is saved.", "error", err)
		p.transition(ctx, logCtx, res, models.StatusPersisted, map[string]any{"errorDetails": "workflow hand-off failed: " + err.Error()})
		return
	}
	res.WorkflowExecution = execution
	p.transition(ctx, logCtx, res, models.StatusPersisted, map[string]any{"workflowExecution": execution})
	logCtx.Info("Workflow execution started.", "execution", execution)
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := p.clock.Now()
	err := fn()
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(p.clock.Since(start).Seconds())
	}
	return err
}

// fail records the terminal failure and wraps err in a RunError.
func (p *Pipeline) fail(ctx context.Context, logCtx *slog.Logger, req models.RunRequest, res *Result, stage string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logCtx.Warn("Run abandoned.", "stage", stage, "error", err)
	} else {
		logCtx.Error("Run failed.", "stage", stage, "error", err)
	}
	if p.metrics != nil {
		p.metrics.StageFailures.WithLabelValues(stage).Inc()
		p.metrics.Runs.WithLabelValues(req.Trigger, "failure").Inc()
	}
	runErr := &RunError{Stage: stage, Err: err}
	// Recorded even when ctx is already cancelled.
	p.transition(context.WithoutCancel(ctx), logCtx, res, models.StatusFailed, map[string]any{"errorDetails": runErr.Error()})
	return runErr
}

func (p *Pipeline) startRecord(ctx context.Context, logCtx *slog.Logger, rec models.RunRecord) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Start(ctx, rec); err != nil {
		logCtx.Error("Failed to create run record", "error", err)
	}
}

func (p *Pipeline) transition(ctx context.Context, logCtx *slog.Logger, res *Result, status string, fields map[string]any) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Transition(ctx, res.RunID, status, fields); err != nil {
		logCtx.Error("Failed to update run record", "status", status, "error", err)
	}
}
