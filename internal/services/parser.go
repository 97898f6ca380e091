package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/config"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/extraction"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/fetcher"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/gcp"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/geocode"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req models.RunRequest) (*pipeline.Result, error)
}

// ParserFunction holds the wired pipeline shared by every invocation of a
// function instance.
type ParserFunction struct {
	runner  Runner
	region  string
	clock   clockwork.Clock
	group   singleflight.Group
	closers []func() error

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context a shared run executes under. It is cancelled only
// when every caller waiting on the run has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewParser builds the GCP clients named by cfg and wires them into a pipeline.
// Components whose configuration is empty are left out: no Gemini key means
// every run fails with a configuration error, no geocoding key means runs
// skip enrichment, and no collection or workflow ID disables the ledger and
// the hand-off respectively.
func NewParser(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*ParserFunction, error) {
	f := &ParserFunction{region: cfg.Region, clock: clockwork.NewRealClock()}
	deps := pipeline.Deps{
		Fetcher: fetcher.New(fetcher.Options{
			URL:       cfg.Source.URL,
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.Source.Timeout,
		}),
		Clock:   f.clock,
		Logger:  logger,
		Metrics: metrics,
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; runs will fail until it is configured.")
	} else {
		vertexClient, err := gcp.NewVertexClient(ctx, gcp.VertexOptions{
			ProjectID:         cfg.ProjectID,
			Region:            cfg.Gemini.Location,
			APIKey:            cfg.Gemini.APIKey,
			Model:             cfg.Gemini.Model,
			SystemInstruction: extraction.SystemInstruction(extraction.RegionDisplayName(cfg.Region)),
			Schema:            extraction.ResponseSchema(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		f.closers = append(f.closers, vertexClient.Close)
		deps.Extractor = extraction.NewClient(vertexClient.ExtractionModel, logger)
	}

	var resolver geocode.Resolver
	if cfg.Geocoding.APIKey != "" {
		resolver = geocode.NewClient(geocode.Options{
			APIKey:  cfg.Geocoding.APIKey,
			BaseURL: cfg.Geocoding.BaseURL,
			Timeout: cfg.Geocoding.Timeout,
		}, logger, metrics)
	}
	deps.Enricher = geocode.NewEnricher(resolver, cfg.Geocoding.Pause, f.clock, logger, metrics)

	if cfg.Storage.Bucket != "" {
		storageClient, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, storageClient.Close)
		store, err := gcp.NewBucketStore(storageClient, cfg.Storage.Bucket, logger)
		if err != nil {
			return nil, err
		}
		deps.Store = store
	}

	if cfg.Firestore.Collection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, firestoreClient.Close)
		deps.Recorder = gcp.NewRunLedger(firestoreClient, cfg.Firestore.Collection, f.clock)
	}

	if cfg.Workflow.ID != "" {
		notifier, err := gcp.NewWorkflowNotifier(ctx, cfg.ProjectID, cfg.Workflow.Location, cfg.Workflow.ID)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, notifier.Close)
		deps.Notifier = notifier
	}

	f.runner = pipeline.New(cfg.Region, deps)
	return f, nil
}

// NewParserWithRunner wraps an already-built runner.
func NewParserWithRunner(runner Runner, region string, clock clockwork.Clock) *ParserFunction {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ParserFunction{runner: runner, region: region, clock: clock}
}

// Process runs the pipeline once. Concurrent requests for the same object key
// on this instance share a single run and its outcome. Each caller stops
// waiting when its own ctx is done; the shared run is abandoned only once no
// caller is left waiting on it.
func (f *ParserFunction) Process(ctx context.Context, req models.RunRequest) (*pipeline.Result, error) {
	key := pipeline.ObjectKey(f.region, f.clock.Now())
	if req.DryRun {
		key += "#dry-run"
	}

	fl := f.join(ctx, key)
	defer f.leave(key, fl)

	ch := f.group.DoChan(key, func() (any, error) {
		return f.runner.Run(fl.ctx, req)
	})

	select {
	case <-ctx.Done():
		slog.Warn("Caller gave up waiting for run.", "objectName", key, "trigger", req.Trigger, "error", ctx.Err())
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			slog.Info("Coalesced concurrent run.", "objectName", key, "trigger", req.Trigger)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*pipeline.Result), nil
	}
}

func (f *ParserFunction) join(ctx context.Context, key string) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flights == nil {
		f.flights = make(map[string]*flight)
	}
	fl, ok := f.flights[key]
	if !ok {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: runCtx, cancel: cancel}
		f.flights[key] = fl
	}
	fl.waiters++
	return fl
}

func (f *ParserFunction) leave(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	delete(f.flights, key)
	// A caller arriving now must start a fresh run rather than join the
	// cancelled one.
	f.group.Forget(key)
}

// Close releases every client NewParser created.
func (f *ParserFunction) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
