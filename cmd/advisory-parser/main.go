package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/config"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/services"
)

var (
	parserInstance *services.ParserFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Entry point names are the ones configured in GCP.
	functions.HTTP("HandleParseAdvisories", handleParseAdvisories)
	functions.CloudEvent("ScheduledParseAdvisories", scheduledParseAdvisories)
	functions.HTTP("HandleMetrics", handleMetrics)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = fmt.Errorf("failed to load configuration: %w", err)
		return
	}
	logger := observability.NewLogger(cfg.Log).With("region", cfg.Region)
	slog.SetDefault(logger)

	parserInstance, initErr = services.NewParser(context.Background(), cfg, logger, observability.NewMetrics())
}

// handleMetrics serves the Prometheus registry of this process. It runs the
// same lazy setup as the pipeline entry points so the traffic_advisory_*
// collectors are registered. Counters only reflect runs this process handled:
// when each entry point is deployed as its own service, scrape the pipeline
// series from a single-service deployment or from advisoryctl instead.
func handleMetrics(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		slog.Warn("Serving metrics without pipeline collectors", "error", initErr)
	}
	promhttp.Handler().ServeHTTP(w, r)
}

// handleParseAdvisories runs the pipeline for an inbound HTTP request.
func handleParseAdvisories(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		slog.Error("Critical: parser initialization failed", "error", initErr)
		http.Error(w, "Error processing traffic advisories: "+initErr.Error(), http.StatusInternalServerError)
		return
	}

	req := models.RunRequest{
		Trigger: models.TriggerHTTP,
		EventID: r.Header.Get("Function-Execution-Id"),
	}
	res, err := parserInstance.Process(r.Context(), req)
	if err != nil {
		// The specific error is already logged inside the pipeline.
		http.Error(w, "Error processing traffic advisories: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res.Response()); err != nil {
		slog.Error("Failed to write response", "error", err, "runId", res.RunID)
	}
}

// scheduledParseAdvisories runs the pipeline for a Cloud Scheduler Pub/Sub
// message. Returning an error marks the invocation as failed.
func scheduledParseAdvisories(ctx context.Context, e cloudevents.Event) error {
	once.Do(setup)
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var msg models.SchedulerMessage
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		// The schedule payload carries nothing the run needs.
		slog.Warn("Failed to unmarshal scheduler message; running anyway", "error", err, "eventId", e.ID())
	}

	res, err := parserInstance.Process(ctx, models.RunRequest{
		Trigger: models.TriggerScheduler,
		EventID: e.ID(),
	})
	if err != nil {
		return err
	}
	slog.Info("Scheduled run finished.", "runId", res.RunID, "objectName", res.ObjectName, "messageId", msg.Message.MessageID)
	return nil
}
