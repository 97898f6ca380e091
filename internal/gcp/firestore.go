package gcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// RunLedger stores one Firestore document per pipeline run, keyed by run ID.
type RunLedger struct {
	collection *firestore.CollectionRef
	clock      clockwork.Clock
}

// NewRunLedger returns a ledger writing to the named collection.
func NewRunLedger(client *firestore.Client, collection string, clock clockwork.Clock) *RunLedger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RunLedger{collection: client.Collection(collection), clock: clock}
}

// Start creates the run document.
func (l *RunLedger) Start(ctx context.Context, rec models.RunRecord) error {
	if _, err := l.collection.Doc(rec.RunID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to create run document: %w", err)
	}
	return nil
}

// Transition sets the run status and any extra fields.
func (l *RunLedger) Transition(ctx context.Context, runID, status string, fields map[string]any) error {
	if _, err := l.collection.Doc(runID).Update(ctx, statusUpdates(status, l.clock.Now(), fields)); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", status, err)
	}
	return nil
}

// statusUpdates orders extra fields by path so writes are deterministic.
func statusUpdates(status string, now time.Time, fields map[string]any) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: now},
	}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		updates = append(updates, firestore.Update{Path: p, Value: fields[p]})
	}
	return updates
}
