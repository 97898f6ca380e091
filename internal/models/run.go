package models

import "time"

// Run statuses, written to the run ledger as a run progresses.
const (
	StatusStarted           = "STARTED"
	StatusFetched           = "FETCHED"
	StatusSectionIsolated   = "SECTION_ISOLATED"
	StatusExtracted         = "EXTRACTED"
	StatusEnriched          = "ENRICHED"
	StatusEnrichmentSkipped = "ENRICHMENT_SKIPPED"
	StatusPersisted         = "PERSISTED"
	StatusFailed            = "FAILED"
)

// RunRecord represents one pipeline run in Firestore.
type RunRecord struct {
	RunID             string    `firestore:"runId,omitempty"`
	Region            string    `firestore:"region,omitempty"`
	Trigger           string    `firestore:"trigger,omitempty"`
	Status            string    `firestore:"status,omitempty"`
	ErrorDetails      string    `firestore:"errorDetails,omitempty"`
	ObjectName        string    `firestore:"objectName,omitempty"`
	EventCount        int       `firestore:"eventCount,omitempty"`
	ResolvedSegments  int       `firestore:"resolvedSegments,omitempty"`
	FailedSegments    int       `firestore:"failedSegments,omitempty"`
	WorkflowExecution string    `firestore:"workflowExecution,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt         time.Time `firestore:"updatedAt,omitempty"`
}
