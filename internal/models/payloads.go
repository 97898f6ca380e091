package models

// These structs define the JSON payloads exchanged with the invocation
// surfaces: the HTTP trigger and the scheduled Pub/Sub trigger.

// Trigger names recorded on each run.
const (
	TriggerHTTP      = "http"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// RunRequest describes a single pipeline invocation.
type RunRequest struct {
	Trigger string `json:"trigger"`
	EventID string `json:"eventId,omitempty"`
	DryRun  bool   `json:"dryRun,omitempty"`
}

// RunResponse is the outcome reported back to the HTTP caller.
type RunResponse struct {
	Status           string `json:"status"`
	RunID            string `json:"runId"`
	ObjectName       string `json:"objectName"`
	EventCount       int    `json:"eventCount"`
	Enrichment       string `json:"enrichment"`
	ResolvedSegments int    `json:"resolvedSegments"`
	FailedSegments   int    `json:"failedSegments"`
}

// SchedulerMessage is the Pub/Sub envelope Cloud Scheduler publishes.
type SchedulerMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
