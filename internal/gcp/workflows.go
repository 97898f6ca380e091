package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/pipeline"
)

// WorkflowNotifier starts a Cloud Workflows execution for each persisted document.
type WorkflowNotifier struct {
	client *executions.Client
	parent string
}

// NewWorkflowNotifier creates an executions client for the given workflow.
func NewWorkflowNotifier(ctx context.Context, projectID, location, workflowID string) (*WorkflowNotifier, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("projectID, location and workflowID must all be set")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create executions client: %w", err)
	}
	return &WorkflowNotifier{client: client, parent: WorkflowParent(projectID, location, workflowID)}, nil
}

// WorkflowParent returns the resource name executions are created under.
func WorkflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// Notify passes n to the workflow as its JSON argument and returns the execution name.
func (w *WorkflowNotifier) Notify(ctx context.Context, n pipeline.Notification) (string, error) {
	req, err := executionRequest(w.parent, n)
	if err != nil {
		return "", err
	}
	exec, err := w.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

func executionRequest(parent string, n pipeline.Notification) (*executionspb.CreateExecutionRequest, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	return &executionspb.CreateExecutionRequest{
		Parent: parent,
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}, nil
}

func (w *WorkflowNotifier) Close() error {
	return w.client.Close()
}
