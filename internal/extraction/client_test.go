package extraction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	calls int
	got   []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.got = parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract_ReturnsRawText(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"events":[]}`)}
	c := NewClient(gen, discardLogger())

	got, err := c.Extract(context.Background(), "Formation: 5th Avenue")
	require.NoError(t, err)
	assert.Equal(t, `{"events":[]}`, got)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, gen.got, 1)
	assert.Equal(t, genai.Text("Formation: 5th Avenue"), gen.got[0])
}

func TestExtract_ConcatenatesPartsAndStripsFence(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("```json\n{\"events\":", "[]}\n```")}
	c := NewClient(gen, discardLogger())

	got, err := c.Extract(context.Background(), "section")
	require.NoError(t, err)
	assert.Equal(t, `{"events":[]}`, got)
}

func TestExtract_NilModelIsConfigurationError(t *testing.T) {
	var c *Client
	_, err := c.Extract(context.Background(), "section")
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewClient(nil, discardLogger()).Extract(context.Background(), "section")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestExtract_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "transport error", gen: &fakeGenerator{err: errors.New("503 unavailable")}},
		{name: "blocked", gen: &fakeGenerator{err: &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{}}}},
		{name: "no candidates", gen: &fakeGenerator{resp: &genai.GenerateContentResponse{}}},
		{name: "nil response", gen: &fakeGenerator{}},
		{name: "whitespace only", gen: &fakeGenerator{resp: textResponse("  \n ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.gen, discardLogger()).Extract(context.Background(), "section")
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstreamExtraction)
			assert.Equal(t, 1, tt.gen.calls)
		})
	}
}

func TestExtract_BlockedMessage(t *testing.T) {
	gen := &fakeGenerator{err: &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{}}}
	_, err := NewClient(gen, discardLogger()).Extract(context.Background(), "section")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response blocked")
}
