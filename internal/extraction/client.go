package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

// Generator is the part of *genai.GenerativeModel the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client sends an isolated section to the extraction model. The model must
// already carry SystemInstruction and ResponseSchema.
type Client struct {
	model  Generator
	logger *slog.Logger
}

// NewClient wraps a configured model.
func NewClient(model Generator, logger *slog.Logger) *Client {
	return &Client{model: model, logger: logger}
}

// Extract issues exactly one request and returns the raw JSON text. The
// payload is not validated here; Parse does that before persistence.
func (c *Client) Extract(ctx context.Context, sectionText string) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("%w: extraction service API key is not set", models.ErrConfiguration)
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(sectionText))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			c.logger.Error("Gemini blocked the extraction request", "error", err)
			return "", fmt.Errorf("%w: response blocked: %v", models.ErrUpstreamExtraction, err)
		}
		c.logger.Error("Call to Vertex AI for extraction failed", "error", err)
		return "", fmt.Errorf("%w: generate content: %v", models.ErrUpstreamExtraction, err)
	}

	text, parts := responseText(resp)
	if parts > 1 {
		c.logger.Warn("Gemini response contained multiple text parts; they have been concatenated.", "parts", parts)
	}
	if text == "" {
		return "", fmt.Errorf("%w: model returned an empty response instead of JSON", models.ErrUpstreamExtraction)
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate and strips
// any markdown fence the model added despite instructions.
func responseText(resp *genai.GenerateContentResponse) (string, int) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", 0
	}

	var b strings.Builder
	var found int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
			found++
		}
	}

	s := strings.TrimSpace(b.String())
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), found
}
