package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/pdfrebrand/internal/gcp"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// Structurer turns one page's images or raw text into structured content.
type Structurer interface {
	StructureImages(ctx context.Context, page int, images []models.CompressedImage) (*models.StructuredPageContent, error)
	StructureText(ctx context.Context, page int, text string) (*models.StructuredPageContent, error)
}

// contentGenerator is the slice of *genai.GenerativeModel the structurer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// StructurerConfig holds the settings of the Vertex AI structurer.
type StructurerConfig struct {
	ProjectID      string
	VertexAIRegion string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
}

// loadStructurerConfig reads the structurer settings. ok is false when no
// project is configured, which disables enrichment.
func loadStructurerConfig() (config StructurerConfig, ok bool) {
	projectID := gcp.GetEnv("VERTEX_PROJECT_ID", "")
	if projectID == "" {
		projectID = gcp.GetEnv("PROJECT_ID", "")
	}
	return StructurerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Model:          gcp.GetEnv("VERTEX_MODEL", "gemini-1.5-pro"),
		Timeout:        gcp.GetEnvDuration("STRUCTURER_TIMEOUT", 60*time.Second),
		MaxRetries:     gcp.GetEnvInt("STRUCTURER_MAX_RETRIES", 3),
	}, projectID != ""
}

// VertexStructurer is the Structurer backed by Gemini on Vertex AI.
type VertexStructurer struct {
	vision     contentGenerator
	text       contentGenerator
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewVertexStructurer wraps the models of client.
func NewVertexStructurer(client *gcp.VertexClient, config StructurerConfig, logger *slog.Logger) *VertexStructurer {
	return newVertexStructurer(client.VisionModel, client.TextModel, config, logger)
}

func newVertexStructurer(vision, text contentGenerator, config StructurerConfig, logger *slog.Logger) *VertexStructurer {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VertexStructurer{
		vision:     vision,
		text:       text,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		backoff:    time.Second,
		logger:     logger.With("component", "structurer"),
	}
}

// StructureImages sends a page's images, in order, to the vision model.
func (s *VertexStructurer) StructureImages(ctx context.Context, page int, images []models.CompressedImage) (*models.StructuredPageContent, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("page %d: no images to structure", page)
	}
	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.ImageData(string(img.Encoding), img.Data))
	}
	parts = append(parts, genai.Text(gcp.VisionUserPrompt))
	return s.generate(ctx, s.vision, page, "vision", parts)
}

// StructureText sends a page's raw text to the text model.
func (s *VertexStructurer) StructureText(ctx context.Context, page int, text string) (*models.StructuredPageContent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("page %d: no text to structure", page)
	}
	return s.generate(ctx, s.text, page, "text", []genai.Part{genai.Text(gcp.TextUserPrompt + text)})
}

func (s *VertexStructurer) generate(ctx context.Context, model contentGenerator, page int, mode string, parts []genai.Part) (*models.StructuredPageContent, error) {
	logCtx := s.logger.With("page", page, "mode", mode)
	backoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := model.GenerateContent(callCtx, parts...)
		cancel()
		if err == nil {
			return parseStructuredResponse(resp, page)
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) || attempt == s.maxRetries {
			break
		}
		logCtx.Warn("Structuring call failed, will retry.",
			"attempt", attempt, "maxRetries", s.maxRetries, "backoff", backoff.String(), "error", err)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to generate content from gemini: %w", lastErr)
}

// isRetryable reports whether a collaborator error is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	msg := err.Error()
	for _, code := range []string{"ResourceExhausted", "Unavailable", "DeadlineExceeded", "Internal"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// parseStructuredResponse extracts the JSON triple from a model response.
func parseStructuredResponse(resp *genai.GenerateContentResponse, page int) (*models.StructuredPageContent, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("page %d: empty response from gemini", page)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	raw := strings.TrimSpace(sb.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("page %d: no text in gemini response", page)
	}

	lower := strings.ToLower(raw)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return nil, fmt.Errorf("gemini response indicates refusal for page %d", page)
		}
	}

	var content models.StructuredPageContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("page %d: failed to parse gemini JSON: %w", page, err)
	}
	content.Title = strings.TrimSpace(content.Title)
	content.Body = strings.TrimSpace(content.Body)
	content.ContactBlock = strings.TrimSpace(content.ContactBlock)
	return &content, nil
}
