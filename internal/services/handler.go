package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pdfrebrand/internal/gcp"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// RegenerateHandler serves the synchronous regeneration endpoint.
type RegenerateHandler struct {
	pipeline *Pipeline
	maxBytes int64
}

// NewRegenerateHandler creates the handler with a pipeline built from the environment.
func NewRegenerateHandler(ctx context.Context) (*RegenerateHandler, error) {
	pipeline, err := NewPipeline(ctx)
	if err != nil {
		return nil, err
	}
	return newRegenerateHandler(pipeline, int64(gcp.GetEnvInt("MAX_UPLOAD_BYTES", 50<<20))), nil
}

func newRegenerateHandler(pipeline *Pipeline, maxBytes int64) *RegenerateHandler {
	return &RegenerateHandler{pipeline: pipeline, maxBytes: maxBytes}
}

func (h *RegenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "", "only POST is supported")
		return
	}

	doc, err := h.readDocument(w, r)
	if err != nil {
		slog.Warn("Could not read upload", "error", err)
		writeError(w, http.StatusBadRequest, models.StageValidation, err.Error())
		return
	}
	logCtx := slog.With("filename", doc.Filename, "bytes", len(doc.Data))

	result, err := h.pipeline.Run(r.Context(), doc)
	if err != nil {
		stage, message := models.UserMessage(err)
		logCtx.Error("Regeneration failed", "stage", stage, "error", err)
		writeError(w, statusFor(err), stage, message)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/pdf") {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputFilename(doc.Filename)))
		if _, err := w.Write(result.PDF); err != nil {
			logCtx.Error("Failed to write response", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := models.RegenerateResponse{Status: "success", Summary: result.Summary, PDF: result.PDF}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logCtx.Error("Failed to write response", "error", err)
	}
}

// readDocument accepts a raw PDF body or a multipart form with a "file" field.
func (h *RegenerateHandler) readDocument(w http.ResponseWriter, r *http.Request) (models.RawDocument, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	filename := r.URL.Query().Get("filename")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return models.RawDocument{}, fmt.Errorf("missing form field \"file\": %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return models.RawDocument{}, fmt.Errorf("failed to read upload: %w", err)
		}
		if filename == "" {
			filename = header.Filename
		}
		return models.RawDocument{Filename: defaultFilename(filename), Data: data}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to read request body: %w", err)
	}
	return models.RawDocument{Filename: defaultFilename(filename), Data: data}, nil
}

func writeError(w http.ResponseWriter, status int, stage, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Status: "error", Stage: stage, Message: message})
}

// isPermanent reports whether retrying err can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrInvalidInput) || errors.Is(err, models.ErrPasswordProtected)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrPasswordProtected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func defaultFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}

func outputFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "-rebranded.pdf"
}
