package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/pdfrebrand/internal/gcp"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
	"github.com/Lllllllleong/pdfrebrand/internal/raster"
)

// RegeneratorConfig holds the settings of the upload-triggered regenerator.
type RegeneratorConfig struct {
	ProjectID        string
	OutputBucket     string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	GrayscaleDPI     int
}

// RegeneratorFunction regenerates PDFs uploaded to a bucket and records
// each job in Firestore.
type RegeneratorFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	pipeline         *Pipeline
	config           RegeneratorConfig
}

// GCSEvent is the payload of a Cloud Storage object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func loadRegeneratorConfig() (RegeneratorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return RegeneratorConfig{}, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := RegeneratorConfig{
		ProjectID:        projectID,
		OutputBucket:     gcp.GetEnv("OUTPUT_BUCKET", ""),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		GrayscaleDPI:     gcp.GetEnvInt("RASTER_DPI", raster.DefaultDPI),
	}
	if config.OutputBucket == "" {
		return RegeneratorConfig{}, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}
	if config.GrayscaleDPI < raster.MinDPI || config.GrayscaleDPI > raster.MaxDPI {
		return RegeneratorConfig{}, fmt.Errorf("RASTER_DPI must be between %d and %d", raster.MinDPI, raster.MaxDPI)
	}
	return config, nil
}

func NewRegenerator(ctx context.Context) (*RegeneratorFunction, error) {
	config, err := loadRegeneratorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	var executionsClient *executions.Client
	if config.WorkflowID != "" {
		executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	pipeline, err := NewPipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	f := &RegeneratorFunction{
		storageClient:    storageClient,
		firestoreClient:  firestoreClient,
		executionsClient: executionsClient,
		pipeline:         pipeline,
		config:           config,
	}
	slog.Info("Regenerator initialized.", "outputBucket", config.OutputBucket, "workflowId", config.WorkflowID)
	return f, nil
}

// Process regenerates one uploaded object. Duplicates of an already
// processed file are skipped.
func (f *RegeneratorFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !isPDFObject(e.Name) {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	data, err := gcp.ReadObject(ctx, f.storageClient.Bucket(e.Bucket), e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := hashBytes(data)
	logCtx = logCtx.With("fileHash", fileHash)

	isDuplicate, docID, err := f.isDuplicate(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", docID)
		return nil
	}

	docRef, err := f.createInitialDocument(ctx, fileHash, e.Name)
	if err != nil {
		logCtx.Error("Failed to create initial Firestore document", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docRef.ID)
	logCtx.Info("Created job document in Firestore.")

	if err := gcp.UpdateFields(ctx, docRef, map[string]interface{}{"status": models.StatusRegenerating}); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update status to REGENERATING", err)
	}

	result, err := f.pipeline.Run(ctx, models.RawDocument{Filename: path.Base(e.Name), Data: data})
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "regeneration failed", err)
	}

	outputURI, err := f.saveOutputs(ctx, docRef.ID, result)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to save outputs", err)
	}

	updates := map[string]interface{}{
		"status":       models.StatusRegenerated,
		"pageCount":    result.Summary.PageCount,
		"title":        result.Summary.Title,
		"outputGcsUri": outputURI,
	}
	if err := gcp.UpdateFields(ctx, docRef, updates); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update status to REGENERATED", err)
	}
	logCtx.Info("Regenerated document saved.", "outputGcsUri", outputURI, "pageCount", result.Summary.PageCount)

	if f.executionsClient == nil {
		return nil
	}
	return f.triggerWorkflow(ctx, logCtx, docRef, outputURI, result.Summary.PageCount)
}

func (f *RegeneratorFunction) isDuplicate(ctx context.Context, fileHash string) (bool, string, error) {
	docs, err := f.firestoreClient.Collection(f.config.CollectionName).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return true, docs[0].Ref.ID, nil
	}
	return false, "", nil
}

func (f *RegeneratorFunction) createInitialDocument(ctx context.Context, fileHash, filename string) (*firestore.DocumentRef, error) {
	newDoc := models.Document{
		FileHash:         fileHash,
		OriginalFilename: filename,
		Status:           models.StatusValidating,
		CreatedAt:        time.Now(),
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, newDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to create job document: %w", err)
	}
	return docRef, nil
}

// saveOutputs writes the regenerated PDF and its summary and returns the PDF's URI.
func (f *RegeneratorFunction) saveOutputs(ctx context.Context, docID string, result *models.Result) (string, error) {
	bucket := f.storageClient.Bucket(f.config.OutputBucket)
	pdfObject, summaryObject := outputObjectNames(docID)

	if err := gcp.SaveToGCSAtomically(ctx, bucket, pdfObject, result.PDF, "application/pdf"); err != nil {
		return "", err
	}
	summary, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := gcp.SaveToGCSAtomically(ctx, bucket, summaryObject, summary, "application/json"); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", f.config.OutputBucket, pdfObject), nil
}

func (f *RegeneratorFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, sourceURI string, pageCount int) error {
	logCtx.Info("Triggering grayscale workflow.")
	payload := models.GrayscaleWorkflowRequest{
		DocumentID:   docRef.ID,
		SourceGCSUri: sourceURI,
		PageCount:    pageCount,
		DPI:          f.config.GrayscaleDPI,
	}
	workflow := gcp.WorkflowName(f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID)
	executionID, err := gcp.StartWorkflow(ctx, f.executionsClient, workflow, payload)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to trigger workflow execution", err)
	}
	updates := map[string]interface{}{
		"status":              models.StatusConverting,
		"workflowExecutionId": executionID,
	}
	if err := gcp.UpdateFields(ctx, docRef, updates); err != nil {
		logCtx.Warn("Failed to record workflow execution", "executionId", executionID, "error", err)
	}
	logCtx.Info("Hand-off to workflow complete.", "executionId", executionID)
	return nil
}

// handleError records the failure on the job document. Input the pipeline
// rejected is not retried, so nil is returned for it.
func (f *RegeneratorFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	stage, detail := models.UserMessage(originalErr)
	fullError := fmt.Sprintf("%s: %s", message, detail)
	logCtx.Error(message, "error", originalErr, "stage", stage)

	updates := map[string]interface{}{
		"status":       models.StatusFailed,
		"errorDetails": fullError,
	}
	if stage != "" {
		updates["errorStage"] = stage
	}
	if err := gcp.UpdateFields(ctx, docRef, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	if isPermanent(originalErr) {
		return nil
	}
	return fmt.Errorf("%s", fullError)
}

func isPDFObject(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}

func outputObjectNames(docID string) (pdfObject, summaryObject string) {
	return fmt.Sprintf("%s/rebranded.pdf", docID), fmt.Sprintf("%s/summary.json", docID)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
