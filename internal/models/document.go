package models

import "time"

// Document represents the main record for a regeneration job in Firestore.
// It tracks the overall status and metadata of the uploaded file.
type Document struct {
	FileHash            string    `firestore:"fileHash,omitempty"`
	OriginalFilename    string    `firestore:"originalFilename,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorStage          string    `firestore:"errorStage,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	Title               string    `firestore:"title,omitempty"`
	OutputGCSUri        string    `firestore:"outputGcsUri,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}

// Job statuses written to Document.Status.
const (
	StatusValidating   = "VALIDATING"
	StatusRegenerating = "REGENERATING"
	StatusRegenerated  = "REGENERATED"
	StatusConverting   = "CONVERTING"
	StatusFailed       = "FAILED"
)
