package models

// These structs define the JSON payloads for HTTP requests and responses
// of the regeneration function and the workflow hand-off.

// RegenerateResponse is the output of the HTTP regeneration function.
// PDF is base64 encoded by encoding/json.
type RegenerateResponse struct {
	Status  string  `json:"status"`
	Summary Summary `json:"summary"`
	PDF     []byte  `json:"pdf,omitempty"`
}

// ErrorResponse is written when the pipeline fails. It never carries stack detail.
type ErrorResponse struct {
	Status  string `json:"status"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// GrayscaleWorkflowRequest is the argument handed to the downstream
// grayscale conversion workflow.
type GrayscaleWorkflowRequest struct {
	DocumentID   string `json:"documentId"`
	SourceGCSUri string `json:"sourceGcsUri"`
	PageCount    int    `json:"pageCount"`
	DPI          int    `json:"dpi"`
}
