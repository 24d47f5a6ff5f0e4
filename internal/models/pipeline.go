package models

import (
	"strings"
	"unicode/utf8"
)

// ConfidenceThreshold is the minimum combined character count above which
// structured content is trusted over raw text.
const ConfidenceThreshold = 10

// NoContentPlaceholder is the body used when a page yields no text at all.
const NoContentPlaceholder = "No extractable text found"

// UntitledPlaceholder is the document title used when nothing better is found.
const UntitledPlaceholder = "Untitled Document"

// RawDocument is the uploaded PDF. It is consumed once by the pipeline and never mutated.
type RawDocument struct {
	Filename string
	Data     []byte
}

// PageText holds the embedded text of each page; index i is page i+1.
type PageText []string

// Encoding is the normalized encoding of an extracted image.
type Encoding string

const (
	EncodingJPEG Encoding = "jpeg"
	EncodingPNG  Encoding = "png"
)

// MIMEType returns the MIME type for the encoding.
func (e Encoding) MIMEType() string {
	return "image/" + string(e)
}

// ExtractedImage is a raster image recovered from one page of the input.
type ExtractedImage struct {
	Data       []byte
	Encoding   Encoding
	PageNumber int
	Name       string
}

// CompressedImage is an ExtractedImage bounded to the configured byte ceiling.
// Width and Height are zero when compression failed and Data is the original buffer.
type CompressedImage struct {
	ExtractedImage
	Width   int
	Height  int
	Quality int
}

// StructuredPageContent is the triple returned by the structuring collaborator.
type StructuredPageContent struct {
	Title        string `json:"title"`
	Body         string `json:"mainData"`
	ContactBlock string `json:"contactInfo"`
}

// Length is the combined rune count of the three fields.
func (s *StructuredPageContent) Length() int {
	if s == nil {
		return 0
	}
	return utf8.RuneCountInString(s.Title) + utf8.RuneCountInString(s.Body) + utf8.RuneCountInString(s.ContactBlock)
}

// Usable reports whether the content clears the confidence threshold.
func (s *StructuredPageContent) Usable() bool {
	return s.Length() > ConfidenceThreshold
}

// ContactInfo is the canonical contact record of a document. Nil fields were not detected.
type ContactInfo struct {
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// IsEmpty reports whether no field was detected.
func (c ContactInfo) IsEmpty() bool {
	return c.Email == nil && c.Phone == nil && c.Address == nil
}

// String renders the labelled contact block carried by every FinalPageRecord.
func (c ContactInfo) String() string {
	var lines []string
	if c.Email != nil {
		lines = append(lines, "Email: "+*c.Email)
	}
	if c.Phone != nil {
		lines = append(lines, "Phone: "+*c.Phone)
	}
	if c.Address != nil {
		lines = append(lines, "Address: "+*c.Address)
	}
	return strings.Join(lines, "\n")
}

// FinalPageRecord is the fused, redacted, rendering-ready content of one output page.
type FinalPageRecord struct {
	PageNumber  int    `json:"pageNumber"`
	Title       string `json:"title"`
	MainData    string `json:"mainData"`
	ContactInfo string `json:"contactInfo"`
	Structured  bool   `json:"structured"`
}

// Summary is the structured extraction summary returned alongside the PDF.
type Summary struct {
	Title       string `json:"title"`
	Body        string `json:"mainData"`
	ContactInfo string `json:"contactInfo"`
	PageCount   int    `json:"pageCount"`
}

// Result is the output of one pipeline run.
type Result struct {
	PDF     []byte
	Summary Summary
	Records []FinalPageRecord
}
