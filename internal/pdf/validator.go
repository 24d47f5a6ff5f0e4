package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// MinPDFBytes is the smallest buffer accepted as a PDF.
const MinPDFBytes = 100

var pdfMagic = []byte("%PDF")

// ValidateSignature is the cheap structural pre-filter run before any
// library call: the buffer must be non-empty, at least MinPDFBytes long and
// start with the PDF magic bytes.
func ValidateSignature(data []byte) error {
	if len(data) == 0 {
		return models.InvalidInputError("the uploaded file is empty")
	}
	if len(data) < MinPDFBytes {
		return models.InvalidInputError(fmt.Sprintf("the uploaded file is too small to be a PDF (%d bytes)", len(data)))
	}
	if !bytes.Equal(data[:len(pdfMagic)], pdfMagic) {
		return models.InvalidInputError("the uploaded file is not a PDF")
	}
	return nil
}

func relaxedConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// isPasswordError reports whether a parser error means the document needs a password.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "password")
}

// checkPassword asks pdfcpu whether the document opens with an empty user
// password. It returns a PasswordProtectedError when it does not.
func checkPassword(data []byte) error {
	_, err := api.ReadContext(bytes.NewReader(data), relaxedConfiguration())
	if isPasswordError(err) {
		return models.PasswordProtectedError(err)
	}
	return nil
}

// PageCount returns the number of pages pdfcpu sees in data.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), relaxedConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// Optimize compacts a PDF produced by the renderer.
func Optimize(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return buf.Bytes(), nil
}
