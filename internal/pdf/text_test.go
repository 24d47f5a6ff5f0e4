package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

func TestTextExtractorKeepsPageBoundaries(t *testing.T) {
	data := buildPDF(t, []fixturePage{
		{lines: []string{"Quarterly Report"}},
		{lines: []string{"Tel: +52 55 1234 5678"}},
		{},
	}, false)

	pages, err := NewTextExtractor(nil).Extract(context.Background(), models.RawDocument{Filename: "report.pdf", Data: data})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Contains(t, pages[0], "Quarterly")
	assert.Contains(t, pages[1], "1234")
	assert.NotContains(t, pages[0], "1234")
	assert.Empty(t, pages[2])
}

func TestTextExtractorPasswordProtected(t *testing.T) {
	data := buildPDF(t, []fixturePage{{lines: []string{"secret"}}}, true)

	_, err := NewTextExtractor(nil).Extract(context.Background(), models.RawDocument{Filename: "locked.pdf", Data: data})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPasswordProtected), "got %v", err)
}

func TestTextExtractorUnparseableBodyDoesNotFail(t *testing.T) {
	data := append([]byte("%PDF-1.4\n"), make([]byte, 300)...)

	pages, err := NewTextExtractor(nil).Extract(context.Background(), models.RawDocument{Filename: "broken.pdf", Data: data})
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestNormalizeRuns(t *testing.T) {
	assert.Equal(t, "a b c\nd", normalizeRuns("  a   b\tc  \r\n d\n\n"))
	assert.Equal(t, "", normalizeRuns("   \n  "))
}
