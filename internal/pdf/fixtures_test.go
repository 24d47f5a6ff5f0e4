package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"
)

type fixtureImage struct {
	name string
	w, h int
}

type fixturePage struct {
	lines  []string
	images []fixtureImage
}

// buildPDF renders a document with one page per entry.
func buildPDF(t *testing.T, pages []fixturePage, protect bool) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	if protect {
		doc.SetProtection(fpdf.CnProtectPrint, "secret", "owner")
	}
	doc.SetFont("Helvetica", "", 12)
	for _, p := range pages {
		doc.AddPage()
		y := 72.0
		for _, line := range p.lines {
			doc.Text(72, y, line)
			y += 18
		}
		for _, img := range p.images {
			doc.RegisterImageOptionsReader(img.name, fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(jpegBytes(t, img.w, img.h)))
			doc.ImageOptions(img.name, 72, y, float64(img.w), float64(img.h), false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
			y += float64(img.h) + 10
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}
