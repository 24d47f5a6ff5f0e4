package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	_ "golang.org/x/image/tiff"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// MinImageDimension is the smallest width or height kept; smaller images
// are usually bullets, rules and spacer pixels.
const MinImageDimension = 50

var paintOpRe = regexp.MustCompile(`/([^\s/\[\]()<>{}%]+)\s+Do\b`)

// PdfcpuImageExtractor extracts embedded image objects in process with pdfcpu.
type PdfcpuImageExtractor struct {
	minDimension int
	logger       *slog.Logger
}

// NewPdfcpuImageExtractor creates a PdfcpuImageExtractor.
func NewPdfcpuImageExtractor(logger *slog.Logger) *PdfcpuImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PdfcpuImageExtractor{
		minDimension: MinImageDimension,
		logger:       logger.With("component", "pdfcpu-image-extractor"),
	}
}

func (p *PdfcpuImageExtractor) Name() string { return "pdfcpu" }

// Probe always succeeds; pdfcpu is linked in.
func (p *PdfcpuImageExtractor) Probe(context.Context) Availability {
	return Availability{Available: true, Message: "in-process"}
}

type pageImage struct {
	img       models.ExtractedImage
	paintRank int
	objNr     int
}

func (p *PdfcpuImageExtractor) Extract(ctx context.Context, doc models.RawDocument) (images []models.ExtractedImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			images, err = nil, fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	conf := relaxedConfiguration()
	raw, err := api.ExtractImagesRaw(bytes.NewReader(doc.Data), nil, conf)
	if err != nil {
		if isPasswordError(err) {
			return nil, models.PasswordProtectedError(err)
		}
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	painted := p.paintOrder(doc.Data)

	var collected []pageImage
	for _, pageImages := range raw {
		for objNr, img := range pageImages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			logCtx := p.logger.With("filename", doc.Filename, "page", img.PageNr, "image", img.Name, "objNr", objNr)

			if img.Thumb {
				continue
			}

			data, enc, err := normalizeImage(img)
			if err != nil {
				logCtx.Warn("Skipping undecodable image", "fileType", img.FileType,
					"error", models.NewStageError(models.StageImages, models.ErrDecode, "embedded image", err))
				continue
			}
			// Raw extraction leaves the image dictionary's dimensions unset,
			// so they are read from the normalized stream.
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				logCtx.Warn("Skipping undecodable image", "fileType", img.FileType,
					"error", models.NewStageError(models.StageImages, models.ErrDecode, "embedded image", err))
				continue
			}
			if cfg.Width < p.minDimension || cfg.Height < p.minDimension {
				logCtx.Debug("Skipping small image", "width", cfg.Width, "height", cfg.Height)
				continue
			}

			rank, ok := painted[img.PageNr][img.Name]
			if !ok {
				rank = len(painted[img.PageNr])
			}
			collected = append(collected, pageImage{
				img: models.ExtractedImage{
					Data:       data,
					Encoding:   enc,
					PageNumber: img.PageNr,
					Name:       fmt.Sprintf("page%d_%s.%s", img.PageNr, img.Name, enc),
				},
				paintRank: rank,
				objNr:     objNr,
			})
		}
	}

	sort.SliceStable(collected, func(i, j int) bool {
		a, b := collected[i], collected[j]
		if a.img.PageNumber != b.img.PageNumber {
			return a.img.PageNumber < b.img.PageNumber
		}
		if a.paintRank != b.paintRank {
			return a.paintRank < b.paintRank
		}
		return a.objNr < b.objNr
	})

	images = make([]models.ExtractedImage, len(collected))
	for i, c := range collected {
		images[i] = c.img
	}
	p.logger.Info("Extracted images", "filename", doc.Filename, "count", len(images))
	return images, nil
}

// paintOrder maps page number to the order in which each named XObject is
// painted by the page's content stream. Pages whose content cannot be read
// are left out.
func (p *PdfcpuImageExtractor) paintOrder(data []byte) map[int]map[string]int {
	order := map[int]map[string]int{}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), relaxedConfiguration())
	if err != nil {
		p.logger.Debug("Paint order unavailable", "error", err)
		return order
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		ranks := map[string]int{}
		for _, m := range paintOpRe.FindAllSubmatch(content, -1) {
			name := string(m[1])
			if _, seen := ranks[name]; !seen {
				ranks[name] = len(ranks)
			}
		}
		order[pageNr] = ranks
	}
	return order
}

// normalizeImage turns a raw pdfcpu image into JPEG or PNG bytes. DCT
// streams are passed through when they parse as JPEG; everything else is
// decoded and re-encoded as PNG.
func normalizeImage(img model.Image) ([]byte, models.Encoding, error) {
	if img.Reader == nil {
		return nil, "", fmt.Errorf("image has no stream")
	}
	data, err := io.ReadAll(img.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("read stream: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty stream")
	}

	if strings.EqualFold(img.FileType, "jpg") {
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && format == "jpeg" {
			return data, models.EncodingJPEG, nil
		}
	}
	if strings.EqualFold(img.FileType, "png") {
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && format == "png" {
			return data, models.EncodingPNG, nil
		}
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", img.FileType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), models.EncodingPNG, nil
}
