package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/pdfrebrand/internal/gcp"
	"github.com/Lllllllleong/pdfrebrand/internal/imaging"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
	"github.com/Lllllllleong/pdfrebrand/internal/pdf"
	"github.com/Lllllllleong/pdfrebrand/internal/render"
)

// PipelineConfig holds the process-wide pipeline settings fixed at startup.
type PipelineConfig struct {
	ImageExtractorMode string
	Subprocess         pdf.SubprocessConfig
	Compression        imaging.Options
	CompressionWorkers int
	StructureWorkers   int
	Render             render.Config
	Optimize           bool
}

func loadPipelineConfig() PipelineConfig {
	compression := imaging.DefaultOptions()
	compression.MaxBytes = gcp.GetEnvInt("IMAGE_MAX_BYTES", compression.MaxBytes)
	maxDim := gcp.GetEnvInt("IMAGE_MAX_DIMENSION", compression.MaxWidth)
	compression.MaxWidth, compression.MaxHeight = maxDim, maxDim

	return PipelineConfig{
		ImageExtractorMode: gcp.GetEnv("IMAGE_EXTRACTOR", pdf.ModeAuto),
		Subprocess: pdf.SubprocessConfig{
			Command: gcp.GetEnv("IMAGE_EXTRACTOR_COMMAND", "python3"),
			Script:  gcp.GetEnv("IMAGE_EXTRACTOR_SCRIPT", "scripts/extract_pdf_images.py"),
			Timeout: gcp.GetEnvDuration("IMAGE_EXTRACTOR_TIMEOUT", 2*time.Minute),
		},
		Compression:        compression,
		CompressionWorkers: gcp.GetEnvInt("COMPRESSION_WORKERS", 4),
		StructureWorkers:   gcp.GetEnvInt("STRUCTURE_WORKERS", 1),
		Render: render.Config{
			AssetsDir: gcp.GetEnv("ASSETS_DIR", "assets"),
			Branding: render.Branding{
				Name:    gcp.GetEnv("BRAND_NAME", ""),
				Tagline: gcp.GetEnv("BRAND_TAGLINE", ""),
				Website: gcp.GetEnv("BRAND_WEBSITE", ""),
			},
		},
		Optimize: gcp.GetEnv("OPTIMIZE_OUTPUT", "true") != "false",
	}
}

type textExtractor interface {
	Extract(ctx context.Context, doc models.RawDocument) (models.PageText, error)
}

type documentRenderer interface {
	Render(ctx context.Context, records []models.FinalPageRecord) ([]byte, error)
}

// Pipeline runs one document through extraction, structuring, assembly and rendering.
type Pipeline struct {
	text       textExtractor
	images     pdf.ImageExtractor
	structurer Structurer
	renderer   documentRenderer
	config     PipelineConfig
	logger     *slog.Logger
	closers    []func() error
}

// NewPipeline builds a pipeline from the environment. Enrichment is
// enabled only when a Vertex AI project is configured.
func NewPipeline(ctx context.Context) (*Pipeline, error) {
	config := loadPipelineConfig()
	logger := slog.Default()

	subprocess := pdf.NewSubprocessImageExtractor(config.Subprocess, logger)
	inprocess := pdf.NewPdfcpuImageExtractor(logger)
	images, err := pdf.SelectImageExtractor(config.ImageExtractorMode, subprocess, inprocess, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to select image extractor: %w", err)
	}

	var structurer Structurer
	var closers []func() error
	if sc, ok := loadStructurerConfig(); ok {
		vertexClient, err := gcp.NewVertexClient(ctx, sc.ProjectID, sc.VertexAIRegion, sc.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		structurer = NewVertexStructurer(vertexClient, sc, logger)
		closers = append(closers, vertexClient.Close)
		logger.Info("Structuring enabled.", "projectId", sc.ProjectID, "model", sc.Model)
	} else {
		logger.Info("Structuring disabled, no Vertex AI project configured.")
	}

	p := newPipeline(config, pdf.NewTextExtractor(logger), images, structurer, render.NewRenderer(config.Render, logger), logger)
	p.closers = closers
	return p, nil
}

func newPipeline(config PipelineConfig, text textExtractor, images pdf.ImageExtractor, structurer Structurer, renderer documentRenderer, logger *slog.Logger) *Pipeline {
	if config.CompressionWorkers <= 0 {
		config.CompressionWorkers = 1
	}
	if config.StructureWorkers <= 0 {
		config.StructureWorkers = 1
	}
	if config.Compression.MaxBytes == 0 {
		config.Compression = imaging.DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		text:       text,
		images:     images,
		structurer: structurer,
		renderer:   renderer,
		config:     config,
		logger:     logger,
	}
}

// Close releases collaborator clients.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Probe reports the availability of the image extraction strategy.
func (p *Pipeline) Probe(ctx context.Context) pdf.Availability {
	return p.images.Probe(ctx)
}

// StructuringEnabled reports whether a structurer is configured.
func (p *Pipeline) StructuringEnabled() bool {
	return p.structurer != nil
}

// Run regenerates doc. Only invalid input, password protection and a
// renderer that cannot produce a document are returned as errors; every
// other failure degrades the affected page or image and is logged.
func (p *Pipeline) Run(ctx context.Context, doc models.RawDocument) (*models.Result, error) {
	logCtx := p.logger.With("filename", doc.Filename)
	start := time.Now()

	if err := pdf.ValidateSignature(doc.Data); err != nil {
		logCtx.Warn("Rejected input", "error", err)
		return nil, err
	}

	pages, images, err := p.extract(ctx, logCtx, doc)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.With("pageCount", len(pages))

	compressed := p.compress(ctx, images)
	structured := p.structure(ctx, logCtx, pages, groupByPage(compressed))

	info := CanonicalContact(pages, structured)
	records := Assemble(pages, structured, info)

	out, err := p.renderer.Render(ctx, records)
	if err != nil {
		logCtx.Error("Rendering failed", "error", err)
		return nil, err
	}
	out, err = p.finalize(logCtx, out, len(records))
	if err != nil {
		return nil, err
	}

	logCtx.Info("Document regenerated.",
		"records", len(records), "images", len(images), "bytes", len(out), "duration", time.Since(start))
	return &models.Result{
		PDF:     out,
		Summary: Summarize(records, info),
		Records: records,
	}, nil
}

// extract runs text and image extraction in parallel. Image extraction
// failures are logged and yield no images.
func (p *Pipeline) extract(ctx context.Context, logCtx *slog.Logger, doc models.RawDocument) (models.PageText, []models.ExtractedImage, error) {
	var pages models.PageText
	var images []models.ExtractedImage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = p.text.Extract(gctx, doc)
		return err
	})
	g.Go(func() error {
		extracted, err := p.images.Extract(gctx, doc)
		if err != nil {
			if gctx.Err() == nil {
				logCtx.Warn("Image extraction failed, continuing without images",
					"error", models.NewStageError(models.StageImages, models.ErrExtraction, "image extraction", err))
			}
			return nil
		}
		images = extracted
		return nil
	})
	if err := g.Wait(); err != nil {
		logCtx.Error("Text extraction failed", "error", err)
		return nil, nil, err
	}
	return pages, images, nil
}

// compress bounds every image, writing results into indexed slots.
func (p *Pipeline) compress(ctx context.Context, images []models.ExtractedImage) []models.CompressedImage {
	out := make([]models.CompressedImage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.CompressionWorkers)
	for i, img := range images {
		g.Go(func() error {
			if gctx.Err() != nil {
				out[i] = models.CompressedImage{ExtractedImage: img}
				return nil
			}
			res := imaging.Compress(img.Data, img.Encoding.MIMEType(), p.config.Compression)
			ci := models.CompressedImage{ExtractedImage: img, Width: res.Width, Height: res.Height, Quality: res.Quality}
			ci.Data = res.Data
			if res.Width > 0 {
				ci.Encoding = models.EncodingJPEG
			}
			out[i] = ci
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func groupByPage(images []models.CompressedImage) map[int][]models.CompressedImage {
	byPage := map[int][]models.CompressedImage{}
	for _, img := range images {
		byPage[img.PageNumber] = append(byPage[img.PageNumber], img)
	}
	return byPage
}

// structure enriches each page. The result is indexed by page; nil means
// no structured content for that page.
func (p *Pipeline) structure(ctx context.Context, logCtx *slog.Logger, pages models.PageText, images map[int][]models.CompressedImage) []*models.StructuredPageContent {
	n := max(len(pages), 1)
	out := make([]*models.StructuredPageContent, n)
	if p.structurer == nil {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.StructureWorkers)
	for i := 0; i < n; i++ {
		var text string
		if i < len(pages) {
			text = pages[i]
		}
		g.Go(func() error {
			out[i] = p.structurePage(gctx, logCtx.With("page", i+1), i+1, images[i+1], text)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// structurePage tries the page's images first and its raw text second.
func (p *Pipeline) structurePage(ctx context.Context, logCtx *slog.Logger, page int, images []models.CompressedImage, text string) *models.StructuredPageContent {
	if len(images) > 0 {
		s, err := p.structurer.StructureImages(ctx, page, images)
		switch {
		case err != nil:
			logCtx.Warn("Vision structuring failed",
				"error", models.NewStageError(models.StageStructure, models.ErrEnrichment, "vision", err))
		case s.Usable():
			return s
		default:
			logCtx.Info("Vision structuring below confidence threshold", "length", s.Length())
		}
	}
	if ctx.Err() != nil || text == "" {
		return nil
	}

	s, err := p.structurer.StructureText(ctx, page, text)
	if err != nil {
		logCtx.Warn("Text structuring failed",
			"error", models.NewStageError(models.StageStructure, models.ErrEnrichment, "text", err))
		return nil
	}
	if !s.Usable() {
		logCtx.Info("Text structuring below confidence threshold", "length", s.Length())
		return nil
	}
	return s
}

// finalize compacts the rendered document and checks its page count.
func (p *Pipeline) finalize(logCtx *slog.Logger, out []byte, want int) ([]byte, error) {
	if p.config.Optimize {
		optimized, err := pdf.Optimize(out)
		if err != nil {
			logCtx.Warn("Output optimization failed, keeping unoptimized document", "error", err)
		} else {
			out = optimized
		}
	}
	got, err := pdf.PageCount(out)
	if err != nil {
		logCtx.Warn("Could not verify output page count", "error", err)
		return out, nil
	}
	if got != want {
		return nil, models.RenderError(fmt.Sprintf("rendered %d pages, expected %d", got, want), nil)
	}
	return out, nil
}
