package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// Availability is the answer of an extractor's probe.
type Availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// ImageExtractor recovers the embedded raster images of a document.
type ImageExtractor interface {
	Name() string
	Probe(ctx context.Context) Availability
	Extract(ctx context.Context, doc models.RawDocument) ([]models.ExtractedImage, error)
}

// Extraction modes accepted by SelectImageExtractor.
const (
	ModeAuto       = "auto"
	ModeSubprocess = "subprocess"
	ModeInProcess  = "inprocess"
)

// SelectImageExtractor picks the strategy for mode. Auto chains the
// subprocess extractor in front of the in-process one.
func SelectImageExtractor(mode string, subprocess, inprocess ImageExtractor, logger *slog.Logger) (ImageExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeAuto:
		return NewChainImageExtractor(subprocess, inprocess, logger), nil
	case ModeSubprocess:
		return subprocess, nil
	case ModeInProcess:
		return inprocess, nil
	default:
		return nil, fmt.Errorf("unknown image extractor mode %q", mode)
	}
}

// ChainImageExtractor uses the primary extractor when its probe succeeds
// and falls back when the primary is unavailable or fails.
type ChainImageExtractor struct {
	primary  ImageExtractor
	fallback ImageExtractor
	logger   *slog.Logger
}

// NewChainImageExtractor creates a ChainImageExtractor.
func NewChainImageExtractor(primary, fallback ImageExtractor, logger *slog.Logger) *ChainImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainImageExtractor{primary: primary, fallback: fallback, logger: logger.With("component", "image-extractor")}
}

func (c *ChainImageExtractor) Name() string {
	return c.primary.Name() + "+" + c.fallback.Name()
}

// Probe is available when either link is.
func (c *ChainImageExtractor) Probe(ctx context.Context) Availability {
	p := c.primary.Probe(ctx)
	if p.Available {
		return p
	}
	f := c.fallback.Probe(ctx)
	f.Message = fmt.Sprintf("%s unavailable (%s); using %s: %s", c.primary.Name(), p.Message, c.fallback.Name(), f.Message)
	return f
}

func (c *ChainImageExtractor) Extract(ctx context.Context, doc models.RawDocument) ([]models.ExtractedImage, error) {
	logCtx := c.logger.With("filename", doc.Filename)

	if avail := c.primary.Probe(ctx); !avail.Available {
		logCtx.Info("Primary image extractor unavailable, using fallback",
			"primary", c.primary.Name(), "reason", avail.Message)
		return c.fallback.Extract(ctx, doc)
	}

	images, err := c.primary.Extract(ctx, doc)
	if err == nil {
		logCtx.Info("Extracted images", "extractor", c.primary.Name(), "count", len(images))
		return images, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logCtx.Warn("Primary image extractor failed, using fallback",
		"primary", c.primary.Name(), "error", err)
	images, err = c.fallback.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	logCtx.Info("Extracted images", "extractor", c.fallback.Name(), "count", len(images))
	return images, nil
}
