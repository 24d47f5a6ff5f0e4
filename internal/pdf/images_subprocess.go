package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// Test seams.
var (
	lookPath    = exec.LookPath
	execCommand = exec.CommandContext
)

// SubprocessConfig configures the external image extraction helper.
type SubprocessConfig struct {
	Command string // interpreter, e.g. python3
	Script  string // helper script path; may be empty when Command is self-contained
	Timeout time.Duration
}

// SubprocessImageExtractor runs an external helper as
// `<command> [script] <pdf-path> <out-dir>` and reads its JSON report from stdout.
type SubprocessImageExtractor struct {
	config SubprocessConfig
	logger *slog.Logger
}

// NewSubprocessImageExtractor creates a SubprocessImageExtractor.
func NewSubprocessImageExtractor(config SubprocessConfig, logger *slog.Logger) *SubprocessImageExtractor {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessImageExtractor{config: config, logger: logger.With("component", "subprocess-image-extractor")}
}

func (s *SubprocessImageExtractor) Name() string { return "subprocess" }

// Probe checks that the interpreter is on PATH and the helper script exists.
func (s *SubprocessImageExtractor) Probe(ctx context.Context) Availability {
	if s.config.Command == "" {
		return Availability{Message: "no extractor command configured"}
	}
	path, err := lookPath(s.config.Command)
	if err != nil {
		return Availability{Message: fmt.Sprintf("%s not found on PATH", s.config.Command)}
	}
	if s.config.Script != "" {
		if _, err := os.Stat(s.config.Script); err != nil {
			return Availability{Message: fmt.Sprintf("helper script %s not found", s.config.Script)}
		}
	}
	return Availability{Available: true, Message: "using " + path}
}

type helperImage struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
	Page     int    `json:"page"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MIMEType string `json:"mimeType"`
}

type helperReport struct {
	Success bool          `json:"success"`
	Images  []helperImage `json:"images"`
	Error   string        `json:"error"`
}

func (s *SubprocessImageExtractor) Extract(ctx context.Context, doc models.RawDocument) ([]models.ExtractedImage, error) {
	tmpDir, err := os.MkdirTemp("", "pdf-images-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}
	outDir := filepath.Join(tmpDir, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var args []string
	if s.config.Script != "" {
		args = append(args, s.config.Script)
	}
	args = append(args, pdfPath, outDir)

	cmd := execCommand(runCtx, s.config.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("image helper timed out after %s", s.config.Timeout)
	}

	var report helperReport
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &report); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("image helper failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to parse image helper output: %w", err)
	}
	if !report.Success {
		msg := report.Error
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}
		return nil, fmt.Errorf("image helper reported failure: %s", msg)
	}

	images := make([]models.ExtractedImage, 0, len(report.Images))
	for _, hi := range report.Images {
		img, err := decodeHelperImage(hi)
		if err != nil {
			s.logger.Warn("Skipping image from helper",
				"filename", doc.Filename, "image", hi.Filename, "page", hi.Page,
				"error", models.NewStageError(models.StageImages, models.ErrDecode, "helper image", err))
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

func decodeHelperImage(hi helperImage) (models.ExtractedImage, error) {
	if hi.Page < 1 {
		return models.ExtractedImage{}, fmt.Errorf("invalid page number %d", hi.Page)
	}
	data, err := base64.StdEncoding.DecodeString(hi.Base64)
	if err != nil {
		return models.ExtractedImage{}, fmt.Errorf("invalid base64: %w", err)
	}
	if len(data) == 0 {
		return models.ExtractedImage{}, fmt.Errorf("empty image")
	}

	mime := hi.MIMEType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	var enc models.Encoding
	switch {
	case strings.Contains(mime, "jpeg"), strings.Contains(mime, "jpg"):
		enc = models.EncodingJPEG
	case strings.Contains(mime, "png"):
		enc = models.EncodingPNG
	default:
		return models.ExtractedImage{}, fmt.Errorf("unsupported image type %q", mime)
	}

	return models.ExtractedImage{
		Data:       data,
		Encoding:   enc,
		PageNumber: hi.Page,
		Name:       hi.Filename,
	}, nil
}
