// Package raster invokes the external grayscale rasterization tool.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// Accepted DPI range of the conversion tool.
const (
	MinDPI     = 72
	MaxDPI     = 2400
	DefaultDPI = 300
)

// Test seams.
var (
	lookPath    = exec.LookPath
	execCommand = exec.CommandContext
)

// maxStderr bounds the error stream kept for error messages.
const maxStderr = 4096

// Config configures the Converter.
type Config struct {
	Command string // e.g. python3
	Script  string // conversion script; may be empty
	DPI     int
	Timeout time.Duration
}

// Converter turns a rendered PDF into a grayscale, print-ready PDF by
// running `<command> [script] <in> <out> --dpi <n>`.
type Converter struct {
	config Config
	logger *slog.Logger
}

// NewConverter validates config and creates a Converter.
func NewConverter(config Config, logger *slog.Logger) (*Converter, error) {
	if config.Command == "" {
		return nil, errors.New("raster command is not configured")
	}
	if config.DPI == 0 {
		config.DPI = DefaultDPI
	}
	if config.DPI < MinDPI || config.DPI > MaxDPI {
		return nil, fmt.Errorf("dpi %d outside %d..%d", config.DPI, MinDPI, MaxDPI)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{config: config, logger: logger.With("component", "raster")}, nil
}

// Probe returns an error describing why the tool cannot run.
func (c *Converter) Probe(ctx context.Context) error {
	if _, err := lookPath(c.config.Command); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", c.config.Command, err)
	}
	if c.config.Script != "" {
		if _, err := os.Stat(c.config.Script); err != nil {
			return fmt.Errorf("conversion script: %w", err)
		}
	}
	return nil
}

// Convert runs the tool on data. Success requires a zero exit status and a
// non-empty output file; anything else is a ConversionFailure carrying the
// tool's error stream. Temporary files are removed on every path.
func (c *Converter) Convert(ctx context.Context, data []byte) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pdf-raster-*")
	if err != nil {
		return nil, models.ConversionError("failed to create temp dir", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input.pdf")
	outPath := filepath.Join(tmpDir, "output.pdf")
	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, models.ConversionError("failed to write input", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var args []string
	if c.config.Script != "" {
		args = append(args, c.config.Script)
	}
	args = append(args, inPath, outPath, "--dpi", strconv.Itoa(c.config.DPI))

	cmd := execCommand(runCtx, c.config.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	logCtx := c.logger.With("dpi", c.config.DPI, "duration", time.Since(start))

	if runCtx.Err() == context.DeadlineExceeded {
		logCtx.Error("Conversion timed out", "stderr", tail(stderr.String()))
		return nil, models.ConversionError(fmt.Sprintf("conversion timed out after %s", c.config.Timeout),
			fmt.Errorf("%w: %s", runCtx.Err(), tail(stderr.String())))
	}
	if runErr != nil {
		logCtx.Error("Conversion failed", "error", runErr, "stderr", tail(stderr.String()))
		return nil, models.ConversionError("conversion tool failed", fmt.Errorf("%w: %s", runErr, tail(stderr.String())))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, models.ConversionError("conversion produced no output", fmt.Errorf("%w: %s", err, tail(stderr.String())))
	}
	if len(out) == 0 {
		return nil, models.ConversionError("conversion produced an empty file", errors.New(tail(stderr.String())))
	}

	logCtx.Info("Converted document", "inputBytes", len(data), "outputBytes", len(out))
	return out, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
