package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
	"github.com/Lllllllleong/pdfrebrand/internal/raster"
	"github.com/Lllllllleong/pdfrebrand/internal/services"
)

var (
	outputPath  string
	summaryPath string
	grayscale   bool
	timeout     time.Duration
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <input.pdf>",
	Short: "Regenerate a PDF on the branded template",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegenerate,
}

func init() {
	regenerateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output PDF path (default <input>-rebranded.pdf)")
	regenerateCmd.Flags().StringVar(&summaryPath, "summary", "", "write the extraction summary as JSON to this path")
	regenerateCmd.Flags().BoolVar(&grayscale, "grayscale", false, "rasterize the output to a grayscale print-ready PDF")
	regenerateCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall time limit")
	rootCmd.AddCommand(regenerateCmd)
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	inputPath := args[0]
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "-rebranded.pdf"
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// Validate the converter before doing the expensive work.
	var converter *raster.Converter
	if grayscale {
		converter, err = raster.NewConverter(loadRasterConfig(), slog.Default())
		if err != nil {
			return fmt.Errorf("grayscale converter: %w", err)
		}
	}

	pipeline, err := services.NewPipeline(ctx)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Close()

	result, err := pipeline.Run(ctx, models.RawDocument{Filename: filepath.Base(inputPath), Data: data})
	if err != nil {
		stage, message := models.UserMessage(err)
		if stage != "" {
			return fmt.Errorf("%s: %s", stage, message)
		}
		return err
	}

	out := result.PDF
	if converter != nil {
		out, err = converter.Convert(ctx, out)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if summaryPath != "" {
		summary, err := json.MarshalIndent(result.Summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		if err := os.WriteFile(summaryPath, summary, 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages, title %q)\n", outputPath, result.Summary.PageCount, result.Summary.Title)
	return nil
}
