package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfrebrand/internal/raster"
	"github.com/Lllllllleong/pdfrebrand/internal/services"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which external collaborators are available",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	pipeline, err := services.NewPipeline(ctx)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Close()

	images := pipeline.Probe(ctx)
	fmt.Fprintf(w, "image extraction: %s\n", status(images.Available, images.Message))
	fmt.Fprintf(w, "structuring:      %s\n", status(pipeline.StructuringEnabled(), "no Vertex AI project configured"))

	converter, err := raster.NewConverter(loadRasterConfig(), slog.Default())
	if err == nil {
		err = converter.Probe(ctx)
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	fmt.Fprintf(w, "grayscale:        %s\n", status(err == nil, msg))
	return nil
}

func status(ok bool, message string) string {
	if ok {
		return "available"
	}
	if message == "" {
		return "unavailable"
	}
	return "unavailable (" + message + ")"
}
