package commands

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfrebrand/internal/gcp"
	"github.com/Lllllllleong/pdfrebrand/internal/raster"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf-rebrand",
	Short: "Regenerate PDFs on a branded template",
	Long: `pdf-rebrand extracts the text and images of a PDF, optionally structures
each page with Gemini on Vertex AI, and lays the content out again on the
branded template with a single contact footer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return err
			}
		} else {
			_ = godotenv.Load() // .env is optional
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file to load (default .env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadRasterConfig() raster.Config {
	return raster.Config{
		Command: gcp.GetEnv("RASTER_COMMAND", "python3"),
		Script:  gcp.GetEnv("RASTER_SCRIPT", "scripts/convert_with_ghostscript.py"),
		DPI:     gcp.GetEnvInt("RASTER_DPI", raster.DefaultDPI),
		Timeout: gcp.GetEnvDuration("RASTER_TIMEOUT", 5*time.Minute),
	}
}
