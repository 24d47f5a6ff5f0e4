package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/pdfrebrand/internal/services"
)

var (
	regeneratorInstance *services.RegeneratorFunction
	once                sync.Once
	initErr             error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("RegenerateOnUpload", regenerateOnUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// regenerateOnUpload handles a GCS object finalize event.
func regenerateOnUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		regeneratorInstance, initErr = services.NewRegenerator(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs its own failures; returning the error marks the invocation failed.
	return regeneratorInstance.Process(ctx, gcsEvent)
}
