package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/pdfrebrand/internal/services"
)

var (
	handlerInstance *services.RegenerateHandler
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleRegenerate", handleRegenerate)
}

// main is required by the Go Functions Framework.
func main() {}

func handleRegenerate(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handlerInstance, initErr = services.NewRegenerateHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handlerInstance.ServeHTTP(w, r)
}
