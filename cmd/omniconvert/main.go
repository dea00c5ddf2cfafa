package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/app"
	"omniconvert/internal/convert"
	"omniconvert/internal/handlers"
	"omniconvert/internal/ocr"
	"omniconvert/internal/pdfops"
	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	// Allow common container env var to override chrome path.
	if cfg.Chrome.Path == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.Chrome.Path = v
		}
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	ts := tools.Resolve(cfg.Tools)
	for _, st := range ts.Statuses() {
		if st.Available {
			u.Info("External tool resolved", "tool", st.Name, "path", st.Path)
		} else {
			u.Warn("External tool not found, dependent conversions will fail", "tool", st.Name)
		}
	}

	temp, err := tempfs.NewManager(cfg.Temp.BaseDir)
	if err != nil {
		u.Error("Cannot create temp base directory", "error", err)
		os.Exit(1)
	}
	sweeper := tempfs.NewSweeper(temp, cfg.Temp.SweepInterval.Std(), cfg.Temp.MaxAge.Std())
	sweeper.Start()
	defer sweeper.Stop()

	conv := convert.NewService(temp, ts, cfg.Timeouts, cfg.Chrome)
	svc := &handlers.Services{
		Convert: conv,
		PDF:     pdfops.NewService(temp, ts, cfg.Timeouts),
		OCR:     ocr.NewService(temp, ts, cfg.Timeouts, conv),
		Tools:   ts,
	}

	fiberApp := app.SetupApp(cfg, svc)

	idleConnsClosed := make(chan struct{})
	startServer(fiberApp, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
