package main

import (
	"context"
	"embed"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/mweinbach/agent-coworker/internal/devprobe"
	"github.com/mweinbach/agent-coworker/internal/store"
	"github.com/mweinbach/agent-coworker/internal/supervisor"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "coworker"})

	dataDir := store.DataDir()
	state := store.NewStateStore(dataDir)
	transcripts := store.NewTranscriptLog(dataDir)

	probe := devprobe.NewHub(logger)
	probe.MaybeStart()

	registry := supervisor.NewRegistry(supervisor.Config{
		Logger:       logger,
		OnDiagnostic: probe.Publish,
	})

	app := NewApp(registry, state, transcripts)
	distFS, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		logger.Fatal("init assets", "err", err)
	}

	if err := wails.Run(&options.App{
		Title:  "Coworker",
		Width:  1200,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: distFS,
		},
		OnStartup: app.startup,
		OnShutdown: func(ctx context.Context) {
			app.shutdown(ctx)
			probe.Close()
		},
		Bind: []interface{}{
			app,
		},
	}); err != nil {
		logger.Fatal("run app", "err", err)
	}
}
