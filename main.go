// Package main provides the entry point for the Painting Enhancer application.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"

	"painting-enhancer/internal/app"
	"painting-enhancer/internal/config"
	"painting-enhancer/internal/imageops"
	"painting-enhancer/internal/logger"
	"painting-enhancer/internal/version"
	"painting-enhancer/ui/mainwindow"
	"painting-enhancer/ui/prefs"
)

const appID = "io.github.painting-enhancer"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The logger itself passes everything; the global level filters, so a
	// config reload can change it.
	log := logger.New(os.Stderr, zerolog.TraceLevel, cfg.Log.Human)
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	log.Info().Str("version", version.Version).Str("config", *configPath).Msg("starting")

	ops := imageops.New(log, cfg.Processing.MaxDimension)
	state := app.NewState(cfg, log, ops)

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.StudioTheme{})

	win := mainwindow.New(fyneApp, state, prefs.Load(), log)

	if flag.NArg() > 0 {
		win.OpenPath(flag.Arg(0))
	} else {
		win.RestoreLastImage()
	}

	watcher := setupConfigReload(*configPath, state, log)
	if watcher != nil {
		defer watcher.Stop()
	}

	win.ShowAndRun()
	ops.Tracker().LogStats(log)
}

// setupConfigReload applies edits to the configuration file while the
// application runs.
func setupConfigReload(path string, state *app.State, log zerolog.Logger) *app.ConfigWatcher {
	watcher := app.NewConfigWatcher(path, 2*time.Second)
	if watcher == nil {
		return nil
	}
	watcher.OnChange(func(cfg config.Config) {
		fyne.Do(func() { state.ApplyConfig(cfg) })
	})
	watcher.OnError(func(err error) {
		log.Warn().Err(err).Str("path", watcher.Path()).Msg("configuration not reloaded")
	})
	watcher.Start()
	log.Info().Str("path", path).Msg("watching configuration")
	return watcher
}
