// Command enhance runs the correction pipeline on one photo without the
// user interface and writes the result.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"painting-enhancer/internal/app"
	"painting-enhancer/internal/config"
	"painting-enhancer/internal/export"
	"painting-enhancer/internal/imageops"
	"painting-enhancer/internal/logger"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/upscale"
	"painting-enhancer/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	input := flag.String("i", "", "photo to correct")
	sessionPath := flag.String("session", "", "session file to replay instead of -i")
	output := flag.String("o", "", "output file (default: painting_enhanced_<ms> next to the input)")
	target := flag.String("target", pipeline.Upscaled.String(), "last stage to apply: lens, grid, lighting, color or upscale")
	format := flag.String("format", "", "output format: jpeg-95, jpeg-85 or png (default from settings)")
	size := flag.String("size", "", "print size, e.g. 24x30 (default from settings)")
	detect := flag.Bool("detect", false, "auto-detect lens distortion and the painting corners first")
	saveSession := flag.Bool("save-session", false, "write a session file next to the input")
	debug := flag.Bool("debug", false, "log at debug level")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *input == "" && *sessionPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: enhance -i <photo> [-o <output>] [-target <stage>] [-detect]")
		fmt.Fprintln(os.Stderr, "       enhance -session <file.painting.json> [-o <output>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level := logger.ParseLevel(cfg.Log.Level)
	if *debug {
		level = zerolog.DebugLevel
	}
	log := logger.New(os.Stderr, level, cfg.Log.Human)

	if err := run(cfg, log, options{
		input:       *input,
		session:     *sessionPath,
		output:      *output,
		target:      *target,
		format:      *format,
		size:        *size,
		detect:      *detect,
		saveSession: *saveSession,
	}); err != nil {
		log.Error().Err(err).Msg("enhance failed")
		os.Exit(1)
	}
}

type options struct {
	input, session, output string
	target, format, size   string
	detect, saveSession    bool
}

func run(cfg config.Config, log zerolog.Logger, opts options) error {
	stage, err := pipeline.ParseStage(opts.target)
	if err != nil {
		return err
	}
	var outFormat export.Format
	if opts.format != "" {
		if outFormat, err = export.ParseFormat(opts.format); err != nil {
			return err
		}
	}
	if opts.size != "" {
		if _, ok := upscale.LookupPrintSize(opts.size); !ok {
			return fmt.Errorf("unknown print size %q", opts.size)
		}
	}

	ops := imageops.New(log, cfg.Processing.MaxDimension)
	state := app.NewState(cfg, log, ops)
	defer func() {
		state.Close()
		ops.Tracker().LogStats(log)
	}()

	state.On(app.EventProgress, func(data interface{}) {
		if p, ok := data.(app.Progress); ok {
			log.Debug().Str("stage", p.Stage.String()).Int("percent", p.Percent).Msg("progress")
		}
	})

	if opts.session != "" {
		err = state.LoadSession(opts.session)
	} else {
		err = state.LoadImage(opts.input)
	}
	if err != nil {
		return err
	}

	if opts.detect {
		intensity, det := state.DetectLens()
		fmt.Printf("Lens correction: %d (%s)\n", intensity, det.Message)
		if err := state.Apply(pipeline.LensCorrected); err != nil {
			return err
		}
		_, det = state.DetectCorners()
		fmt.Printf("Corners: %s\n", det.Message)
	}

	state.UpdateSettings(func(st *pipeline.Settings) {
		if opts.size != "" {
			st.TargetSize = opts.size
		}
		if outFormat != "" {
			st.OutputFormat = outFormat
		}
	})

	started := time.Now()
	if err := state.Apply(stage); err != nil {
		return err
	}
	fmt.Printf("Applied through %s in %s\n", stage, time.Since(started).Round(time.Millisecond))

	out := opts.output
	if out == "" {
		out = filepath.Join(filepath.Dir(state.ImagePath),
			export.DefaultFilename(state.Pipeline().Settings().OutputFormat, time.Now()))
	}
	if err := state.Export(out, outFormat); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)

	if opts.saveSession {
		if err := state.SaveSession(""); err != nil {
			return err
		}
		fmt.Printf("Session saved to %s\n", state.SessionPath)
	}
	return nil
}
