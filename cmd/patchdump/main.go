// Command patchdump imports a shuffled grid of patches from one slide and
// writes the usable ones to disk as PNGs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wsi-patcher/internal/config"
	"wsi-patcher/internal/imaging"
	"wsi-patcher/internal/maskio"
	"wsi-patcher/internal/patch"
	"wsi-patcher/internal/slide"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	slideDir := flag.String("slide", "", "Path to a slide pyramid directory")
	maskPath := flag.String("mask", "", "Path to the slide's tissue mask (from maskbatch)")
	outDir := flag.String("out", "", "Output directory (overrides config)")
	maxPatches := flag.Int("max", 0, "Stop after this many usable patches (0 = no limit)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	if *slideDir == "" || *maskPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: patchdump -slide <pyramid dir> -mask <mask file> [-config config.yaml] [-out dir] [-max N]")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("loading config")
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		log.Fatal().Err(err).Msg("creating output directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *slideDir, *maskPath, *maxPatches); err != nil {
		log.Fatal().Err(err).Msg("patch dump failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config, slideDir, maskPath string, maxPatches int) error {
	reader, err := slide.OpenDir(slideDir)
	if err != nil {
		return fmt.Errorf("opening slide: %w", err)
	}
	defer reader.Close()

	tissue, downsample, err := maskio.Load(maskPath)
	if err != nil {
		return fmt.Errorf("loading mask: %w", err)
	}

	imp := patch.NewImporter(reader, patch.Options{
		UsableThreshold: cfg.Patching.UsableThreshold,
		Logger:          log,
	})
	imp.SetTissueMask(tissue, downsample)

	pyr := reader.Pyramid()
	coords := patch.Coordinates(pyr, cfg.Patching.IntervalMicrons, cfg.Patching.PhysSizeMicrons, cfg.Patching.Seed)
	reqs := make([]patch.Request, len(coords))
	for i, origin := range coords {
		reqs[i] = patch.SquareRequest(origin, cfg.Patching.PhysSizeMicrons, cfg.Patching.TargetPixels)
	}
	log.Info().
		Int("candidates", len(reqs)).
		Int("workers", cfg.Patching.Workers).
		Float64("physSizeMicrons", cfg.Patching.PhysSizeMicrons).
		Msg("importing patch grid")

	name := filepath.Base(slideDir)
	usable, skipped, failed := 0, 0, 0
	for _, br := range imp.ImportBatch(ctx, reqs, cfg.Patching.Workers) {
		if br.Err != nil {
			failed++
			log.Debug().Err(br.Err).Int("index", br.Index).Msg("patch import failed")
			continue
		}
		if !br.Patch.Usable {
			skipped++
			br.Patch.Close()
			continue
		}
		if maxPatches > 0 && usable >= maxPatches {
			br.Patch.Close()
			continue
		}

		img, err := imaging.ToImage(br.Patch.Pixels)
		br.Patch.Close()
		if err != nil {
			return fmt.Errorf("converting patch %d: %w", br.Index, err)
		}
		origin := reqs[br.Index].Origin
		path := filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_%04d_%.0f_%.0f.png", name, usable, origin.X, origin.Y))
		if err := imaging.SavePNG(path, img); err != nil {
			return fmt.Errorf("saving patch %d: %w", br.Index, err)
		}
		usable++
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info().
		Int("usable", usable).
		Int("skipped", skipped).
		Int("failed", failed).
		Str("dir", cfg.Output.Dir).
		Msg("patch dump finished")
	if failed > 0 && usable == 0 {
		return fmt.Errorf("all %d patch imports failed", failed)
	}
	return nil
}
