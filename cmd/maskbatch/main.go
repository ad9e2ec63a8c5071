// Command maskbatch builds tissue masks for a batch of slides and writes
// them to disk alongside overlay previews.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"wsi-patcher/internal/config"
	"wsi-patcher/internal/label"
	"wsi-patcher/internal/mask"
	"wsi-patcher/internal/maskio"
	"wsi-patcher/internal/meta"
	"wsi-patcher/internal/preview"
	"wsi-patcher/internal/slide"

	"github.com/rs/zerolog"
)

const previewRatio = 0.25

// The Tesseract client is not safe for concurrent use.
var ocrMu sync.Mutex

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	slidesDir := flag.String("slides", "", "Directory of slide pyramid directories (used when no database DSN is configured)")
	slideID := flag.String("slide", "", "Process a single slide ID instead of the whole batch")
	outDir := flag.String("out", "", "Output directory (overrides config)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
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

	store, err := openStore(cfg, *slidesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("opening slide metadata store")
	}

	var ocr *label.Engine
	if cfg.Output.ReadLabels {
		ocr, err = label.NewEngine()
		if err != nil {
			log.Fatal().Err(err).Msg("starting label OCR engine")
		}
		defer ocr.Close()
	}

	ids, err := selectIDs(ctx, store, *slideID)
	if err != nil {
		log.Fatal().Err(err).Msg("listing slides")
	}
	log.Info().Int("slides", len(ids)).Int("workers", cfg.Patching.Workers).Msg("starting mask batch")

	failed := runBatch(ctx, log, cfg, store, ocr, ids)
	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(ids)).Msg("mask batch finished with failures")
		os.Exit(1)
	}
	log.Info().Int("total", len(ids)).Msg("mask batch finished")
}

// openStore selects the metadata source: the configured MySQL store, or an
// in-memory store populated by scanning a directory of slide pyramids.
func openStore(cfg *config.Config, slidesDir string) (meta.Store, error) {
	if cfg.Database.DSN != "" {
		return meta.OpenSQL(cfg.Database.DSN, cfg.Database.Table)
	}
	if slidesDir == "" {
		return nil, fmt.Errorf("no database DSN configured and no -slides directory given")
	}
	return scanSlides(slidesDir)
}

// scanSlides builds a metadata store from a directory whose subdirectories
// each hold one slide pyramid.
func scanSlides(root string) (*meta.MemStore, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading slides directory: %w", err)
	}

	store := meta.NewMemStore()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "pyramid.yaml")); err != nil {
			continue
		}
		store.Put(meta.SlideInfo{ID: e.Name(), Path: dir})
	}
	return store, nil
}

func selectIDs(ctx context.Context, store meta.Store, only string) ([]string, error) {
	if only != "" {
		if _, err := store.Slide(ctx, only); err != nil {
			return nil, err
		}
		return []string{only}, nil
	}
	return store.ListIDs(ctx)
}

func runBatch(ctx context.Context, log zerolog.Logger, cfg *config.Config, store meta.Store, ocr *label.Engine, ids []string) int {
	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for w := 0; w < cfg.Patching.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := processSlide(ctx, log, cfg, store, ocr, id); err != nil {
					log.Error().Err(err).Str("slide", id).Msg("mask build failed")
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupted, draining workers")
			close(jobs)
			wg.Wait()
			return failed + 1
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()
	return failed
}

func processSlide(ctx context.Context, log zerolog.Logger, cfg *config.Config, store meta.Store, ocr *label.Engine, id string) error {
	info, err := store.Slide(ctx, id)
	if err != nil {
		return err
	}

	reader, err := slide.OpenDir(info.Path)
	if err != nil {
		return fmt.Errorf("opening slide %s: %w", id, err)
	}
	defer reader.Close()

	pyr := reader.Pyramid()
	level := pyr.BestLevelForDownsample(cfg.Masking.ReferenceDownsample)
	downsample := pyr.Level(level).Downsample

	img, err := slide.ReadLevel(ctx, reader, level)
	if err != nil {
		return fmt.Errorf("reading level %d of %s: %w", level, id, err)
	}
	defer img.Close()

	smooth := mask.SmoothOptions{
		KernelSize:  cfg.Masking.SmoothKernel,
		Sigma:       cfg.Masking.SmoothSigma,
		MinFraction: cfg.Masking.SmoothMinFraction,
	}
	m, err := mask.BuildMask(img, cfg.Masking.Rules, smooth)
	if err != nil {
		return fmt.Errorf("building mask for %s: %w", id, err)
	}

	if len(info.Annotations) > 0 {
		m.Union(mask.AnnotationMask(img.Cols(), img.Rows(), downsample, info.Annotations))
	}

	maskPath := filepath.Join(cfg.Output.Dir, id+".msk")
	if err := maskio.Save(maskPath, m, downsample); err != nil {
		return fmt.Errorf("saving mask for %s: %w", id, err)
	}

	event := log.Info().
		Str("slide", id).
		Int("level", level).
		Float64("downsample", downsample).
		Float64("tissue", float64(m.Count())/float64(m.Width()*m.Height())).
		Str("mask", maskPath)

	if cfg.Output.SavePreviews {
		previewPath := filepath.Join(cfg.Output.Dir, id+"_preview.png")
		if err := preview.SaveOverlayPNG(previewPath, img, m, previewRatio); err != nil {
			return fmt.Errorf("saving preview for %s: %w", id, err)
		}
		event = event.Str("preview", previewPath)
	}

	if ocr != nil && info.LabelPath != "" {
		ocrMu.Lock()
		text, err := ocr.ReadFile(info.LabelPath)
		ocrMu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("slide", id).Msg("label OCR failed")
		} else {
			event = event.Str("label", text)
		}
	}

	event.Msg("mask built")
	return nil
}
