// Command wsi-patcher opens the interactive tissue rule tuner on a slide.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"wsi-patcher/internal/config"
	"wsi-patcher/internal/slide"
	"wsi-patcher/ui/tuner"

	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: wsi-patcher [-config config.yaml] <slide pyramid dir>")
		os.Exit(1)
	}
	slideDir := flag.Arg(0)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("loading config")
	}

	reader, err := slide.OpenDir(slideDir)
	if err != nil {
		log.Fatal().Err(err).Str("slide", slideDir).Msg("opening slide")
	}
	defer reader.Close()

	pyr := reader.Pyramid()
	level := pyr.BestLevelForDownsample(cfg.Masking.ReferenceDownsample)
	img, err := slide.ReadLevel(context.Background(), reader, level)
	if err != nil {
		log.Fatal().Err(err).Int("level", level).Msg("reading slide level")
	}

	log.Info().
		Str("slide", slideDir).
		Int("level", level).
		Float64("downsample", pyr.Level(level).Downsample).
		Msg("slide loaded")

	fyneApp := app.New()
	win, err := tuner.New(fyneApp, img, cfg, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("creating tuner window")
	}
	win.ShowAndRun()
}
