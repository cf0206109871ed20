package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	ftsconverter "github.com/TurbulentGoat/fts-converter"
	"github.com/TurbulentGoat/fts-converter/adapters/vips"
	"github.com/TurbulentGoat/fts-converter/core"
	"github.com/TurbulentGoat/fts-converter/fits"
	"github.com/TurbulentGoat/fts-converter/hooks"
)

func main() {
	var (
		format        string
		autoNormalise bool
		brightness    float64
		contrast      float64
		rotation      float64
		quality       int
		useVips       bool
		verbose       bool
	)

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	rootCmd := &cobra.Command{
		Use:  "ftsconvert",
		Long: `Convert FITS container files to PNG, TIFF, JPG, or BMP`,
	}

	convertCmd := &cobra.Command{
		Use:   "convert [flags] <file>...",
		Short: "Convert one or more FITS files to a raster format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConvert(args, format, autoNormalise, brightness, contrast,
				rotation, quality, useVips, verbose)
		},
	}
	convertCmd.Flags().StringVar(&format, "format", "png", "Output format: png, tiff, jpg, bmp")
	convertCmd.Flags().BoolVar(&autoNormalise, "auto-normalise", true, "Linearly stretch the sample range to 0-255")
	convertCmd.Flags().Float64Var(&brightness, "brightness", 1.0, "Brightness factor (1.0 = unchanged)")
	convertCmd.Flags().Float64Var(&contrast, "contrast", 1.0, "Contrast factor (1.0 = unchanged)")
	convertCmd.Flags().Float64Var(&rotation, "rotate", 0, "Counter-clockwise rotation in degrees")
	convertCmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality (1-100, 0 = default)")
	convertCmd.Flags().BoolVar(&useVips, "vips", false, "Encode through libvips instead of the pure-Go encoders")
	convertCmd.Flags().BoolVar(&verbose, "verbose", false, "Log every pipeline step")

	infoCmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print the primary header of a FITS file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}

	rootCmd.AddCommand(convertCmd, infoCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runConvert(files []string, format string, autoNormalise bool, brightness, contrast, rotation float64, quality int, useVips, verbose bool) error {
	outputFormat := core.ParseFormat(format)
	if outputFormat == core.FormatUnknown {
		return fmt.Errorf("unknown output format %q", format)
	}

	cfg := ftsconverter.DefaultConfig()
	if quality > 0 {
		cfg.JPEGQuality = quality
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	conv := ftsconverter.New(cfg)

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	conv.SetLogger(logger)
	conv.AddHook(hooks.NewLoggingHook(logger))

	if useVips {
		backend := vips.NewBackend(vips.BackendConfig{DefaultQuality: cfg.JPEGQuality})
		defer backend.Shutdown()
		vips.Register(conv.Inner().Registry(), backend)
	}

	requests := make([]core.ConversionRequest, 0, len(files))
	for _, file := range files {
		requests = append(requests, core.ConversionRequest{
			SourcePath:    file,
			OutputFormat:  outputFormat,
			AutoNormalise: autoNormalise,
			Settings: core.AdjustmentSettings{
				Brightness: brightness,
				Contrast:   contrast,
				Rotation:   rotation,
			},
		})
	}

	results := conv.Convert(context.Background(), requests)

	failed := 0
	for _, res := range results {
		if res.Ok() {
			fmt.Printf("ok    %s -> %s (%s)\n", res.SourcePath, res.OutputPath, res.ProcessingTime)
		} else {
			failed++
			fmt.Printf("fail  %s: %v\n", res.SourcePath, res.Err)
		}
	}
	fmt.Printf("done: %d converted, %d failed\n", len(results)-failed, failed)

	// Partial failure is not fatal; only a batch with no successes is.
	if failed == len(results) {
		return fmt.Errorf("all %d conversions failed", failed)
	}
	return nil
}

func runInfo(path string) error {
	_, hdr, err := fits.DecodeFile(path)
	if hdr == nil {
		return err
	}
	for _, card := range hdr.Cards() {
		if card.Comment != "" {
			fmt.Printf("%-8s = %-20s / %s\n", card.Keyword, card.Value, card.Comment)
		} else {
			fmt.Printf("%-8s = %s\n", card.Keyword, card.Value)
		}
	}
	return nil
}
