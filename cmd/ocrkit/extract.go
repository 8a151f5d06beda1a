package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/ocrkit/config"
	"github.com/wudi/ocrkit/export"
	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/pipeline"
)

var (
	extractFormat    string
	extractLanguages []string
	extractScale     float64
	extractScript    string
	extractParallel  int
	extractOut       string
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Recognize text and print it grouped into paragraphs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		docs, err := pipe.Extract(cmd.Context(), args...)
		if err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if extractOut != "" {
			f, err := os.Create(extractOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return export.Write(out, extractFormat, docs...)
	},
}

// buildPipeline assembles a pipeline from the loaded config plus any
// command-line overrides.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	imgCfg := cfg.ImagingConfig()
	if extractScale > 0 {
		imgCfg.ScaleFactor = extractScale
	}
	languages := cfg.OCR.Languages
	if len(extractLanguages) > 0 {
		languages = extractLanguages
	}

	b := pipeline.NewBuilder().
		WithLoader(imaging.NewLoader(imgCfg)).
		WithThresholds(cfg.Thresholds()).
		WithLanguages(languages...).
		WithDPI(cfg.OCR.DPI).
		WithParallelism(extractParallel).
		WithLogger(observability.NewZerologLogger(log))

	script := cfg.OCR.Script
	if extractScript != "" {
		script = extractScript
	}
	if script != "" {
		source, err := os.ReadFile(script)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		b = b.WithScript(string(source))
	}
	return b.Build(), nil
}

func init() {
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", export.FormatText, "output format: text, json, hocr, markdown, html")
	extractCmd.Flags().StringSliceVarP(&extractLanguages, "languages", "l", nil, "language hints, e.g. eng,deu")
	extractCmd.Flags().Float64Var(&extractScale, "scale", 0, "recognition scale factor in (0, 1]")
	extractCmd.Flags().StringVar(&extractScript, "script", "", "JavaScript post-processor file")
	extractCmd.Flags().IntVarP(&extractParallel, "parallel", "j", 0, "images processed concurrently (default GOMAXPROCS)")
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(extractCmd)
}
