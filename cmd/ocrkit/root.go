// Command ocrkit extracts text from images: recognize, group into
// paragraphs, annotate, and serve the same flow over HTTP.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wudi/ocrkit/config"
	_ "github.com/wudi/ocrkit/ocr/tesseract"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"

	cfgFile  string
	logLevel string
	pretty   bool

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "ocrkit",
	Short:        "Extract text from images",
	SilenceUsage: true,
	Long: `ocrkit runs OCR on screenshots and scans, groups the recognized words
into lines and paragraphs by spacing and font size, and emits the result
as text, JSON, hOCR, or an annotated image.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		log, err = newLogger()
		return err
	},
}

func newLogger() (zerolog.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
	}
	var out io.Writer = os.Stderr
	if pretty || cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ocrkit.yaml in . or /etc/ocrkit)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable console logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
