// Package config loads settings from an optional YAML file and OCRKIT_*
// environment variables, with defaults that mirror the library defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/jobs"
	"github.com/wudi/ocrkit/layout"
	"github.com/wudi/ocrkit/server"
)

// Config is the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Imaging ImagingConfig `mapstructure:"imaging"`
	Layout  LayoutConfig  `mapstructure:"layout"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	JobRetention    time.Duration `mapstructure:"job_retention"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OCRConfig contains recognition settings.
type OCRConfig struct {
	Languages []string `mapstructure:"languages"`
	DPI       int      `mapstructure:"dpi"`
	// Script is the path of a JavaScript post-processor applied after grouping.
	Script string `mapstructure:"script"`
}

// ImagingConfig contains image preparation settings.
type ImagingConfig struct {
	Scale        float64 `mapstructure:"scale"`
	MaxDimension int     `mapstructure:"max_dimension"`
	Grayscale    bool    `mapstructure:"grayscale"`
	HighQuality  bool    `mapstructure:"high_quality"`
}

// LayoutConfig contains the grouping thresholds, in recognition-scale pixels.
type LayoutConfig struct {
	XGap             float64 `mapstructure:"x_gap"`
	YGap             float64 `mapstructure:"y_gap"`
	FontDelta        float64 `mapstructure:"font_delta"`
	ParagraphYGap    float64 `mapstructure:"paragraph_y_gap"`
	ParagraphXIndent float64 `mapstructure:"paragraph_x_indent"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration. When file is empty, ocrkit.yaml is searched in the
// working directory and /etc/ocrkit; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OCRKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ocrkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ocrkit")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_upload_size", server.DefaultMaxUploadBytes)
	v.SetDefault("server.job_retention", jobs.DefaultRetention)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.dpi", 0)

	v.SetDefault("imaging.scale", imaging.DefaultScaleFactor)
	v.SetDefault("imaging.max_dimension", 0)
	v.SetDefault("imaging.grayscale", false)
	v.SetDefault("imaging.high_quality", false)

	t := layout.DefaultThresholds()
	v.SetDefault("layout.x_gap", t.XGap)
	v.SetDefault("layout.y_gap", t.YGap)
	v.SetDefault("layout.font_delta", t.FontDelta)
	v.SetDefault("layout.paragraph_y_gap", t.ParagraphYGap)
	v.SetDefault("layout.paragraph_x_indent", t.ParagraphXIndent)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Imaging.Scale <= 0 || c.Imaging.Scale > 1 {
		return fmt.Errorf("imaging.scale must be in (0, 1], got %v", c.Imaging.Scale)
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}
	if c.Layout.XGap < 0 || c.Layout.YGap < 0 || c.Layout.FontDelta < 0 {
		return fmt.Errorf("layout thresholds must be non-negative")
	}
	return nil
}

// Thresholds converts the layout section to layout.Thresholds.
func (c *Config) Thresholds() layout.Thresholds {
	return layout.Thresholds{
		XGap:             c.Layout.XGap,
		YGap:             c.Layout.YGap,
		FontDelta:        c.Layout.FontDelta,
		ParagraphYGap:    c.Layout.ParagraphYGap,
		ParagraphXIndent: c.Layout.ParagraphXIndent,
	}
}

// ImagingConfig converts the imaging section to an imaging.Config.
func (c *Config) ImagingConfig() imaging.Config {
	return imaging.Config{
		ScaleFactor:  c.Imaging.Scale,
		MaxDimension: c.Imaging.MaxDimension,
		Grayscale:    c.Imaging.Grayscale,
		HighQuality:  c.Imaging.HighQuality,
	}
}

// ServerConfig converts to the server package's Config.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:             c.Server.Address,
		MaxUploadBytes:   c.Server.MaxUploadSize,
		DefaultLanguages: c.OCR.Languages,
		DefaultScale:     c.Imaging.Scale,
		Thresholds:       c.Thresholds(),
		JobRetention:     c.Server.JobRetention,
		ShutdownTimeout:  c.Server.ShutdownTimeout,
	}
}
