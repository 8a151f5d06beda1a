package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/layout"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, imaging.DefaultScaleFactor, cfg.Imaging.Scale)
	assert.Equal(t, layout.DefaultThresholds(), cfg.Thresholds())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocrkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
  job_retention: 5m
ocr:
  languages: [eng, deu]
imaging:
  scale: 0.25
  grayscale: true
layout:
  x_gap: 40
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Minute, cfg.Server.JobRetention)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.Equal(t, 0.25, cfg.Imaging.Scale)
	assert.True(t, cfg.Imaging.Grayscale)

	th := cfg.Thresholds()
	assert.Equal(t, 40.0, th.XGap)
	// Unset thresholds keep their defaults.
	assert.Equal(t, layout.DefaultThresholds().YGap, th.YGap)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OCRKIT_SERVER_ADDRESS", ":7070")
	t.Setenv("OCRKIT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsBadScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocrkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imaging:\n  scale: 1.5\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "imaging.scale")
}

func TestServerConfigConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	sc := cfg.ServerConfig()
	assert.Equal(t, cfg.Server.Address, sc.Addr)
	assert.Equal(t, cfg.OCR.Languages, sc.DefaultLanguages)
	assert.Equal(t, cfg.Imaging.Scale, sc.DefaultScale)
}
