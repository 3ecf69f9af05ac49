package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guideshots.yaml")
	content := `
assets_dir: /opt/guide
tool_timeout: 30s
legacy_frame_names: true
commands:
  optimise_gif: "gifsicle -O2 --batch {input}"
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/guide", cfg.AssetsDir)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.True(t, cfg.LegacyFrameNames)
	assert.Equal(t, "gifsicle -O2 --batch {input}", cfg.Commands["optimise_gif"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched keys keep their defaults.
	assert.Equal(t, "contrast", cfg.BlankCheck)
	assert.Equal(t, "/opt/guide/resources/models/cube.scad", cfg.ModelPath("cube.scad"))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guideshots.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tool_timeot: 1s\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero tool timeout", func(c *Config) { c.ToolTimeout = 0 }, true},
		{"unknown checker", func(c *Config) { c.BlankCheck = "ocr" }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"empty images dir", func(c *Config) { c.ImagesDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
