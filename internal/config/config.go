package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no -config flag is given.
const DefaultFile = "guideshots.yaml"

type Config struct {
	// AssetsDir is the plug-in folder; the other directories are relative to it.
	AssetsDir   string `yaml:"assets_dir"`
	ModelsDir   string `yaml:"models_dir"`
	ImagesDir   string `yaml:"images_dir"`
	ArticlesDir string `yaml:"articles_dir"`
	ScratchDir  string `yaml:"scratch_dir"`

	HostURL     string        `yaml:"host_url"`
	HostTimeout time.Duration `yaml:"host_timeout"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	LegacyFrameNames bool   `yaml:"legacy_frame_names"`
	KeepScratch      bool   `yaml:"keep_scratch"`
	BlankCheck       string `yaml:"blank_check"`
	ShowStats        bool   `yaml:"show_stats"`
	// StatsLog, when set, gets one line appended per run with the report totals.
	StatsLog string `yaml:"stats_log"`

	// Commands overrides entries of the built-in command template table.
	Commands map[string]string `yaml:"commands"`

	Log    LoggerConfig `yaml:"log"`
	Tracer TracerConfig `yaml:"tracer"`

	BuildVersion string `yaml:"-"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

func Default() *Config {
	return &Config{
		AssetsDir:   ".",
		ModelsDir:   filepath.Join("resources", "models"),
		ImagesDir:   filepath.Join("resources", "articles", "images"),
		ArticlesDir: filepath.Join("resources", "articles"),
		HostURL:     "ws://127.0.0.1:8765/host",
		HostTimeout: 2 * time.Minute,
		ToolTimeout: 5 * time.Minute,
		BlankCheck:  "contrast",
		Log: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{Exporter: "noop"},
	}
}

// Load reads a YAML config on top of the defaults. A missing DefaultFile is
// not an error; a missing explicitly named file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.AssetsDir == "" {
		errs = append(errs, errors.New("assets_dir must not be empty"))
	}
	if c.ModelsDir == "" {
		errs = append(errs, errors.New("models_dir must not be empty"))
	}
	if c.ImagesDir == "" {
		errs = append(errs, errors.New("images_dir must not be empty"))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tool_timeout must be positive, got %s", c.ToolTimeout))
	}
	if c.HostTimeout <= 0 {
		errs = append(errs, fmt.Errorf("host_timeout must be positive, got %s", c.HostTimeout))
	}
	switch c.BlankCheck {
	case "", "contrast", "none":
	default:
		errs = append(errs, fmt.Errorf("blank_check: unknown checker %q", c.BlankCheck))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Resolve joins a directory from the config with AssetsDir unless it is absolute.
func (c *Config) Resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.AssetsDir, dir)
}

func (c *Config) ModelPath(rel string) string {
	return filepath.Join(c.Resolve(c.ModelsDir), rel)
}

func (c *Config) ImagePath(rel string) string {
	return filepath.Join(c.Resolve(c.ImagesDir), rel)
}
