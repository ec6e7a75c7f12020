// Package config loads and validates raster2vec settings from a JSON file,
// a .env file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ironsheep/raster2vec/internal/export"
	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/imaging"
	"github.com/ironsheep/raster2vec/internal/polygonize"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

// Environment variables read by ApplyEnv.
const (
	EnvTileSize  = "RASTER2VEC_TILE_SIZE"
	EnvWorkers   = "RASTER2VEC_WORKERS"
	EnvModelPath = "RASTER2VEC_MODEL_PATH"
	EnvOutputDir = "RASTER2VEC_OUTPUT_DIR"
	EnvLogLevel  = "RASTER2VEC_LOG_LEVEL"
	EnvSourceCRS = "RASTER2VEC_SOURCE_CRS"
	EnvTargetCRS = "RASTER2VEC_TARGET_CRS"
	EnvTransform = "RASTER2VEC_TRANSFORM"
	EnvGCPFile   = "RASTER2VEC_GCP_FILE"
)

// Config holds the application configuration
type Config struct {
	Tiling     TilingConfig      `json:"tiling"`
	Extract    polygonize.Config `json:"extract"`
	Classifier ClassifierConfig  `json:"classifier"`
	Georef     GeorefConfig      `json:"georef"`
	Pipeline   PipelineConfig    `json:"pipeline"`
	Output     OutputConfig      `json:"output"`
	LogLevel   string            `json:"log_level"`
}

// TilingConfig holds configuration for splitting source rasters
type TilingConfig struct {
	Size      int     `json:"size"`
	SkipEmpty bool    `json:"skip_empty"`
	Policy    string  `json:"policy"`
	Format    string  `json:"format"`
	Quality   float32 `json:"quality"`
	TileDir   string  `json:"tile_dir"`
}

// ClassifierConfig holds the location of the classifier artifact
type ClassifierConfig struct {
	ModelPath string `json:"model_path"`
}

// GeorefConfig holds the pixel-to-map transform and optional reprojection.
// A GCPFile takes precedence over Transform.
type GeorefConfig struct {
	Transform georef.Affine `json:"transform"`
	GCPFile   string        `json:"gcp_file,omitempty"`
	WorldFile bool          `json:"world_file"`
	SourceCRS string        `json:"source_crs,omitempty"`
	TargetCRS string        `json:"target_crs,omitempty"`
}

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	Workers int `json:"workers"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir         string `json:"dir"`
	Format      string `json:"format"`
	OffsetsFile string `json:"offsets_file,omitempty"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Tiling: TilingConfig{
			Size:    tiling.DefaultTileSize,
			Policy:  tiling.PolicyPad.String(),
			Format:  string(imaging.FormatPNG),
			TileDir: "./tiles",
		},
		Extract: polygonize.DefaultConfig(),
		Georef: GeorefConfig{
			Transform: georef.Identity(),
		},
		Output: OutputConfig{
			Dir:    "./output",
			Format: string(export.FormatGeoJSON),
		},
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load reads filename when it is not empty (defaults otherwise), applies
// environment overrides and validates the result.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		var err error
		if cfg, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads .env files (the working directory's .env when none are
// given; a missing file is not an error) and overrides settings from
// RASTER2VEC_* variables.
func (c *Config) ApplyEnv(envFiles ...string) error {
	_ = godotenv.Load(envFiles...)

	if v := os.Getenv(EnvTileSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTileSize, err)
		}
		c.Tiling.Size = n
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		c.Pipeline.Workers = n
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Classifier.ModelPath = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvSourceCRS); v != "" {
		c.Georef.SourceCRS = v
	}
	if v := os.Getenv(EnvTargetCRS); v != "" {
		c.Georef.TargetCRS = v
	}
	if v := os.Getenv(EnvTransform); v != "" {
		t, err := georef.ParseTransform(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTransform, err)
		}
		c.Georef.Transform = t
	}
	if v := os.Getenv(EnvGCPFile); v != "" {
		c.Georef.GCPFile = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tiling.Size <= 0 {
		return fmt.Errorf("tiling.size must be positive")
	}

	if _, err := tiling.ParsePolicy(c.Tiling.Policy); err != nil {
		return fmt.Errorf("tiling.policy: %w", err)
	}

	if _, err := imaging.ParseFormat(c.Tiling.Format); err != nil {
		return fmt.Errorf("tiling.format: %w", err)
	}

	if c.Tiling.Quality < 0 || c.Tiling.Quality > 100 {
		return fmt.Errorf("tiling.quality must be between 0 and 100")
	}

	if err := c.Extract.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers cannot be negative")
	}

	if (c.Georef.SourceCRS == "") != (c.Georef.TargetCRS == "") {
		return fmt.Errorf("georef.source_crs and georef.target_crs must be set together")
	}

	if _, err := c.CRS(); err != nil {
		return fmt.Errorf("georef: %w", err)
	}

	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	switch c.LogLevel {
	case "", "debug", "info", "error":
	default:
		return fmt.Errorf("log_level must be debug, info or error")
	}

	return nil
}

// TilingOptions converts the tiling section into tiler options.
func (c *Config) TilingOptions() (tiling.Options, error) {
	policy, err := tiling.ParsePolicy(c.Tiling.Policy)
	if err != nil {
		return tiling.Options{}, err
	}
	format, err := imaging.ParseFormat(c.Tiling.Format)
	if err != nil {
		return tiling.Options{}, err
	}
	return tiling.Options{
		Size:      c.Tiling.Size,
		SkipEmpty: c.Tiling.SkipEmpty,
		Policy:    policy,
		Format:    format,
		Quality:   c.Tiling.Quality,
	}, nil
}

// OutputFormat returns the parsed output format.
func (c *Config) OutputFormat() (export.Format, error) {
	return export.ParseFormat(c.Output.Format)
}

// CRS builds the configured reprojection, or nil when none is set.
func (c *Config) CRS() (*georef.CRSTransform, error) {
	if c.Georef.SourceCRS == "" && c.Georef.TargetCRS == "" {
		return nil, nil
	}
	return georef.NewCRSTransform(c.Georef.SourceCRS, c.Georef.TargetCRS)
}

// PixelTransform returns the pixel-to-map transform: fitted from the
// control point file when one is set, the configured Transform otherwise.
// The second result is the RMS residual of the fit in map units.
func (c *Config) PixelTransform() (georef.Affine, float64, error) {
	if c.Georef.GCPFile == "" {
		return c.Georef.Transform, 0, nil
	}
	return georef.LoadGCPTransform(c.Georef.GCPFile)
}

// Debug reports whether per-tile debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// NewLogger returns a logger writing to w, or a discarding logger when the
// log level is "error".
func (c *Config) NewLogger(w io.Writer, prefix string) *log.Logger {
	if c.LogLevel == "error" {
		w = io.Discard
	}
	return log.New(w, prefix, log.Ldate|log.Ltime)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "raster2vec", "config.json")
}
