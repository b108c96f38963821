package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Encoder choices for segment encoding
const (
	EncoderAuto  = "auto"
	EncoderX264  = "libx264"
	EncoderNVENC = "h264_nvenc"
)

// Cache backends for the clip metadata store
const (
	CacheJSON   = "json"
	CacheSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Clip library settings
	Library LibraryConfig `yaml:"library"`

	// Text overlay settings
	Text TextConfig `yaml:"text"`

	// Render settings
	Render RenderConfig `yaml:"render"`

	Server ServerConfig `yaml:"server"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
	Encoder    string `yaml:"encoder"`
}

type LibraryConfig struct {
	Root         string `yaml:"root"`
	CacheBackend string `yaml:"cache_backend"`
	// CachePath defaults to <root>/_cache.json or <root>/_cache.db
	CachePath string `yaml:"cache_path"`
}

type TextConfig struct {
	FontFile  string `yaml:"font_file"`
	HookSize  int    `yaml:"hook_size"`
	LyricSize int    `yaml:"lyric_size"`
	HookWrap  int    `yaml:"hook_wrap"`
	LyricWrap int    `yaml:"lyric_wrap"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings that every component relies on
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	switch c.FFmpeg.Encoder {
	case EncoderAuto, EncoderX264, EncoderNVENC:
	default:
		return fmt.Errorf("unknown encoder %q", c.FFmpeg.Encoder)
	}
	switch c.Library.CacheBackend {
	case CacheJSON, CacheSQLite:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Library.CacheBackend)
	}
	return c.Render.Validate()
}

// CachePath returns the metadata cache location for the configured backend
func (c *Config) CachePath() string {
	if c.Library.CachePath != "" {
		return c.Library.CachePath
	}
	if c.Library.CacheBackend == CacheSQLite {
		return filepath.Join(c.Library.Root, "_cache.db")
	}
	return filepath.Join(c.Library.Root, "_cache.json")
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		WorkDir:     "./work",
		TempDir:     os.TempDir(),
		Concurrency: 1,
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Encoder:    EncoderAuto,
		},
		Library: LibraryConfig{
			Root:         "./broll",
			CacheBackend: CacheJSON,
		},
		Text: TextConfig{
			FontFile:  defaultFontFile(),
			HookSize:  75,
			LyricSize: 65,
			HookWrap:  20,
			LyricWrap: 25,
		},
		Render: DefaultRender(),
		Server: ServerConfig{
			Addr: "127.0.0.1:8788",
		},
	}
}

func defaultFontFile() string {
	switch runtime.GOOS {
	case "darwin":
		return "/System/Library/Fonts/Helvetica.ttc"
	case "windows":
		return "C:/Windows/Fonts/bahnschrift.ttf"
	default:
		return "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	}
}

func findConfigFile() string {
	candidates := []string{
		"./beatcut.yaml",
		"./beatcut.yml",
		filepath.Join(os.Getenv("HOME"), ".beatcut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
