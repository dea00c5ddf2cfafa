package utils

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration, loaded once at startup.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logger      LoggerConfig      `yaml:"logger"`
	Limits      LimitsConfig      `yaml:"limits"`
	Temp        TempConfig        `yaml:"temp"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Tools       ToolsConfig       `yaml:"tools"`
	Chrome      ChromeConfig      `yaml:"chrome"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	Prefork bool   `yaml:"prefork"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Level      string `yaml:"level"`
}

type LimitsConfig struct {
	// MaxUploadMB caps the multipart request body before any processing.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type TempConfig struct {
	// BaseDir is the parent directory for per-job scratch directories.
	// Empty means os.TempDir()/omniconvert.
	BaseDir       string   `yaml:"base_dir"`
	SweepInterval Duration `yaml:"sweep_interval"`
	MaxAge        Duration `yaml:"max_age"`
}

type TimeoutsConfig struct {
	DefaultSecs  int `yaml:"default_secs"`
	DocumentSecs int `yaml:"document_secs"`
	VideoSecs    int `yaml:"video_secs"`
	OCRSecs      int `yaml:"ocr_secs"`
}

// ToolsConfig holds optional explicit paths for the external binaries.
// Empty entries are resolved from PATH and platform-conventional locations.
type ToolsConfig struct {
	Soffice      string `yaml:"soffice"`
	FFmpeg       string `yaml:"ffmpeg"`
	FFprobe      string `yaml:"ffprobe"`
	Ghostscript  string `yaml:"ghostscript"`
	QPDF         string `yaml:"qpdf"`
	Tesseract    string `yaml:"tesseract"`
	OCRmyPDF     string `yaml:"ocrmypdf"`
	Pandoc       string `yaml:"pandoc"`
	EbookConvert string `yaml:"ebook_convert"`
	Magick       string `yaml:"magick"`
}

type ChromeConfig struct {
	Path      string `yaml:"path"`
	NoSandbox bool   `yaml:"no_sandbox"`
}

type RateLimiterConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Max      int      `yaml:"max"`
	Interval Duration `yaml:"interval"`
}

// LoadConfig reads the YAML config from CONFIG_PATH (default "config.yaml").
// A missing file yields the defaults; a malformed file panics since the
// process cannot meaningfully run with half a configuration.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic("invalid config file " + path + ": " + err.Error())
		}
	}

	applyDefaults(&cfg)
	return cfg
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Host: "", Port: ":8080"},
		Logger: LoggerConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Limits.MaxUploadMB <= 0 {
		cfg.Limits.MaxUploadMB = 500
	}
	if cfg.Temp.SweepInterval <= 0 {
		cfg.Temp.SweepInterval = Duration(10 * time.Minute)
	}
	if cfg.Temp.MaxAge <= 0 {
		cfg.Temp.MaxAge = Duration(30 * time.Minute)
	}
	if cfg.Timeouts.DefaultSecs <= 0 {
		cfg.Timeouts.DefaultSecs = 300
	}
	if cfg.Timeouts.DocumentSecs <= 0 {
		cfg.Timeouts.DocumentSecs = 120
	}
	if cfg.Timeouts.VideoSecs <= 0 {
		cfg.Timeouts.VideoSecs = 600
	}
	if cfg.Timeouts.OCRSecs <= 0 {
		cfg.Timeouts.OCRSecs = 300
	}
	if cfg.RateLimiter.Max <= 0 {
		cfg.RateLimiter.Max = 60
	}
	if cfg.RateLimiter.Interval <= 0 {
		cfg.RateLimiter.Interval = Duration(time.Minute)
	}
}
