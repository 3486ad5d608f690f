// Package config loads the user configuration from
// ~/.config/camrec/config.yaml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/tiroq/camrec/internal/sink"
)

// Window enumeration backends.
const (
	WindowSourcePlaceholder = "placeholder"
	WindowSourceOBS         = "obs"
)

// Config holds all user-tunable settings
type Config struct {
	DeviceIndex     int    `yaml:"device_index"`     // Camera device index
	Encoder         string `yaml:"encoder"`          // "opencv" or "mjpeg"
	JPEGQuality     int    `yaml:"jpeg_quality"`     // mjpeg encoder only
	LogLevel        string `yaml:"log_level"`        // debug, info, warn, error
	WindowSource    string `yaml:"window_source"`    // "placeholder" or "obs"
	OBSURL          string `yaml:"obs_url"`          // OBS websocket endpoint
	OBSPassword     string `yaml:"obs_password"`     // OBS websocket password
	MetricsTextfile string `yaml:"metrics_textfile"` // empty disables metrics output
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DeviceIndex:  0,
		Encoder:      string(sink.EncoderOpenCV),
		JPEGQuality:  sink.DefaultJPEGQuality,
		LogLevel:     "info",
		WindowSource: WindowSourcePlaceholder,
		OBSURL:       "ws://localhost:4455",
	}
}

// Path returns ~/.config/camrec/config.yaml.
func Path() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "camrec", "config.yaml")
}

// Load reads the user configuration, falling back to Default when the file
// does not exist.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path over the defaults. Keys missing from the file keep
// their default value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to ~/.config/camrec/config.yaml
func Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(Path()), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0600)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var merr *multierror.Error

	if c.DeviceIndex < 0 {
		merr = multierror.Append(merr, fmt.Errorf("device_index must be >= 0, got %d", c.DeviceIndex))
	}
	enc, err := sink.ParseEncoder(c.Encoder)
	if err != nil {
		merr = multierror.Append(merr, fmt.Errorf("encoder: %w", err))
	}
	if enc == sink.EncoderMJPEG && (c.JPEGQuality < 1 || c.JPEGQuality > 100) {
		merr = multierror.Append(merr, fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		merr = multierror.Append(merr, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	switch c.WindowSource {
	case WindowSourcePlaceholder:
	case WindowSourceOBS:
		u, err := url.Parse(c.OBSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			merr = multierror.Append(merr, fmt.Errorf("obs_url must be a ws:// or wss:// URL, got %q", c.OBSURL))
		}
	default:
		merr = multierror.Append(merr, fmt.Errorf("window_source must be %q or %q, got %q",
			WindowSourcePlaceholder, WindowSourceOBS, c.WindowSource))
	}

	return merr.ErrorOrNil()
}

// SinkEncoder returns the validated encoder.
func (c *Config) SinkEncoder() sink.Encoder {
	enc, err := sink.ParseEncoder(c.Encoder)
	if err != nil {
		return sink.EncoderOpenCV
	}
	return enc
}
