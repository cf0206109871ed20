package config

import "errors"

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Config{} and override only what they
// need.
type Config struct {
	// Default output format used when a request leaves it unset.
	DefaultFormat string

	// Encode knobs applied when a request does not override them.
	JPEGQuality int  // 1-100; default 95
	TIFFDeflate bool // deflate-compress TIFF output; default true

	// Input limits.
	MaxContainerBytes int64 // 0 = no limit

	// Logging.
	LogLevel string // "debug", "info", "warn", "error"
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		DefaultFormat: "png",
		JPEGQuality:   95,
		TIFFDeflate:   true,
		LogLevel:      "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func (c Config) Validate() error {
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("config: JPEGQuality must be between 1 and 100")
	}
	if c.MaxContainerBytes < 0 {
		return errors.New("config: MaxContainerBytes must not be negative")
	}
	return nil
}
