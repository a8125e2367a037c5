package pcmout

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default timing values used when a Config leaves them unset.
const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultPollInterval = 20 * time.Millisecond
)

// Config selects a driver and describes the stream to open.
type Config struct {
	// Driver is the registered driver name. Empty selects a default.
	Driver string
	// Device is a driver specific device name. Empty selects the driver's default device.
	Device string
	// Rate is the requested sample rate in Hz. The opened stream reports what was negotiated.
	Rate uint32
	// WriteTimeout bounds how long Write waits without the device making progress.
	WriteTimeout time.Duration
	// PollInterval is the sleep between checks while Write waits for buffer space.
	PollInterval time.Duration
	// Logger receives diagnostics. Nil logs to stderr.
	Logger *log.Logger
}

// Discard is a logger that drops all diagnostics.
var Discard = log.New(io.Discard, "", 0)

var defaultLogger = log.New(os.Stderr, "pcmout: ", 0)

// DefaultConfig returns a configuration for 44.1 kHz output on the default driver.
func DefaultConfig() Config {
	return Config{
		Rate:         44100,
		WriteTimeout: DefaultWriteTimeout,
		PollInterval: DefaultPollInterval,
		Logger:       defaultLogger,
	}
}

// WithDefaults returns a copy of the config with unset timing and logging fields filled in.
// Drivers call it on the Config they receive.
func (c Config) WithDefaults() Config {
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.Logger == nil {
		c.Logger = defaultLogger
	}

	return c
}

// Environment variables read by LoadConfig.
const (
	EnvDriver       = "PCMOUT_DRIVER"
	EnvDevice       = "PCMOUT_DEVICE"
	EnvRate         = "PCMOUT_RATE"
	EnvWriteTimeout = "PCMOUT_WRITE_TIMEOUT"
	EnvPollInterval = "PCMOUT_POLL_INTERVAL"
)

// LoadConfig returns DefaultConfig overlaid with PCMOUT_* environment variables.
// The given dotenv files are loaded first; variables already set in the environment win.
func LoadConfig(files ...string) (Config, error) {
	cfg := DefaultConfig()

	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return cfg, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	if v := os.Getenv(EnvDriver); v != "" {
		cfg.Driver = v
	}

	if v := os.Getenv(EnvDevice); v != "" {
		cfg.Device = v
	}

	if v := os.Getenv(EnvRate); v != "" {
		rate, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s '%s': %w", EnvRate, v, err)
		}

		cfg.Rate = uint32(rate)
	}

	if v := os.Getenv(EnvWriteTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s '%s': %w", EnvWriteTimeout, v, err)
		}

		cfg.WriteTimeout = d
	}

	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s '%s': %w", EnvPollInterval, v, err)
		}

		cfg.PollInterval = d
	}

	return cfg, nil
}
