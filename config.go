package thermline

import (
	"encoding"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"libdb.so/thermline/linereader"
)

// Config is the configuration for the thermline daemon.
type Config struct {
	// Device is the path to the device file of the board.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device" yaml:"device"`
	// Baud is the baud rate for the serial connection. It must match the
	// rate the board was flashed with.
	Baud int `toml:"baud" yaml:"baud"`
	// Label is printed in front of every reading. It must not be empty.
	Label string `toml:"label" yaml:"label"`
	// ReadyDelay is how long to wait after opening the port for the board
	// to finish resetting. Zero means the default of 2s.
	ReadyDelay TOMLDuration `toml:"ready_delay" yaml:"ready_delay"`
	// ReadTimeout is how long a read may block before the daemon gives up.
	// Zero means wait forever.
	ReadTimeout TOMLDuration `toml:"read_timeout" yaml:"read_timeout"`
	// Listen is the address to serve readings over WebSocket on. Empty
	// disables the broadcast server.
	Listen string `toml:"listen" yaml:"listen"`
	// Mock generates fake readings instead of opening Device.
	Mock bool `toml:"mock" yaml:"mock"`
	// MockInterval is the time between fake readings.
	MockInterval TOMLDuration `toml:"mock_interval" yaml:"mock_interval"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Device:       "/dev/ttyUSB0",
		Baud:         9600,
		Label:        linereader.Label,
		ReadyDelay:   TOMLDuration(2 * time.Second),
		MockInterval: TOMLDuration(time.Second),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Mock && c.Device == "" {
		return errors.New("no device configured")
	}

	if c.Label == "" {
		return errors.New("no label configured")
	}

	if c.Baud <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Baud)
	}

	if c.ReadyDelay < 0 {
		return errors.New("ready_delay must not be negative")
	}

	if c.ReadTimeout < 0 {
		return errors.New("read_timeout must not be negative")
	}

	if c.Mock && c.MockInterval <= 0 {
		return errors.New("mock_interval must be positive")
	}

	return nil
}

// TOMLDuration is a duration that can be parsed from TOML or YAML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// applyDefaults fills every zero field with its default value.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Device == "" {
		c.Device = def.Device
	}
	if c.Baud == 0 {
		c.Baud = def.Baud
	}
	if c.Label == "" {
		c.Label = def.Label
	}
	if c.ReadyDelay == 0 {
		c.ReadyDelay = def.ReadyDelay
	}
	if c.MockInterval == 0 {
		c.MockInterval = def.MockInterval
	}
}

// ParseConfig parses a TOML configuration from a reader. Fields missing from
// the file are set to their defaults.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

// ParseYAMLConfig is like ParseConfig but parses YAML.
func ParseYAMLConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := yaml.NewDecoder(r).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

// ApplyEnv overrides c with the environment variables the board's original
// tooling used: SERIAL_PORT, BAUD_RATE, PORT (the broadcast port) and MOCK
// ("1" to enable). Unset variables leave c unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SERIAL_PORT"); ok && v != "" {
		c.Device = v
	}

	if v, ok := lookup("BAUD_RATE"); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid BAUD_RATE")
		}
		c.Baud = baud
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return errors.Wrap(err, "invalid PORT")
		}
		c.Listen = ":" + v
	}

	if v, ok := lookup("MOCK"); ok && v != "" {
		c.Mock = v == "1"
	}

	return nil
}

// ReadConfigFile reads the configuration file at path. The format is picked
// from the file extension: .yaml and .yml are YAML, everything else is TOML.
func ReadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	var config *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		config, err = ParseYAMLConfig(f)
	default:
		config, err = ParseConfig(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	return config, nil
}
