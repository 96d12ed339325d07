package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/ledring/internal/sector"
)

type SPI struct {
	Dev      string `yaml:"dev"`       // spireg name, e.g. SPI0.0; empty picks the first port
	SpeedHz  int    `yaml:"speed_hz"`  // e.g. 4000000
	LSBFirst bool   `yaml:"lsb_first"` // registers wired with Q0 nearest the data pin
}

type Serial struct {
	Port      string `yaml:"port"` // e.g. /dev/ttyAMA0
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type Monitor struct {
	Addr string `yaml:"addr"` // empty disables the HTTP monitor
	FPS  int    `yaml:"fps"`
}

type Preview struct {
	Driver  string `yaml:"driver"` // "none" | "console" | "nrzled"
	SPIDev  string `yaml:"spi_dev"`
	SpeedHz int    `yaml:"speed_hz"`
	FPS     int    `yaml:"fps"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Config struct {
	Sectors    int    `yaml:"sectors"`
	TickUs     int    `yaml:"tick_us"`
	Driver     string `yaml:"driver"` // "spi" | "sim"
	LatchPin   string `yaml:"latch_pin"`
	WireLayout string `yaml:"wire_layout"` // "rgb" | "legacy"
	SelfTest   string `yaml:"self_test,omitempty"`

	SPI     SPI     `yaml:"spi"`
	Serial  Serial  `yaml:"serial"`
	Monitor Monitor `yaml:"monitor"`
	Preview Preview `yaml:"preview"`
	Log     Log     `yaml:"log"`
}

// Default returns the configuration of the reference board.
func Default() *Config {
	return &Config{
		Sectors:    sector.DefaultSectors,
		TickUs:     40,
		Driver:     "spi",
		LatchPin:   "GPIO25",
		WireLayout: "rgb",
		SPI:        SPI{SpeedHz: 4000000},
		Serial:     Serial{Port: "/dev/ttyAMA0", Baud: 115200, TimeoutMs: 1000},
		Monitor:    Monitor{Addr: ":8080", FPS: 30},
		Preview:    Preview{Driver: "none", SpeedHz: 2500000, FPS: 30},
		Log:        Log{Level: "info"},
	}
}

// Load reads path over the defaults, so missing keys keep default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Sectors <= 0 {
		errs = append(errs, fmt.Errorf("sectors must be positive, got %d", c.Sectors))
	}
	if c.TickUs <= 0 {
		errs = append(errs, fmt.Errorf("tick_us must be positive, got %d", c.TickUs))
	}
	switch c.Driver {
	case "spi", "sim":
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if c.Driver == "spi" && c.LatchPin == "" {
		errs = append(errs, errors.New("latch_pin is required with driver spi"))
	}
	if _, err := sector.ParseLayout(c.WireLayout); err != nil {
		errs = append(errs, err)
	}
	if c.Serial.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("serial.timeout_ms must be positive, got %d", c.Serial.TimeoutMs))
	}
	switch c.Preview.Driver {
	case "", "none", "console", "nrzled":
	default:
		errs = append(errs, fmt.Errorf("unknown preview driver %q", c.Preview.Driver))
	}
	return errors.Join(errs...)
}

// Layout is the parsed wire layout.
func (c *Config) Layout() sector.Layout {
	l, _ := sector.ParseLayout(c.WireLayout)
	return l
}

// Tick is the scheduler period.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickUs) * time.Microsecond
}

// ReadTimeout bounds each multi-byte protocol read.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Serial.TimeoutMs) * time.Millisecond
}
