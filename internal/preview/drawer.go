// Package preview mirrors the sector store onto a periph.io display: an
// addressable NRZ strip on a spare SPI port, or the console.
package preview

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/devices/v3/screen1d"
	"periph.io/x/host/v3"
)

// DefaultSpeedHz is the SPI clock for an 800kHz NRZ strip.
const DefaultSpeedHz = 2500000

// Opts configures Open.
type Opts struct {
	Driver  string // "console" | "nrzled"
	Pixels  int
	SPIDev  string
	SpeedHz int
}

// Open returns the drawer named by o.Driver. An nrzled strip that cannot be
// opened falls back to the console.
func Open(o Opts, log zerolog.Logger) (display.Drawer, string, error) {
	switch o.Driver {
	case "console":
		return screen1d.New(&screen1d.Opts{X: o.Pixels}), "console", nil
	case "nrzled":
		d, err := openStrip(o)
		if err != nil {
			log.Warn().Err(err).Str("dev", o.SPIDev).Msg("preview strip unavailable, printing at the console")
			return screen1d.New(&screen1d.Opts{X: o.Pixels}), "console", nil
		}
		return d, "nrzled", nil
	}
	return nil, "", fmt.Errorf("unknown preview driver %q", o.Driver)
}

func openStrip(o Opts) (display.Drawer, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(o.SPIDev)
	if err != nil {
		return nil, err
	}
	d, err := NewStrip(port, o.Pixels, o.SpeedHz)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return d, nil
}

// NewStrip drives an RGB NRZ strip of n pixels on port.
func NewStrip(port spi.Port, n, speedHz int) (*nrzled.Dev, error) {
	if speedHz <= 0 {
		speedHz = DefaultSpeedHz
	}
	d, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: n,
		Channels:  3,
		Freq:      physic.Frequency(speedHz) * physic.Hertz,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, err
	}
	return d, nil
}
