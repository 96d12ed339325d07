// Package shiftreg drives a daisy chain of serial-in parallel-out shift
// registers: data over SPI, storage clock on a GPIO latch pin.
package shiftreg

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSpeedHz matches the 4MHz clock of the reference board.
const DefaultSpeedHz = 4000000

// Opts configures Open.
type Opts struct {
	Dev      string // spireg name, "" for the first port
	SpeedHz  int
	LatchPin string // gpioreg name, e.g. "GPIO25"
	// LSBFirst reverses every byte so bit 0 reaches the wire first.
	LSBFirst bool
}

// Chain implements the output chain over a periph.io SPI connection.
type Chain struct {
	mu       sync.Mutex
	conn     spi.Conn
	latch    gpio.PinOut
	lsbFirst bool
	buf      []byte
	port     spi.PortCloser
}

// New wraps an already connected SPI conn and latch pin.
func New(conn spi.Conn, latch gpio.PinOut, lsbFirst bool) *Chain {
	return &Chain{conn: conn, latch: latch, lsbFirst: lsbFirst}
}

// Open initializes the host drivers, connects the SPI port in mode 0 and
// parks the latch low.
func Open(o Opts) (*Chain, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	if o.SpeedHz <= 0 {
		o.SpeedHz = DefaultSpeedHz
	}
	port, err := spireg.Open(o.Dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", o.Dev, err)
	}
	conn, err := port.Connect(physic.Frequency(o.SpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect spi %q: %w", o.Dev, err)
	}
	pin := gpioreg.ByName(o.LatchPin)
	if pin == nil {
		_ = port.Close()
		return nil, fmt.Errorf("latch pin %q not found", o.LatchPin)
	}
	if err := pin.Out(gpio.Low); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("latch pin %q: %w", o.LatchPin, err)
	}
	c := New(conn, pin, o.LSBFirst)
	c.port = port
	return c, nil
}

func (c *Chain) Begin() error {
	c.mu.Lock()
	c.buf = c.buf[:0]
	c.mu.Unlock()
	return nil
}

func (c *Chain) ShiftOut(b byte) error {
	if c.lsbFirst {
		b = bits.Reverse8(b)
	}
	c.mu.Lock()
	c.buf = append(c.buf, b)
	c.mu.Unlock()
	return nil
}

// End clocks the queued bytes out in one transfer.
func (c *Chain) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("shift register chain closed")
	}
	if len(c.buf) == 0 {
		return nil
	}
	return c.conn.Tx(c.buf, nil)
}

func (c *Chain) Latch(l gpio.Level) error {
	return c.latch.Out(l)
}

// Close releases the SPI port. The latch is left low.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.latch.Out(gpio.Low)
	c.conn = nil
	if c.port != nil {
		err := c.port.Close()
		c.port = nil
		return err
	}
	return nil
}

func (c *Chain) String() string {
	return fmt.Sprintf("shiftreg(%s, latch=%s)", c.conn, c.latch)
}
