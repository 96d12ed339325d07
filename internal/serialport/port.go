// Package serialport adapts a serial line to the protocol transport: a
// reader goroutine moves received bytes into a bounded queue.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

const (
	// DefaultBaud matches the reference firmware.
	DefaultBaud = 115200
	// QueueSize is the receive queue depth.
	QueueSize = 1024
)

// Port is a serial line with a receive queue.
type Port struct {
	rw  io.ReadWriteCloser
	rx  chan byte
	log zerolog.Logger

	wmu       sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Open opens a serial device in 8N1 at baud.
func Open(name string, baud int, log zerolog.Logger) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	sp, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	log.Info().Str("port", name).Int("baud", baud).Msg("serial port open")
	return New(sp, log), nil
}

// New starts reading rw in the background.
func New(rw io.ReadWriteCloser, log zerolog.Logger) *Port {
	p := &Port{
		rw:   rw,
		rx:   make(chan byte, QueueSize),
		log:  log,
		done: make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer close(p.rx)
	buf := make([]byte, 64)
	for {
		n, err := p.rw.Read(buf)
		for _, b := range buf[:n] {
			select {
			case p.rx <- b:
			case <-p.done:
				return
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				if !errors.Is(err, io.EOF) {
					p.log.Warn().Err(err).Msg("serial read failed")
				}
				p.setErr(err)
			}
			return
		}
	}
}

func (p *Port) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}

// Err is the error that stopped the reader, if any.
func (p *Port) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Buffered is the number of received bytes not yet consumed.
func (p *Port) Buffered() int { return len(p.rx) }

// Bytes yields received bytes. It is closed once the line is closed or fails.
func (p *Port) Bytes() <-chan byte { return p.rx }

func (p *Port) Write(b []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.rw.Write(b)
}

func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.rw.Close()
	})
	return err
}
