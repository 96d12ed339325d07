package bcm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/ledring/internal/metrics"
	"github.com/coreman2200/ledring/internal/sector"
)

// ErrInvalidMask is returned by RenderMask for anything but a single bit.
var ErrInvalidMask = errors.New("bit-plane mask must have exactly one bit set")

// Output abstracts the shift register chain. Bytes are shifted MSB first;
// the first byte of a frame ends up in the register farthest down the chain.
type Output interface {
	// Begin starts a shift transaction.
	Begin() error
	// ShiftOut queues one byte.
	ShiftOut(b byte) error
	// End completes the transaction; every queued byte has been clocked out.
	End() error
	// Latch drives the storage clock of every register.
	Latch(l gpio.Level) error
}

// FrameSize is the number of bytes one render pass shifts out for n sectors.
func FrameSize(n int) int {
	return 3 * ((n + 7) / 8)
}

// Stats describes the most recent render pass.
type Stats struct {
	Plane    Plane
	Bytes    int
	Duration time.Duration
	Passes   uint64
}

// Renderer turns one bit-plane of the sector store into a shift register
// frame. It keeps no state between passes besides Stats.
type Renderer struct {
	store *sector.Store
	out   Output

	mu   sync.Mutex
	last Stats
}

func NewRenderer(store *sector.Store, out Output) *Renderer {
	return &Renderer{store: store, out: out}
}

// Last returns statistics of the most recent pass.
func (r *Renderer) Last() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RenderMask renders the plane selected by a single-bit mask.
func (r *Renderer) RenderMask(mask uint8) error {
	p, ok := PlaneForMask(mask)
	if !ok {
		return fmt.Errorf("render mask %#02x: %w", mask, ErrInvalidMask)
	}
	return r.Render(p)
}

// Render shifts out one frame for plane p and latches it.
//
// Channels go blue, green, red. Inside a channel sectors go from the last
// to the first, sector i landing on bit 7-i%8 of its byte. A byte is
// flushed once bit 7 is filled, so the first sector of every group of
// eight closes the byte.
func (r *Renderer) Render(p Plane) error {
	start := time.Now()
	frame := r.store.Snapshot()
	mask := p.Mask()

	if err := r.out.Begin(); err != nil {
		return fmt.Errorf("begin %s: %w", p, err)
	}
	n := 0
	for _, ch := range sector.Channels {
		var data byte
		for i := len(frame) - 1; i >= 0; i-- {
			pos := 7 - uint(i%8)
			if frame[i].Channel(ch)&mask != 0 {
				data |= 1 << pos
			}
			if pos == 7 {
				if err := r.out.ShiftOut(data); err != nil {
					return fmt.Errorf("shift %s %s: %w", p, ch, err)
				}
				data = 0
				n++
			}
		}
	}
	if err := r.out.End(); err != nil {
		return fmt.Errorf("end %s: %w", p, err)
	}
	if err := r.out.Latch(gpio.High); err != nil {
		return fmt.Errorf("latch %s: %w", p, err)
	}

	d := time.Since(start)
	r.mu.Lock()
	r.last = Stats{Plane: p, Bytes: n, Duration: d, Passes: r.last.Passes + 1}
	r.mu.Unlock()
	metrics.IncRenderPass(p.String())
	metrics.SetLastRender(d.Seconds())
	return nil
}
