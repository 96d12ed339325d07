package bcm

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/metrics"
)

// DefaultTick is the scheduler period. A full 256-tick cycle takes ~10ms.
const DefaultTick = 40 * time.Microsecond

// Scheduler owns the bit counter. Every tick releases the latch and, on the
// eight single-bit counter values, renders the matching plane.
type Scheduler struct {
	r      *Renderer
	out    Output
	period time.Duration
	bus    *events.Bus
	log    zerolog.Logger
	faults zerolog.Logger

	counter  atomic.Uint32
	ticks    atomic.Uint64
	overruns atomic.Uint64
}

// NewScheduler builds a scheduler that drives r and releases the latch of
// out. A zero period selects DefaultTick. bus may be nil.
func NewScheduler(r *Renderer, out Output, period time.Duration, bus *events.Bus, log zerolog.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultTick
	}
	return &Scheduler{
		r:      r,
		out:    out,
		period: period,
		bus:    bus,
		log:    log,
		faults: log.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second}),
	}
}

// Period is the tick interval.
func (s *Scheduler) Period() time.Duration { return s.period }

// Counter is the current bit counter value.
func (s *Scheduler) Counter() uint8 { return uint8(s.counter.Load()) }

// Ticks counts ticks since construction.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Overruns counts ticks whose work outlasted the period.
func (s *Scheduler) Overruns() uint64 { return s.overruns.Load() }

// Tick advances the counter by one. It must not run concurrently with
// itself.
func (s *Scheduler) Tick() error {
	c := uint8(s.counter.Load()) + 1
	s.counter.Store(uint32(c))
	s.ticks.Add(1)

	if err := s.out.Latch(gpio.Low); err != nil {
		return err
	}
	p, ok := PlaneForTick(c)
	if !ok {
		return nil
	}
	return s.r.Render(p)
}

// Run ticks until ctx is done. Render failures are logged and counted but
// do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.log.Info().Dur("period", s.period).Msg("bcm scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Uint64("ticks", s.Ticks()).Uint64("overruns", s.Overruns()).Msg("bcm scheduler stopped")
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := s.Tick(); err != nil {
				metrics.IncRenderError()
				s.faults.Warn().Err(err).Uint8("counter", s.Counter()).Msg("render pass failed")
				if p, ok := PlaneForTick(s.Counter()); ok {
					s.bus.Publish(events.RenderFaultEvent{Plane: int(p), Error: err.Error(), Timestamp: events.Now()})
				}
			}
			if time.Since(start) > s.period {
				s.overruns.Add(1)
				metrics.IncTickOverrun()
			}
		}
	}
}
