// Package selftest paints diagnostic patterns into the sector store before
// the serial link takes over.
package selftest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/sector"
)

type Kind string

const (
	None        Kind = ""
	IndexSweep  Kind = "index_sweep"
	RGBChannels Kind = "rgb_channels"
	Gradient    Kind = "gradient"
)

// Kinds lists every runnable pattern.
var Kinds = []Kind{IndexSweep, RGBChannels, Gradient}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	if s == "" || s == "none" {
		return None, nil
	}
	return None, fmt.Errorf("unknown self test %q", s)
}

type Runner struct {
	kind Kind
	step int
}

func NewRunner(kind Kind) *Runner { return &Runner{kind: kind} }

func (r *Runner) Kind() Kind { return r.kind }

// Step paints the next pattern into frame; returns false when complete.
func (r *Runner) Step(frame sector.Frame) bool {
	n := len(frame)
	for i := range frame {
		frame[i] = 0
	}

	switch r.kind {
	case IndexSweep:
		if r.step >= n {
			return false
		}
		frame[r.step] = sector.RGB(255, 255, 255)
	case RGBChannels:
		if r.step >= len(sector.Channels) {
			return false
		}
		ch := sector.Channels[len(sector.Channels)-1-r.step] // red first
		for i := range frame {
			frame[i] = frame[i].With(ch, 255)
		}
	case Gradient:
		if r.step > 0 {
			return false
		}
		for i := range frame {
			v := uint8(i * 255 / max(1, n-1))
			frame[i] = sector.RGB(v, v, v)
		}
	default:
		return false
	}
	r.step++
	return true
}

// Run steps kind through store every interval, then clears the store.
func Run(ctx context.Context, store *sector.Store, kind Kind, interval time.Duration, bus *events.Bus, log zerolog.Logger) error {
	if kind == None {
		return nil
	}
	r := NewRunner(kind)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("kind", string(kind)).Msg("self test running")
	for {
		more := true
		err := store.Update(func(staging sector.Frame) error {
			more = r.Step(staging)
			return nil
		})
		if err != nil {
			return err
		}
		bus.Publish(events.SelfTestEvent{Kind: string(kind), Step: r.step, Done: !more, Timestamp: events.Now()})
		if !more {
			log.Info().Str("kind", string(kind)).Int("steps", r.step).Msg("self test complete")
			return nil
		}
		select {
		case <-ctx.Done():
			return store.Update(func(staging sector.Frame) error {
				for i := range staging {
					staging[i] = 0
				}
				return nil
			})
		case <-ticker.C:
		}
	}
}
