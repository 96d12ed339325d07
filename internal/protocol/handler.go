// Package protocol implements the framed serial command protocol that
// updates the sector store.
//
//	Frame     := 0xFF Action
//	Action    := SetColors | Unknown
//	SetColors := 0xA0 Length Data{Length}
//
// Every frame that starts with 0xFF is answered with exactly one status byte
// after any trailing input has been discarded.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/metrics"
	"github.com/coreman2200/ledring/internal/sector"
)

const (
	StartByte       byte = 0xFF
	ActionSetColors byte = 0xA0

	// DefaultTimeout bounds each multi-byte read inside a frame.
	DefaultTimeout = 1000 * time.Millisecond
	// MaxPayload is the largest length a single byte can announce.
	MaxPayload = 255

	pollInterval = time.Millisecond
)

// Transport is a byte stream whose received bytes wait in a queue.
type Transport interface {
	io.Writer
	// Buffered is the number of bytes waiting in the queue.
	Buffered() int
	// Bytes yields queued bytes in order. It is closed when the stream ends.
	Bytes() <-chan byte
}

// Options for NewHandler.
type Options struct {
	Layout  sector.Layout
	Timeout time.Duration
	Bus     *events.Bus
	Logger  zerolog.Logger
}

// Handler parses command frames from a Transport and applies them to the
// sector store. It is the only writer of the store while it runs.
type Handler struct {
	t       Transport
	store   *sector.Store
	layout  sector.Layout
	timeout time.Duration
	bus     *events.Bus
	log     zerolog.Logger
}

func NewHandler(t Transport, store *sector.Store, o Options) *Handler {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return &Handler{
		t:       t,
		store:   store,
		layout:  o.Layout,
		timeout: o.Timeout,
		bus:     o.Bus,
		log:     o.Logger,
	}
}

// Capacity is the largest SetColors payload the handler accepts.
func (h *Handler) Capacity() int {
	return min(h.store.Capacity(h.layout), MaxPayload)
}

// Run polls the transport until ctx is done or the stream ends.
func (h *Handler) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	h.log.Info().
		Str("layout", h.layout.String()).
		Int("capacity", h.Capacity()).
		Dur("timeout", h.timeout).
		Msg("protocol handler started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := h.Poll(ctx)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case errors.Is(err, ErrClosed):
				return err
			default:
				h.log.Warn().Err(err).Msg("reply failed")
			}
		}
	}
}

// Poll handles at most one frame. It returns immediately when no input is
// queued. Bytes other than the start byte are dropped without a reply.
func (h *Handler) Poll(ctx context.Context) error {
	var start byte
	select {
	case b, ok := <-h.t.Bytes():
		if !ok {
			return ErrClosed
		}
		start = b
	default:
		return nil
	}
	if start != StartByte {
		metrics.IncResync()
		h.log.Trace().Hex("byte", []byte{start}).Msg("skipping non start byte")
		return nil
	}

	action, length, err := h.handleFrame(ctx)
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if n := h.drain(); n > 0 {
		metrics.AddDrained(n)
	}
	return h.reply(action, length, err)
}

func (h *Handler) handleFrame(ctx context.Context) (action byte, length int, err error) {
	var b [1]byte
	if err := h.readBytesOrTimeout(ctx, b[:]); err != nil {
		return 0, 0, fmt.Errorf("action: %w", err)
	}
	action = b[0]
	switch action {
	case ActionSetColors:
		length, err = h.setColors(ctx)
		return action, length, err
	}
	return action, 0, fmt.Errorf("action %#02x: %w", action, ErrUnknownCommand)
}

func (h *Handler) setColors(ctx context.Context) (int, error) {
	var lb [1]byte
	if err := h.readBytesOrTimeout(ctx, lb[:]); err != nil {
		return 0, fmt.Errorf("set colors length: %w", err)
	}
	n := int(lb[0])
	data := make([]byte, n)

	if capacity := h.Capacity(); n > capacity {
		// consume the payload so the next frame starts on a boundary
		if err := h.readBytesOrTimeout(ctx, data); errors.Is(err, ErrClosed) {
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		return n, fmt.Errorf("set colors: %d bytes for %d: %w", n, capacity, ErrLength)
	}

	if err := h.readBytesOrTimeout(ctx, data); err != nil {
		return n, fmt.Errorf("set colors data: %w", err)
	}
	if err := h.store.WriteBytes(h.layout, data); err != nil {
		return n, err
	}
	metrics.IncStoreCommit()
	h.bus.Publish(events.StoreCommittedEvent{Source: "protocol", Bytes: n, Timestamp: events.Now()})
	return n, nil
}

func (h *Handler) reply(action byte, length int, err error) error {
	status := StatusOf(err)
	metrics.IncProtocolFrame(status.String())

	ev := h.log.Debug()
	if err != nil {
		ev = h.log.Warn().Err(err)
	}
	ev.Hex("action", []byte{action}).Int("length", length).Stringer("status", status).Msg("frame handled")

	fe := events.FrameHandledEvent{Action: action, Status: byte(status), Length: length, Timestamp: events.Now()}
	if err != nil {
		fe.Error = err.Error()
	}
	h.bus.Publish(fe)

	if _, werr := h.t.Write([]byte{byte(status)}); werr != nil {
		return fmt.Errorf("write status %s: %w", status, werr)
	}
	return nil
}

// readBytesOrTimeout fills buf from the queue. The deadline covers the whole
// call, not each byte.
func (h *Handler) readBytesOrTimeout(ctx context.Context, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	in := h.t.Bytes()
	for i := range buf {
		// take a queued byte before looking at the deadline
		select {
		case b, ok := <-in:
			if !ok {
				return ErrClosed
			}
			buf[i] = b
			continue
		default:
		}
		select {
		case b, ok := <-in:
			if !ok {
				return ErrClosed
			}
			buf[i] = b
		case <-timer.C:
			return fmt.Errorf("got %d of %d bytes: %w", i, len(buf), ErrTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// drain discards whatever is queued right now.
func (h *Handler) drain() int {
	in := h.t.Bytes()
	n := 0
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
