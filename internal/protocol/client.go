package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/ledring/internal/sector"
)

// EncodeSetColors builds a SetColors frame carrying p.
func EncodeSetColors(p []byte) ([]byte, error) {
	if len(p) > MaxPayload {
		return nil, fmt.Errorf("set colors: %d bytes: %w", len(p), ErrLength)
	}
	frame := make([]byte, 0, len(p)+3)
	frame = append(frame, StartByte, ActionSetColors, byte(len(p)))
	return append(frame, p...), nil
}

// Client sends command frames from the host side of the link.
type Client struct {
	t       Transport
	layout  sector.Layout
	timeout time.Duration
}

// NewClient returns a client that encodes colors with layout. The reply
// wait is a little longer than the device's own read timeout.
func NewClient(t Transport, layout sector.Layout) *Client {
	return &Client{t: t, layout: layout, timeout: DefaultTimeout + 500*time.Millisecond}
}

// SetTimeout changes how long Send waits for the status byte.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetColors writes colors starting at sector 0.
func (c *Client) SetColors(ctx context.Context, colors []sector.Color) error {
	frame, err := EncodeSetColors(c.layout.Encode(nil, colors))
	if err != nil {
		return err
	}
	status, err := c.Send(ctx, frame)
	if err != nil {
		return err
	}
	return status.Err()
}

// Send writes a raw frame and waits for one status byte. Stale input is
// discarded first.
func (c *Client) Send(ctx context.Context, frame []byte) (Status, error) {
	in := c.t.Bytes()
	for c.t.Buffered() > 0 {
		<-in
	}
	if _, err := c.t.Write(frame); err != nil {
		return 0, fmt.Errorf("write frame: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case b, ok := <-in:
		if !ok {
			return 0, ErrClosed
		}
		return Status(b), nil
	case <-timer.C:
		return 0, fmt.Errorf("status: %w", ErrTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
