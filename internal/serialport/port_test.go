package serialport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledring/internal/protocol"
	"github.com/coreman2200/ledring/internal/sector"
)

func waitBuffered(t *testing.T, p *Port, n int) {
	require.Eventually(t, func() bool { return p.Buffered() >= n }, time.Second, time.Millisecond)
}

func TestPortQueuesReceivedBytes(t *testing.T) {
	local, remote := net.Pipe()
	p := New(local, zerolog.Nop())
	defer p.Close()

	go remote.Write([]byte{1, 2, 3})
	waitBuffered(t, p, 3)
	assert.Equal(t, byte(1), <-p.Bytes())
	assert.Equal(t, byte(2), <-p.Bytes())
	assert.Equal(t, 1, p.Buffered())
}

func TestPortWrite(t *testing.T) {
	local, remote := net.Pipe()
	p := New(local, zerolog.Nop())
	defer p.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := remote.Read(buf)
		got <- buf[:n]
	}()
	n, err := p.Write([]byte{0xFF, 0xE1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0xFF, 0xE1}, <-got)
}

func TestPortClosesQueueWhenPeerHangsUp(t *testing.T) {
	local, remote := net.Pipe()
	p := New(local, zerolog.Nop())
	defer p.Close()

	require.NoError(t, remote.Close())
	select {
	case _, ok := <-p.Bytes():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("queue not closed")
	}
	assert.Error(t, p.Err())
}

func TestPortDrivesHandler(t *testing.T) {
	local, remote := net.Pipe()
	device := New(local, zerolog.Nop())
	host := New(remote, zerolog.Nop())
	defer device.Close()
	defer host.Close()

	store, err := sector.NewStore(2)
	require.NoError(t, err)
	h := protocol.NewHandler(device, store, protocol.Options{Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := protocol.NewClient(host, sector.LayoutRGB)
	require.NoError(t, c.SetColors(ctx, []sector.Color{0x010203, 0x040506}))
	assert.Equal(t, sector.Frame{0x010203, 0x040506}, store.Snapshot())
}
