package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/sector"
)

type testStream struct {
	in   chan byte
	peer *testStream

	lock sync.Mutex
	out  bytes.Buffer
}

func newTestStream() *testStream {
	return &testStream{in: make(chan byte, 1024)}
}

func (s *testStream) Buffered() int      { return len(s.in) }
func (s *testStream) Bytes() <-chan byte { return s.in }

func (s *testStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	s.out.Write(p)
	s.lock.Unlock()
	if s.peer != nil {
		s.peer.feed(p...)
	}
	return len(p), nil
}

func (s *testStream) feed(p ...byte) {
	for _, b := range p {
		s.in <- b
	}
}

func (s *testStream) written() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.out.Len() == 0 {
		return nil
	}
	return append([]byte{}, s.out.Bytes()...)
}

const testTimeout = 30 * time.Millisecond

func newTestHandler(t *testing.T, sectors int, layout sector.Layout) (*Handler, *testStream, *sector.Store) {
	store, err := sector.NewStore(sectors)
	require.NoError(t, err)
	s := newTestStream()
	h := NewHandler(s, store, Options{Layout: layout, Timeout: testTimeout, Logger: zerolog.Nop()})
	return h, s, store
}

func seed(t *testing.T, store *sector.Store) []byte {
	colors := make([]sector.Color, store.Len())
	for i := range colors {
		colors[i] = sector.RGB(uint8(i), uint8(i+1), uint8(i+2))
	}
	require.NoError(t, store.Set(colors))
	return store.Bytes(sector.LayoutRGB)
}

func TestFrames(t *testing.T) {
	payload := []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00}
	tests := []struct {
		name     string
		input    []byte
		status   []byte
		changed  bool
		leftover int
	}{
		{"set colors", append([]byte{0xFF, 0xA0, 6}, payload...), []byte{0xFF}, true, 0},
		{"set colors trailing input drained", append(append([]byte{0xFF, 0xA0, 6}, payload...), 9, 9, 9), []byte{0xFF}, true, 0},
		{"set colors empty", []byte{0xFF, 0xA0, 0}, []byte{0xFF}, false, 0},
		{"unknown action", []byte{0xFF, 0x55}, []byte{0xE1}, false, 0},
		{"unknown action drains", []byte{0xFF, 0x55, 0xFF, 0xA0, 0x01}, []byte{0xE1}, false, 0},
		{"missing action", []byte{0xFF}, []byte{0xE0}, false, 0},
		{"missing length", []byte{0xFF, 0xA0}, []byte{0xE0}, false, 0},
		{"short data", []byte{0xFF, 0xA0, 6, 0x01, 0x02}, []byte{0xE0}, false, 0},
		{"oversized", append([]byte{0xFF, 0xA0, 13}, make([]byte, 13)...), []byte{0xE2}, false, 0},
		{"oversized short", []byte{0xFF, 0xA0, 13, 0x01}, []byte{0xE2}, false, 0},
		{"bad start byte", []byte{0x12, 0xA0, 0x03}, nil, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, store := newTestHandler(t, 4, sector.LayoutRGB)
			before := seed(t, store)
			s.feed(tt.input...)

			require.NoError(t, h.Poll(context.Background()))
			assert.Equal(t, tt.status, s.written())
			assert.Equal(t, tt.leftover, s.Buffered())
			after := store.Bytes(sector.LayoutRGB)
			if tt.changed {
				assert.Equal(t, payload, after[:len(payload)])
				assert.Equal(t, before[len(payload):], after[len(payload):])
			} else {
				assert.Equal(t, before, after)
			}
		})
	}
}

func TestNoInputNoReply(t *testing.T) {
	h, s, _ := newTestHandler(t, 4, sector.LayoutRGB)
	require.NoError(t, h.Poll(context.Background()))
	assert.Empty(t, s.written())
}

func TestResyncSkipsNoise(t *testing.T) {
	h, s, store := newTestHandler(t, 2, sector.LayoutRGB)
	s.feed(0x00, 0x13, 0xFF, 0xA0, 3, 0x10, 0x20, 0x30)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Poll(context.Background()))
	}
	assert.Equal(t, []byte{0xFF}, s.written())
	assert.Equal(t, sector.RGB(0x10, 0x20, 0x30), store.At(0))
}

func TestSetColorsIdempotent(t *testing.T) {
	h, s, store := newTestHandler(t, 3, sector.LayoutRGB)
	frame, err := EncodeSetColors([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	s.feed(frame...)
	require.NoError(t, h.Poll(context.Background()))
	first := store.Bytes(sector.LayoutRGB)
	s.feed(frame...)
	require.NoError(t, h.Poll(context.Background()))

	assert.Equal(t, first, store.Bytes(sector.LayoutRGB))
	assert.Equal(t, []byte{0xFF, 0xFF}, s.written())
}

func TestSetColorsLegacyLayout(t *testing.T) {
	h, s, store := newTestHandler(t, 2, sector.LayoutLegacy)
	assert.Equal(t, 8, h.Capacity())
	s.feed(0xFF, 0xA0, 4, 0x33, 0x22, 0x11, 0x00)

	require.NoError(t, h.Poll(context.Background()))
	assert.Equal(t, []byte{0xFF}, s.written())
	assert.Equal(t, sector.Color(0x112233), store.At(0))
	assert.Equal(t, sector.Color(0), store.At(1))
}

func TestCapacityCappedByLengthByte(t *testing.T) {
	h, _, _ := newTestHandler(t, 100, sector.LayoutRGB)
	assert.Equal(t, MaxPayload, h.Capacity())
}

func TestDeadlineCoversWholeRead(t *testing.T) {
	store, err := sector.NewStore(4)
	require.NoError(t, err)
	s := newTestStream()
	h := NewHandler(s, store, Options{Timeout: 70 * time.Millisecond, Logger: zerolog.Nop()})

	s.feed(0xFF, 0xA0, 4)
	done := make(chan error, 1)
	go func() { done <- h.Poll(context.Background()) }()

	// each byte is well inside the timeout, the whole payload is not
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		s.feed(0x7F)
	}
	require.NoError(t, <-done)
	assert.Equal(t, []byte{0xE0}, s.written())
	assert.Equal(t, sector.Color(0), store.At(0))
}

func TestPollCanceled(t *testing.T) {
	store, err := sector.NewStore(4)
	require.NoError(t, err)
	s := newTestStream()
	h := NewHandler(s, store, Options{Timeout: 10 * time.Second, Logger: zerolog.Nop()})
	s.feed(0xFF, 0xA0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = h.Poll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, s.written())
}

func TestPollClosedTransport(t *testing.T) {
	h, s, _ := newTestHandler(t, 4, sector.LayoutRGB)
	s.feed(0xFF)
	close(s.in)
	assert.ErrorIs(t, h.Poll(context.Background()), ErrClosed)
	assert.Empty(t, s.written())
}

func TestRunPublishesEvents(t *testing.T) {
	store, err := sector.NewStore(4)
	require.NoError(t, err)
	bus := events.New()
	frames := make(chan events.FrameHandledEvent, 4)
	commits := make(chan events.StoreCommittedEvent, 4)
	defer bus.Subscribe(func(e events.FrameHandledEvent) { frames <- e })()
	defer bus.Subscribe(func(e events.StoreCommittedEvent) { commits <- e })()

	s := newTestStream()
	h := NewHandler(s, store, Options{Timeout: testTimeout, Bus: bus, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	s.feed(0xFF, 0xA0, 3, 0xAA, 0xBB, 0xCC)
	select {
	case e := <-frames:
		assert.Equal(t, byte(0xA0), e.Action)
		assert.Equal(t, byte(StatusSuccess), e.Status)
		assert.Equal(t, 3, e.Length)
	case <-time.After(time.Second):
		t.Fatal("no frame event")
	}
	select {
	case e := <-commits:
		assert.Equal(t, 3, e.Bytes)
	case <-time.After(time.Second):
		t.Fatal("no commit event")
	}

	s.feed(0xFF, 0x01)
	select {
	case e := <-frames:
		assert.Equal(t, byte(StatusUnknownCmd), e.Status)
		assert.NotEmpty(t, e.Error)
	case <-time.After(time.Second):
		t.Fatal("no frame event")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, sector.RGB(0xAA, 0xBB, 0xCC), store.At(0))
}

func TestRunStopsWhenTransportCloses(t *testing.T) {
	h, s, _ := newTestHandler(t, 4, sector.LayoutRGB)
	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()
	s.feed(0xFF)
	close(s.in)
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusTimeout, StatusOf(ErrTimeout))
	assert.Equal(t, StatusUnknownCmd, StatusOf(ErrUnknownCommand))
	assert.Equal(t, StatusLength, StatusOf(ErrLength))
	assert.Equal(t, StatusGeneric, StatusOf(errors.New("boom")))
	assert.Equal(t, StatusTimeout, StatusOf(StatusTimeout.Err()))

	assert.NoError(t, StatusSuccess.Err())
	err := StatusLength.Err()
	assert.ErrorIs(t, err, ErrLength)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StatusLength, se.Status)
}
