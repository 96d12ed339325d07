package sector_test

import (
	"sync"
	"testing"

	. "github.com/coreman2200/ledring/internal/sector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreIsBlack(t *testing.T) {
	s, err := NewStore(12)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Len())
	for _, c := range s.Snapshot() {
		assert.Equal(t, Color(0), c)
	}
	_, err = NewStore(0)
	assert.Error(t, err)
}

func TestLayoutCapacity(t *testing.T) {
	assert.Equal(t, 96, LayoutRGB.Capacity(32))
	assert.Equal(t, 128, LayoutLegacy.Capacity(32))
}

func TestLayoutEncode(t *testing.T) {
	colors := []Color{RGB(0x11, 0x22, 0x33), RGB(0xAA, 0xBB, 0xCC)}
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0xAA, 0xBB, 0xCC}, LayoutRGB.Encode(nil, colors))
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0, 0xCC, 0xBB, 0xAA, 0}, LayoutLegacy.Encode(nil, colors))

	out := make([]Color, 2)
	require.NoError(t, LayoutLegacy.Decode(out, []byte{0x33, 0x22, 0x11, 0x7F, 0xCC, 0xBB, 0xAA, 0}))
	assert.Equal(t, colors, out)
	assert.Error(t, LayoutRGB.Decode(out, []byte{1, 2, 3}))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("legacy")
	require.NoError(t, err)
	assert.Equal(t, LayoutLegacy, l)
	l, err = ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutRGB, l)
	_, err = ParseLayout("grb")
	assert.Error(t, err)
}

func TestWriteBytesPrefix(t *testing.T) {
	s, err := NewStore(4)
	require.NoError(t, err)
	require.NoError(t, s.Set([]Color{0x010101, 0x020202, 0x030303, 0x040404}))

	// five bytes cover sector 0 and the red and green of sector 1
	require.NoError(t, s.WriteBytes(LayoutRGB, []byte{0xFF, 0x00, 0x00, 0x10, 0x20}))
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x10, 0x20, 0x02, 3, 3, 3, 4, 4, 4}, s.Bytes(LayoutRGB))
	assert.Equal(t, Color(0xFF0000), s.At(0))
	assert.Equal(t, Color(0x102002), s.At(1))
}

func TestWriteBytesLegacyZeroesPad(t *testing.T) {
	s, err := NewStore(2)
	require.NoError(t, err)

	require.NoError(t, s.WriteBytes(LayoutLegacy, []byte{0x33, 0x22, 0x11, 0x7F}))
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0x00}, s.Bytes(LayoutLegacy)[:4])
	assert.Equal(t, Color(0x112233), s.At(0))
}

func TestWriteBytesOverCapacity(t *testing.T) {
	s, err := NewStore(2)
	require.NoError(t, err)
	before := s.Commits()
	err = s.WriteBytes(LayoutRGB, make([]byte, 7))
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, before, s.Commits())
	assert.NoError(t, s.WriteBytes(LayoutRGB, make([]byte, 6)))
}

func TestSetWrongSize(t *testing.T) {
	s, err := NewStore(3)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Set(make([]Color, 2)), ErrSize)
}

func TestSnapshotIsStableAcrossUpdates(t *testing.T) {
	s, err := NewStore(3)
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NoError(t, s.Set([]Color{1, 2, 3}))
	assert.Equal(t, Frame{0, 0, 0}, snap)
	assert.Equal(t, Frame{1, 2, 3}, s.Snapshot())
}

func TestSnapshotNeverTorn(t *testing.T) {
	const n = 8
	s, err := NewStore(n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := uint8(0); ; v++ {
			select {
			case <-stop:
				return
			default:
			}
			frame := make([]Color, n)
			for i := range frame {
				frame[i] = RGB(v, v, v)
			}
			_ = s.Set(frame)
		}
	}()

	for i := 0; i < 10000; i++ {
		snap := s.Snapshot()
		for _, c := range snap {
			require.Equal(t, snap[0], c)
			require.Equal(t, c.R(), c.B())
		}
	}
	close(stop)
	wg.Wait()
}
