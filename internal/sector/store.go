package sector

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultSectors is the ring size of the reference hardware.
const DefaultSectors = 32

var (
	// ErrSize is returned when a replacement frame has the wrong length.
	ErrSize = errors.New("sector count mismatch")
	// ErrCapacity is returned when an encoded write exceeds the store.
	ErrCapacity = errors.New("payload exceeds store capacity")
)

// Frame is an immutable snapshot of every sector color.
type Frame []Color

// Store holds the current color of every sector. Readers load a published
// Frame with one atomic load; writers build a private copy and publish it
// with one atomic store, so a reader never sees a half written color.
type Store struct {
	n   int
	cur atomic.Pointer[Frame]

	mu      sync.Mutex // serializes writers
	commits atomic.Uint64
}

// NewStore returns a store of n sectors, all black.
func NewStore(n int) (*Store, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid sector count: %d", n)
	}
	s := &Store{n: n}
	f := make(Frame, n)
	s.cur.Store(&f)
	return s, nil
}

// Len is the fixed number of sectors.
func (s *Store) Len() int { return s.n }

// Commits counts published frames.
func (s *Store) Commits() uint64 { return s.commits.Load() }

// Snapshot returns the current frame. Callers must not modify it.
func (s *Store) Snapshot() Frame {
	return *s.cur.Load()
}

// At returns the color of sector i.
func (s *Store) At(i int) Color {
	return s.Snapshot()[i]
}

// Set replaces every sector at once.
func (s *Store) Set(colors []Color) error {
	if len(colors) != s.n {
		return fmt.Errorf("set %d colors on %d sectors: %w", len(colors), s.n, ErrSize)
	}
	return s.Update(func(staging Frame) error {
		copy(staging, colors)
		return nil
	})
}

// Update runs fn on a copy of the current frame and publishes the copy if fn
// returns nil. The store is unchanged when fn fails.
func (s *Store) Update(fn func(staging Frame) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staging := make(Frame, s.n)
	copy(staging, *s.cur.Load())
	if err := fn(staging); err != nil {
		return err
	}
	s.cur.Store(&staging)
	s.commits.Add(1)
	return nil
}

// Bytes encodes the current frame with l.
func (s *Store) Bytes(l Layout) []byte {
	return l.Encode(make([]byte, 0, l.Capacity(s.n)), s.Snapshot())
}

// Capacity is the largest payload WriteBytes accepts for l.
func (s *Store) Capacity(l Layout) int {
	return l.Capacity(s.n)
}

// WriteBytes overwrites the first len(p) bytes of the encoded store and
// leaves the rest as it was.
func (s *Store) WriteBytes(l Layout, p []byte) error {
	if len(p) > l.Capacity(s.n) {
		return fmt.Errorf("write %d bytes into %d: %w", len(p), l.Capacity(s.n), ErrCapacity)
	}
	return s.Update(func(staging Frame) error {
		raw := l.Encode(make([]byte, 0, l.Capacity(s.n)), staging)
		copy(raw, p)
		return l.Decode(staging, raw)
	})
}
