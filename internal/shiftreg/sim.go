package shiftreg

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Sim models the chain in memory: bytes shift into the registers on End and
// reach the outputs on a rising latch edge.
type Sim struct {
	mu       sync.Mutex
	pending  []byte
	register []byte
	latched  []byte
	level    gpio.Level
	latches  uint64
}

func NewSim() *Sim { return &Sim{} }

func (s *Sim) Begin() error {
	s.mu.Lock()
	s.pending = s.pending[:0]
	s.mu.Unlock()
	return nil
}

func (s *Sim) ShiftOut(b byte) error {
	s.mu.Lock()
	s.pending = append(s.pending, b)
	s.mu.Unlock()
	return nil
}

func (s *Sim) End() error {
	s.mu.Lock()
	s.register = append(s.register[:0], s.pending...)
	s.mu.Unlock()
	return nil
}

func (s *Sim) Latch(l gpio.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == gpio.High && s.level == gpio.Low {
		s.latched = append(s.latched[:0], s.register...)
		s.latches++
	}
	s.level = l
	return nil
}

// Latched returns a copy of the bytes currently on the register outputs.
func (s *Sim) Latched() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.latched...)
}

// Latches counts rising latch edges.
func (s *Sim) Latches() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latches
}

func (s *Sim) Close() error { return nil }

func (s *Sim) String() string { return "shiftreg(sim)" }
