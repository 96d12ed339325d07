// Package bcm renders sector colors as binary code modulation frames.
//
// One cycle is 256 ticks of a free-running 8-bit counter. Bit-plane k is
// rendered when the counter reaches 1<<k and stays latched until the next
// plane fires, so it is displayed for 1<<k ticks (plane 7 also covers the
// wrap tick). Integrated over a cycle, a channel value v is lit for
// v + v>>7 ticks.
package bcm

import "fmt"

// Plane names one bit of every 8-bit channel value.
type Plane uint8

const (
	Plane0 Plane = iota
	Plane1
	Plane2
	Plane3
	Plane4
	Plane5
	Plane6
	Plane7
)

// Planes lists every plane in cycle order.
var Planes = [...]Plane{Plane0, Plane1, Plane2, Plane3, Plane4, Plane5, Plane6, Plane7}

// Mask is the single-bit channel mask tested by the plane.
func (p Plane) Mask() uint8 {
	return 1 << p
}

// Ticks is how long the plane stays latched within one cycle.
func (p Plane) Ticks() int {
	if p == Plane7 {
		return 129
	}
	return 1 << p
}

func (p Plane) String() string {
	return fmt.Sprintf("plane%d", uint8(p))
}

// PlaneForTick reports the plane that renders when the counter reaches tick.
// Only single-bit tick values render.
func PlaneForTick(tick uint8) (Plane, bool) {
	switch tick {
	case 1:
		return Plane0, true
	case 2:
		return Plane1, true
	case 4:
		return Plane2, true
	case 8:
		return Plane3, true
	case 16:
		return Plane4, true
	case 32:
		return Plane5, true
	case 64:
		return Plane6, true
	case 128:
		return Plane7, true
	}
	return 0, false
}

// PlaneForMask is the inverse of Plane.Mask.
func PlaneForMask(mask uint8) (Plane, bool) {
	return PlaneForTick(mask)
}
