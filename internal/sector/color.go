package sector

import (
	"fmt"
	"image/color"
	"strconv"
)

// Channel selects one 8-bit component of a Color. The numeric value times 8
// is the component's bit offset, so channels sort in render order.
type Channel uint8

const (
	Blue Channel = iota
	Green
	Red
)

// Channels lists every channel in the order the renderer shifts them out.
var Channels = [...]Channel{Blue, Green, Red}

func (ch Channel) offset() uint8 {
	return uint8(ch) * 8
}

func (ch Channel) String() string {
	switch ch {
	case Blue:
		return "blue"
	case Green:
		return "green"
	case Red:
		return "red"
	}
	return fmt.Sprintf("channel(%d)", uint8(ch))
}

// Color is a 24-bit sector color laid out as 0x00RRGGBB.
type Color uint32

// RGB packs three channel values into a Color.
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<Red.offset() | uint32(g)<<Green.offset() | uint32(b)<<Blue.offset())
}

// FromNRGBA drops alpha and packs the remaining components.
func FromNRGBA(c color.NRGBA) Color {
	return RGB(c.R, c.G, c.B)
}

func setchannel(c uint32, n uint8, off uint8) uint32 {
	mask := uint32(0xFF) << off
	return (c &^ mask) | uint32(n)<<off
}

func getchannel(c uint32, off uint8) uint8 {
	return uint8((c >> off) & 0xFF)
}

// Channel returns the value of one component.
func (c Color) Channel(ch Channel) uint8 {
	return getchannel(uint32(c), ch.offset())
}

// With returns c with one component replaced.
func (c Color) With(ch Channel, v uint8) Color {
	return Color(setchannel(uint32(c), v, ch.offset()))
}

func (c Color) R() uint8 { return c.Channel(Red) }
func (c Color) G() uint8 { return c.Channel(Green) }
func (c Color) B() uint8 { return c.Channel(Blue) }

// NRGBA converts to an opaque image color for display drivers.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: 255}
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

// ParseColor accepts "RRGGBB", "#RRGGBB" or "0xRRGGBB".
func ParseColor(s string) (Color, error) {
	switch {
	case len(s) > 0 && s[0] == '#':
		s = s[1:]
	case len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X'):
		s = s[2:]
	}
	if len(s) != 6 {
		return 0, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return Color(v), nil
}
