package sector

import (
	"fmt"
	"strings"
)

// Layout is the byte encoding of the store used on the wire. A SetColors
// payload of n bytes replaces the first n bytes of the encoded store.
type Layout uint8

const (
	// LayoutRGB packs each sector as three bytes: red, green, blue.
	LayoutRGB Layout = iota
	// LayoutLegacy packs each sector as four bytes: blue, green, red, pad.
	// It is the little-endian memory image of a 0x00RRGGBB word.
	LayoutLegacy
)

// ParseLayout maps a config name to a Layout.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "", "rgb":
		return LayoutRGB, nil
	case "legacy", "bgr0":
		return LayoutLegacy, nil
	}
	return 0, fmt.Errorf("unknown wire layout %q", name)
}

func (l Layout) String() string {
	switch l {
	case LayoutRGB:
		return "rgb"
	case LayoutLegacy:
		return "legacy"
	}
	return fmt.Sprintf("layout(%d)", uint8(l))
}

// Stride is the number of bytes one sector occupies.
func (l Layout) Stride() int {
	if l == LayoutLegacy {
		return 4
	}
	return 3
}

// Capacity is the encoded size of n sectors.
func (l Layout) Capacity(n int) int {
	return n * l.Stride()
}

// Encode appends the encoding of colors to dst.
func (l Layout) Encode(dst []byte, colors []Color) []byte {
	for _, c := range colors {
		switch l {
		case LayoutLegacy:
			dst = append(dst, c.B(), c.G(), c.R(), 0)
		default:
			dst = append(dst, c.R(), c.G(), c.B())
		}
	}
	return dst
}

// Decode fills colors from p. len(p) must equal Capacity(len(colors)).
func (l Layout) Decode(colors []Color, p []byte) error {
	if len(p) != l.Capacity(len(colors)) {
		return fmt.Errorf("decode %s: got %d bytes for %d sectors", l, len(p), len(colors))
	}
	s := l.Stride()
	for i := range colors {
		b := p[i*s : i*s+s]
		switch l {
		case LayoutLegacy:
			colors[i] = RGB(b[2], b[1], b[0])
		default:
			colors[i] = RGB(b[0], b[1], b[2])
		}
	}
	return nil
}
