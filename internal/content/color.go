package content

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGBA is a color with components in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

var ErrInvalidColor = errors.New("invalid hex color")

// ParseHex parses RRGGBB or RRGGBBAA with an optional leading '#'.
func ParseHex(s string) (RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return RGBA{}, fmt.Errorf("color %q: want 6 or 8 hex digits: %w", s, ErrInvalidColor)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("color %q: %w: %v", s, ErrInvalidColor, err)
	}
	if len(h) == 6 {
		return RGBA{
			R: float64(v>>16&0xFF) / 255,
			G: float64(v>>8&0xFF) / 255,
			B: float64(v&0xFF) / 255,
			A: 1,
		}, nil
	}
	return RGBA{
		R: float64(v>>24&0xFF) / 255,
		G: float64(v>>16&0xFF) / 255,
		B: float64(v>>8&0xFF) / 255,
		A: float64(v&0xFF) / 255,
	}, nil
}

// IsHexColor reports whether s is a '#'-prefixed hex color. Bare hex strings
// are left as text since they are usually hashes or IDs.
func IsHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	_, err := ParseHex(s)
	return err == nil
}

// Hex renders the color as #RRGGBB, dropping alpha.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", to8(c.R), to8(c.G), to8(c.B))
}

// Luminance is the relative luminance, 0 darkest and 1 lightest.
func (c RGBA) Luminance() float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

// IsLight reports whether dark text should be drawn over the color.
func (c RGBA) IsLight() bool {
	return c.Luminance() > 0.5
}

func to8(f float64) int {
	return int(math.Round(f * 255))
}
