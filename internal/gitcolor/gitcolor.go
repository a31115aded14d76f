// Package gitcolor parses git's "color spec" mini-language
// (e.g. "bold red", "normal red", "#112233") as used by `git config
// color.*` values. No command in this module calls it.
package gitcolor

import (
	"fmt"
	"strconv"
	"strings"
)

// ColorKind distinguishes the representation a Color holds.
type ColorKind int

const (
	// Normal is git's explicit "use the terminal's default color" value.
	Normal ColorKind = iota
	// ANSI is one of the 8 basic named colors (0-7).
	ANSI
	// Ansi256 is an extended 256-color palette index (0-255).
	Ansi256
	// RGB is a 24-bit true color.
	RGB
)

// Color is a single parsed foreground or background color.
type Color struct {
	Kind       ColorKind
	ANSIIndex  uint8
	PaletteIdx uint8
	R, G, B    uint8
}

// Spec is the result of parsing a full color-spec string: zero, one, or
// two colors (foreground then background), plus any attribute keywords
// encountered. Attributes are tracked but do not affect foreground/
// background assignment except that using any attribute keyword blocks all
// subsequent color tokens from being assigned (see Parse).
type Spec struct {
	Foreground *Color
	Background *Color
	Attributes []string
}

var namedColors = map[string]uint8{
	"black":   0,
	"red":     1,
	"green":   2,
	"yellow":  3,
	"blue":    4,
	"magenta": 5,
	"cyan":    6,
	"white":   7,
}

var attributeKeywords = map[string]struct{}{
	"bold": {}, "nobold": {},
	"dim": {}, "nodim": {},
	"ul": {}, "noul": {},
	"blink": {}, "noblink": {},
	"reverse": {}, "noreverse": {},
	"italic": {}, "noitalic": {},
	"strike": {}, "nostrike": {},
}

type colorsSet int

const (
	colorsNone colorsSet = iota
	colorsFg
	colorsBoth
)

// Parse parses a git color-spec string. Any token that cannot be
// interpreted as a color or a known attribute aborts parsing and yields an
// empty Spec, matching git's own lenient behavior of silently ignoring a
// malformed spec rather than propagating a parse error up to the caller.
func Parse(spec string) Spec {
	var result Spec
	state := colorsNone

	for _, tok := range strings.Fields(spec) {
		if _, ok := attributeKeywords[tok]; ok {
			result.Attributes = append(result.Attributes, tok)
			state = colorsBoth
			continue
		}

		color, ok := parseColorToken(tok)
		if !ok {
			return Spec{}
		}

		// "normal"/"default" consume a foreground/background slot just like
		// any other color token, but are git's explicit "no color" value:
		// they advance the slot without ever being assigned into it
		// (git_color.rs:187), so terminal default is left in place.
		switch state {
		case colorsNone:
			if color.Kind != Normal {
				c := color
				result.Foreground = &c
			}
			state = colorsFg
		case colorsFg:
			if color.Kind != Normal {
				c := color
				result.Background = &c
			}
			state = colorsBoth
		case colorsBoth:
			// A third color token, or any color token after an attribute,
			// has nowhere to go and is ignored.
		}
	}

	return result
}

func parseColorToken(tok string) (Color, bool) {
	if tok == "normal" || tok == "default" {
		return Color{Kind: Normal}, true
	}
	if idx, ok := namedColors[strings.TrimPrefix(tok, "bright")]; ok {
		return Color{Kind: ANSI, ANSIIndex: idx}, true
	}
	if strings.HasPrefix(tok, "#") {
		c, err := ParseHexColor(tok)
		if err != nil {
			return Color{}, false
		}
		return c, true
	}
	if n, err := strconv.Atoi(tok); err == nil {
		if n < 0 || n > 255 {
			return Color{}, false
		}
		return Color{Kind: Ansi256, PaletteIdx: uint8(n)}, true
	}
	return Color{}, false
}

// hex color errors, returned by ParseHexColor.
var (
	ErrHexLength      = fmt.Errorf("hex color must be exactly 7 characters (#RRGGBB)")
	ErrHexMissingSigil = fmt.Errorf("hex color must start with '#'")
)

// ParseHexColor parses a "#RRGGBB" true-color literal. Validation order
// matches git's own: length is checked before the leading sigil, so a
// same-length string missing '#' reports a distinct error from one that is
// simply the wrong length.
func ParseHexColor(s string) (Color, error) {
	const hexColorLength = len("#RRGGBB")
	if len(s) != hexColorLength {
		return Color{}, ErrHexLength
	}
	if s[0] != '#' {
		return Color{}, ErrHexMissingSigil
	}

	r, err := strconv.ParseUint(s[1:3], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid red component: %w", err)
	}
	g, err := strconv.ParseUint(s[3:5], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid green component: %w", err)
	}
	b, err := strconv.ParseUint(s[5:7], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid blue component: %w", err)
	}

	return Color{Kind: RGB, R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}
