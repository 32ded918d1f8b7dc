package core

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrNoIdentifier is returned for satellite names that contain no digits.
var ErrNoIdentifier = errors.New("satellite name has no digits")

// category10 is d3's schemeCategory10.
var category10 = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// SatelliteID returns every digit of name, concatenated in order.
func SatelliteID(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%q: %w", name, ErrNoIdentifier)
	}
	return b.String(), nil
}

// Category10 returns the ten-colour categorical palette.
func Category10() []color.RGBA {
	out := make([]color.RGBA, 0, len(category10))
	for _, hex := range category10 {
		c, err := colorful.Hex(hex)
		if err != nil {
			panic(fmt.Sprintf("core: bad palette entry %s: %v", hex, err))
		}
		r, g, b := c.RGB255()
		out = append(out, color.RGBA{R: r, G: g, B: b, A: 0xff})
	}
	return out
}

// ColorAssigner hands out palette colours to identifiers in order of first
// appearance, cycling once the palette is exhausted. An identifier keeps
// its colour for the life of the assigner.
type ColorAssigner struct {
	palette []color.RGBA

	mu       sync.Mutex
	assigned map[string]color.RGBA
}

// NewColorAssigner uses palette, or Category10 when none is given.
func NewColorAssigner(palette ...color.RGBA) *ColorAssigner {
	if len(palette) == 0 {
		palette = Category10()
	}
	return &ColorAssigner{
		palette:  palette,
		assigned: make(map[string]color.RGBA),
	}
}

func (a *ColorAssigner) Color(id string) color.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.assigned[id]; ok {
		return c
	}
	c := a.palette[len(a.assigned)%len(a.palette)]
	a.assigned[id] = c
	return c
}

// Len reports how many identifiers have been assigned a colour.
func (a *ColorAssigner) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.assigned)
}
