// Package gridcode encodes board state into compact printable IDs.
//
// A grid ID has the form "<size>:<cells>" where every base64 character
// carries three 2-bit cells in row-major order. IDs let the shell hand a
// board back to the engine (for example to ask for a density map) without
// a richer wire format.
package gridcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/salvo/internal/grid"
)

const cellsPerChar = 3

// Base64 alphabet used for grid ID encoding
const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// ErrInvalidID is returned when a grid ID cannot be decoded.
var ErrInvalidID = errors.New("invalid grid ID")

// MaxSize bounds the board side accepted by FromID.
const MaxSize = 64

// ID encodes every cell of g, ships included.
func ID(g *grid.Grid) string {
	return encode(g, false)
}

// AgentID encodes g as the targeting agent sees it: unfired ship cells are
// written as Unknown.
func AgentID(g *grid.Grid) string {
	return encode(g, true)
}

func encode(g *grid.Grid, hideShips bool) string {
	n := g.Len()
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(g.Size()))
	sb.WriteByte(':')

	for i := 0; i < n; i += cellsPerChar {
		var v uint8
		for k := 0; k < cellsPerChar && i+k < n; k++ {
			c := g.AtIndex(i + k)
			if hideShips && c == grid.Ship {
				c = grid.Unknown
			}
			v |= uint8(c) << (2 * k)
		}
		sb.WriteByte(base64Chars[v])
	}
	return sb.String()
}

// base64Decode decodes a base64 character to its value, or 0xff if the
// character is not part of the alphabet.
func base64Decode(ch byte) uint8 {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A'
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 26
	case ch >= '0' && ch <= '9':
		return ch - '0' + 52
	case ch == '+':
		return 62
	case ch == '/':
		return 63
	}
	return 0xff
}

// FromID decodes a grid ID produced by ID or AgentID.
func FromID(id string) (*grid.Grid, error) {
	sizeStr, body, ok := strings.Cut(id, ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing size prefix", ErrInvalidID)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 1 || size > MaxSize {
		return nil, fmt.Errorf("%w: bad size %q", ErrInvalidID, sizeStr)
	}

	n := size * size
	want := (n + cellsPerChar - 1) / cellsPerChar
	if len(body) != want {
		return nil, fmt.Errorf("%w: got %d characters, want %d", ErrInvalidID, len(body), want)
	}

	cells := make([]grid.Cell, n)
	for i := 0; i < len(body); i++ {
		v := base64Decode(body[i])
		if v == 0xff {
			return nil, fmt.Errorf("%w: bad character %q", ErrInvalidID, body[i])
		}
		for k := 0; k < cellsPerChar; k++ {
			idx := i*cellsPerChar + k
			c := grid.Cell((v >> (2 * k)) & 0x03)
			if idx >= n {
				if c != grid.Unknown {
					return nil, fmt.Errorf("%w: trailing bits set", ErrInvalidID)
				}
				continue
			}
			cells[idx] = c
		}
	}
	return grid.FromCells(size, cells)
}

// MissKey returns a key that identifies the Miss layout of g. Two grids with
// equal keys have identical unskewed density maps for the same fleet.
func MissKey(g *grid.Grid) string {
	n := g.Len()
	buf := make([]byte, 1+(n+7)/8)
	buf[0] = byte(g.Size())
	for i := 0; i < n; i++ {
		if g.AtIndex(i) == grid.Miss {
			buf[1+i/8] |= 1 << (i % 8)
		}
	}
	return string(buf)
}
