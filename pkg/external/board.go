package external

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/salvo/internal/grid"
)

// ErrInvalidBoard is returned when a text board cannot be parsed.
var ErrInvalidBoard = errors.New("invalid board")

// Board glyphs. Ships are optional in input; a board sent by an agent
// normally only holds what it has observed.
const (
	glyphUnknown = '.'
	glyphShip    = 'S'
	glyphMiss    = 'o'
	glyphHit     = 'X'
)

// ParseBoard parses a text board.
// Format: board:<row>/<row>/.../<row>, one glyph per cell, rows top to bottom.
// Glyphs: '.' unknown, 'o' miss, 'X' hit, 'S' unfired ship.
func ParseBoard(s string) (*grid.Grid, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "board:")

	rows := strings.Split(s, "/")
	size := len(rows)
	cells := make([]grid.Cell, 0, size*size)
	for y, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidBoard, y, len(row), size)
		}
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case glyphUnknown:
				cells = append(cells, grid.Unknown)
			case glyphShip:
				cells = append(cells, grid.Ship)
			case glyphMiss:
				cells = append(cells, grid.Miss)
			case glyphHit, 'x':
				cells = append(cells, grid.Hit)
			default:
				return nil, fmt.Errorf("%w: bad glyph %q at row %d", ErrInvalidBoard, row[x], y)
			}
		}
	}

	g, err := grid.FromCells(size, cells)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}
	return g, nil
}

// FormatBoard writes g in the format ParseBoard reads. With hideShips set,
// unfired ship cells are written as unknown.
func FormatBoard(g *grid.Grid, hideShips bool) string {
	size := g.Size()
	var sb strings.Builder
	sb.WriteString("board:")
	for y := 0; y < size; y++ {
		if y > 0 {
			sb.WriteByte('/')
		}
		for x := 0; x < size; x++ {
			var ch byte
			switch g.At(grid.Coord{X: x, Y: y}) {
			case grid.Ship:
				ch = glyphShip
				if hideShips {
					ch = glyphUnknown
				}
			case grid.Miss:
				ch = glyphMiss
			case grid.Hit:
				ch = glyphHit
			default:
				ch = glyphUnknown
			}
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// FormatCoord formats c in Battleship notation: column letter, then the
// 1-based row, e.g. (2,2) is "C3". Boards wider than 26 columns fall back
// to "x,y".
func FormatCoord(c grid.Coord, size int) string {
	if size > 26 {
		return fmt.Sprintf("%d,%d", c.X, c.Y)
	}
	return string(rune('A'+c.X)) + strconv.Itoa(c.Y+1)
}

// parseCoord parses a coordinate written by FormatCoord.
func parseCoord(s string) (grid.Coord, error) {
	s = strings.TrimSpace(s)
	if xs, ys, ok := strings.Cut(s, ","); ok {
		x, errX := strconv.Atoi(xs)
		y, errY := strconv.Atoi(ys)
		if errX != nil || errY != nil {
			return grid.Coord{}, fmt.Errorf("invalid coordinate %q", s)
		}
		return grid.Coord{X: x, Y: y}, nil
	}
	if len(s) < 2 {
		return grid.Coord{}, fmt.Errorf("invalid coordinate %q", s)
	}
	col := s[0]
	if col >= 'a' && col <= 'z' {
		col -= 'a' - 'A'
	}
	if col < 'A' || col > 'Z' {
		return grid.Coord{}, fmt.Errorf("invalid column in %q", s)
	}
	row, err := strconv.Atoi(s[1:])
	if err != nil || row < 1 {
		return grid.Coord{}, fmt.Errorf("invalid row in %q", s)
	}
	return grid.Coord{X: int(col - 'A'), Y: row - 1}, nil
}
