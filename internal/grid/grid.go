// Package grid implements the square playing field and one fleet's
// placement and resolution state.
//
// Cells are stored in a flat slice indexed by y*size+x. The only legal
// transitions are Unknown->Ship during placement and {Unknown,Ship}->{Miss,Hit}
// when a shot is resolved.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

// Cell is the state of a single board square.
type Cell uint8

const (
	Unknown Cell = iota // Not fired at, no ship
	Ship                // Not fired at, ship present
	Miss                // Fired at, no ship
	Hit                 // Fired at, ship present
)

// String returns the cell name.
func (c Cell) String() string {
	switch c {
	case Unknown:
		return "unknown"
	case Ship:
		return "ship"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	}
	return fmt.Sprintf("cell(%d)", uint8(c))
}

// Fired reports whether the cell has already been resolved by a shot.
func (c Cell) Fired() bool {
	return c == Miss || c == Hit
}

// Outcome is the result of resolving one shot.
type Outcome uint8

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
)

func (o Outcome) String() string {
	if o == OutcomeHit {
		return "hit"
	}
	return "miss"
}

var (
	// ErrDoubleFire is returned when a resolved cell is fired at again.
	ErrDoubleFire = errors.New("cell already fired at")
	// ErrOutOfBounds is returned for coordinates outside the grid.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
	// ErrInvalidSize is returned for a board side below 1.
	ErrInvalidSize = errors.New("invalid board size")
)

// Coord addresses a cell. X is the column, Y the row.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Grid is a square board of side Size.
type Grid struct {
	size  int
	cells []Cell
}

// New creates a grid with every cell Unknown.
func New(size int) (*Grid, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Grid{size: size, cells: make([]Cell, size*size)}, nil
}

// FromCells builds a grid from a row-major cell slice. The slice is copied.
func FromCells(size int, cells []Cell) (*Grid, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if len(cells) != size*size {
		return nil, fmt.Errorf("%w: %d cells for side %d", ErrInvalidSize, len(cells), size)
	}
	g := &Grid{size: size, cells: make([]Cell, len(cells))}
	copy(g.cells, cells)
	return g, nil
}

// Size returns the board side.
func (g *Grid) Size() int { return g.size }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Index returns the flat index of c. c must be in bounds.
func (g *Grid) Index(c Coord) int { return c.Y*g.size + c.X }

// CoordOf returns the coordinate of flat index i.
func (g *Grid) CoordOf(i int) Coord { return Coord{X: i % g.size, Y: i / g.size} }

// InBounds reports whether c lies on the board.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.size && c.Y < g.size
}

// At returns the cell at c. c must be in bounds.
func (g *Grid) At(c Coord) Cell { return g.cells[g.Index(c)] }

// AtIndex returns the cell at flat index i.
func (g *Grid) AtIndex(i int) Cell { return g.cells[i] }

// Cells returns a copy of the row-major cell slice.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}

// Fired reports whether the cell at c has been resolved.
func (g *Grid) Fired(c Coord) bool { return g.At(c).Fired() }

// Count returns how many cells hold state s.
func (g *Grid) Count(s Cell) int {
	n := 0
	for _, c := range g.cells {
		if c == s {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{size: g.size, cells: make([]Cell, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// step returns the unit offset for a run in the given orientation.
func step(vertical bool) Coord {
	if vertical {
		return Coord{X: 0, Y: 1}
	}
	return Coord{X: 1, Y: 0}
}

// CanPlace reports whether a run of length cells starting at origin fits on
// the board without covering any cell equal to obstacle. Placement passes
// Ship; the density pass passes Miss.
func (g *Grid) CanPlace(origin Coord, length int, vertical bool, obstacle Cell) bool {
	if length < 1 || !g.InBounds(origin) {
		return false
	}
	z := origin.X
	if vertical {
		z = origin.Y
	}
	if z+length-1 >= g.size {
		return false
	}
	d := step(vertical)
	idx := g.Index(origin)
	stride := d.Y*g.size + d.X
	for i := 0; i < length; i++ {
		if g.cells[idx] == obstacle {
			return false
		}
		idx += stride
	}
	return true
}

// Place marks the run as Ship. The caller must have checked CanPlace.
func (g *Grid) Place(origin Coord, length int, vertical bool) {
	d := step(vertical)
	idx := g.Index(origin)
	stride := d.Y*g.size + d.X
	for i := 0; i < length; i++ {
		g.cells[idx] = Ship
		idx += stride
	}
}

// Resolve fires at c. A Ship becomes Hit, anything else unfired becomes Miss.
func (g *Grid) Resolve(c Coord) (Outcome, error) {
	if !g.InBounds(c) {
		return OutcomeMiss, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
	}
	i := g.Index(c)
	switch g.cells[i] {
	case Ship:
		g.cells[i] = Hit
		return OutcomeHit, nil
	case Unknown:
		g.cells[i] = Miss
		return OutcomeMiss, nil
	default:
		return OutcomeMiss, fmt.Errorf("%w: %v is %v", ErrDoubleFire, c, g.cells[i])
	}
}

// Neighbors returns the in-bounds orthogonal neighbours of c.
func (g *Grid) Neighbors(c Coord) []Coord {
	adj := make([]Coord, 0, 4)
	for _, d := range [4]Coord{{0, 1}, {0, -1}, {1, 0}, {-1, 0}} {
		n := Coord{X: c.X + d.X, Y: c.Y + d.Y}
		if g.InBounds(n) {
			adj = append(adj, n)
		}
	}
	return adj
}

var cellGlyphs = [...]byte{Unknown: '.', Ship: 'S', Miss: 'o', Hit: 'X'}

// String renders the board one row per line.
func (g *Grid) String() string {
	var sb strings.Builder
	for y := 0; y < g.size; y++ {
		for x := 0; x < g.size; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(cellGlyphs[g.cells[y*g.size+x]])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
