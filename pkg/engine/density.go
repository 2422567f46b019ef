package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/salvo/internal/grid"
	"gonum.org/v1/gonum/floats"
)

// DensityMap holds a relative likelihood per cell that a ship occupies it.
// Values are row-major, indexed like the grid.
type DensityMap struct {
	Size   int       `json:"size"`
	Values []float64 `json:"values"`
}

// NewDensityMap returns an all-zero map for a board of side size.
func NewDensityMap(size int) DensityMap {
	return DensityMap{Size: size, Values: make([]float64, size*size)}
}

// At returns the density at c.
func (d DensityMap) At(c grid.Coord) float64 {
	return d.Values[c.Y*d.Size+c.X]
}

// Clone returns an independent copy.
func (d DensityMap) Clone() DensityMap {
	v := make([]float64, len(d.Values))
	copy(v, d.Values)
	return DensityMap{Size: d.Size, Values: v}
}

// Total returns the sum of all densities.
func (d DensityMap) Total() float64 {
	return floats.Sum(d.Values)
}

// Equal reports whether two maps are identical.
func (d DensityMap) Equal(o DensityMap) bool {
	return d.Size == o.Size && floats.Equal(d.Values, o.Values)
}

// Rows returns the map as a slice of rows.
func (d DensityMap) Rows() [][]float64 {
	rows := make([][]float64, d.Size)
	for y := range rows {
		rows[y] = d.Values[y*d.Size : (y+1)*d.Size : (y+1)*d.Size]
	}
	return rows
}

// Format renders the map one row per line with right-aligned columns.
// Cells already fired at on g are printed as "-"; g may be nil.
func (d DensityMap) Format(g *grid.Grid) string {
	cellText := func(i int) string {
		if g != nil && g.AtIndex(i).Fired() {
			return "-"
		}
		return strconv.FormatFloat(d.Values[i], 'f', -1, 64)
	}

	width := 1
	for i := range d.Values {
		if w := len(cellText(i)); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for y := 0; y < d.Size; y++ {
		for x := 0; x < d.Size; x++ {
			if x > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%*s", width, cellText(y*d.Size+x))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (d DensityMap) String() string { return d.Format(nil) }

// ComputeDensity counts, for every cell, the ship placements consistent
// with the misses on g. Every ship length, origin and orientation whose run
// fits on the board and crosses no Miss adds one to each covered cell.
//
// Hit cells are not obstacles and accumulate density like any other cell;
// the targeting policy excludes them separately. A length-1 ship is counted
// once per orientation.
func ComputeDensity(g *grid.Grid, fleet Fleet) DensityMap {
	size := g.Size()
	d := NewDensityMap(size)

	for _, length := range fleet {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				origin := grid.Coord{X: x, Y: y}
				if g.CanPlace(origin, length, false, grid.Miss) {
					idx := y*size + x
					for i := 0; i < length; i++ {
						d.Values[idx+i]++
					}
				}
				if g.CanPlace(origin, length, true, grid.Miss) {
					idx := y*size + x
					for i := 0; i < length; i++ {
						d.Values[idx+i*size]++
					}
				}
			}
		}
	}
	return d
}

// SkewAroundHits multiplies by factor the density of every Hit cell and of
// each in-bounds orthogonal neighbour of a hit. Every cell is multiplied at
// most once, however many hits it touches. It must run on a complete
// density map and returns the number of cells skewed.
func SkewAroundHits(d DensityMap, g *grid.Grid, factor float64) int {
	n := g.Len()
	visited := make([]bool, n)

	for i := 0; i < n; i++ {
		if g.AtIndex(i) != grid.Hit {
			continue
		}
		visited[i] = true
		for _, c := range g.Neighbors(g.CoordOf(i)) {
			visited[g.Index(c)] = true
		}
	}

	skewed := 0
	for i, v := range visited {
		if v {
			d.Values[i] *= factor
			skewed++
		}
	}
	return skewed
}
