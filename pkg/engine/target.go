package engine

import (
	"fmt"

	"github.com/yourusername/salvo/internal/grid"
)

// SelectTarget picks the unfired cell with the greatest density.
//
// Cells are scanned in row-major order and only a strictly greater value
// replaces the current best, so ties go to the first cell scanned. Miss and
// Hit cells are never candidates whatever their density. If no unfired cell
// has positive density, ErrNoCandidateCell is returned.
func SelectTarget(g *grid.Grid, d DensityMap) (grid.Coord, error) {
	if d.Size != g.Size() || len(d.Values) != g.Len() {
		return grid.Coord{}, fmt.Errorf("%w: density map side %d, grid side %d",
			ErrInvalidConfiguration, d.Size, g.Size())
	}

	best := 0.0
	bestIdx := -1
	for i, v := range d.Values {
		if g.AtIndex(i).Fired() {
			continue
		}
		if v > best {
			best = v
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return grid.Coord{}, ErrNoCandidateCell
	}
	return g.CoordOf(bestIdx), nil
}
