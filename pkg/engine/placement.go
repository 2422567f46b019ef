package engine

import (
	"fmt"
	"math/rand"

	"github.com/yourusername/salvo/internal/grid"
)

// PlaceFleet scatters fleet on g by rejection sampling. For each ship, in
// fleet order, the orientation is drawn once (50/50) and uniformly random
// origins are drawn until the run fits without overlapping another ship.
//
// There is no backtracking: a ship that cannot fit given the ships already
// placed is retried until maxAttempts origins have been rejected, at which
// point an error wrapping ErrInvalidConfiguration is returned. maxAttempts
// <= 0 retries forever, which never terminates for a fleet that cannot fit.
func PlaceFleet(g *grid.Grid, fleet Fleet, rng *rand.Rand, maxAttempts int) error {
	size := g.Size()
	for i, length := range fleet {
		vertical := rng.Intn(2) == 1

		placed := false
		for attempt := 0; maxAttempts <= 0 || attempt < maxAttempts; attempt++ {
			origin := grid.Coord{X: rng.Intn(size), Y: rng.Intn(size)}
			if g.CanPlace(origin, length, vertical, grid.Ship) {
				g.Place(origin, length, vertical)
				placed = true
				break
			}
		}
		if !placed {
			return fmt.Errorf("%w: ship %d (length %d) not placed after %d attempts",
				ErrInvalidConfiguration, i, length, maxAttempts)
		}
	}
	return nil
}
