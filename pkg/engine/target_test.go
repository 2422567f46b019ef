package engine

import (
	"errors"
	"testing"

	"github.com/yourusername/salvo/internal/grid"
)

func TestSelectTargetTieBreak(t *testing.T) {
	g := emptyGrid(t, 3)
	d := DensityMap{Size: 3, Values: []float64{
		1, 2, 5,
		0, 5, 1,
		5, 0, 0,
	}}

	for i := 0; i < 10; i++ {
		c, err := SelectTarget(g, d)
		if err != nil {
			t.Fatalf("SelectTarget failed: %v", err)
		}
		if want := (grid.Coord{X: 2, Y: 0}); c != want {
			t.Fatalf("SelectTarget = %v, want first maximum %v", c, want)
		}
	}
}

func TestSelectTargetSkipsFiredCells(t *testing.T) {
	g := emptyGrid(t, 3)
	g.Place(grid.Coord{X: 1, Y: 1}, 1, false)
	g.Resolve(grid.Coord{X: 2, Y: 0}) // miss
	g.Resolve(grid.Coord{X: 1, Y: 1}) // hit

	d := DensityMap{Size: 3, Values: []float64{
		1, 2, 9,
		0, 9, 1,
		4, 0, 0,
	}}
	c, err := SelectTarget(g, d)
	if err != nil {
		t.Fatalf("SelectTarget failed: %v", err)
	}
	if want := (grid.Coord{X: 0, Y: 2}); c != want {
		t.Errorf("SelectTarget = %v, want %v", c, want)
	}
}

func TestSelectTargetShipCellsAreCandidates(t *testing.T) {
	g := emptyGrid(t, 2)
	g.Place(grid.Coord{X: 1, Y: 1}, 1, false)
	d := DensityMap{Size: 2, Values: []float64{0, 0, 0, 1}}

	c, err := SelectTarget(g, d)
	if err != nil || c != (grid.Coord{X: 1, Y: 1}) {
		t.Errorf("SelectTarget = %v, %v; want hidden ship cell (1,1)", c, err)
	}
}

func TestSelectTargetNoCandidate(t *testing.T) {
	g := emptyGrid(t, 2)
	g.Resolve(grid.Coord{X: 0, Y: 0})
	d := DensityMap{Size: 2, Values: []float64{7, 0, 0, 0}}

	if _, err := SelectTarget(g, d); !errors.Is(err, ErrNoCandidateCell) {
		t.Errorf("SelectTarget err = %v, want ErrNoCandidateCell", err)
	}
}

func TestSelectTargetSizeMismatch(t *testing.T) {
	g := emptyGrid(t, 3)
	if _, err := SelectTarget(g, NewDensityMap(2)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("SelectTarget err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestFirstTargetIsCenter(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	c, d, err := e.Target(emptyGrid(t, 5))
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if want := (grid.Coord{X: 2, Y: 2}); c != want {
		t.Errorf("first target = %v, want %v", c, want)
	}
	if d.At(c) != 16 {
		t.Errorf("density at first target = %v, want 16", d.At(c))
	}
}
