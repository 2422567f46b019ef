package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/internal/gridcode"
	"github.com/yourusername/salvo/pkg/engine"
)

func newDensityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "density [grid-id]",
		Short: "Print the density map and next target for a board",
		Long: `Prints the probability density map for a board and the cell the engine
would fire at next. Without an argument the board is empty.

Grid IDs are printed by the API (grid_id) and look like "5:AAAAAAAAA".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var g *grid.Grid
			if len(args) == 1 {
				var err error
				if g, err = gridcode.FromID(args[0]); err != nil {
					return err
				}
				a.cfg.Game.BoardSize = g.Size()
			}
			return a.runDensity(cmd, g)
		},
	}
}

func (a *app) runDensity(cmd *cobra.Command, g *grid.Grid) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	if g == nil {
		if g, err = grid.New(e.BoardSize()); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	target, d, err := e.Target(g)
	switch {
	case errors.Is(err, engine.ErrNoCandidateCell):
		d = e.Density(g)
		fmt.Fprint(out, d.Format(g))
		fmt.Fprintf(out, "\nTotal: %g\nTarget: none\n", d.Total())
		return nil
	case err != nil:
		return err
	}

	fmt.Fprint(out, d.Format(g))
	fmt.Fprintf(out, "\nTotal: %g\nTarget: %v (%g)\n", d.Total(), target, d.At(target))
	return nil
}
