package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPlayCmd(a *app) *cobra.Command {
	var (
		delay       time.Duration
		showDensity bool
		showBoard   bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one game and print every shot",
		Long: `Places a random fleet and fires until it is sunk, printing each turn.

With --delay the turns are paced like an interactive session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlay(cmd, delay, showDensity, showBoard)
		},
	}

	cmd.Flags().DurationVarP(&delay, "delay", "d", 0, "Pause between shots (e.g. 50ms)")
	cmd.Flags().BoolVar(&showDensity, "show-density", false, "Print the density map before each shot")
	cmd.Flags().BoolVar(&showBoard, "show-board", false, "Print the board, ships included, after the game")
	return cmd
}

func (a *app) runPlay(cmd *cobra.Command, delay time.Duration, showDensity, showBoard bool) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	g, err := e.NewGame(a.cfg.MonteCarlo.Seed)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var tick <-chan time.Time
	if delay > 0 {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	for !g.Done() {
		before := g.Grid()
		res, err := g.Step()
		if err != nil {
			return fmt.Errorf("move %d: %w", g.Moves()+1, err)
		}

		if showDensity {
			fmt.Fprintln(out, res.Density.Format(before))
		}
		fmt.Fprintf(out, "Move %2d: fire %v -> %-4s (%d/%d hits)\n",
			res.Moves, res.Fired, res.Outcome, res.HitsMade, res.HitsToWin)

		if tick != nil && !res.Done {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	fmt.Fprintf(out, "\nFleet sunk in %d moves\n", g.Moves())
	if showBoard {
		fmt.Fprintf(out, "\n%s", g.Grid())
	}

	a.logger.Debug("game finished",
		zap.Int("moves", g.Moves()),
		zap.Int("hits_to_win", g.HitsToWin()))
	return nil
}
