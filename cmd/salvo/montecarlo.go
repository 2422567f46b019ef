package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourusername/salvo/pkg/engine"
)

func newMonteCarloCmd(a *app) *cobra.Command {
	var (
		trials    int
		workers   int
		progress  bool
		histogram bool
	)

	cmd := &cobra.Command{
		Use:     "montecarlo",
		Aliases: []string{"mc"},
		Short:   "Estimate the mean number of moves to sink the fleet",
		Long: `Plays many independent games in parallel and reports the average
number of shots needed, with a 95% confidence interval.

Default trials are 500 with skew and 100000 without.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("trials") {
				a.cfg.MonteCarlo.Trials = trials
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.MonteCarlo.Workers = workers
			}
			return a.runMonteCarlo(cmd, progress, histogram)
		},
	}

	cmd.Flags().IntVarP(&trials, "trials", "t", 0, "Number of games (0 = default for the skew setting)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress to stderr")
	cmd.Flags().BoolVar(&histogram, "histogram", false, "Print the distribution of game lengths")
	return cmd
}

func (a *app) runMonteCarlo(cmd *cobra.Command, progress, histogram bool) error {
	opts := a.cfg.MonteCarloOptions()
	if opts.Trials < 0 || opts.Workers < 0 {
		return fmt.Errorf("trials and workers must not be negative")
	}

	e, err := a.newEngine()
	if err != nil {
		return err
	}

	var callback engine.ProgressCallback
	if progress {
		errOut := cmd.ErrOrStderr()
		callback = func(p engine.MonteCarloProgress) {
			fmt.Fprintf(errOut, "\r%5.1f%%  %d/%d  mean %.3f ± %.3f",
				p.Percent, p.TrialsCompleted, p.TrialsTotal, p.CurrentMean, p.CurrentCI)
		}
	}

	result, err := e.MonteCarloWithProgress(cmd.Context(), opts, callback)
	if progress {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("monte carlo failed: %w", err)
	}

	printMonteCarlo(cmd.OutOrStdout(), e, result, histogram)
	return nil
}

func printMonteCarlo(out io.Writer, e *engine.Engine, r *engine.MonteCarloResult, histogram bool) {
	opts := e.Options()
	skew := "off"
	if opts.SkewEnabled {
		skew = fmt.Sprintf("x%g", opts.SkewFactor)
	}

	fmt.Fprintf(out, "Board:       %dx%d, fleet %v, skew %s\n", e.BoardSize(), e.BoardSize(), []int(e.Fleet()), skew)
	fmt.Fprintf(out, "Trials:      %d (seed %d)\n", r.Trials, r.Seed)
	fmt.Fprintf(out, "Mean moves:  %.4f ± %.4f (95%% CI)\n", r.MeanMoves, r.CI95)
	fmt.Fprintf(out, "Std dev:     %.4f\n", r.StdDev)
	fmt.Fprintf(out, "Range:       %d - %d\n", r.MinMoves, r.MaxMoves)
	fmt.Fprintf(out, "Elapsed:     %v\n", r.Elapsed.Round(time.Millisecond))

	if !histogram {
		return
	}
	moves := make([]int, 0, len(r.Histogram))
	for m := range r.Histogram {
		moves = append(moves, m)
	}
	sort.Ints(moves)

	fmt.Fprintln(out, "\nMoves  Games")
	for _, m := range moves {
		fmt.Fprintf(out, "%5d  %d\n", m, r.Histogram[m])
	}
}
