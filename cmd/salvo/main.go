// salvo - probabilistic Battleship targeting engine
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yourusername/salvo/internal/config"
	"github.com/yourusername/salvo/internal/logging"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/zap"
)

// app carries the state shared by all subcommands.
type app struct {
	// Global flags
	cfgPath    string
	verbose    bool
	boardSize  int
	fleet      string
	skew       bool
	skewFactor float64
	seed       int64

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "salvo",
		Short: "salvo - probabilistic Battleship targeting engine",
		Long: `salvo plays single-player Battleship against a hidden random fleet.

Every turn it counts the ship placements consistent with the misses so far,
boosts the cells around hits, and fires at the most likely unfired cell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "Path to a YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.IntVarP(&a.boardSize, "board-size", "n", engine.DefaultBoardSize, "Board side length")
	pf.StringVarP(&a.fleet, "fleet", "f", "4,3,2,1", "Comma separated ship lengths")
	pf.BoolVar(&a.skew, "skew", true, "Boost density around hits")
	pf.Float64Var(&a.skewFactor, "skew-factor", engine.DefaultSkewFactor, "Multiplier applied around hits")
	pf.Int64Var(&a.seed, "seed", 0, "Random seed (0 = random)")

	rootCmd.AddCommand(newPlayCmd(a), newMonteCarloCmd(a), newDensityCmd(a))
	return rootCmd
}

// setup merges config file, environment and flags, then builds the logger
// from the merged logging section.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("board-size") {
		cfg.Game.BoardSize = a.boardSize
	}
	if flags.Changed("fleet") {
		fleet, err := config.ParseFleet(a.fleet)
		if err != nil {
			return err
		}
		cfg.Game.Fleet = fleet
	}
	if flags.Changed("skew") {
		cfg.Game.Skew = a.skew
	}
	if flags.Changed("skew-factor") {
		cfg.Game.SkewFactor = a.skewFactor
	}
	if flags.Changed("seed") {
		cfg.MonteCarlo.Seed = a.seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, a.verbose)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newEngine creates an engine from the merged configuration.
func (a *app) newEngine() (*engine.Engine, error) {
	opts := a.cfg.EngineOptions()
	opts.Logger = a.logger
	e, err := engine.NewEngine(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.logger.Debug("engine ready",
		zap.Int("board_size", e.BoardSize()),
		zap.Ints("fleet", e.Fleet()),
		zap.Bool("skew", opts.SkewEnabled),
		zap.Float64("skew_factor", opts.SkewFactor))
	return e, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
