package engine

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Default trial counts. Skewed runs are slower per game, so they get fewer
// trials; both settings measure the same heuristic.
const (
	DefaultSkewTrials   = 500
	DefaultNoSkewTrials = 100000
)

// MonteCarloOptions controls Monte Carlo execution
type MonteCarloOptions struct {
	Trials  int   // Number of games to play (0 = DefaultTrials)
	Seed    int64 // RNG seed (0 = use a random seed)
	Workers int   // Number of parallel workers (0 = GOMAXPROCS)
}

// MonteCarloProgress contains progress information during an evaluation
type MonteCarloProgress struct {
	TrialsCompleted int     // Number of games completed so far
	TrialsTotal     int     // Total number of games
	Percent         float64 // Percentage complete (0-100)
	CurrentMean     float64 // Current mean moves to win
	CurrentCI       float64 // Current 95% confidence interval
}

// ProgressCallback is called periodically during an evaluation
type ProgressCallback func(progress MonteCarloProgress)

// MonteCarloResult summarises moves-to-win over all trials
type MonteCarloResult struct {
	Trials     int           // Games completed
	TotalMoves int           // Sum of moves over all games
	MeanMoves  float64       // TotalMoves / Trials
	StdDev     float64       // Sample standard deviation of moves
	CI95       float64       // 95% confidence interval (+/-) of the mean
	MinMoves   int           // Fastest game
	MaxMoves   int           // Slowest game
	Histogram  map[int]int   // Moves -> number of games
	Seed       int64         // Seed actually used
	Elapsed    time.Duration // Wall time
}

// partialResult holds results from a single worker batch
type partialResult struct {
	trials int
	moves  int
	counts map[int]int
}

// DefaultTrials returns the default trial count for the engine's skew setting.
func (e *Engine) DefaultTrials() int {
	if e.opts.SkewEnabled {
		return DefaultSkewTrials
	}
	return DefaultNoSkewTrials
}

// MonteCarlo plays opts.Trials independent games and reports the average
// number of moves needed to sink the fleet.
func (e *Engine) MonteCarlo(ctx context.Context, opts MonteCarloOptions) (*MonteCarloResult, error) {
	return e.MonteCarloWithProgress(ctx, opts, nil)
}

// MonteCarloWithProgress is MonteCarlo with periodic progress callbacks.
// The callback runs on the caller's goroutine after each batch of games.
//
// Trials are split across workers. Every worker owns its RNG, seeded from
// opts.Seed and the worker index, and every trial is a new Game with its own
// placement; the per-worker move counts are the only shared data.
func (e *Engine) MonteCarloWithProgress(ctx context.Context, opts MonteCarloOptions, callback ProgressCallback) (*MonteCarloResult, error) {
	// Set defaults
	if opts.Trials <= 0 {
		opts.Trials = e.DefaultTrials()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Trials {
		opts.Workers = opts.Trials
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Int63()
	}

	trialsPerWorker := opts.Trials / opts.Workers
	extraTrials := opts.Trials % opts.Workers

	// Report progress approximately 20 times when a callback is set
	batchSize := trialsPerWorker + 1
	if callback != nil {
		batchSize = opts.Trials / 20 / opts.Workers
		if batchSize < 1 {
			batchSize = 1
		}
	}

	start := time.Now()
	results := make(chan partialResult, opts.Workers*4)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < opts.Workers; i++ {
		workerTrials := trialsPerWorker
		if i < extraTrials {
			workerTrials++
		}
		workerSeed := opts.Seed + int64(i)*1000000

		g.Go(func() error {
			return e.monteCarloWorker(gctx, workerTrials, workerSeed, batchSize, results)
		})
	}

	var waitErr error
	done := make(chan struct{})
	go func() {
		waitErr = g.Wait()
		close(results)
		close(done)
	}()

	result := aggregateMonteCarlo(results, opts.Trials, callback)
	<-done
	if waitErr != nil {
		return nil, waitErr
	}

	result.Seed = opts.Seed
	result.Elapsed = time.Since(start)

	e.logger.Debug("monte carlo finished",
		zap.Int("trials", result.Trials),
		zap.Int("workers", opts.Workers),
		zap.Float64("mean_moves", result.MeanMoves),
		zap.Float64("ci95", result.CI95),
		zap.Duration("elapsed", result.Elapsed))

	return result, nil
}

// monteCarloWorker plays trials games on one RNG, reporting every batch.
func (e *Engine) monteCarloWorker(ctx context.Context, trials int, seed int64, batchSize int, results chan<- partialResult) error {
	rng := rand.New(rand.NewSource(seed))

	for remaining := trials; remaining > 0; {
		current := batchSize
		if current > remaining {
			current = remaining
		}

		pr := partialResult{counts: make(map[int]int)}
		for i := 0; i < current; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			game, err := e.NewGameWithRand(rng)
			if err != nil {
				return err
			}
			moves, err := game.Play()
			if err != nil {
				return err
			}
			pr.trials++
			pr.moves += moves
			pr.counts[moves]++
		}

		results <- pr
		remaining -= current
	}
	return nil
}

// aggregateMonteCarlo reduces worker batches into a result
func aggregateMonteCarlo(results <-chan partialResult, totalTrials int, callback ProgressCallback) *MonteCarloResult {
	res := &MonteCarloResult{Histogram: make(map[int]int)}

	for pr := range results {
		res.Trials += pr.trials
		res.TotalMoves += pr.moves
		for m, n := range pr.counts {
			res.Histogram[m] += n
		}

		if callback != nil && res.Trials > 0 {
			mean, _, ci := histogramStats(res.Histogram)
			callback(MonteCarloProgress{
				TrialsCompleted: res.Trials,
				TrialsTotal:     totalTrials,
				Percent:         100.0 * float64(res.Trials) / float64(totalTrials),
				CurrentMean:     mean,
				CurrentCI:       ci,
			})
		}
	}

	if res.Trials == 0 {
		return res
	}

	res.MeanMoves = float64(res.TotalMoves) / float64(res.Trials)
	_, res.StdDev, res.CI95 = histogramStats(res.Histogram)

	res.MinMoves = math.MaxInt
	for m := range res.Histogram {
		if m < res.MinMoves {
			res.MinMoves = m
		}
		if m > res.MaxMoves {
			res.MaxMoves = m
		}
	}
	return res
}

// histogramStats returns the weighted mean, sample standard deviation and
// 95% confidence interval of a moves histogram.
func histogramStats(hist map[int]int) (mean, stdDev, ci float64) {
	keys := make([]int, 0, len(hist))
	for m := range hist {
		keys = append(keys, m)
	}
	sort.Ints(keys)

	xs := make([]float64, len(keys))
	ws := make([]float64, len(keys))
	n := 0.0
	for i, m := range keys {
		xs[i] = float64(m)
		ws[i] = float64(hist[m])
		n += ws[i]
	}
	if n == 0 {
		return 0, 0, 0
	}
	if n == 1 {
		return xs[0], 0, 0
	}

	mean, stdDev = stat.MeanStdDev(xs, ws)
	if math.IsNaN(stdDev) {
		stdDev = 0
	}
	// 95% confidence interval = 1.96 * stdErr = 1.96 * stdDev / sqrt(n)
	ci = 1.96 * stdDev / math.Sqrt(n)
	return mean, stdDev, ci
}

// RunMonteCarlo plays trials games of fleet on a board of side boardSize
// and returns the mean number of moves to win.
func RunMonteCarlo(trials int, fleet []int, boardSize int, skew bool) (float64, error) {
	opts := DefaultOptions()
	opts.Fleet = Fleet(fleet)
	opts.BoardSize = boardSize
	opts.SkewEnabled = skew

	e, err := NewEngine(opts)
	if err != nil {
		return 0, err
	}
	res, err := e.MonteCarlo(context.Background(), MonteCarloOptions{Trials: trials})
	if err != nil {
		return 0, err
	}
	return res.MeanMoves, nil
}
