// Package engine implements the probabilistic Battleship targeting engine:
// fleet placement, probability density, hit-adjacency skew, target
// selection, the volley loop and the Monte Carlo evaluator.
package engine

import (
	"errors"
	"fmt"

	"github.com/yourusername/salvo/internal/grid"
	"go.uber.org/zap"
)

// Engine errors
var (
	// ErrInvalidConfiguration means the fleet cannot be played on the board.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDoubleFire means a resolved cell was targeted again.
	ErrDoubleFire = grid.ErrDoubleFire
	// ErrNoCandidateCell means no unfired cell has positive density while
	// ships remain afloat.
	ErrNoCandidateCell = errors.New("no candidate cell")
	// ErrGameOver is returned when stepping a game that has been won.
	ErrGameOver = errors.New("game already won")
	// ErrNotReady is returned when stepping a game with no placed fleet.
	ErrNotReady = errors.New("game has no placed fleet")
)

// Defaults
const (
	DefaultBoardSize            = 5
	DefaultSkewFactor           = 2.0
	DefaultMaxPlacementAttempts = 100000
)

// Fleet is an ordered list of ship lengths.
type Fleet []int

var (
	// CanonicalFleet is the standard 4-3-2-1 fleet.
	CanonicalFleet = Fleet{4, 3, 2, 1}
	// SecondaryFleet drops the single-cell ship.
	SecondaryFleet = Fleet{4, 3, 2}
)

// HitsToWin returns the total number of ship cells.
func (f Fleet) HitsToWin() int {
	n := 0
	for _, l := range f {
		n += l
	}
	return n
}

// Longest returns the longest ship length.
func (f Fleet) Longest() int {
	m := 0
	for _, l := range f {
		if l > m {
			m = l
		}
	}
	return m
}

// Clone returns a copy of the fleet.
func (f Fleet) Clone() Fleet {
	return append(Fleet(nil), f...)
}

// Options configures the engine
type Options struct {
	BoardSize            int           // Board side (0 = DefaultBoardSize)
	Fleet                Fleet         // Ship lengths (nil = CanonicalFleet)
	SkewEnabled          bool          // Multiply density around hits
	SkewFactor           float64       // Skew multiplier (0 = DefaultSkewFactor)
	MaxPlacementAttempts int           // Origin samples per ship (0 = default)
	CacheSize            int           // Density cache entries (0 = disabled)
	Cache                *DensityCache // Shared cache, used when it serves this board and fleet
	Logger               *zap.Logger   // Debug logging (nil = no-op)
}

// DefaultOptions returns the canonical configuration: 5x5 board, 4-3-2-1
// fleet, skew on with factor 2.
func DefaultOptions() Options {
	return Options{
		BoardSize:            DefaultBoardSize,
		Fleet:                CanonicalFleet.Clone(),
		SkewEnabled:          true,
		SkewFactor:           DefaultSkewFactor,
		MaxPlacementAttempts: DefaultMaxPlacementAttempts,
	}
}

// Engine holds a validated fleet/board configuration. It carries no
// per-game state and is safe for concurrent use.
type Engine struct {
	opts      Options
	hitsToWin int
	cache     *DensityCache
	logger    *zap.Logger
}

// NewEngine validates opts and creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.BoardSize == 0 {
		opts.BoardSize = DefaultBoardSize
	}
	if opts.Fleet == nil {
		opts.Fleet = CanonicalFleet
	}
	opts.Fleet = opts.Fleet.Clone()
	if opts.SkewFactor == 0 {
		opts.SkewFactor = DefaultSkewFactor
	}
	if opts.MaxPlacementAttempts <= 0 {
		opts.MaxPlacementAttempts = DefaultMaxPlacementAttempts
	}

	if err := ValidateFleet(opts.Fleet, opts.BoardSize); err != nil {
		return nil, err
	}
	if opts.SkewFactor < 0 {
		return nil, fmt.Errorf("%w: skew factor %v is negative", ErrInvalidConfiguration, opts.SkewFactor)
	}

	e := &Engine{
		opts:      opts,
		hitsToWin: opts.Fleet.HitsToWin(),
		logger:    opts.Logger,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	switch {
	case opts.Cache != nil && opts.Cache.bind(opts.BoardSize, opts.Fleet):
		e.cache = opts.Cache
	case opts.CacheSize > 0:
		e.cache = NewDensityCache(uint32(opts.CacheSize))
		e.cache.bind(opts.BoardSize, opts.Fleet)
	}
	e.opts.Cache = e.cache
	return e, nil
}

// Derive creates an engine from opts that reuses e's density cache when
// board size and fleet are unchanged and runs uncached otherwise. It never
// allocates a cache of its own.
func (e *Engine) Derive(opts Options) (*Engine, error) {
	opts.Cache = e.cache
	opts.CacheSize = 0
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	return NewEngine(opts)
}

// ValidateFleet reports ErrInvalidConfiguration when fleet cannot possibly
// fit on a board of the given side.
func ValidateFleet(fleet Fleet, boardSize int) error {
	if boardSize < 1 {
		return fmt.Errorf("%w: board size %d", ErrInvalidConfiguration, boardSize)
	}
	if len(fleet) == 0 {
		return fmt.Errorf("%w: empty fleet", ErrInvalidConfiguration)
	}
	for i, l := range fleet {
		if l < 1 {
			return fmt.Errorf("%w: ship %d has length %d", ErrInvalidConfiguration, i, l)
		}
		if l > boardSize {
			return fmt.Errorf("%w: ship %d of length %d exceeds board size %d",
				ErrInvalidConfiguration, i, l, boardSize)
		}
	}
	if total := fleet.HitsToWin(); total > boardSize*boardSize {
		return fmt.Errorf("%w: fleet needs %d cells, board has %d",
			ErrInvalidConfiguration, total, boardSize*boardSize)
	}
	return nil
}

// Options returns a copy of the engine configuration.
func (e *Engine) Options() Options {
	o := e.opts
	o.Fleet = o.Fleet.Clone()
	return o
}

// BoardSize returns the board side.
func (e *Engine) BoardSize() int { return e.opts.BoardSize }

// Fleet returns a copy of the fleet.
func (e *Engine) Fleet() Fleet { return e.opts.Fleet.Clone() }

// HitsToWin returns the number of hits that sink the fleet.
func (e *Engine) HitsToWin() int { return e.hitsToWin }

// Cache returns the density cache, or nil when disabled.
func (e *Engine) Cache() *DensityCache { return e.cache }

// Density computes the density map the targeting policy uses for g: the
// full density pass followed by the hit skew when enabled.
func (e *Engine) Density(g *grid.Grid) DensityMap {
	var d DensityMap
	if e.cache != nil {
		d = e.cache.Density(g, e.opts.Fleet)
	} else {
		d = ComputeDensity(g, e.opts.Fleet)
	}
	if e.opts.SkewEnabled {
		SkewAroundHits(d, g, e.opts.SkewFactor)
	}
	return d
}

// Target returns the next cell to fire at on g and the density map used
// to choose it.
func (e *Engine) Target(g *grid.Grid) (grid.Coord, DensityMap, error) {
	if g.Size() != e.opts.BoardSize {
		return grid.Coord{}, DensityMap{}, fmt.Errorf("%w: grid side %d, engine board size %d",
			ErrInvalidConfiguration, g.Size(), e.opts.BoardSize)
	}
	d := e.Density(g)
	c, err := SelectTarget(g, d)
	return c, d, err
}
