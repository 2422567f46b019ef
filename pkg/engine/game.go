package engine

import (
	"fmt"
	"math/rand"

	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/internal/gridcode"
)

// State is a volley controller state.
type State int

const (
	StateIdle         State = iota // No placed fleet
	StatePlacing                   // Fleet placement running
	StateAwaitingShot              // Ready to choose the next target
	StateResolving                 // Shot chosen, being resolved
	StateWon                       // Fleet sunk (terminal)
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlacing:
		return "placing"
	case StateAwaitingShot:
		return "awaiting_shot"
	case StateResolving:
		return "resolving"
	case StateWon:
		return "won"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepResult describes one fired shot.
type StepResult struct {
	Fired     grid.Coord   `json:"fired"`
	Outcome   grid.Outcome `json:"-"`
	Hit       bool         `json:"hit"`
	HitsMade  int          `json:"hits_made"`
	HitsToWin int          `json:"hits_to_win"`
	Moves     int          `json:"moves"`
	Done      bool         `json:"done"`
	Density   DensityMap   `json:"density"` // Map the shot was chosen from
	GridID    string       `json:"grid_id"` // Agent view after the shot
}

// Game is the state of one volley: the grid, the last density map and the
// shot counters. A Game is owned by a single caller and is not safe for
// concurrent use.
type Game struct {
	engine *Engine
	rng    *rand.Rand

	grid      *grid.Grid
	density   DensityMap
	state     State
	moves     int
	hitsMade  int
	hitsToWin int

	// err is set by an invariant violation; the game is dead afterwards.
	err error
}

// NewGame creates a game with a freshly placed fleet. seed 0 picks a
// random seed.
func (e *Engine) NewGame(seed int64) (*Game, error) {
	if seed == 0 {
		seed = rand.Int63()
	}
	return e.NewGameWithRand(rand.New(rand.NewSource(seed)))
}

// NewGameWithRand creates a game drawing placements from rng. The game
// takes ownership of rng.
func (e *Engine) NewGameWithRand(rng *rand.Rand) (*Game, error) {
	g := &Game{engine: e, rng: rng, state: StateIdle}
	if err := g.place(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewGame creates a game for fleet on a board of side boardSize with the
// default skew settings.
func NewGame(fleet []int, boardSize int) (*Game, error) {
	opts := DefaultOptions()
	opts.Fleet = Fleet(fleet)
	opts.BoardSize = boardSize
	e, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return e.NewGame(0)
}

// place runs the Placing state and leaves the game awaiting its first shot.
func (g *Game) place() error {
	g.state = StatePlacing
	g.err = nil

	gr, err := grid.New(g.engine.opts.BoardSize)
	if err != nil {
		g.state = StateIdle
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if err := PlaceFleet(gr, g.engine.opts.Fleet, g.rng, g.engine.opts.MaxPlacementAttempts); err != nil {
		g.state = StateIdle
		return err
	}

	g.grid = gr
	g.density = DensityMap{}
	g.moves = 0
	g.hitsMade = 0
	g.hitsToWin = g.engine.hitsToWin
	g.state = StateAwaitingShot
	return nil
}

// Reset discards the current board and places a new fleet.
func (g *Game) Reset() error {
	g.state = StateIdle
	return g.place()
}

// Step fires one shot: refresh the density map, pick a target, resolve it.
func (g *Game) Step() (*StepResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	switch g.state {
	case StateWon:
		return nil, ErrGameOver
	case StateAwaitingShot:
	default:
		return nil, fmt.Errorf("%w: state %v", ErrNotReady, g.state)
	}

	target, density, err := g.engine.Target(g.grid)
	if err != nil {
		return nil, g.fail(fmt.Errorf("target selection after %d moves: %w", g.moves, err))
	}
	g.density = density
	g.state = StateResolving

	outcome, err := g.grid.Resolve(target)
	if err != nil {
		return nil, g.fail(fmt.Errorf("resolve %v: %w", target, err))
	}

	g.moves++
	if outcome == grid.OutcomeHit {
		g.hitsMade++
	}
	if g.hitsMade == g.hitsToWin {
		g.state = StateWon
	} else {
		g.state = StateAwaitingShot
	}

	return &StepResult{
		Fired:     target,
		Outcome:   outcome,
		Hit:       outcome == grid.OutcomeHit,
		HitsMade:  g.hitsMade,
		HitsToWin: g.hitsToWin,
		Moves:     g.moves,
		Done:      g.state == StateWon,
		Density:   density.Clone(),
		GridID:    gridcode.AgentID(g.grid),
	}, nil
}

func (g *Game) fail(err error) error {
	g.err = err
	return err
}

// Play steps until the fleet is sunk and returns the number of moves.
func (g *Game) Play() (int, error) {
	for g.state != StateWon {
		if _, err := g.Step(); err != nil {
			return g.moves, err
		}
	}
	return g.moves, nil
}

// State returns the controller state.
func (g *Game) State() State { return g.state }

// Done reports whether the fleet has been sunk.
func (g *Game) Done() bool { return g.state == StateWon }

// Err returns the invariant violation that ended the game, if any.
func (g *Game) Err() error { return g.err }

// Moves returns the number of shots fired.
func (g *Game) Moves() int { return g.moves }

// HitsMade returns the number of hits so far.
func (g *Game) HitsMade() int { return g.hitsMade }

// HitsToWin returns the number of hits that sink the fleet.
func (g *Game) HitsToWin() int { return g.hitsToWin }

// Grid returns a copy of the board, ships included.
func (g *Game) Grid() *grid.Grid {
	if g.grid == nil {
		return nil
	}
	return g.grid.Clone()
}

// Density returns a copy of the density map used for the last shot.
func (g *Game) Density() DensityMap { return g.density.Clone() }

// Engine returns the engine the game was created from.
func (g *Game) Engine() *Engine { return g.engine }
