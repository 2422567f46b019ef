// Package api provides the HTTP/JSON, WebSocket and SSE interfaces to the
// targeting engine.
package api

import (
	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/internal/gridcode"
	"github.com/yourusername/salvo/pkg/engine"
)

// ============================================================================
// Request Types
// ============================================================================

// EngineParams overrides the server's engine configuration for one request.
// Zero values keep the server defaults.
type EngineParams struct {
	BoardSize  int     `json:"board_size,omitempty"`  // Board side
	Fleet      []int   `json:"fleet,omitempty"`       // Ship lengths
	Skew       *bool   `json:"skew,omitempty"`        // Skew density around hits
	SkewFactor float64 `json:"skew_factor,omitempty"` // Skew multiplier
}

func (p EngineParams) isZero() bool {
	return p.BoardSize == 0 && p.Fleet == nil && p.Skew == nil && p.SkewFactor == 0
}

// NewGameRequest is the request body for starting a game.
type NewGameRequest struct {
	EngineParams
	Seed int64 `json:"seed,omitempty"` // Placement seed (0 = random)
}

// GameRequest names an existing game (WebSocket "step").
type GameRequest struct {
	GameID string `json:"game_id"`
}

// VolleyRequest plays a game to the end, one shot per tick (WebSocket
// "volley").
type VolleyRequest struct {
	GameID  string `json:"game_id"`
	DelayMs int    `json:"delay_ms,omitempty"` // Pause between shots (default 50)
}

// DensityRequest asks for the density map and next target of a grid.
type DensityRequest struct {
	EngineParams
	Grid string `json:"grid,omitempty"` // Grid code (empty = fresh board)
}

// MonteCarloRequest is the request body for a Monte Carlo evaluation.
type MonteCarloRequest struct {
	EngineParams
	Trials  int   `json:"trials,omitempty"`  // Games to play (0 = engine default)
	Workers int   `json:"workers,omitempty"` // Parallel workers (0 = GOMAXPROCS)
	Seed    int64 `json:"seed,omitempty"`    // Random seed (0 = random)
}

// ============================================================================
// Response Types
// ============================================================================

// ErrorResponse is returned for all error conditions.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Ready   bool        `json:"ready"`
	Games   int         `json:"games"`
	Pool    *PoolStats  `json:"pool,omitempty"`
	Cache   *CacheStats `json:"cache,omitempty"`
}

// CacheStats reports the server engine's density cache.
type CacheStats struct {
	Size    uint32  `json:"size"`
	Lookups uint64  `json:"lookups"`
	Hits    uint64  `json:"hits"`
	Adds    uint64  `json:"adds"`
	HitRate float64 `json:"hit_rate"` // Percent of lookups served from the cache
}

// GameResponse describes a game from the agent's point of view. Ship
// positions are never exposed.
type GameResponse struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	BoardSize int         `json:"board_size"`
	Fleet     []int       `json:"fleet"`
	Skew      bool        `json:"skew"`
	Moves     int         `json:"moves"`
	HitsMade  int         `json:"hits_made"`
	HitsToWin int         `json:"hits_to_win"`
	Done      bool        `json:"done"`
	GridID    string      `json:"grid_id"`
	Board     []string    `json:"board"`             // One string per row
	Density   [][]float64 `json:"density,omitempty"` // Last density map
}

// StepResponse is one fired shot.
type StepResponse struct {
	ID string `json:"id"`
	*engine.StepResult
}

// PlayResponse summarises a completed volley.
type PlayResponse struct {
	ID        string       `json:"id"`
	Moves     int          `json:"moves"`
	HitsToWin int          `json:"hits_to_win"`
	Shots     []grid.Coord `json:"shots"`
	GridID    string       `json:"grid_id"`
}

// DensityResponse is the density map and chosen target for a grid.
type DensityResponse struct {
	Size        int         `json:"size"`
	Density     [][]float64 `json:"density"`
	Total       float64     `json:"total"`
	Target      *grid.Coord `json:"target,omitempty"` // nil when no cell qualifies
	TargetValue float64     `json:"target_value,omitempty"`
}

// MonteCarloResponse is the result of a Monte Carlo evaluation.
type MonteCarloResponse struct {
	Trials    int         `json:"trials"`
	MeanMoves float64     `json:"mean_moves"`
	StdDev    float64     `json:"std_dev"`
	CI95      float64     `json:"ci95"`
	MinMoves  int         `json:"min_moves"`
	MaxMoves  int         `json:"max_moves"`
	Histogram map[int]int `json:"histogram"`
	Seed      int64       `json:"seed"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// MonteCarloProgressEvent is streamed while a Monte Carlo run is in flight.
type MonteCarloProgressEvent struct {
	TrialsCompleted int     `json:"trials_completed"`
	TrialsTotal     int     `json:"trials_total"`
	Percent         float64 `json:"percent"`
	CurrentMean     float64 `json:"current_mean"`
	CurrentCI       float64 `json:"current_ci"`
}

// ============================================================================
// Conversions
// ============================================================================

// monteCarloToResponse converts an engine result for the wire.
func monteCarloToResponse(r *engine.MonteCarloResult) MonteCarloResponse {
	return MonteCarloResponse{
		Trials:    r.Trials,
		MeanMoves: r.MeanMoves,
		StdDev:    r.StdDev,
		CI95:      r.CI95,
		MinMoves:  r.MinMoves,
		MaxMoves:  r.MaxMoves,
		Histogram: r.Histogram,
		Seed:      r.Seed,
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
}

func progressToEvent(p engine.MonteCarloProgress) MonteCarloProgressEvent {
	return MonteCarloProgressEvent{
		TrialsCompleted: p.TrialsCompleted,
		TrialsTotal:     p.TrialsTotal,
		Percent:         p.Percent,
		CurrentMean:     p.CurrentMean,
		CurrentCI:       p.CurrentCI,
	}
}

func cacheToStats(c *engine.DensityCache) *CacheStats {
	lookups, hits, adds := c.Stats()
	return &CacheStats{
		Size:    c.Size(),
		Lookups: lookups,
		Hits:    hits,
		Adds:    adds,
		HitRate: c.HitRate(),
	}
}

// boardRows renders the agent view of g, one string per row, ships hidden.
func boardRows(g *grid.Grid) []string {
	size := g.Size()
	rows := make([]string, size)
	buf := make([]byte, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			switch g.At(grid.Coord{X: x, Y: y}) {
			case grid.Hit:
				buf[x] = 'X'
			case grid.Miss:
				buf[x] = 'o'
			default:
				buf[x] = '.'
			}
		}
		rows[y] = string(buf)
	}
	return rows
}

// gameToResponse snapshots g. The caller holds the entry lock.
func gameToResponse(id string, g *engine.Game) GameResponse {
	e := g.Engine()
	opts := e.Options()
	gr := g.Grid()

	resp := GameResponse{
		ID:        id,
		State:     g.State().String(),
		BoardSize: e.BoardSize(),
		Fleet:     []int(e.Fleet()),
		Skew:      opts.SkewEnabled,
		Moves:     g.Moves(),
		HitsMade:  g.HitsMade(),
		HitsToWin: g.HitsToWin(),
		Done:      g.Done(),
	}
	if gr != nil {
		resp.GridID = gridcode.AgentID(gr)
		resp.Board = boardRows(gr)
	}
	if d := g.Density(); len(d.Values) > 0 {
		resp.Density = d.Rows()
	}
	return resp
}
