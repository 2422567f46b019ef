package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/internal/gridcode"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/zap"
)

// Handlers holds the HTTP handlers and engine reference.
type Handlers struct {
	engine  *engine.Engine
	version string
	pool    *WorkerPool
	games   *Registry
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance without a worker pool.
func NewHandlers(e *engine.Engine, version string) *Handlers {
	return NewHandlersWithPool(e, version, nil)
}

// NewHandlersWithPool creates a new Handlers instance with a worker pool.
func NewHandlersWithPool(e *engine.Engine, version string, pool *WorkerPool) *Handlers {
	return &Handlers{
		engine:  e,
		version: version,
		pool:    pool,
		games:   NewRegistry(DefaultMaxGames, DefaultGameTTL),
		logger:  zap.NewNop(),
	}
}

// Games returns the live game registry.
func (h *Handlers) Games() *Registry { return h.games }

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// errorStatus maps engine and registry errors to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidConfiguration):
		return http.StatusBadRequest, "INVALID_CONFIGURATION"
	case errors.Is(err, gridcode.ErrInvalidID):
		return http.StatusBadRequest, "INVALID_GRID"
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound, "GAME_NOT_FOUND"
	case errors.Is(err, engine.ErrGameOver):
		return http.StatusConflict, "GAME_OVER"
	case errors.Is(err, engine.ErrNoCandidateCell):
		return http.StatusInternalServerError, "NO_CANDIDATE_CELL"
	case errors.Is(err, engine.ErrDoubleFire):
		return http.StatusInternalServerError, "DOUBLE_FIRE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeEngineError writes err with the status errorStatus picks for it.
func (h *Handlers) writeEngineError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, err.Error(), code)
}

// acquire takes a pool slot when a pool is configured. The returned release
// func is never nil.
func (h *Handlers) acquire(ctx context.Context, l Lane) (func(), error) {
	if h.pool == nil {
		return func() {}, nil
	}
	if err := h.pool.Acquire(ctx, l); err != nil {
		return nil, err
	}
	return func() { h.pool.Release(l) }, nil
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// engineFor returns the server engine, or one derived from it when p
// overrides any of its settings. Derived engines share the server's density
// cache when board and fleet are unchanged.
func (h *Handlers) engineFor(p EngineParams) (*engine.Engine, error) {
	if h.engine == nil {
		return nil, errors.New("engine not loaded")
	}
	if p.isZero() {
		return h.engine, nil
	}
	opts := h.engine.Options()
	if p.BoardSize != 0 {
		opts.BoardSize = p.BoardSize
	}
	if p.Fleet != nil {
		opts.Fleet = engine.Fleet(p.Fleet)
	}
	if p.Skew != nil {
		opts.SkewEnabled = *p.Skew
	}
	if p.SkewFactor != 0 {
		opts.SkewFactor = p.SkewFactor
	}
	return h.engine.Derive(opts)
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.engine != nil,
		Games:   h.games.Len(),
	}

	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if h.engine != nil && h.engine.Cache() != nil {
		resp.Cache = cacheToStats(h.engine.Cache())
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateGame handles POST /api/games
func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	release, err := h.acquire(r.Context(), LaneFast)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return
	}
	defer release()

	var req NewGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	resp, err := h.createGame(req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) createGame(req NewGameRequest) (GameResponse, error) {
	e, err := h.engineFor(req.EngineParams)
	if err != nil {
		return GameResponse{}, err
	}
	g, err := e.NewGame(req.Seed)
	if err != nil {
		return GameResponse{}, err
	}
	entry := h.games.Add(g)
	h.logger.Debug("game created",
		zap.String("id", entry.ID),
		zap.Int("board_size", e.BoardSize()),
		zap.Ints("fleet", e.Fleet()))

	var resp GameResponse
	entry.With(func(g *engine.Game) error {
		resp = gameToResponse(entry.ID, g)
		return nil
	})
	return resp, nil
}

// GetGame handles GET /api/games/{id}
func (h *Handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	entry, err := h.games.Get(r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	var resp GameResponse
	entry.With(func(g *engine.Game) error {
		resp = gameToResponse(entry.ID, g)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// DeleteGame handles DELETE /api/games/{id}
func (h *Handlers) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Delete(r.PathValue("id")); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StepGame handles POST /api/games/{id}/step
func (h *Handlers) StepGame(w http.ResponseWriter, r *http.Request) {
	release, err := h.acquire(r.Context(), LaneFast)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return
	}
	defer release()

	resp, err := h.stepGame(r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) stepGame(id string) (StepResponse, error) {
	entry, err := h.games.Get(id)
	if err != nil {
		return StepResponse{}, err
	}
	var res *engine.StepResult
	err = entry.With(func(g *engine.Game) error {
		res, err = g.Step()
		return err
	})
	if err != nil {
		return StepResponse{}, err
	}
	return StepResponse{ID: entry.ID, StepResult: res}, nil
}

// PlayGame handles POST /api/games/{id}/play. It steps the game until the
// fleet is sunk.
func (h *Handlers) PlayGame(w http.ResponseWriter, r *http.Request) {
	release, err := h.acquire(r.Context(), LaneFast)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return
	}
	defer release()

	entry, err := h.games.Get(r.PathValue("id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := PlayResponse{ID: entry.ID}
	err = entry.With(func(g *engine.Game) error {
		if g.Done() {
			return engine.ErrGameOver
		}
		for !g.Done() {
			res, err := g.Step()
			if err != nil {
				return err
			}
			resp.Shots = append(resp.Shots, res.Fired)
			resp.GridID = res.GridID
		}
		resp.Moves = g.Moves()
		resp.HitsToWin = g.HitsToWin()
		return nil
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Density handles POST /api/density
func (h *Handlers) Density(w http.ResponseWriter, r *http.Request) {
	release, err := h.acquire(r.Context(), LaneFast)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return
	}
	defer release()

	var req DensityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	resp, err := h.density(req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) density(req DensityRequest) (DensityResponse, error) {
	var g *grid.Grid
	if req.Grid != "" {
		var err error
		if g, err = gridcode.FromID(req.Grid); err != nil {
			return DensityResponse{}, err
		}
		if h.engine != nil && g.Size() != h.engine.BoardSize() {
			req.BoardSize = g.Size()
		}
	}

	e, err := h.engineFor(req.EngineParams)
	if err != nil {
		return DensityResponse{}, err
	}
	if g == nil {
		if g, err = grid.New(e.BoardSize()); err != nil {
			return DensityResponse{}, err
		}
	}

	target, d, err := e.Target(g)
	if err != nil && !errors.Is(err, engine.ErrNoCandidateCell) {
		return DensityResponse{}, err
	}
	if errors.Is(err, engine.ErrNoCandidateCell) {
		d = e.Density(g)
	}

	resp := DensityResponse{
		Size:    d.Size,
		Density: d.Rows(),
		Total:   d.Total(),
	}
	if err == nil {
		resp.Target = &target
		resp.TargetValue = d.At(target)
	}
	return resp, nil
}

// MonteCarlo handles POST /api/montecarlo
func (h *Handlers) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	release, err := h.acquire(r.Context(), LaneSlow)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return
	}
	defer release()

	var req MonteCarloRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}
	if req.Trials < 0 || req.Workers < 0 {
		writeError(w, http.StatusBadRequest, "trials and workers must not be negative", "INVALID_PARAMS")
		return
	}

	e, err := h.engineFor(req.EngineParams)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	result, err := e.MonteCarlo(r.Context(), engine.MonteCarloOptions{
		Trials:  req.Trials,
		Workers: req.Workers,
		Seed:    req.Seed,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, monteCarloToResponse(result))
}
