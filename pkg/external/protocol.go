// Package external implements a line-based TCP protocol for external
// targeting agents and scripts.
//
// Protocol overview:
//   - Server listens on a TCP port
//   - Each connection is a session with its own settings and game
//   - Commands: version, help, set, new, step, play, board, target,
//     density, montecarlo, exit
//   - Boards are exchanged in the text format of ParseBoard
//   - Every response ends with a newline; errors start with "Error:"
package external

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/yourusername/salvo/internal/config"
	"github.com/yourusername/salvo/internal/gridcode"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/zap"
)

// Version is reported by the version command.
const Version = "salvo external agent protocol 1.0"

// Server implements the external agent protocol server.
type Server struct {
	options  ServerOptions
	base     *engine.Engine
	logger   *zap.Logger
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	active   map[net.Conn]struct{}
	conns    sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// ServerOptions configures the external agent server.
type ServerOptions struct {
	Addr           string // TCP address to listen on
	PromptEnabled  bool   // Send "> " prompts after responses
	MaxTrials      int    // Upper bound for the montecarlo command
	MonteCarloJobs int    // Workers per montecarlo command (0 = GOMAXPROCS)
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:          ":1234",
		PromptEnabled: true,
		MaxTrials:     20000,
	}
}

// NewServer creates a new external agent server. Sessions start from the
// settings of base and share its density cache; a nil base uses the default
// options and a nil logger disables logging.
func NewServer(base *engine.Engine, opts ServerOptions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTrials <= 0 {
		opts.MaxTrials = DefaultServerOptions().MaxTrials
	}
	if base == nil {
		base, _ = engine.NewEngine(engine.DefaultOptions())
	}
	return &Server{
		options: opts,
		base:    base,
		logger:  logger,
		active:  make(map[net.Conn]struct{}),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.options.Addr, err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.logger.Info("external agent protocol listening", zap.String("addr", listener.Addr().String()))

	go s.acceptLoop(listener)

	return nil
}

// Addr returns the listening address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and all open sessions, and waits for them to end.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	err := s.listener.Close()
	s.listener = nil
	for conn := range s.active {
		conn.Close()
	}
	s.mu.Unlock()

	s.conns.Wait()
	return err
}

// track registers conn as open. It reports false once the server stopped.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.active[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

// handleConnection runs one session until the client exits or disconnects.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	log := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Debug("session opened")
	defer log.Debug("session closed")

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	sess := newSession(ctx, s.base, s.options)
	reader := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	prompt := func() {
		if s.options.PromptEnabled {
			w.WriteString("> ")
		}
		w.Flush()
	}

	prompt()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		w.WriteString(sess.processCommand(line))

		if cmd := strings.ToLower(strings.Fields(line)[0]); cmd == "exit" || cmd == "quit" {
			w.Flush()
			return
		}
		prompt()
	}
}

// session is the per-connection state.
type session struct {
	ctx    context.Context
	base   *engine.Engine
	opts   engine.Options
	server ServerOptions
	seed   int64
	engine *engine.Engine
	game   *engine.Game
	dirty  bool // opts changed since engine was built
}

func newSession(ctx context.Context, base *engine.Engine, server ServerOptions) *session {
	return &session{
		ctx:    ctx,
		base:   base,
		opts:   base.Options(),
		server: server,
		dirty:  true,
	}
}

// currentEngine rebuilds the engine after a set command.
func (s *session) currentEngine() (*engine.Engine, error) {
	if s.dirty || s.engine == nil {
		e, err := s.base.Derive(s.opts)
		if err != nil {
			return nil, err
		}
		s.engine = e
		s.dirty = false
	}
	return s.engine, nil
}

// processCommand processes a single command and returns the response.
func (s *session) processCommand(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return "Error: empty command\n"
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "version":
		return Version + "\n"

	case "help":
		return helpResponse()

	case "exit", "quit":
		return "Goodbye\n"

	case "set":
		return s.handleSet(args)

	case "new":
		return s.handleNew(args)

	case "step":
		return s.handleStep()

	case "play":
		return s.handlePlay()

	case "board", "show":
		return s.handleShow()

	case "target":
		return s.handleTarget(cmd)

	case "density":
		return s.handleDensity(cmd)

	case "montecarlo", "mc":
		return s.handleMonteCarlo(args)

	default:
		// A bare board asks for a target
		if strings.HasPrefix(cmd, "board:") {
			return s.handleTarget(cmd)
		}
		return fmt.Sprintf("Error: unknown command '%s'\n", command)
	}
}

// helpResponse returns help text.
func helpResponse() string {
	return `Available commands:
  version            - Show version information
  help               - Show this help
  set <opt> <value>  - Set option (size, fleet, skew, skewfactor, seed)
  new [seed]         - Place a new hidden fleet
  step               - Fire one shot: "<cell> hit|miss <hits>/<total> <moves> [won]"
  play               - Fire until the fleet is sunk
  board              - Show the current game (ships hidden)
  target <board>     - Best cell to fire at for an observed board
  density [board]    - Density map for a board (or the current game)
  montecarlo <n>     - Mean moves to win over n games
  exit               - Close connection
`
}

func errorResponse(err error) string {
	return fmt.Sprintf("Error: %v\n", err)
}

// handleSet handles the set command.
func (s *session) handleSet(args []string) string {
	if len(args) < 2 {
		return "Error: set requires option and value\n"
	}

	option := strings.ToLower(args[0])
	value := args[1]

	switch option {
	case "size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > gridcode.MaxSize {
			return fmt.Sprintf("Error: size must be 1-%d\n", gridcode.MaxSize)
		}
		s.opts.BoardSize = n

	case "fleet":
		fleet, err := config.ParseFleet(value)
		if err != nil {
			return errorResponse(err)
		}
		s.opts.Fleet = engine.Fleet(fleet)

	case "skew":
		on, err := parseSwitch(value)
		if err != nil {
			return "Error: skew must be on or off\n"
		}
		s.opts.SkewEnabled = on

	case "skewfactor":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return "Error: skewfactor must be a positive number\n"
		}
		s.opts.SkewFactor = f

	case "seed":
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "Error: seed must be an integer\n"
		}
		s.seed = seed
		return fmt.Sprintf("seed set to %d\n", seed)

	default:
		return fmt.Sprintf("Error: unknown option '%s'\n", option)
	}

	s.dirty = true
	if err := engine.ValidateFleet(s.opts.Fleet, s.opts.BoardSize); err != nil {
		return fmt.Sprintf("%s set to %s (warning: %v)\n", option, value, err)
	}
	return fmt.Sprintf("%s set to %s\n", option, value)
}

// parseSwitch accepts on/off and anything strconv.ParseBool does.
func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(value)
}

// handleNew places a fleet and makes it the session's current game.
func (s *session) handleNew(args []string) string {
	seed := s.seed
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return "Error: seed must be an integer\n"
		}
		seed = v
	}

	e, err := s.currentEngine()
	if err != nil {
		return errorResponse(err)
	}
	g, err := e.NewGame(seed)
	if err != nil {
		return errorResponse(err)
	}
	s.game = g
	return fmt.Sprintf("ok %dx%d fleet %v hits %d\n",
		e.BoardSize(), e.BoardSize(), []int(e.Fleet()), g.HitsToWin())
}

// formatStep writes one shot as "<cell> hit|miss <hits>/<total> <moves> [won]".
func formatStep(res *engine.StepResult, size int) string {
	line := fmt.Sprintf("%s %s %d/%d %d",
		FormatCoord(res.Fired, size), res.Outcome, res.HitsMade, res.HitsToWin, res.Moves)
	if res.Done {
		line += " won"
	}
	return line + "\n"
}

func (s *session) handleStep() string {
	if s.game == nil {
		return "Error: no game (use new)\n"
	}
	res, err := s.game.Step()
	if err != nil {
		return errorResponse(err)
	}
	return formatStep(res, s.game.Engine().BoardSize())
}

func (s *session) handlePlay() string {
	if s.game == nil {
		return "Error: no game (use new)\n"
	}
	if s.game.Done() {
		return errorResponse(engine.ErrGameOver)
	}
	var sb strings.Builder
	for !s.game.Done() {
		res, err := s.game.Step()
		if err != nil {
			sb.WriteString(errorResponse(err))
			return sb.String()
		}
		sb.WriteString(formatStep(res, s.game.Engine().BoardSize()))
	}
	fmt.Fprintf(&sb, "sunk %d\n", s.game.Moves())
	return sb.String()
}

func (s *session) handleShow() string {
	if s.game == nil {
		return "Error: no game (use new)\n"
	}
	return FormatBoard(s.game.Grid(), true) + "\n"
}

// boardArg extracts the board from a command line, if any.
func boardArg(cmd string) (string, bool) {
	i := strings.Index(cmd, "board:")
	if i < 0 {
		return "", false
	}
	return cmd[i:], true
}

// engineForSize returns the session engine resized to size when needed.
func (s *session) engineForSize(size int) (*engine.Engine, error) {
	if size == s.opts.BoardSize {
		return s.currentEngine()
	}
	opts := s.opts
	opts.BoardSize = size
	return s.base.Derive(opts)
}

// handleTarget returns the cell the engine would fire at on the given
// observed board.
func (s *session) handleTarget(cmd string) string {
	text, ok := boardArg(cmd)
	if !ok {
		return "Error: no board specified\n"
	}
	g, err := ParseBoard(text)
	if err != nil {
		return errorResponse(err)
	}
	e, err := s.engineForSize(g.Size())
	if err != nil {
		return errorResponse(err)
	}

	target, d, err := e.Target(g)
	if errors.Is(err, engine.ErrNoCandidateCell) {
		return "none\n"
	}
	if err != nil {
		return errorResponse(err)
	}
	return fmt.Sprintf("%s %g\n", FormatCoord(target, g.Size()), d.At(target))
}

// handleDensity prints the density map of a board, or of the current game.
func (s *session) handleDensity(cmd string) string {
	if text, ok := boardArg(cmd); ok {
		g, err := ParseBoard(text)
		if err != nil {
			return errorResponse(err)
		}
		e, err := s.engineForSize(g.Size())
		if err != nil {
			return errorResponse(err)
		}
		return e.Density(g).Format(g)
	}

	if s.game == nil {
		return "Error: no board specified\n"
	}
	g := s.game.Grid()
	return s.game.Engine().Density(g).Format(g)
}

func (s *session) handleMonteCarlo(args []string) string {
	e, err := s.currentEngine()
	if err != nil {
		return errorResponse(err)
	}

	trials := e.DefaultTrials()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return "Error: trials must be a positive integer\n"
		}
		trials = n
	}
	if trials > s.server.MaxTrials {
		trials = s.server.MaxTrials
	}

	result, err := e.MonteCarlo(s.ctx, engine.MonteCarloOptions{
		Trials:  trials,
		Workers: s.server.MonteCarloJobs,
		Seed:    s.seed,
	})
	if err != nil {
		return errorResponse(err)
	}
	return fmt.Sprintf("%.6f %.6f %d\n", result.MeanMoves, result.CI95, result.Trials)
}
