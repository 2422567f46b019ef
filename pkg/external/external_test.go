package external

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/salvo/internal/grid"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseBoard(t *testing.T) {
	g, err := ParseBoard("board:.o./SX./...")
	if err != nil {
		t.Fatalf("ParseBoard error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("Size = %d, want 3", g.Size())
	}

	tests := []struct {
		c    grid.Coord
		want grid.Cell
	}{
		{grid.Coord{X: 0, Y: 0}, grid.Unknown},
		{grid.Coord{X: 1, Y: 0}, grid.Miss},
		{grid.Coord{X: 0, Y: 1}, grid.Ship},
		{grid.Coord{X: 1, Y: 1}, grid.Hit},
		{grid.Coord{X: 2, Y: 2}, grid.Unknown},
	}
	for _, tc := range tests {
		if got := g.At(tc.c); got != tc.want {
			t.Errorf("At(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestParseBoardErrors(t *testing.T) {
	for _, s := range []string{
		"board:",
		"board:../..",
		"board:.../...",
		"board:..?/.../...",
	} {
		if _, err := ParseBoard(s); !errors.Is(err, ErrInvalidBoard) {
			t.Errorf("ParseBoard(%q) error = %v, want ErrInvalidBoard", s, err)
		}
	}
}

func TestFormatBoard(t *testing.T) {
	in := "board:.o./SX./..."
	g, err := ParseBoard(in)
	if err != nil {
		t.Fatalf("ParseBoard error: %v", err)
	}
	if got := FormatBoard(g, false); got != in {
		t.Errorf("FormatBoard = %q, want %q", got, in)
	}
	if got, want := FormatBoard(g, true), "board:.o./.X./..."; got != want {
		t.Errorf("FormatBoard(hidden) = %q, want %q", got, want)
	}
}

func TestCoordNotation(t *testing.T) {
	tests := []struct {
		c    grid.Coord
		size int
		want string
	}{
		{grid.Coord{X: 0, Y: 0}, 5, "A1"},
		{grid.Coord{X: 2, Y: 2}, 5, "C3"},
		{grid.Coord{X: 4, Y: 9}, 10, "E10"},
		{grid.Coord{X: 30, Y: 2}, 40, "30,2"},
	}
	for _, tc := range tests {
		got := FormatCoord(tc.c, tc.size)
		if got != tc.want {
			t.Errorf("FormatCoord(%v, %d) = %q, want %q", tc.c, tc.size, got, tc.want)
		}
		back, err := parseCoord(got)
		if err != nil {
			t.Errorf("parseCoord(%q) error: %v", got, err)
			continue
		}
		if back != tc.c {
			t.Errorf("parseCoord(%q) = %v, want %v", got, back, tc.c)
		}
	}

	if c, err := parseCoord("c3"); err != nil || c != (grid.Coord{X: 2, Y: 2}) {
		t.Errorf("parseCoord(c3) = %v, %v", c, err)
	}
	for _, s := range []string{"", "3", "?1", "A0", "Ax", "1,x"} {
		if _, err := parseCoord(s); err == nil {
			t.Errorf("parseCoord(%q) succeeded, want error", s)
		}
	}
}

func newTestSession() *session {
	srv := NewServer(nil, DefaultServerOptions(), nil)
	return newSession(context.Background(), srv.base, srv.options)
}

func TestSessionGame(t *testing.T) {
	s := newTestSession()

	if got := s.processCommand("step"); !strings.HasPrefix(got, "Error:") {
		t.Errorf("step before new = %q, want error", got)
	}

	if got, want := s.processCommand("new 42"), "ok 5x5 fleet [4 3 2 1] hits 10\n"; got != want {
		t.Errorf("new = %q, want %q", got, want)
	}

	first := s.processCommand("step")
	fields := strings.Fields(first)
	if len(fields) != 4 || fields[0] != "C3" || fields[3] != "1" {
		t.Errorf("first step = %q, want C3 <outcome> <hits>/10 1", first)
	}

	out := s.processCommand("play")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	moves, err := strconv.Atoi(strings.TrimPrefix(last, "sunk "))
	if err != nil {
		t.Fatalf("play output ends with %q", last)
	}
	if moves != len(lines) {
		t.Errorf("sunk %d after %d shot lines plus the first step", moves, len(lines)-1)
	}
	if !strings.HasSuffix(lines[len(lines)-2], " won") {
		t.Errorf("last shot = %q, want won", lines[len(lines)-2])
	}

	if got := s.processCommand("play"); !strings.Contains(got, engine.ErrGameOver.Error()) {
		t.Errorf("play after win = %q", got)
	}
	if got := s.processCommand("board"); strings.Contains(got, "S") {
		t.Errorf("board leaks ships: %q", got)
	}
}

func TestSessionTarget(t *testing.T) {
	s := newTestSession()

	if got, want := s.processCommand("target board:...../...../...../...../....."), "C3 16\n"; got != want {
		t.Errorf("target = %q, want %q", got, want)
	}
	if got := s.processCommand("board:...../...../..o../...../....."); strings.HasPrefix(got, "C3") {
		t.Errorf("target fired at a miss: %q", got)
	}
	if got := s.processCommand("target board:oo/oo"); !strings.HasPrefix(got, "Error:") {
		t.Errorf("target on a board too small for the fleet = %q, want error", got)
	}
	if got := s.processCommand("target"); !strings.HasPrefix(got, "Error:") {
		t.Errorf("target without board = %q, want error", got)
	}
}

func TestSessionDensity(t *testing.T) {
	s := newTestSession()

	if got := s.processCommand("set fleet 3,2"); got != "fleet set to 3,2\n" {
		t.Errorf("set fleet = %q", got)
	}
	// Per axis the 3-ship covers 1,1,1 and the 2-ship 1,2,1; a cell's
	// density is its row coverage plus its column coverage.
	want := "4  5  4\n5  6  5\n4  5  4\n"
	if got := s.processCommand("density board:.../.../..."); got != want {
		t.Errorf("density =\n%s\nwant\n%s", got, want)
	}
	if got := s.processCommand("density board:.../.o./..."); strings.Fields(strings.Split(got, "\n")[1])[1] != "-" {
		t.Errorf("fired cell not masked:\n%s", got)
	}
}

func TestSessionSet(t *testing.T) {
	s := newTestSession()

	tests := []struct {
		cmd     string
		wantErr bool
	}{
		{"set size 0", true},
		{"set size 7", false},
		{"set skew ON", false},
		{"set skew off", false},
		{"set skew yes", true},
		{"set skew ture", true},
		{"set skewfactor -1", true},
		{"set skewfactor 3", false},
		{"set seed x", true},
		{"set seed 9", false},
		{"set fleet 4,x", true},
		{"set colour blue", true},
		{"set size", true},
	}
	for _, tc := range tests {
		got := s.processCommand(tc.cmd)
		if isErr := strings.HasPrefix(got, "Error:"); isErr != tc.wantErr {
			t.Errorf("%q = %q, wantErr %v", tc.cmd, got, tc.wantErr)
		}
	}

	if s.opts.BoardSize != 7 || s.opts.SkewEnabled || s.opts.SkewFactor != 3 || s.seed != 9 {
		t.Errorf("opts = %+v seed %d", s.opts, s.seed)
	}

	if got := s.processCommand("set fleet 9"); !strings.Contains(got, "warning") {
		t.Errorf("set fleet 9 on 7x7 = %q, want warning", got)
	}
	if got := s.processCommand("new"); !strings.Contains(got, "invalid configuration") {
		t.Errorf("new with invalid fleet = %q", got)
	}
}

func TestSessionSharesServerCache(t *testing.T) {
	opts := engine.DefaultOptions()
	opts.CacheSize = 64
	base, err := engine.NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	srv := NewServer(base, DefaultServerOptions(), nil)
	s := newSession(context.Background(), srv.base, srv.options)

	const empty = "density board:...../...../...../...../....."
	s.processCommand("set skew off")
	s.processCommand(empty)
	s.processCommand(empty)
	if lookups, hits, _ := base.Cache().Stats(); lookups != 2 || hits != 1 {
		t.Errorf("server cache lookups/hits = %d/%d, want 2/1", lookups, hits)
	}

	s.processCommand("set fleet 3,2")
	s.processCommand(empty)
	if lookups, _, _ := base.Cache().Stats(); lookups != 2 {
		t.Errorf("server cache lookups = %d after fleet change, want 2", lookups)
	}
	if s.engine.Cache() != nil {
		t.Error("session engine for another fleet has a cache")
	}
}

func TestSessionMonteCarlo(t *testing.T) {
	s := newTestSession()
	s.processCommand("set seed 5")

	got := s.processCommand("mc 30")
	fields := strings.Fields(got)
	if len(fields) != 3 || fields[2] != "30" {
		t.Fatalf("mc = %q, want <mean> <ci> 30", got)
	}
	mean, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || mean < 10 || mean > 25 {
		t.Errorf("mean = %q, want within [10, 25]", fields[0])
	}

	if again := s.processCommand("mc 30"); again != got {
		t.Errorf("seeded mc not reproducible: %q vs %q", again, got)
	}
	if got := s.processCommand("mc 0"); !strings.HasPrefix(got, "Error:") {
		t.Errorf("mc 0 = %q, want error", got)
	}
}

func TestSessionMisc(t *testing.T) {
	s := newTestSession()
	if got := s.processCommand("VERSION"); got != Version+"\n" {
		t.Errorf("version = %q", got)
	}
	if got := s.processCommand("help"); !strings.Contains(got, "montecarlo") {
		t.Errorf("help = %q", got)
	}
	if got := s.processCommand("fire"); got != "Error: unknown command 'fire'\n" {
		t.Errorf("unknown = %q", got)
	}
}

func TestServerTCP(t *testing.T) {
	opts := DefaultServerOptions()
	opts.Addr = "127.0.0.1:0"
	opts.PromptEnabled = false

	srv := NewServer(nil, opts, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := srv.Start(); err == nil {
		t.Error("second Start succeeded")
	}

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	r := bufio.NewReader(conn)

	send := func(cmd string) string {
		t.Helper()
		if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
			t.Fatalf("write %q: %v", cmd, err)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read after %q: %v", cmd, err)
		}
		return line
	}

	if got := send("version"); got != Version+"\n" {
		t.Errorf("version = %q", got)
	}
	if got := send("new 3"); !strings.HasPrefix(got, "ok 5x5") {
		t.Errorf("new = %q", got)
	}
	if got := send("step"); !strings.HasPrefix(got, "C3 ") {
		t.Errorf("step = %q", got)
	}
	if got := send("exit"); got != "Goodbye\n" {
		t.Errorf("exit = %q", got)
	}

	// An idle session must not block Stop.
	idle, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer idle.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on an idle session")
	}
	if srv.Addr() != nil {
		t.Error("Addr after Stop should be nil")
	}
}
