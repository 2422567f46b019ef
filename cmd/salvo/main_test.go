package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var sunkRe = regexp.MustCompile(`Fleet sunk in (\d+) moves`)

func TestPlayCommand(t *testing.T) {
	out, err := run(t, "play", "--seed", "20240601")
	require.NoError(t, err)

	m := sunkRe.FindStringSubmatch(out)
	require.NotNil(t, m, "missing summary line in:\n%s", out)
	moves, _ := strconv.Atoi(m[1])
	assert.GreaterOrEqual(t, moves, 10)
	assert.LessOrEqual(t, moves, 25)

	assert.Equal(t, moves, strings.Count(out, "Move "))
	assert.Contains(t, out, "Move  1: fire (2,2)")
	assert.Equal(t, 10, strings.Count(out, "-> hit"))
}

func TestPlayCommandDeterministic(t *testing.T) {
	a, err := run(t, "play", "--seed", "7", "--show-density")
	require.NoError(t, err)
	b, err := run(t, "play", "--seed", "7", "--show-density")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// The first density map is the canonical initial map.
	assert.True(t, strings.HasPrefix(a, " 8  11  12  11   8\n"), "got:\n%s", a)
}

func TestPlayCommandShowBoard(t *testing.T) {
	out, err := run(t, "play", "--seed", "3", "--show-board", "--delay", "1ms")
	require.NoError(t, err)

	i := strings.LastIndex(out, "moves\n\n")
	require.NotEqual(t, -1, i)
	board := out[i+len("moves\n\n"):]
	assert.Equal(t, 10, strings.Count(board, "X"))
	assert.Equal(t, 0, strings.Count(board, "S"), "every ship cell should be hit")
}

func TestPlayCommandSmallBoard(t *testing.T) {
	out, err := run(t, "play", "--seed", "1", "--board-size", "3", "--fleet", "3,2", "--skew=false")
	require.NoError(t, err)
	assert.Contains(t, out, "(5/5 hits)")
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := run(t, "play", "--fleet", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = run(t, "play", "--fleet", "4,x")
	require.Error(t, err)
}

func TestMonteCarloCommand(t *testing.T) {
	out, err := run(t, "montecarlo", "--trials", "60", "--workers", "3", "--seed", "11", "--histogram")
	require.NoError(t, err)

	assert.Contains(t, out, "Trials:      60 (seed 11)")
	assert.Contains(t, out, "skew x2")
	assert.Contains(t, out, "Moves  Games")

	m := regexp.MustCompile(`Mean moves:  ([0-9.]+)`).FindStringSubmatch(out)
	require.NotNil(t, m)
	mean, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mean, 10.0)
	assert.LessOrEqual(t, mean, 25.0)
}

func TestMonteCarloNegativeTrials(t *testing.T) {
	_, err := run(t, "mc", "--trials=-5")
	assert.Error(t, err)
}

func TestDensityCommand(t *testing.T) {
	out, err := run(t, "density")
	require.NoError(t, err)

	want := " 8  11  12  11   8\n" +
		"11  14  15  14  11\n" +
		"12  15  16  15  12\n" +
		"11  14  15  14  11\n" +
		" 8  11  12  11   8\n" +
		"\nTotal: 300\nTarget: (2,2) (16)\n"
	assert.Equal(t, want, out)
}

func TestDensityCommandGridID(t *testing.T) {
	_, err := run(t, "density", "5:!!")
	assert.Error(t, err)

	out, err := run(t, "density", "5:AAAAAAAAA")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 300")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salvo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  board_size: 4\n  fleet: [3, 2]\n"), 0644))

	out, err := run(t, "density", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "\n")-3, "expected a 4 row map in:\n%s", out)

	// Flags win over the file.
	out, err = run(t, "density", "--config", path, "--board-size", "6")
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(out, "\n")-3)
}

func TestSetupUsesLoggingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salvo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644))

	a := &app{cfgPath: path}
	require.NoError(t, a.setup(newRootCmd()))
	assert.False(t, a.logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, a.logger.Core().Enabled(zapcore.ErrorLevel))

	a = &app{cfgPath: path, verbose: true}
	require.NoError(t, a.setup(newRootCmd()))
	assert.True(t, a.logger.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644))
	a = &app{cfgPath: path}
	assert.Error(t, a.setup(newRootCmd()))
}
