package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yourusername/salvo/internal/grid"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.BoardSize != 5 {
		t.Errorf("BoardSize = %d, want 5", opts.BoardSize)
	}
	if diff := cmp.Diff(Fleet{4, 3, 2, 1}, opts.Fleet); diff != "" {
		t.Errorf("Fleet mismatch (-want +got):\n%s", diff)
	}
	if !opts.SkewEnabled || opts.SkewFactor != 2 {
		t.Errorf("skew = %v x%v, want enabled x2", opts.SkewEnabled, opts.SkewFactor)
	}
}

func TestNewEngineFillsZeroValues(t *testing.T) {
	e, err := NewEngine(Options{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if e.BoardSize() != DefaultBoardSize {
		t.Errorf("BoardSize = %d, want %d", e.BoardSize(), DefaultBoardSize)
	}
	if e.HitsToWin() != 10 {
		t.Errorf("HitsToWin = %d, want 10", e.HitsToWin())
	}
	if e.Options().SkewFactor != DefaultSkewFactor {
		t.Errorf("SkewFactor = %v, want %v", e.Options().SkewFactor, DefaultSkewFactor)
	}
	if e.Cache() != nil {
		t.Error("cache enabled without CacheSize")
	}
}

func TestNewEngineCopiesFleet(t *testing.T) {
	fleet := Fleet{3, 2}
	e, err := NewEngine(Options{Fleet: fleet})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	fleet[0] = 5
	if got := e.Fleet(); got[0] != 3 {
		t.Errorf("engine fleet changed with caller slice: %v", got)
	}
}

func TestNewEngineInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative board", Options{BoardSize: -1}},
		{"empty fleet", Options{Fleet: Fleet{}}},
		{"zero length ship", Options{Fleet: Fleet{3, 0}}},
		{"ship longer than board", Options{BoardSize: 3, Fleet: Fleet{4}}},
		{"fleet larger than board", Options{BoardSize: 2, Fleet: Fleet{2, 2, 1}}},
		{"negative skew", Options{SkewFactor: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.opts); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("NewEngine err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestFleet(t *testing.T) {
	if got := CanonicalFleet.HitsToWin(); got != 10 {
		t.Errorf("CanonicalFleet.HitsToWin() = %d, want 10", got)
	}
	if got := SecondaryFleet.HitsToWin(); got != 9 {
		t.Errorf("SecondaryFleet.HitsToWin() = %d, want 9", got)
	}
	if got := (Fleet{2, 5, 3}).Longest(); got != 5 {
		t.Errorf("Longest() = %d, want 5", got)
	}
}

func TestDeriveSharesCache(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 64
	base, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	noSkew := base.Options()
	noSkew.SkewEnabled = false
	noSkew.CacheSize = 1 << 20
	derived, err := base.Derive(noSkew)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if derived.Cache() != base.Cache() {
		t.Error("derived engine with same board and fleet did not share the cache")
	}

	g, err := grid.New(5)
	if err != nil {
		t.Fatal(err)
	}
	derived.Density(g)
	base.Density(g)
	if lookups, hits, adds := base.Cache().Stats(); lookups != 2 || hits != 1 || adds != 1 {
		t.Errorf("Stats = %d/%d/%d, want 2/1/1", lookups, hits, adds)
	}

	tests := []struct {
		name string
		edit func(*Options)
	}{
		{"other fleet", func(o *Options) { o.Fleet = Fleet{3, 2} }},
		{"other board", func(o *Options) { o.BoardSize = 6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base.Options()
			tt.edit(&o)
			o.CacheSize = 1 << 20
			e, err := base.Derive(o)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			if e.Cache() != nil {
				t.Error("derived engine allocated or shared a cache for a different board")
			}
		})
	}
}

func TestNewEngineSharedCache(t *testing.T) {
	c := NewDensityCache(16)
	a, err := NewEngine(Options{Cache: c})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if a.Cache() != c {
		t.Fatal("unbound cache not adopted")
	}

	b, err := NewEngine(Options{Fleet: Fleet{2}, Cache: c, CacheSize: 8})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if b.Cache() == c || b.Cache() == nil {
		t.Error("mismatched fleet should fall back to its own CacheSize cache")
	}
}
