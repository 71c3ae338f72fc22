package game

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogsAreValid(t *testing.T) {
	for name, c := range map[string]*Catalog{"default": DefaultCatalog(), "base": BaseCatalog()} {
		if c.Len() != 11 {
			t.Errorf("%s: len = %d, want 11", name, c.Len())
		}
		if c.Terminal() != 10 {
			t.Errorf("%s: terminal = %d, want 10", name, c.Terminal())
		}
		if _, err := NewCatalog(c.Tiers()); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestCatalogValidation(t *testing.T) {
	cases := []struct {
		name  string
		tiers []FruitTier
		index int
	}{
		{"empty", nil, 0},
		{"index gap", []FruitTier{{Index: 0, Radius: 10}, {Index: 2, Radius: 20}}, 1},
		{"zero radius", []FruitTier{{Index: 0, Radius: 0}}, 0},
		{"negative score", []FruitTier{{Index: 0, Radius: 10, ScoreValue: -1}}, 0},
		{"equal radius", []FruitTier{{Index: 0, Radius: 10}, {Index: 1, Radius: 10}}, 1},
		{"shrinking radius", []FruitTier{{Index: 0, Radius: 10}, {Index: 1, Radius: 20}, {Index: 2, Radius: 15}}, 2},
		{"decreasing score", []FruitTier{{Index: 0, Radius: 10, ScoreValue: 5}, {Index: 1, Radius: 20, ScoreValue: 4}}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.tiers)
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("err = %v, want ErrInvalidCatalog", err)
			}
			var ce *CatalogError
			if !errors.As(err, &ce) || ce.Index != tc.index {
				t.Errorf("err = %v, want tier %d", err, tc.index)
			}
		})
	}
}

func TestCatalogLookups(t *testing.T) {
	c := smallCatalog(t)

	if tier, ok := c.Tier(1); !ok || tier.Radius != 20 || tier.ScoreValue != 3 {
		t.Errorf("Tier(1) = %+v, %v", tier, ok)
	}
	if _, ok := c.Tier(3); ok {
		t.Error("Tier(3) should be out of range")
	}
	if _, ok := c.Tier(-1); ok {
		t.Error("Tier(-1) should be out of range")
	}
	if c.Radius(7) != 0 {
		t.Error("Radius of an unknown tier should be zero")
	}

	tiers := c.Tiers()
	tiers[0].Radius = 999
	if c.Radius(0) != 10 {
		t.Error("Tiers should return a copy")
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(good, []byte(`[
		{"index": 0, "radius": 12, "score_value": 1, "visual_ref": "a"},
		{"index": 1, "radius": 18, "score_value": 2, "visual_ref": "b"}
	]`), 0o644)
	os.WriteFile(bad, []byte(`[{"index": 0, "radius": -1}]`), 0o644)

	c, err := LoadCatalog(good)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 2 || c.Radius(1) != 18 {
		t.Errorf("loaded %+v", c.Tiers())
	}

	if _, err := LoadCatalog(bad); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("bad catalog err = %v", err)
	}
	if _, err := LoadCatalog(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
