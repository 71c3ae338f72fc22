package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidCatalog is wrapped by every catalog validation failure.
var ErrInvalidCatalog = errors.New("invalid fruit catalog")

// CatalogError names the tier that broke a catalog invariant.
type CatalogError struct {
	Index  int
	Reason string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: tier %d: %s", ErrInvalidCatalog, e.Index, e.Reason)
}

func (e *CatalogError) Unwrap() error { return ErrInvalidCatalog }

// FruitTier is one size class of fruit.
type FruitTier struct {
	Index      int     `json:"index"`
	Radius     float64 `json:"radius"`
	ScoreValue int     `json:"score_value"`
	VisualRef  string  `json:"visual_ref"`
}

// Catalog is the immutable, ordered table of tiers.
type Catalog struct {
	tiers []FruitTier
}

// NewCatalog validates tiers and builds a catalog. Indices must run 0..n-1,
// radii must strictly increase and score values must be non-negative and
// non-decreasing.
func NewCatalog(tiers []FruitTier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, &CatalogError{Index: 0, Reason: "catalog is empty"}
	}

	for i, t := range tiers {
		if t.Index != i {
			return nil, &CatalogError{Index: i, Reason: fmt.Sprintf("index %d out of sequence", t.Index)}
		}
		if t.Radius <= 0 {
			return nil, &CatalogError{Index: i, Reason: "radius must be positive"}
		}
		if t.ScoreValue < 0 {
			return nil, &CatalogError{Index: i, Reason: "score value is negative"}
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.Radius <= prev.Radius {
			return nil, &CatalogError{Index: i, Reason: fmt.Sprintf("radius %.2f not larger than %.2f", t.Radius, prev.Radius)}
		}
		if t.ScoreValue < prev.ScoreValue {
			return nil, &CatalogError{Index: i, Reason: fmt.Sprintf("score value %d below %d", t.ScoreValue, prev.ScoreValue)}
		}
	}

	c := &Catalog{tiers: make([]FruitTier, len(tiers))}
	copy(c.tiers, tiers)
	return c, nil
}

// LoadCatalog reads a JSON array of tiers from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var tiers []FruitTier
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(tiers)
}

var defaultTiers = []FruitTier{
	{Index: 0, Radius: 24, ScoreValue: 1, VisualRef: "circle0"},
	{Index: 1, Radius: 32, ScoreValue: 3, VisualRef: "circle1"},
	{Index: 2, Radius: 40, ScoreValue: 6, VisualRef: "circle2"},
	{Index: 3, Radius: 56, ScoreValue: 10, VisualRef: "circle3"},
	{Index: 4, Radius: 64, ScoreValue: 15, VisualRef: "circle4"},
	{Index: 5, Radius: 72, ScoreValue: 21, VisualRef: "circle5"},
	{Index: 6, Radius: 84, ScoreValue: 28, VisualRef: "circle6"},
	{Index: 7, Radius: 96, ScoreValue: 36, VisualRef: "circle7"},
	{Index: 8, Radius: 128, ScoreValue: 45, VisualRef: "circle8"},
	{Index: 9, Radius: 160, ScoreValue: 55, VisualRef: "circle9"},
	{Index: 10, Radius: 192, ScoreValue: 66, VisualRef: "circle10"},
}

// baseTiers sizes each fruit from its sprite diameter.
var baseTiers = []FruitTier{
	{Index: 0, Radius: 33.0 / 2, ScoreValue: 1, VisualRef: "base/00_cherry"},
	{Index: 1, Radius: 48.0 / 2, ScoreValue: 3, VisualRef: "base/01_strawberry"},
	{Index: 2, Radius: 61.0 / 2, ScoreValue: 6, VisualRef: "base/02_grape"},
	{Index: 3, Radius: 69.0 / 2, ScoreValue: 10, VisualRef: "base/03_gyool"},
	{Index: 4, Radius: 90.0 / 2, ScoreValue: 15, VisualRef: "base/04_orange"},
	{Index: 5, Radius: 117.0 / 2, ScoreValue: 21, VisualRef: "base/05_apple"},
	{Index: 6, Radius: 129.0 / 2, ScoreValue: 28, VisualRef: "base/06_pear"},
	{Index: 7, Radius: 156.0 / 2, ScoreValue: 36, VisualRef: "base/07_peach"},
	{Index: 8, Radius: 177.0 / 2, ScoreValue: 45, VisualRef: "base/08_pineapple"},
	{Index: 9, Radius: 220.0 / 2, ScoreValue: 55, VisualRef: "base/09_melon"},
	{Index: 10, Radius: 259.0 / 2, ScoreValue: 66, VisualRef: "base/10_watermelon"},
}

// DefaultCatalog returns the eleven-tier circle catalog.
func DefaultCatalog() *Catalog {
	return mustCatalog(defaultTiers)
}

// BaseCatalog returns the cherry-to-watermelon catalog.
func BaseCatalog() *Catalog {
	return mustCatalog(baseTiers)
}

func mustCatalog(tiers []FruitTier) *Catalog {
	c, err := NewCatalog(tiers)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of tiers.
func (c *Catalog) Len() int {
	return len(c.tiers)
}

// Terminal returns the index of the largest tier.
func (c *Catalog) Terminal() int {
	return len(c.tiers) - 1
}

// Tier looks up a tier by index.
func (c *Catalog) Tier(index int) (FruitTier, bool) {
	if index < 0 || index >= len(c.tiers) {
		return FruitTier{}, false
	}
	return c.tiers[index], true
}

// Radius returns the radius of a tier, or zero for an unknown index.
func (c *Catalog) Radius(index int) float64 {
	t, _ := c.Tier(index)
	return t.Radius
}

// Tiers returns a copy of the table.
func (c *Catalog) Tiers() []FruitTier {
	out := make([]FruitTier, len(c.tiers))
	copy(out, c.tiers)
	return out
}
