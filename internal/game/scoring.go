package game

import (
	"context"
	"fmt"
)

// Scorer keeps the per-tier merge tally and derives the score from it.
type Scorer struct {
	catalog *Catalog
	tally   []int
	score   int
}

func NewScorer(catalog *Catalog) *Scorer {
	return &Scorer{catalog: catalog, tally: make([]int, catalog.Len())}
}

// Credit records one merge at tier. The score is not touched until Recompute.
func (s *Scorer) Credit(tier int) {
	if tier < 0 || tier >= len(s.tally) {
		return
	}
	s.tally[tier]++
}

// Recompute derives the score from the full tally.
func (s *Scorer) Recompute() int {
	total := 0
	for i, count := range s.tally {
		t, _ := s.catalog.Tier(i)
		total += count * t.ScoreValue
	}
	s.score = total
	return total
}

// Reset zeroes the tally and the score.
func (s *Scorer) Reset() {
	for i := range s.tally {
		s.tally[i] = 0
	}
	s.score = 0
}

// Score returns the value of the last Recompute.
func (s *Scorer) Score() int {
	return s.score
}

// Tally returns a copy of the per-tier merge counts.
func (s *Scorer) Tally() []int {
	out := make([]int, len(s.tally))
	copy(out, s.tally)
	return out
}

// Merges returns the total number of merges recorded.
func (s *Scorer) Merges() int {
	n := 0
	for _, c := range s.tally {
		n += c
	}
	return n
}

// HighScoreStore persists named high-score values.
type HighScoreStore interface {
	HighScore(ctx context.Context, key string) (int, error)
	// SetHighScore stores score only if it beats the current value and
	// reports whether it did.
	SetHighScore(ctx context.Context, key string, score int) (bool, error)
}

// HighScoreOutcome is the result of comparing a final score with the stored record.
type HighScoreOutcome struct {
	Final        int  `json:"final"`
	Previous     int  `json:"previous"`
	HighScore    int  `json:"high_score"`
	NewHighScore bool `json:"new_high_score"`
}

// CommitHighScore overwrites the stored record only when final is strictly greater.
func CommitHighScore(ctx context.Context, store HighScoreStore, key string, final int) (HighScoreOutcome, error) {
	prev, err := store.HighScore(ctx, key)
	if err != nil {
		return HighScoreOutcome{Final: final}, fmt.Errorf("load high score %q: %w", key, err)
	}

	out := HighScoreOutcome{Final: final, Previous: prev, HighScore: prev}
	if final <= prev {
		return out, nil
	}

	written, err := store.SetHighScore(ctx, key, final)
	if err != nil {
		return out, fmt.Errorf("store high score %q: %w", key, err)
	}
	if !written {
		// Another game raised the record after our read.
		if cur, err := store.HighScore(ctx, key); err == nil && cur > out.HighScore {
			out.HighScore = cur
		}
		return out, nil
	}
	out.HighScore = final
	out.NewHighScore = true
	return out, nil
}
