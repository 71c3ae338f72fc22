package game

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRecomputeIsWeightedSum(t *testing.T) {
	s := NewScorer(smallCatalog(t))
	s.Credit(0)
	s.Credit(0)
	s.Credit(1)
	s.Credit(2)

	if s.Score() != 0 {
		t.Errorf("credit alone should not change the score, got %d", s.Score())
	}
	if got := s.Recompute(); got != 2*1+3+6 {
		t.Errorf("Recompute = %d, want 11", got)
	}
	if got := s.Recompute(); got != 11 {
		t.Errorf("Recompute is not idempotent: %d", got)
	}
	if s.Merges() != 4 {
		t.Errorf("Merges = %d, want 4", s.Merges())
	}

	s.Credit(5)
	s.Credit(-1)
	if s.Recompute() != 11 {
		t.Error("out of range credits should be ignored")
	}

	s.Reset()
	if s.Score() != 0 || s.Merges() != 0 {
		t.Errorf("after reset score=%d merges=%d", s.Score(), s.Merges())
	}
}

func TestTallyIsACopy(t *testing.T) {
	s := NewScorer(smallCatalog(t))
	s.Credit(1)
	tally := s.Tally()
	tally[1] = 50
	if s.Recompute() != 3 {
		t.Error("mutating the returned tally changed the scorer")
	}
}

func TestCommitHighScore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		stored    int
		final     int
		wantHigh  int
		wantNew   bool
		wantWrite bool
	}{
		{"beats record", 30, 42, 42, true, true},
		{"below record", 30, 20, 30, false, false},
		{"ties record", 30, 30, 30, false, false},
		{"first game", 0, 5, 5, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeHighScores()
			store.values["hs"] = tt.stored

			out, err := CommitHighScore(ctx, store, "hs", tt.final)
			if err != nil {
				t.Fatalf("CommitHighScore: %v", err)
			}
			if out.HighScore != tt.wantHigh || out.NewHighScore != tt.wantNew || out.Previous != tt.stored {
				t.Errorf("outcome = %+v", out)
			}
			if store.values["hs"] != tt.wantHigh {
				t.Errorf("stored = %d, want %d", store.values["hs"], tt.wantHigh)
			}
			if (store.sets > 0) != tt.wantWrite {
				t.Errorf("writes = %d", store.sets)
			}
		})
	}
}

func TestCommitHighScoreWrapsStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	store := newFakeHighScores()
	store.err = boom

	out, err := CommitHighScore(context.Background(), store, "hs", 10)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if out.Final != 10 || out.NewHighScore {
		t.Errorf("outcome = %+v", out)
	}
}

// lockstepStore holds the first two reads until both have happened, and lets
// the 50 game write before the 45 game, so both games see the same stale record.
type lockstepStore struct {
	mu       sync.Mutex
	value    int
	reads    int
	bothRead chan struct{}
	wrote50  chan struct{}
}

func (s *lockstepStore) HighScore(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	v := s.value
	s.reads++
	if s.reads == 2 {
		close(s.bothRead)
	}
	first := s.reads <= 2
	s.mu.Unlock()
	if first {
		<-s.bothRead
	}
	return v, nil
}

func (s *lockstepStore) SetHighScore(_ context.Context, _ string, score int) (bool, error) {
	if score == 45 {
		<-s.wrote50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if score == 50 {
		defer close(s.wrote50)
	}
	if score <= s.value {
		return false, nil
	}
	s.value = score
	return true, nil
}

func TestCommitHighScoreConcurrentLosses(t *testing.T) {
	store := &lockstepStore{value: 30, bothRead: make(chan struct{}), wrote50: make(chan struct{})}

	var wg sync.WaitGroup
	var out50, out45 HighScoreOutcome
	var err50, err45 error
	wg.Add(2)
	go func() {
		defer wg.Done()
		out50, err50 = CommitHighScore(context.Background(), store, "hs", 50)
	}()
	go func() {
		defer wg.Done()
		out45, err45 = CommitHighScore(context.Background(), store, "hs", 45)
	}()
	wg.Wait()

	if err50 != nil || err45 != nil {
		t.Fatalf("errors: %v, %v", err50, err45)
	}
	if store.value != 50 {
		t.Errorf("stored = %d, want 50", store.value)
	}
	if !out50.NewHighScore || out50.HighScore != 50 {
		t.Errorf("50 game outcome = %+v", out50)
	}
	if out45.NewHighScore {
		t.Errorf("45 game should not report a new high score: %+v", out45)
	}
	if out45.Previous != 30 || out45.HighScore != 50 {
		t.Errorf("45 game outcome = %+v, want previous 30 and record 50", out45)
	}
}
