package frecency

import (
	"testing"
	"time"
)

func TestScoreNoDecay(t *testing.T) {
	now := time.Unix(0, 0)
	got := Score(5, now, now)
	if got != 50 {
		t.Errorf("Score(5, now, now) = %v, want 50", got)
	}
}

func TestScoreSevenDayDecay(t *testing.T) {
	now := time.Unix(0, 0)
	used := now.Add(-7 * 24 * time.Hour)
	got := Score(5, used, now)
	// decay = 1/(1+1) = 0.5; 5*10*0.5 = 25
	if got != 25 {
		t.Errorf("Score after 7 days = %v, want 25", got)
	}
}

func TestScoreMonotonicInFrequency(t *testing.T) {
	now := time.Unix(0, 0)
	low := Score(2, now, now)
	high := Score(5, now, now)
	if !(high > low) {
		t.Errorf("expected higher frequency to produce higher score: low=%v high=%v", low, high)
	}
}

func TestScoreMonotonicInDecay(t *testing.T) {
	now := time.Unix(1_000_000_000, 0)
	used := now.Add(-1 * time.Hour)
	later := now
	prev := now.Add(-2 * time.Hour)

	s1 := Score(4, used, prev)
	s2 := Score(4, used, later)
	if s2 > s1 {
		t.Errorf("score should not increase as time advances without use: s1=%v s2=%v", s1, s2)
	}
}

func TestScoreNeverNegative(t *testing.T) {
	now := time.Unix(0, 0)
	used := now.Add(-365 * 24 * time.Hour)
	got := Score(1, used, now)
	if got < 0 {
		t.Errorf("Score must never be negative, got %v", got)
	}
}

func TestScoreFutureLastUsedClamped(t *testing.T) {
	now := time.Unix(0, 0)
	used := now.Add(1 * time.Hour) // lastUsedAt after now, shouldn't happen but must not panic/invert
	got := Score(3, used, now)
	if got != 30 {
		t.Errorf("clamped future use should behave like zero decay, got %v", got)
	}
}
