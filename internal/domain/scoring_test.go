package domain

import (
	"errors"
	"testing"
)

func TestScoringDefaults(t *testing.T) {
	s := NewScoring(nil)
	if !s.IsPerfect(69) || !s.IsPerfect(100) {
		t.Fatalf("ожидали идеальные 69 и 100")
	}
	if s.IsPerfect(70) {
		t.Fatalf("70 не должно быть идеальным")
	}
	cases := map[int]string{48: "Pass", 47: "Fail", 69: "Pass", 70: "Fail", 79: "Fail", 80: "Pass", 100: "Pass"}
	for score, want := range cases {
		if got := s.Status(score); got != want {
			t.Fatalf("score %d: ожидали %s, получили %s", score, want, got)
		}
	}
}

func TestScoringConfigured(t *testing.T) {
	s := NewScoring(ParsePerfectScores(" 100 , abc"))
	if s.IsPerfect(69) {
		t.Fatalf("69 не настроено как идеальное")
	}
	if got := s.PerfectValues(); len(got) != 1 || got[0] != 100 {
		t.Fatalf("неожиданные значения: %v", got)
	}
	if s.Status(60) != "Fail" {
		t.Fatalf("60 из 100 должно быть Fail")
	}
}

func TestValidateScore(t *testing.T) {
	if err := ValidateScore(50); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	err := ValidateScore(101)
	var iv *IntegrityViolation
	if !errors.As(err, &iv) || !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("ожидали IntegrityViolation, получили %v", err)
	}
}
