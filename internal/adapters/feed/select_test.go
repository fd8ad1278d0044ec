package feed

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"cyberaware/internal/domain"
)

func hl(source, title string) domain.Headline {
	return domain.Headline{Source: source, Title: title}
}

func TestSelectRoundRobinAcrossSources(t *testing.T) {
	var candidates []domain.Headline
	for _, src := range []string{"a", "b", "c"} {
		for i := 0; i < 4; i++ {
			candidates = append(candidates, hl(src, fmt.Sprintf("%s-%d", src, i)))
		}
	}
	got := Select(candidates, 5, rand.New(rand.NewPCG(1, 2)))
	if len(got) != 5 {
		t.Fatalf("ожидали 5, получили %d", len(got))
	}
	perSource := map[string]int{}
	for _, h := range got {
		perSource[h.Source]++
	}
	for src, n := range perSource {
		if n > 2 {
			t.Fatalf("источник %s выбран %d раз, ожидали не больше 2", src, n)
		}
	}
	if got[0].Title[2:] != "0" || got[1].Title[2:] != "0" || got[2].Title[2:] != "0" {
		t.Fatalf("первый круг должен брать первые записи источников: %v", got)
	}
}

func TestSelectUniqueByTitle(t *testing.T) {
	candidates := []domain.Headline{
		hl("a", "Same"), hl("b", "Same"), hl("a", "A2"), hl("b", "B2"),
		hl("c", "Same"), hl("c", "C2"), hl("c", "C3"),
	}
	got := Select(candidates, 5, rand.New(rand.NewPCG(3, 4)))
	if len(got) != 5 {
		t.Fatalf("ожидали 5 уникальных, получили %d", len(got))
	}
	seen := map[string]bool{}
	for _, h := range got {
		if seen[h.Title] {
			t.Fatalf("дубликат заголовка %q", h.Title)
		}
		seen[h.Title] = true
	}
}

func TestSelectReturnsAllWhenFewer(t *testing.T) {
	candidates := []domain.Headline{hl("a", "1"), hl("a", "1"), hl("b", "2")}
	got := Select(candidates, 5, nil)
	if len(got) != 2 {
		t.Fatalf("ожидали 2 уникальных, получили %d", len(got))
	}
	if Select(nil, 5, nil) != nil {
		t.Fatalf("пустой вход должен давать nil")
	}
}

func TestMatchesKeywords(t *testing.T) {
	kw := DefaultKeywords
	if !MatchesKeywords(domain.Headline{Title: "New RANSOMWARE strain"}, kw) {
		t.Fatalf("ожидали совпадение без учёта регистра")
	}
	if !MatchesKeywords(domain.Headline{Title: "Weekly", Description: "a Data Breach at a bank"}, kw) {
		t.Fatalf("ожидали совпадение по описанию")
	}
	if MatchesKeywords(domain.Headline{Title: "Product launch", Description: "new laptop"}, kw) {
		t.Fatalf("не ожидали совпадения")
	}
}
