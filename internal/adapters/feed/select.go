package feed

import (
	"math/rand/v2"
	"strings"

	"cyberaware/internal/domain"
)

// MatchesKeywords проверяет вхождение любого ключевого слова в заголовок или описание.
func MatchesKeywords(h domain.Headline, keywords []string) bool {
	title := strings.ToLower(h.Title)
	desc := strings.ToLower(h.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// Select группирует кандидатов по источнику, перемешивает порядок источников и
// по кругу берёт по одному заголовку из каждого, пока не наберётся limit
// уникальных по title. Внутри источника порядок кандидатов сохраняется.
func Select(candidates []domain.Headline, limit int, rnd *rand.Rand) []domain.Headline {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}
	groups := make(map[string][]domain.Headline)
	var sources []string
	for _, c := range candidates {
		if _, ok := groups[c.Source]; !ok {
			sources = append(sources, c.Source)
		}
		groups[c.Source] = append(groups[c.Source], c)
	}
	if rnd != nil {
		rnd.Shuffle(len(sources), func(i, j int) { sources[i], sources[j] = sources[j], sources[i] })
	}

	selected := make([]domain.Headline, 0, limit)
	seen := make(map[string]struct{})
	for len(selected) < limit && len(sources) > 0 {
		remaining := sources[:0]
		for i, src := range sources {
			if len(selected) >= limit {
				remaining = append(remaining, sources[i:]...)
				break
			}
			queue := groups[src]
			for len(queue) > 0 {
				h := queue[0]
				queue = queue[1:]
				if _, dup := seen[h.Title]; dup {
					continue
				}
				seen[h.Title] = struct{}{}
				selected = append(selected, h)
				break
			}
			groups[src] = queue
			if len(queue) > 0 {
				remaining = append(remaining, src)
			}
		}
		sources = remaining
	}
	return selected
}
