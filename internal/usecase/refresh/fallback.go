package refresh

import (
	"time"

	"cyberaware/internal/domain"
)

const fallbackSource = "Fallback Source"

var fallbackItems = []struct{ title, description string }{
	{"Phishing Attacks on the Rise", "Recent increase in phishing attempts targeting remote workers."},
	{"Ransomware Threat Alert", "New ransomware variant detected in corporate networks."},
	{"Data Breach at Major Firm", "Sensitive data exposed in recent security breach."},
	{"Zero-Day Vulnerability Found", "Critical software flaw discovered, patches pending."},
	{"Cybersecurity Training Urged", "Experts recommend regular employee training to combat threats."},
}

// fallbackHeadlines возвращает до n встроенных заголовков, которых ещё нет в have.
func fallbackHeadlines(n int, have map[string]struct{}, now time.Time) []domain.Headline {
	out := make([]domain.Headline, 0, n)
	for _, item := range fallbackItems {
		if len(out) >= n {
			break
		}
		if _, dup := have[item.title]; dup {
			continue
		}
		out = append(out, domain.Headline{
			Title:       item.title,
			Description: item.description,
			Link:        "#",
			Source:      fallbackSource,
			Timestamp:   now,
		})
	}
	return out
}
