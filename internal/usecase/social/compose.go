package social

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"cyberaware/internal/domain"
)

// PostLimit ограничивает длину публикации в символах.
const PostLimit = 280

// DefaultSiteLine завершает каждую публикацию.
const DefaultSiteLine = "Become cyber-aware on dilag3nt[.]com"

var strictPolicy = bluemonday.StrictPolicy()

// ComposeHighlight собирает текст публикации из заголовка, источника и вопроса.
// Если текст длиннее PostLimit, сокращается вопрос, а строка сайта сохраняется.
func ComposeHighlight(c domain.PostCandidate, siteLine string) string {
	if siteLine == "" {
		siteLine = DefaultSiteLine
	}
	title := plainText(c.HeadlineTitle)
	source := plainText(c.Source)
	question := plainText(c.Question)

	text := render(title, source, question, siteLine)
	over := runeLen(text) - PostLimit
	if over <= 0 {
		return text
	}
	if q := []rune(question); over < len(q) {
		text = render(title, source, clipAtWord(q, len(q)-over-1)+"…", siteLine)
		if runeLen(text) <= PostLimit {
			return text
		}
	}
	return string([]rune(text)[:PostLimit])
}

func render(title, source, question, siteLine string) string {
	return fmt.Sprintf("🛡️ %s (%s)\n\n❓ %s\n\n%s", title, source, question, siteLine)
}

// plainText снимает HTML-сущности и разметку.
func plainText(s string) string {
	s = strictPolicy.Sanitize(html.UnescapeString(s))
	return strings.TrimSpace(html.UnescapeString(s))
}

// clipAtWord обрезает до limit символов, по возможности на границе слова.
func clipAtWord(runes []rune, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(runes) <= limit {
		return string(runes)
	}
	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
}

func runeLen(s string) int {
	return len([]rune(s))
}
