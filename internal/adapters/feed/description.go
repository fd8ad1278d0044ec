package feed

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	descriptionWindow  = 225
	widenBelow         = 180
	flatFallbackBelow  = 100
	truncationEllipsis = "..."
)

var (
	twoSentences  = regexp.MustCompile(`(?:[A-Z][^.]*?\.(?:\s+|$)){1,2}`)
	fourSentences = regexp.MustCompile(`(?:[A-Z][^.]*?\.(?:\s+|$)){1,4}`)
)

// ExtractDescription выбирает первые одно-два предложения из начала текста без разметки.
// Короткий результат расширяется до четырёх предложений, а если и этого мало,
// берётся плоская обрезка окна с многоточием.
func ExtractDescription(text string) string {
	text = strings.TrimSpace(text)
	window := clipRunes(text, descriptionWindow)
	flat := strings.TrimRightFunc(window, isSpace)

	description := firstMatch(twoSentences, window, flat)
	if utf8.RuneCountInString(description) < widenBelow {
		description = firstMatch(fourSentences, window, flat)
	}
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(description) && !strings.HasSuffix(description, ".") {
		description += truncationEllipsis
	}
	if utf8.RuneCountInString(description) < flatFallbackBelow {
		description = flat
		if utf8.RuneCountInString(text) > descriptionWindow {
			description += truncationEllipsis
		}
	}
	return description
}

func firstMatch(re *regexp.Regexp, window, fallback string) string {
	m := re.FindString(window)
	if m == "" {
		return fallback
	}
	return strings.TrimRightFunc(m, isSpace)
}

func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
