package generator

import (
	"fmt"
	"regexp"
	"strings"

	"cyberaware/internal/domain"
)

var (
	slideMarker    = regexp.MustCompile(`Slide \d+[: ]*\n`)
	slideTitle     = regexp.MustCompile(`\*\*Title:\*\* ([^\n]*)`)
	slideTitleLine = regexp.MustCompile(`\*\*Title:\*\*[^\n]*\n`)
	contentLabel   = regexp.MustCompile(`^\s*Content:\s*\n?`)
	summaryLeadIn  = regexp.MustCompile(`^\s*and a concise summary of this week's key cyber events:?\s*`)
)

// ParseSlides разбирает ответ модели на слайды по маркерам "Slide N".
// Ровно BatchSize слайдов считается успехом, меньшее число считается некорректным ответом.
func ParseSlides(text string) domain.ParseResult[domain.Slide] {
	text = stripFence(text)
	if text == "" {
		return domain.Malformed[domain.Slide]("пустой ответ", nil)
	}
	loc := slideMarker.FindStringIndex(text)
	if loc == nil {
		return domain.Malformed[domain.Slide]("нет маркеров Slide N", nil)
	}
	sections := slideMarker.Split(text[loc[0]:], -1)

	slides := make([]domain.Slide, 0, BatchSize)
	for i, section := range sections[1:] {
		n := i + 1
		if n > BatchSize {
			break
		}
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		title := fmt.Sprintf("Slide %d", n)
		if m := slideTitle.FindStringSubmatch(section); m != nil {
			if t := strings.TrimSpace(m[1]); t != "" {
				title = t
			}
		}
		content := section
		if loc := slideTitleLine.FindStringIndex(content); loc != nil {
			content = content[:loc[0]] + content[loc[1]:]
		}
		content = strings.TrimSpace(content)
		if n == 1 {
			content = contentLabel.ReplaceAllString(content, "")
			content = summaryLeadIn.ReplaceAllString(strings.TrimSpace(content), "")
		}
		content = strings.TrimSpace(strings.TrimRight(content, "-"))
		slides = append(slides, domain.Slide{Title: title, Content: content})
	}
	if len(slides) != BatchSize {
		return domain.Malformed(fmt.Sprintf("ожидали %d слайдов, получили %d", BatchSize, len(slides)), slides)
	}
	return domain.Ok(slides)
}
