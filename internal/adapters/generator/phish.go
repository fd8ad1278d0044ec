package generator

import (
	"context"

	"github.com/microcosm-cc/bluemonday"

	"cyberaware/internal/domain"
)

// Ссылки и картинки в учебном письме остаются, скрипты и обработчики событий вырезаются.
var phishPolicy = bluemonday.UGCPolicy()

// GeneratePhish запрашивает учебную фишинговую рассылку в виде HTML, готового к показу.
func (g *OpenAI) GeneratePhish(ctx context.Context) (string, error) {
	text, err := g.complete(ctx, StagePhish, phishPrompt)
	if err != nil {
		return "", err
	}
	html := phishPolicy.Sanitize(text)
	if html == "" {
		g.log.Warn().Int("raw_len", len(text)).Msg("generator: после очистки HTML ничего не осталось")
		return "", &domain.GenerationError{Stage: StagePhish, Attempts: 1, Err: domain.ErrNoContent}
	}
	return html, nil
}
