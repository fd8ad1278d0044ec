package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	openai "cyberaware/internal/infra/openai"
)

const (
	// Имена этапов генерации для ошибок и логов.
	StageSlides = "slides"
	StageQuiz   = "quiz"
	StagePhish  = "phish"

	defaultModel     = "grok-3-mini"
	defaultAttempts  = 3
	defaultRetryBase = 10 * time.Second
)

var errEmptyCompletion = errors.New("пустой ответ модели")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options настраивает генератор.
type Options struct {
	Model     string
	Attempts  int
	RetryBase time.Duration
}

// OpenAI генерирует слайды и викторину через OpenAI-совместимый Chat Completions API.
type OpenAI struct {
	client chatClient
	model  string
	retry  retryPolicy
	log    zerolog.Logger
}

var _ domain.ContentGenerator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор контента.
func NewOpenAI(client chatClient, opts Options, logger zerolog.Logger) *OpenAI {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	return &OpenAI{
		client: client,
		model:  opts.Model,
		retry:  retryPolicy{attempts: opts.Attempts, base: opts.RetryBase},
		log:    logger,
	}
}

// GenerateSlides запрашивает BatchSize слайдов по заголовкам. Ошибка возвращается только
// когда модель не ответила; некорректный ответ отражается в ParseResult.
func (g *OpenAI) GenerateSlides(ctx context.Context, titles []string) (domain.ParseResult[domain.Slide], error) {
	text, err := g.complete(ctx, StageSlides, slidesPrompt(titles))
	if err != nil {
		return domain.ParseResult[domain.Slide]{}, err
	}
	res := ParseSlides(text)
	if res.IsMalformed() {
		g.log.Warn().Str("reason", res.Reason).Int("parsed", len(res.Records)).Msg("generator: некорректный ответ со слайдами")
	}
	return res, nil
}

// GenerateQuiz запрашивает по одному вопросу на каждый слайд.
func (g *OpenAI) GenerateQuiz(ctx context.Context, slides []domain.Slide) (domain.ParseResult[domain.QuizQuestion], error) {
	prompt, err := quizPrompt(slides)
	if err != nil {
		return domain.ParseResult[domain.QuizQuestion]{}, err
	}
	text, err := g.complete(ctx, StageQuiz, prompt)
	if err != nil {
		return domain.ParseResult[domain.QuizQuestion]{}, err
	}
	res := ParseQuiz(text)
	if res.IsMalformed() {
		g.log.Warn().Str("reason", res.Reason).Int("parsed", len(res.Records)).Msg("generator: некорректный ответ с викториной")
	}
	return res, nil
}

func (g *OpenAI) complete(ctx context.Context, stage, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: prompt},
		},
	}
	var lastErr error
	attempt := 0
	for {
		attempt++
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if content := stripFence(resp.Content()); content != "" {
				g.log.Debug().Str("stage", stage).Int("attempt", attempt).Msg("generator: ответ получен")
				return content, nil
			}
			err = errEmptyCompletion
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", &domain.GenerationError{Stage: stage, Attempts: attempt, Err: errors.Join(domain.ErrNoContent, ctx.Err())}
		}
		delay, retry := g.retry.decide(attempt, err)
		g.log.Warn().Err(err).Str("stage", stage).Int("attempt", attempt).Bool("retry", retry).Dur("delay", delay).Msg("generator: ошибка запроса к модели")
		if !retry {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return "", &domain.GenerationError{Stage: stage, Attempts: attempt, Err: errors.Join(domain.ErrNoContent, err)}
		}
	}
	return "", &domain.GenerationError{Stage: stage, Attempts: attempt, Err: errors.Join(domain.ErrNoContent, fmt.Errorf("openai completion: %w", lastErr))}
}

// stripFence снимает обёртку ```json ... ``` с ответа модели.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "```"), "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
