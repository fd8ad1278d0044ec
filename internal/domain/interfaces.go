package domain

import (
	"context"
	"time"
)

// FeedFetcher получает и фильтрует заголовки из лент.
type FeedFetcher interface {
	FetchHeadlines(ctx context.Context, sources []FeedSource) ([]Headline, error)
}

// ContentGenerator превращает заголовки в слайды и вопросы викторины.
type ContentGenerator interface {
	GenerateSlides(ctx context.Context, titles []string) (ParseResult[Slide], error)
	GenerateQuiz(ctx context.Context, slides []Slide) (ParseResult[QuizQuestion], error)
}

// HeadlineRepo управляет заголовками.
type HeadlineRepo interface {
	// SaveHeadlines сохраняет заголовки одной транзакцией и возвращает их id в том же
	// порядке. Заголовок с уже известным хешем не вставляется повторно.
	SaveHeadlines(ctx context.Context, headlines []Headline) ([]int64, error)
	ListRecentHeadlines(ctx context.Context, limit int) ([]Headline, error)
	CountHeadlinesSince(ctx context.Context, since time.Time) (int, error)
	LatestHeadlineTimestamp(ctx context.Context) (*time.Time, error)
}

// ContentRepo управляет слайдами и викториной.
type ContentRepo interface {
	SaveSlides(ctx context.Context, slides []Slide) ([]int64, error)
	SaveQuiz(ctx context.Context, quiz []QuizQuestion) ([]int64, error)
	ListRecentSlides(ctx context.Context, limit int) ([]Slide, error)
	ListRecentQuiz(ctx context.Context, limit int) ([]QuizQuestion, error)
}

// RetentionRepo удаляет устаревшие записи.
type RetentionRepo interface {
	// Prune удаляет записи старше olderThan, кроме keep самых свежих и тех,
	// на которые ещё есть ссылки.
	Prune(ctx context.Context, olderThan time.Time, keep int) (PruneResult, error)
}

// ScoreRepo сохраняет результаты викторины.
type ScoreRepo interface {
	SubmitScore(ctx context.Context, score Score, perfect []int) (UserTotals, error)
}

// HighlightRepo выбирает данные для публикации.
type HighlightRepo interface {
	PickPostCandidate(ctx context.Context) (PostCandidate, error)
}

// SocialPoster публикует текст в соцсети.
type SocialPoster interface {
	Publish(ctx context.Context, text string) error
}

// RefreshLock защищает цикл обновления от параллельного запуска в разных процессах.
type RefreshLock interface {
	// TryLock возвращает false без ошибки, если блокировка уже занята.
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// ContentCache кэширует ответы API чтения.
type ContentCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
