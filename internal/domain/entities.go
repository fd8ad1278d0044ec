package domain

import "time"

// FeedSource описывает RSS/Atom ленту, из которой берутся заголовки.
type FeedSource struct {
	URL  string
	Name string
}

// Headline представляет новость из ленты.
type Headline struct {
	ID            int64
	Title         string
	Description   string
	Link          string
	Source        string
	PublishedDate *time.Time
	Timestamp     time.Time
	Hash          string
}

// Slide описывает короткую обучающую карточку по одному заголовку.
type Slide struct {
	ID         int64
	Title      string
	Content    string
	HeadlineID *int64
	CreatedAt  time.Time
	Headline   *Headline
}

// QuizQuestion описывает вопрос викторины, привязанный к слайду.
type QuizQuestion struct {
	ID          int64
	Question    string
	Options     []string
	Correct     int
	Explanation string
	SlideID     *int64
	CreatedAt   time.Time
}

// Valid проверяет, что индекс правильного ответа указывает на существующий вариант.
func (q QuizQuestion) Valid() bool {
	return len(q.Options) >= 2 && q.Correct >= 0 && q.Correct < len(q.Options)
}

// Score хранит результат прохождения викторины пользователем.
type Score struct {
	ID          int64
	UserID      int64
	QuizID      int64
	Value       int
	CompletedAt time.Time
}

// UserTotals агрегирует результаты пользователя.
type UserTotals struct {
	UserID         int64
	TotalScore     int
	PerfectQuizzes int
	QuizzesTaken   int
	LastQuiz       time.Time
}

// Identity содержит личность, подтверждённую провайдером аутентификации.
type Identity struct {
	UserID int64
	Email  string
}

// PostCandidate содержит данные для публикации в соцсети.
type PostCandidate struct {
	HeadlineTitle string
	Source        string
	Question      string
}

// PruneResult описывает результат очистки устаревших записей.
type PruneResult struct {
	QuizIDs     []int64
	SlideIDs    []int64
	HeadlineIDs []int64
}

// Total возвращает общее число удалённых строк.
func (p PruneResult) Total() int {
	return len(p.QuizIDs) + len(p.SlideIDs) + len(p.HeadlineIDs)
}
