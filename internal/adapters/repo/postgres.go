package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// pgxConn покрывает общее подмножество pgxpool.Pool и pgxmock.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	db  pgxConn
	now func() time.Time
}

var (
	_ domain.HeadlineRepo       = (*Postgres)(nil)
	_ domain.ContentRepo        = (*Postgres)(nil)
	_ domain.RetentionRepo      = (*Postgres)(nil)
	_ domain.ScoreRepo          = (*Postgres)(nil)
	_ domain.HighlightRepo      = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(db pgxConn) *Postgres {
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// persistErr превращает ошибку БД в доменную: нарушение уникальности видно
// пользователю, остальное считается сбоем записи.
func persistErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &domain.IntegrityViolation{Field: pgErr.ConstraintName, Msg: "duplicate value", Err: err}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func (p *Postgres) begin(ctx context.Context, op, target string) (pgx.Tx, error) {
	start := time.Now()
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", target, start, err)
	if err != nil {
		return nil, persistErr(op, err)
	}
	return tx, nil
}

func commit(ctx context.Context, tx pgx.Tx, op, target string) error {
	start := time.Now()
	err := tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", target, start, err)
	if err != nil {
		return persistErr(op, err)
	}
	return nil
}

// SaveHeadlines реализует domain.HeadlineRepo. Заголовок с известным хешем
// не вставляется, вместо него возвращается id существующей строки.
func (p *Postgres) SaveHeadlines(ctx context.Context, headlines []domain.Headline) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "save_headlines", "headlines")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := p.now()
	ids := make([]int64, 0, len(headlines))
	for _, h := range headlines {
		if h.Hash == "" {
			h = h.WithHash()
		}
		if h.Timestamp.IsZero() {
			h.Timestamp = now
		}
		start := time.Now()
		var id int64
		err := tx.QueryRow(ctx, `
INSERT INTO headlines (title, description, link, timestamp, source, published_date, hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (hash) DO NOTHING
RETURNING id
`, h.Title, h.Description, h.Link, h.Timestamp, h.Source, h.PublishedDate, h.Hash).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `SELECT id FROM headlines WHERE hash = $1`, h.Hash).Scan(&id)
		}
		metrics.ObserveNetworkRequest("postgres", "headline_upsert", "headlines", start, err)
		if err != nil {
			return nil, persistErr("save_headlines", err)
		}
		ids = append(ids, id)
	}
	if err := commit(ctx, tx, "save_headlines", "headlines"); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListRecentHeadlines возвращает самые свежие заголовки.
func (p *Postgres) ListRecentHeadlines(ctx context.Context, limit int) ([]domain.Headline, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.db.Query(ctx, `
SELECT id, title, description, link, source, published_date, timestamp, hash
FROM headlines
ORDER BY timestamp DESC
LIMIT $1
`, limit)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "headlines_recent", "headlines", start, err)
		return nil, fmt.Errorf("list headlines: %w", err)
	}
	defer rows.Close()

	var out []domain.Headline
	for rows.Next() {
		var (
			h                                      domain.Headline
			title, description, link, source, hash sql.NullString
			published, ts                          sql.NullTime
		)
		if err := rows.Scan(&h.ID, &title, &description, &link, &source, &published, &ts, &hash); err != nil {
			metrics.ObserveNetworkRequest("postgres", "headlines_recent", "headlines", start, err)
			return nil, fmt.Errorf("scan headline: %w", err)
		}
		h.Title, h.Description, h.Link, h.Source, h.Hash = title.String, description.String, link.String, source.String, hash.String
		h.PublishedDate = nullTimePtr(published)
		h.Timestamp = ts.Time
		out = append(out, h)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "headlines_recent", "headlines", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate headlines: %w", err)
	}
	return out, nil
}

// CountHeadlinesSince считает заголовки, сохранённые после since.
func (p *Postgres) CountHeadlinesSince(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var count int
	err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM headlines WHERE timestamp > $1`, since).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "headlines_count", "headlines", start, err)
	if err != nil {
		return 0, fmt.Errorf("count headlines: %w", err)
	}
	return count, nil
}

// LatestHeadlineTimestamp возвращает время последнего заголовка или nil, если таблица пуста.
func (p *Postgres) LatestHeadlineTimestamp(ctx context.Context) (*time.Time, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var latest sql.NullTime
	err := p.db.QueryRow(ctx, `SELECT MAX(timestamp) FROM headlines`).Scan(&latest)
	metrics.ObserveNetworkRequest("postgres", "headlines_latest", "headlines", start, err)
	if err != nil {
		return nil, fmt.Errorf("latest headline: %w", err)
	}
	return nullTimePtr(latest), nil
}

// SaveSlides вставляет слайды одной транзакцией и возвращает их id по порядку.
func (p *Postgres) SaveSlides(ctx context.Context, slides []domain.Slide) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "save_slides", "slides")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := p.now()
	ids := make([]int64, 0, len(slides))
	for _, s := range slides {
		createdAt := s.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		start := time.Now()
		var id int64
		err := tx.QueryRow(ctx, `
INSERT INTO slides (title, content, headline_id, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, s.Title, s.Content, s.HeadlineID, createdAt).Scan(&id)
		metrics.ObserveNetworkRequest("postgres", "slide_insert", "slides", start, err)
		if err != nil {
			return nil, persistErr("save_slides", err)
		}
		ids = append(ids, id)
	}
	if err := commit(ctx, tx, "save_slides", "slides"); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveQuiz вставляет вопросы одной транзакцией. Варианты хранятся JSON-текстом.
func (p *Postgres) SaveQuiz(ctx context.Context, quiz []domain.QuizQuestion) ([]int64, error) {
	for i, q := range quiz {
		if !q.Valid() {
			return nil, &domain.IntegrityViolation{Field: "correct", Msg: fmt.Sprintf("вопрос %d: индекс ответа вне диапазона", i)}
		}
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "save_quiz", "quiz")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := p.now()
	ids := make([]int64, 0, len(quiz))
	for _, q := range quiz {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		createdAt := q.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		start := time.Now()
		var id int64
		err = tx.QueryRow(ctx, `
INSERT INTO quiz (question, options, correct, explanation, created_at, slide_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, q.Question, string(options), q.Correct, q.Explanation, createdAt, q.SlideID).Scan(&id)
		metrics.ObserveNetworkRequest("postgres", "quiz_insert", "quiz", start, err)
		if err != nil {
			return nil, persistErr("save_quiz", err)
		}
		ids = append(ids, id)
	}
	if err := commit(ctx, tx, "save_quiz", "quiz"); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListRecentSlides возвращает свежие слайды вместе с заголовком, если он ещё существует.
func (p *Postgres) ListRecentSlides(ctx context.Context, limit int) ([]domain.Slide, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.db.Query(ctx, `
SELECT s.id, s.title, s.content, s.headline_id, s.created_at,
       h.id, h.title, h.description, h.link, h.source, h.published_date, h.timestamp
FROM slides s
LEFT JOIN headlines h ON h.id = s.headline_id
ORDER BY s.created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "slides_recent", "slides", start, err)
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer rows.Close()

	var out []domain.Slide
	for rows.Next() {
		var (
			s                       domain.Slide
			title, content          sql.NullString
			headlineRef, headlineID sql.NullInt64
			createdAt               sql.NullTime
			hTitle, hDesc, hLink    sql.NullString
			hSource                 sql.NullString
			hPublished, hTimestamp  sql.NullTime
		)
		if err := rows.Scan(&s.ID, &title, &content, &headlineRef, &createdAt,
			&headlineID, &hTitle, &hDesc, &hLink, &hSource, &hPublished, &hTimestamp); err != nil {
			metrics.ObserveNetworkRequest("postgres", "slides_recent", "slides", start, err)
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		s.Title, s.Content, s.CreatedAt = title.String, content.String, createdAt.Time
		if headlineRef.Valid {
			ref := headlineRef.Int64
			s.HeadlineID = &ref
		}
		if headlineID.Valid {
			s.Headline = &domain.Headline{
				ID:            headlineID.Int64,
				Title:         hTitle.String,
				Description:   hDesc.String,
				Link:          hLink.String,
				Source:        hSource.String,
				PublishedDate: nullTimePtr(hPublished),
				Timestamp:     hTimestamp.Time,
			}
		}
		out = append(out, s)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "slides_recent", "slides", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate slides: %w", err)
	}
	return out, nil
}

// ListRecentQuiz возвращает свежие вопросы викторины.
func (p *Postgres) ListRecentQuiz(ctx context.Context, limit int) ([]domain.QuizQuestion, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.db.Query(ctx, `
SELECT id, question, options, correct, explanation, slide_id, created_at
FROM quiz
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "quiz_recent", "quiz", start, err)
		return nil, fmt.Errorf("list quiz: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizQuestion
	for rows.Next() {
		var (
			q                              domain.QuizQuestion
			question, options, explanation sql.NullString
			correct, slideID               sql.NullInt64
			createdAt                      sql.NullTime
		)
		if err := rows.Scan(&q.ID, &question, &options, &correct, &explanation, &slideID, &createdAt); err != nil {
			metrics.ObserveNetworkRequest("postgres", "quiz_recent", "quiz", start, err)
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
				return nil, fmt.Errorf("decode options of quiz %d: %w", q.ID, err)
			}
		}
		q.Question, q.Explanation, q.Correct, q.CreatedAt = question.String, explanation.String, int(correct.Int64), createdAt.Time
		if slideID.Valid {
			id := slideID.Int64
			q.SlideID = &id
		}
		out = append(out, q)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "quiz_recent", "quiz", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate quiz: %w", err)
	}
	return out, nil
}

// PickPostCandidate выбирает случайный вопрос последней партии (кроме true/false)
// вместе с заголовком его слайда.
func (p *Postgres) PickPostCandidate(ctx context.Context) (domain.PostCandidate, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var (
		c             domain.PostCandidate
		title, source sql.NullString
	)
	err := p.db.QueryRow(ctx, `
SELECT h.title, h.source, q.question
FROM headlines h
JOIN slides s ON s.headline_id = h.id
JOIN quiz q ON q.slide_id = s.id
WHERE q.created_at = (SELECT MAX(created_at) FROM quiz)
  AND q.question NOT LIKE 'True or False:%'
ORDER BY RANDOM()
LIMIT 1
`).Scan(&title, &source, &c.Question)
	metrics.ObserveNetworkRequest("postgres", "post_candidate", "quiz", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PostCandidate{}, domain.ErrNoPostCandidate
	}
	if err != nil {
		return domain.PostCandidate{}, fmt.Errorf("pick post candidate: %w", err)
	}
	c.HeadlineTitle, c.Source = title.String, source.String
	return c, nil
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = p.now()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.db.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4)
`, metric.Event, userID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
