package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	"cyberaware/internal/usecase/quiz"
)

// BatchSize задаёт число записей в ответах API чтения.
const BatchSize = 5

// Время обновления показывается в фиксированном поясе UTC-4.
var refreshZone = time.FixedZone("EDT", -4*60*60)

const refreshLayout = "Jan 02, 2006 03:04 PM MST"

// ScoreSubmitter принимает результаты викторины.
type ScoreSubmitter interface {
	Submit(ctx context.Context, identity *domain.Identity, quizID int64, score int) (quiz.Result, error)
}

// HighlightPublisher публикует вопрос дня.
type HighlightPublisher interface {
	PostHighlight(ctx context.Context) (string, error)
}

// PhishGenerator строит учебную фишинговую рассылку.
type PhishGenerator interface {
	GeneratePhish(ctx context.Context) (string, error)
}

// QuizCounter ведёт глобальный счётчик пройденных викторин.
type QuizCounter interface {
	QuizCount(ctx context.Context) (int64, error)
	IncrementQuizCount(ctx context.Context) (int64, error)
}

// APIDeps содержит зависимости API. Queue, Publisher, Phish, Counter и Cache могут быть nil.
type APIDeps struct {
	Headlines domain.HeadlineRepo
	Content   domain.ContentRepo
	Scores    ScoreSubmitter
	Queue     domain.RefreshQueue
	Publisher HighlightPublisher
	Phish     PhishGenerator
	Counter   QuizCounter
	Cache     domain.ContentCache
}

// API обслуживает чтение контента, отправку результатов и ручные запуски.
type API struct {
	deps         APIDeps
	cacheTTL     time.Duration
	manualSecret string
	log          zerolog.Logger
	now          func() time.Time
}

// NewAPI создаёт обработчики.
func NewAPI(deps APIDeps, cacheTTL time.Duration, manualSecret string, logger zerolog.Logger) *API {
	return &API{deps: deps, cacheTTL: cacheTTL, manualSecret: manualSecret, log: logger, now: time.Now}
}

// Routes регистрирует маршруты. Идентификация пользователя подключается снаружи.
func (a *API) Routes(r chi.Router) {
	r.Get("/api/headlines", a.headlines)
	r.Get("/api/slides", a.slides)
	r.Get("/api/quiz", a.quizList)
	r.Get("/api/latest_refresh", a.latestRefresh)
	r.Post("/api/submit_quiz/{quiz_id}", a.submitQuiz)
	r.Post("/api/refresh", a.triggerRefresh)
	r.Post("/api/post_to_x", a.postHighlight)
	r.Get("/api/phish/generate", a.generatePhish)
	r.Get("/api/update_quiz_count", a.quizCount)
	r.Post("/api/update_quiz_count", a.incrementQuizCount)
}

type headlineJSON struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Link          string  `json:"link"`
	Source        string  `json:"source"`
	PublishedDate *string `json:"published_date,omitempty"`
	Timestamp     *string `json:"timestamp,omitempty"`
}

type slideJSON struct {
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Headline *headlineJSON `json:"headline"`
}

type quizJSON struct {
	ID          int64    `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation"`
}

type latestRefreshJSON struct {
	LatestRefresh string `json:"latest_refresh"`
	Timestamp     int64  `json:"timestamp"`
}

func toHeadlineJSON(h domain.Headline, withTimes bool) headlineJSON {
	out := headlineJSON{Title: h.Title, Description: h.Description, Link: h.Link, Source: h.Source}
	if out.Description == "" {
		out.Description = "No description"
	}
	if out.Link == "" {
		out.Link = "#"
	}
	if withTimes {
		if h.PublishedDate != nil {
			s := h.PublishedDate.UTC().Format(time.RFC3339)
			out.PublishedDate = &s
		}
		if !h.Timestamp.IsZero() {
			s := h.Timestamp.UTC().Format(time.RFC3339)
			out.Timestamp = &s
		}
	}
	return out
}

func (a *API) headlines(w http.ResponseWriter, r *http.Request) {
	a.serveCached(w, r, domain.CacheKeyHeadlines, func(ctx context.Context) (any, error) {
		rows, err := a.deps.Headlines.ListRecentHeadlines(ctx, BatchSize)
		if err != nil {
			return nil, err
		}
		out := make([]headlineJSON, 0, len(rows))
		for _, h := range rows {
			out = append(out, toHeadlineJSON(h, false))
		}
		return out, nil
	})
}

func (a *API) slides(w http.ResponseWriter, r *http.Request) {
	a.serveCached(w, r, domain.CacheKeySlides, func(ctx context.Context) (any, error) {
		rows, err := a.deps.Content.ListRecentSlides(ctx, BatchSize)
		if err != nil {
			return nil, err
		}
		out := make([]slideJSON, 0, len(rows))
		for _, s := range rows {
			item := slideJSON{Title: s.Title, Content: s.Content}
			if s.Headline != nil && s.Headline.Title != "" {
				h := toHeadlineJSON(*s.Headline, true)
				item.Headline = &h
			}
			out = append(out, item)
		}
		return out, nil
	})
}

func (a *API) quizList(w http.ResponseWriter, r *http.Request) {
	a.serveCached(w, r, domain.CacheKeyQuiz, func(ctx context.Context) (any, error) {
		rows, err := a.deps.Content.ListRecentQuiz(ctx, BatchSize)
		if err != nil {
			return nil, err
		}
		out := make([]quizJSON, 0, len(rows))
		for _, q := range rows {
			options := q.Options
			if options == nil {
				options = []string{}
			}
			out = append(out, quizJSON{ID: q.ID, Question: q.Question, Options: options, Correct: q.Correct, Explanation: q.Explanation})
		}
		return out, nil
	})
}

func (a *API) latestRefresh(w http.ResponseWriter, r *http.Request) {
	a.serveCached(w, r, domain.CacheKeyLatestRefresh, func(ctx context.Context) (any, error) {
		ts, err := a.deps.Headlines.LatestHeadlineTimestamp(ctx)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			a.log.Warn().Msg("api: заголовков нет, время обновления неизвестно")
			return latestRefreshJSON{LatestRefresh: "No refresh data"}, nil
		}
		return latestRefreshJSON{
			LatestRefresh: ts.In(refreshZone).Format(refreshLayout),
			Timestamp:     ts.Unix(),
		}, nil
	})
}

// serveCached отдаёт ответ из кэша или строит его через load и кладёт в кэш.
// Ошибки кэша не мешают ответу.
func (a *API) serveCached(w http.ResponseWriter, r *http.Request, key string, load func(context.Context) (any, error)) {
	ctx := r.Context()
	if a.deps.Cache != nil {
		if body, err := a.deps.Cache.Get(ctx, key); err == nil {
			writeRawJSON(w, http.StatusOK, body)
			return
		}
	}
	value, err := load(ctx)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("api: ошибка чтения")
		WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}
	body, err := json.Marshal(value)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("api: ошибка сериализации")
		WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if a.deps.Cache != nil && a.cacheTTL > 0 {
		if err := a.deps.Cache.Set(ctx, key, body, a.cacheTTL); err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("api: не удалось записать кэш")
		}
	}
	writeRawJSON(w, http.StatusOK, body)
}

type submitRequest struct {
	Score json.RawMessage `json:"score"`
}

type submitResponse struct {
	Success bool               `json:"success"`
	Saved   bool               `json:"saved"`
	Message string             `json:"message"`
	Status  string             `json:"status"`
	Totals  *userTotalsPayload `json:"totals,omitempty"`
}

type userTotalsPayload struct {
	TotalScore     int `json:"total_score"`
	PerfectQuizzes int `json:"perfect_quizzes"`
	QuizzesTaken   int `json:"quizzes_taken"`
}

func (a *API) submitQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "quiz_id"), 10, 64)
	if err != nil || quizID <= 0 {
		WriteError(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidScore(w, "Error: Invalid score provided.")
		return
	}
	score := 0
	if len(req.Score) > 0 {
		if err := json.Unmarshal(req.Score, &score); err != nil {
			writeInvalidScore(w, "Error: Invalid score provided.")
			return
		}
	}

	res, err := a.deps.Scores.Submit(r.Context(), IdentityFromContext(r.Context()), quizID, score)
	var iv *domain.IntegrityViolation
	switch {
	case errors.As(err, &iv):
		writeInvalidScore(w, iv.Msg)
		return
	case errors.Is(err, domain.ErrQuizNotFound):
		WriteError(w, http.StatusNotFound, "Quiz not found")
		return
	case err != nil:
		a.log.Error().Err(err).Int64("quiz_id", quizID).Str("request_id", RequestID(r)).Msg("api: ошибка сохранения результата")
		WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := submitResponse{Success: true, Saved: res.Saved, Message: res.Message, Status: res.Status}
	if res.Totals != nil {
		resp.Totals = &userTotalsPayload{
			TotalScore:     res.Totals.TotalScore,
			PerfectQuizzes: res.Totals.PerfectQuizzes,
			QuizzesTaken:   res.Totals.QuizzesTaken,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type triggerRequest struct {
	SecretKey string `json:"secret_key"`
}

// authorizeTrigger проверяет secret_key в теле запроса.
func (a *API) authorizeTrigger(w http.ResponseWriter, r *http.Request) bool {
	var req triggerRequest
	_ = json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req)
	if !secretMatches(a.manualSecret, req.SecretKey) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

func (a *API) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeTrigger(w, r) {
		return
	}
	if a.deps.Queue == nil {
		WriteError(w, http.StatusServiceUnavailable, "Refresh queue is not configured")
		return
	}
	job := domain.RefreshJob{ID: uuid.NewString(), RequestedAt: a.now().UTC(), Cause: domain.RefreshCauseManual}
	if err := a.deps.Queue.Enqueue(r.Context(), job); err != nil {
		a.log.Error().Err(err).Msg("api: не удалось поставить обновление в очередь")
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue refresh")
		return
	}
	a.log.Info().Str("job_id", job.ID).Msg("api: ручное обновление поставлено в очередь")
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": job.ID, "message": "Refresh queued"})
}

func (a *API) postHighlight(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeTrigger(w, r) {
		return
	}
	if a.deps.Publisher == nil {
		WriteError(w, http.StatusServiceUnavailable, "Social posting is not configured")
		return
	}
	_, err := a.deps.Publisher.PostHighlight(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoPostCandidate):
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "No quiz available to post"})
	case err != nil:
		a.log.Error().Err(err).Msg("api: ручная публикация не удалась")
		WriteError(w, http.StatusInternalServerError, "Failed to post")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "X post triggered manually"})
	}
}

func (a *API) generatePhish(w http.ResponseWriter, r *http.Request) {
	if a.deps.Phish == nil {
		WriteError(w, http.StatusServiceUnavailable, "Phishing simulation is not configured")
		return
	}
	html, err := a.deps.Phish.GeneratePhish(r.Context())
	if err != nil {
		a.log.Error().Err(err).Str("request_id", RequestID(r)).Msg("api: не удалось сгенерировать фишинговую рассылку")
		WriteError(w, http.StatusInternalServerError, "Failed to generate simulation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

type quizCountJSON struct {
	Count int64 `json:"count"`
}

func (a *API) quizCount(w http.ResponseWriter, r *http.Request) {
	if a.deps.Counter == nil {
		WriteError(w, http.StatusServiceUnavailable, "Quiz counter is not configured")
		return
	}
	count, err := a.deps.Counter.QuizCount(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("api: ошибка чтения счётчика викторин")
		WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, quizCountJSON{Count: count})
}

func (a *API) incrementQuizCount(w http.ResponseWriter, r *http.Request) {
	if a.deps.Counter == nil {
		WriteError(w, http.StatusServiceUnavailable, "Quiz counter is not configured")
		return
	}
	count, err := a.deps.Counter.IncrementQuizCount(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("api: не удалось увеличить счётчик викторин")
		WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}
	a.log.Info().Int64("count", count).Msg("api: счётчик викторин увеличен")
	writeJSON(w, http.StatusOK, quizCountJSON{Count: count})
}

func writeInvalidScore(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid score", "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
