package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	chi "github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/cache"
	"cyberaware/internal/usecase/quiz"
)

const testSecret = "trigger-secret"

type stubRepo struct {
	headlines []domain.Headline
	slides    []domain.Slide
	quiz      []domain.QuizQuestion
	latest    *time.Time
	err       error
	calls     int
}

func (s *stubRepo) SaveHeadlines(context.Context, []domain.Headline) ([]int64, error) {
	return nil, nil
}

func (s *stubRepo) ListRecentHeadlines(context.Context, int) ([]domain.Headline, error) {
	s.calls++
	return s.headlines, s.err
}

func (s *stubRepo) CountHeadlinesSince(context.Context, time.Time) (int, error) { return 0, nil }

func (s *stubRepo) LatestHeadlineTimestamp(context.Context) (*time.Time, error) {
	return s.latest, s.err
}

func (s *stubRepo) SaveSlides(context.Context, []domain.Slide) ([]int64, error) { return nil, nil }

func (s *stubRepo) SaveQuiz(context.Context, []domain.QuizQuestion) ([]int64, error) {
	return nil, nil
}

func (s *stubRepo) ListRecentSlides(context.Context, int) ([]domain.Slide, error) {
	return s.slides, s.err
}

func (s *stubRepo) ListRecentQuiz(context.Context, int) ([]domain.QuizQuestion, error) {
	return s.quiz, s.err
}

type stubSubmitter struct {
	identity *domain.Identity
	quizID   int64
	score    int
	res      quiz.Result
	err      error
}

func (s *stubSubmitter) Submit(_ context.Context, identity *domain.Identity, quizID int64, score int) (quiz.Result, error) {
	s.identity, s.quizID, s.score = identity, quizID, score
	return s.res, s.err
}

type stubQueue struct{ jobs []domain.RefreshJob }

func (q *stubQueue) Enqueue(_ context.Context, job domain.RefreshJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.RefreshJob, domain.AckFunc, error) {
	return domain.RefreshJob{}, nil, errors.New("not implemented")
}

type stubPublisher struct {
	calls int
	err   error
}

func (p *stubPublisher) PostHighlight(context.Context) (string, error) {
	p.calls++
	return "text", p.err
}

func newTestRouter(deps APIDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(IdentityMiddleware("identity-secret"))
	NewAPI(deps, time.Minute, testSecret, zerolog.Nop()).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHeadlinesDefaults(t *testing.T) {
	repo := &stubRepo{headlines: []domain.Headline{{Title: "Breach", Source: "Krebs"}}}
	rec := do(t, newTestRouter(APIDeps{Headlines: repo, Content: repo}), http.MethodGet, "/api/headlines", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "No description", got[0]["description"])
	assert.Equal(t, "#", got[0]["link"])
}

func TestSlidesNestedHeadline(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{slides: []domain.Slide{
		{Title: "S1", Content: "c1", Headline: &domain.Headline{Title: "H1", Link: "https://x", Source: "Wired", Timestamp: ts}},
		{Title: "S2", Content: "c2"},
	}}
	rec := do(t, newTestRouter(APIDeps{Headlines: repo, Content: repo}), http.MethodGet, "/api/slides", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Title    string         `json:"title"`
		Headline map[string]any `json:"headline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "H1", got[0].Headline["title"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got[0].Headline["timestamp"])
	assert.Nil(t, got[1].Headline)
	assert.Contains(t, rec.Body.String(), `"headline":null`)
}

func TestQuizListing(t *testing.T) {
	repo := &stubRepo{quiz: []domain.QuizQuestion{{ID: 9, Question: "Q?", Options: []string{"True", "False"}, Correct: 1, Explanation: "e"}}}
	rec := do(t, newTestRouter(APIDeps{Headlines: repo, Content: repo}), http.MethodGet, "/api/quiz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":9,"question":"Q?","options":["True","False"],"correct":1,"explanation":"e"}]`, rec.Body.String())
}

func TestLatestRefresh(t *testing.T) {
	ts := time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC)
	repo := &stubRepo{latest: &ts}
	rec := do(t, newTestRouter(APIDeps{Headlines: repo, Content: repo}), http.MethodGet, "/api/latest_refresh", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"latest_refresh":"Jan 15, 2024 02:30 PM EDT","timestamp":1705343400}`, rec.Body.String())

	empty := &stubRepo{}
	rec = do(t, newTestRouter(APIDeps{Headlines: empty, Content: empty}), http.MethodGet, "/api/latest_refresh", "", nil)
	assert.JSONEq(t, `{"latest_refresh":"No refresh data","timestamp":0}`, rec.Body.String())
}

func TestReadErrorIsGeneric(t *testing.T) {
	repo := &stubRepo{err: errors.New("pq: relation headlines does not exist")}
	rec := do(t, newTestRouter(APIDeps{Headlines: repo, Content: repo}), http.MethodGet, "/api/headlines", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestHeadlinesServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &stubRepo{headlines: []domain.Headline{{Title: "Cached", Source: "S"}}}
	router := newTestRouter(APIDeps{Headlines: repo, Content: repo, Cache: cache.NewRedis(client, "content:")})

	first := do(t, router, http.MethodGet, "/api/headlines", "", nil)
	second := do(t, router, http.MethodGet, "/api/headlines", "", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, repo.calls)
	assert.True(t, mr.Exists("content:"+domain.CacheKeyHeadlines))
}

func TestSubmitQuizWithIdentity(t *testing.T) {
	totals := domain.UserTotals{TotalScore: 100, PerfectQuizzes: 1, QuizzesTaken: 1}
	sub := &stubSubmitter{res: quiz.Result{Saved: true, Status: "Pass", Message: quiz.MsgSaved, Totals: &totals}}
	router := newTestRouter(APIDeps{Scores: sub})

	header := map[string]string{IdentityHeader: SignIdentity("identity-secret", domain.Identity{UserID: 7, Email: "u@example.com"})}
	rec := do(t, router, http.MethodPost, "/api/submit_quiz/42", `{"score":100}`, header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sub.identity)
	assert.Equal(t, int64(7), sub.identity.UserID)
	assert.Equal(t, int64(42), sub.quizID)
	assert.Equal(t, 100, sub.score)
	assert.Contains(t, rec.Body.String(), `"saved":true`)
	assert.Contains(t, rec.Body.String(), `"perfect_quizzes":1`)
}

func TestSubmitQuizAnonymous(t *testing.T) {
	sub := &stubSubmitter{res: quiz.Result{Status: "Pass", Message: quiz.MsgSignIn}}
	rec := do(t, newTestRouter(APIDeps{Scores: sub}), http.MethodPost, "/api/submit_quiz/1", `{"score":60}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sub.identity)
	assert.Contains(t, rec.Body.String(), `"saved":false`)
}

func TestSubmitQuizBadSignature(t *testing.T) {
	sub := &stubSubmitter{}
	header := map[string]string{IdentityHeader: "user_id=7&email=u@example.com&hash=deadbeef"}
	rec := do(t, newTestRouter(APIDeps{Scores: sub}), http.MethodPost, "/api/submit_quiz/1", `{"score":60}`, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitQuizInvalidScore(t *testing.T) {
	router := newTestRouter(APIDeps{Scores: &stubSubmitter{}})
	for _, body := range []string{`{"score":50.5}`, `{"score":"50"}`, `not json`} {
		rec := do(t, router, http.MethodPost, "/api/submit_quiz/1", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	sub := &stubSubmitter{err: &domain.IntegrityViolation{Field: "score", Msg: "Error: Invalid score provided.", Err: domain.ErrInvalidScore}}
	rec := do(t, newTestRouter(APIDeps{Scores: sub}), http.MethodPost, "/api/submit_quiz/1", `{"score":101}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid score","message":"Error: Invalid score provided."}`, rec.Body.String())
}

func TestSubmitQuizNotFound(t *testing.T) {
	rec := do(t, newTestRouter(APIDeps{Scores: &stubSubmitter{err: domain.ErrQuizNotFound}}), http.MethodPost, "/api/submit_quiz/5", `{"score":10}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerRefresh(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(APIDeps{Queue: queue})

	rec := do(t, router, http.MethodPost, "/api/refresh", `{"secret_key":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, queue.jobs)

	rec = do(t, router, http.MethodPost, "/api/refresh", `{"secret_key":"`+testSecret+`"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, domain.RefreshCauseManual, queue.jobs[0].Cause)
	assert.NotEmpty(t, queue.jobs[0].ID)
}

func TestPostHighlightTrigger(t *testing.T) {
	pub := &stubPublisher{}
	router := newTestRouter(APIDeps{Publisher: pub})

	rec := do(t, router, http.MethodPost, "/api/post_to_x", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, pub.calls)

	rec = do(t, router, http.MethodPost, "/api/post_to_x", `{"secret_key":"`+testSecret+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pub.calls)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	pub.err = domain.ErrNoPostCandidate
	rec = do(t, router, http.MethodPost, "/api/post_to_x", `{"secret_key":"`+testSecret+`"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

type stubPhish struct {
	html string
	err  error
}

func (p *stubPhish) GeneratePhish(context.Context) (string, error) { return p.html, p.err }

type stubCounter struct {
	count int64
	err   error
}

func (c *stubCounter) QuizCount(context.Context) (int64, error) { return c.count, c.err }

func (c *stubCounter) IncrementQuizCount(context.Context) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.count++
	return c.count, nil
}

func TestGeneratePhish(t *testing.T) {
	rec := do(t, newTestRouter(APIDeps{Phish: &stubPhish{html: "<p>Your parcel is on hold</p>"}}), http.MethodGet, "/api/phish/generate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "<p>Your parcel is on hold</p>", body["html"])

	rec = do(t, newTestRouter(APIDeps{Phish: &stubPhish{err: domain.ErrNoContent}}), http.MethodGet, "/api/phish/generate", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to generate simulation"}`, rec.Body.String())

	rec = do(t, newTestRouter(APIDeps{}), http.MethodGet, "/api/phish/generate", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQuizCounter(t *testing.T) {
	counter := &stubCounter{count: 7}
	router := newTestRouter(APIDeps{Counter: counter})

	rec := do(t, router, http.MethodGet, "/api/update_quiz_count", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":7}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/update_quiz_count", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":8}`, rec.Body.String())

	counter.err = errors.New("db down")
	rec = do(t, router, http.MethodPost, "/api/update_quiz_count", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database error"}`, rec.Body.String())
}
