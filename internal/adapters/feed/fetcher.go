package feed

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second
	defaultTimeout    = 15 * time.Second
	entriesPerFeed    = 10
	// SelectionSize задаёт число заголовков, отбираемых за цикл.
	SelectionSize = 5
)

var errEmptyFeed = errors.New("лента без записей")

// Options настраивает Fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RetryDelay time.Duration
	Attempts   int
	Keywords   []string
	Rand       *rand.Rand
	Now        func() time.Time
}

// Fetcher загружает RSS/Atom ленты и отбирает заголовки по ключевым словам.
type Fetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	policy     *bluemonday.Policy
	userAgent  string
	retryDelay time.Duration
	attempts   int
	keywords   []string
	now        func() time.Time
	log        zerolog.Logger

	randMu sync.Mutex
	rnd    *rand.Rand
}

var _ domain.FeedFetcher = (*Fetcher)(nil)

// NewFetcher создаёт загрузчик лент.
func NewFetcher(opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = DefaultKeywords
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		parser:     gofeed.NewParser(),
		policy:     bluemonday.StrictPolicy(),
		userAgent:  opts.UserAgent,
		retryDelay: opts.RetryDelay,
		attempts:   opts.Attempts,
		keywords:   opts.Keywords,
		now:        opts.Now,
		log:        logger,
		rnd:        opts.Rand,
	}
}

// FetchHeadlines опрашивает все ленты параллельно и возвращает до пяти уникальных
// заголовков. Ошибка одной ленты не прерывает остальные.
func (f *Fetcher) FetchHeadlines(ctx context.Context, sources []domain.FeedSource) ([]domain.Headline, error) {
	perSource := make([][]domain.Headline, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			items, err := f.fetchWithRetry(gctx, src)
			if err != nil {
				metrics.FeedErrors.WithLabelValues(src.Name).Inc()
				f.log.Error().Err(err).Str("source", src.Name).Msg("feed: лента пропущена")
				return nil
			}
			perSource[i] = items
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []domain.Headline
	for _, items := range perSource {
		for _, h := range items {
			if MatchesKeywords(h, f.keywords) {
				candidates = append(candidates, h)
			}
		}
	}

	f.randMu.Lock()
	selected := Select(candidates, SelectionSize, f.rnd)
	f.randMu.Unlock()
	if len(selected) < SelectionSize {
		f.log.Warn().Int("selected", len(selected)).Int("candidates", len(candidates)).Msg("feed: найдено меньше заголовков, чем нужно")
	}
	return selected, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, src domain.FeedSource) ([]domain.Headline, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		items, err := f.fetchOnce(ctx, src)
		if err == nil {
			f.log.Debug().Str("source", src.Name).Int("entries", len(items)).Msg("feed: лента получена")
			return items, nil
		}
		lastErr = err
		f.log.Warn().Err(err).Str("source", src.Name).Int("attempt", attempt).Int("max", f.attempts).Msg("feed: ошибка получения ленты")
		if attempt == f.attempts {
			break
		}
		if err := sleepCtx(ctx, f.retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, &domain.FetchError{Source: src.Name, Attempts: f.attempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, src domain.FeedSource) ([]domain.Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("feed", "get", src.Name, start, err)
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("feed", "get", src.Name, start, err)
		return nil, err
	}
	parsed, err := f.parser.Parse(resp.Body)
	metrics.ObserveNetworkRequest("feed", "get", src.Name, start, err)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, errEmptyFeed
	}
	return f.toHeadlines(src, parsed.Items), nil
}

func (f *Fetcher) toHeadlines(src domain.FeedSource, items []*gofeed.Item) []domain.Headline {
	// Записи без даты идут после датированных.
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedParsed, items[j].PublishedParsed
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	if len(items) > entriesPerFeed {
		items = items[:entriesPerFeed]
	}
	now := f.now().UTC()
	out := make([]domain.Headline, 0, len(items))
	for _, item := range items {
		raw := item.Description
		if raw == "" {
			raw = item.Content
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = "#"
		}
		h := domain.Headline{
			Title:       strings.TrimSpace(item.Title),
			Description: ExtractDescription(f.stripMarkup(raw)),
			Link:        link,
			Source:      src.Name,
			Timestamp:   now,
		}
		if item.PublishedParsed != nil {
			published := item.PublishedParsed.UTC()
			h.PublishedDate = &published
		}
		out = append(out, h)
	}
	return out
}

func (f *Fetcher) stripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(f.policy.Sanitize(s)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
