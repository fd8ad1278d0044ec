package domain

// Ключи кэша ответов API чтения. Сбрасываются после каждого успешного обновления.
const (
	CacheKeyHeadlines     = "headlines"
	CacheKeySlides        = "slides"
	CacheKeyQuiz          = "quiz"
	CacheKeyLatestRefresh = "latest_refresh"
)

// ContentCacheKeys перечисляет все ключи, зависящие от результата обновления.
var ContentCacheKeys = []string{CacheKeyHeadlines, CacheKeySlides, CacheKeyQuiz, CacheKeyLatestRefresh}
