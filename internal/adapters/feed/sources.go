package feed

import "cyberaware/internal/domain"

// DefaultSources — ленты новостей безопасности по умолчанию.
var DefaultSources = []domain.FeedSource{
	{URL: "https://feeds.feedburner.com/TheHackersNews", Name: "The Hacker News"},
	{URL: "https://krebsonsecurity.com/feed/", Name: "Krebs on Security"},
	{URL: "https://www.darkreading.com/rss.xml", Name: "Dark Reading"},
	{URL: "https://isc.sans.edu/rssfeed.xml", Name: "SANS Internet Storm Center"},
	{URL: "https://www.bleepingcomputer.com/feed/", Name: "BleepingComputer"},
}

// DefaultKeywords — темы, по которым отбираются заголовки.
var DefaultKeywords = []string{
	"ransomware",
	"phishing",
	"malware",
	"social engineering",
	"credential stuffing",
	"data breach",
	"exploit",
	"cybercrime",
}
