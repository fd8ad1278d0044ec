package social

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// LoadLocation принимает имя пояса в свободной форме: "us/eastern", "America/New York".
func LoadLocation(raw string) (*time.Location, error) {
	name, err := normalizeTimezone(raw)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(name)
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	// "us/eastern" -> "US/Eastern"
	if len(parts) > 1 && len(parts[0]) <= 2 {
		parts[0] = strings.ToUpper(parts[0])
		if prefixed := strings.Join(parts, "/"); prefixed != normalized {
			if _, err := time.LoadLocation(prefixed); err == nil {
				return prefixed, nil
			}
		}
	}
	if upper := strings.ToUpper(candidate); upper != candidate {
		if _, err := time.LoadLocation(upper); err == nil {
			return upper, nil
		}
	}
	return "", ErrInvalidTimezone
}

// ParseClock разбирает время дня в формате "15:04".
func ParseClock(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("время публикации %q: %w", raw, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun возвращает ближайший момент hour:minute в поясе loc строго после now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
