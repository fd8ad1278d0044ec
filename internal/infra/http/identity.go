package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"cyberaware/internal/domain"
)

// IdentityHeader содержит подписанный токен личности от провайдера аутентификации.
const IdentityHeader = "X-Identity"

var errBadIdentity = errors.New("identity: подпись недействительна")

type identityKey struct{}

// IdentityMiddleware проверяет X-Identity и кладёт domain.Identity в контекст.
// Запрос без заголовка проходит как анонимный, с неверной подписью получает 401.
func IdentityMiddleware(secret string) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(IdentityHeader)
			if raw == "" || secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := parseIdentity(raw, key[:])
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, &id)))
		})
	}
}

// IdentityFromContext возвращает личность или nil для анонимного запроса.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return id
}

// SignIdentity формирует значение X-Identity. Используется провайдером и в тестах.
func SignIdentity(secret string, id domain.Identity) string {
	key := sha256.Sum256([]byte(secret))
	values := url.Values{}
	values.Set("user_id", strconv.FormatInt(id.UserID, 10))
	values.Set("email", id.Email)
	values.Set("hash", hex.EncodeToString(identityMAC(values, key[:])))
	return values.Encode()
}

func parseIdentity(raw string, key []byte) (domain.Identity, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return domain.Identity{}, errBadIdentity
	}
	expected, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(expected) == 0 {
		return domain.Identity{}, errBadIdentity
	}
	if !hmac.Equal(identityMAC(values, key), expected) {
		return domain.Identity{}, errBadIdentity
	}
	userID, err := strconv.ParseInt(values.Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return domain.Identity{}, errBadIdentity
	}
	return domain.Identity{UserID: userID, Email: values.Get("email")}, nil
}

// identityMAC считает подпись по отсортированным парам key=value без hash.
func identityMAC(values url.Values, key []byte) []byte {
	parts := make([]string, 0, len(values))
	for k, vs := range values {
		if k == "hash" {
			continue
		}
		for _, v := range vs {
			parts = append(parts, k+"="+v)
		}
	}
	sort.Strings(parts)
	h := hmac.New(sha256.New, key)
	h.Write([]byte(strings.Join(parts, "\n")))
	return h.Sum(nil)
}

// secretMatches сравнивает секрет ручного запуска за постоянное время.
func secretMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
