package auth

import (
	"context"
	"net/http"
	"strings"

	"nestdrive/internal/domain"
)

// Заголовки, которыми шлюз аутентификации передаёт уже разрешённую
// личность пользователя.
const (
	HeaderUserID     = "X-User-Id"
	HeaderUserName   = "X-User-Name"
	HeaderUserGroups = "X-User-Groups"
)

type contextKey struct{}

var userKey contextKey

// UserFromRequest извлекает действующего пользователя из заголовков запроса.
func UserFromRequest(r *http.Request) (domain.UserInfo, bool) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return domain.UserInfo{}, false
	}
	user := domain.UserInfo{
		ID:   id,
		Name: r.Header.Get(HeaderUserName),
	}
	if groups := r.Header.Get(HeaderUserGroups); groups != "" {
		for _, g := range strings.Split(groups, ",") {
			g = strings.TrimSpace(g)
			if g != "" {
				user.GroupIDs = append(user.GroupIDs, g)
			}
		}
	}
	return user, true
}

// Middleware отклоняет запросы без личности пользователя и кладёт её
// в контекст запроса.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromRequest(r)
		if !ok {
			http.Error(w, "missing user identity", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext возвращает пользователя, положенного Middleware.
func UserFromContext(ctx context.Context) (domain.UserInfo, bool) {
	user, ok := ctx.Value(userKey).(domain.UserInfo)
	return user, ok
}
