package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/authz"
	"estatecrm/internal/utils"
)

// ActorKey is the gin context key holding the authenticated authz.Actor.
const ActorKey = "actor"

// TokenParser validates an access token. services.AuthService satisfies it.
type TokenParser interface {
	ParseAccessToken(token string) (*utils.Claims, error)
}

// список публичных эндпоинтов, которые не требуют токена
func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/metrics",
		"/api/auth/login",
		"/api/auth/refresh",
		"/api/auth/password/reset",
		"/api/auth/password/reset/confirm":
		return true
	}
	return strings.HasPrefix(path, "/swagger")
}

func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1) пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		// 2) пропускаем публичные пути
		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		// 3) читаем Authorization
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		// 4) парсим и валидируем токен (HMAC only, leeway inside)
		claims, err := tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 5) прокидываем actor в контекст
		c.Set(ActorKey, authz.Actor{UserID: claims.UserID, Role: claims.Role, IsSuperuser: claims.IsSuperuser})
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// ActorFrom returns the actor set by AuthMiddleware.
func ActorFrom(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return authz.Actor{}, false
	}
	a, ok := v.(authz.Actor)
	return a, ok
}
