package middleware

import (
	"strings"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/logger"
	"disaster_backend/pkg/apperrors"
	"disaster_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

// bearerToken достает токен из заголовка Authorization.
// allowQuery разрешает ?token= (только /ws: браузер не выставит заголовок на upgrade).
func bearerToken(c *gin.Context, allowQuery bool) (string, bool) {
	header := c.GetHeader("Authorization")
	if header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if allowQuery {
		if token := c.Query("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func authenticate(c *gin.Context, secret string, allowQuery bool) bool {
	token, ok := bearerToken(c, allowQuery)
	if !ok {
		apperrors.HandleError(c, apperrors.ErrMissingToken)
		return false
	}

	claims, err := auth.ParseToken(token, secret)
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrInvalidToken.WithError(err))
		return false
	}

	SetActor(c, claims.Actor())
	return true
}

// AuthMiddleware - обязательная проверка JWT из заголовка
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret, false) {
			return
		}
		c.Next()
	}
}

// WSAuthMiddleware - как AuthMiddleware, но принимает и ?token=
func WSAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret, true) {
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware пропускает анонимные запросы, но неверный токен - 401
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if !authenticate(c, secret, false) {
			return
		}
		c.Next()
	}
}

// RequireCapability - проверка права по таблице capabilities.
// Ставится после AuthMiddleware.
func RequireCapability(capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := GetActor(c).Require(capability); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Next()
	}
}

// SetActor кладет актора в gin и в контекст запроса (для логгера)
func SetActor(c *gin.Context, actor *auth.Actor) {
	c.Set(string(contextkeys.ActorContextKey), actor)
	ctx := logger.WithUserID(c.Request.Context(), actor.ID)
	c.Request = c.Request.WithContext(ctx)
}

// GetActor возвращает nil для анонимного запроса
func GetActor(c *gin.Context) *auth.Actor {
	val, exists := c.Get(string(contextkeys.ActorContextKey))
	if !exists {
		return nil
	}
	actor, ok := val.(*auth.Actor)
	if !ok {
		return nil
	}
	return actor
}
