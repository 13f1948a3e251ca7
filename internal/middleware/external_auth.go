package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"deal_room/internal/config"
	"deal_room/internal/domain"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

// IdentityMiddleware валидирует JWT токены внешнего сервиса идентификации.
// Членство в конкретной комнате проверяет уже сервис.
type IdentityMiddleware struct {
	jwtSecret []byte
	issuer    string
	log       logger.Logger
}

// IdentityClaims: claims, которые выпускает сервис идентификации.
type IdentityClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

func NewIdentityMiddleware(cfg config.JWTConfig, log logger.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		jwtSecret: []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		log:       log,
	}
}

// RequireAuth требует валидный токен в заголовке Authorization.
func (m *IdentityMiddleware) RequireAuth() gin.HandlerFunc {
	return m.authenticate(false)
}

// RequireAuthWithQueryToken дополнительно принимает ?token=. Только для WebSocket:
// браузер не умеет слать заголовки при апгрейде.
func (m *IdentityMiddleware) RequireAuthWithQueryToken() gin.HandlerFunc {
	return m.authenticate(true)
}

func (m *IdentityMiddleware) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c, allowQuery)
		if !ok {
			m.log.Warn("Missing or malformed credentials", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := m.parseToken(tokenString)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err.Error())
			reason := apperrors.ErrInvalidToken
			if errors.Is(err, apperrors.ErrTokenExpired) {
				reason = apperrors.ErrTokenExpired
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason.Error()})
			return
		}

		role := domain.Role(claims.Role)
		if claims.UserID == "" || claims.UserID == domain.SystemUserID || !role.IsParticipantRole() {
			m.log.Warn("Token carries unusable identity", "user_id", claims.UserID, "role", claims.Role)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid identity in token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextDisplayName, claims.DisplayName)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if !allowQuery {
			return "", false
		}
		token := c.Query(QueryTokenParam)
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *IdentityMiddleware) parseToken(tokenString string) (*IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperrors.ErrInvalidToken
}
