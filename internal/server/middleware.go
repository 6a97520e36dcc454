package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing bearer token")

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if actor, ok := helpers.ActorFromContext(c); ok {
		fields["user_id"] = actor.UserID
	}
	utils.Info("HTTP Request", fields)
}

// parseActor validates an HS256 bearer token and returns the actor it names.
// The token may come from the Authorization header or, for websocket
// upgrades that cannot set headers, the "token" query parameter.
func parseActor(c *gin.Context, secret []byte) (models.Actor, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if raw == "" {
		raw = c.Query("token")
	}
	if raw == "" {
		return models.Actor{}, errMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Actor{}, errors.New("token has no subject")
	}
	role, _ := claims["role"].(string)
	active, _ := claims["active"].(bool)
	return models.Actor{UserID: sub, Role: role, IsActive: active}, nil
}

// AuthMiddleware rejects requests without a valid bearer token
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		actor, err := parseActor(c, key)
		if err != nil {
			utils.JSONRejection(c, http.StatusUnauthorized, err, "authentication required", helpers.ReasonUnauthorized)
			utils.Warn("AuthMiddleware: rejected token", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Abort()
			return
		}
		helpers.SetActor(c, actor)
		c.Next()
	}
}

// OptionalAuth attaches the actor when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		actor, err := parseActor(c, key)
		switch {
		case err == nil:
			helpers.SetActor(c, actor)
		case !errors.Is(err, errMissingToken):
			utils.Debug("OptionalAuth: ignoring invalid token", map[string]any{"error": err.Error()})
		}
		c.Next()
	}
}

// RequireRole only admits actors holding one of roles. Must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := helpers.ActorFromContext(c)
		if !ok {
			utils.JSONRejection(c, http.StatusUnauthorized, errMissingToken, "authentication required", helpers.ReasonUnauthorized)
			c.Abort()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		utils.JSONRejection(c, http.StatusForbidden, errors.New("role "+actor.Role+" not permitted"), "insufficient permissions", helpers.ReasonForbidden)
		c.Abort()
	}
}
