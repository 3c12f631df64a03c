package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	commonlog "legalchat/server/common/log"
	"legalchat/server/common/transport/httpresp"
)

const (
	ContextAccessToken = "auth_access_token"
	ContextUserID      = "auth_user_id"
	ContextRole        = "auth_role"
	// LegacyUserHeader is unsigned. It is honoured only where a route group opts in.
	LegacyUserHeader = "x-user-id"
)

type tokenAuth interface {
	ParseAuthContext(token string) (userID, role string, err error)
}

func AuthRequired(auth tokenAuth) gin.HandlerFunc {
	return authenticate(auth, nil)
}

// AuthOrLegacyHeader accepts a bearer token and, failing that, the legacy
// x-user-id header resolved through roleOf.
func AuthOrLegacyHeader(auth tokenAuth, roleOf func(c *gin.Context, userID string) (string, bool)) gin.HandlerFunc {
	return authenticate(auth, roleOf)
}

func authenticate(auth tokenAuth, legacy func(c *gin.Context, userID string) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			if legacy != nil {
				if userID := strings.TrimSpace(c.GetHeader(LegacyUserHeader)); userID != "" {
					if role, ok := legacy(c, userID); ok {
						c.Set(ContextUserID, userID)
						c.Set(ContextRole, role)
						c.Next()
						return
					}
				}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrMissingBearerToken))
			return
		}
		userID, role, err := auth.ParseAuthContext(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrInvalidToken))
			return
		}
		c.Set(ContextAccessToken, token)
		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, role := range roles {
		allowed[strings.TrimSpace(role)] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := RoleFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, httpresp.NewErrorResponse(httpresp.ErrForbidden))
			return
		}
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, httpresp.NewErrorResponse(httpresp.ErrInsufficientRole))
			return
		}
		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				commonlog.Exceptionf("event=http_panic method=%s path=%s panic=%v stack=%s", c.Request.Method, c.FullPath(), rec, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, httpresp.NewErrorResponse(httpresp.ErrInternal))
			}
		}()
		c.Next()
	}
}

// BearerToken reads the Authorization header, then the access_token query
// parameter used by browser websocket clients.
func BearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token, true
		}
	}
	if token := strings.TrimSpace(c.Query("access_token")); token != "" {
		return token, true
	}
	return "", false
}

func UserIDFrom(c *gin.Context) (string, bool) {
	return stringFrom(c, ContextUserID)
}

func RoleFrom(c *gin.Context) (string, bool) {
	return stringFrom(c, ContextRole)
}

func stringFrom(c *gin.Context, key string) (string, bool) {
	raw, ok := c.Get(key)
	if !ok {
		return "", false
	}
	v, ok := raw.(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
