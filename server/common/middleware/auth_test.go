package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeAuth map[string][2]string

func (f fakeAuth) ParseAuthContext(token string) (string, string, error) {
	v, ok := f[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return v[0], v[1], nil
}

func newRouter(h ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(h, func(c *gin.Context) {
		userID, _ := UserIDFrom(c)
		role, _ := RoleFrom(c)
		c.String(http.StatusOK, userID+"/"+role)
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	auth := fakeAuth{"good": {"u1", "user"}}
	r := newRouter(AuthRequired(auth))

	if w := do(r, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}
	if w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer bad") }); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", w.Code)
	}
	w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") })
	if w.Code != http.StatusOK || w.Body.String() != "u1/user" {
		t.Errorf("good token: status = %d body = %q", w.Code, w.Body.String())
	}
	if w := do(r, func(req *http.Request) { req.Header.Set(LegacyUserHeader, "u1") }); w.Code != http.StatusUnauthorized {
		t.Errorf("legacy header must be rejected without opt-in, status = %d", w.Code)
	}
}

func TestAuthOrLegacyHeader(t *testing.T) {
	roleOf := func(_ *gin.Context, userID string) (string, bool) {
		if userID == "known" {
			return "user", true
		}
		return "", false
	}
	r := newRouter(AuthOrLegacyHeader(fakeAuth{}, roleOf))

	w := do(r, func(req *http.Request) { req.Header.Set(LegacyUserHeader, "known") })
	if w.Code != http.StatusOK || w.Body.String() != "known/user" {
		t.Errorf("known legacy user: status = %d body = %q", w.Code, w.Body.String())
	}
	if w := do(r, func(req *http.Request) { req.Header.Set(LegacyUserHeader, "ghost") }); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown legacy user: status = %d", w.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	auth := fakeAuth{"admin": {"a1", "admin"}, "user": {"u1", "user"}}
	r := newRouter(AuthRequired(auth), RequireRoles("admin"))

	if w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer user") }); w.Code != http.StatusForbidden {
		t.Errorf("user on admin route: status = %d", w.Code)
	}
	if w := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer admin") }); w.Code != http.StatusOK {
		t.Errorf("admin on admin route: status = %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/x", func(c *gin.Context) { panic("boom") })
	if w := do(r, nil); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
