package authgin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/bearerkit/core"
	bktesting "github.com/open-rails/bearerkit/testing"
	"github.com/open-rails/bearerkit/validator"
)

func newTestEngine(t *testing.T, srv *bktesting.AuthServer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := validator.New(core.Options{
		Address:       srv.URL(),
		Audience:      srv.Audience(),
		RetryAttempts: 2,
		BackoffBase:   time.Millisecond,
	}, validator.WithExtractor(Extractor()))
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}

	r := gin.New()
	r.GET("/private", AuthRequired(v), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, "hello "+p.Subject)
	})
	r.GET("/optional", AuthOptional(v), func(c *gin.Context) {
		if p, ok := PrincipalFrom(c); ok {
			c.String(http.StatusOK, "hello "+p.Subject)
			return
		}
		c.String(http.StatusOK, "hello anonymous")
	})
	r.GET("/admin", AuthRequired(v), RequireScope("admin"), func(c *gin.Context) {
		c.String(http.StatusOK, "admin ok")
	})
	return r
}

func perform(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredValidToken(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()
	r := newTestEngine(t, srv)

	w := perform(r, "/private", "Bearer "+srv.CreateToken("alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if w.Body.String() != "hello alice" {
		t.Errorf("body: got %q", w.Body.String())
	}
}

func TestAuthRequiredNoToken(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()
	r := newTestEngine(t, srv)

	w := perform(r, "/private", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
	if ch := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(ch, "Bearer") {
		t.Errorf("challenge: got %q", ch)
	}
}

func TestAuthRequiredInvalidToken(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()
	r := newTestEngine(t, srv)

	w := perform(r, "/private", "Bearer "+srv.CreateExpiredToken("alice"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
	ch := w.Header().Get("WWW-Authenticate")
	if !strings.Contains(ch, "invalid_token") {
		t.Errorf("challenge: got %q", ch)
	}
	// Internal rejection reasons stay out of the response.
	if strings.Contains(w.Body.String(), "exp") {
		t.Errorf("body leaks rejection detail: %q", w.Body.String())
	}
}

func TestAuthOptional(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()
	r := newTestEngine(t, srv)

	w := perform(r, "/optional", "")
	if w.Code != http.StatusOK || w.Body.String() != "hello anonymous" {
		t.Errorf("anonymous: got %d %q", w.Code, w.Body.String())
	}

	w = perform(r, "/optional", "Bearer "+srv.CreateToken("alice"))
	if w.Code != http.StatusOK || w.Body.String() != "hello alice" {
		t.Errorf("authenticated: got %d %q", w.Code, w.Body.String())
	}

	// An invalid credential still aborts even on optional routes.
	w = perform(r, "/optional", "Bearer garbage")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want 401", w.Code)
	}
}

func TestRequireScope(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()
	r := newTestEngine(t, srv)

	admin := srv.CreateTokenWithClaims("alice", map[string]any{"scope": "read admin"})
	w := perform(r, "/admin", "Bearer "+admin)
	if w.Code != http.StatusOK {
		t.Errorf("admin scope: got %d, want 200", w.Code)
	}

	reader := srv.CreateTokenWithClaims("bob", map[string]any{"scope": "read"})
	w = perform(r, "/admin", "Bearer "+reader)
	if w.Code != http.StatusForbidden {
		t.Errorf("missing scope: got %d, want 403", w.Code)
	}
}
