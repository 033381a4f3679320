package routes

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"member-portal/internal/auth"
	"member-portal/internal/rbac"
	"member-portal/internal/security"

	"github.com/gin-gonic/gin"
)

type fixture struct {
	engine *gin.Engine
	mgr    *Manager
	codec  *auth.Codec
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := security.NewCipher("routes-test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	codec, _ := auth.NewCodec(c)
	now := time.Unix(1700000000, 0).UTC()
	guard, err := auth.NewGuard(auth.GuardConfig{Codec: codec, LoginPath: "/login", Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	engine := gin.New()
	mgr, err := NewManager(engine, guard)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return &fixture{engine: engine, mgr: mgr, codec: codec, now: now}
}

func (f *fixture) do(method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(auth.HeaderToken, token)
	}
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSecureRoute_ForwardsTokenToHandler(t *testing.T) {
	f := newFixture(t)

	var got auth.AuthToken
	err := f.mgr.AddSecureRoutes(
		NewSecureRoute("/api/hours", func(c *gin.Context, tok auth.AuthToken) {
			got = tok
			c.Status(http.StatusCreated)
		}, rbac.DJPermissions...).WithMethod(http.MethodPost),
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	wire, issued, _ := f.codec.Issue("dj@example.org", 9, []rbac.PermissionLevel{rbac.StudentDJ}, f.now)
	w := f.do(http.MethodPost, "/api/hours", wire)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected handler status 201, got %d", w.Code)
	}
	if !got.Equal(issued) {
		t.Fatalf("handler got %+v, want %+v", got, issued)
	}
}

func TestSecureRoute_HandlerNotInvokedOnReject(t *testing.T) {
	f := newFixture(t)

	calls := 0
	spy := func(c *gin.Context, tok auth.AuthToken) { calls++ }
	if err := f.mgr.AddSecureRoutes(NewSecureRoute("/api/exec", spy, rbac.GeneralManager)); err != nil {
		t.Fatalf("register: %v", err)
	}

	wire, _, _ := f.codec.Issue("dj@example.org", 9, []rbac.PermissionLevel{rbac.StudentDJ}, f.now)
	w := f.do(http.MethodGet, "/api/exec", wire)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"UNAUTHORIZED"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if calls != 0 {
		t.Fatalf("spy handler was invoked %d times", calls)
	}
}

func TestSecureRoute_NonAjaxRedirects(t *testing.T) {
	f := newFixture(t)
	spy := func(c *gin.Context, tok auth.AuthToken) { t.Fatalf("handler must not run") }
	if err := f.mgr.AddSecureRoute(NewSecureRoute("/manage", spy, rbac.ExecBoardPermissions...).WithAjax(false)); err != nil {
		t.Fatalf("register: %v", err)
	}
	w := f.do(http.MethodGet, "/manage", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestInsecureRoute_ForwardsWithoutToken(t *testing.T) {
	f := newFixture(t)
	ran := false
	mw := func(c *gin.Context) { ran = true; c.Next() }
	r := NewInsecureRoute("/api/login", func(c *gin.Context) { c.Status(http.StatusOK) }).
		WithMethod(http.MethodPost).
		Use(mw)
	if err := f.mgr.AddInsecureRoutes(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	w := f.do(http.MethodPost, "/api/login", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !ran {
		t.Fatalf("expected route middleware to run")
	}
}

func TestAddSecureRoute_ConfigurationErrors(t *testing.T) {
	noop := func(c *gin.Context, tok auth.AuthToken) {}

	cases := map[string]SecureRoute{
		"empty permissions":  NewSecureRoute("/a", noop),
		"unknown permission": NewSecureRoute("/b", noop, "JANITOR"),
		"nil handler":        NewSecureRoute("/c", nil, rbac.StudentDJ),
		"bad method":         NewSecureRoute("/d", noop, rbac.StudentDJ).WithMethod("TRACE"),
		"relative path":      NewSecureRoute("e", noop, rbac.StudentDJ),
	}
	for name, r := range cases {
		f := newFixture(t)
		if err := f.mgr.AddSecureRoute(r); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", name, err)
		}
	}
}

func TestAddRoute_RejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	noop := func(c *gin.Context, tok auth.AuthToken) {}
	if err := f.mgr.AddSecureRoute(NewSecureRoute("/api/x", noop, rbac.StudentDJ)); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := f.mgr.AddInsecureRoute(NewInsecureRoute("/api/x", func(c *gin.Context) {}))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected duplicate to be rejected, got %v", err)
	}
}

func TestAddRoute_PatternConflictIsConfigError(t *testing.T) {
	f := newFixture(t)
	noop := func(c *gin.Context, tok auth.AuthToken) {}
	if err := f.mgr.AddSecureRoute(NewSecureRoute("/api/members/:id", noop, rbac.StudentDJ)); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []SecureRoute{
		NewSecureRoute("/api/members/:email", noop, rbac.StudentDJ),
		NewSecureRoute("/api/members/*rest", noop, rbac.StudentDJ),
	}
	for _, r := range cases {
		var err error
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.Fatalf("%s: registration panicked: %v", r.Path, p)
				}
			}()
			err = f.mgr.AddSecureRoute(r)
		}()
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", r.Path, err)
		}
	}

	// The original route still serves.
	tok, _, _ := f.codec.Issue("dj@example.org", 5, []rbac.PermissionLevel{rbac.StudentDJ}, f.now)
	if w := f.do(http.MethodGet, "/api/members/5", tok); w.Code != http.StatusOK {
		t.Fatalf("expected existing route to serve, got %d", w.Code)
	}
}

func TestFreezeStopsRegistration(t *testing.T) {
	f := newFixture(t)
	f.mgr.Freeze()
	err := f.mgr.AddInsecureRoute(NewInsecureRoute("/late", func(c *gin.Context) {}))
	if !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	if _, err := NewManager(nil, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
