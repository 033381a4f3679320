package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"member-portal/internal/account"
	"member-portal/internal/apikey"
	"member-portal/internal/audit"
	"member-portal/internal/auth"
	"member-portal/internal/rbac"
	"member-portal/internal/routes"
	"member-portal/internal/security"

	"github.com/gin-gonic/gin"
)

type testServer struct {
	engine *gin.Engine
	repo   *account.MemoryRepo
	audit  *audit.MemoryRepo
	codec  *auth.Codec
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := security.NewCipher("httpapi-test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	codec, _ := auth.NewCodec(c)
	now := time.Unix(1700000000, 0).UTC()
	clock := func() time.Time { return now }

	keys := apikey.NewMemoryStore()
	keys.Put("scheduler", "sched-key")
	guard, err := auth.NewGuard(auth.GuardConfig{
		Codec:          codec,
		LoginPath:      "/login",
		APIKeyFallback: true,
		APIKeys:        keys,
		Now:            clock,
	})
	if err != nil {
		t.Fatalf("guard: %v", err)
	}

	repo := account.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	h := Handlers{
		Accounts: account.NewService(repo, nil),
		Codec:    codec,
		Audit:    audit.NewService(auditRepo),
		Now:      clock,
	}

	engine := gin.New()
	mgr, err := routes.NewManager(engine, guard)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	err = mgr.AddInsecureRoutes(
		routes.NewInsecureRoute("/api/login", h.Login).WithMethod(http.MethodPost),
		routes.NewInsecureRoute("/api/register", h.Register).WithMethod(http.MethodPost),
	)
	if err != nil {
		t.Fatalf("insecure routes: %v", err)
	}
	err = mgr.AddSecureRoutes(
		routes.NewSecureRoute("/api/profile", h.Profile, rbac.AllPermissions...),
		routes.NewSecureRoute("/api/session", h.Session, rbac.AllPermissions...).WithAPIKeyAccess(),
	)
	if err != nil {
		t.Fatalf("secure routes: %v", err)
	}
	mgr.Freeze()

	return &testServer{engine: engine, repo: repo, audit: auditRepo, codec: codec, now: now}
}

func (s *testServer) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return env
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, w)
	if env.Error == nil {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
	return env.Error.Message
}

const registerBody = `{"firstName":"Dee","lastName":"Jay","email":"dj@example.org","password":"hunter2"}`

func (s *testServer) login(t *testing.T, email, password string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	w := s.do(http.MethodPost, "/api/login", string(body), nil)
	if w.Code != http.StatusOK {
		return "", w
	}
	var resp sessionResponse
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp.AuthToken, w
}

func TestRegisterThenLoginThenProfile(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/register", registerBody, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	token, w := s.login(t, "DJ@example.org", "hunter2")
	if token == "" {
		t.Fatalf("login: expected token, got %d: %s", w.Code, w.Body.String())
	}
	tok, ok := s.codec.Decode(token)
	if !ok || tok.Email != "dj@example.org" || !tok.AuthorizedAt.Equal(s.now) {
		t.Fatalf("unexpected token payload: %+v ok=%v", tok, ok)
	}

	w = s.do(http.MethodGet, "/api/profile", "", map[string]string{auth.HeaderToken: token})
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var m account.Member
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &m); err != nil {
		t.Fatalf("decode member: %v", err)
	}
	if m.ID != tok.ID || m.FirstName != "Dee" {
		t.Fatalf("unexpected profile: %+v", m)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Fatalf("profile must not leak credentials")
	}
}

func TestRegisterDuplicateIsAlreadyExists(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/register", registerBody, nil)

	w := s.do(http.MethodPost, "/api/register", registerBody, nil)
	if w.Code != http.StatusBadRequest || errorMessage(t, w) != "ALREADY_EXISTS" {
		t.Fatalf("expected 400 ALREADY_EXISTS, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginBadInputIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{``, `{`, `{"email":"not-an-email","password":"x"}`, `{"email":"dj@example.org"}`} {
		w := s.do(http.MethodPost, "/api/login", body, nil)
		if w.Code != http.StatusBadRequest || errorMessage(t, w) != "BAD_REQUEST" {
			t.Fatalf("body %q: expected 400 BAD_REQUEST, got %d: %s", body, w.Code, w.Body.String())
		}
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/register", registerBody, nil)

	_, wrong := s.login(t, "dj@example.org", "wrong")
	_, unknown := s.login(t, "nobody@example.org", "hunter2")

	for _, w := range []*httptest.ResponseRecorder{wrong, unknown} {
		if w.Code != http.StatusUnauthorized || errorMessage(t, w) != "UNAUTHORIZED" {
			t.Fatalf("expected 401 UNAUTHORIZED, got %d: %s", w.Code, w.Body.String())
		}
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("expected identical bodies, got %q vs %q", wrong.Body.String(), unknown.Body.String())
	}

	evs := s.audit.Events()
	if len(evs) != 3 {
		t.Fatalf("expected register + 2 failures, got %+v", evs)
	}
	if evs[1].Type != audit.EventLoginFailed || evs[1].Reason != "invalid_credentials" {
		t.Fatalf("unexpected audit event: %+v", evs[1])
	}
}

func TestLoginDeactivatedIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/register", registerBody, nil)
	m, _, err := s.repo.FindByEmail(context.Background(), "dj@example.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	s.repo.SetActive(m.ID, false)

	_, w := s.login(t, "dj@example.org", "hunter2")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	evs := s.audit.Events()
	if last := evs[len(evs)-1]; last.Reason != "deactivated" {
		t.Fatalf("expected deactivated reason, got %+v", last)
	}
}

func TestProfileForDeletedMemberIsNotFound(t *testing.T) {
	s := newTestServer(t)
	token, _, err := s.codec.Issue("ghost@example.org", 999, []rbac.PermissionLevel{rbac.CommunityDJ}, s.now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := s.do(http.MethodGet, "/api/profile", "", map[string]string{auth.HeaderToken: token})
	if w.Code != http.StatusNotFound || errorMessage(t, w) != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionDescribesTokenHolder(t *testing.T) {
	s := newTestServer(t)
	token, _, _ := s.codec.Issue("dj@example.org", 4, []rbac.PermissionLevel{rbac.StudentDJ}, s.now)

	w := s.do(http.MethodGet, "/api/session", "", map[string]string{auth.HeaderToken: token})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var info sessionInfo
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != 4 || info.ExpiresAt == nil || !info.ExpiresAt.Equal(s.now.Add(auth.TokenLifetime)) {
		t.Fatalf("unexpected session info: %+v", info)
	}
}

func TestSessionAcceptsAPIKey(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/session", "", map[string]string{auth.HeaderAPIKey: "sched-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var info sessionInfo
	_ = json.Unmarshal(decodeEnvelope(t, w).Data, &info)
	if info.App != "scheduler" || info.ID != 0 {
		t.Fatalf("expected app session, got %+v", info)
	}

	// Profile did not opt in to API keys.
	w = s.do(http.MethodGet, "/api/profile", "", map[string]string{auth.HeaderAPIKey: "sched-key"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on profile, got %d", w.Code)
	}
}
