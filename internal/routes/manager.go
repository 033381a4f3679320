package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"member-portal/internal/auth"
	"member-portal/internal/rbac"

	"github.com/gin-gonic/gin"
)

var (
	// ErrConfig wraps every route table mistake. These are startup-fatal.
	ErrConfig = errors.New("routes: misconfigured route")
	ErrFrozen = errors.New("routes: route table is frozen")
)

// Manager registers the route table on a gin engine. Secure routes go through
// the guard; insecure routes are forwarded unconditionally.
// The table is written during startup only and read-only afterwards.
type Manager struct {
	engine *gin.Engine
	guard  *auth.Guard

	mu     sync.Mutex
	seen   map[string]struct{}
	frozen bool
}

func NewManager(engine *gin.Engine, guard *auth.Guard) (*Manager, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine is nil", ErrConfig)
	}
	if guard == nil {
		return nil, fmt.Errorf("%w: guard is nil", ErrConfig)
	}
	return &Manager{engine: engine, guard: guard, seen: make(map[string]struct{})}, nil
}

func (m *Manager) AddInsecureRoutes(rs ...InsecureRoute) error {
	for _, r := range rs {
		if err := m.AddInsecureRoute(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) AddSecureRoutes(rs ...SecureRoute) error {
	for _, r := range rs {
		if err := m.AddSecureRoute(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) AddInsecureRoute(r InsecureRoute) error {
	if r.Handler == nil {
		return fmt.Errorf("%w: %s %s has no handler", ErrConfig, r.Method, r.Path)
	}
	method, err := m.claim(r.Method, r.Path)
	if err != nil {
		return err
	}

	chain := append(append([]gin.HandlerFunc(nil), r.Middleware...), r.Handler)
	return m.handle(method, r.Path, chain...)
}

func (m *Manager) AddSecureRoute(r SecureRoute) error {
	if r.Handler == nil {
		return fmt.Errorf("%w: %s %s has no handler", ErrConfig, r.Method, r.Path)
	}
	if err := rbac.ValidateRequirement(r.Permissions); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrConfig, r.Method, r.Path, err)
	}
	method, err := m.claim(r.Method, r.Path)
	if err != nil {
		return err
	}

	guard := m.guard.Require(auth.Requirement{
		Path:        r.Path,
		Method:      method,
		Permissions: r.Permissions,
		IsAjax:      r.IsAjax,
		AllowAPIKey: r.AllowAPIKey,
	})
	h := r.Handler
	return m.handle(method, r.Path, guard, func(c *gin.Context) {
		tok, _ := auth.TokenFromGin(c)
		h(c, tok)
	})
}

// handle mounts the chain on the engine. gin panics on conflicting patterns
// (a wildcard beside a static segment, two param names at one level); those
// come back as ErrConfig and the claim is released.
func (m *Manager) handle(method, path string, chain ...gin.HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.release(method, path)
			err = fmt.Errorf("%w: %s %s: %v", ErrConfig, method, path, r)
		}
	}()
	m.engine.Handle(method, path, chain...)
	return nil
}

// Freeze ends registration. Call it once the table is complete.
func (m *Manager) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
}

// claim validates method and path and reserves the pair.
func (m *Manager) claim(method, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return "", ErrFrozen
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !isSupportedMethod(method) {
		return "", fmt.Errorf("%w: unsupported method %q for %s", ErrConfig, method, path)
	}
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: invalid path %q", ErrConfig, path)
	}
	key := method + " " + path
	if _, dup := m.seen[key]; dup {
		return "", fmt.Errorf("%w: duplicate route %s", ErrConfig, key)
	}
	m.seen[key] = struct{}{}
	return method, nil
}

func (m *Manager) release(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, method+" "+path)
}

func isSupportedMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
