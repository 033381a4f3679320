package routes

import (
	"net/http"

	"member-portal/internal/auth"
	"member-portal/internal/rbac"

	"github.com/gin-gonic/gin"
)

// SecureHandler receives the decoded token of an admitted request. The token
// is zero when the request was admitted by API key; see auth.APIClientFromGin.
type SecureHandler func(c *gin.Context, tok auth.AuthToken)

// InsecureRoute is reachable without a token (login, registration).
type InsecureRoute struct {
	Path    string
	Method  string
	IsAjax  bool
	Handler gin.HandlerFunc
	// Middleware runs before Handler, e.g. rate limiting.
	Middleware []gin.HandlerFunc
}

// SecureRoute requires a valid token holding one of Permissions.
type SecureRoute struct {
	Path        string
	Method      string
	Permissions []rbac.PermissionLevel
	IsAjax      bool
	AllowAPIKey bool
	Handler     SecureHandler
}

// NewInsecureRoute defaults to GET and AJAX.
func NewInsecureRoute(path string, h gin.HandlerFunc) InsecureRoute {
	return InsecureRoute{Path: path, Method: http.MethodGet, IsAjax: true, Handler: h}
}

func (r InsecureRoute) WithMethod(m string) InsecureRoute { r.Method = m; return r }

func (r InsecureRoute) WithAjax(isAjax bool) InsecureRoute { r.IsAjax = isAjax; return r }

func (r InsecureRoute) Use(mw ...gin.HandlerFunc) InsecureRoute {
	r.Middleware = append(append([]gin.HandlerFunc(nil), r.Middleware...), mw...)
	return r
}

// NewSecureRoute defaults to GET and AJAX.
func NewSecureRoute(path string, h SecureHandler, perms ...rbac.PermissionLevel) SecureRoute {
	return SecureRoute{Path: path, Method: http.MethodGet, IsAjax: true, Permissions: perms, Handler: h}
}

func (r SecureRoute) WithMethod(m string) SecureRoute { r.Method = m; return r }

func (r SecureRoute) WithAjax(isAjax bool) SecureRoute { r.IsAjax = isAjax; return r }

// WithAPIKeyAccess lets the route accept an API key when the fallback is enabled.
func (r SecureRoute) WithAPIKeyAccess() SecureRoute { r.AllowAPIKey = true; return r }
