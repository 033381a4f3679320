package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"member-portal/internal/rbac"
	"member-portal/pkg/logger"
	"member-portal/pkg/respond"

	"github.com/gin-gonic/gin"
)

// Reason codes for server-side logs. Clients always get the same rejection.
const (
	ReasonMissing      = "missing"
	ReasonInvalid      = "invalid"
	ReasonExpired      = "expired"
	ReasonInsufficient = "insufficient_permission"
	ReasonGranted      = "token"
	ReasonAPIKey       = "api_key"
)

// APIKeyLookup resolves an application key to its registered app name.
type APIKeyLookup interface {
	Lookup(ctx context.Context, key string) (appName string, ok bool, err error)
}

type GuardConfig struct {
	Codec     *Codec
	LoginPath string

	LegacyHeaderParse bool

	// APIKeyFallback admits AJAX routes that opted in via Requirement.AllowAPIKey
	// when the token path fails. Off unless explicitly enabled.
	APIKeyFallback bool
	APIKeys        APIKeyLookup

	Now func() time.Time
}

// Requirement is what the guard needs to know about one secure route.
type Requirement struct {
	Path        string
	Method      string
	Permissions []rbac.PermissionLevel
	IsAjax      bool
	AllowAPIKey bool
}

// Guard enforces session tokens on secure routes. It holds only read-only
// configuration and is shared by every request.
type Guard struct {
	codec          *Codec
	loginPath      string
	legacyHeader   bool
	apiKeyFallback bool
	apiKeys        APIKeyLookup
	now            func() time.Time
}

func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Codec == nil {
		return nil, errors.New("auth: guard requires a codec")
	}
	if cfg.LoginPath == "" {
		return nil, errors.New("auth: guard requires a login path")
	}
	if cfg.APIKeyFallback && cfg.APIKeys == nil {
		return nil, errors.New("auth: api key fallback enabled without a key store")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Guard{
		codec:          cfg.Codec,
		loginPath:      cfg.LoginPath,
		legacyHeader:   cfg.LegacyHeaderParse,
		apiKeyFallback: cfg.APIKeyFallback,
		apiKeys:        cfg.APIKeys,
		now:            now,
	}, nil
}

// Require returns middleware that admits a request only with a valid,
// unexpired token whose permissions satisfy req. On admission the token is
// stored on both the request context and the gin context.
func (g *Guard) Require(req Requirement) gin.HandlerFunc {
	required := rbac.Normalize(req.Permissions)

	return func(c *gin.Context) {
		log := logger.FromGin(c)

		tok, reason := g.authenticate(c, log)
		if reason == "" {
			if rbac.IsAuthorized(tok.PermissionLevels, required) {
				g.logDecision(log, req, tok.Email, true, ReasonGranted)
				c.Request = c.Request.WithContext(WithToken(c.Request.Context(), tok))
				c.Set(ginKeyToken, tok)
				c.Next()
				return
			}
			reason = ReasonInsufficient
		}

		if reason != ReasonInsufficient && g.apiKeyFallback && req.IsAjax && req.AllowAPIKey {
			if app, ok := g.lookupAPIKey(c, log); ok {
				g.logDecision(log, req, "", true, ReasonAPIKey, "app", app)
				c.Request = c.Request.WithContext(WithAPIClient(c.Request.Context(), app))
				c.Set(ginKeyAPIClient, app)
				c.Next()
				return
			}
		}

		g.logDecision(log, req, tok.Email, false, reason)
		g.reject(c, req)
	}
}

// authenticate runs extract, decode and expiry checks. An empty reason means
// tok is valid and unexpired.
func (g *Guard) authenticate(c *gin.Context, log *slog.Logger) (AuthToken, string) {
	values := c.Request.Header.Values(HeaderToken)
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		return AuthToken{}, ReasonMissing
	}
	// A repeated header line is as ambiguous as a concatenated value.
	if len(values) != 1 && !g.legacyHeader {
		return AuthToken{}, ReasonInvalid
	}
	wire, ok := ExtractToken(strings.Join(values, "; "), g.legacyHeader)
	if !ok {
		return AuthToken{}, ReasonInvalid
	}

	tok, err := g.codec.DecodeWithReason(wire)
	if err != nil {
		log.Debug("auth token rejected", "err", err)
		return AuthToken{}, ReasonInvalid
	}
	if g.codec.IsExpired(tok, g.now()) {
		return tok, ReasonExpired
	}
	return tok, ""
}

func (g *Guard) lookupAPIKey(c *gin.Context, log *slog.Logger) (string, bool) {
	key := c.GetHeader(HeaderAPIKey)
	if key == "" {
		return "", false
	}
	app, ok, err := g.apiKeys.Lookup(c.Request.Context(), key)
	if err != nil {
		log.Error("api key lookup failed", "err", err)
		return "", false
	}
	return app, ok
}

func (g *Guard) reject(c *gin.Context, req Requirement) {
	if !req.IsAjax {
		c.Redirect(http.StatusFound, g.loginPath)
		c.Abort()
		return
	}
	respond.Unauthorized(c)
}

func (g *Guard) logDecision(log *slog.Logger, req Requirement, email string, granted bool, reason string, extra ...any) {
	decision := "denied"
	if granted {
		decision = "granted"
	}
	attrs := []any{
		"path", req.Path,
		"method", req.Method,
		"decision", decision,
		"reason", reason,
	}
	if email != "" {
		attrs = append(attrs, "email", email)
	}
	attrs = append(attrs, extra...)
	log.Info("authorization", attrs...)
}
