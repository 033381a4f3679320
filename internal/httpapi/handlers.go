package httpapi

import (
	"errors"
	"net/http"
	"time"

	"member-portal/internal/account"
	"member-portal/internal/audit"
	"member-portal/internal/auth"
	"member-portal/internal/rbac"
	"member-portal/internal/security"
	"member-portal/pkg/logger"
	"member-portal/pkg/respond"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Accounts *account.Service
	Codec    *auth.Codec
	// Audit is optional. Recording failures are logged and ignored.
	Audit *audit.Service
	Now   func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) record(c *gin.Context, fn func(*audit.Service) error) {
	if h.Audit == nil {
		return
	}
	if err := fn(h.Audit); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// --- Session issuance (insecure routes) ---

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
}

type sessionResponse struct {
	AuthToken string          `json:"authToken"`
	UserData  *account.Member `json:"userData,omitempty"`
}

// Login verifies credentials and mints a session token.
// Every credential failure answers UNAUTHORIZED so callers cannot probe accounts.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "")
		return
	}

	log := logger.FromGin(c)
	ctx, ip := c.Request.Context(), c.ClientIP()
	email := security.NormalizeEmail(req.Email)
	m, err := h.Accounts.Verify(ctx, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, account.ErrThrottled):
		log.Warn("login throttled", "email", email)
		h.record(c, func(a *audit.Service) error { return a.LoginFailed(ctx, email, ip, "throttled") })
		respond.Error(c, http.StatusTooManyRequests, respond.RateLimited)
		return
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, account.ErrDeactivated):
		reason := "invalid_credentials"
		if errors.Is(err, account.ErrDeactivated) {
			reason = "deactivated"
		}
		log.Info("login rejected", "email", email, "reason", reason)
		h.record(c, func(a *audit.Service) error { return a.LoginFailed(ctx, email, ip, reason) })
		respond.Unauthorized(c)
		return
	default:
		log.Error("login failed", "err", err)
		respond.Error(c, http.StatusInternalServerError, respond.DBError)
		return
	}

	token, _, err := h.Codec.Issue(m.Email, m.ID, m.PermissionLevels, h.now())
	if err != nil {
		log.Error("token issuance failed", "err", err)
		respond.InternalError(c)
		return
	}
	log.Info("login succeeded", "email", m.Email)
	h.record(c, func(a *audit.Service) error { return a.LoginSucceeded(ctx, m.ID, m.Email, ip) })
	respond.JSON(c, sessionResponse{AuthToken: token, UserData: &m})
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "")
		return
	}

	log := logger.FromGin(c)
	ctx := c.Request.Context()
	m, err := h.Accounts.Register(ctx, account.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, account.ErrAlreadyExists):
		respond.BadRequest(c, respond.AlreadyExists)
		return
	case errors.Is(err, account.ErrInvalidArgument):
		respond.BadRequest(c, "")
		return
	default:
		log.Error("register failed", "err", err)
		respond.Error(c, http.StatusInternalServerError, respond.DBError)
		return
	}

	token, _, err := h.Codec.Issue(m.Email, m.ID, m.PermissionLevels, h.now())
	if err != nil {
		log.Error("token issuance failed", "err", err)
		respond.InternalError(c)
		return
	}
	h.record(c, func(a *audit.Service) error { return a.MemberRegistered(ctx, m.ID, m.Email, c.ClientIP()) })
	respond.JSON(c, sessionResponse{AuthToken: token, UserData: &m})
}

// --- Secure routes ---

func (h Handlers) Profile(c *gin.Context, tok auth.AuthToken) {
	m, err := h.Accounts.Profile(c.Request.Context(), tok.ID)
	switch {
	case err == nil:
		respond.JSON(c, m)
	case errors.Is(err, account.ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.NotFound)
	default:
		logger.FromGin(c).Error("profile lookup failed", "err", err, "member_id", tok.ID)
		respond.Error(c, http.StatusInternalServerError, respond.DBError)
	}
}

type sessionInfo struct {
	Email            string                 `json:"email,omitempty"`
	ID               int64                  `json:"id,omitempty"`
	AuthorizedAt     *time.Time             `json:"authorizedAt,omitempty"`
	ExpiresAt        *time.Time             `json:"expiresAt,omitempty"`
	PermissionLevels []rbac.PermissionLevel `json:"permissionLevels,omitempty"`
	App              string                 `json:"app,omitempty"`
}

// Session describes the caller: the token holder, or the app for API-key requests.
func (h Handlers) Session(c *gin.Context, tok auth.AuthToken) {
	if app, ok := auth.APIClientFromGin(c); ok && tok.IsZero() {
		respond.JSON(c, sessionInfo{App: app})
		return
	}
	issued, expires := tok.AuthorizedAt, tok.ExpiresAt()
	respond.JSON(c, sessionInfo{
		Email:            tok.Email,
		ID:               tok.ID,
		AuthorizedAt:     &issued,
		ExpiresAt:        &expires,
		PermissionLevels: tok.PermissionLevels,
	})
}
