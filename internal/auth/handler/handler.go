package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/credentials"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/resolver"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/token"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/csrf"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/middleware"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
)

type Deps struct {
	Providers   *provider.Registry
	Sessions    *session.Store
	Resolver    resolver.Resolver
	Credentials *credentials.Service
	CSRF        *csrf.Service
	Tokens      *token.Issuer

	Cookie         session.CookieOptions
	AllowedOrigins []string
	LoginPath      string
	AfterLoginPath string
	Development    bool
}

type Handler struct {
	providers    *provider.Registry
	sessionStore *session.Store
	resolver     resolver.Resolver
	credentials  *credentials.Service
	csrf         *csrf.Service
	tokens       *token.Issuer

	cookie         session.CookieOptions
	allowedOrigins map[string]bool
	loginPath      string
	afterLoginPath string
	development    bool
}

func NewHandler(d Deps) *Handler {
	origins := make(map[string]bool, len(d.AllowedOrigins))
	for _, o := range d.AllowedOrigins {
		origins[o] = true
	}

	h := &Handler{
		providers:      d.Providers,
		sessionStore:   d.Sessions,
		resolver:       d.Resolver,
		credentials:    d.Credentials,
		csrf:           d.CSRF,
		tokens:         d.Tokens,
		cookie:         d.Cookie,
		allowedOrigins: origins,
		loginPath:      d.LoginPath,
		afterLoginPath: d.AfterLoginPath,
		development:    d.Development,
	}
	if h.loginPath == "" {
		h.loginPath = "/login"
	}
	if h.afterLoginPath == "" {
		h.afterLoginPath = "/dashboard"
	}
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/csrf-token", h.CSRFToken)
	r.OPTIONS("/csrf-token", h.CSRFPreflight)
	r.POST("/csrf-token/validate", h.ValidateCSRF)

	r.POST("/api/auth/signup", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)

	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)

	r.GET("/api/profile", h.Profile)
	r.GET("/api/admin/stats", h.AdminStats)
	r.GET("/dashboard", h.Dashboard)
	r.GET("/health", h.Health)
}

func (h *Handler) fail(c *gin.Context, err *apierror.Error) {
	if err.Cause != nil {
		logger.Error("request failed", map[string]any{
			"path":  c.Request.URL.Path,
			"code":  string(err.Code),
			"error": err.Cause.Error(),
		})
	}
	apierror.Write(c.Writer, err, h.development)
	c.Abort()
}

// authError maps authenticator and store failures onto the error taxonomy.
func authError(err error) *apierror.Error {
	var locked *credentials.LockedError
	switch {
	case errors.As(err, &locked):
		return apierror.AccountLocked(locked.RetryAfter)
	case errors.Is(err, credentials.ErrInvalidCredentials):
		return apierror.InvalidCredentials()
	case errors.Is(err, credentials.ErrEmailNotVerified):
		return apierror.EmailNotVerified()
	case errors.Is(err, credentials.ErrAlreadyRegistered):
		return apierror.Conflict("account already exists")
	case errors.Is(err, credentials.ErrPasswordTooShort):
		return apierror.BadRequest("password must be at least 8 characters")
	case errors.Is(err, credentials.ErrInvalidEmail):
		return apierror.BadRequest("invalid email address")
	case errors.Is(err, credentials.ErrUnavailable), errors.Is(err, session.ErrUnavailable):
		return apierror.Unavailable(err)
	default:
		return apierror.Internal(err)
	}
}

// startSession persists a session for the account and sets the identity
// cookie. Credential and federated logins both end here.
func (h *Handler) startSession(c *gin.Context, userID, email string, role auth.Role) (*session.Session, error) {
	now := time.Now()
	sessionID, err := h.sessionStore.Create(c.Request.Context(), userID, email, role)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		SessionID: sessionID,
		UserID:    userID,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(h.sessionStore.MaxAge()),
	}

	if _, err := h.tokens.SetSessionCookie(c.Writer, sess, h.cookie); err != nil {
		_ = h.sessionStore.Delete(c.Request.Context(), sessionID)
		return nil, err
	}

	logger.Info("session started", map[string]any{
		"user_id": userID,
		"ip":      c.ClientIP(),
	})

	return sess, nil
}

func (h *Handler) Logout(c *gin.Context) {
	// The pipeline resolved the caller if the cookie named a live session.
	if p, ok := middleware.PrincipalFromContext(c.Request.Context()); ok {
		if err := h.sessionStore.Delete(c.Request.Context(), p.SessionID); err != nil {
			h.fail(c, apierror.Unavailable(err))
			return
		}
		logger.Info("session ended", map[string]any{
			"user_id": p.UserID,
			"ip":      c.ClientIP(),
		})
	}

	session.ClearCookie(c.Writer, h.cookie)

	// Idempotent response
	c.Status(http.StatusNoContent)
}
