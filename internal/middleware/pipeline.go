package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/token"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/authz"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/csrf"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/ratelimit"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/utils"
)

// unexported, collision-proof context key
type principalContextKeyType struct{}

var principalKey = principalContextKeyType{}

// PrincipalFromContext returns the identity confirmed by the pipeline.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.UserID, true
}

type PipelineConfig struct {
	Limiter  *ratelimit.Limiter
	CSRF     *csrf.Service
	Tokens   *token.Issuer
	Gate     *authz.Gate
	Sessions *session.Store
	Proxies  *TrustedProxies

	CSRFProtectedPrefixes []string

	// APIPrefix separates JSON callers from browser navigation. Denied
	// browser requests are redirected instead of getting an error body.
	APIPrefix        string
	LoginPath        string
	UnauthorizedPath string

	// UpdateAge is the minimum interval between sliding renewals of one
	// session. Zero renews on every request.
	UpdateAge time.Duration
	Cookie    session.CookieOptions

	Development bool
	Now         func() time.Time
}

// Pipeline runs the per-request security steps in a fixed order and stops at
// the first denial: rate limit, CSRF, identity and authorization, session
// renewal. Security headers are attached before anything else.
type Pipeline struct {
	cfg PipelineConfig
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w.Header())

		ctx := r.Context()
		path := r.URL.Path
		client := p.cfg.Proxies.ClientIP(r)

		// 1. Rate limit
		if class := p.cfg.Limiter.Classify(path); class != "" {
			d := p.cfg.Limiter.Allow(ctx, client, class)
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Permitted {
				p.deny(w, r, client, apierror.RateLimited(d.RetryAfter))
				return
			}
		}

		// 2. CSRF
		if isMutating(r.Method) && utils.MatchAnyPrefix(path, p.cfg.CSRFProtectedPrefixes) {
			if !p.cfg.CSRF.Verify(r.Header.Get(csrf.HeaderName)) {
				p.deny(w, r, client, apierror.CSRFInvalid())
				return
			}
		}

		// 3. Identity + authorization
		principal, claims, err := p.identify(ctx, r)
		if err != nil {
			if p.cfg.Gate.RequiresIdentity(path) {
				p.deny(w, r, client, apierror.Unavailable(err))
				return
			}
			logger.Warn("session store unavailable, continuing anonymously", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			principal = nil
		}

		decision := p.cfg.Gate.Authorize(path, principal)
		if !decision.Allowed {
			switch decision.Reason {
			case authz.ReasonForbidden:
				p.deny(w, r, client, apierror.Forbidden())
			default:
				p.deny(w, r, client, apierror.Unauthenticated())
			}
			return
		}

		// 4. Sliding renewal
		if principal != nil && p.renewalDue(claims) {
			if err := p.renew(ctx, w, principal.SessionID); err != nil {
				p.deny(w, r, client, apierror.Unavailable(err))
				return
			}
		}

		if principal != nil {
			ctx = context.WithValue(ctx, principalKey, principal)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identify decodes the identity token and confirms the session it names is
// live. A bad token or a dead session is "no identity"; only a store failure
// is an error.
func (p *Pipeline) identify(ctx context.Context, r *http.Request) (*auth.Principal, *token.Claims, error) {
	raw := session.TokenFromRequest(r)
	if raw == "" {
		return nil, nil, nil
	}

	claims, err := p.cfg.Tokens.Decode(raw)
	if err != nil {
		return nil, nil, nil
	}

	sess, err := p.cfg.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.UserID != claims.UserID {
		return nil, nil, nil
	}

	// The stored record is authoritative for role and email.
	return &auth.Principal{
		UserID:    sess.UserID,
		Email:     sess.Email,
		Role:      sess.Role,
		SessionID: sess.SessionID,
	}, claims, nil
}

func (p *Pipeline) renewalDue(claims *token.Claims) bool {
	if claims == nil {
		return false
	}
	return p.cfg.Now().Sub(claims.IssuedAtTime()) >= p.cfg.UpdateAge
}

func (p *Pipeline) renew(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	sess, err := p.cfg.Sessions.Extend(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		// Expired between lookup and extension. The request was already
		// authorized; the next one will see no session.
		return nil
	}

	if _, err := p.cfg.Tokens.SetSessionCookie(w, sess, p.cfg.Cookie); err != nil {
		logger.Error("failed to re-issue session token", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	return nil
}

func (p *Pipeline) isAPI(path string) bool {
	return utils.HasPathPrefix(path, p.cfg.APIPrefix)
}

func (p *Pipeline) deny(w http.ResponseWriter, r *http.Request, client string, err *apierror.Error) {
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"client": client,
		"reason": string(err.Code),
	}
	if err.Cause != nil {
		fields["error"] = err.Cause.Error()
		logger.Error("request failed", fields)
	} else {
		logger.Warn("request denied", fields)
	}

	if !p.isAPI(r.URL.Path) {
		switch err.Code {
		case apierror.CodeUnauthenticated:
			target := p.cfg.LoginPath + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		case apierror.CodeForbidden:
			http.Redirect(w, r, p.cfg.UnauthorizedPath, http.StatusFound)
			return
		}
	}

	apierror.Write(w, err, p.cfg.Development)
}
