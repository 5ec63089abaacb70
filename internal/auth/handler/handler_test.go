package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/account"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/credentials"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/provider"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/resolver"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/token"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/authz"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/csrf"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/middleware"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/ratelimit"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
)

type fakeProvider struct {
	identity    *auth.Identity
	challenge   string
	gotVerifier string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AuthCodeURL(state string, codeChallenge string) string {
	f.challenge = codeChallenge
	return "https://idp.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string, codeVerifier string) (*auth.Identity, error) {
	f.gotVerifier = codeVerifier
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return f.identity, nil
}

type testApp struct {
	router   *gin.Engine
	repo     *account.MemoryRepository
	sessions *session.Store
	csrfTok  string
	idp      *fakeProvider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := account.NewMemoryRepository()
	csrfSvc, err := csrf.NewService("csrf-secret")
	require.NoError(t, err)
	tokens, err := token.NewIssuer("session-secret")
	require.NoError(t, err)
	sessions := session.NewStore(session.NewMemoryBackend(), time.Hour)

	idp := &fakeProvider{identity: &auth.Identity{
		Provider:       "fake",
		ProviderUserID: "fake-1",
		Email:          "fed@example.com",
		EmailVerified:  true,
	}}

	h := NewHandler(Deps{
		Providers:      provider.NewRegistry(idp),
		Sessions:       sessions,
		Resolver:       resolver.NewAccountResolver(repo),
		Credentials:    credentials.NewService(repo),
		CSRF:           csrfSvc,
		Tokens:         tokens,
		AllowedOrigins: []string{"https://app.example.com"},
	})

	pipeline := middleware.NewPipeline(middleware.PipelineConfig{
		Limiter:  ratelimit.NewLimiter(nil, nil),
		CSRF:     csrfSvc,
		Tokens:   tokens,
		Gate:     authz.NewGate(authz.DefaultRules([]string{"/api/profile"})),
		Sessions: sessions,
		CSRFProtectedPrefixes: []string{
			"/api/auth/signup",
			"/api/auth/login",
			"/api/auth/logout",
			"/api/profile",
		},
		UpdateAge: 24 * time.Hour,
	})

	r := gin.New()
	r.Use(middleware.GinPipeline(pipeline))
	h.RegisterRoutes(r)

	tok, err := csrfSvc.Mint()
	require.NoError(t, err)

	return &testApp{router: r, repo: repo, sessions: sessions, csrfTok: tok, idp: idp}
}

func (a *testApp) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, a.csrfTok)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (a *testApp) registerVerified(t *testing.T, email, password string) string {
	t.Helper()

	rec := a.do(http.MethodPost, "/api/auth/signup", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	id, _ := decode(t, rec)["userId"].(string)
	require.NoError(t, a.repo.SetEmailVerified(id, true))
	return id
}

func TestCSRFToken(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/csrf-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tok, _ := decode(t, rec)["csrfToken"].(string)
	require.NotEmpty(t, tok)

	c := cookieNamed(rec, csrf.CookieName)
	require.NotNil(t, c)
	assert.Equal(t, tok, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	rec = a.do(http.MethodPost, "/csrf-token/validate", gin.H{"token": tok})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = a.do(http.MethodPost, "/csrf-token/validate", gin.H{"token": tok + "x"})
	assert.Equal(t, false, decode(t, rec)["valid"])

	rec = a.do(http.MethodPost, "/csrf-token/validate", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCSRFPreflight(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/csrf-token", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), csrf.HeaderName)

	req = httptest.NewRequest(http.MethodOptions, "/csrf-token", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSignup(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodPost, "/api/auth/signup", gin.H{"email": "new@example.com", "password": "long enough"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decode(t, rec)["emailVerified"])
	assert.Nil(t, cookieNamed(rec, session.InsecureCookieName))

	rec = a.do(http.MethodPost, "/api/auth/signup", gin.H{"email": "new@example.com", "password": "long enough"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["code"])

	rec = a.do(http.MethodPost, "/api/auth/signup", gin.H{"email": "other@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginProfileLogout(t *testing.T) {
	a := newTestApp(t)
	id := a.registerVerified(t, "ana@example.com", "s3cret-password")

	rec := a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ana@example.com", "password": "s3cret-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sessCookie := cookieNamed(rec, session.InsecureCookieName)
	require.NotNil(t, sessCookie)
	assert.True(t, sessCookie.HttpOnly)

	rec = a.do(http.MethodGet, "/api/profile", nil, sessCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "user", body["role"])

	rec = a.do(http.MethodPost, "/api/auth/logout", nil, sessCookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := cookieNamed(rec, session.InsecureCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	rec = a.do(http.MethodGet, "/api/profile", nil, sessCookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out twice is fine.
	rec = a.do(http.MethodPost, "/api/auth/logout", nil, sessCookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	a := newTestApp(t)
	a.registerVerified(t, "ana@example.com", "s3cret-password")

	rec := a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/signup", gin.H{"email": "pending@example.com", "password": "s3cret-password"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "pending@example.com", "password": "s3cret-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", decode(t, rec)["code"])

	for i := 0; i < 5; i++ {
		rec = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ana@example.com", "password": "wrong-password"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "INVALID_CREDENTIALS", decode(t, rec)["code"])
	}

	rec = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ana@example.com", "password": "s3cret-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ACCOUNT_LOCKED", body["code"])
	assert.Contains(t, body["error"], "15 minute")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLogin_RequiresCSRF(t *testing.T) {
	a := newTestApp(t)
	a.csrfTok = ""

	rec := a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@example.com", "password": "whatever1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CSRF_INVALID", decode(t, rec)["code"])
}

func TestOAuthFlow(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/oauth/login/fake", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	stateCookie := cookieNamed(rec, stateCookieName)
	pkceCookie := cookieNamed(rec, pkceCookieName)
	require.NotNil(t, stateCookie)
	require.NotNil(t, pkceCookie)

	rec = a.do(http.MethodGet, "/oauth/callback/fake?code=good-code&state="+url.QueryEscape(state), nil, stateCookie, pkceCookie)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, pkceChallenge(a.idp.gotVerifier), a.idp.challenge)

	sessCookie := cookieNamed(rec, session.InsecureCookieName)
	require.NotNil(t, sessCookie)

	rec = a.do(http.MethodGet, "/dashboard", nil, sessCookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fed@example.com")

	acct, err := a.repo.FindByIdentity(context.Background(), "fake", "fake-1")
	require.NoError(t, err)
	assert.Equal(t, "fed@example.com", acct.Email)
}

func TestOAuthCallback_Rejects(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/oauth/callback/fake?code=good-code&state=forged", nil,
		&http.Cookie{Name: stateCookieName, Value: "real"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/oauth/callback/fake?code=bad-code&state=s", nil,
		&http.Cookie{Name: stateCookieName, Value: "s"},
		&http.Cookie{Name: pkceCookieName, Value: "v"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/oauth/callback/fake?error=access_denied&state=s", nil,
		&http.Cookie{Name: stateCookieName, Value: "s"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = a.do(http.MethodGet, "/oauth/login/github", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardRedirectsAnonymousBrowser(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fdashboard", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAuthErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, authError(session.ErrUnavailable).Status)
	assert.Equal(t, http.StatusServiceUnavailable, authError(credentials.ErrUnavailable).Status)
	assert.Equal(t, http.StatusInternalServerError, authError(errors.New("boom")).Status)
	assert.Equal(t, "ACCOUNT_LOCKED", string(authError(&credentials.LockedError{RetryAfter: time.Minute}).Code))
}
