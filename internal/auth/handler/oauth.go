package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth/resolver"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
)

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		h.fail(c, apierror.BadRequest("unknown oauth provider"))
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		h.fail(c, apierror.Internal(err))
		return
	}
	_, codeChallenge, err := h.generatePKCE(c)
	if err != nil {
		h.fail(c, apierror.Internal(err))
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		h.fail(c, apierror.BadRequest("unknown oauth provider"))
		return
	}

	if !validateState(c) {
		h.fail(c, apierror.Unauthenticated())
		return
	}
	h.clearFlowCookie(c, stateCookieName)

	// CASE 1: provider reported an error (user cancelled, registration flow)
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})

		// Start a fresh auth flow.
		c.Redirect(http.StatusFound, h.loginPath)
		return
	}

	// CASE 2: normal callback
	code := c.Query("code")
	if code == "" {
		h.fail(c, apierror.BadRequest("missing authorization code"))
		return
	}

	codeVerifier := getPKCEVerifier(c)
	if codeVerifier == "" {
		h.fail(c, apierror.Unauthenticated())
		return
	}
	h.clearFlowCookie(c, pkceCookieName)

	identity, err := p.ExchangeCode(c.Request.Context(), code, codeVerifier)
	if err != nil {
		logger.Warn("oidc code exchange failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		h.fail(c, apierror.Unauthenticated())
		return
	}

	acct, err := h.resolver.Resolve(c.Request.Context(), identity)
	if errors.Is(err, resolver.ErrUnverifiedLink) {
		h.fail(c, apierror.EmailNotVerified())
		return
	}
	if err != nil {
		h.fail(c, apierror.Unavailable(err))
		return
	}

	if _, err := h.startSession(c, acct.ID, acct.Email, acct.Role); err != nil {
		h.fail(c, authError(err))
		return
	}

	c.Redirect(http.StatusFound, h.afterLoginPath)
}
