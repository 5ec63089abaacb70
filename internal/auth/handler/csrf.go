package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/csrf"
)

// cors answers cross-origin callers from the configured allow list only.
func (h *Handler) cors(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if origin == "" || !h.allowedOrigins[origin] {
		return
	}

	hdr := c.Writer.Header()
	hdr.Set("Access-Control-Allow-Origin", origin)
	hdr.Set("Access-Control-Allow-Credentials", "true")
	hdr.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type, "+csrf.HeaderName)
	hdr.Add("Vary", "Origin")
}

// CSRFToken mints a token, returns it and mirrors it into a strict cookie.
func (h *Handler) CSRFToken(c *gin.Context) {
	h.cors(c)

	tok, err := h.csrf.Mint()
	if err != nil {
		h.fail(c, apierror.Internal(err))
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	c.JSON(http.StatusOK, gin.H{"csrfToken": tok})
}

func (h *Handler) CSRFPreflight(c *gin.Context) {
	h.cors(c)
	c.Status(http.StatusNoContent)
}

type validateRequest struct {
	Token string `json:"token"`
}

func (h *Handler) ValidateCSRF(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		h.fail(c, apierror.BadRequest("token is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": h.csrf.Verify(req.Token)})
}
