package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/middleware"
)

// Profile returns the caller as confirmed by the pipeline.
func (h *Handler) Profile(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c.Request.Context())
	if !ok {
		h.fail(c, apierror.Unauthenticated())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    p.UserID,
		"email": p.Email,
		"role":  p.Role,
	})
}

func (h *Handler) AdminStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.providers.Names(),
	})
}

func (h *Handler) Dashboard(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c.Request.Context())
	if p == nil {
		h.fail(c, apierror.Unauthenticated())
		return
	}
	c.String(http.StatusOK, "Welcome back, %s", p.Email)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
