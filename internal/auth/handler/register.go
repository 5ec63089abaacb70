package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an unverified account. No session is started: the
// account cannot sign in until its email address is confirmed.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apierror.BadRequest("email and password are required"))
		return
	}

	userID, err := h.credentials.Register(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if err != nil {
		h.fail(c, authError(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":        "registered",
		"userId":        userID,
		"emailVerified": false,
	})
}
