package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/apierror"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apierror.BadRequest("email and password are required"))
		return
	}

	res, err := h.credentials.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if err != nil {
		h.fail(c, authError(err))
		return
	}

	sess, err := h.startSession(c, res.UserID, res.Email, res.Role)
	if err != nil {
		h.fail(c, authError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "logged_in",
		"user": gin.H{
			"id":    res.UserID,
			"email": res.Email,
			"role":  res.Role,
		},
		"expiresAt": sess.ExpiresAt,
	})
}
