package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getPresence(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	p, ok := h.Presence.Current(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fix observed for user"})
		return
	}

	c.JSON(http.StatusOK, p)
}
