package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paincake00/geotrack/internal/entity"
)

func (h *Handler) runBackfill(c *gin.Context) {
	kind := entity.RegionKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be city, country or location"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	n, err := h.Backfill.Region(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"kind": kind, "id": id, "updated": n})
}
