package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paincake00/geotrack/internal/entity"
)

type CreateTrackingInput struct {
	UserID    int64     `json:"user_id" binding:"required"`
	Latitude  *float64  `json:"latitude" binding:"required"`
	Longitude *float64  `json:"longitude" binding:"required"`
	Accuracy  *float64  `json:"accuracy"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

func (h *Handler) createTracking(c *gin.Context) {
	var input CreateTrackingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fix := &entity.Fix{
		UserID:    input.UserID,
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
		Accuracy:  input.Accuracy,
		Altitude:  input.Altitude,
		Speed:     input.Speed,
		Timestamp: input.Timestamp,
	}
	if err := h.Tracking.Ingest(c.Request.Context(), fix); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fix)
}

func (h *Handler) getTracking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	fix, err := h.Tracking.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fix)
}

func (h *Handler) latestTracking(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	fix, err := h.Tracking.Latest(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fix)
}

// streamTracking sends broadcast fixes as Server-Sent Events. With user_id
// set the latest stored fix of that user goes first and other users are
// filtered out.
func (h *Handler) streamTracking(c *gin.Context) {
	if h.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}

	var userID int64
	if q := c.Query("user_id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = id
	}

	ctx := c.Request.Context()
	msgs, err := h.Stream.Subscribe(ctx, h.StreamChannel)
	if err != nil {
		h.Logger.Error("stream_subscribe_error", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	if userID != 0 {
		if latest, err := h.Tracking.Latest(ctx, userID); err == nil {
			c.SSEvent("tracking", latest)
			c.Writer.Flush()
		}
	}

	c.Stream(func(w io.Writer) bool {
		msg, ok := <-msgs
		if !ok {
			return false
		}
		if userID != 0 && !fixOf(msg, userID) {
			return true
		}
		c.SSEvent("tracking", msg)
		return true
	})
}

func fixOf(msg string, userID int64) bool {
	var f struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(msg), &f); err != nil {
		return false
	}
	return f.UserID == userID
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrInvalidFix):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
