package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

// queueSessionRequest is the body for POST /api/v1/sessions/queue.
type queueSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Priority  string `json:"priority"`
}

// queueSession adds an existing session to the priority queue.
func (r *Router) queueSession(c *gin.Context) {
	var req queueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	priority := models.Priority(req.Priority)
	if req.Priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "priority must be one of: low, normal, high",
		})
		return
	}

	if _, err := r.store.GetSession(c.Request.Context(), req.SessionID); err != nil {
		handleSessionError(c, err)
		return
	}

	if err := r.queue.Enqueue(c.Request.Context(), req.SessionID, priority); err != nil {
		r.logger.Error("failed to enqueue session",
			logger.String("session_id", req.SessionID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue session"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": req.SessionID,
		"priority":   string(priority),
		"queued":     true,
	})
}

// processSession triggers immediate processing of a session, bypassing the
// queue. The session is validated synchronously; processing itself runs in
// the background.
func (r *Router) processSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := r.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	if session.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Session already finished",
			"status": string(session.Status),
		})
		return
	}

	go func() {
		if err := r.processor.Process(context.Background(), sessionID); err != nil {
			r.logger.Error("on-demand session processing failed",
				logger.String("session_id", sessionID),
				logger.Error(err),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sessionID,
		"processing": true,
	})
}

// getSessionStatus returns the lifecycle state of a session.
func (r *Router) getSessionStatus(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := r.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		handleSessionError(c, err)
		return
	}

	resp := gin.H{
		"session_id": session.ID,
		"project_id": session.ProjectID,
		"status":     string(session.Status),
	}
	if session.StartedAt != nil {
		resp["started_at"] = session.StartedAt
	}
	if session.CompletedAt != nil {
		resp["completed_at"] = session.CompletedAt
	}
	if session.ErrorMessage != nil {
		resp["error_message"] = *session.ErrorMessage
	}

	c.JSON(http.StatusOK, resp)
}

// getQueueStats reports pending and in-flight counts.
func (r *Router) getQueueStats(c *gin.Context) {
	stats, err := r.queue.Stats(c.Request.Context())
	if err != nil {
		r.logger.Error("failed to read queue stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":   stats.Pending,
		"in_flight": stats.InFlight,
	})
}

// listModels returns the configured model names.
func (r *Router) listModels(c *gin.Context) {
	names := r.registry.Models()
	c.JSON(http.StatusOK, gin.H{
		"models": names,
		"count":  len(names),
	})
}

// handleSessionError maps store errors to HTTP responses.
func handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
}
