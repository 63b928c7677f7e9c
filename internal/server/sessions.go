package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimcheck/internal/session"
)

// SessionHandler serves the session API
type SessionHandler struct {
	sessions *session.Controller
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler
func NewSessionHandler(sessions *session.Controller, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// SubmitRequest is the body of a session submission
type SubmitRequest struct {
	Input string `json:"input" binding:"required"`
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'input' in body"})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.internalError(c, "create session", err)
		return
	}

	h.submit(c, sess.ID, req.Input, http.StatusCreated)
}

// Resubmit handles PUT /api/sessions/:id, replacing the session content
func (h *SessionHandler) Resubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'input' in body"})
		return
	}
	h.submit(c, c.Param("id"), req.Input, http.StatusOK)
}

func (h *SessionHandler) submit(c *gin.Context, id, input string, status int) {
	// Extraction outlives a disconnected client so the session is not left
	// half-reset
	sess, err := h.sessions.Submit(context.WithoutCancel(c.Request.Context()), id, input)
	switch {
	case err == nil:
		c.JSON(status, sess)
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'input' in body"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Fact check failed: " + unwrapFactCheck(err)})
	}
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		h.internalError(c, "load session", err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Delete handles DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	err := h.sessions.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	default:
		h.internalError(c, "delete session", err)
	}
}

// CheckClaim handles POST /api/sessions/:id/claims/:claimId/check. The check
// runs in the background; poll the session for its result.
func (h *SessionHandler) CheckClaim(c *gin.Context) {
	claimID, err := strconv.Atoi(c.Param("claimId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid claim id"})
		return
	}

	err = h.sessions.StartCheck(c.Request.Context(), c.Param("id"), claimID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "running", "claim_id": claimID})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrClaimNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Claim not found"})
	case errors.Is(err, session.ErrCheckInProgress), errors.Is(err, session.ErrAlreadyChecked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.internalError(c, "start claim check", err)
	}
}

// Summarize handles POST /api/sessions/:id/summary
func (h *SessionHandler) Summarize(c *gin.Context) {
	summary, err := h.sessions.Summarize(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"summary": summary})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrNoSummarizer):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		h.logger.Error("summarize session", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (h *SessionHandler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// unwrapFactCheck strips the controller's "fact check failed: " prefix
func unwrapFactCheck(err error) string {
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return err.Error()
}
