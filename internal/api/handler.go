// Package api serves the assistant over HTTP: one endpoint per turn, plus
// session inspection, registry statistics and the usual health checks.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/composer"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/session"
)

// Sessions is the turn-level view of the session manager.
type Sessions interface {
	Turn(ctx context.Context, id, text, audioTag string) (*pipeline.TurnResult, error)
	State(ctx context.Context, id string) (models.ConversationState, error)
	Reset(ctx context.Context, id string) error
}

// StatsFunc computes the registry statistics.
type StatsFunc func(ctx context.Context) (models.RegistryStats, error)

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

type TurnRequest struct {
	Text     string `json:"text"`
	AudioTag string `json:"audio_tag,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type StatsResponse struct {
	Stats   models.RegistryStats   `json:"stats"`
	Summary models.ResponsePayload `json:"summary"`
}

type Handler struct {
	sessions Sessions
	stats    StatsFunc
	composer *composer.Composer
	checks   map[string]Pinger
	now      func() time.Time
	logger   logger.Logger
}

func NewHandler(sessions Sessions, stats StatsFunc, c *composer.Composer, checks map[string]Pinger, log logger.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		stats:    stats,
		composer: c,
		checks:   checks,
		now:      time.Now,
		logger:   log.With(map[string]interface{}{"component": "api"}),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": h.now().UTC().Format(time.RFC3339)})
}

// Ready pings every dependency and reports each one.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, dep := range h.checks {
		if err := dep.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "dependencies": deps, "time": h.now().UTC().Format(time.RFC3339)})
}

func (h *Handler) SubmitTurn(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	res, err := h.sessions.Turn(c.Request.Context(), id, req.Text, req.AudioTag)
	if err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	state, err := h.sessions.State(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": state})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.Reset(c.Request.Context(), id); err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats returns the registry totals with a sentence in the requested
// language (?lang=ar|ur|en).
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats(c.Request.Context())
	if err != nil {
		h.logger.Error("registry stats failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "registry unavailable", Code: "QUERY_FAILED"})
		return
	}

	lang := models.ParseLanguage(c.Query("lang"))
	c.JSON(http.StatusOK, StatsResponse{Stats: stats, Summary: h.composer.Stats(lang, stats)})
}

func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !sessionIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id", Code: "BAD_REQUEST"})
		return "", false
	}
	return id, true
}

func (h *Handler) sessionError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "a turn is already in progress for this session", Code: "SESSION_BUSY"})
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		c.Status(499)
	default:
		h.logger.Error("session request failed", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session store unavailable", Code: "SESSION_STORE_UNAVAILABLE"})
	}
}
