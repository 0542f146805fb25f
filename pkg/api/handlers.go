package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jechocarlos/queenbee/pkg/database"
	"github.com/jechocarlos/queenbee/pkg/models"
	"github.com/jechocarlos/queenbee/pkg/store"
	"github.com/jechocarlos/queenbee/pkg/version"
)

type askRequest struct {
	Input string `json:"input" binding:"required"`
}

type createTaskRequest struct {
	Input     string `json:"input" binding:"required"`
	Context   string `json:"context"`
	MaxRounds int    `json:"max_rounds"`
}

// createSession handles POST /api/v1/sessions: a new session row plus its
// background worker.
func (s *Server) createSession(c *gin.Context) {
	sessionID := uuid.NewString()
	if err := s.deps.Sessions.Create(c.Request.Context(), sessionID); err != nil {
		slog.Error("Failed to create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	s.deps.Supervisor.StartWorker(s.deps.WorkerCtx, sessionID)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"status":     models.SessionStatusActive,
	})
}

// terminateSession handles DELETE /api/v1/sessions/:id: marks the session
// terminated and stops its worker.
func (s *Server) terminateSession(c *gin.Context) {
	sessionID := c.Param("id")

	if err := s.deps.Sessions.Terminate(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		slog.Error("Failed to terminate session", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to terminate session"})
		return
	}
	s.deps.Supervisor.StopWorker(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"status":     models.SessionStatusTerminated,
	})
}

// sessionHistory handles GET /api/v1/sessions/:id/history.
func (s *Server) sessionHistory(c *gin.Context) {
	sessionID := c.Param("id")

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	if _, err := s.deps.Sessions.Status(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	messages, err := s.deps.Chat.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		slog.Error("Failed to load chat history", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// ask handles POST /api/v1/sessions/:id/ask, the orchestrator question flow.
func (s *Server) ask(c *gin.Context) {
	sessionID := c.Param("id")

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	answer, err := s.deps.Orchestrator.Ask(c.Request.Context(), sessionID, req.Input)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, answer)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, ErrSessionNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrDeliberationTimeout):
		// The discussion keeps running; hand back the task handle.
		c.JSON(http.StatusAccepted, answer)
	default:
		slog.Error("Ask failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// createTask handles POST /api/v1/sessions/:id/tasks: enqueue a deliberation
// without waiting for it.
func (s *Server) createTask(c *gin.Context) {
	sessionID := c.Param("id")

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	status, err := s.deps.Sessions.Status(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	if status != models.SessionStatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not active"})
		return
	}

	maxRounds := req.MaxRounds
	if maxRounds < 1 {
		maxRounds = s.cfg.Consensus.DiscussionRounds
	}
	desc, err := models.TaskDescription{
		Type:      "collaborative_discussion",
		Input:     req.Input,
		Context:   req.Context,
		MaxRounds: maxRounds,
	}.Encode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task"})
		return
	}

	task := &models.TaskRecord{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Status:      models.TaskStatusPending,
		Description: desc,
		AssignedBy:  "api",
	}
	if err := s.deps.Tasks.Create(c.Request.Context(), task); err != nil {
		slog.Error("Failed to create task", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task_id":    task.ID,
		"session_id": sessionID,
		"status":     models.TaskStatusPending,
	})
}

// getTask handles GET /api/v1/tasks/:id. The result field carries the live
// snapshot while the task runs and the final document afterwards.
func (s *Server) getTask(c *gin.Context) {
	task, err := s.deps.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// health handles GET /healthz.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	payload := gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"workers": s.deps.Supervisor.Health(),
	}

	if s.deps.DB != nil {
		dbHealth, err := database.Health(ctx, s.deps.DB)
		payload["database"] = dbHealth
		if err != nil {
			payload["status"] = "unhealthy"
			payload["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, payload)
			return
		}
	}

	c.JSON(http.StatusOK, payload)
}
