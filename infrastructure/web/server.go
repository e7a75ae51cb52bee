// Package web exposes the board over HTTP: JSON endpoints for posting,
// listing and searching messages, plus the static client and a health page.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"gitboard/domain"
	apperrors "gitboard/errors"
	"gitboard/observability"
	"gitboard/repositories"
	"gitboard/services"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type messageDTO struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Lang      string `json:"lang,omitempty"`
	CreatedAt string `json:"created_at"`
	SyncState string `json:"sync_state"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

type postMessageRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type Handler struct {
	service    services.IMessageService
	monitoring *observability.MonitoringManager
	log        *slog.Logger
	staticDir  string
}

func NewHandler(
	service services.IMessageService,
	monitoring *observability.MonitoringManager,
	log *slog.Logger,
	staticDir string,
) *Handler {
	return &Handler{
		service:    service,
		monitoring: monitoring,
		log:        log,
		staticDir:  staticDir,
	}
}

// NewRouter wires routes and middleware. gin's recovery keeps a panicking
// handler from taking the process down; request logging goes through slog.
func NewRouter(h *Handler, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Index)
	r.Static("/static", h.staticDir)

	r.GET("/messages", h.ListMessages)
	r.POST("/messages", h.PostMessage)
	r.GET("/messages/search", h.SearchMessages)

	r.GET("/health", h.HealthCheck)
	r.POST("/admin/rehydrate", h.Rehydrate)
}

func (h *Handler) Index(c *gin.Context) {
	c.File(filepath.Join(h.staticDir, "index.html"))
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid JSON body"})
		return
	}

	message, err := h.service.Submit(c.Request.Context(), domain.PostMessageCommand{
		Author:  req.Author,
		Content: req.Content,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs),
			errors.Is(err, apperrors.ErrEmptyContent),
			errors.Is(err, apperrors.ErrContentTooLong):
			status = http.StatusBadRequest
		default:
			// Cache write failures are fatal to the request by design.
			h.log.Error("Submission failed", "error", err)
		}
		c.JSON(status, APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: toDTO(message)})
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "offset must be a non-negative integer"})
			return
		}
		offset = parsed
	}

	messages, err := h.service.List(c.Request.Context(), domain.ListMessagesCommand{Limit: limit, Offset: offset})
	if err != nil {
		h.log.Error("Listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "failed to list messages"})
		return
	}

	dtos := lo.Map(messages, func(message domain.Message, _ int) messageDTO {
		return toDTO(message)
	})
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"messages": dtos}})
}

func (h *Handler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "q is required"})
		return
	}
	limit, ok := h.parseLimit(c)
	if !ok {
		return
	}

	hits, total, err := h.service.Search(c.Request.Context(), domain.SearchMessagesCommand{Query: query, Limit: limit})
	if err != nil {
		h.log.Error("Search failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "search failed"})
		return
	}

	results := lo.Map(hits, func(hit repositories.SearchHit, _ int) gin.H {
		return gin.H{
			"id":         hit.ID.String(),
			"author":     hit.Author,
			"content":    hit.Content,
			"created_at": hit.CreatedAt.Format(time.RFC3339),
		}
	})
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"total": total, "results": results}})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stats":  h.monitoring.GetLatest(),
	})
}

// Rehydrate rebuilds the local cache from the remote history. Destructive
// for local-only state, hence POST and an admin path.
func (h *Handler) Rehydrate(c *gin.Context) {
	count, err := h.service.Rehydrate(c.Request.Context())
	if err != nil {
		h.log.Error("Rehydration failed", "error", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "rehydration failed"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"messages": count}})
}

func (h *Handler) parseLimit(c *gin.Context) (int, bool) {
	limit := defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "limit must be a positive integer"})
			return 0, false
		}
		limit = parsed
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	return limit, true
}

func toDTO(message domain.Message) messageDTO {
	return messageDTO{
		ID:        message.ID.String(),
		Author:    message.Author,
		Content:   message.Content,
		Lang:      message.Lang,
		CreatedAt: message.CreatedAt.Format(time.RFC3339),
		SyncState: string(message.SyncState),
		CommitSHA: message.CommitSHA,
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
