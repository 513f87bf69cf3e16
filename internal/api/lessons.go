package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docfoundry/docfoundry/internal/lessons"
)

// LessonsHandler exposes the distilled-lesson store over HTTP
type LessonsHandler struct {
	store *lessons.Store
}

// NewLessonsHandler creates a new lessons handler
func NewLessonsHandler(store *lessons.Store) *LessonsHandler {
	return &LessonsHandler{store: store}
}

// CreateLessonRequest represents a request to record a lesson
type CreateLessonRequest struct {
	Topic       string `json:"topic" binding:"required"`
	Content     string `json:"content" binding:"required"`
	SourceDocID string `json:"source_doc_id"`
}

// Create handles POST /api/v1/lessons
func (h *LessonsHandler) Create(c *gin.Context) {
	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "invalid request body: "+err.Error())
		return
	}

	lesson := &lessons.Lesson{
		Topic:       req.Topic,
		Content:     req.Content,
		SourceDocID: req.SourceDocID,
	}

	if err := h.store.Save(c.Request.Context(), lesson); err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	CreatedResponse(c, lesson)
}

// Get handles GET /api/v1/lessons/:id
func (h *LessonsHandler) Get(c *gin.Context) {
	lesson, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, lesson)
}

// List handles GET /api/v1/lessons?limit=...
func (h *LessonsHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			BadRequestResponse(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{
		"lessons": items,
		"count":   len(items),
	})
}
