package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docfoundry/docfoundry/internal/docs"
)

// DocsHandler exposes documentation lookup and search endpoints
type DocsHandler struct {
	docs *docs.Service
}

// NewDocsHandler creates a new docs handler
func NewDocsHandler(service *docs.Service) *DocsHandler {
	return &DocsHandler{docs: service}
}

// GetDocument handles GET /api/v1/docs/:id
func (h *DocsHandler) GetDocument(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequestResponse(c, "document id is required")
		return
	}

	doc, err := h.docs.GetDocument(c.Request.Context(), id)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, doc)
}

// Search handles GET /api/v1/search?q=...&limit=...
func (h *DocsHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		BadRequestResponse(c, "query parameter 'q' is required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			BadRequestResponse(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := h.docs.Search(c.Request.Context(), query, limit)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
