package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/runtrack-go/internal/service"
	"github.com/jengzang/runtrack-go/pkg/response"
)

// OutboxHandler exposes the queue of runs awaiting delivery
type OutboxHandler struct {
	outboxService *service.OutboxService
}

// NewOutboxHandler creates a new outbox handler. A nil service means the
// outbox is disabled.
func NewOutboxHandler(outboxService *service.OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxService: outboxService}
}

// List handles GET /api/v1/outbox
func (h *OutboxHandler) List(c *gin.Context) {
	if h.outboxService == nil {
		response.ServiceUnavailable(c, "Outbox is disabled")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		response.BadRequest(c, "Invalid limit")
		return
	}

	entries, err := h.outboxService.List(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, entries)
}

// Flush handles POST /api/v1/outbox/flush
func (h *OutboxHandler) Flush(c *gin.Context) {
	if h.outboxService == nil {
		response.ServiceUnavailable(c, "Outbox is disabled")
		return
	}

	result, err := h.outboxService.Flush(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, result)
}
