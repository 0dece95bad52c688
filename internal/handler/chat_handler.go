package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

type chatService interface {
	GetMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error)
	StoreMessage(ctx context.Context, queryID string, req dto.PostChatMessageRequest) (*models.ChatMessage, bool, error)
}

// ChatHandler serves query-scoped chat threads.
type ChatHandler struct {
	service chatService
}

// NewChatHandler constructs the handler.
func NewChatHandler(service chatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// List godoc
// @Summary Chat thread of a query
// @Tags Chat
// @Produce json
// @Param queryId path string true "Query ID"
// @Success 200 {object} response.Envelope
// @Router /queries/{queryId}/chat [get]
func (h *ChatHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "chat service not configured"))
		return
	}
	messages, err := h.service.GetMessages(c.Request.Context(), c.Param("queryId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, messages, len(messages))
}

// Post godoc
// @Summary Append a chat message
// @Description A repeat of the same text by the same sender within a few seconds returns the original message with 200.
// @Tags Chat
// @Accept json
// @Produce json
// @Param queryId path string true "Query ID"
// @Param payload body dto.PostChatMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /queries/{queryId}/chat [post]
func (h *ChatHandler) Post(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "chat service not configured"))
		return
	}
	var req dto.PostChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid chat payload"))
		return
	}
	msg, duplicate, err := h.service.StoreMessage(c.Request.Context(), c.Param("queryId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if duplicate {
		response.JSON(c, http.StatusOK, msg)
		return
	}
	response.Created(c, msg)
}
