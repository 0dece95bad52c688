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

type archiveLister interface {
	ListArchives(ctx context.Context, query dto.ArchiveListQuery) ([]models.QueryChatHistory, int, error)
}

type chatArchiver interface {
	ArchiveChat(ctx context.Context, req dto.ArchiveChatRequest) (*models.QueryChatHistory, error)
}

// ChatArchiveHandler serves archived chat threads.
type ChatArchiveHandler struct {
	lister   archiveLister
	archiver chatArchiver
}

// NewChatArchiveHandler constructs the handler.
func NewChatArchiveHandler(lister archiveLister, archiver chatArchiver) *ChatArchiveHandler {
	return &ChatArchiveHandler{lister: lister, archiver: archiver}
}

// List godoc
// @Summary List chat archives
// @Tags Chat Archives
// @Produce json
// @Param appNo query string false "Application number (substring)"
// @Param customerName query string false "Customer name (substring)"
// @Param markedForTeam query string false "Team"
// @Param archiveReason query string false "Archive reason"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /chat-archives [get]
func (h *ChatArchiveHandler) List(c *gin.Context) {
	if h.lister == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "chat service not configured"))
		return
	}
	var query dto.ArchiveListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	archives, total, err := h.lister.ListArchives(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, archives, total)
}

// Archive godoc
// @Summary Archive a chat thread manually
// @Tags Chat Archives
// @Accept json
// @Produce json
// @Param payload body dto.ArchiveChatRequest true "Archive request"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chat-archives [post]
func (h *ChatArchiveHandler) Archive(c *gin.Context) {
	if h.archiver == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "query service not configured"))
		return
	}
	var req dto.ArchiveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid archive payload"))
		return
	}
	if req.ArchivedBy == "" {
		req.ArchivedBy = actorFromContext(c).Name
	}
	archive, err := h.archiver.ArchiveChat(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archive)
}

// Clear godoc
// @Summary Clear chat archives
// @Description Archives are retained; the endpoint only reports that nothing was cleared.
// @Tags Chat Archives
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat-archives [delete]
func (h *ChatArchiveHandler) Clear(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"cleared": false,
		"message": "chat archives are retained for audit",
	})
}
