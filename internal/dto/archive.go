package dto

import "github.com/noah-isme/loan-query-api/internal/models"

// PostChatMessageRequest appends a message to a query thread.
type PostChatMessageRequest struct {
	Message    string `json:"message" validate:"required"`
	Sender     string `json:"sender" validate:"required"`
	SenderRole string `json:"senderRole" validate:"required"`
	Team       string `json:"team"`
}

// ArchiveChatRequest archives a thread manually.
type ArchiveChatRequest struct {
	QueryID    models.QueryRef `json:"queryId" validate:"required"`
	Reason     string          `json:"reason"`
	ArchivedBy string          `json:"archivedBy"`
}

// ArchiveListQuery mirrors supported archive filters.
type ArchiveListQuery struct {
	AppNo         string `form:"appNo"`
	CustomerName  string `form:"customerName"`
	MarkedForTeam string `form:"markedForTeam"`
	ArchiveReason string `form:"archiveReason"`
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
}
