package httpapi

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

const (
	logEventRequestFailed = "request_failed"

	messageInternalError = "something went wrong, please retry"
)

// respondChatError translates the chat error taxonomy into an HTTP status
// and a display-safe body. Unexpected errors are logged and masked.
func respondChatError(context *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation) || errors.Is(err, chat.ErrProtocol):
		context.JSON(400, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		context.JSON(404, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, chat.ErrPermission):
		context.JSON(403, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, chat.ErrTransientIO):
		context.JSON(502, gin.H{"success": false, "message": err.Error()})
	default:
		logger.Warn(logEventRequestFailed, zap.Error(err), zap.String("path", context.Request.URL.Path))
		context.JSON(500, gin.H{"success": false, "message": messageInternalError})
	}
}

type attachmentResponse struct {
	ID        uint64 `json:"id"`
	Link      string `json:"link"`
	CreatedAt int64  `json:"created_at"`
}

type messageResponse struct {
	ID             uint64               `json:"id"`
	ThreadID       uint64               `json:"thread_id"`
	AuthorMemberID uint64               `json:"author_member_id"`
	Body           string               `json:"body"`
	Seen           bool                 `json:"seen"`
	CreatedAt      int64                `json:"created_at"`
	Attachments    []attachmentResponse `json:"attachments"`
}

func buildMessageResponses(messages []model.Message, attachmentsByMessage map[uint64][]model.Attachment) []messageResponse {
	responses := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		response := messageResponse{
			ID:             message.ID,
			ThreadID:       message.ThreadID,
			AuthorMemberID: message.AuthorMemberID,
			Body:           message.Body,
			Seen:           message.Seen,
			CreatedAt:      message.CreatedAt.Unix(),
			Attachments:    []attachmentResponse{},
		}
		for _, attachment := range attachmentsByMessage[message.ID] {
			response.Attachments = append(response.Attachments, attachmentResponse{
				ID:        attachment.ID,
				Link:      attachment.Link,
				CreatedAt: attachment.CreatedAt.Unix(),
			})
		}
		responses = append(responses, response)
	}
	return responses
}

func newMessageCreatedResponse(result chat.CreateMessageResult) gin.H {
	attachments := make([]attachmentResponse, 0, len(result.Attachments))
	for _, attachment := range result.Attachments {
		attachments = append(attachments, attachmentResponse{
			ID:        attachment.ID,
			Link:      attachment.Link,
			CreatedAt: attachment.CreatedAt.Unix(),
		})
	}
	return gin.H{
		"success":     true,
		"message_id":  result.Message.ID,
		"attachments": attachments,
	}
}

func protocolErrorf(format string, arguments ...any) error {
	return fmt.Errorf("%w: %s", chat.ErrProtocol, fmt.Sprintf(format, arguments...))
}
