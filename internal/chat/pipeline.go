package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

const (
	// MaxAttachmentsPerMessage bounds the attachment files accepted per call.
	MaxAttachmentsPerMessage = 3
	// MinimumBodyLength is the shortest accepted non-empty sanitized body.
	MinimumBodyLength = 2

	logEventAttachmentUpload  = "attachment_upload_failed"
	logEventAttachmentPersist = "attachment_persist_failed"
	logEventMessageRollback   = "message_rollback"
)

// AttachmentFile is one uploaded file accompanying a message.
type AttachmentFile struct {
	Name    string
	Content []byte
}

// CreateMessageResult reports what the pipeline persisted.
type CreateMessageResult struct {
	Message     model.Message
	Attachments []model.Attachment
}

// MessagePipeline orchestrates validation, persistence, and attachment
// linkage for new messages. Thread resolution happens before the pipeline
// is invoked; the resolution path determines the author id.
type MessagePipeline struct {
	database  *gorm.DB
	logger    *zap.Logger
	websites  WebsiteDirectory
	sanitizer Sanitizer
	uploader  Uploader
}

// NewMessagePipeline creates a MessagePipeline.
func NewMessagePipeline(database *gorm.DB, logger *zap.Logger, websites WebsiteDirectory, sanitizer Sanitizer, uploader Uploader) *MessagePipeline {
	return &MessagePipeline{
		database:  database,
		logger:    logger,
		websites:  websites,
		sanitizer: sanitizer,
		uploader:  uploader,
	}
}

// CreateMessage validates and persists one message with up to three
// attachments. Attachment uploads are best-effort per file, but a message
// that requested attachments may not survive with zero of them: if none
// persist, the message row is rolled back and the call fails.
func (pipeline *MessagePipeline) CreateMessage(ctx context.Context, thread model.Thread, authorMemberID uint64, body string, files []AttachmentFile) (CreateMessageResult, error) {
	// Attachment count is checked before any I/O is attempted.
	if len(files) > MaxAttachmentsPerMessage {
		return CreateMessageResult{}, fmt.Errorf("%w: at most %d attachments per message", ErrValidation, MaxAttachmentsPerMessage)
	}

	enabled, enabledErr := pipeline.websites.IsEnabled(ctx, thread.WebsiteID)
	if enabledErr != nil {
		return CreateMessageResult{}, enabledErr
	}
	if !enabled {
		return CreateMessageResult{}, fmt.Errorf("%w: chat is disabled for this website", ErrPermission)
	}

	sanitizedBody := pipeline.sanitizer.Sanitize(body)
	if sanitizedBody == "" && len(files) == 0 {
		return CreateMessageResult{}, fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if sanitizedBody != "" && len([]rune(sanitizedBody)) < MinimumBodyLength {
		return CreateMessageResult{}, fmt.Errorf("%w: message is too short", ErrValidation)
	}

	// The message row is the anchor even for attachments-only calls.
	message := model.Message{
		ThreadID:       thread.ID,
		AuthorMemberID: authorMemberID,
		Body:           sanitizedBody,
	}
	if createErr := pipeline.database.WithContext(ctx).Create(&message).Error; createErr != nil {
		return CreateMessageResult{}, createErr
	}

	result := CreateMessageResult{Message: message}
	for _, file := range files {
		link, uploadErr := pipeline.uploader.Upload(ctx, file.Name, file.Content)
		if uploadErr != nil {
			pipeline.logger.Warn(logEventAttachmentUpload,
				zap.Error(uploadErr),
				zap.Uint64("message_id", message.ID),
				zap.String("file_name", file.Name))
			continue
		}

		attachment := model.Attachment{MessageID: message.ID, Link: link}
		if persistErr := pipeline.database.WithContext(ctx).Create(&attachment).Error; persistErr != nil {
			pipeline.logger.Warn(logEventAttachmentPersist,
				zap.Error(persistErr),
				zap.Uint64("message_id", message.ID))
			continue
		}
		result.Attachments = append(result.Attachments, attachment)
	}

	if len(files) > 0 && len(result.Attachments) == 0 {
		if rollbackErr := pipeline.database.WithContext(ctx).
			Delete(&model.Message{}, "id = ?", message.ID).Error; rollbackErr != nil {
			pipeline.logger.Error(logEventMessageRollback,
				zap.Error(rollbackErr),
				zap.Uint64("message_id", message.ID))
		}
		return CreateMessageResult{}, fmt.Errorf("%w: no attachment could be stored", ErrTransientIO)
	}

	return result, nil
}
