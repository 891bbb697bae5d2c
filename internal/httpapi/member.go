package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

// MemberHandlers serves the authenticated member (website owner) side of
// the chat API. The member id comes from the bearer-token middleware.
type MemberHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
	threads  *chat.ThreadStore
	pipeline *chat.MessagePipeline
	messages *chat.MessageStore
	typing   *chat.TypingTracker
}

// NewMemberHandlers creates the member-facing handler set.
func NewMemberHandlers(database *gorm.DB, logger *zap.Logger, threads *chat.ThreadStore, pipeline *chat.MessagePipeline, messages *chat.MessageStore, typing *chat.TypingTracker) *MemberHandlers {
	return &MemberHandlers{
		database: database,
		logger:   logger,
		threads:  threads,
		pipeline: pipeline,
		messages: messages,
		typing:   typing,
	}
}

type threadResponse struct {
	ID         uint64 `json:"id"`
	WebsiteID  uint64 `json:"website_id"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	CreatedAt  int64  `json:"created_at"`
	HasUnseen  bool   `json:"has_unseen"`
}

// ListThreads returns the member's inbox, newest thread first, with the
// per-thread unseen flag the dashboard badge uses.
func (h *MemberHandlers) ListThreads(context *gin.Context) {
	memberID, ok := currentMemberID(context)
	if !ok {
		context.JSON(401, gin.H{"success": false, "message": "missing bearer token"})
		return
	}

	threads, listErr := h.threads.ListByOwner(context.Request.Context(), memberID)
	if listErr != nil {
		respondChatError(context, h.logger, listErr)
		return
	}

	responses := make([]threadResponse, 0, len(threads))
	for _, thread := range threads {
		var guest model.Guest
		if guestErr := h.database.WithContext(context.Request.Context()).
			First(&guest, "id = ?", thread.GuestID).Error; guestErr != nil {
			respondChatError(context, h.logger, guestErr)
			return
		}
		unseen, unseenErr := h.messages.HasUnseen(context.Request.Context(), thread.ID, memberID)
		if unseenErr != nil {
			respondChatError(context, h.logger, unseenErr)
			return
		}
		responses = append(responses, threadResponse{
			ID:         thread.ID,
			WebsiteID:  thread.WebsiteID,
			GuestName:  guest.Name,
			GuestEmail: guest.Email,
			CreatedAt:  thread.CreatedAt.Unix(),
			HasUnseen:  unseen,
		})
	}

	context.JSON(200, gin.H{"success": true, "threads": responses})
}

// ListMessages returns one page of an owned thread's messages.
func (h *MemberHandlers) ListMessages(context *gin.Context) {
	thread, _, ok := h.resolveOwnedThread(context)
	if !ok {
		return
	}

	page := parsePageParameter(context.Query("page"))
	perPage := parsePageParameter(context.Query("per_page"))

	messages, listErr := h.messages.List(context.Request.Context(), thread.ID, page, perPage)
	if listErr != nil {
		respondChatError(context, h.logger, listErr)
		return
	}

	messageIDs := make([]uint64, 0, len(messages))
	for _, message := range messages {
		messageIDs = append(messageIDs, message.ID)
	}
	attachmentsByMessage, attachmentsErr := h.messages.AttachmentsByMessage(context.Request.Context(), messageIDs)
	if attachmentsErr != nil {
		respondChatError(context, h.logger, attachmentsErr)
		return
	}

	context.JSON(200, gin.H{
		"success":   true,
		"thread_id": thread.ID,
		"messages":  buildMessageResponses(messages, attachmentsByMessage),
	})
}

// CreateMessage accepts a multipart form: body plus up to three files under
// "attachments". The author is the authenticated member.
func (h *MemberHandlers) CreateMessage(context *gin.Context) {
	thread, memberID, ok := h.resolveOwnedThread(context)
	if !ok {
		return
	}

	files, filesErr := collectAttachmentFiles(context)
	if filesErr != nil {
		respondChatError(context, h.logger, filesErr)
		return
	}

	result, createErr := h.pipeline.CreateMessage(context.Request.Context(), thread, memberID, context.PostForm("body"), files)
	if createErr != nil {
		respondChatError(context, h.logger, createErr)
		return
	}

	context.JSON(200, newMessageCreatedResponse(result))
}

// Typing records member typing activity in the owned thread.
func (h *MemberHandlers) Typing(context *gin.Context) {
	thread, memberID, ok := h.resolveOwnedThread(context)
	if !ok {
		return
	}
	if touchErr := h.typing.Touch(context.Request.Context(), thread.ID, memberID); touchErr != nil {
		respondChatError(context, h.logger, touchErr)
		return
	}
	context.JSON(200, gin.H{"success": true})
}

// MarkSeen flags every guest-authored message in the owned thread as seen.
func (h *MemberHandlers) MarkSeen(context *gin.Context) {
	thread, memberID, ok := h.resolveOwnedThread(context)
	if !ok {
		return
	}
	if seenErr := h.messages.MarkSeen(context.Request.Context(), thread.ID, memberID); seenErr != nil {
		respondChatError(context, h.logger, seenErr)
		return
	}
	context.JSON(200, gin.H{"success": true})
}

// DeleteThread removes an owned thread and everything under it.
func (h *MemberHandlers) DeleteThread(context *gin.Context) {
	memberID, ok := currentMemberID(context)
	if !ok {
		context.JSON(401, gin.H{"success": false, "message": "missing bearer token"})
		return
	}
	threadID, parseErr := parseIdentifierField(context.Param("id"))
	if parseErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid thread id"})
		return
	}
	if deleteErr := h.threads.Delete(context.Request.Context(), threadID, memberID); deleteErr != nil {
		respondChatError(context, h.logger, deleteErr)
		return
	}
	context.JSON(200, gin.H{"success": true})
}

// Unseen answers the cross-thread inbox badge query.
func (h *MemberHandlers) Unseen(context *gin.Context) {
	memberID, ok := currentMemberID(context)
	if !ok {
		context.JSON(401, gin.H{"success": false, "message": "missing bearer token"})
		return
	}
	unseen, unseenErr := h.messages.HasUnseenAnywhere(context.Request.Context(), memberID)
	if unseenErr != nil {
		respondChatError(context, h.logger, unseenErr)
		return
	}
	unseenFlag := 0
	if unseen {
		unseenFlag = 1
	}
	context.JSON(200, gin.H{"success": true, "unseen": unseenFlag})
}

func (h *MemberHandlers) resolveOwnedThread(context *gin.Context) (model.Thread, uint64, bool) {
	memberID, ok := currentMemberID(context)
	if !ok {
		context.JSON(401, gin.H{"success": false, "message": "missing bearer token"})
		return model.Thread{}, 0, false
	}
	threadID, parseErr := parseIdentifierField(context.Param("id"))
	if parseErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid thread id"})
		return model.Thread{}, 0, false
	}
	thread, resolveErr := h.threads.ResolveByOwnership(context.Request.Context(), threadID, memberID)
	if resolveErr != nil {
		respondChatError(context, h.logger, resolveErr)
		return model.Thread{}, 0, false
	}
	return thread, memberID, true
}
