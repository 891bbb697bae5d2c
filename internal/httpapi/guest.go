package httpapi

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

// GuestHandlers serves the capability-authenticated guest side of the chat
// API. Every call after thread creation presents (website id, thread
// secret) in place of a login.
type GuestHandlers struct {
	logger    *zap.Logger
	threads   *chat.ThreadStore
	pipeline  *chat.MessagePipeline
	messages  *chat.MessageStore
	typing    *chat.TypingTracker
	sanitizer chat.Sanitizer
}

// NewGuestHandlers creates the guest-facing handler set.
func NewGuestHandlers(logger *zap.Logger, threads *chat.ThreadStore, pipeline *chat.MessagePipeline, messages *chat.MessageStore, typing *chat.TypingTracker, sanitizer chat.Sanitizer) *GuestHandlers {
	return &GuestHandlers{
		logger:    logger,
		threads:   threads,
		pipeline:  pipeline,
		messages:  messages,
		typing:    typing,
		sanitizer: sanitizer,
	}
}

type createThreadRequest struct {
	WebsiteID uint64  `json:"website_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Message   string  `json:"message"`
}

type capabilityRequest struct {
	WebsiteID    uint64 `json:"website_id"`
	ThreadSecret string `json:"thread_secret"`
}

// CreateThread starts a conversation: guest record, thread record, and the
// optional first message. The thread secret in the response is disclosed
// exactly once.
func (h *GuestHandlers) CreateThread(context *gin.Context) {
	var payload createThreadRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid json"})
		return
	}

	firstMessageBody := h.sanitizer.Sanitize(payload.Message)
	if firstMessageBody != "" && len([]rune(firstMessageBody)) < chat.MinimumBodyLength {
		context.JSON(400, gin.H{"success": false, "message": "message is too short"})
		return
	}

	guestInfo := chat.GuestInfo{
		Name:      h.sanitizer.Sanitize(payload.Name),
		Email:     h.sanitizer.Sanitize(payload.Email),
		IP:        context.ClientIP(),
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
	}

	grant, createErr := h.threads.CreateThread(context.Request.Context(), payload.WebsiteID, guestInfo)
	if createErr != nil {
		respondChatError(context, h.logger, createErr)
		return
	}

	if firstMessageBody != "" {
		thread, resolveErr := h.threads.ResolveByCapability(context.Request.Context(), payload.WebsiteID, grant.Secret)
		if resolveErr != nil {
			respondChatError(context, h.logger, resolveErr)
			return
		}
		if _, messageErr := h.pipeline.CreateMessage(context.Request.Context(), thread, model.GuestAuthorID, payload.Message, nil); messageErr != nil {
			respondChatError(context, h.logger, messageErr)
			return
		}
	}

	context.JSON(200, gin.H{
		"success":       true,
		"thread_id":     grant.ThreadID,
		"thread_secret": grant.Secret,
	})
}

// CreateMessage accepts a multipart form: website_id, thread_secret, body,
// and up to three files under "attachments".
func (h *GuestHandlers) CreateMessage(context *gin.Context) {
	websiteID, parseErr := parseIdentifierField(context.PostForm("website_id"))
	threadSecret := strings.TrimSpace(context.PostForm("thread_secret"))
	if parseErr != nil || threadSecret == "" {
		context.JSON(400, gin.H{"success": false, "message": "missing website_id or thread_secret"})
		return
	}

	thread, resolveErr := h.threads.ResolveByCapability(context.Request.Context(), websiteID, threadSecret)
	if resolveErr != nil {
		respondChatError(context, h.logger, resolveErr)
		return
	}

	files, filesErr := collectAttachmentFiles(context)
	if filesErr != nil {
		respondChatError(context, h.logger, filesErr)
		return
	}

	result, createErr := h.pipeline.CreateMessage(context.Request.Context(), thread, model.GuestAuthorID, context.PostForm("body"), files)
	if createErr != nil {
		respondChatError(context, h.logger, createErr)
		return
	}

	context.JSON(200, newMessageCreatedResponse(result))
}

// ListMessages returns one page of the thread's messages with attachments.
func (h *GuestHandlers) ListMessages(context *gin.Context) {
	websiteID, parseErr := parseIdentifierField(context.Query("website_id"))
	threadSecret := strings.TrimSpace(context.Query("thread_secret"))
	if parseErr != nil || threadSecret == "" {
		context.JSON(400, gin.H{"success": false, "message": "missing website_id or thread_secret"})
		return
	}

	thread, resolveErr := h.threads.ResolveByCapability(context.Request.Context(), websiteID, threadSecret)
	if resolveErr != nil {
		respondChatError(context, h.logger, resolveErr)
		return
	}

	h.respondMessagePage(context, thread)
}

// Typing records guest typing activity in the thread.
func (h *GuestHandlers) Typing(context *gin.Context) {
	thread, ok := h.resolveCapabilityBody(context)
	if !ok {
		return
	}
	if touchErr := h.typing.Touch(context.Request.Context(), thread.ID, model.GuestAuthorID); touchErr != nil {
		respondChatError(context, h.logger, touchErr)
		return
	}
	context.JSON(200, gin.H{"success": true})
}

// MarkSeen flags every member-authored message in the thread as seen.
func (h *GuestHandlers) MarkSeen(context *gin.Context) {
	thread, ok := h.resolveCapabilityBody(context)
	if !ok {
		return
	}
	if seenErr := h.messages.MarkSeen(context.Request.Context(), thread.ID, model.GuestAuthorID); seenErr != nil {
		respondChatError(context, h.logger, seenErr)
		return
	}
	context.JSON(200, gin.H{"success": true})
}

func (h *GuestHandlers) resolveCapabilityBody(context *gin.Context) (model.Thread, bool) {
	var payload capabilityRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid json"})
		return model.Thread{}, false
	}
	if payload.WebsiteID == 0 || strings.TrimSpace(payload.ThreadSecret) == "" {
		context.JSON(400, gin.H{"success": false, "message": "missing website_id or thread_secret"})
		return model.Thread{}, false
	}
	thread, resolveErr := h.threads.ResolveByCapability(context.Request.Context(), payload.WebsiteID, strings.TrimSpace(payload.ThreadSecret))
	if resolveErr != nil {
		respondChatError(context, h.logger, resolveErr)
		return model.Thread{}, false
	}
	return thread, true
}

func (h *GuestHandlers) respondMessagePage(context *gin.Context, thread model.Thread) {
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

func parseIdentifierField(value string) (uint64, error) {
	parsed, parseErr := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if parseErr != nil || parsed == 0 {
		return 0, protocolErrorf("invalid identifier")
	}
	return parsed, nil
}

func parsePageParameter(value string) int {
	parsed, parseErr := strconv.Atoi(strings.TrimSpace(value))
	if parseErr != nil || parsed < 1 {
		return 0
	}
	return parsed
}
