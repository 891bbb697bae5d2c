package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

const (
	defaultMessagesPerPage = 50
	maximumMessagesPerPage = 200
)

// MessageStore owns Message and Attachment records.
type MessageStore struct {
	database *gorm.DB
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(database *gorm.DB) *MessageStore {
	return &MessageStore{database: database}
}

// List returns one page of a thread's messages in insertion order.
func (store *MessageStore) List(ctx context.Context, threadID uint64, page int, perPage int) ([]model.Message, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultMessagesPerPage
	}
	if perPage > maximumMessagesPerPage {
		perPage = maximumMessagesPerPage
	}

	var messages []model.Message
	listErr := store.database.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&messages).Error
	if listErr != nil {
		return nil, listErr
	}
	return messages, nil
}

// AttachmentsByMessage returns the attachments for the given messages keyed by message id.
func (store *MessageStore) AttachmentsByMessage(ctx context.Context, messageIDs []uint64) (map[uint64][]model.Attachment, error) {
	grouped := make(map[uint64][]model.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return grouped, nil
	}

	var attachments []model.Attachment
	listErr := store.database.WithContext(ctx).
		Where("message_id IN (?)", messageIDs).
		Order("id ASC").
		Find(&attachments).Error
	if listErr != nil {
		return nil, listErr
	}
	for _, attachment := range attachments {
		grouped[attachment.MessageID] = append(grouped[attachment.MessageID], attachment)
	}
	return grouped, nil
}

// MarkSeen flips the seen flag on every counterpart-authored message in the
// thread. The flag is monotonic; rows already seen are untouched.
func (store *MessageStore) MarkSeen(ctx context.Context, threadID uint64, viewerID uint64) error {
	return store.database.WithContext(ctx).
		Model(&model.Message{}).
		Where("thread_id = ? AND author_member_id <> ? AND seen = ?", threadID, viewerID, false).
		Update("seen", true).Error
}

// HasUnseen reports whether the thread holds an unseen message authored by
// the viewer's counterpart. The viewer's own messages never count.
func (store *MessageStore) HasUnseen(ctx context.Context, threadID uint64, viewerID uint64) (bool, error) {
	var count int64
	countErr := store.database.WithContext(ctx).
		Model(&model.Message{}).
		Where("thread_id = ? AND author_member_id <> ? AND seen = ?", threadID, viewerID, false).
		Limit(1).
		Count(&count).Error
	if countErr != nil {
		return false, countErr
	}
	return count > 0, nil
}

// HasUnseenAnywhere applies the HasUnseen predicate across every thread the
// member owns. It backs the cross-thread inbox badge.
func (store *MessageStore) HasUnseenAnywhere(ctx context.Context, memberID uint64) (bool, error) {
	ownedThreadIDs := store.database.Model(&model.Thread{}).
		Select("id").
		Where("owner_member_id = ?", memberID)

	var count int64
	countErr := store.database.WithContext(ctx).
		Model(&model.Message{}).
		Where("thread_id IN (?) AND author_member_id <> ? AND seen = ?", ownedThreadIDs, memberID, false).
		Limit(1).
		Count(&count).Error
	if countErr != nil {
		return false, countErr
	}
	return count > 0, nil
}
