package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
	"github.com/NorthgateLabs/livechat_svc/internal/storage"
)

const (
	logEventCreateThread = "create_thread"
	logEventDeleteThread = "delete_thread"
)

// GuestInfo carries the guest attributes captured at chat start. Fields are
// expected to be sanitized before they arrive here.
type GuestInfo struct {
	Name      string
	Email     string
	IP        string
	Latitude  float64
	Longitude float64
}

// ThreadGrant is returned once, at thread creation. The secret is never
// disclosed again; the client must persist it.
type ThreadGrant struct {
	ThreadID uint64
	Secret   string
}

// ThreadStore owns Thread and Guest records.
type ThreadStore struct {
	database *gorm.DB
	logger   *zap.Logger
	websites WebsiteDirectory
}

// NewThreadStore creates a ThreadStore.
func NewThreadStore(database *gorm.DB, logger *zap.Logger, websites WebsiteDirectory) *ThreadStore {
	return &ThreadStore{database: database, logger: logger, websites: websites}
}

// CreateThread creates the Guest and Thread pair for a new conversation on
// an enabled website. The thread's owner is the website's owning member.
func (store *ThreadStore) CreateThread(ctx context.Context, websiteID uint64, guest GuestInfo) (ThreadGrant, error) {
	enabled, enabledErr := store.websites.IsEnabled(ctx, websiteID)
	if enabledErr != nil {
		return ThreadGrant{}, enabledErr
	}
	if !enabled {
		return ThreadGrant{}, fmt.Errorf("%w: chat is disabled for this website", ErrPermission)
	}

	ownerMemberID, ownerErr := store.websites.OwnerMemberID(ctx, websiteID)
	if ownerErr != nil {
		return ThreadGrant{}, ownerErr
	}

	var grant ThreadGrant
	transactionErr := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		guestRecord := model.Guest{
			Name:      guest.Name,
			Email:     guest.Email,
			IP:        guest.IP,
			Latitude:  guest.Latitude,
			Longitude: guest.Longitude,
		}
		if createErr := transaction.Create(&guestRecord).Error; createErr != nil {
			return createErr
		}

		threadRecord := model.Thread{
			WebsiteID:     websiteID,
			OwnerMemberID: ownerMemberID,
			GuestID:       guestRecord.ID,
			Secret:        storage.NewID(),
		}
		if createErr := transaction.Create(&threadRecord).Error; createErr != nil {
			return createErr
		}

		grant = ThreadGrant{ThreadID: threadRecord.ID, Secret: threadRecord.Secret}
		return nil
	})
	if transactionErr != nil {
		store.logger.Warn(logEventCreateThread, zap.Error(transactionErr), zap.Uint64("website_id", websiteID))
		return ThreadGrant{}, transactionErr
	}

	return grant, nil
}

// ResolveByCapability returns the thread matching both the website id and
// the capability secret. A mismatch of either yields the same NotFound; the
// caller cannot distinguish a wrong secret from a wrong website.
func (store *ThreadStore) ResolveByCapability(ctx context.Context, websiteID uint64, threadSecret string) (model.Thread, error) {
	var thread model.Thread
	lookupErr := store.database.WithContext(ctx).
		First(&thread, "website_id = ? AND secret = ?", websiteID, threadSecret).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return model.Thread{}, fmt.Errorf("%w: unknown thread", ErrNotFound)
	}
	if lookupErr != nil {
		return model.Thread{}, lookupErr
	}
	return thread, nil
}

// ResolveByOwnership returns the thread only when it is owned by the given member.
func (store *ThreadStore) ResolveByOwnership(ctx context.Context, threadID uint64, memberID uint64) (model.Thread, error) {
	var thread model.Thread
	lookupErr := store.database.WithContext(ctx).First(&thread, "id = ?", threadID).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return model.Thread{}, fmt.Errorf("%w: unknown thread", ErrNotFound)
	}
	if lookupErr != nil {
		return model.Thread{}, lookupErr
	}
	if thread.OwnerMemberID != memberID {
		return model.Thread{}, fmt.Errorf("%w: thread belongs to another member", ErrPermission)
	}
	return thread, nil
}

// ListByOwner returns the member's threads, newest first.
func (store *ThreadStore) ListByOwner(ctx context.Context, memberID uint64) ([]model.Thread, error) {
	var threads []model.Thread
	listErr := store.database.WithContext(ctx).
		Where("owner_member_id = ?", memberID).
		Order("id DESC").
		Find(&threads).Error
	if listErr != nil {
		return nil, listErr
	}
	return threads, nil
}

// Delete removes an owned thread together with its messages, attachments,
// typing rows, and guest record in one transaction.
func (store *ThreadStore) Delete(ctx context.Context, threadID uint64, memberID uint64) error {
	thread, resolveErr := store.ResolveByOwnership(ctx, threadID, memberID)
	if resolveErr != nil {
		return resolveErr
	}

	transactionErr := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		messageIDs := transaction.Model(&model.Message{}).
			Select("id").
			Where("thread_id = ?", thread.ID)
		if deleteErr := transaction.Where("message_id IN (?)", messageIDs).
			Delete(&model.Attachment{}).Error; deleteErr != nil {
			return deleteErr
		}
		if deleteErr := transaction.Where("thread_id = ?", thread.ID).
			Delete(&model.Message{}).Error; deleteErr != nil {
			return deleteErr
		}
		if deleteErr := transaction.Where("thread_id = ?", thread.ID).
			Delete(&model.TypingState{}).Error; deleteErr != nil {
			return deleteErr
		}
		if deleteErr := transaction.Delete(&model.Thread{}, "id = ?", thread.ID).Error; deleteErr != nil {
			return deleteErr
		}
		return transaction.Delete(&model.Guest{}, "id = ?", thread.GuestID).Error
	})
	if transactionErr != nil {
		store.logger.Warn(logEventDeleteThread, zap.Error(transactionErr), zap.Uint64("thread_id", threadID))
		return transactionErr
	}

	return nil
}
