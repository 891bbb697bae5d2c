package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

// WebsiteDirectory answers questions about the website a thread belongs to.
type WebsiteDirectory interface {
	IsEnabled(ctx context.Context, websiteID uint64) (bool, error)
	OwnerMemberID(ctx context.Context, websiteID uint64) (uint64, error)
}

// Sanitizer neutralizes markup in free-text fields before they reach the stores.
type Sanitizer interface {
	Sanitize(value string) string
}

// Uploader stores one attachment payload and returns a public link to it.
type Uploader interface {
	Upload(ctx context.Context, fileName string, content []byte) (string, error)
}

// DatabaseWebsiteDirectory resolves website questions against the websites table.
type DatabaseWebsiteDirectory struct {
	database *gorm.DB
}

// NewDatabaseWebsiteDirectory creates a WebsiteDirectory backed by the given database.
func NewDatabaseWebsiteDirectory(database *gorm.DB) *DatabaseWebsiteDirectory {
	return &DatabaseWebsiteDirectory{database: database}
}

func (directory *DatabaseWebsiteDirectory) lookup(ctx context.Context, websiteID uint64) (model.Website, error) {
	var website model.Website
	lookupErr := directory.database.WithContext(ctx).First(&website, "id = ?", websiteID).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return model.Website{}, fmt.Errorf("%w: unknown website", ErrNotFound)
	}
	if lookupErr != nil {
		return model.Website{}, lookupErr
	}
	return website, nil
}

func (directory *DatabaseWebsiteDirectory) IsEnabled(ctx context.Context, websiteID uint64) (bool, error) {
	website, lookupErr := directory.lookup(ctx, websiteID)
	if lookupErr != nil {
		return false, lookupErr
	}
	return website.Enabled, nil
}

func (directory *DatabaseWebsiteDirectory) OwnerMemberID(ctx context.Context, websiteID uint64) (uint64, error) {
	website, lookupErr := directory.lookup(ctx, websiteID)
	if lookupErr != nil {
		return 0, lookupErr
	}
	return website.OwnerMemberID, nil
}
