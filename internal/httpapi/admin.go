package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

// AdminHandlers provisions websites. Guarded by the admin bearer token.
type AdminHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
}

func NewAdminHandlers(database *gorm.DB, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{database: database, logger: logger}
}

type createWebsiteRequest struct {
	OwnerMemberID uint64 `json:"owner_member_id"`
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Enabled       *bool  `json:"enabled"`
}

type websiteResponse struct {
	ID            uint64 `json:"id"`
	OwnerMemberID uint64 `json:"owner_member_id"`
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Enabled       bool   `json:"enabled"`
	CreatedAt     int64  `json:"created_at"`
}

func (h *AdminHandlers) CreateWebsite(context *gin.Context) {
	var payload createWebsiteRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid json"})
		return
	}

	payload.Name = strings.TrimSpace(payload.Name)
	if payload.OwnerMemberID == 0 || payload.Name == "" {
		context.JSON(400, gin.H{"success": false, "message": "missing owner_member_id or name"})
		return
	}

	website := model.Website{
		OwnerMemberID: payload.OwnerMemberID,
		Name:          payload.Name,
		Origin:        strings.TrimSpace(payload.Origin),
		Enabled:       payload.Enabled == nil || *payload.Enabled,
	}
	if createErr := h.database.WithContext(context.Request.Context()).Create(&website).Error; createErr != nil {
		h.logger.Warn("save_website", zap.Error(createErr))
		context.JSON(500, gin.H{"success": false, "message": "save failed"})
		return
	}

	context.JSON(200, gin.H{"success": true, "website": buildWebsiteResponse(website)})
}

func (h *AdminHandlers) ListWebsites(context *gin.Context) {
	var websites []model.Website
	if listErr := h.database.WithContext(context.Request.Context()).
		Order("id ASC").Find(&websites).Error; listErr != nil {
		h.logger.Warn("list_websites", zap.Error(listErr))
		context.JSON(500, gin.H{"success": false, "message": "query failed"})
		return
	}

	responses := make([]websiteResponse, 0, len(websites))
	for _, website := range websites {
		responses = append(responses, buildWebsiteResponse(website))
	}
	context.JSON(200, gin.H{"success": true, "websites": responses})
}

type updateWebsiteRequest struct {
	Enabled *bool `json:"enabled"`
}

// UpdateWebsite toggles the enabled flag; a disabled website refuses new
// threads and messages.
func (h *AdminHandlers) UpdateWebsite(context *gin.Context) {
	websiteID, parseErr := parseIdentifierField(context.Param("id"))
	if parseErr != nil {
		context.JSON(400, gin.H{"success": false, "message": "invalid website id"})
		return
	}

	var payload updateWebsiteRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil || payload.Enabled == nil {
		context.JSON(400, gin.H{"success": false, "message": "nothing to update"})
		return
	}

	result := h.database.WithContext(context.Request.Context()).
		Model(&model.Website{}).
		Where("id = ?", websiteID).
		Update("enabled", *payload.Enabled)
	if result.Error != nil {
		h.logger.Warn("update_website", zap.Error(result.Error))
		context.JSON(500, gin.H{"success": false, "message": "save failed"})
		return
	}
	if result.RowsAffected == 0 {
		context.JSON(404, gin.H{"success": false, "message": "unknown website"})
		return
	}
	context.JSON(200, gin.H{"success": true})
}

func buildWebsiteResponse(website model.Website) websiteResponse {
	return websiteResponse{
		ID:            website.ID,
		OwnerMemberID: website.OwnerMemberID,
		Name:          website.Name,
		Origin:        website.Origin,
		Enabled:       website.Enabled,
		CreatedAt:     website.CreatedAt.Unix(),
	}
}
