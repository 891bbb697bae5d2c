package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NorthgateLabs/livechat_svc/internal/identity"
)

const (
	contextKeyMemberID = "member_id"

	bearerSchemePrefix = "Bearer "
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// MemberAuthMiddleware decodes the bearer access token and stores the
// member id on the request context.
func MemberAuthMiddleware(codec *identity.Codec) gin.HandlerFunc {
	return func(context *gin.Context) {
		authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
		if !strings.HasPrefix(authorizationHeader, bearerSchemePrefix) {
			context.AbortWithStatusJSON(401, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		memberID, decodeErr := codec.DecodeMemberID(strings.TrimPrefix(authorizationHeader, bearerSchemePrefix))
		if decodeErr != nil {
			context.AbortWithStatusJSON(401, gin.H{"success": false, "message": "invalid access token"})
			return
		}
		context.Set(contextKeyMemberID, memberID)
		context.Next()
	}
}

func currentMemberID(context *gin.Context) (uint64, bool) {
	value, exists := context.Get(contextKeyMemberID)
	if !exists {
		return 0, false
	}
	memberID, ok := value.(uint64)
	return memberID, ok
}

func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	return func(context *gin.Context) {
		if adminBearerToken == "" {
			context.AbortWithStatusJSON(503, gin.H{"success": false, "message": "admin disabled"})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
		if !strings.HasPrefix(authorizationHeader, bearerSchemePrefix) {
			context.AbortWithStatusJSON(401, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		provided := strings.TrimPrefix(authorizationHeader, bearerSchemePrefix)
		if provided != adminBearerToken {
			context.AbortWithStatusJSON(403, gin.H{"success": false, "message": "forbidden"})
			return
		}
		context.Next()
	}
}
