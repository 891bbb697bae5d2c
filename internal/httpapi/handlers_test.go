package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/httpapi"
	"github.com/NorthgateLabs/livechat_svc/internal/identity"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
	"github.com/NorthgateLabs/livechat_svc/internal/testutil"
	"github.com/NorthgateLabs/livechat_svc/internal/uploads"
)

const (
	testTokenSecret      = "handlers-test-token-secret"
	testAdminBearerToken = "handlers-test-admin-token"

	testStreamPollInterval = 20 * time.Millisecond
)

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
	threads  *chat.ThreadStore
	messages *chat.MessageStore
	typing   *chat.TypingTracker
	pipeline *chat.MessagePipeline
	codec    *identity.Codec
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger, loggerErr := zap.NewDevelopment()
	require.NoError(testingT, loggerErr)

	database := testutil.OpenMigratedDatabase(testingT)

	codec, codecErr := identity.NewCodec(testTokenSecret)
	require.NoError(testingT, codecErr)

	uploadStore, uploadsErr := uploads.NewLocalStore(testingT.TempDir(), "", logger)
	require.NoError(testingT, uploadsErr)

	websiteDirectory := chat.NewDatabaseWebsiteDirectory(database)
	sanitizer := chat.NewHTMLSanitizer()
	threadStore := chat.NewThreadStore(database, logger, websiteDirectory)
	messageStore := chat.NewMessageStore(database)
	typingTracker := chat.NewTypingTracker(database)
	messagePipeline := chat.NewMessagePipeline(database, logger, websiteDirectory, sanitizer, uploadStore)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(httpapi.RequestLogger(logger))

	guestHandlers := httpapi.NewGuestHandlers(logger, threadStore, messagePipeline, messageStore, typingTracker, sanitizer)
	memberHandlers := httpapi.NewMemberHandlers(database, logger, threadStore, messagePipeline, messageStore, typingTracker)
	adminHandlers := httpapi.NewAdminHandlers(database, logger)
	streamHandlers := httpapi.NewStreamHandlers(logger, threadStore, messageStore, typingTracker, codec).
		WithPollInterval(testStreamPollInterval)

	router.POST("/api/chat/threads", guestHandlers.CreateThread)
	router.POST("/api/chat/messages", guestHandlers.CreateMessage)
	router.GET("/api/chat/messages", guestHandlers.ListMessages)
	router.POST("/api/chat/typing", guestHandlers.Typing)
	router.POST("/api/chat/seen", guestHandlers.MarkSeen)
	router.GET("/ws/guest", streamHandlers.GuestStream)

	memberGroup := router.Group("/", httpapi.MemberAuthMiddleware(codec))
	memberGroup.GET("/api/member/threads", memberHandlers.ListThreads)
	memberGroup.GET("/api/member/threads/:id/messages", memberHandlers.ListMessages)
	memberGroup.POST("/api/member/threads/:id/messages", memberHandlers.CreateMessage)
	memberGroup.POST("/api/member/threads/:id/typing", memberHandlers.Typing)
	memberGroup.POST("/api/member/threads/:id/seen", memberHandlers.MarkSeen)
	memberGroup.DELETE("/api/member/threads/:id", memberHandlers.DeleteThread)
	memberGroup.GET("/api/member/unseen", memberHandlers.Unseen)
	router.GET("/ws/member", streamHandlers.MemberStream)

	adminGroup := router.Group("/", httpapi.AdminAuthMiddleware(testAdminBearerToken))
	adminGroup.POST("/api/admin/websites", adminHandlers.CreateWebsite)
	adminGroup.GET("/api/admin/websites", adminHandlers.ListWebsites)
	adminGroup.POST("/api/admin/websites/:id", adminHandlers.UpdateWebsite)

	return apiHarness{
		router:   router,
		database: database,
		threads:  threadStore,
		messages: messageStore,
		typing:   typingTracker,
		pipeline: messagePipeline,
		codec:    codec,
	}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()

	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func performMultipartRequest(testingT *testing.T, router *gin.Engine, path string, fields map[string]string, attachments map[string][]byte, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()

	requestBody := &bytes.Buffer{}
	formWriter := multipart.NewWriter(requestBody)
	for name, value := range fields {
		require.NoError(testingT, formWriter.WriteField(name, value))
	}
	for fileName, content := range attachments {
		part, partErr := formWriter.CreateFormFile("attachments", fileName)
		require.NoError(testingT, partErr)
		_, writeErr := part.Write(content)
		require.NoError(testingT, writeErr)
	}
	require.NoError(testingT, formWriter.Close())

	request := httptest.NewRequest(http.MethodPost, path, requestBody)
	request.Header.Set("Content-Type", formWriter.FormDataContentType())
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSONBody(testingT *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testingT.Helper()

	var decoded map[string]any
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func insertWebsite(testingT *testing.T, database *gorm.DB, ownerMemberID uint64, enabled bool) model.Website {
	testingT.Helper()

	website := model.Website{
		OwnerMemberID: ownerMemberID,
		Name:          "Moving Maps",
		Origin:        "http://example.com",
		Enabled:       enabled,
	}
	require.NoError(testingT, database.Create(&website).Error)
	return website
}

func memberAuthHeader(testingT *testing.T, codec *identity.Codec, memberID uint64) map[string]string {
	testingT.Helper()

	accessToken, issueErr := codec.IssueMemberToken(memberID, time.Hour)
	require.NoError(testingT, issueErr)
	return map[string]string{"Authorization": "Bearer " + accessToken}
}
