package httpapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuestThreadAndMessageFlow(t *testing.T) {
	api := buildAPIHarness(t)
	website := insertWebsite(t, api.database, 42, true)

	createResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": website.ID,
		"name":       "Visitor",
		"email":      "visitor@example.com",
		"message":    "  Hello there  ",
	}, nil)
	require.Equal(t, http.StatusOK, createResp.Code)
	created := decodeJSONBody(t, createResp)
	require.Equal(t, true, created["success"])
	threadSecret, ok := created["thread_secret"].(string)
	require.True(t, ok)
	require.NotEmpty(t, threadSecret)

	websiteIDField := fmt.Sprintf("%d", website.ID)

	messageResp := performMultipartRequest(t, api.router, "/api/chat/messages", map[string]string{
		"website_id":    websiteIDField,
		"thread_secret": threadSecret,
		"body":          "And a follow-up",
	}, map[string][]byte{"notes.txt": []byte("attached content")}, nil)
	require.Equal(t, http.StatusOK, messageResp.Code)
	messageBody := decodeJSONBody(t, messageResp)
	require.Equal(t, true, messageBody["success"])
	attachments, ok := messageBody["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)

	listResp := performJSONRequest(t, api.router, http.MethodGet,
		"/api/chat/messages?website_id="+websiteIDField+"&thread_secret="+threadSecret, nil, nil)
	require.Equal(t, http.StatusOK, listResp.Code)
	listBody := decodeJSONBody(t, listResp)
	messages, ok := listBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)

	firstMessage, ok := messages[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Hello there", firstMessage["body"])

	secondMessage, ok := messages[1].(map[string]any)
	require.True(t, ok)
	secondAttachments, ok := secondMessage["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, secondAttachments, 1)
	attachment, ok := secondAttachments[0].(map[string]any)
	require.True(t, ok)
	require.Contains(t, attachment["link"], "/uploads/")
}

func TestGuestThreadCreationFailures(t *testing.T) {
	api := buildAPIHarness(t)
	disabledWebsite := insertWebsite(t, api.database, 42, false)

	unknownResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": 9999,
		"name":       "Visitor",
	}, nil)
	require.Equal(t, http.StatusNotFound, unknownResp.Code)

	disabledResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": disabledWebsite.ID,
		"name":       "Visitor",
	}, nil)
	require.Equal(t, http.StatusForbidden, disabledResp.Code)

	enabledWebsite := insertWebsite(t, api.database, 42, true)
	shortResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": enabledWebsite.ID,
		"name":       "Visitor",
		"message":    "x",
	}, nil)
	require.Equal(t, http.StatusBadRequest, shortResp.Code)
}

func TestGuestMessageRejectsWrongCapability(t *testing.T) {
	api := buildAPIHarness(t)
	website := insertWebsite(t, api.database, 42, true)

	createResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": website.ID,
		"name":       "Visitor",
	}, nil)
	require.Equal(t, http.StatusOK, createResp.Code)

	websiteIDField := fmt.Sprintf("%d", website.ID)
	wrongSecretResp := performMultipartRequest(t, api.router, "/api/chat/messages", map[string]string{
		"website_id":    websiteIDField,
		"thread_secret": "not-the-secret",
		"body":          "should not land",
	}, nil, nil)
	require.Equal(t, http.StatusNotFound, wrongSecretResp.Code)
}

func TestGuestMessageRejectsTooManyAttachments(t *testing.T) {
	api := buildAPIHarness(t)
	website := insertWebsite(t, api.database, 42, true)

	createResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": website.ID,
		"name":       "Visitor",
	}, nil)
	created := decodeJSONBody(t, createResp)
	threadSecret := created["thread_secret"].(string)

	attachments := map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
		"c.txt": []byte("c"),
		"d.txt": []byte("d"),
	}
	overResp := performMultipartRequest(t, api.router, "/api/chat/messages", map[string]string{
		"website_id":    fmt.Sprintf("%d", website.ID),
		"thread_secret": threadSecret,
		"body":          "too many files",
	}, attachments, nil)
	require.Equal(t, http.StatusBadRequest, overResp.Code)
}

func TestGuestTypingAndSeenEndpoints(t *testing.T) {
	api := buildAPIHarness(t)
	website := insertWebsite(t, api.database, 42, true)

	createResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/threads", map[string]any{
		"website_id": website.ID,
		"name":       "Visitor",
	}, nil)
	created := decodeJSONBody(t, createResp)
	threadSecret := created["thread_secret"].(string)

	capability := map[string]any{
		"website_id":    website.ID,
		"thread_secret": threadSecret,
	}

	typingResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/typing", capability, nil)
	require.Equal(t, http.StatusOK, typingResp.Code)

	seenResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/seen", capability, nil)
	require.Equal(t, http.StatusOK, seenResp.Code)

	badCapability := map[string]any{
		"website_id":    website.ID,
		"thread_secret": "wrong",
	}
	badResp := performJSONRequest(t, api.router, http.MethodPost, "/api/chat/typing", badCapability, nil)
	require.Equal(t, http.StatusNotFound, badResp.Code)
}
