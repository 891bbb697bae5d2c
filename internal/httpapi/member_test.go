package httpapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

func startGuestThread(t *testing.T, api apiHarness, websiteID uint64) (model.Thread, string) {
	t.Helper()

	grant, grantErr := api.threads.CreateThread(context.Background(), websiteID, chat.GuestInfo{
		Name:  "Visitor",
		Email: "visitor@example.com",
	})
	require.NoError(t, grantErr)

	thread, resolveErr := api.threads.ResolveByCapability(context.Background(), websiteID, grant.Secret)
	require.NoError(t, resolveErr)
	return thread, grant.Secret
}

func postGuestMessage(t *testing.T, api apiHarness, thread model.Thread, body string) {
	t.Helper()

	_, createErr := api.pipeline.CreateMessage(context.Background(), thread, model.GuestAuthorID, body, nil)
	require.NoError(t, createErr)
}

func TestMemberEndpointsRequireBearerToken(t *testing.T) {
	api := buildAPIHarness(t)

	resp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/threads", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	garbage := map[string]string{"Authorization": "Bearer not-a-token"}
	badResp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/threads", nil, garbage)
	require.Equal(t, http.StatusUnauthorized, badResp.Code)
}

func TestMemberInboxShowsUnseenFlag(t *testing.T) {
	api := buildAPIHarness(t)
	const memberID uint64 = 7
	website := insertWebsite(t, api.database, memberID, true)
	thread, _ := startGuestThread(t, api, website.ID)
	postGuestMessage(t, api, thread, "is anyone there?")

	headers := memberAuthHeader(t, api.codec, memberID)
	listResp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/threads", nil, headers)
	require.Equal(t, http.StatusOK, listResp.Code)
	listBody := decodeJSONBody(t, listResp)
	threads, ok := listBody["threads"].([]any)
	require.True(t, ok)
	require.Len(t, threads, 1)

	inboxThread, ok := threads[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Visitor", inboxThread["guest_name"])
	require.Equal(t, true, inboxThread["has_unseen"])

	seenResp := performJSONRequest(t, api.router, http.MethodPost,
		fmt.Sprintf("/api/member/threads/%d/seen", thread.ID), nil, headers)
	require.Equal(t, http.StatusOK, seenResp.Code)

	refreshed := performJSONRequest(t, api.router, http.MethodGet, "/api/member/threads", nil, headers)
	refreshedBody := decodeJSONBody(t, refreshed)
	refreshedThreads := refreshedBody["threads"].([]any)
	refreshedThread := refreshedThreads[0].(map[string]any)
	require.Equal(t, false, refreshedThread["has_unseen"])
}

func TestMemberUnseenBadgeLifecycle(t *testing.T) {
	api := buildAPIHarness(t)
	const memberID uint64 = 7
	website := insertWebsite(t, api.database, memberID, true)
	thread, _ := startGuestThread(t, api, website.ID)

	headers := memberAuthHeader(t, api.codec, memberID)

	emptyResp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/unseen", nil, headers)
	require.Equal(t, http.StatusOK, emptyResp.Code)
	require.Equal(t, float64(0), decodeJSONBody(t, emptyResp)["unseen"])

	postGuestMessage(t, api, thread, "fresh message")

	pendingResp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/unseen", nil, headers)
	require.Equal(t, float64(1), decodeJSONBody(t, pendingResp)["unseen"])

	seenResp := performJSONRequest(t, api.router, http.MethodPost,
		fmt.Sprintf("/api/member/threads/%d/seen", thread.ID), nil, headers)
	require.Equal(t, http.StatusOK, seenResp.Code)

	clearedResp := performJSONRequest(t, api.router, http.MethodGet, "/api/member/unseen", nil, headers)
	require.Equal(t, float64(0), decodeJSONBody(t, clearedResp)["unseen"])
}

func TestMemberReplyAndThreadMessages(t *testing.T) {
	api := buildAPIHarness(t)
	const memberID uint64 = 7
	website := insertWebsite(t, api.database, memberID, true)
	thread, _ := startGuestThread(t, api, website.ID)
	postGuestMessage(t, api, thread, "question from guest")

	headers := memberAuthHeader(t, api.codec, memberID)

	replyResp := performMultipartRequest(t, api.router,
		fmt.Sprintf("/api/member/threads/%d/messages", thread.ID),
		map[string]string{"body": "answer from member"}, nil, headers)
	require.Equal(t, http.StatusOK, replyResp.Code)

	listResp := performJSONRequest(t, api.router, http.MethodGet,
		fmt.Sprintf("/api/member/threads/%d/messages", thread.ID), nil, headers)
	require.Equal(t, http.StatusOK, listResp.Code)
	messages := decodeJSONBody(t, listResp)["messages"].([]any)
	require.Len(t, messages, 2)

	reply := messages[1].(map[string]any)
	require.Equal(t, "answer from member", reply["body"])
	require.Equal(t, float64(memberID), reply["author_member_id"])
}

func TestMemberCannotTouchForeignThread(t *testing.T) {
	api := buildAPIHarness(t)
	website := insertWebsite(t, api.database, 7, true)
	thread, _ := startGuestThread(t, api, website.ID)

	foreignHeaders := memberAuthHeader(t, api.codec, 8)

	listResp := performJSONRequest(t, api.router, http.MethodGet,
		fmt.Sprintf("/api/member/threads/%d/messages", thread.ID), nil, foreignHeaders)
	require.Equal(t, http.StatusForbidden, listResp.Code)

	deleteResp := performJSONRequest(t, api.router, http.MethodDelete,
		fmt.Sprintf("/api/member/threads/%d", thread.ID), nil, foreignHeaders)
	require.Equal(t, http.StatusForbidden, deleteResp.Code)
}

func TestMemberDeleteThreadRemovesEverything(t *testing.T) {
	api := buildAPIHarness(t)
	const memberID uint64 = 7
	website := insertWebsite(t, api.database, memberID, true)
	thread, _ := startGuestThread(t, api, website.ID)
	postGuestMessage(t, api, thread, "doomed message")

	headers := memberAuthHeader(t, api.codec, memberID)
	deleteResp := performJSONRequest(t, api.router, http.MethodDelete,
		fmt.Sprintf("/api/member/threads/%d", thread.ID), nil, headers)
	require.Equal(t, http.StatusOK, deleteResp.Code)

	var remainingThreads int64
	require.NoError(t, api.database.Model(&model.Thread{}).Count(&remainingThreads).Error)
	require.Zero(t, remainingThreads)

	var remainingMessages int64
	require.NoError(t, api.database.Model(&model.Message{}).Count(&remainingMessages).Error)
	require.Zero(t, remainingMessages)

	missingResp := performJSONRequest(t, api.router, http.MethodDelete,
		fmt.Sprintf("/api/member/threads/%d", thread.ID), nil, headers)
	require.Equal(t, http.StatusNotFound, missingResp.Code)
}

func TestMemberTypingEndpoint(t *testing.T) {
	api := buildAPIHarness(t)
	const memberID uint64 = 7
	website := insertWebsite(t, api.database, memberID, true)
	thread, _ := startGuestThread(t, api, website.ID)

	headers := memberAuthHeader(t, api.codec, memberID)
	typingResp := performJSONRequest(t, api.router, http.MethodPost,
		fmt.Sprintf("/api/member/threads/%d/typing", thread.ID), nil, headers)
	require.Equal(t, http.StatusOK, typingResp.Code)

	var typingRows int64
	require.NoError(t, api.database.Model(&model.TypingState{}).
		Where("thread_id = ? AND actor_member_id = ?", thread.ID, memberID).
		Count(&typingRows).Error)
	require.Equal(t, int64(1), typingRows)
}
