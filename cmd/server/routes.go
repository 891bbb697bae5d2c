package main

import (
	"github.com/gin-gonic/gin"

	"github.com/NorthgateLabs/livechat_svc/internal/httpapi"
	"github.com/NorthgateLabs/livechat_svc/internal/identity"
)

const (
	routeGuestThreads  = "/api/chat/threads"
	routeGuestMessages = "/api/chat/messages"
	routeGuestTyping   = "/api/chat/typing"
	routeGuestSeen     = "/api/chat/seen"
	routeGuestStream   = "/ws/guest"

	routeMemberThreads        = "/api/member/threads"
	routeMemberThreadByID     = "/api/member/threads/:id"
	routeMemberThreadMessages = "/api/member/threads/:id/messages"
	routeMemberThreadTyping   = "/api/member/threads/:id/typing"
	routeMemberThreadSeen     = "/api/member/threads/:id/seen"
	routeMemberUnseen         = "/api/member/unseen"
	routeMemberStream         = "/ws/member"

	routeAdminWebsites     = "/api/admin/websites"
	routeAdminWebsiteByID  = "/api/admin/websites/:id"
	routeUploadsStaticPath = "/uploads"
)

type routeDependencies struct {
	guestHandlers    *httpapi.GuestHandlers
	memberHandlers   *httpapi.MemberHandlers
	adminHandlers    *httpapi.AdminHandlers
	streamHandlers   *httpapi.StreamHandlers
	tokenCodec       *identity.Codec
	adminBearerToken string
	uploadsDirectory string
}

func registerRoutes(router *gin.Engine, dependencies routeDependencies) {
	router.POST(routeGuestThreads, dependencies.guestHandlers.CreateThread)
	router.POST(routeGuestMessages, dependencies.guestHandlers.CreateMessage)
	router.GET(routeGuestMessages, dependencies.guestHandlers.ListMessages)
	router.POST(routeGuestTyping, dependencies.guestHandlers.Typing)
	router.POST(routeGuestSeen, dependencies.guestHandlers.MarkSeen)
	router.GET(routeGuestStream, dependencies.streamHandlers.GuestStream)

	memberGroup := router.Group("/", httpapi.MemberAuthMiddleware(dependencies.tokenCodec))
	memberGroup.GET(routeMemberThreads, dependencies.memberHandlers.ListThreads)
	memberGroup.GET(routeMemberThreadMessages, dependencies.memberHandlers.ListMessages)
	memberGroup.POST(routeMemberThreadMessages, dependencies.memberHandlers.CreateMessage)
	memberGroup.POST(routeMemberThreadTyping, dependencies.memberHandlers.Typing)
	memberGroup.POST(routeMemberThreadSeen, dependencies.memberHandlers.MarkSeen)
	memberGroup.DELETE(routeMemberThreadByID, dependencies.memberHandlers.DeleteThread)
	memberGroup.GET(routeMemberUnseen, dependencies.memberHandlers.Unseen)

	// The member stream endpoint authenticates inside its handshake frame,
	// not through the bearer middleware.
	router.GET(routeMemberStream, dependencies.streamHandlers.MemberStream)

	adminGroup := router.Group("/", httpapi.AdminAuthMiddleware(dependencies.adminBearerToken))
	adminGroup.POST(routeAdminWebsites, dependencies.adminHandlers.CreateWebsite)
	adminGroup.GET(routeAdminWebsites, dependencies.adminHandlers.ListWebsites)
	adminGroup.POST(routeAdminWebsiteByID, dependencies.adminHandlers.UpdateWebsite)

	router.Static(routeUploadsStaticPath, dependencies.uploadsDirectory)
}
