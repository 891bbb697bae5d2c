package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
	"github.com/NorthgateLabs/livechat_svc/internal/identity"
	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

const (
	defaultStreamPollInterval = 3 * time.Second
	streamHandshakeTimeout    = 10 * time.Second
	streamWriteTimeout        = 5 * time.Second

	logEventStreamUpgrade = "stream_upgrade_failed"
	logEventStreamPoll    = "stream_poll_failed"
)

// streamFrame is the single outbound frame shape. Exactly one of Message,
// Unseen, or Typing is populated per frame.
type streamFrame struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Unseen  int    `json:"unseen,omitempty"`
	Typing  int    `json:"typing,omitempty"`
}

// identifier tolerates both quoted and bare integers in control frames;
// widget embed code is not consistent about number encoding.
type identifier uint64

func (value *identifier) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if trimmed == "" || trimmed == "null" {
		*value = 0
		return nil
	}
	parsed, parseErr := strconv.ParseUint(trimmed, 10, 64)
	if parseErr != nil {
		return parseErr
	}
	*value = identifier(parsed)
	return nil
}

// handshakeFrame is the one control frame a client sends after connecting.
type handshakeFrame struct {
	WebsiteID    identifier `json:"WebsiteId"`
	ThreadSecret string     `json:"ThreadSecret"`
	AccessToken  string     `json:"AccessToken"`
	ThreadID     identifier `json:"ThreadId"`
}

// streamTarget is what a successful handshake resolves to: whose unseen
// messages to watch and whose typing activity to report.
type streamTarget struct {
	threadID      uint64
	viewerID      uint64
	counterpartID uint64
	inboxWide     bool
}

type handshakeResolver func(ctx context.Context, frame handshakeFrame) (streamTarget, error)

// StreamHandlers serves the two duplex endpoints. The guest and member
// channels are the same session state machine; only the handshake
// resolution differs.
type StreamHandlers struct {
	logger       *zap.Logger
	threads      *chat.ThreadStore
	messages     *chat.MessageStore
	typing       *chat.TypingTracker
	tokens       *identity.Codec
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewStreamHandlers creates the duplex endpoint handlers.
func NewStreamHandlers(logger *zap.Logger, threads *chat.ThreadStore, messages *chat.MessageStore, typing *chat.TypingTracker, tokens *identity.Codec) *StreamHandlers {
	return &StreamHandlers{
		logger:       logger,
		threads:      threads,
		messages:     messages,
		typing:       typing,
		tokens:       tokens,
		pollInterval: defaultStreamPollInterval,
		upgrader: websocket.Upgrader{
			// The widget is embedded on arbitrary customer origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// WithPollInterval overrides the notification poll interval.
func (h *StreamHandlers) WithPollInterval(interval time.Duration) *StreamHandlers {
	h.pollInterval = interval
	return h
}

// GuestStream accepts a guest connection authenticated by capability pair.
func (h *StreamHandlers) GuestStream(context *gin.Context) {
	h.acceptStream(context, h.resolveGuestHandshake)
}

// MemberStream accepts a member connection authenticated by access token,
// in thread-scoped or inbox-wide mode.
func (h *StreamHandlers) MemberStream(context *gin.Context) {
	h.acceptStream(context, h.resolveMemberHandshake)
}

func (h *StreamHandlers) acceptStream(context *gin.Context, resolve handshakeResolver) {
	connection, upgradeErr := h.upgrader.Upgrade(context.Writer, context.Request, nil)
	if upgradeErr != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug(logEventStreamUpgrade, zap.Error(upgradeErr))
		return
	}

	session := &streamSession{handlers: h, connection: connection}
	session.run(resolve)
}

func (h *StreamHandlers) resolveGuestHandshake(ctx context.Context, frame handshakeFrame) (streamTarget, error) {
	if frame.WebsiteID == 0 || strings.TrimSpace(frame.ThreadSecret) == "" {
		return streamTarget{}, protocolErrorf("missing WebsiteId or ThreadSecret")
	}
	thread, resolveErr := h.threads.ResolveByCapability(ctx, uint64(frame.WebsiteID), strings.TrimSpace(frame.ThreadSecret))
	if resolveErr != nil {
		return streamTarget{}, resolveErr
	}
	return streamTarget{
		threadID:      thread.ID,
		viewerID:      model.GuestAuthorID,
		counterpartID: thread.OwnerMemberID,
	}, nil
}

func (h *StreamHandlers) resolveMemberHandshake(ctx context.Context, frame handshakeFrame) (streamTarget, error) {
	if strings.TrimSpace(frame.AccessToken) == "" {
		return streamTarget{}, protocolErrorf("missing AccessToken")
	}
	memberID, decodeErr := h.tokens.DecodeMemberID(frame.AccessToken)
	if decodeErr != nil {
		return streamTarget{}, fmt.Errorf("%w: invalid access token", chat.ErrPermission)
	}

	if frame.ThreadID == 0 {
		return streamTarget{viewerID: memberID, inboxWide: true}, nil
	}

	thread, resolveErr := h.threads.ResolveByOwnership(ctx, uint64(frame.ThreadID), memberID)
	if resolveErr != nil {
		return streamTarget{}, resolveErr
	}
	return streamTarget{
		threadID:      thread.ID,
		viewerID:      memberID,
		counterpartID: model.GuestAuthorID,
	}, nil
}

// streamSession is the per-connection state machine:
// Handshaking -> Streaming -> Closed. One instance exists per accepted
// connection; the cancellation signal it owns is never shared across
// connections.
type streamSession struct {
	handlers   *StreamHandlers
	connection *websocket.Conn
	closeOnce  sync.Once
}

func (session *streamSession) run(resolve handshakeResolver) {
	defer session.close()

	frame, handshakeErr := session.readHandshake()
	if handshakeErr != nil {
		session.writeErrorFrame(handshakeErr)
		return
	}

	sessionContext, cancelSession := context.WithCancel(context.Background())
	defer cancelSession()

	target, resolveErr := resolve(sessionContext, frame)
	if resolveErr != nil {
		session.writeErrorFrame(resolveErr)
		return
	}

	// Streaming: the receive loop watches for the client close frame (or
	// any read failure) and flips the session's cancellation signal; the
	// notification loop observes it at its next tick.
	go session.receiveLoop(cancelSession)
	session.notifyLoop(sessionContext, target)
}

// readHandshake reads exactly one control frame. A client that sends
// nothing within the handshake window is disconnected.
func (session *streamSession) readHandshake() (handshakeFrame, error) {
	if deadlineErr := session.connection.SetReadDeadline(time.Now().Add(streamHandshakeTimeout)); deadlineErr != nil {
		return handshakeFrame{}, protocolErrorf("connection unavailable")
	}

	_, payload, readErr := session.connection.ReadMessage()
	if readErr != nil {
		return handshakeFrame{}, protocolErrorf("missing handshake frame")
	}

	var frame handshakeFrame
	if decodeErr := json.Unmarshal(payload, &frame); decodeErr != nil {
		return handshakeFrame{}, protocolErrorf("malformed handshake frame")
	}

	if deadlineErr := session.connection.SetReadDeadline(time.Time{}); deadlineErr != nil {
		return handshakeFrame{}, protocolErrorf("connection unavailable")
	}
	return frame, nil
}

func (session *streamSession) receiveLoop(cancelSession context.CancelFunc) {
	defer cancelSession()
	for {
		// The only meaningful inbound message is the close frame, which
		// surfaces here as a read error; other payloads are ignored.
		if _, _, readErr := session.connection.ReadMessage(); readErr != nil {
			return
		}
	}
}

func (session *streamSession) notifyLoop(sessionContext context.Context, target streamTarget) {
	ticker := time.NewTicker(session.handlers.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sessionContext.Done():
			return
		case <-ticker.C:
		}

		frame, pollErr := session.pollFrame(sessionContext, target)
		if pollErr != nil {
			if sessionContext.Err() != nil {
				return
			}
			// A store hiccup skips the cycle; the connection stays up.
			session.handlers.logger.Warn(logEventStreamPoll, zap.Error(pollErr))
			continue
		}
		if frame == nil {
			continue
		}
		if writeErr := session.writeFrame(*frame); writeErr != nil {
			// Peer gone or too slow to absorb one frame: end the session,
			// the client is expected to reconnect.
			return
		}
	}
}

// pollFrame runs one poll cycle: the unseen check first, and only when
// nothing is unseen the typing check. At most one frame per cycle.
func (session *streamSession) pollFrame(sessionContext context.Context, target streamTarget) (*streamFrame, error) {
	messages := session.handlers.messages

	var unseen bool
	var unseenErr error
	if target.inboxWide {
		unseen, unseenErr = messages.HasUnseenAnywhere(sessionContext, target.viewerID)
	} else {
		unseen, unseenErr = messages.HasUnseen(sessionContext, target.threadID, target.viewerID)
	}
	if unseenErr != nil {
		return nil, unseenErr
	}
	if unseen {
		return &streamFrame{Success: true, Unseen: 1}, nil
	}

	if target.inboxWide {
		return nil, nil
	}

	fresh, freshErr := session.handlers.typing.IsFresh(sessionContext, target.threadID, target.counterpartID, time.Now().UTC())
	if freshErr != nil {
		return nil, freshErr
	}
	if fresh {
		return &streamFrame{Success: true, Typing: 1}, nil
	}
	return nil, nil
}

func (session *streamSession) writeFrame(frame streamFrame) error {
	if deadlineErr := session.connection.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); deadlineErr != nil {
		return deadlineErr
	}
	return session.connection.WriteJSON(frame)
}

// writeErrorFrame reports a handshake or resolution failure to the client.
// Write failures are swallowed; the session is closing either way.
func (session *streamSession) writeErrorFrame(err error) {
	message := messageInternalError
	for _, known := range []error{chat.ErrValidation, chat.ErrNotFound, chat.ErrPermission, chat.ErrProtocol, chat.ErrTransientIO} {
		if errors.Is(err, known) {
			message = err.Error()
			break
		}
	}
	_ = session.writeFrame(streamFrame{Success: false, Message: message})
}

func (session *streamSession) close() {
	session.closeOnce.Do(func() {
		_ = session.connection.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		_ = session.connection.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = session.connection.Close()
	})
}
