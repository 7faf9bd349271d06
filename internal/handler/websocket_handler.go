package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize = 4 * 1024

	inboundPerSecond = 5
	inboundBurst     = 10
	replyBuffer      = 8
)

// Inbound socket events.
const (
	WSJoinSpace  = "join-space"
	WSLeaveSpace = "leave-space"
	WSJoinPost   = "join-post"
	WSLeavePost  = "leave-post"
)

type WSRequest struct {
	Event   string `json:"event"`
	SpaceID string `json:"space_id,omitempty"`
	PostID  string `json:"post_id,omitempty"`
}

// SpaceAccess decides which space rooms a socket may join.
type SpaceAccess interface {
	FindSpace(ctx context.Context, id uuid.UUID) (*models.Space, error)
	CanView(ctx context.Context, space *models.Space, viewer *models.User) (bool, error)
}

// PostLookup finds the post behind a post room.
type PostLookup interface {
	FindPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

type WebSocketHandler struct {
	hub        *notify.Hub
	fanout     notify.Fanout
	spaces     SpaceAccess
	posts      PostLookup
	maxSession time.Duration
	upgrader   websocket.Upgrader
}

// session is one open socket. Only writePump writes to conn.
type session struct {
	conn        *websocket.Conn
	user        *models.User
	client      *notify.Client
	replies     chan notify.Event
	limiter     *rate.Limiter
	connectedAt time.Time
}

func NewWebSocketHandler(hub *notify.Hub, fanout notify.Fanout, spaces SpaceAccess, posts PostLookup, maxSession time.Duration, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		fanout:     fanout,
		spaces:     spaces,
		posts:      posts,
		maxSession: maxSession,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// HandleWebSocket serves GET /ws behind RequireAuth. The socket joins the
// user's personal room and is closed when the access token or the session
// lifetime runs out, whichever comes first.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	user := middleware.CurrentUser(c)
	lifetime := h.maxSession
	if claims := middleware.CurrentClaims(c); claims != nil && claims.ExpiresAt != nil {
		lifetime = min(lifetime, time.Until(claims.ExpiresAt.Time))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}

	s := &session{
		conn:        conn,
		user:        user,
		client:      notify.NewClient(user.ID),
		replies:     make(chan notify.Event, replyBuffer),
		limiter:     rate.NewLimiter(rate.Limit(inboundPerSecond), inboundBurst),
		connectedAt: time.Now(),
	}
	h.hub.Register(s.client)
	metrics.SocketOpened()
	logger.Log.Info("Client connected",
		zap.String("user_id", user.ID.String()),
		zap.Duration("lifetime", lifetime),
	)

	done := make(chan struct{})
	go h.writePump(s, lifetime, done)

	h.readPump(c.Request.Context(), s)

	close(done)
	h.hub.Unregister(s.client)
	conn.Close()
	metrics.SocketClosed()
	logger.Log.Info("Client disconnected",
		zap.String("user_id", user.ID.String()),
		zap.Duration("session_duration", time.Since(s.connectedAt).Round(time.Second)),
	)
}

func (h *WebSocketHandler) readPump(ctx context.Context, s *session) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req WSRequest
		if err := s.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("WebSocket read failed", zap.String("user_id", s.user.ID.String()), zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !s.limiter.Allow() {
			metrics.ObserveRateLimited("websocket")
			s.reply(errorEvent("Too many messages, slow down"))
			continue
		}
		h.dispatch(ctx, s, req)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, s *session, req WSRequest) {
	switch req.Event {
	case WSJoinSpace:
		space, ok := h.visibleSpace(ctx, s, req.SpaceID)
		if !ok {
			return
		}
		h.hub.Join(s.client, notify.SpaceRoom(space.ID))
		s.reply(notify.Event{Name: "joined", Data: gin.H{"room": notify.SpaceRoom(space.ID)}})

	case WSLeaveSpace:
		if id, err := uuid.Parse(req.SpaceID); err == nil {
			h.hub.Leave(s.client, notify.SpaceRoom(id))
		}

	case WSJoinPost:
		id, err := uuid.Parse(req.PostID)
		if err != nil {
			s.reply(errorEvent("Invalid post_id"))
			return
		}
		post, err := h.posts.FindPost(ctx, id)
		if err != nil || post == nil || post.Status == models.StatusDeleted {
			s.reply(errorEvent("Post not found"))
			return
		}
		if _, ok := h.visibleSpace(ctx, s, post.SpaceID.String()); !ok {
			return
		}
		h.hub.Join(s.client, notify.PostRoom(id))
		s.reply(notify.Event{Name: "joined", Data: gin.H{"room": notify.PostRoom(id)}})

	case WSLeavePost:
		if id, err := uuid.Parse(req.PostID); err == nil {
			h.hub.Leave(s.client, notify.PostRoom(id))
		}

	case notify.EventTypingStart, notify.EventTypingStop:
		spaceID, err := uuid.Parse(req.SpaceID)
		if err != nil || !h.hub.InRoom(s.client, notify.SpaceRoom(spaceID)) {
			s.reply(errorEvent("Join the space before sending typing events"))
			return
		}
		h.fanout.DeliverToRoom(ctx, notify.SpaceRoom(spaceID), notify.Event{
			Name: req.Event,
			Data: gin.H{
				"user_id":  s.user.ID,
				"username": s.user.Username,
				"space_id": spaceID,
				"post_id":  req.PostID,
			},
		}, s.user.ID)

	default:
		s.reply(errorEvent("Unknown event"))
	}
}

func (h *WebSocketHandler) visibleSpace(ctx context.Context, s *session, rawID string) (*models.Space, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		s.reply(errorEvent("Invalid space_id"))
		return nil, false
	}
	space, err := h.spaces.FindSpace(ctx, id)
	if err != nil || space == nil {
		s.reply(errorEvent("Space not found"))
		return nil, false
	}
	visible, err := h.spaces.CanView(ctx, space, s.user)
	if err != nil || !visible {
		s.reply(errorEvent("Space not found"))
		return nil, false
	}
	return space, true
}

// writePump owns every write to the connection: hub events, replies, pings
// and the final close frame.
func (h *WebSocketHandler) writePump(s *session, lifetime time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	sessionTimer := time.NewTimer(lifetime)
	defer sessionTimer.Stop()

	for {
		var err error
		select {
		case ev, ok := <-s.client.Events():
			if !ok {
				return
			}
			err = s.write(ev)
		case ev := <-s.replies:
			err = s.write(ev)
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		case <-sessionTimer.C:
			logger.Log.Info("Session expired", zap.String("user_id", s.user.ID.String()))
			s.closeGracefully("session expired")
			return
		case <-done:
			return
		}
		if err != nil {
			logger.Log.Debug("WebSocket write failed", zap.String("user_id", s.user.ID.String()), zap.Error(err))
			// Unblocks readPump.
			s.conn.Close()
			return
		}
	}
}

func (s *session) write(ev notify.Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ev)
}

// reply queues a direct answer to this socket and drops it if the queue is full.
func (s *session) reply(ev notify.Event) {
	select {
	case s.replies <- ev:
	default:
	}
}

func (s *session) closeGracefully(reason string) {
	if err := s.write(notify.Event{Name: "session_expired", Data: gin.H{"reason": reason}}); err != nil {
		logger.Log.Debug("Failed to send session_expired", zap.Error(err))
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
	); err != nil {
		logger.Log.Debug("Failed to send close frame", zap.Error(err))
	}
	// Give the peer a short window to answer the close frame.
	s.conn.SetReadDeadline(time.Now().Add(writeWait))
}

func errorEvent(message string) notify.Event {
	return notify.Event{Name: notify.EventError, Data: gin.H{"message": message}}
}
