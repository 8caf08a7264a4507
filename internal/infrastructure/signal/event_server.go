package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/livekit/protocol/livekit"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
)

var ErrTooManyConnections = errors.New("too many websocket connections")

// Message is the envelope sent to websocket clients.
type Message struct {
	Type      string              `json:"type"`
	ShareID   domain.ShareID      `json:"share_id,omitempty"`
	State     string              `json:"state,omitempty"`
	Error     string              `json:"error,omitempty"`
	Track     json.RawMessage     `json:"track,omitempty"`
	Status    *domain.ShareStatus `json:"status,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// ClientMessage is a command sent by a websocket client.
type ClientMessage struct {
	Type string `json:"type"`
}

const (
	MessageToggle       = "share.toggle"
	MessageStart        = "share.start"
	MessageStop         = "share.stop"
	MessageStatus       = "share.status"
	MessageRenegotiate  = "session.renegotiate"
	MessageError        = "error"
	sendBufferSize      = 32
	defaultMessageLimit = 4096
)

type EventServerConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	MaxConnections int
	AllowedOrigins []string
}

func DefaultEventServerConfig() EventServerConfig {
	return EventServerConfig{
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: defaultMessageLimit,
	}
}

type client struct {
	id         string
	conn       *websocket.Conn
	send       chan []byte
	canControl bool
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// EventServer pushes share lifecycle events to websocket clients and accepts
// share commands from clients allowed to control the share.
type EventServer struct {
	service ports.ScreenShareService
	cfg     EventServerConfig

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	logger *zap.SugaredLogger
}

func NewEventServer(service ports.ScreenShareService, cfg EventServerConfig, logger *zap.SugaredLogger) *EventServer {
	defaults := DefaultEventServerConfig()
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	s := &EventServer{
		service: service,
		cfg:     cfg,
		clients: make(map[string]*client),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *EventServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket serves one client until it disconnects. canControl decides
// whether the client may start or stop the share.
func (s *EventServer) HandleWebSocket(w http.ResponseWriter, r *http.Request, canControl bool) {
	if s.cfg.MaxConnections > 0 && s.ConnectionCount() >= s.cfg.MaxConnections {
		http.Error(w, ErrTooManyConnections.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		canControl: canControl,
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Infow("event client connected", "client_id", c.id, "can_control", canControl)

	// current status first so late joiners see an in-flight share
	status := s.service.Status()
	s.sendTo(c, Message{Type: MessageStatus, Status: &status})

	go s.writePump(c)
	s.readPump(r.Context(), c)

	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
	s.logger.Infow("event client disconnected", "client_id", c.id)
}

func (s *EventServer) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from event client", "client_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		if err := s.handleMessage(context.WithoutCancel(ctx), c, msg); err != nil {
			s.sendTo(c, Message{Type: MessageError, Error: err.Error()})
		}
	}
}

func (s *EventServer) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Infow("error writing to event client", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *EventServer) handleMessage(ctx context.Context, c *client, msg ClientMessage) error {
	switch msg.Type {
	case MessageStatus:
	case MessageToggle, MessageStart, MessageStop:
		if !c.canControl {
			return fmt.Errorf("client may not control the share")
		}
		var err error
		switch msg.Type {
		case MessageToggle:
			err = s.service.Toggle(ctx)
		case MessageStart:
			err = s.service.Start(ctx)
		case MessageStop:
			err = s.service.Stop(ctx)
		}
		if domain.IsSurfaced(err) {
			return err
		}
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}

	status := s.service.Status()
	s.sendTo(c, Message{Type: MessageStatus, Status: &status})
	return nil
}

// Emit broadcasts a share event to every client.
func (s *EventServer) Emit(ctx context.Context, event domain.ShareEvent) {
	msg := Message{
		Type:      string(event.Type),
		ShareID:   event.ShareID,
		State:     event.State,
		Error:     event.Error,
		Timestamp: event.Timestamp.UnixMilli(),
	}
	if event.TrackName != "" {
		track, err := protojson.Marshal(TrackInfo(event))
		if err != nil {
			s.logger.Warnw("failed to encode track info", "track", event.TrackName, "error", err)
		} else {
			msg.Track = track
		}
	}
	s.Broadcast(msg)
}

// NotifyRenegotiate asks clients to send a fresh offer after the published
// track set changed.
func (s *EventServer) NotifyRenegotiate() {
	s.Broadcast(Message{Type: MessageRenegotiate, Timestamp: time.Now().UnixMilli()})
}

func (s *EventServer) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("failed to encode event message", "type", msg.Type, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		s.enqueue(c, payload)
	}
}

func (s *EventServer) sendTo(c *client, msg Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("failed to encode event message", "type", msg.Type, "error", err)
		return
	}
	s.enqueue(c, payload)
}

// enqueue never blocks. A client whose buffer is full misses the message.
// Callers hold s.mu or own c, so c.send is still open.
func (s *EventServer) enqueue(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		s.logger.Warnw("event client too slow, message dropped", "client_id", c.id)
	}
}

func (s *EventServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// TrackInfo describes a published track in the session protocol's terms.
func TrackInfo(event domain.ShareEvent) *livekit.TrackInfo {
	info := &livekit.TrackInfo{
		Sid:    event.TrackSID,
		Name:   event.TrackName,
		Type:   livekit.TrackType_VIDEO,
		Source: livekit.TrackSource_UNKNOWN,
	}
	if event.Kind == domain.MediaKindAudio.String() {
		info.Type = livekit.TrackType_AUDIO
	}
	switch event.Source {
	case domain.SourceScreenShare:
		info.Source = livekit.TrackSource_SCREEN_SHARE
	case domain.SourceScreenShareAudio:
		info.Source = livekit.TrackSource_SCREEN_SHARE_AUDIO
	case domain.SourceMicrophone:
		info.Source = livekit.TrackSource_MICROPHONE
	}
	return info
}
