package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"nearcast/internal/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192

	// Per-connection throttle on location:update. Generous enough for any
	// sane client emission rate; the proximity contract stays correct at
	// any frequency, this only sheds floods.
	updateLimitBurst  = 40
	updateLimitWindow = 10 * time.Second

	sendBufferSize = 256
)

// Client wraps a single authenticated websocket connection and its buffered
// send queue.
type Client struct {
	userID  int64
	profile Profile
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(userID int64, profile Profile, conn *websocket.Conn) *Client {
	return &Client{
		userID:  userID,
		profile: profile,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
}

// enqueue offers a payload to the send queue without blocking. It reports
// false when the client is closed or too slow to drain its buffer; dispatch
// is fire-and-forget, so the payload is simply dropped.
func (client *Client) enqueue(payload []byte) bool {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.closed {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// close shuts the send queue exactly once, which makes writePump emit a
// close frame and tear the connection down.
func (client *Client) close() {
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

// Server is the proximity broadcast core: it authenticates websocket
// handshakes, ingests location events, maintains the presence store, and
// pushes recomputed nearby sets to every affected connection.
type Server struct {
	store         *storage.Store
	auth          TokenAuthenticator
	presence      *PresenceStore
	registry      *Registry
	engine        *Engine
	metrics       *Metrics
	updateLimiter *RateLimiter
	upgrader      websocket.Upgrader
	log           zerolog.Logger
}

// NewServer builds a server with the default radius and stale cutoff.
func NewServer(store *storage.Store, auth TokenAuthenticator) *Server {
	return NewServerWithConfig(store, auth, DefaultRadiusMeters, DefaultStaleAfter)
}

// NewServerWithConfig builds a server with an explicit proximity radius in
// meters and position freshness cutoff.
func NewServerWithConfig(store *storage.Store, auth TokenAuthenticator, radiusMeters float64, staleAfter time.Duration) *Server {
	presence := NewPresenceStore()
	return &Server{
		store:         store,
		auth:          auth,
		presence:      presence,
		registry:      NewRegistry(),
		engine:        NewEngine(presence, radiusMeters, staleAfter),
		metrics:       NewMetrics(),
		updateLimiter: NewRateLimiter(updateLimitBurst, updateLimitWindow),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The mobile client connects from app origins; tighten this
				// if the server is ever exposed beyond the API gateway.
				return true
			},
		},
		log: Logger("server"),
	}
}

// Metrics exposes the server's metrics collector for HTTP registration.
func (s *Server) Metrics() *Metrics { return s.metrics }

// ServeWS authenticates the handshake token, upgrades the connection, and
// starts the read/write pumps. A connection for an already-connected user
// supersedes the prior one.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := s.auth.Authenticate(token)
	if err != nil {
		s.metrics.IncAuthFailure()
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		s.metrics.IncAuthFailure()
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(userID, Profile{
		Username: user.Username,
		Headline: user.Headline,
		Pronouns: user.Pronouns,
		Avatar:   user.Avatar,
	}, conn)

	if prior := s.registry.Register(client); prior != nil {
		s.log.Info().Int64("user_id", userID).Msg("superseding prior connection")
		prior.close()
	}
	s.metrics.IncConn()

	// A fresh connection always starts inactive; a stale active record from
	// a prior session is not auto-reactivated.
	if s.presence.Deactivate(userID) {
		s.dispatchAffectedBy(userID)
	}

	if greeting, err := EncodeEvent(EventStatus, StatusPayload{Message: "connected"}); err == nil {
		client.enqueue(greeting)
	}

	s.log.Info().Int64("user_id", userID).Str("username", user.Username).Msg("client connected")

	go client.writePump()
	go s.readPump(client)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// readPump consumes inbound events for one connection. Events are processed
// in order and run to completion, which gives strict per-connection FIFO.
func (s *Server) readPump(client *Client) {
	defer func() {
		client.conn.Close()
		client.close()
		s.metrics.DecConn()
		s.updateLimiter.Forget(strconv.FormatInt(client.userID, 10))
		if s.registry.Unregister(client) {
			// Disconnect is an implicit leave; a superseded connection
			// skips this so it cannot tear down its successor's presence.
			if s.presence.Deactivate(client.userID) {
				s.dispatchAffectedBy(client.userID)
			}
			s.log.Info().Int64("user_id", client.userID).Msg("client disconnected")
		}
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// Normal close or read error; deferred cleanup handles it.
			return
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			s.metrics.IncMalformed()
			s.log.Debug().Int64("user_id", client.userID).Msg("dropping non-json frame")
			continue
		}
		s.handleEvent(client, envelope)
	}
}

// handleEvent applies one inbound event. Malformed payloads, events for a
// different user than the session owner, and unknown event names are all
// dropped without affecting the connection.
func (s *Server) handleEvent(client *Client, envelope Envelope) {
	s.metrics.IncEvent(envelope.Event)
	switch envelope.Event {
	case EventJoin:
		var payload JoinPayload
		if err := DecodePayload(envelope.Data, &payload); err != nil {
			s.dropEvent(client, envelope.Event, err)
			return
		}
		if payload.UserID != client.userID {
			s.dropForeignEvent(client, envelope.Event, payload.UserID)
			return
		}
		s.handleJoin(client)
	case EventUpdate:
		var payload UpdatePayload
		if err := DecodePayload(envelope.Data, &payload); err != nil {
			s.dropEvent(client, envelope.Event, err)
			return
		}
		if payload.UserID != client.userID {
			s.dropForeignEvent(client, envelope.Event, payload.UserID)
			return
		}
		s.handleUpdate(client, payload)
	case EventLeave:
		var payload LeavePayload
		if err := DecodePayload(envelope.Data, &payload); err != nil {
			s.dropEvent(client, envelope.Event, err)
			return
		}
		if payload.UserID != client.userID {
			s.dropForeignEvent(client, envelope.Event, payload.UserID)
			return
		}
		s.handleLeave(client)
	default:
		s.log.Debug().Str("event", envelope.Event).Int64("user_id", client.userID).Msg("dropping unknown event")
	}
}

func (s *Server) dropEvent(client *Client, event string, err error) {
	s.metrics.IncMalformed()
	s.log.Warn().Err(err).Str("event", event).Int64("user_id", client.userID).Msg("dropping malformed event")
}

func (s *Server) dropForeignEvent(client *Client, event string, claimed int64) {
	s.metrics.IncMalformed()
	s.log.Warn().Str("event", event).Int64("user_id", client.userID).Int64("claimed_user_id", claimed).Msg("dropping event for foreign user")
}

// handleJoin activates presence. The profile snapshot from the handshake is
// attached so observers render current account data.
func (s *Server) handleJoin(client *Client) {
	active := true
	s.presence.Upsert(client.userID, PresencePatch{
		Profile: &client.profile,
		Active:  &active,
	})
	s.dispatchAffectedBy(client.userID)
}

// handleUpdate stores the position unconditionally so it is current the
// moment the user activates, but only triggers a dispatch sweep while
// active: invisible users' movements notify no one.
func (s *Server) handleUpdate(client *Client, payload UpdatePayload) {
	if !s.updateLimiter.Allow(strconv.FormatInt(client.userID, 10)) {
		if notice, err := EncodeEvent(EventError, ErrorPayload{Message: "location updates too frequent, slow down"}); err == nil {
			client.enqueue(notice)
		}
		return
	}
	s.presence.Upsert(client.userID, PresencePatch{
		Position: &Position{
			Latitude:  payload.Latitude,
			Longitude: payload.Longitude,
			At:        ParseEventTime(payload.Timestamp, time.Now()),
		},
	})
	if record, ok := s.presence.Get(client.userID); ok && record.Active {
		s.dispatchAffectedBy(client.userID)
	}
}

// handleLeave deactivates presence and sweeps so observers stop seeing the
// user and the user's own displayed set clears.
func (s *Server) handleLeave(client *Client) {
	if s.presence.Deactivate(client.userID) {
		s.dispatchAffectedBy(client.userID)
	}
}

// dispatchAffectedBy recomputes and pushes the nearby set of every user
// affected by changedID's mutation. Targets without a live connection are
// skipped silently.
func (s *Server) dispatchAffectedBy(changedID int64) {
	s.metrics.IncSweep()
	for _, userID := range s.engine.Affected(changedID) {
		target := s.registry.Get(userID)
		if target == nil {
			continue
		}
		s.dispatch(target)
	}
	s.metrics.SetActivePresences(s.presence.ActiveCount())
}

func (s *Server) dispatch(target *Client) {
	payload, err := EncodeEvent(EventNearbyUsers, s.engine.Nearby(target.userID))
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", target.userID).Msg("encoding nearby set failed")
		return
	}
	if target.enqueue(payload) {
		s.metrics.IncPush()
	} else {
		s.metrics.IncDroppedPush()
		s.log.Debug().Int64("user_id", target.userID).Msg("dropped push to slow or closed connection")
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
