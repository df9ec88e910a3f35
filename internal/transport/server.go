// Package transport carries Redwood batches and events over websockets.
//
// A session is one websocket connection and one engine tree:
//  1. The guest sends {"type":"hello","version":"0.12.0","encoding":"cbor"}
//  2. The host opens a tree and replies with its version and the session id
//  3. The guest sends batches: text frames on JSON sessions, binary frames
//     on CBOR sessions. Each batch is acknowledged with a result frame.
//  4. Events raised by host widgets are written back as they happen.
//
// Session ids are ULIDs and double as the tree id in the journal.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/cashapp/redwood-sub006/internal/engine"
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// TreeFactory builds the host side of a new session's tree: root container,
// widget factory and mismatch handler. ID, versions and Events are filled
// in by the server.
type TreeFactory func(sessionID string) (engine.TreeConfig, error)

// Server is an http.Handler hosting one engine tree per websocket.
type Server struct {
	engine      *engine.Engine
	hostVersion protocol.RedwoodVersion
	trees       TreeFactory
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	onOpen      func(sessionID string)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger. Default: slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithSessionOpened registers a callback run after a session's tree is
// opened and the hello reply was sent.
func WithSessionOpened(fn func(sessionID string)) ServerOption {
	return func(s *Server) { s.onOpen = fn }
}

// NewServer creates a server feeding e.
func NewServer(e *engine.Engine, hostVersion protocol.RedwoodVersion, trees TreeFactory, opts ...ServerOption) *Server {
	s := &Server{
		engine:      e,
		hostVersion: hostVersion,
		trees:       trees,
		upgrader: websocket.Upgrader{
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sess := &session{
		id:     ulid.Make().String(),
		conn:   conn,
		logger: s.logger,
	}
	sess.logger = s.logger.With("session", sess.id, "remote", r.RemoteAddr)

	if err := s.serve(r.Context(), sess); err != nil {
		sess.logger.Warn("session failed", "error", err)
		sess.close(websocket.CloseProtocolError, err.Error())
		return
	}
	sess.close(websocket.CloseNormalClosure, "")
}

func (s *Server) serve(ctx context.Context, sess *session) error {
	guestVersion, enc, err := s.handshake(sess)
	if err != nil {
		return err
	}
	sess.encoding = enc

	cfg, err := s.trees(sess.id)
	if err != nil {
		return fmt.Errorf("create tree: %w", err)
	}
	cfg.ID = sess.id
	cfg.HostVersion = s.hostVersion
	cfg.GuestVersion = guestVersion
	cfg.Events = sess

	if _, err := s.engine.OpenTree(ctx, cfg); err != nil {
		return err
	}
	defer s.engine.CloseTree(sess.id)

	if err := sess.writeJSON(hello{
		Type:     typeHello,
		Version:  s.hostVersion.String(),
		Encoding: string(enc),
		Session:  sess.id,
	}); err != nil {
		return err
	}
	sess.logger.Info("session opened", "guest_version", guestVersion.String(), "encoding", string(enc))
	if s.onOpen != nil {
		s.onOpen(sess.id)
	}

	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Info("session closed by guest")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if want := frameType(enc); mt != want {
			return fmt.Errorf("%s session received a %s frame", enc, frameName(mt))
		}

		r, err := s.engine.Submit(ctx, sess.id, enc, data)
		if err != nil {
			return err
		}
		ack := result{
			Type:    typeResult,
			Batch:   r.BatchID,
			Seq:     r.Seq,
			Changes: r.ChangeCount,
			Status:  string(r.Status),
		}
		if r.Err != nil {
			ack.Code = string(protocol.CodeOf(r.Err))
			ack.Error = r.Err.Error()
		}
		if err := sess.writeJSON(ack); err != nil {
			return err
		}
	}
}

func (s *Server) handshake(sess *session) (protocol.RedwoodVersion, protocol.Encoding, error) {
	mt, data, err := sess.conn.ReadMessage()
	if err != nil {
		return protocol.RedwoodVersion{}, "", fmt.Errorf("read hello: %w", err)
	}
	if mt != websocket.TextMessage {
		return protocol.RedwoodVersion{}, "", errors.New("hello must be a text frame")
	}
	var h hello
	if err := json.Unmarshal(data, &h); err != nil {
		return protocol.RedwoodVersion{}, "", fmt.Errorf("malformed hello: %w", err)
	}
	if h.Type != typeHello {
		return protocol.RedwoodVersion{}, "", fmt.Errorf("expected hello, got %q", h.Type)
	}
	v := protocol.UnknownVersion
	if h.Version != "" {
		if v, err = protocol.ParseVersion(h.Version); err != nil {
			return protocol.RedwoodVersion{}, "", err
		}
	}
	enc, err := protocol.ParseEncoding(h.Encoding)
	if err != nil {
		return protocol.RedwoodVersion{}, "", err
	}
	return v, enc, nil
}

// session is one guest connection. Writes come from the read loop (results)
// and from the tree worker (events), so they are serialized.
type session struct {
	id       string
	conn     *websocket.Conn
	encoding protocol.Encoding
	logger   *slog.Logger

	writeMu sync.Mutex
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// SendEvent writes a host event to the guest.
func (s *session) SendEvent(e protocol.Event) error {
	data, err := s.encoding.EncodeEvent(e)
	if err != nil {
		return err
	}
	if s.encoding == protocol.EncodingCBOR {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return s.conn.WriteMessage(websocket.BinaryMessage, data)
	}
	return s.writeJSON(eventFrame{Type: typeEvent, Event: data})
}

func (s *session) close(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// Close reasons are limited to 123 bytes.
	if len(reason) > 123 {
		reason = reason[:123]
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

func frameType(enc protocol.Encoding) int {
	if enc == protocol.EncodingCBOR {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func frameName(mt int) string {
	switch mt {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("type %d", mt)
	}
}
