package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// ErrClosed is returned by a client whose connection is gone.
var ErrClosed = errors.New("transport: connection closed")

// Client is the guest end of a session. It implements guest.ChangesSink,
// so a guest bridge can emit straight into it.
type Client struct {
	conn        *websocket.Conn
	encoding    protocol.Encoding
	hostVersion protocol.RedwoodVersion
	session     string
	logger      *slog.Logger
	onEvent     func(protocol.Event)

	sendMu  sync.Mutex
	results chan result
	done    chan struct{}
	err     error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEventHandler sets the function receiving host events, typically
// guest.Bridge.SendEvent. It runs on the client's read goroutine.
func WithEventHandler(fn func(protocol.Event)) ClientOption {
	return func(c *Client) { c.onEvent = fn }
}

// WithClientLogger sets the client logger. Default: slog.Default().
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Dial connects to a host, announcing guestVersion and enc.
func Dial(ctx context.Context, url string, guestVersion protocol.RedwoodVersion, enc protocol.Encoding, opts ...ClientOption) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		encoding: enc,
		logger:   slog.Default(),
		results:  make(chan result, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.handshake(guestVersion); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) handshake(guestVersion protocol.RedwoodVersion) error {
	if err := c.conn.WriteJSON(hello{
		Type:     typeHello,
		Version:  guestVersion.String(),
		Encoding: string(c.encoding),
	}); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	var reply hello
	if err := c.conn.ReadJSON(&reply); err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return fmt.Errorf("host refused session: %s", ce.Text)
		}
		return fmt.Errorf("read hello: %w", err)
	}
	if reply.Type != typeHello {
		return fmt.Errorf("expected hello, got %q", reply.Type)
	}
	v, err := protocol.ParseVersion(reply.Version)
	if err != nil {
		return fmt.Errorf("host version: %w", err)
	}
	c.hostVersion = v
	c.session = reply.Session
	return nil
}

// HostVersion returns the version the host announced. Guests create their
// protocol state for it.
func (c *Client) HostVersion() protocol.RedwoodVersion { return c.hostVersion }

// Session returns the session id, which is also the host's tree id.
func (c *Client) Session() string { return c.session }

// SendChanges encodes and sends a batch, then waits for the host's result.
// A refused batch is returned as a *BatchError.
func (c *Client) SendChanges(changes []protocol.Change) error {
	data, err := c.encoding.EncodeChanges(changes)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.conn.WriteMessage(frameType(c.encoding), data); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	select {
	case r := <-c.results:
		if r.Status != "applied" {
			return &BatchError{Batch: r.Batch, Status: r.Status, Code: protocol.ErrorCode(r.Code), Msg: r.Error}
		}
		return nil
	case <-c.done:
		if c.err != nil {
			return c.err
		}
		return ErrClosed
	}
}

// Close ends the session.
func (c *Client) Close() error {
	c.sendMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.sendMu.Unlock()
	<-c.done
	c.conn.Close()
	return err
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, or nil after a normal close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.err = fmt.Errorf("read: %w", err)
			}
			return
		}

		if mt == websocket.BinaryMessage {
			e, err := protocol.UnmarshalEventCBOR(data)
			if err != nil {
				c.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			c.dispatch(e)
			continue
		}

		typ, err := decodeEnvelope(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		switch typ {
		case typeResult:
			var r result
			if err := json.Unmarshal(data, &r); err != nil {
				c.err = fmt.Errorf("malformed result: %w", err)
				return
			}
			c.results <- r
		case typeEvent:
			var f eventFrame
			if err := json.Unmarshal(data, &f); err != nil {
				c.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			var e protocol.Event
			if err := e.UnmarshalJSON(f.Event); err != nil {
				c.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			c.dispatch(e)
		default:
			c.logger.Warn("dropping unknown frame", "type", typ)
		}
	}
}

func (c *Client) dispatch(e protocol.Event) {
	if c.onEvent == nil {
		c.logger.Debug("event dropped: no handler", "id", uint32(e.Id), "tag", int32(e.Tag))
		return
	}
	c.onEvent(e)
}
