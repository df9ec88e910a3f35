package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashapp/redwood-sub006/internal/engine"
	"github.com/cashapp/redwood-sub006/internal/guest"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/schema"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

var hostVersion = protocol.MustParseVersion("0.12.0")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	engine *engine.Engine
	url    string

	mu    sync.Mutex
	roots map[string]*widget.List
}

func (f *fixture) root(session string) *widget.List {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roots[session]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sch, err := schema.LoadDir("../schema/testdata/sunspot")
	require.NoError(t, err)

	f := &fixture{
		engine: engine.New(engine.WithLogger(discardLogger())),
		roots:  make(map[string]*widget.List),
	}
	trees := func(session string) (engine.TreeConfig, error) {
		root := widget.NewList()
		f.mu.Lock()
		f.roots[session] = root
		f.mu.Unlock()
		return engine.TreeConfig{
			SchemaName: sch.Name,
			Root:       root,
			Factory:    widget.NewFactory(sch, widget.WithLogger(discardLogger())),
		}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.engine.Run(ctx)
	}()

	srv := httptest.NewServer(NewServer(f.engine, hostVersion, trees, WithServerLogger(discardLogger())))
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return f
}

func dial(t *testing.T, f *fixture, enc protocol.Encoding, opts ...ClientOption) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts = append([]ClientOption{WithClientLogger(discardLogger())}, opts...)
	c, err := Dial(ctx, f.url, protocol.MustParseVersion("0.11.0"), enc, opts...)
	require.NoError(t, err)
	return c
}

func TestSession_GuestDrivesHost(t *testing.T) {
	for _, enc := range []protocol.Encoding{protocol.EncodingJSON, protocol.EncodingCBOR} {
		t.Run(string(enc), func(t *testing.T) {
			f := newFixture(t)

			var (
				mu     sync.Mutex
				clicks int
			)
			var g *guest.Bridge
			c := dial(t, f, enc, WithEventHandler(func(e protocol.Event) {
				mu.Lock()
				defer mu.Unlock()
				if err := g.SendEvent(e); err != nil {
					t.Errorf("guest event: %v", err)
				}
			}))
			defer c.Close()

			assert.Equal(t, "0.12.0", c.HostVersion().String())
			require.NotEmpty(t, c.Session())

			mu.Lock()
			g = guest.NewBridge(c.HostVersion(), guest.WithChangesSink(c), guest.WithLogger(discardLogger()))
			mu.Unlock()
			button := g.NewWidget(4)
			button.SetProperty(1, protocol.String("go"))
			button.On(2, func([]protocol.Value) error {
				clicks++
				return nil
			})
			require.NoError(t, g.Root().Insert(0, button))
			require.NoError(t, g.EmitChanges())

			require.NoError(t, f.engine.Do(context.Background(), c.Session(), func(*engine.Tree) error {
				root := f.root(c.Session())
				if root.Len() != 1 {
					return fmt.Errorf("host has %d root widgets, want 1", root.Len())
				}
				v, _ := root.At(0).Property("text")
				assert.Equal(t, protocol.String("go"), v)
				return root.At(0).Trigger("onClick")
			}))

			assert.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return clicks == 1
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestSession_RejectedBatch(t *testing.T) {
	f := newFixture(t)
	c := dial(t, f, protocol.EncodingJSON)
	defer c.Close()

	err := c.SendChanges([]protocol.Change{
		protocol.Add{Id: protocol.RootId, Tag: protocol.RootChildrenTag, ChildId: 9, Index: 0},
	})
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "reset", be.Status)
	assert.Equal(t, protocol.ErrCodeUnknownId, be.Code)
	assert.Equal(t, "Unknown widget ID 9", be.Msg)

	// The session survives a refused batch.
	require.NoError(t, c.SendChanges([]protocol.Change{protocol.Create{Id: 1, Tag: 3}}))
}

func TestServer_RefusesBadHello(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		hello string
		want  string
	}{
		{"bad version", `{"type":"hello","version":"1.0"}`, "Invalid version format: 1.0"},
		{"bad encoding", `{"type":"hello","version":"0.12.0","encoding":"xml"}`, "unknown encoding"},
		{"not hello", `{"type":"result"}`, "expected hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.hello)))
			_, _, err = conn.ReadMessage()
			var ce *websocket.CloseError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, websocket.CloseProtocolError, ce.Code)
			assert.Contains(t, ce.Text, tt.want)
		})
	}
	assert.Empty(t, f.engine.TreeIDs())
}

func TestServer_WrongFrameType(t *testing.T) {
	f := newFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(hello{Type: typeHello, Version: "0.12.0", Encoding: "cbor"}))
	var reply hello
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "cbor", reply.Encoding)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[]`)))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cbor session received a text frame", ce.Text)
}

func TestSession_CloseReleasesTree(t *testing.T) {
	f := newFixture(t)
	c := dial(t, f, protocol.EncodingJSON)
	assert.Equal(t, []string{c.Session()}, f.engine.TreeIDs())

	require.NoError(t, c.Close())
	assert.NoError(t, c.Err())
	assert.Eventually(t, func() bool {
		return len(f.engine.TreeIDs()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
