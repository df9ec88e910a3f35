package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/schema"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestTree(id string, seq int64) Tree {
	return Tree{
		ID:           id,
		HostVersion:  protocol.MustParseVersion("0.12.0"),
		GuestVersion: protocol.MustParseVersion("0.12.0"),
		SchemaName:   "Sunspot",
		Seq:          seq,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sunspotBridges returns a BridgeFactory backed by the sunspot test schema.
func sunspotBridges(t *testing.T) BridgeFactory {
	t.Helper()
	s, err := schema.LoadDir("../schema/testdata/sunspot")
	if err != nil {
		t.Fatalf("LoadDir() failed: %v", err)
	}
	return func(Tree) (*host.Bridge, error) {
		return host.NewBridge(
			widget.NewList(),
			widget.NewFactory(s, widget.WithLogger(discardLogger())),
			host.WithLogger(discardLogger()),
		), nil
	}
}

func mustEncode(t *testing.T, enc protocol.Encoding, changes ...protocol.Change) []byte {
	t.Helper()
	data, err := enc.EncodeChanges(changes)
	if err != nil {
		t.Fatalf("EncodeChanges() failed: %v", err)
	}
	return data
}
