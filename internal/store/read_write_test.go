package store

import (
	"context"
	"errors"
	"testing"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

func TestWriteTree_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestTree("tree-1", 1)
	want.GuestVersion = protocol.MustParseVersion("0.11.0-SNAPSHOT")
	if err := s.WriteTree(ctx, want); err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}
	// Idempotent.
	if err := s.WriteTree(ctx, want); err != nil {
		t.Fatalf("second WriteTree() failed: %v", err)
	}

	got, err := s.ReadTree(ctx, "tree-1")
	if err != nil {
		t.Fatalf("ReadTree() failed: %v", err)
	}
	if got.ID != want.ID || got.SchemaName != want.SchemaName || got.Seq != want.Seq {
		t.Errorf("ReadTree() = %+v, want %+v", got, want)
	}
	if got.HostVersion.Compare(want.HostVersion) != 0 {
		t.Errorf("host version = %s, want %s", got.HostVersion, want.HostVersion)
	}
	if got.GuestVersion.String() != "0.11.0-SNAPSHOT" {
		t.Errorf("guest version = %s, want 0.11.0-SNAPSHOT", got.GuestVersion)
	}
}

func TestReadTree_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadTree(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadTree() error = %v, want ErrNotFound", err)
	}
}

func TestListTrees_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, tr := range []Tree{createTestTree("b", 2), createTestTree("c", 3), createTestTree("a", 1)} {
		if err := s.WriteTree(ctx, tr); err != nil {
			t.Fatalf("WriteTree(%s) failed: %v", tr.ID, err)
		}
	}

	trees, err := s.ListTrees(ctx)
	if err != nil {
		t.Fatalf("ListTrees() failed: %v", err)
	}
	var ids []string
	for _, tr := range trees {
		ids = append(ids, tr.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("ListTrees() ids = %v, want [a b c]", ids)
	}
}

func TestWriteBatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteTree(ctx, createTestTree("tree-1", 1)); err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}

	payload := mustEncode(t, protocol.EncodingCBOR, protocol.Create{Id: 1, Tag: 3})
	batches := []Batch{
		{
			ID: "batch-2", TreeID: "tree-1", Seq: 3, Encoding: protocol.EncodingJSON,
			Payload: []byte("[]"), Status: StatusRejected,
			ErrorCode: protocol.ErrCodeFormat, Error: "boom", Fingerprint: 1,
		},
		{
			ID: "batch-1", TreeID: "tree-1", Seq: 2, Encoding: protocol.EncodingCBOR,
			Payload: payload, ChangeCount: 1, Status: StatusApplied,
			Fingerprint: 0xfedcba9876543210,
		},
	}
	for _, b := range batches {
		if err := s.WriteBatch(ctx, b); err != nil {
			t.Fatalf("WriteBatch(%s) failed: %v", b.ID, err)
		}
	}

	got, err := s.ReadBatches(ctx, "tree-1")
	if err != nil {
		t.Fatalf("ReadBatches() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBatches() returned %d batches, want 2", len(got))
	}
	first := got[0]
	if first.ID != "batch-1" || first.Seq != 2 || first.Encoding != protocol.EncodingCBOR {
		t.Errorf("first batch = %+v", first)
	}
	if first.Fingerprint != 0xfedcba9876543210 {
		t.Errorf("fingerprint = %x, want fedcba9876543210", first.Fingerprint)
	}
	if string(first.Payload) != string(payload) {
		t.Error("payload was not preserved")
	}
	second := got[1]
	if second.Status != StatusRejected || second.ErrorCode != protocol.ErrCodeFormat || second.Error != "boom" {
		t.Errorf("second batch = %+v", second)
	}
}

func TestWriteBatch_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WriteBatch(ctx, Batch{ID: "b", TreeID: "missing", Seq: 1, Encoding: protocol.EncodingJSON, Payload: []byte("[]"), Status: StatusApplied})
	if err == nil {
		t.Error("expected foreign key error for unknown tree")
	}

	if err := s.WriteTree(ctx, createTestTree("tree-1", 1)); err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}
	err = s.WriteBatch(ctx, Batch{ID: "b", TreeID: "tree-1", Seq: 2, Encoding: protocol.EncodingJSON, Payload: []byte("[]")})
	if err == nil {
		t.Error("expected error for missing status")
	}
	err = s.WriteBatch(ctx, Batch{ID: "b", TreeID: "tree-1", Seq: 2, Encoding: "xml", Payload: []byte("[]"), Status: StatusApplied})
	if err == nil {
		t.Error("expected check constraint error for unknown encoding")
	}
}

func TestReadBatches_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadBatches(context.Background(), "none")
	if err != nil {
		t.Fatalf("ReadBatches() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadBatches() = %#v, want empty slice", got)
	}
}

func TestWriteEvent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.WriteTree(ctx, createTestTree("tree-1", 1)); err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}

	events := []Event{
		{TreeID: "tree-1", Seq: 5, Event: protocol.Event{Id: 2, Tag: 2, Args: []protocol.Value{protocol.String("abc")}}},
		{TreeID: "tree-1", Seq: 4, Event: protocol.Event{Id: 1, Tag: 2}},
	}
	for _, e := range events {
		if err := s.WriteEvent(ctx, e); err != nil {
			t.Fatalf("WriteEvent() failed: %v", err)
		}
	}

	got, err := s.ReadEvents(ctx, "tree-1")
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadEvents() returned %d events, want 2", len(got))
	}
	if got[0].Seq != 4 || got[0].Event.Id != 1 {
		t.Errorf("first event = %+v", got[0])
	}
	if len(got[1].Event.Args) != 1 || got[1].Event.Args[0] != protocol.String("abc") {
		t.Errorf("second event args = %v", got[1].Event.Args)
	}
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx, "tree-1")
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("LastSeq() on unknown tree = %d, want 0", seq)
	}

	if err := s.WriteTree(ctx, createTestTree("tree-1", 3)); err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}
	if seq, _ = s.LastSeq(ctx, "tree-1"); seq != 3 {
		t.Errorf("LastSeq() = %d, want 3", seq)
	}

	if err := s.WriteBatch(ctx, Batch{ID: "b", TreeID: "tree-1", Seq: 7, Encoding: protocol.EncodingJSON, Payload: []byte("[]"), Status: StatusApplied}); err != nil {
		t.Fatalf("WriteBatch() failed: %v", err)
	}
	if err := s.WriteEvent(ctx, Event{TreeID: "tree-1", Seq: 9, Event: protocol.Event{Id: 1, Tag: 1}}); err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}
	if seq, _ = s.LastSeq(ctx, "tree-1"); seq != 9 {
		t.Errorf("LastSeq() = %d, want 9", seq)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want BatchStatus
	}{
		{nil, StatusApplied},
		{protocol.NewFormatError("bad"), StatusRejected},
		{protocol.NewDuplicateIdError(protocol.Create{Id: 1, Tag: 1}), StatusReset},
		{protocol.NewUnknownIdError(4, protocol.Create{Id: 4, Tag: 1}), StatusReset},
		{protocol.NewUnknownTagError(9, "Unknown widget tag 9"), StatusRejected},
		{errors.New("plain"), StatusRejected},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
