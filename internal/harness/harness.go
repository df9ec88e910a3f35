package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/guest"
	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/schema"
	"github.com/cashapp/redwood-sub006/internal/store"
	"github.com/cashapp/redwood-sub006/internal/testutil"
	"github.com/cashapp/redwood-sub006/internal/widget"
)

// Harness wires one scenario's guest bridge to its host bridge. Batches
// flow through the scenario encoding and are journaled to an in-memory
// store; host events are journaled and delivered to the guest.
type Harness struct {
	scenario    *Scenario
	schema      *schema.Schema
	store       *store.Store
	clock       *testutil.SeqClock
	logger      *slog.Logger
	encoding    protocol.Encoding
	hostVersion protocol.RedwoodVersion

	guest      *guest.Bridge
	host       *host.Bridge
	root       *widget.List
	mismatches *testutil.RecordingMismatchHandler
	events     *testutil.EventRecorder

	// names maps scenario node names to guest widgets.
	names    map[string]*guest.Widget
	received []ReceivedEvent

	// shipped is the outcome of the last guest batch.
	shipped *StepResult
}

// Run executes a scenario in a fresh in-memory journal and returns the
// result. The error reports problems with the scenario itself (bad schema,
// unknown node names); protocol failures are part of the result.
func Run(scenario *Scenario) (*Result, error) {
	s, err := schema.LoadDir(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h, err := newHarness(ctx, scenario, s, st)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		sr.Index = i + 1
		result.Steps = append(result.Steps, sr)
		if err := h.checkStep(sr, step.Expect); err != "" {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, sr.Kind, err))
		}
	}

	if err := h.fill(result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Harness: h, Result: result}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, s *schema.Schema, st *store.Store) (*Harness, error) {
	h := &Harness{
		scenario:    scenario,
		schema:      s,
		store:       st,
		clock:       testutil.NewSeqClock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		encoding:    protocol.EncodingJSON,
		hostVersion: protocol.MustParseVersion(config.DefaultHostVersion),
		root:        widget.NewList(),
		names:       make(map[string]*guest.Widget),
	}
	if scenario.HostVersion != "" {
		h.hostVersion = protocol.MustParseVersion(scenario.HostVersion)
	}
	if scenario.Encoding != "" {
		h.encoding = protocol.Encoding(scenario.Encoding)
	}

	h.mismatches = testutil.NewRecordingMismatchHandler(h.policy())
	h.events = testutil.NewEventRecorder(host.EventSinkFunc(h.deliver))
	h.host = host.NewBridge(h.root, widget.NewFactory(s, widget.WithLogger(h.logger)),
		host.WithMismatchHandler(h.mismatches),
		host.WithEventSink(h.events),
		host.WithLogger(h.logger),
	)
	h.guest = guest.NewBridge(h.hostVersion,
		guest.WithChangesSink(guest.ChangesSinkFunc(h.ship)),
		guest.WithLogger(h.logger),
	)

	err := st.WriteTree(ctx, store.Tree{
		ID:           scenario.Name,
		HostVersion:  h.hostVersion,
		GuestVersion: protocol.MustParseVersion(config.DefaultHostVersion),
		SchemaName:   s.Name,
		Seq:          h.clock.Next(),
	})
	if err != nil {
		return nil, fmt.Errorf("journal tree: %w", err)
	}
	return h, nil
}

// policy returns the host mismatch handler the scenario asks for.
func (h *Harness) policy() host.MismatchHandler {
	if h.scenario.Mismatch == config.MismatchLog {
		return host.LoggingMismatchHandler{Logger: h.logger}
	}
	return host.ThrowingMismatchHandler{}
}

// newBridge builds a fresh host for replaying the journal.
func (h *Harness) newBridge(store.Tree) (*host.Bridge, error) {
	return host.NewBridge(widget.NewList(), widget.NewFactory(h.schema, widget.WithLogger(h.logger)),
		host.WithMismatchHandler(h.policy()),
		host.WithLogger(h.logger),
	), nil
}

func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	switch step.Kind() {
	case StepGuest:
		return h.guestStep(step.Guest)
	case StepBatch:
		return h.apply(ctx, protocol.EncodingJSON, []byte(strings.TrimSpace(step.Batch)))
	case StepTrigger:
		return h.trigger(step.Trigger)
	default:
		return StepResult{}, fmt.Errorf("empty step")
	}
}

// guestStep runs the ops against the guest and ships the pending batch.
// A guest-side protocol error rejects the step before anything is sent.
func (h *Harness) guestStep(ops []GuestOp) (StepResult, error) {
	for _, op := range ops {
		if err := h.guestOp(op); err != nil {
			if protocol.CodeOf(err) == "" {
				return StepResult{}, err
			}
			h.guest.TakeChanges()
			return StepResult{
				Kind:   StepGuest,
				Status: string(store.StatusRejected),
				Code:   string(protocol.CodeOf(err)),
				Error:  err.Error(),
			}, nil
		}
	}

	h.shipped = nil
	if err := h.guest.EmitChanges(); err != nil {
		return StepResult{}, err
	}
	if h.shipped == nil {
		return StepResult{Kind: StepGuest, Status: string(store.StatusApplied)}, nil
	}
	return *h.shipped, nil
}

// ship is the guest's changes sink. It returns only infrastructure
// errors; the batch outcome is left in h.shipped.
func (h *Harness) ship(changes []protocol.Change) error {
	payload, err := h.encoding.EncodeChanges(changes)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	sr, err := h.apply(context.Background(), h.encoding, payload)
	if err != nil {
		return err
	}
	sr.Kind = StepGuest
	h.shipped = &sr
	return nil
}

// apply applies one encoded batch to the host and journals it.
func (h *Harness) apply(ctx context.Context, enc protocol.Encoding, payload []byte) (StepResult, error) {
	out, err := store.Apply(h.host, enc, payload)
	if err != nil {
		return StepResult{}, err
	}

	id, seq := h.clock.Label(h.scenario.Name)
	err = h.store.WriteBatch(ctx, store.Batch{
		ID:          id,
		TreeID:      h.scenario.Name,
		Seq:         seq,
		Encoding:    enc,
		Payload:     payload,
		ChangeCount: out.ChangeCount,
		Status:      out.Status,
		ErrorCode:   out.ErrorCode(),
		Error:       out.ErrorMessage(),
		Fingerprint: out.Fingerprint,
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("journal batch: %w", err)
	}

	return StepResult{
		Kind:    StepBatch,
		BatchID: id,
		Changes: out.ChangeCount,
		Status:  string(out.Status),
		Code:    string(out.ErrorCode()),
		Error:   out.ErrorMessage(),
	}, nil
}

func (h *Harness) guestOp(op GuestOp) error {
	switch {
	case op.Create != nil:
		def, ok := h.schema.WidgetNamed(op.Create.Widget)
		if !ok {
			return fmt.Errorf("unknown widget %q", op.Create.Widget)
		}
		if _, dup := h.names[op.Create.As]; dup {
			return fmt.Errorf("node %q already created", op.Create.As)
		}
		w := h.guest.NewWidget(def.Tag)
		for _, e := range def.Events {
			name, event := op.Create.As, e.Name
			w.On(e.Tag, func(args []protocol.Value) error {
				h.received = append(h.received, ReceivedEvent{Node: name, Event: event, Args: args})
				return nil
			})
		}
		h.names[op.Create.As] = w
		return nil

	case op.Set != nil:
		w, def, err := h.node(op.Set.Node)
		if err != nil {
			return err
		}
		p, ok := def.PropertyNamed(op.Set.Property)
		if !ok {
			return fmt.Errorf("%s has no property %q", def.Name, op.Set.Property)
		}
		v, err := protocol.ToValue(op.Set.Value)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", op.Set.Node, op.Set.Property, err)
		}
		w.SetProperty(p.Tag, v)
		return nil

	case op.Insert != nil:
		slot, err := h.slot(op.Insert.SlotRef)
		if err != nil {
			return err
		}
		w, _, err := h.node(op.Insert.Node)
		if err != nil {
			return err
		}
		return slot.Insert(op.Insert.Index, w)

	case op.Move != nil:
		slot, err := h.slot(op.Move.SlotRef)
		if err != nil {
			return err
		}
		return slot.Move(op.Move.From, op.Move.To, op.Move.Count)

	case op.Remove != nil:
		slot, err := h.slot(op.Remove.SlotRef)
		if err != nil {
			return err
		}
		return slot.Remove(op.Remove.Index, op.Remove.Count)
	}
	return fmt.Errorf("empty guest operation")
}

func (h *Harness) node(name string) (*guest.Widget, *schema.Widget, error) {
	w, ok := h.names[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown node %q", name)
	}
	def, ok := h.schema.Widget(w.Tag())
	if !ok {
		return nil, nil, fmt.Errorf("node %q has unknown widget tag %d", name, w.Tag())
	}
	return w, def, nil
}

func (h *Harness) slot(ref SlotRef) (*guest.WidgetChildren, error) {
	if ref.Parent == "" {
		return h.guest.Root(), nil
	}
	w, def, err := h.node(ref.Parent)
	if err != nil {
		return nil, err
	}
	name := ref.Slot
	if name == "" {
		name = "children"
	}
	c, ok := def.ChildrenNamed(name)
	if !ok {
		return nil, fmt.Errorf("%s has no children slot %q", def.Name, name)
	}
	return w.Children(c.Tag), nil
}

// resolve maps a node name or numeric id to an id.
func (h *Harness) resolve(node string) (protocol.Id, error) {
	if w, ok := h.names[node]; ok {
		return w.Id(), nil
	}
	n, err := strconv.ParseUint(node, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown node %q", node)
	}
	return protocol.Id(n), nil
}

// hostWidget returns the live host widget for a node name or id.
func (h *Harness) hostWidget(node string) (*widget.Widget, error) {
	id, err := h.resolve(node)
	if err != nil {
		return nil, err
	}
	w, ok := h.host.Widget(id)
	if !ok {
		return nil, fmt.Errorf("no live widget with ID %d", id)
	}
	hw, ok := w.(*widget.Widget)
	if !ok {
		return nil, fmt.Errorf("widget %d is %T", id, w)
	}
	return hw, nil
}

func (h *Harness) trigger(op *TriggerOp) (StepResult, error) {
	sr := StepResult{Kind: StepTrigger, Status: "ok"}

	args := make([]protocol.Value, len(op.Args))
	for i, a := range op.Args {
		v, err := protocol.ToValue(a)
		if err != nil {
			return StepResult{}, fmt.Errorf("trigger args[%d]: %w", i, err)
		}
		args[i] = v
	}
	if _, err := h.resolve(op.Node); err != nil {
		return StepResult{}, err
	}

	w, err := h.hostWidget(op.Node)
	if err == nil {
		err = w.Trigger(op.Event, args...)
	}
	if err != nil {
		sr.Status = "error"
		sr.Code = string(protocol.CodeOf(err))
		sr.Error = err.Error()
	}
	return sr, nil
}

// deliver journals a host event and hands it to the guest.
func (h *Harness) deliver(e protocol.Event) error {
	err := h.store.WriteEvent(context.Background(), store.Event{
		TreeID: h.scenario.Name,
		Seq:    h.clock.Next(),
		Event:  e,
	})
	if err != nil {
		return fmt.Errorf("journal event: %w", err)
	}
	return h.guest.SendEvent(e)
}

// checkStep compares a step outcome with its expectation and returns a
// description of the first difference, or "".
func (h *Harness) checkStep(sr StepResult, want *ExpectClause) string {
	if want == nil {
		if sr.Status == string(store.StatusApplied) || sr.Status == "ok" {
			return ""
		}
		return fmt.Sprintf("unexpected %s: %s", sr.Status, sr.Error)
	}
	if sr.Status != want.Status {
		return fmt.Sprintf("status: expected %s, got %s (%s)", want.Status, sr.Status, sr.Error)
	}
	if want.Code != "" && sr.Code != want.Code {
		return fmt.Sprintf("code: expected %s, got %q", want.Code, sr.Code)
	}
	if want.Error != "" && sr.Error != want.Error {
		return fmt.Sprintf("error: expected %q, got %q", want.Error, sr.Error)
	}
	if want.Render != "" {
		got, err := widget.Render(h.schema, h.root)
		if err != nil {
			return fmt.Sprintf("render: %v", err)
		}
		if got != want.Render {
			return fmt.Sprintf("render: expected\n%s\ngot\n%s", want.Render, got)
		}
	}
	return ""
}

// fill copies the final host and guest state into result.
func (h *Harness) fill(result *Result) error {
	render, err := widget.Render(h.schema, h.root)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fp, err := h.host.Fingerprint()
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	result.Render = render
	result.Fingerprint = fp
	result.NodeCount = h.host.NodeCount()
	result.HostEvents = h.events.Len()
	result.GuestEvents = append(result.GuestEvents, h.received...)
	result.Mismatches = append(result.Mismatches, h.mismatches.Mismatches()...)
	return nil
}
