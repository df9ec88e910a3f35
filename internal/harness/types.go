package harness

import (
	"fmt"
	"strings"

	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/testutil"
)

// StepResult is the outcome of one step.
type StepResult struct {
	// Index is the 1-based step number.
	Index int    `json:"index"`
	Kind  string `json:"kind"`

	// BatchID is the journaled batch, empty when nothing reached the host.
	BatchID string `json:"batch_id,omitempty"`
	Changes int    `json:"changes"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReceivedEvent is an event delivered to a guest widget handler.
type ReceivedEvent struct {
	Node  string           `json:"node"`
	Event string           `json:"event"`
	Args  []protocol.Value `json:"args,omitempty"`
}

func (e ReceivedEvent) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = protocol.ValueString(a)
	}
	return fmt.Sprintf("%s.%s(%s)", e.Node, e.Event, strings.Join(args, ", "))
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Render is the final host tree as produced by widget.Render.
	Render string `json:"render"`

	NodeCount   int                 `json:"node_count"`
	Fingerprint uint64              `json:"fingerprint"`
	HostEvents  int                 `json:"host_events"`
	GuestEvents []ReceivedEvent     `json:"guest_events"`
	Mismatches  []testutil.Mismatch `json:"mismatches"`

	// Errors lists failed expectations and assertions. Empty if Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult returns a passing result with nothing recorded.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Steps:       []StepResult{},
		GuestEvents: []ReceivedEvent{},
		Mismatches:  []testutil.Mismatch{},
		Errors:      []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot renders the observable outcome of a run as text for golden
// comparison. Fingerprints are left out; the replay assertion covers them.
func (r *Result) Snapshot(name string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	b.WriteString("steps:\n")
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "  %d %s: %s", s.Index, s.Kind, s.Status)
		if s.Kind != StepTrigger {
			fmt.Fprintf(&b, ", %d changes", s.Changes)
		}
		if s.Code != "" {
			fmt.Fprintf(&b, ", %s", s.Code)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, ": %s", s.Error)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "host events: %d\n", r.HostEvents)

	if len(r.GuestEvents) == 0 {
		b.WriteString("guest events: none\n")
	} else {
		b.WriteString("guest events:\n")
		for _, e := range r.GuestEvents {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}

	if len(r.Mismatches) == 0 {
		b.WriteString("mismatches: none\n")
	} else {
		b.WriteString("mismatches:\n")
		for _, m := range r.Mismatches {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}

	fmt.Fprintf(&b, "nodes: %d\n", r.NodeCount)
	b.WriteString("tree:\n")
	for _, line := range strings.Split(strings.TrimSuffix(r.Render, "\n"), "\n") {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return []byte(b.String())
}
