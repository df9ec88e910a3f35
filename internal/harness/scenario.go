package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cashapp/redwood-sub006/internal/config"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/store"
)

// Scenario is one conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario. It names the golden file and
	// the journaled tree.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Schema is the widget schema directory. Relative paths resolve
	// against the scenario file.
	Schema string `yaml:"schema"`

	// HostVersion is the version the host announces to the guest.
	// Default: config.DefaultHostVersion.
	HostVersion string `yaml:"host_version,omitempty"`

	// Encoding carries guest batches to the host. Default: json.
	Encoding string `yaml:"encoding,omitempty"`

	// Mismatch is the host mismatch policy, "throw" or "log".
	// Default: throw.
	Mismatch string `yaml:"mismatch,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario step. Exactly one of Guest, Batch and Trigger is set.
type Step struct {
	Guest   []GuestOp  `yaml:"guest,omitempty"`
	Batch   string     `yaml:"batch,omitempty"`
	Trigger *TriggerOp `yaml:"trigger,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Kind returns "guest", "batch" or "trigger".
func (s Step) Kind() string {
	switch {
	case s.Guest != nil:
		return StepGuest
	case s.Batch != "":
		return StepBatch
	case s.Trigger != nil:
		return StepTrigger
	default:
		return ""
	}
}

// Step kinds.
const (
	StepGuest   = "guest"
	StepBatch   = "batch"
	StepTrigger = "trigger"
)

// GuestOp is one mutation of the guest tree. Exactly one field is set.
type GuestOp struct {
	Create *CreateOp `yaml:"create,omitempty"`
	Set    *SetOp    `yaml:"set,omitempty"`
	Insert *InsertOp `yaml:"insert,omitempty"`
	Move   *MoveOp   `yaml:"move,omitempty"`
	Remove *RemoveOp `yaml:"remove,omitempty"`
}

// CreateOp creates a guest widget and names it for later ops.
type CreateOp struct {
	Widget string `yaml:"widget"`
	As     string `yaml:"as"`
}

// SetOp sets a property. A missing value sets null.
type SetOp struct {
	Node     string `yaml:"node"`
	Property string `yaml:"property"`
	Value    any    `yaml:"value"`
}

// SlotRef names a children slot. An empty Parent is the root; an empty
// Slot is the parent's "children" slot.
type SlotRef struct {
	Parent string `yaml:"parent,omitempty"`
	Slot   string `yaml:"slot,omitempty"`
}

// InsertOp inserts a created widget into a slot.
type InsertOp struct {
	SlotRef `yaml:",inline"`

	Node  string `yaml:"node"`
	Index int    `yaml:"index"`
}

// MoveOp moves children within a slot.
type MoveOp struct {
	SlotRef `yaml:",inline"`

	From  int `yaml:"from"`
	To    int `yaml:"to"`
	Count int `yaml:"count"`
}

// RemoveOp removes children from a slot.
type RemoveOp struct {
	SlotRef `yaml:",inline"`

	Index int `yaml:"index"`
	Count int `yaml:"count"`
}

// TriggerOp raises an event on a host widget. Node is a guest name or a
// numeric id.
type TriggerOp struct {
	Node  string `yaml:"node"`
	Event string `yaml:"event"`
	Args  []any  `yaml:"args,omitempty"`
}

// ExpectClause is the expected outcome of a step.
type ExpectClause struct {
	// Status is the batch status (applied, rejected, reset) for guest and
	// batch steps, or "ok"/"error" for trigger steps.
	Status string `yaml:"status"`

	// Code is the expected protocol error code.
	Code string `yaml:"code,omitempty"`

	// Error is the exact expected error message.
	Error string `yaml:"error,omitempty"`

	// Render is the expected host tree after the step.
	Render string `yaml:"render,omitempty"`
}

// Assertion checks the final state of a run.
type Assertion struct {
	Type string `yaml:"type"`

	Expect   string `yaml:"expect,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
	Node     string `yaml:"node,omitempty"`
	Property string `yaml:"property,omitempty"`
	Value    any    `yaml:"value,omitempty"`
}

// Assertion types.
const (
	AssertRender        = "render"
	AssertNodeCount     = "node_count"
	AssertPlaceholder   = "placeholder"
	AssertMismatchCount = "mismatch_count"
	AssertGuestEvents   = "guest_events"
	AssertProperty      = "property"
	AssertReplay        = "replay"
)

// LoadScenario reads a scenario file. Unknown fields are errors, and the
// schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema directory not found: %s", s.Schema)
	}
	if s.HostVersion != "" {
		if _, err := protocol.ParseVersion(s.HostVersion); err != nil {
			return fmt.Errorf("host_version: %w", err)
		}
	}
	if s.Encoding != "" {
		if _, err := protocol.ParseEncoding(s.Encoding); err != nil {
			return fmt.Errorf("encoding: %w", err)
		}
	}
	switch s.Mismatch {
	case "", config.MismatchThrow, config.MismatchLog:
	default:
		return fmt.Errorf("mismatch: must be %q or %q, got %q", config.MismatchThrow, config.MismatchLog, s.Mismatch)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	if s.Guest != nil {
		set++
	}
	if s.Batch != "" {
		set++
	}
	if s.Trigger != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of guest, batch or trigger is required", index)
	}

	for j, op := range s.Guest {
		if n := op.count(); n != 1 {
			return fmt.Errorf("steps[%d].guest[%d]: exactly one operation is required, got %d", index, j, n)
		}
		if op.Create != nil && (op.Create.Widget == "" || op.Create.As == "") {
			return fmt.Errorf("steps[%d].guest[%d]: create needs widget and as", index, j)
		}
		if op.Set != nil && (op.Set.Node == "" || op.Set.Property == "") {
			return fmt.Errorf("steps[%d].guest[%d]: set needs node and property", index, j)
		}
		if op.Insert != nil && op.Insert.Node == "" {
			return fmt.Errorf("steps[%d].guest[%d]: insert needs node", index, j)
		}
	}
	if t := s.Trigger; t != nil && (t.Node == "" || t.Event == "") {
		return fmt.Errorf("steps[%d]: trigger needs node and event", index)
	}

	if e := s.Expect; e != nil {
		switch s.Kind() {
		case StepTrigger:
			if e.Status != "ok" && e.Status != "error" {
				return fmt.Errorf("steps[%d].expect: trigger status must be ok or error, got %q", index, e.Status)
			}
		default:
			switch store.BatchStatus(e.Status) {
			case store.StatusApplied, store.StatusRejected, store.StatusReset:
			default:
				return fmt.Errorf("steps[%d].expect: unknown status %q", index, e.Status)
			}
		}
	}
	return nil
}

func (op GuestOp) count() int {
	n := 0
	for _, set := range []bool{op.Create != nil, op.Set != nil, op.Insert != nil, op.Move != nil, op.Remove != nil} {
		if set {
			n++
		}
	}
	return n
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRender:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for render", index)
		}
	case AssertNodeCount, AssertMismatchCount, AssertGuestEvents:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertPlaceholder:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for placeholder", index)
		}
	case AssertProperty:
		if a.Node == "" || a.Property == "" {
			return fmt.Errorf("assertions[%d]: node and property are required for property", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
