package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext carries what assertions inspect.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
	Result  *Result
}

// EvaluateAssertions runs every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	r := actx.Result
	switch a.Type {
	case AssertRender:
		return assertRender(r.Render, a.Expect)
	case AssertNodeCount:
		return assertCount(a.Type, *a.Count, r.NodeCount)
	case AssertMismatchCount:
		return assertCount(a.Type, *a.Count, len(r.Mismatches))
	case AssertGuestEvents:
		return assertCount(a.Type, *a.Count, len(r.GuestEvents))
	case AssertPlaceholder:
		return assertPlaceholder(actx.Harness, a.Node)
	case AssertProperty:
		return assertProperty(actx.Harness, a)
	case AssertReplay:
		return assertReplay(actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertRender(got, want string) error {
	if got == want {
		return nil
	}
	return &AssertionError{Type: AssertRender, Expected: "\n" + want, Actual: "\n" + got}
}

func assertCount(typ string, want, got int) error {
	if got == want {
		return nil
	}
	return &AssertionError{Type: typ, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
}

func assertPlaceholder(h *Harness, node string) error {
	id, err := h.resolve(node)
	if err != nil {
		return err
	}
	if h.host.IsPlaceholder(id) {
		return nil
	}
	actual := "not live"
	if h.host.Has(id) {
		actual = "a known widget"
	}
	return &AssertionError{
		Type:     AssertPlaceholder,
		Expected: fmt.Sprintf("node %d to be a placeholder", id),
		Actual:   actual,
	}
}

func assertProperty(h *Harness, a Assertion) error {
	w, err := h.hostWidget(a.Node)
	if err != nil {
		return err
	}
	want, err := protocol.ToValue(a.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	got, ok := w.Property(a.Property)
	actual := "unset"
	if ok {
		actual = protocol.ValueString(got)
		if actual == protocol.ValueString(want) {
			return nil
		}
	} else if protocol.IsNull(want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertProperty,
		Expected: fmt.Sprintf("%s.%s = %s", a.Node, a.Property, protocol.ValueString(want)),
		Actual:   actual,
	}
}

func assertReplay(actx *AssertionContext) error {
	h := actx.Harness
	res, err := h.store.ReplayTree(actx.Ctx, h.scenario.Name, h.newBridge)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if res.OK() {
		return nil
	}

	lines := make([]string, 0, len(res.Divergences)+1)
	for _, d := range res.Divergences {
		lines = append(lines, d.String())
	}
	if !res.Deterministic {
		lines = append(lines, "second replay ended with a different fingerprint")
	}
	return &AssertionError{
		Type:     AssertReplay,
		Expected: "journal replays identically",
		Actual:   strings.Join(lines, "; "),
	}
}
