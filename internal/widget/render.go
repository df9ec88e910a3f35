package widget

import (
	"fmt"
	"strings"

	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/schema"
)

// Render formats the tree under root, one widget per line:
//
//	Row#1 spacing=8 @Grow{"value":1.0}
//	  children:
//	    Text#2 text="hello"
//
// Properties are listed in tag order with canonical JSON values. An empty
// tree renders as "(empty)".
func Render(s *schema.Schema, root *List) (string, error) {
	var b strings.Builder
	if root.Len() == 0 {
		b.WriteString("(empty)\n")
		return b.String(), nil
	}
	for _, w := range root.Widgets() {
		if err := renderWidget(&b, s, w, 0); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderWidget(b *strings.Builder, s *schema.Schema, w *Widget, depth int) error {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s#%d", indent, w.def.Name, w.id)

	for _, p := range w.def.Properties {
		v, ok := w.props[p.Tag]
		if !ok {
			continue
		}
		data, err := protocol.MarshalCanonical(v)
		if err != nil {
			return fmt.Errorf("%s#%d property %s: %w", w.def.Name, w.id, p.Name, err)
		}
		fmt.Fprintf(b, " %s=%s", p.Name, data)
	}

	for _, e := range w.modifiers {
		name := fmt.Sprintf("Modifier%d", e.Tag)
		if m, ok := s.Modifier(e.Tag); ok {
			name = m.Name
		}
		b.WriteString(" @")
		b.WriteString(name)
		if !protocol.IsNull(e.Value) {
			data, err := protocol.MarshalCanonical(e.Value)
			if err != nil {
				return fmt.Errorf("%s#%d modifier %s: %w", w.def.Name, w.id, name, err)
			}
			b.Write(data)
		}
	}
	b.WriteByte('\n')

	for _, c := range w.def.Children {
		l, ok := w.slots[c.Tag]
		if !ok || l.Len() == 0 {
			continue
		}
		fmt.Fprintf(b, "%s  %s:\n", indent, c.Name)
		for _, child := range l.Widgets() {
			if err := renderWidget(b, s, child, depth+2); err != nil {
				return err
			}
		}
	}
	return nil
}
