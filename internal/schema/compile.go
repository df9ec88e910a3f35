package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// CompileString compiles CUE source into a schema. filename is used in
// error positions.
func CompileString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile reads a schema from the root of a CUE value. It fails on the first
// structural problem; semantic checks such as tag ranges and uniqueness are
// left to Validate.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{}

	header := v.LookupPath(cue.ParsePath("schema"))
	if header.Exists() {
		if nameVal := header.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
			name, err := nameVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			s.Name = name
		}
		if tagVal := header.LookupPath(cue.ParsePath("tag")); tagVal.Exists() {
			tag, err := intField(tagVal, "schema.tag")
			if err != nil {
				return nil, err
			}
			s.Tag = tag
		}
	}

	widgetsVal := v.LookupPath(cue.ParsePath("widget"))
	if widgetsVal.Exists() {
		iter, err := widgetsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			w, err := compileWidget(s.Tag, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			s.Widgets = append(s.Widgets, w)
		}
	}

	modifiersVal := v.LookupPath(cue.ParsePath("modifier"))
	if modifiersVal.Exists() {
		iter, err := modifiersVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := compileModifier(s.Tag, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			s.Modifiers = append(s.Modifiers, m)
		}
	}

	if len(s.Widgets) == 0 && len(s.Modifiers) == 0 {
		return nil, &CompileError{
			Field:   "widget",
			Message: "schema declares no widgets or modifiers",
			Pos:     v.Pos(),
		}
	}

	s.index()
	return s, nil
}

func compileWidget(schemaTag int, name string, v cue.Value) (Widget, error) {
	field := "widget." + name
	w := Widget{Name: name}

	tagVal := v.LookupPath(cue.ParsePath("tag"))
	if !tagVal.Exists() {
		return w, &CompileError{Field: field + ".tag", Message: "tag is required", Pos: v.Pos()}
	}
	tag, err := intField(tagVal, field+".tag")
	if err != nil {
		return w, err
	}
	w.MemberTag = tag
	w.Tag = protocol.WidgetTag(schemaTag*MaxMemberTag + tag)

	err = eachMember(v, "property", func(name string, tag int, mv cue.Value) error {
		typeVal := mv.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return &CompileError{Field: fmt.Sprintf("%s.property.%s.type", field, name), Message: "type is required", Pos: mv.Pos()}
		}
		typ, nullable, err := extractType(typeVal)
		if err != nil {
			return err
		}
		w.Properties = append(w.Properties, Property{Name: name, Tag: protocol.PropertyTag(tag), Type: typ, Nullable: nullable})
		return nil
	})
	if err != nil {
		return w, err
	}

	err = eachMember(v, "children", func(name string, tag int, mv cue.Value) error {
		w.Children = append(w.Children, Children{Name: name, Tag: protocol.ChildrenTag(tag)})
		return nil
	})
	if err != nil {
		return w, err
	}

	err = eachMember(v, "event", func(name string, tag int, mv cue.Value) error {
		e := Event{Name: name, Tag: protocol.EventTag(tag)}
		if argVal := mv.LookupPath(cue.ParsePath("arg")); argVal.Exists() {
			typ, _, err := extractType(argVal)
			if err != nil {
				return err
			}
			e.Arg = typ
		}
		w.Events = append(w.Events, e)
		return nil
	})
	return w, err
}

func compileModifier(schemaTag int, name string, v cue.Value) (Modifier, error) {
	field := "modifier." + name
	m := Modifier{Name: name}

	tagVal := v.LookupPath(cue.ParsePath("tag"))
	if !tagVal.Exists() {
		return m, &CompileError{Field: field + ".tag", Message: "tag is required", Pos: v.Pos()}
	}
	tag, err := intField(tagVal, field+".tag")
	if err != nil {
		return m, err
	}
	m.MemberTag = tag
	m.Tag = protocol.ModifierTag(schemaTag*MaxMemberTag + tag)

	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		typ, _, err := extractType(valueVal)
		if err != nil {
			return m, err
		}
		m.Value = typ
	}
	return m, nil
}

// eachMember walks the struct at section (property, children or event),
// requiring an integer tag on every entry.
func eachMember(v cue.Value, section string, fn func(name string, tag int, mv cue.Value) error) error {
	sectionVal := v.LookupPath(cue.ParsePath(section))
	if !sectionVal.Exists() {
		return nil
	}
	iter, err := sectionVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		mv := iter.Value()
		tagVal := mv.LookupPath(cue.ParsePath("tag"))
		if !tagVal.Exists() {
			return &CompileError{Field: fmt.Sprintf("%s.%s.tag", section, name), Message: "tag is required", Pos: mv.Pos()}
		}
		tag, err := intField(tagVal, fmt.Sprintf("%s.%s.tag", section, name))
		if err != nil {
			return err
		}
		if err := fn(name, tag, mv); err != nil {
			return err
		}
	}
	return nil
}

func intField(v cue.Value, field string) (int, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an integer", Pos: v.Pos()}
	}
	return int(n), nil
}

// extractType maps a CUE type expression to a ValueType. A disjunction with
// null marks the type nullable.
func extractType(v cue.Value) (ValueType, bool, error) {
	kind := v.IncompleteKind()
	if kind == cue.TopKind {
		return TypeAny, true, nil
	}
	nullable := kind&cue.NullKind != 0
	kind &^= cue.NullKind

	switch kind {
	case cue.StringKind:
		return TypeString, nullable, nil
	case cue.IntKind:
		return TypeInt, nullable, nil
	case cue.FloatKind, cue.NumberKind:
		return TypeFloat, nullable, nil
	case cue.BoolKind:
		return TypeBool, nullable, nil
	case cue.ListKind:
		return TypeArray, nullable, nil
	case cue.StructKind:
		return TypeObject, nullable, nil
	default:
		return "", false, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
