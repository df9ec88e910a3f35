package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Validation error codes (E200-E299)
const (
	ErrSchemaTagRange      = "E201" // schema tag outside [0, 4000]
	ErrMemberTagRange      = "E202" // widget or modifier tag outside [1, 1000000)
	ErrDuplicateWidgetTag  = "E203" // two widgets share a tag
	ErrDuplicateModTag     = "E204" // two modifiers share a tag
	ErrDuplicatePropTag    = "E205" // properties and events of a widget share a tag
	ErrDuplicateChildTag   = "E206" // two children slots of a widget share a tag
	ErrDuplicateMemberName = "E207" // a property, event and slot share a name
	ErrNonPositiveTag      = "E208" // property, event or children tag below 1
)

// ValidationError is one semantic problem in a compiled schema.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks tag ranges and uniqueness. It returns every problem found.
func Validate(s *Schema) []ValidationError {
	var errs []ValidationError

	if s.Tag < 0 || s.Tag > MaxSchemaTag {
		errs = append(errs, ValidationError{
			Field:   "schema.tag",
			Message: fmt.Sprintf("Schema tag must be in range [0, %d]: %d", MaxSchemaTag, s.Tag),
			Code:    ErrSchemaTagRange,
		})
	}

	widgetsByTag := make(map[int][]string)
	for _, w := range s.Widgets {
		if w.MemberTag < 1 || w.MemberTag >= MaxMemberTag {
			errs = append(errs, ValidationError{
				Field:   "widget." + w.Name + ".tag",
				Message: fmt.Sprintf("tag must be in range [1, %d): %d", MaxMemberTag, w.MemberTag),
				Code:    ErrMemberTagRange,
			})
		}
		widgetsByTag[int(w.Tag)] = append(widgetsByTag[int(w.Tag)], w.Name)
		errs = append(errs, validateWidget(w)...)
	}
	errs = append(errs, duplicates("widget", "widget", widgetsByTag, ErrDuplicateWidgetTag)...)

	modifiersByTag := make(map[int][]string)
	for _, m := range s.Modifiers {
		if m.MemberTag < 1 || m.MemberTag >= MaxMemberTag {
			errs = append(errs, ValidationError{
				Field:   "modifier." + m.Name + ".tag",
				Message: fmt.Sprintf("tag must be in range [1, %d): %d", MaxMemberTag, m.MemberTag),
				Code:    ErrMemberTagRange,
			})
		}
		modifiersByTag[int(m.Tag)] = append(modifiersByTag[int(m.Tag)], m.Name)
	}
	errs = append(errs, duplicates("modifier", "modifier", modifiersByTag, ErrDuplicateModTag)...)

	return errs
}

func validateWidget(w Widget) []ValidationError {
	var errs []ValidationError
	field := "widget." + w.Name

	// Properties and events share one tag space on the wire.
	propTags := make(map[int][]string)
	childTags := make(map[int][]string)
	names := make(map[string]int)

	check := func(kind, name string, tag int) {
		if tag < 1 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s.%s.tag", field, kind, name),
				Message: fmt.Sprintf("tag must be positive: %d", tag),
				Code:    ErrNonPositiveTag,
			})
		}
		names[name]++
	}
	for _, p := range w.Properties {
		check("property", p.Name, int(p.Tag))
		propTags[int(p.Tag)] = append(propTags[int(p.Tag)], p.Name)
	}
	for _, e := range w.Events {
		check("event", e.Name, int(e.Tag))
		propTags[int(e.Tag)] = append(propTags[int(e.Tag)], e.Name)
	}
	for _, c := range w.Children {
		check("children", c.Name, int(c.Tag))
		childTags[int(c.Tag)] = append(childTags[int(c.Tag)], c.Name)
	}

	errs = append(errs, duplicates(field, w.Name+"'s property", propTags, ErrDuplicatePropTag)...)
	errs = append(errs, duplicates(field, w.Name+"'s children", childTags, ErrDuplicateChildTag)...)

	dupNames := make([]string, 0)
	for name, n := range names {
		if n > 1 {
			dupNames = append(dupNames, name)
		}
	}
	sort.Strings(dupNames)
	for _, name := range dupNames {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("member name %q is used more than once", name),
			Code:    ErrDuplicateMemberName,
		})
	}
	return errs
}

// duplicates reports every tag claimed by more than one name, in tag order.
func duplicates(field, what string, byTag map[int][]string, code string) []ValidationError {
	tags := make([]int, 0)
	for tag, names := range byTag {
		if len(names) > 1 {
			tags = append(tags, tag)
		}
	}
	sort.Ints(tags)

	errs := make([]ValidationError, 0, len(tags))
	for _, tag := range tags {
		names := append([]string(nil), byTag[tag]...)
		sort.Strings(names)
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s tags must be unique: %d used by %s", what, tag, strings.Join(names, ", ")),
			Code:    code,
		})
	}
	return errs
}
