package template

import (
	"fmt"

	"github.com/NANATribe/iomt-fhir/errors"
)

// MatchMode controls how many templates a collection applies to one event.
type MatchMode int

const (
	// MatchFirst stops at the first template whose type match succeeds.
	// Output cardinality stays predictable, so it is the default.
	MatchFirst MatchMode = iota

	// MatchAll applies every template that matches.
	MatchAll
)

func (m MatchMode) String() string {
	switch m {
	case MatchFirst:
		return "first"
	case MatchAll:
		return "all"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ParseMatchMode maps a config string to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "first":
		return MatchFirst, nil
	case "all":
		return MatchAll, nil
	default:
		return MatchFirst, errors.WrapFatal(
			fmt.Errorf("%w: unknown match mode %q", errors.ErrInvalidConfig, s),
			"TemplateCollection", "ParseMatchMode", "parse match mode")
	}
}

// Collection is an ordered, immutable set of templates tested in declaration
// order against each event. Build one per template document and share it
// freely; a reload produces a new Collection rather than mutating this one.
type Collection struct {
	templates []*ContentTemplate
	mode      MatchMode
}

// NewCollection validates every template and freezes the set.
func NewCollection(mode MatchMode, templates ...*ContentTemplate) (*Collection, error) {
	if len(templates) == 0 {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: collection holds no templates", errors.ErrTemplateInvalid),
			"TemplateCollection", "NewCollection", "check templates")
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return &Collection{templates: templates, mode: mode}, nil
}

// Len returns the number of templates in the collection.
func (c *Collection) Len() int {
	return len(c.templates)
}

// Mode returns the configured match mode.
func (c *Collection) Mode() MatchMode {
	return c.mode
}

// Templates returns the templates in declaration order. Callers must not
// mutate the returned slice.
func (c *Collection) Templates() []*ContentTemplate {
	return c.templates
}

// Match returns the templates that apply to the document, honoring the match
// mode. A template whose type match expression fails to evaluate is treated
// as non-matching; those failures come back in errs so the caller can count
// them without losing the surviving matches.
func (c *Collection) Match(document any) (matched []*ContentTemplate, errs []error) {
	for _, t := range c.templates {
		ok, err := t.Matches(document)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		matched = append(matched, t)
		if c.mode == MatchFirst {
			break
		}
	}
	return matched, errs
}
