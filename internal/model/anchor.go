package model

import "slices"

// AnchorRecord is the transient view of one anchor's relevant attributes.
// It is extracted fresh from markup or the DOM on every inspection.
type AnchorRecord struct {
	// Href is the raw (entity-decoded) href attribute value.
	Href string

	// Rel holds the existing rel tokens in document order.
	Rel []string

	// Class holds the existing class tokens in document order.
	Class []string

	// Target is the existing target value; meaningful only when HasTarget.
	Target string

	// HasTarget reports whether the anchor carries a target attribute at all,
	// including an empty one.
	HasTarget bool

	// HasIcon reports whether an element with IconClass already exists
	// inside the anchor.
	HasIcon bool
}

// HasClass reports whether the record carries the exact class token.
func (a AnchorRecord) HasClass(token string) bool {
	return slices.Contains(a.Class, token)
}

// Classification is the outcome of classifying one anchor.
type Classification int

const (
	// Internal links point at the site itself, or could not be parsed.
	Internal Classification = iota
	// Special links use non-HTTP schemes or are fragment-only or empty.
	Special
	// ExcludedByClass links are external but carry an excluded class.
	ExcludedByClass
	// ExcludedByDomain links are external but point at an excluded domain.
	ExcludedByDomain
	// External links are annotated.
	External
)

// Classifications lists every classification in declaration order.
var Classifications = []Classification{Internal, Special, ExcludedByClass, ExcludedByDomain, External}

// String returns the snake_case name of the classification.
func (c Classification) String() string {
	switch c {
	case Internal:
		return "internal"
	case Special:
		return "special"
	case ExcludedByClass:
		return "excluded_by_class"
	case ExcludedByDomain:
		return "excluded_by_domain"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Annotated reports whether the classification triggers annotation.
func (c Classification) Annotated() bool {
	return c == External
}

// IconInsertion instructs a rewriter to place icon markup inside an anchor.
type IconInsertion struct {
	// Markup is the opaque fragment produced by the icon renderer.
	Markup string

	// Position is IconBefore or IconAfter.
	Position IconPosition
}

// AttributeDelta holds the final values an annotated anchor must carry.
// A field is only written when its matching flag is set, which keeps
// untouched attributes byte-identical.
type AttributeDelta struct {
	// Target is the value to write when SetTarget is true.
	Target    string
	SetTarget bool

	// Rel is the full, ordered rel token set to write when RelChanged is true.
	Rel        []string
	RelChanged bool

	// Class is the full, ordered class token set to write when ClassChanged is true.
	Class        []string
	ClassChanged bool

	// Icon is non-nil when an icon must be inserted.
	Icon *IconInsertion
}

// Empty reports whether applying the delta changes nothing.
func (d AttributeDelta) Empty() bool {
	return !d.SetTarget && !d.RelChanged && !d.ClassChanged && d.Icon == nil
}

// Apply returns the record as it would look after the delta was written.
func (d AttributeDelta) Apply(a AnchorRecord) AnchorRecord {
	out := a
	out.Rel = slices.Clone(a.Rel)
	out.Class = slices.Clone(a.Class)
	if d.SetTarget {
		out.Target = d.Target
		out.HasTarget = true
	}
	if d.RelChanged {
		out.Rel = slices.Clone(d.Rel)
	}
	if d.ClassChanged {
		out.Class = slices.Clone(d.Class)
	}
	if d.Icon != nil {
		out.HasIcon = true
	}
	return out
}
