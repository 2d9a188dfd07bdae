// Package ref implements the dotted/bracketed reference algebra used
// throughout muscle3-go to address kernels, instances, ports and slots.
//
// A Reference is an immutable sequence of segments, each either an
// Identifier ("foo", "sub_model") or an Integer ("[3]"). References are
// value types: concatenation and slicing always return a new Reference,
// equality is structural.
package ref

import (
	"fmt"
	"strconv"
	"strings"
)

// segmentKind distinguishes the two kinds of Reference segment.
type segmentKind int

const (
	kindIdentifier segmentKind = iota
	kindInteger
)

type segment struct {
	kind segmentKind
	name string
	num  int
}

// Reference is an immutable dotted path of identifier and integer segments,
// e.g. "kernel.sub[3][2].port".
type Reference struct {
	segments []segment
}

// Identifier is a Reference with exactly one identifier segment.
type Identifier = Reference

// Empty is the zero-length Reference.
var Empty = Reference{}

// Parse builds a Reference from its canonical string form.
//
// Grammar (spec.md §6):
//
//	reference   := segment ("." segment | "[" integer "]")*
//	segment     := identifier
//	identifier  := [A-Za-z_][A-Za-z0-9_]*
//	integer     := 0 | [1-9][0-9]*
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, fmt.Errorf("ref: empty reference")
	}

	var segs []segment
	i := 0
	n := len(s)
	expectDotOrBracket := false

	for i < n {
		switch {
		case s[i] == '.':
			if !expectDotOrBracket {
				return Reference{}, fmt.Errorf("ref: unexpected '.' at offset %d in %q", i, s)
			}
			i++
			expectDotOrBracket = false
		case s[i] == '[':
			if !expectDotOrBracket {
				return Reference{}, fmt.Errorf("ref: unexpected '[' at offset %d in %q", i, s)
			}
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Reference{}, fmt.Errorf("ref: unterminated '[' in %q", s)
			}
			end += i
			numStr := s[i+1 : end]
			num, err := parseNonNegativeInt(numStr)
			if err != nil {
				return Reference{}, fmt.Errorf("ref: invalid integer segment %q in %q: %w", numStr, s, err)
			}
			segs = append(segs, segment{kind: kindInteger, num: num})
			i = end + 1
			expectDotOrBracket = true
		default:
			if expectDotOrBracket {
				return Reference{}, fmt.Errorf("ref: expected '.' or '[' at offset %d in %q", i, s)
			}
			start := i
			for i < n && s[i] != '.' && s[i] != '[' {
				i++
			}
			name := s[start:i]
			if !isValidIdentifier(name) {
				return Reference{}, fmt.Errorf("ref: invalid identifier %q in %q", name, s)
			}
			segs = append(segs, segment{kind: kindIdentifier, name: name})
			expectDotOrBracket = true
		}
	}

	if len(segs) == 0 {
		return Reference{}, fmt.Errorf("ref: no segments parsed from %q", s)
	}
	if !expectDotOrBracket {
		return Reference{}, fmt.Errorf("ref: trailing '.' in %q", s)
	}

	return Reference{segments: segs}, nil
}

// MustParse is like Parse but panics on error; intended for literals.
func MustParse(s string) Reference {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseNonNegativeInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty integer segment")
	}
	if s[0] == '+' {
		return 0, fmt.Errorf("integer segment %q has a sign", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative integer segment %d", n)
	}
	if s != "0" && s[0] == '0' {
		return 0, fmt.Errorf("integer segment %q has leading zero", s)
	}
	return n, nil
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isLetter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
		isDigit := c >= '0' && c <= '9'
		if i == 0 {
			if !isLetter {
				return false
			}
		} else if !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// FromIndex builds a Reference consisting solely of integer segments, such
// as an instance index or a slot.
func FromIndex(index []int) Reference {
	return Reference{}.WithIndex(index)
}

// NewIdentifier builds a single-segment Reference from a plain identifier
// string, rejecting anything that isn't a legal identifier.
func NewIdentifier(name string) (Identifier, error) {
	if !isValidIdentifier(name) {
		return Reference{}, fmt.Errorf("ref: %q is not a valid identifier", name)
	}
	return Reference{segments: []segment{{kind: kindIdentifier, name: name}}}, nil
}

// Len returns the number of segments in the Reference.
func (r Reference) Len() int {
	return len(r.segments)
}

// IsEmpty reports whether the Reference has zero segments.
func (r Reference) IsEmpty() bool {
	return len(r.segments) == 0
}

// String renders the canonical form: identifiers separated by '.', integer
// segments rendered as "[n]" glued to the previous segment.
func (r Reference) String() string {
	var b strings.Builder
	for i, s := range r.segments {
		switch s.kind {
		case kindIdentifier:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.name)
		case kindInteger:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.num))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Equal reports structural equality.
func (r Reference) Equal(other Reference) bool {
	if len(r.segments) != len(other.segments) {
		return false
	}
	for i := range r.segments {
		if r.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Concat appends another Reference's segments and returns the result.
func (r Reference) Concat(other Reference) Reference {
	out := make([]segment, 0, len(r.segments)+len(other.segments))
	out = append(out, r.segments...)
	out = append(out, other.segments...)
	return Reference{segments: out}
}

// WithIdentifier appends a single identifier segment.
func (r Reference) WithIdentifier(name string) (Reference, error) {
	id, err := NewIdentifier(name)
	if err != nil {
		return Reference{}, err
	}
	return r.Concat(id), nil
}

// WithInteger appends a single integer segment.
func (r Reference) WithInteger(n int) (Reference, error) {
	if n < 0 {
		return Reference{}, fmt.Errorf("ref: negative integer segment %d", n)
	}
	return Reference{segments: append(append([]segment{}, r.segments...), segment{kind: kindInteger, num: n})}, nil
}

// WithIndex appends a sequence of integer segments, e.g. an instance index
// or a slot.
func (r Reference) WithIndex(index []int) Reference {
	out := append([]segment{}, r.segments...)
	for _, n := range index {
		out = append(out, segment{kind: kindInteger, num: n})
	}
	return Reference{segments: out}
}

// Prefix returns the first n segments.
func (r Reference) Prefix(n int) Reference {
	if n > len(r.segments) {
		n = len(r.segments)
	}
	if n < 0 {
		n = 0
	}
	return Reference{segments: append([]segment{}, r.segments[:n]...)}
}

// DropLast returns the Reference without its final segment. Calling it on
// an empty Reference returns Empty.
func (r Reference) DropLast() Reference {
	if len(r.segments) == 0 {
		return Reference{}
	}
	return r.Prefix(len(r.segments) - 1)
}

// Last returns the final segment as a Reference of length 1.
func (r Reference) Last() Reference {
	if len(r.segments) == 0 {
		return Reference{}
	}
	return Reference{segments: []segment{r.segments[len(r.segments)-1]}}
}

// IsIdentifier reports whether the Reference is a single identifier
// segment (the kind of value legal as a port name).
func (r Reference) IsIdentifier() bool {
	return len(r.segments) == 1 && r.segments[0].kind == kindIdentifier
}

// AsIndex interprets the Reference as a sequence of integer segments
// (e.g. an instance index or a slot) and returns it as []int. It errors if
// any segment is not an integer.
func (r Reference) AsIndex() ([]int, error) {
	out := make([]int, 0, len(r.segments))
	for _, s := range r.segments {
		if s.kind != kindInteger {
			return nil, fmt.Errorf("ref: segment %q is not an integer", s.name)
		}
		out = append(out, s.num)
	}
	return out, nil
}
