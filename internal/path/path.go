// Package path parses dotted variable paths like "Foo.bar.0" into segments.
// Integer segments address array elements, everything else addresses object
// keys. Shared by the command interpreter (writes) and the macro engine
// (reads).
package path

import (
	"regexp"
	"strconv"
	"strings"
)

var indexPattern = regexp.MustCompile(`^-?\d+$`)

// Segment is one step of a dotted path: either an object key or an array
// index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Parse splits a dotted path into segments. Empty segments (from doubled or
// trailing dots) are dropped.
func Parse(p string) []Segment {
	parts := strings.Split(p, ".")
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if indexPattern.MatchString(part) {
			idx, _ := strconv.Atoi(part)
			segs = append(segs, Segment{Key: part, Index: idx, IsIndex: true})
			continue
		}
		segs = append(segs, Segment{Key: part})
	}
	return segs
}

// String reconstructs the dotted path.
func (s Segment) String() string {
	return s.Key
}

// Join renders segments back into a dotted path.
func Join(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Key
	}
	return strings.Join(parts, ".")
}

// Get traverses a value along segments, descending arrays by index and
// objects by key. Any missing or mistyped step returns (nil, false).
func Get(root any, segs []Segment) (any, bool) {
	cur := root
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg.Key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(c) {
				return nil, false
			}
			cur = c[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at segs below root, auto-creating intermediate
// containers. Whether a created container is an array or an object is
// decided by the following segment: integer means array. root must be a map
// or slice; the (possibly reallocated) root is returned.
func Set(root any, segs []Segment, value any) (any, bool) {
	if len(segs) == 0 {
		return root, false
	}
	return setStep(root, segs, value)
}

func setStep(cur any, segs []Segment, value any) (any, bool) {
	seg := segs[0]
	last := len(segs) == 1

	switch c := cur.(type) {
	case map[string]any:
		if last {
			c[seg.Key] = value
			return c, true
		}
		child, ok := c[seg.Key]
		if !ok || child == nil {
			child = newContainer(segs[1])
		}
		updated, ok := setStep(child, segs[1:], value)
		if !ok {
			return c, false
		}
		c[seg.Key] = updated
		return c, true

	case []any:
		if !seg.IsIndex || seg.Index < 0 {
			return c, false
		}
		for len(c) <= seg.Index {
			c = append(c, nil)
		}
		if last {
			c[seg.Index] = value
			return c, true
		}
		child := c[seg.Index]
		if child == nil {
			child = newContainer(segs[1])
		}
		updated, ok := setStep(child, segs[1:], value)
		if !ok {
			return c, false
		}
		c[seg.Index] = updated
		return c, true

	default:
		return cur, false
	}
}

// newContainer chooses the container for an auto-created intermediate step:
// an array when the next segment is an integer, an object otherwise.
func newContainer(next Segment) any {
	if next.IsIndex {
		return []any{}
	}
	return map[string]any{}
}
