// internal/store/layout.go
package store

import (
	"fmt"
	"sort"
	"strings"
)

// Layout decides which subtrees are stored as separate backend documents.
// Each pattern ends in "*" and names the members of a collection, e.g.
// "rooms/*/players/*". Transactions watch only the documents under their
// path, so writers of sibling documents never conflict.
type Layout struct {
	root     *pattern
	patterns []*pattern
}

type pattern struct {
	segs     []string
	children []*pattern
}

// DefaultLayout stores each room and each room player as its own document.
func DefaultLayout() *Layout {
	l, err := NewLayout("rooms/*", "rooms/*/players/*")
	if err != nil {
		panic(err)
	}
	return l
}

// NewLayout validates the shard patterns and links each one to its parent.
func NewLayout(patterns ...string) (*Layout, error) {
	l := &Layout{root: &pattern{}}
	for _, p := range patterns {
		segs, err := splitPath(p)
		if err != nil {
			return nil, err
		}
		if segs[len(segs)-1] != "*" {
			return nil, fmt.Errorf("store: layout pattern %q must end in *", p)
		}
		l.patterns = append(l.patterns, &pattern{segs: segs})
	}
	// shallow patterns first so parents are linked before children
	sort.SliceStable(l.patterns, func(i, j int) bool {
		return len(l.patterns[i].segs) < len(l.patterns[j].segs)
	})
	for _, p := range l.patterns {
		parent := l.root
		collection := p.segs[:len(p.segs)-1]
		for _, q := range l.patterns {
			if len(q.segs) <= len(collection) && len(q.segs) > len(parent.segs) && patternPrefix(q.segs, collection) {
				parent = q
			}
		}
		for _, s := range collection[len(parent.segs):] {
			if s == "*" {
				return nil, fmt.Errorf("store: pattern %q has a wildcard outside any shard", joinPath(p.segs))
			}
		}
		parent.children = append(parent.children, p)
	}
	return l, nil
}

// owner returns the length of the deepest shard prefix of segs and its pattern.
func (l *Layout) owner(segs []string) (int, *pattern) {
	for i := len(segs); i > 0; i-- {
		for _, p := range l.patterns {
			if matches(p.segs, segs[:i]) {
				return i, p
			}
		}
	}
	return 0, l.root
}

// collection instantiates the collection path of child pattern c under the
// concrete shard path segs.
func (c *pattern) collection(segs []string) []string {
	out := make([]string, 0, len(c.segs)-1)
	out = append(out, segs...)
	return append(out, c.segs[len(segs):len(c.segs)-1]...)
}

func matches(pat, segs []string) bool {
	if len(pat) != len(segs) {
		return false
	}
	for i := range pat {
		if pat[i] != "*" && pat[i] != segs[i] {
			return false
		}
	}
	return true
}

func patternPrefix(prefix, segs []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if prefix[i] != segs[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("store: empty path")
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("store: invalid path %q", path)
		}
	}
	return segs, nil
}

func joinPath(segs []string) string {
	return strings.Join(segs, "/")
}

// overlaps reports whether one path is an ancestor of, or equal to, the other.
func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func docKey(segs []string) string {
	return "doc:" + joinPath(segs)
}

func indexKey(collection []string) string {
	return "idx:" + joinPath(collection)
}

func appendSeg(segs []string, s string) []string {
	out := make([]string, len(segs)+1)
	copy(out, segs)
	out[len(segs)] = s
	return out
}
