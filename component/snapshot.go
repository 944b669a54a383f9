package component

import (
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// Snapshot is the serializable listing of a subtree: identity, tags,
// option and property metadata, visible signals, and children in traversal
// order. Remote clients render it; the tree store persists it.
type Snapshot struct {
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	Path       string                `json:"path"`
	Descr      string                `json:"description,omitempty"`
	Target     string                `json:"target,omitempty"`
	Tags       []string              `json:"tags,omitempty"`
	Options    []option.Info         `json:"options,omitempty"`
	Properties []option.PropertyInfo `json:"properties,omitempty"`
	Signals    []signal.Info         `json:"signals,omitempty"`
	Children   []Snapshot            `json:"children,omitempty"`
}

// TakeSnapshot captures the subtree rooted at c. It is a pure read; the
// kernel runs it under the shared lock.
func TakeSnapshot(c Component) Snapshot {
	b := c.AsBase()
	snap := Snapshot{
		Name:       b.Name(),
		Type:       b.Type(),
		Path:       b.FullPath(),
		Descr:      b.Description(),
		Tags:       b.Tags(),
		Options:    b.Options().Describe(),
		Properties: b.Properties().Describe(),
		Signals:    b.Signals().Describe(),
	}
	if link, ok := c.(Linker); ok {
		snap.Target = link.Target()
	}
	for _, child := range b.children {
		snap.Children = append(snap.Children, TakeSnapshot(child))
	}
	return snap
}

// Count returns the number of components in the snapshot, itself included.
func (s Snapshot) Count() int {
	n := 1
	for _, c := range s.Children {
		n += c.Count()
	}
	return n
}

// Find returns the child snapshot at the relative name sequence, depth
// first. It mirrors Child lookups on the live tree for test assertions and
// client-side display.
func (s Snapshot) Find(names ...string) (Snapshot, bool) {
	cur := s
	for _, name := range names {
		found := false
		for _, c := range cur.Children {
			if c.Name == name {
				cur = c
				found = true
				break
			}
		}
		if !found {
			return Snapshot{}, false
		}
	}
	return cur, true
}
