package component

import (
	"fmt"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// MaxNameLength bounds component names; paths compose from names, so
// unbounded names would let remote callers grow frames without limit.
const MaxNameLength = 255

// Component is a node in the ownership tree: a unique name among siblings,
// a type tag, ordered children, options, properties, and a signal table.
// Concrete types embed Base and reach their bookkeeping through AsBase.
type Component interface {
	Name() string
	Type() string
	Parent() Component
	Description() string
	SetDescription(string)

	Options() *option.Store
	Properties() *option.Properties
	Signals() *signal.Table

	Tags() []string
	AddTag(string)
	HasTag(string) bool

	Children() []Component
	Child(name string) (Component, bool)
	NumChildren() int

	AsBase() *Base
}

// Linker is implemented by alias components that resolve to another path
// instead of owning content.
type Linker interface {
	Component
	Target() string
}

// ValidateName checks a component name: non-empty, bounded length, the
// registry charset (letters, digits, dot, dash, underscore), no path
// separators, and not one of the reserved path tokens "." and "..".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty component name: %w", kerrors.ErrInvalidType)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("component name too long (%d > %d): %w", len(name), MaxNameLength, kerrors.ErrInvalidType)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("component name %q is reserved: %w", name, kerrors.ErrInvalidType)
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return fmt.Errorf("component name %q contains invalid character %q: %w", name, r, kerrors.ErrInvalidType)
		}
	}
	return nil
}

// Base carries the tree bookkeeping every component shares. Concrete types
// embed it and initialize it with Init. Base performs no locking; the kernel
// serializes structural mutation against concurrent reads.
type Base struct {
	name        string
	typeName    string
	description string
	parent      Component
	children    []Component
	byName      map[string]Component
	tags        []string
	opts        *option.Store
	props       *option.Properties
	sigs        *signal.Table

	// self points back at the outermost value so traversal hands out the
	// concrete type, not the embedded Base.
	self Component
}

// New constructs a plain container component of the given type name. It is
// the constructor for Group-like types; concrete types embed Base and call
// Init instead.
func New(typeName, name string) (*Base, error) {
	b := &Base{}
	if err := b.Init(b, typeName, name); err != nil {
		return nil, err
	}
	return b, nil
}

// Init prepares an embedded Base. self must be the outermost component
// value; it is what traversal, search, and resolution return.
func (b *Base) Init(self Component, typeName, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if typeName == "" {
		return fmt.Errorf("empty type name: %w", kerrors.ErrInvalidType)
	}
	b.self = self
	b.name = name
	b.typeName = typeName
	b.byName = make(map[string]Component)
	b.opts = option.NewStore()
	b.props = option.NewProperties()
	b.sigs = signal.NewTable()
	return nil
}

// AsBase returns the tree bookkeeping.
func (b *Base) AsBase() *Base { return b }

// Name returns the component name, unique among siblings.
func (b *Base) Name() string { return b.name }

// Type returns the registered type name the factory built this node from.
func (b *Base) Type() string { return b.typeName }

// Parent returns the owning component, nil for a detached node or the root.
func (b *Base) Parent() Component { return b.parent }

// Description returns the human-readable description.
func (b *Base) Description() string { return b.description }

// SetDescription sets the human-readable description.
func (b *Base) SetDescription(d string) { b.description = d }

// Options returns the option store.
func (b *Base) Options() *option.Store { return b.opts }

// Properties returns the read-only property set.
func (b *Base) Properties() *option.Properties { return b.props }

// Signals returns the per-instance signal table.
func (b *Base) Signals() *signal.Table { return b.sigs }

// Tags returns a copy of the tag set in insertion order.
func (b *Base) Tags() []string {
	return append(b.tags[:0:0], b.tags...)
}

// AddTag adds a search tag; adding an existing tag is a no-op.
func (b *Base) AddTag(tag string) {
	if b.HasTag(tag) {
		return
	}
	b.tags = append(b.tags, tag)
}

// HasTag reports whether the tag is present.
func (b *Base) HasTag(tag string) bool {
	for _, t := range b.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Children returns the owned children in insertion order. The returned
// slice is a copy; mutating it does not affect the tree.
func (b *Base) Children() []Component {
	return append(b.children[:0:0], b.children...)
}

// Child returns the named child.
func (b *Base) Child(name string) (Component, bool) {
	c, ok := b.byName[name]
	return c, ok
}

// NumChildren returns the owned child count.
func (b *Base) NumChildren() int { return len(b.children) }

// AddChild attaches an already-constructed component under this node. The
// child must be detached and its name unique among siblings; attachment is
// what makes it resolvable by path.
func (b *Base) AddChild(child Component) error {
	if child == nil || child.AsBase() == nil {
		return fmt.Errorf("nil child: %w", kerrors.ErrInvalidType)
	}
	cb := child.AsBase()
	if cb.self == nil {
		return fmt.Errorf("child %q not initialized: %w", cb.name, kerrors.ErrInvalidType)
	}
	if cb.parent != nil {
		return fmt.Errorf("component %q already attached under %q: %w",
			cb.name, cb.parent.Name(), kerrors.ErrDuplicateName)
	}
	if _, ok := b.byName[cb.name]; ok {
		return fmt.Errorf("component %q: %w", cb.name, kerrors.ErrDuplicateName)
	}
	cb.parent = b.self
	b.children = append(b.children, cb.self)
	b.byName[cb.name] = cb.self
	return nil
}

// RemoveChild detaches the named child and recursively destroys its
// subtree. Links into the removed subtree are not touched; they fail
// lazily on their next resolution.
func (b *Base) RemoveChild(name string) error {
	child, ok := b.byName[name]
	if !ok {
		return fmt.Errorf("component %q: %w", name, kerrors.ErrComponentNotFound)
	}
	delete(b.byName, name)
	for i, c := range b.children {
		if c == child {
			b.children = append(b.children[:i], b.children[i+1:]...)
			break
		}
	}
	child.AsBase().destroy()
	return nil
}

// destroy tears down the subtree depth-first. Links inside the subtree are
// discarded like any other node, never dereferenced.
func (b *Base) destroy() {
	for _, c := range b.children {
		c.AsBase().destroy()
	}
	b.children = nil
	b.byName = make(map[string]Component)
	b.parent = nil
}

// Rename changes the component name, keeping sibling uniqueness and the
// child's position in traversal order.
func (b *Base) Rename(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == b.name {
		return nil
	}
	if b.parent != nil {
		pb := b.parent.AsBase()
		if _, ok := pb.byName[name]; ok {
			return fmt.Errorf("component %q: %w", name, kerrors.ErrDuplicateName)
		}
		delete(pb.byName, b.name)
		pb.byName[name] = b.self
	}
	b.name = name
	return nil
}

// FullPath composes the absolute path from the ancestor chain, so
// Resolve(root, c.FullPath()) returns c for every attached component.
func (b *Base) FullPath() string {
	if b.parent == nil {
		return "//" + b.name
	}
	return b.parent.AsBase().FullPath() + "/" + b.name
}

// Root climbs the ancestor chain to the tree root.
func (b *Base) Root() Component {
	node := b.self
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

// Walk verdicts.
const (
	// Continue descends into the node's children.
	Continue = true
	// Break prunes the node's subtree and continues with its siblings.
	Break = false
)

// Walk calls fn on this component and, when fn returns Continue, on every
// descendant, depth-first in insertion order. Traversal order is stable:
// it is insertion order, never map order.
func (b *Base) Walk(fn func(Component) bool) {
	if b.self == nil {
		return
	}
	if !fn(b.self) {
		return
	}
	for _, c := range b.children {
		c.AsBase().Walk(fn)
	}
}

// FindByTag returns every component in the subtree carrying the tag, in
// deterministic depth-first insertion order.
func (b *Base) FindByTag(tag string) []Component {
	var found []Component
	b.Walk(func(c Component) bool {
		if c.HasTag(tag) {
			found = append(found, c)
		}
		return Continue
	})
	return found
}

// ConfigureRecursively applies the option to this component and to every
// descendant that declares it, in traversal order. Descendants lacking the
// option are skipped, not failed; the first validation failure aborts the
// walk and is returned.
func (b *Base) ConfigureRecursively(name string, v option.Value) error {
	var firstErr error
	b.Walk(func(c Component) bool {
		if firstErr != nil {
			return Break
		}
		if !c.Options().Has(name) {
			return Continue
		}
		if err := c.Options().Set(name, v); err != nil {
			firstErr = fmt.Errorf("%s: %w", c.AsBase().FullPath(), err)
			return Break
		}
		return Continue
	})
	return firstErr
}

// String implements fmt.Stringer for logging.
func (b *Base) String() string {
	return fmt.Sprintf("%s(%s)", b.name, b.typeName)
}

var _ Component = (*Base)(nil)
