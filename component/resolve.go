package component

import (
	"errors"
	"fmt"
	"strings"

	kerrors "github.com/c360/simkernel/errors"
)

// MaxLinkHops bounds how many link indirections one resolution may follow.
// A chain longer than this is treated as a cycle.
const MaxLinkHops = 32

// Resolve walks a path expression from anchor and returns the component it
// denotes. Grammar: a leading "//" makes the path absolute from the tree
// root, whose name the first segment must match; "." stays at the current
// node; ".." moves to the parent; every other segment is a child-name
// lookup. Landing on a Link transparently continues from the link's stored
// target, bounded by MaxLinkHops.
//
// Resolution is a pure read: it never mutates the tree, and the kernel runs
// it under the shared lock.
func Resolve(anchor Component, path string) (Component, error) {
	if anchor == nil {
		return nil, fmt.Errorf("nil anchor: %w", kerrors.ErrComponentNotFound)
	}
	return resolve(anchor, path, 0)
}

func resolve(anchor Component, path string, hops int) (Component, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", kerrors.ErrComponentNotFound)
	}

	current := anchor
	rest := path
	if strings.HasPrefix(path, "/") {
		// Absolute: start at the root, whose name is the first segment.
		root := anchor.AsBase().Root()
		rest = strings.TrimLeft(path, "/")
		if rest == "" {
			return nil, fmt.Errorf("path %q names no component: %w", path, kerrors.ErrComponentNotFound)
		}
		var rootSeg string
		rootSeg, rest, _ = strings.Cut(rest, "/")
		if rootSeg != root.Name() {
			return nil, fmt.Errorf("path %q: root is %q, not %q: %w",
				path, root.Name(), rootSeg, kerrors.ErrComponentNotFound)
		}
		current = root
		var err error
		current, err = follow(current, &hops)
		if err != nil {
			return nil, err
		}
		if rest == "" {
			return current, nil
		}
	}

	for _, seg := range strings.Split(rest, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			parent := current.Parent()
			if parent == nil {
				return nil, fmt.Errorf("path %q: %q has no parent: %w",
					path, current.Name(), kerrors.ErrComponentNotFound)
			}
			current = parent
		default:
			child, ok := current.Child(seg)
			if !ok {
				return nil, fmt.Errorf("path %q: no component %q under %q: %w",
					path, seg, current.AsBase().FullPath(), kerrors.ErrComponentNotFound)
			}
			current = child
		}
		var err error
		current, err = follow(current, &hops)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// follow chases link indirections until it reaches a non-link component.
// An unresolvable target fails ErrDanglingLink; exceeding the hop budget
// fails ErrCyclicLink.
func follow(c Component, hops *int) (Component, error) {
	for {
		link, ok := c.(Linker)
		if !ok {
			return c, nil
		}
		*hops++
		if *hops > MaxLinkHops {
			return nil, fmt.Errorf("link %q: more than %d hops: %w",
				link.AsBase().FullPath(), MaxLinkHops, kerrors.ErrCyclicLink)
		}
		target := link.Target()
		if target == "" {
			return nil, fmt.Errorf("link %q has no target: %w",
				link.AsBase().FullPath(), kerrors.ErrDanglingLink)
		}
		// The link's own parent anchors a relative target. The recursive
		// resolve shares the hop budget so chains cannot reset it.
		anchor := link.Parent()
		if anchor == nil {
			anchor = link
		}
		next, err := resolve(anchor, target, *hops)
		if err != nil {
			if isMiss(err) {
				return nil, fmt.Errorf("link %q target %q: %w",
					link.AsBase().FullPath(), target, kerrors.ErrDanglingLink)
			}
			return nil, err
		}
		c = next
	}
}

// isMiss distinguishes "target absent" from structural errors so a broken
// chain reports dangling while cycles keep reporting cyclic.
func isMiss(err error) bool {
	return !errors.Is(err, kerrors.ErrCyclicLink) && !errors.Is(err, kerrors.ErrDanglingLink)
}
