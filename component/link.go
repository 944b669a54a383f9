package component

import (
	"github.com/c360/simkernel/option"
)

// LinkType is the registered type name of the builtin alias component.
const LinkType = "kernel.Link"

// Link is a non-owning alias: it stores a target path instead of children.
// Resolution follows the stored path lazily, so a Link can outlive its
// target; the dangling state surfaces only when someone resolves through it.
type Link struct {
	Base
	target string
}

// NewLink constructs a detached Link with an empty target. The target is an
// ordinary option, so remote clients retarget a link with a plain configure
// call.
func NewLink(name string) (*Link, error) {
	l := &Link{}
	if err := l.Init(l, LinkType, name); err != nil {
		return nil, err
	}
	l.Options().MustAdd(
		option.MustNew("target", "path this link resolves to", option.KindString, option.String("")).
			BindString(&l.target).
			MarkBasic())
	return l, nil
}

// Target returns the stored target path; empty means dangling.
func (l *Link) Target() string { return l.target }

// SetTarget stores a new target path through the option pipeline.
func (l *Link) SetTarget(path string) error {
	return l.Options().Set("target", option.String(path))
}

// LinkTo stores the target's current full path. Later renames or moves of
// the target are not tracked; the link follows whatever lives at that path.
func (l *Link) LinkTo(target Component) error {
	return l.SetTarget(target.AsBase().FullPath())
}

var _ Linker = (*Link)(nil)
