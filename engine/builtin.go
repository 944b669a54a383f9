package engine

import (
	"github.com/c360/simkernel/component"
	"github.com/c360/simkernel/registry"
)

// GroupType is the registered type name of the plain container; the kernel
// root is a Group.
const GroupType = "kernel.Group"

// RegisterBuiltins installs the kernel library: the types every tree needs
// regardless of what the embedding program registers on top.
func RegisterBuiltins(r *registry.Registry) error {
	lib := registry.NewLibrary("kernel").
		Add("Group", "plain container for structuring the tree",
			func(name string) (component.Component, error) {
				return component.New(GroupType, name)
			}).
		Add("Link", "alias resolving to the component at its target path",
			func(name string) (component.Component, error) {
				return component.NewLink(name)
			}).
		Add("Journal", "bounded ring of recent dispatches",
			func(name string) (component.Component, error) {
				return NewJournal(name)
			})
	return lib.Install(r)
}
