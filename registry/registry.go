package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// Constructor builds a detached component instance. The registry never
// attaches the result; the caller does, so nothing half-initialized is ever
// reachable by path.
type Constructor func(name string) (component.Component, error)

// Registration binds one (library, type) pair to its constructor.
type Registration struct {
	Library     string
	Type        string
	Description string
	Constructor Constructor
}

// QualifiedName returns the "library.Type" form used for unambiguous lookup.
func (r Registration) QualifiedName() string {
	return r.Library + "." + r.Type
}

func (r Registration) validate() error {
	if r.Library == "" || strings.Contains(r.Library, ".") {
		return fmt.Errorf("library name %q: %w", r.Library, kerrors.ErrInvalidType)
	}
	if r.Type == "" || strings.Contains(r.Type, ".") {
		return fmt.Errorf("type name %q: %w", r.Type, kerrors.ErrInvalidType)
	}
	if err := component.ValidateName(r.Library); err != nil {
		return err
	}
	if err := component.ValidateName(r.Type); err != nil {
		return err
	}
	if r.Constructor == nil {
		return fmt.Errorf("type %q has nil constructor: %w", r.QualifiedName(), kerrors.ErrInvalidType)
	}
	return nil
}

// TypeInfo describes one registered type for remote display and schema
// export. Option and signal schemas come from a probe instance.
type TypeInfo struct {
	Library     string                `json:"library"`
	Type        string                `json:"type"`
	Qualified   string                `json:"qualified"`
	Description string                `json:"description,omitempty"`
	Options     []option.Info         `json:"options,omitempty"`
	Properties  []option.PropertyInfo `json:"properties,omitempty"`
	Signals     []signal.Info         `json:"signals,omitempty"`
}

// Registry is the process-wide table of component constructors. Entries are
// added exactly once, at startup, and persist for the process lifetime;
// there is no unregister operation. The registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	byQualified map[string]Registration
	byType      map[string][]Registration
	order       []string
}

// New returns an empty registry. Tests construct isolated registries; the
// daemon builds exactly one and hands it to the kernel.
func New() *Registry {
	return &Registry{
		byQualified: make(map[string]Registration),
		byType:      make(map[string][]Registration),
	}
}

// Register adds one type. Registering the same (library, type) pair twice
// fails ErrDuplicateRegistration.
func (r *Registry) Register(reg Registration) error {
	if err := reg.validate(); err != nil {
		return kerrors.Wrap(err, "Registry", "Register", "registration validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	qualified := reg.QualifiedName()
	if _, exists := r.byQualified[qualified]; exists {
		return kerrors.WrapInvalid(
			fmt.Errorf("type %q: %w", qualified, kerrors.ErrDuplicateRegistration),
			"Registry", "Register", "duplicate check")
	}
	r.byQualified[qualified] = reg
	r.byType[reg.Type] = append(r.byType[reg.Type], reg)
	r.order = append(r.order, qualified)
	return nil
}

// Lookup finds a registration by qualified "library.Type" name or by bare
// type name. A bare name matching several libraries fails ErrUnknownType
// with an ambiguity message rather than picking one arbitrarily.
func (r *Registry) Lookup(typeName string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.byQualified[typeName]; ok {
		return reg, nil
	}
	regs := r.byType[typeName]
	switch len(regs) {
	case 0:
		return Registration{}, fmt.Errorf("type %q: %w", typeName, kerrors.ErrUnknownType)
	case 1:
		return regs[0], nil
	default:
		libs := make([]string, len(regs))
		for i, reg := range regs {
			libs[i] = reg.Library
		}
		sort.Strings(libs)
		return Registration{}, fmt.Errorf("type %q is ambiguous across libraries %s, qualify it: %w",
			typeName, strings.Join(libs, ", "), kerrors.ErrUnknownType)
	}
}

// Create constructs a new, detached component of the named type. Unmatched
// type names fail ErrUnknownType. Construction never attaches to any tree.
func (r *Registry) Create(typeName, instanceName string) (component.Component, error) {
	if err := component.ValidateName(instanceName); err != nil {
		return nil, kerrors.Wrap(err, "Registry", "Create", "instance name validation")
	}
	reg, err := r.Lookup(typeName)
	if err != nil {
		return nil, kerrors.WrapInvalid(err, "Registry", "Create", "type lookup")
	}

	c, err := reg.Constructor(instanceName)
	if err != nil {
		return nil, kerrors.Wrap(err, "Registry", "Create", "constructor")
	}
	if c == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("type %q constructor returned nil: %w", reg.QualifiedName(), kerrors.ErrInvalidType),
			"Registry", "Create", "constructor result")
	}
	if c.Name() != instanceName {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("type %q constructor named instance %q, want %q: %w",
				reg.QualifiedName(), c.Name(), instanceName, kerrors.ErrInvalidType),
			"Registry", "Create", "constructor result")
	}
	if c.Parent() != nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("type %q constructor attached the instance: %w", reg.QualifiedName(), kerrors.ErrInvalidType),
			"Registry", "Create", "constructor result")
	}
	return c, nil
}

// Has reports whether a type resolves, qualified or bare.
func (r *Registry) Has(typeName string) bool {
	_, err := r.Lookup(typeName)
	return err == nil
}

// Types returns the qualified names of every registered type, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append(r.order[:0:0], r.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe builds TypeInfo for every registered type in registration order.
// Each type is probed with a throwaway instance to capture its option and
// signal schemas; a constructor failure fails the whole description since a
// type that cannot construct is a registration bug.
func (r *Registry) Describe() ([]TypeInfo, error) {
	r.mu.RLock()
	order := append(r.order[:0:0], r.order...)
	regs := make([]Registration, len(order))
	for i, q := range order {
		regs[i] = r.byQualified[q]
	}
	r.mu.RUnlock()

	infos := make([]TypeInfo, 0, len(regs))
	for _, reg := range regs {
		probe, err := reg.Constructor("probe")
		if err != nil {
			return nil, kerrors.Wrap(err, "Registry", "Describe",
				fmt.Sprintf("probe construction for %s", reg.QualifiedName()))
		}
		infos = append(infos, TypeInfo{
			Library:     reg.Library,
			Type:        reg.Type,
			Qualified:   reg.QualifiedName(),
			Description: reg.Description,
			Options:     probe.Options().Describe(),
			Properties:  probe.Properties().Describe(),
			Signals:     probe.Signals().Describe(),
		})
	}
	return infos, nil
}
