package registry

// Library collects registrations sharing one library name so a plugin can
// declare its types in a single block and install them together.
type Library struct {
	name string
	regs []Registration
}

// NewLibrary starts an empty registration block for the named library.
func NewLibrary(name string) *Library {
	return &Library{name: name}
}

// Name returns the library name.
func (l *Library) Name() string {
	return l.name
}

// Add appends one type to the block. Calls chain.
func (l *Library) Add(typeName, description string, ctor Constructor) *Library {
	l.regs = append(l.regs, Registration{
		Library:     l.name,
		Type:        typeName,
		Description: description,
		Constructor: ctor,
	})
	return l
}

// Types returns the bare type names declared so far, in declaration order.
func (l *Library) Types() []string {
	names := make([]string, len(l.regs))
	for i, reg := range l.regs {
		names[i] = reg.Type
	}
	return names
}

// Install registers the whole block. The first failure aborts; earlier
// entries of the block stay registered, matching the register-once model
// where a partially installed plugin is a startup error, not a state to
// roll back.
func (l *Library) Install(r *Registry) error {
	for _, reg := range l.regs {
		if err := r.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
