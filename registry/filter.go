package registry

// Registrar is the registration surface tool packages write to. *Registry
// satisfies it directly; Filtered wraps one with an allow list.
type Registrar interface {
	Register(schema Schema, handler Handler) error
}

// filtered drops registrations whose name is not in the allow list. It
// lets an operator expose a subset of tools without touching the
// registration tables.
type filtered struct {
	next    Registrar
	allowed map[string]struct{}
}

// Filtered returns a Registrar that forwards only the named tools.
func Filtered(next Registrar, allowed []string) Registrar {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &filtered{next: next, allowed: set}
}

func (f *filtered) Register(schema Schema, handler Handler) error {
	if _, ok := f.allowed[schema.Name]; !ok {
		return nil
	}
	return f.next.Register(schema, handler)
}
