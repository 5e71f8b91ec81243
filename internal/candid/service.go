package candid

import (
	"sort"
	"strings"
)

// Func is the signature of one remote operation. Query functions do not
// mutate remote state and may be answered by a single replica.
type Func struct {
	Args    []*Type
	Results []*Type
	Query   bool
}

// Method names a Func.
type Method struct {
	Name string
	Func Func
}

// QueryMethod declares a read-only operation.
func QueryMethod(name string, args, results []*Type) Method {
	return Method{Name: name, Func: Func{Args: args, Results: results, Query: true}}
}

// UpdateMethod declares a state-mutating operation.
func UpdateMethod(name string, args, results []*Type) Method {
	return Method{Name: name, Func: Func{Args: args, Results: results}}
}

// Types is shorthand for argument and result lists.
func Types(ts ...*Type) []*Type { return ts }

// Service is an immutable table of operations. It carries no transport.
type Service struct {
	methods map[string]Func
	names   []string
}

// NewService builds a service table. Later duplicates replace earlier ones.
func NewService(methods ...Method) *Service {
	s := &Service{methods: make(map[string]Func, len(methods))}
	for _, m := range methods {
		if _, exists := s.methods[m.Name]; !exists {
			s.names = append(s.names, m.Name)
		}
		s.methods[m.Name] = m.Func
	}
	sort.Strings(s.names)
	return s
}

// Lookup returns the signature of name.
func (s *Service) Lookup(name string) (Func, bool) {
	f, ok := s.methods[name]
	return f, ok
}

// Names lists operation names in sorted order.
func (s *Service) Names() []string {
	return append([]string(nil), s.names...)
}

// Methods lists all operations in name order.
func (s *Service) Methods() []Method {
	out := make([]Method, len(s.names))
	for i, n := range s.names {
		out[i] = Method{Name: n, Func: s.methods[n]}
	}
	return out
}

// Signature renders a function as "(args) -> (results) query".
func (f Func) Signature() string {
	render := func(ts []*Type) string {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = t.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	sig := render(f.Args) + " -> " + render(f.Results)
	if f.Query {
		sig += " query"
	}
	return sig
}
