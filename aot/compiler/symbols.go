package compiler

// Symbols is an insertion-ordered set of runtime symbol names. Iteration
// order only affects the text order of generated imports.
type Symbols struct {
	order []string
	index map[string]struct{}
}

// NewSymbols returns a set holding names in the given order.
func NewSymbols(names ...string) *Symbols {
	s := &Symbols{index: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add inserts name if it is not present yet.
func (s *Symbols) Add(name string) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
}

// Delete removes name, keeping the order of the remaining entries.
func (s *Symbols) Delete(name string) {
	if _, ok := s.index[name]; !ok {
		return
	}
	delete(s.index, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name is in the set.
func (s *Symbols) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names in the set.
func (s *Symbols) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Values returns the names in insertion order.
func (s *Symbols) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
