package compiler

// scope tracks the wasm locals of one function: parameters first, then
// declared variables, then compiler temporaries.
type scope struct {
	locals  map[string]uint32
	nextLoc uint32
}

func newScope() *scope {
	return &scope{
		locals: make(map[string]uint32),
	}
}

// addLocal reserves a slot for a named local.
func (s *scope) addLocal(name string) uint32 {
	slot := s.nextLoc
	s.locals[name] = slot
	s.nextLoc++
	return slot
}

// resolveLocal returns slot and true if name is a local of the function.
func (s *scope) resolveLocal(name string) (uint32, bool) {
	slot, ok := s.locals[name]
	return slot, ok
}
