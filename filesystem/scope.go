package filesystem

// closeScope collects cleanup callbacks and runs them in reverse order.
//
// NOTE: closeScope is **not** thread-safe; keep it on the goroutine that
// created it.
type closeScope struct {
	closeFns []func()
}

// AddClose pushes a cleanup callback onto the end of the stack.
func (s *closeScope) AddClose(fn func()) {
	s.closeFns = append(s.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order. Safe to call on a nil
// scope or more than once, so you can `defer s.Close()` unconditionally.
func (s *closeScope) Close() {
	if s == nil {
		return
	}
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		s.closeFns[i]()
	}
	s.closeFns = nil
}
