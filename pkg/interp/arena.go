package interp

import "fmt"

// arena owns every buffer created during one run. Buffers are never freed before the run ends.
type arena struct {
	bufs [][]Value
}

func (a *arena) alloc(values ...Value) int {
	a.bufs = append(a.bufs, values)
	return len(a.bufs) - 1
}

func (a *arena) check(c Cell) error {
	if c.Buf < 0 {
		return fmt.Errorf("null pointer dereference")
	}
	if c.Buf >= len(a.bufs) || c.Index < 0 || c.Index >= len(a.bufs[c.Buf]) {
		return fmt.Errorf("index %d out of range [0:%d]", c.Index, a.size(c.Buf))
	}
	return nil
}

func (a *arena) size(buf int) int {
	if buf < 0 || buf >= len(a.bufs) {
		return 0
	}
	return len(a.bufs[buf])
}

func (a *arena) load(c Cell) (Value, error) {
	if err := a.check(c); err != nil {
		return Value{}, err
	}
	return a.bufs[c.Buf][c.Index], nil
}

func (a *arena) store(c Cell, v Value) error {
	if err := a.check(c); err != nil {
		return err
	}
	a.bufs[c.Buf][c.Index] = v
	return nil
}

// runtimeScope binds token ids to cells. Scopes live on a stack: a child is always popped
// before its parent.
type runtimeScope struct {
	parent int
	vars   map[int]Cell
}

type scopeStack struct {
	scopes  []runtimeScope
	current int
}

func (s *scopeStack) push(parent int) (saved int) {
	saved = s.current
	s.scopes = append(s.scopes, runtimeScope{parent: parent, vars: make(map[int]Cell)})
	s.current = len(s.scopes) - 1
	return saved
}

// pop discards the current scope and everything above it, then returns to saved.
func (s *scopeStack) pop(saved int) {
	s.scopes = s.scopes[:s.current]
	s.current = saved
}

func (s *scopeStack) lookup(id int) (Cell, bool) {
	for i := s.current; i >= 0; i = s.scopes[i].parent {
		if c, ok := s.scopes[i].vars[id]; ok {
			return c, true
		}
	}
	return Cell{}, false
}

func (s *scopeStack) bind(id int, c Cell) { s.scopes[s.current].vars[id] = c }
