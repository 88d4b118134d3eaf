package gpu

type Releaser interface {
	Release()
}

// Scope releases everything added to it, newest first.
type Scope struct {
	items []Releaser
}

func (s *Scope) Add(r ...Releaser) {
	s.items = append(s.items, r...)
}

func (s *Scope) Len() int { return len(s.items) }

func (s *Scope) Close() {
	for i := len(s.items) - 1; i >= 0; i-- {
		s.items[i].Release()
	}
	s.items = nil
}
