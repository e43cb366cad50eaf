package cart

import "container/list"

// idSet is a set of request ids that remembers insertion order.
// Membership, insert and remove are O(1).
type idSet struct {
	index map[string]*list.Element
	order *list.List
}

func newIDSet(ids ...string) *idSet {
	s := &idSet{
		index: make(map[string]*list.Element, len(ids)),
		order: list.New(),
	}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// add reports whether id was inserted.
func (s *idSet) add(id string) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = s.order.PushBack(id)
	return true
}

// remove reports whether id was present.
func (s *idSet) remove(id string) bool {
	el, ok := s.index[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.index, id)
	return true
}

func (s *idSet) contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *idSet) len() int {
	return len(s.index)
}

func (s *idSet) list() []string {
	out := make([]string, 0, len(s.index))
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}
