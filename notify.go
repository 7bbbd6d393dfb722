package postcache

import (
	"slices"
	"sync"
)

// Listener receives a copy of the state after every change, in the order the
// changes were applied. Listeners run without the store lock held, in
// subscription order. A change made while listeners are running, from any
// goroutine, is delivered by the goroutine already delivering once the
// current round returns.
type Listener func(State)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Subscribe registers l and returns a function that removes it. The returned
// function is safe to call more than once.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(slices.Clone(s.listeners), listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(e listenerEntry) bool { return e.id == id })
			s.mu.Unlock()
		})
	}
}

// dispatch delivers queued states until the queue is empty. Only one
// goroutine dispatches at a time.
func (s *Store) dispatch() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.pending = nil
			s.notifying = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.notifying = false
			s.mu.Unlock()
			return
		}
		snap := s.pending[0]
		s.pending = s.pending[1:]
		listeners := s.listeners
		s.mu.Unlock()

		for _, l := range listeners {
			l.fn(cloneState(snap))
		}
	}
}

func cloneState(st State) State {
	out := st
	out.Posts = slices.Clone(st.Posts)
	out.Users = slices.Clone(st.Users)
	out.Comments = make(map[int][]Comment, len(st.Comments))
	for id, c := range st.Comments {
		out.Comments[id] = slices.Clone(c)
	}
	return out
}
