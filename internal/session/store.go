package session

import (
	"sort"
	"sync"
)

// Store keeps recent drag sessions for snapshots served over the ws
// boundary and the state API. The tracker is the only writer; readers get
// copies. Retention is bounded so a long-running process doesn't
// accumulate every session it ever saw.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*DragSession
	order    []string
	keep     int
}

const defaultRetention = 32

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*DragSession),
		keep:     defaultRetention,
	}
}

func (s *Store) Put(sess *DragSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
		if len(s.order) > s.keep {
			evict := s.order[0]
			s.order = s.order[1:]
			delete(s.sessions, evict)
		}
	}
	s.sessions[sess.ID] = sess.Clone()
}

func (s *Store) Get(id string) (*DragSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// GetAll returns all retained sessions, newest first.
func (s *Store) GetAll() []*DragSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*DragSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}

// OpenCount returns the number of sessions not yet fully ended.
func (s *Store) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sess := range s.sessions {
		if !sess.Ended() {
			count++
		}
	}
	return count
}
