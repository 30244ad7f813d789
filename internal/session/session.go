// Package session keeps the in-memory dialogue state of every user.
// Nothing here is persisted: after a restart every user is back in the main menu.
package session

import (
	"sync"

	"telegram-mood-diary/internal/models"
)

// Session is the dialogue state of one user together with the data
// collected so far in a multi-step flow.
type Session struct {
	State   models.DialogueState
	Pending *models.PendingEntry
}

type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func New() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns a copy of the user's session, creating a main-menu session on
// first contact.
func (s *Store) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{State: models.StateMainMenu}
		s.sessions[userID] = sess
	}
	out := *sess
	if sess.Pending != nil {
		p := *sess.Pending
		out.Pending = &p
	}
	return out
}

// Put replaces state and pending entry in one step.
func (s *Store) Put(userID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.Pending != nil {
		p := *sess.Pending
		sess.Pending = &p
	}
	s.sessions[userID] = &sess
}

// Reset drops whatever the user was doing.
func (s *Store) Reset(userID int64) {
	s.Put(userID, Session{State: models.StateMainMenu})
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
