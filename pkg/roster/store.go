// Package roster keeps the set of users present in a hub session.
// It is pure bookkeeping: notifying subscribers is the hub's job.
package roster

import (
	"strings"
	"sync"

	"github.com/HMasataka/hubsim/pkg/domain"
	"github.com/rs/xid"
)

// Store holds the roster in join order
type Store struct {
	mu     sync.RWMutex
	users  []domain.User
	byName map[string]int
}

// NewStore creates an empty roster
func NewStore() *Store {
	return &Store{
		byName: make(map[string]int),
	}
}

// Join adds username to the roster. Joining an existing name returns the
// existing user and false.
func (s *Store) Join(username string) (domain.User, bool, error) {
	if strings.TrimSpace(username) == "" {
		return domain.User{}, false, domain.ErrInvalidArgument.WithDetails("username must not be blank")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byName[username]; ok {
		return s.users[i], false, nil
	}

	user := domain.User{
		ID:   xid.New().String(),
		Name: username,
	}
	s.byName[username] = len(s.users)
	s.users = append(s.users, user)

	return user, true, nil
}

// Leave removes username, reporting whether it was present
func (s *Store) Leave(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byName[username]
	if !ok {
		return false
	}

	s.users = append(s.users[:i], s.users[i+1:]...)
	delete(s.byName, username)
	for j := i; j < len(s.users); j++ {
		s.byName[s.users[j].Name] = j
	}

	return true
}

// Get returns the user named username
func (s *Store) Get(username string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byName[username]
	if !ok {
		return domain.User{}, false
	}
	return s.users[i], true
}

// List returns the user names in join order
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.users))
	for i, u := range s.users {
		names[i] = u.Name
	}
	return names
}

// Len returns the roster size
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
