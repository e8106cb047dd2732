package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SessionState is a snapshot handed to session subscribers.
type SessionState struct {
	// User is nil when nothing is known about the user. After a logout it
	// carries only the avatar.
	User          *User
	Authenticated bool
	Loading       bool
}

// storedUser is the persisted form of the user. The avatar key matches what
// earlier app builds wrote so it survives upgrades.
type storedUser struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
	ImageURI string `json:"imageUri,omitempty"`
}

func toStored(u User) storedUser {
	return storedUser{ID: u.ID, Username: u.Username, Email: u.Email, Phone: u.Phone, Role: u.Role, ImageURI: u.ImageURI}
}

func (s storedUser) user() User {
	return User{ID: s.ID, Username: s.Username, Email: s.Email, Phone: s.Phone, Role: s.Role, ImageURI: s.ImageURI}
}

// Session tracks the signed-in user and their token in Storage.
type Session struct {
	api     *Client
	storage Storage

	mu            sync.RWMutex
	user          *User
	authenticated bool
	loading       bool

	subs subscribers[SessionState]
}

// NewSession returns a session persisted in the API client's storage. Any 401
// seen by api invalidates the session.
func NewSession(api *Client) *Session {
	s := &Session{api: api, storage: api.Storage(), loading: true}
	api.OnUnauthorized(func() { _ = s.Invalidate() })
	return s
}

// Load restores the persisted session. With a token present the profile is
// refreshed from the server; if that fails the token is dropped and the
// avatar kept.
func (s *Session) Load(ctx context.Context) error {
	defer s.notify()

	stored, err := s.readUser()
	if err != nil {
		s.finishLoading(nil, false)
		return err
	}
	token, ok, err := s.storage.Get(KeyToken)
	if err != nil {
		s.finishLoading(stored, false)
		return fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		s.finishLoading(stored, false)
		return nil
	}

	s.mu.Lock()
	s.user = stored
	s.authenticated = true
	s.mu.Unlock()

	fresh, err := s.api.Me(ctx)
	if err != nil {
		// The 401 hook may already have run; dropping the token twice is harmless.
		keep := avatarOnly(stored)
		if werr := s.clear(keep); werr != nil {
			return werr
		}
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return nil
	}
	if err := s.writeUser(fresh); err != nil {
		return err
	}
	s.finishLoading(&fresh, true)
	return nil
}

func (s *Session) finishLoading(u *User, authenticated bool) {
	s.mu.Lock()
	s.user = u
	s.authenticated = authenticated
	s.loading = false
	s.mu.Unlock()
}

// Login persists the user and token together.
func (s *Session) Login(u User, token string) error {
	data, err := json.Marshal(toStored(u))
	if err != nil {
		return err
	}
	if err := s.storage.MultiSet(map[string]string{KeyUser: string(data), KeyToken: token}); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.authenticated = true
	s.loading = false
	s.mu.Unlock()
	s.notify()
	return nil
}

// Logout drops the token. Only the avatar is remembered.
func (s *Session) Logout() error {
	s.mu.RLock()
	keep := avatarOnly(s.user)
	s.mu.RUnlock()
	if err := s.clear(keep); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Invalidate ends a session the server no longer accepts.
func (s *Session) Invalidate() error {
	return s.Logout()
}

func (s *Session) clear(keep *User) error {
	if err := s.writeUser(*keep); err != nil {
		return err
	}
	if err := s.storage.Remove(KeyToken); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	s.mu.Lock()
	s.user = keep
	s.authenticated = false
	s.mu.Unlock()
	return nil
}

// UpdateUser merges partial into the stored user.
func (s *Session) UpdateUser(partial ProfileUpdate) error {
	s.mu.Lock()
	var u User
	if s.user != nil {
		u = *s.user
	}
	if partial.Username != nil {
		u.Username = *partial.Username
	}
	if partial.Email != nil {
		u.Email = *partial.Email
	}
	if partial.Phone != nil {
		u.Phone = *partial.Phone
	}
	if partial.ImageURI != nil {
		u.ImageURI = *partial.ImageURI
	}
	s.user = &u
	s.mu.Unlock()

	if err := s.writeUser(u); err != nil {
		return err
	}
	s.notify()
	return nil
}

// SetUser replaces the stored user, typically with a server response.
func (s *Session) SetUser(u User) error {
	if err := s.writeUser(u); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.notify()
	return nil
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Role returns the current user's role, or "".
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

func (s *Session) HasRole(role string) bool {
	return role != "" && s.Role() == role
}

func (s *Session) HasAnyRole(roles ...string) bool {
	current := s.Role()
	for _, r := range roles {
		if r != "" && r == current {
			return true
		}
	}
	return false
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SessionState{Authenticated: s.authenticated, Loading: s.loading}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// Subscribe calls fn after every change until the returned func is called.
func (s *Session) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	return s.subs.add(fn)
}

func (s *Session) notify() {
	s.subs.publish(s.State())
}

func (s *Session) readUser() (*User, error) {
	raw, ok, err := s.storage.Get(KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var stored storedUser
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// Unreadable leftovers are treated as absent.
		return nil, nil
	}
	u := stored.user()
	return &u, nil
}

func (s *Session) writeUser(u User) error {
	data, err := json.Marshal(toStored(u))
	if err != nil {
		return err
	}
	if err := s.storage.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func avatarOnly(u *User) *User {
	if u == nil {
		return &User{}
	}
	return &User{ImageURI: u.ImageURI}
}

// subscribers is a set of callbacks. Publishing happens outside the lock so
// callbacks may read the store they observe.
type subscribers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers[T]) publish(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
