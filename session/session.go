// Package session keeps server-side login state. The browser only holds a
// signed cookie naming the session; the values live in a Store.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// UserIDKey is the session value holding the authenticated user's id.
const UserIDKey = "user_id"

var (
	ErrNotFound      = errors.New("session: not found")
	ErrInvalidCookie = errors.New("session: invalid cookie")
	ErrInvalidID     = errors.New("session: invalid id")
)

// Session is the server-side state of one browser session.
type Session struct {
	ID        string            `json:"id"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Get a value by key
func (s *Session) Get(k string) (string, bool) {
	v, ok := s.Values[k]
	return v, ok
}

// Set a key value pair in the map
func (s *Session) Set(k, v string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[k] = v
}

func (s *Session) Delete(k string) {
	delete(s.Values, k)
}

// UserID returns the logged in user, if any.
func (s *Session) UserID() (uint, bool) {
	v, ok := s.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	c := *s
	c.Values = make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		c.Values[k] = v
	}
	return &c
}

// Store persists sessions by id. Load returns ErrNotFound for missing or
// expired sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that need expired sessions purged
// explicitly. It returns how many sessions were removed.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}
