package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrSessionNotFound is returned for unknown or expired sessions
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions as JSON in a cache
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStore creates a session store. Sessions expire ttl after their last save.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Create saves a new empty session with a random id
func (s *Store) Create(ctx context.Context) (*model.Session, error) {
	sess := model.NewSession(uuid.NewString())
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	data, found, err := s.cache.Get(ctx, cache.SessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Status == nil {
		sess.Status = make(map[int]model.RunStatus)
	}
	return &sess, nil
}

// Save stores a session and refreshes its expiry
func (s *Store) Save(ctx context.Context, sess *model.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.cache.Set(ctx, cache.SessionKey(sess.ID), data, s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, cache.SessionKey(id))
}
