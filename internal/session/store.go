package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"jobtracker/client/internal/cache"
	"jobtracker/client/internal/models"

	"go.uber.org/zap"
)

const storageKey = "session"

var ErrIncompleteSession = stderrors.New("session needs both a token and a user")

// Session is the authenticated identity of the current user. A valid session
// has both a token and a user; the zero value is the signed-out session.
type Session struct {
	Token string
	User  *models.User
}

func (s Session) Valid() bool {
	return s.Token != "" && s.User != nil
}

// Store is the single process-wide session. Every write replaces token and
// user together, both in memory and in the backing cache, under one lock.
// Generation increases on every write so callers can detect that the session
// they acted on has since been replaced or cleared.
type Store struct {
	cache  cache.Cache
	logger *zap.Logger

	mu         sync.RWMutex
	current    Session
	generation uint64
}

// NewStore restores the persisted session, if any. A stored entry with only
// one of token or user is treated as corrupt and removed.
func NewStore(ctx context.Context, c cache.Cache, logger *zap.Logger) (*Store, error) {
	s := &Store{
		cache:  c,
		logger: logger,
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(ctx context.Context) error {
	var state models.SessionState
	err := s.cache.Get(ctx, storageKey, &state)
	if stderrors.Is(err, cache.ErrNotFound) {
		s.logger.Debug("no stored session")
		return nil
	}
	restored := Session{Token: state.Token, User: state.User}
	if err != nil || !restored.Valid() {
		s.logger.Warn("discarding unreadable or incomplete stored session", zap.Error(err))
		if derr := s.cache.Delete(ctx, storageKey); derr != nil {
			return fmt.Errorf("delete stored session: %w", derr)
		}
		return nil
	}

	s.mu.Lock()
	s.current = restored
	s.mu.Unlock()

	s.logger.Info("restored session", zap.String("username", restored.User.Username))
	return nil
}

// Snapshot returns the current session and its generation.
func (s *Store) Snapshot() (Session, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.generation
}

func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.User == nil {
		return nil
	}
	u := *s.current.User
	return &u
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Valid()
}

// Set starts a new session. Token and user are written as one value.
func (s *Store) Set(ctx context.Context, token string, user models.User) error {
	if token == "" || user.Username == "" {
		return ErrIncompleteSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.SessionState{Token: token, User: &user}
	if err := s.cache.Set(ctx, storageKey, state, 0); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.current = Session{Token: token, User: &user}
	s.generation++

	s.logger.Info("session started", zap.String("username", user.Username))
	return nil
}

// Clear ends the session. The in-memory session is cleared even when the
// backing cache cannot be written.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// InvalidateIf clears the session only if it is still the one observed at
// generation. It reports whether this call performed the clear, so that any
// number of callers racing on the same expired session clear it exactly once.
func (s *Store) InvalidateIf(ctx context.Context, generation uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.current = Session{}
	s.generation++

	if err := s.cache.Delete(ctx, storageKey); err != nil {
		s.logger.Error("failed to delete stored session", zap.Error(err))
		return fmt.Errorf("delete stored session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}
