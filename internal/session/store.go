// Package session implements the Redis-backed session store. A session is a
// small hash keyed by an opaque cookie value, holding the auth token and the
// per-surface "where was I" index paths used for post-action redirects.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"keepsake/internal/auth"
	"keepsake/internal/repository"
)

const sessionKeyPrefix = "session:"

// Hash field names inside a session key.
const (
	FieldAuthToken          = "auth_token"
	FieldMemoryIndexPath    = "current_memory_index_path"
	FieldScrapbookIndexPath = "current_scrapbook_index_path"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the decoded contents of a session hash.
type Session struct {
	ID                        string
	AuthToken                 string
	CurrentMemoryIndexPath    string
	CurrentScrapbookIndexPath string
}

// Store manages session lifecycles in Redis and resolves session ids to
// users for the auth middleware.
type Store struct {
	client *redis.Client
	tokens auth.TokenService
	users  repository.UserRepository
	ttl    time.Duration
}

func NewStore(client *redis.Client, tokens auth.TokenService, users repository.UserRepository, ttl time.Duration) *Store {
	return &Store{client: client, tokens: tokens, users: users, ttl: ttl}
}

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}

// Create starts a fresh session bound to an issued auth token and returns
// the new session id.
func (s *Store) Create(ctx context.Context, authToken string) (string, error) {
	sid := uuid.NewString()
	key := sessionKey(sid)
	if err := s.client.HSet(ctx, key, FieldAuthToken, authToken).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sid, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, ErrSessionNotFound
	}
	fields, err := s.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return &Session{
		ID:                        sid,
		AuthToken:                 fields[FieldAuthToken],
		CurrentMemoryIndexPath:    fields[FieldMemoryIndexPath],
		CurrentScrapbookIndexPath: fields[FieldScrapbookIndexPath],
	}, nil
}

// Destroy removes a session and revokes its auth token.
func (s *Store) Destroy(ctx context.Context, sid string) error {
	sess, err := s.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if err := s.tokens.Revoke(ctx, sess.AuthToken); err != nil {
		return err
	}
	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// SetMemoryIndexPath records the most recent memory index URL (path plus
// query) for the session. Concurrent writers race; the last write wins.
func (s *Store) SetMemoryIndexPath(ctx context.Context, sid, path string) error {
	return s.setField(ctx, sid, FieldMemoryIndexPath, path)
}

// SetScrapbookIndexPath records the most recent scrapbook index URL for the
// session.
func (s *Store) SetScrapbookIndexPath(ctx context.Context, sid, path string) error {
	return s.setField(ctx, sid, FieldScrapbookIndexPath, path)
}

func (s *Store) setField(ctx context.Context, sid, field, value string) error {
	key := sessionKey(sid)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Resolve implements middleware.SessionResolver: it maps a session id to the
// signed-in user. Sessions whose auth token has been revoked, or whose user
// has since been blocked or removed, resolve as invalid.
func (s *Store) Resolve(ctx context.Context, sid string) (uint, bool, error) {
	sess, err := s.Get(ctx, sid)
	if err != nil {
		return 0, false, err
	}
	userID, err := s.tokens.Validate(ctx, sess.AuthToken)
	if err != nil {
		return 0, false, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if user.Blocked {
		return 0, false, errors.New("account is blocked")
	}
	return user.ID, user.IsAdmin, nil
}
