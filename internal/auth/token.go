// Package auth implements credential checking and the opaque auth-token
// service backing signed-in sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenInvalid is returned when a token is unknown or expired.
var ErrTokenInvalid = errors.New("auth token invalid or expired")

// TokenService issues and validates the opaque auth tokens held by sessions.
// Tokens carry no claims; the mapping to a user lives server side.
type TokenService interface {
	Issue(ctx context.Context, userID uint) (string, error)
	Validate(ctx context.Context, token string) (uint, error)
	Revoke(ctx context.Context, token string) error
}

const tokenKeyPrefix = "auth_token:"

type redisTokenService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenService returns a TokenService storing tokens in Redis with
// the given lifetime.
func NewRedisTokenService(client *redis.Client, ttl time.Duration) TokenService {
	return &redisTokenService{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func (s *redisTokenService) Issue(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("issue auth token: %w", err)
	}
	return token, nil
}

func (s *redisTokenService) Validate(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrTokenInvalid
	}
	raw, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrTokenInvalid
		}
		return 0, fmt.Errorf("validate auth token: %w", err)
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(userID), nil
}

func (s *redisTokenService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke auth token: %w", err)
	}
	return nil
}
