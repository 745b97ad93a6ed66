package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keepsake/internal/models"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.byEmail[email], nil
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error { return nil }
func (s *stubUserRepo) Update(ctx context.Context, user *models.User) error { return nil }
func (s *stubUserRepo) Delete(ctx context.Context, id uint) error           { return nil }
func (s *stubUserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return nil, nil
}

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenService(client, time.Hour)
}

func newTestUser(t *testing.T, password string, blocked bool) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:       1,
		Username: "margaret",
		Email:    "margaret@example.com",
		Password: hash,
		Blocked:  blocked,
	}
}

func TestAuthenticator_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials issue a token", func(t *testing.T) {
		tokens := newTestTokenService(t)
		user := newTestUser(t, "correct-horse-B1!", false)
		authn := NewAuthenticator(&stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}, tokens)

		got, token, err := authn.SignIn(ctx, user.Email, "correct-horse-B1!")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		require.NotEmpty(t, token)

		userID, err := tokens.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, userID)
	})

	t.Run("wrong password", func(t *testing.T) {
		tokens := newTestTokenService(t)
		user := newTestUser(t, "correct-horse-B1!", false)
		authn := NewAuthenticator(&stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}, tokens)

		_, _, err := authn.SignIn(ctx, user.Email, "wrong-password")
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "UNAUTHORIZED", appErr.Code)
		assert.Equal(t, MsgInvalidCredentials, appErr.Message)
	})

	t.Run("unknown email reads like wrong password", func(t *testing.T) {
		tokens := newTestTokenService(t)
		authn := NewAuthenticator(&stubUserRepo{byEmail: map[string]*models.User{}}, tokens)

		_, _, err := authn.SignIn(ctx, "nobody@example.com", "whatever")
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, MsgInvalidCredentials, appErr.Message)
	})

	t.Run("blocked account gets the distinct message", func(t *testing.T) {
		tokens := newTestTokenService(t)
		user := newTestUser(t, "correct-horse-B1!", true)
		authn := NewAuthenticator(&stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}, tokens)

		_, _, err := authn.SignIn(ctx, user.Email, "correct-horse-B1!")
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, MsgAccountBlocked, appErr.Message)
	})
}

func TestAuthenticator_SignOut(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokenService(t)
	user := newTestUser(t, "correct-horse-B1!", false)
	authn := NewAuthenticator(&stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}, tokens)

	_, token, err := authn.SignIn(ctx, user.Email, "correct-horse-B1!")
	require.NoError(t, err)

	require.NoError(t, authn.SignOut(ctx, token))

	_, err = tokens.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedisTokenService(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token is rejected", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		tokens := NewRedisTokenService(client, time.Minute)

		token, err := tokens.Issue(ctx, 7)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, err = tokens.Validate(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		tokens := newTestTokenService(t)
		_, err := tokens.Validate(ctx, "")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("revoking an unknown token is a no-op", func(t *testing.T) {
		tokens := newTestTokenService(t)
		assert.NoError(t, tokens.Revoke(ctx, "never-issued"))
	})
}
