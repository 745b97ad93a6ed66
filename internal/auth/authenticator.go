package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"keepsake/internal/models"
	"keepsake/internal/observability"
	"keepsake/internal/repository"
)

// User-facing sign-in failure messages. The blocked message is deliberately
// distinct from the invalid-credentials one so blocked users know to reach out.
const (
	MsgInvalidCredentials = "Email or password was incorrect."
	MsgAccountBlocked     = "Your account has been blocked. Please contact us if you would like more information."
)

// Authenticator verifies credentials against stored accounts and exchanges
// them for opaque auth tokens.
type Authenticator struct {
	users  repository.UserRepository
	tokens TokenService
}

func NewAuthenticator(users repository.UserRepository, tokens TokenService) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// SignIn checks the email/password pair and issues an auth token on success.
// Failures come back as typed AppErrors carrying the user-facing message.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		observability.SignInAttempts.WithLabelValues("error").Inc()
		return nil, "", models.NewInternalError(err)
	}
	if user == nil {
		// Run a dummy compare so missing accounts cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGyyN1D1eqhXXYxFPBjice7Df5K3dGpW"), []byte(password))
		observability.SignInAttempts.WithLabelValues("invalid").Inc()
		return nil, "", models.NewUnauthorizedError(MsgInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		observability.SignInAttempts.WithLabelValues("invalid").Inc()
		return nil, "", models.NewUnauthorizedError(MsgInvalidCredentials)
	}
	if user.Blocked {
		observability.SignInAttempts.WithLabelValues("blocked").Inc()
		return nil, "", models.NewUnauthorizedError(MsgAccountBlocked)
	}

	token, err := a.tokens.Issue(ctx, user.ID)
	if err != nil {
		observability.SignInAttempts.WithLabelValues("error").Inc()
		return nil, "", models.NewInternalError(err)
	}
	observability.SignInAttempts.WithLabelValues("success").Inc()
	return user, token, nil
}

// SignOut revokes the auth token backing a session.
func (a *Authenticator) SignOut(ctx context.Context, token string) error {
	return a.tokens.Revoke(ctx, token)
}

// HashPassword produces a bcrypt hash suitable for models.User.Password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
