package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamelab-hdl/gamelab/pkg/api/sessions"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/sirupsen/logrus"
)

// ErrAuthenticationFailed is returned for any failed login. Unknown
// names and wrong passwords are deliberately indistinguishable so that
// login cannot be used to enumerate accounts.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Authenticator validates credentials against the store and issues
// session tokens on success.
type Authenticator struct {
	log      logrus.FieldLogger
	store    store.Store
	sessions sessions.Registry
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(
	log logrus.FieldLogger,
	st store.Store,
	registry sessions.Registry,
) *Authenticator {
	return &Authenticator{
		log:      log.WithField("component", "auth"),
		store:    st,
		sessions: registry,
	}
}

// Login verifies name and password and issues a fresh session token.
// Previously issued tokens for the same user stay valid. Storage
// failures propagate as-is and are never reported as bad credentials.
func (a *Authenticator) Login(
	ctx context.Context, name, password string,
) (*store.User, string, error) {
	user, err := a.store.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash comparison so unknown names cost the same
			// as wrong passwords.
			CheckPassword(dummyHash, password)

			return nil, "", ErrAuthenticationFailed
		}

		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrAuthenticationFailed
	}

	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}

	a.log.WithField("user_id", user.ID).
		WithField("name", user.Name).
		Debug("User logged in")

	return user, token, nil
}

// Logout revokes every token currently bound to the user.
func (a *Authenticator) Logout(userID uint) int {
	revoked := a.sessions.RevokeAllFor(userID)

	a.log.WithField("user_id", userID).
		WithField("revoked", revoked).
		Debug("User logged out")

	return revoked
}
