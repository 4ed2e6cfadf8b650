package auth

import (
	"errors"

	"github.com/modelbee/mbee/core"
)

// Local verifies passwords against the user store.
type Local struct {
	Users core.UserDB
}

func (Local) Name() string {
	return "local"
}

func (l Local) Authenticate(username, password string) (core.DBUser, error) {
	u, err := l.Users.LoginUser(username, password)
	if errors.Is(err, core.ErrAuth) {
		return nil, ErrAuth
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
