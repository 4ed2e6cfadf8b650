// Package auth provides pluggable authentication strategies. Strategies
// verify credentials and resolve them to a user record, the http layer
// decides when to call them.
package auth

import (
	"errors"

	"github.com/modelbee/mbee/core"
)

var ErrAuth = errors.New("wrong username or password")

type Strategy interface {
	Name() string
	Authenticate(username, password string) (core.DBUser, error)
}

// A Chain tries its strategies in order and returns the first success.
// Every failure except ErrAuth aborts the chain.
type Chain []Strategy

func (c Chain) Authenticate(username, password string) (core.DBUser, error) {
	username = core.NormalizeSlug(username)
	if username == "" || password == "" {
		return nil, ErrAuth
	}
	for _, s := range c {
		u, err := s.Authenticate(username, password)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrAuth) {
			return nil, err
		}
	}
	return nil, ErrAuth
}
