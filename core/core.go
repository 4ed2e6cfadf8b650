package core

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// DefaultOrgSlug is the org every user can read. It is created by
// "mbee init" and can't be deleted.
const DefaultOrgSlug = "default"

type CoreDB struct {
	OrgDB
	ProjectDB
	BranchDB
	ElementDB
	WebhookDB
	UserDB
	SessionManager *scs.SessionManager
	Observer       Observer // may be nil
}

// page applies limit and offset to an already filtered slice. Listings
// which drop rows for permission reasons page after filtering, otherwise
// pages under-fill and offsets drift.
func page[T any](s []T, limit, offset int) []T {
	if offset > len(s) {
		offset = len(s)
	}
	s = s[offset:]
	if limit >= 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}

func (c *CoreDB) Init(sessionStore scs.Store, cookiePath string) error {
	c.SessionManager = scs.New()
	c.SessionManager.Store = sessionStore
	c.SessionManager.Cookie.Path = cookiePath + "/"
	c.SessionManager.Cookie.Persist = false
	c.SessionManager.Cookie.SameSite = http.SameSiteLaxMode // good CSRF protection if HTTP GET doesn't modify anything
	c.SessionManager.Cookie.Secure = false                  // else running on localhost or behind a http proxy fails
	c.SessionManager.IdleTimeout = 12 * time.Hour
	c.SessionManager.Lifetime = 720 * time.Hour
	return nil
}
