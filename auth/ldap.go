package auth

import (
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/modelbee/mbee/core"
)

// LDAPConfig is filled from the [ldap] section of the config file.
type LDAPConfig struct {
	URL            string // e.g. "ldaps://ldap.example.org:636"
	BindDN         string // service account, empty for anonymous bind
	BindPassword   string
	Base           string // search base, e.g. "ou=people,dc=example,dc=org"
	Filter         string // additional filter, e.g. "(objectClass=person)"
	UsernameAttr   string // defaults to "uid"
	FirstNameAttr  string // defaults to "givenName"
	LastNameAttr   string // defaults to "sn"
	EmailAttr      string // defaults to "mail"
	SkipTLSVerify  bool
}

func (c *LDAPConfig) defaults() {
	if c.UsernameAttr == "" {
		c.UsernameAttr = "uid"
	}
	if c.FirstNameAttr == "" {
		c.FirstNameAttr = "givenName"
	}
	if c.LastNameAttr == "" {
		c.LastNameAttr = "sn"
	}
	if c.EmailAttr == "" {
		c.EmailAttr = "mail"
	}
	if c.Filter == "" {
		c.Filter = "(objectClass=*)"
	}
}

// LDAP authenticates against a directory with the usual bind-search-bind
// dance. On success it creates or refreshes a shadow user row, so roles can
// reference directory users like local ones.
type LDAP struct {
	Config LDAPConfig
	Users  core.UserDB

	// dial is replaceable for tests
	dial func(url string) (ldapConn, error)
}

type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

func NewLDAP(config LDAPConfig, users core.UserDB) *LDAP {
	config.defaults()
	return &LDAP{
		Config: config,
		Users:  users,
		dial: func(url string) (ldapConn, error) {
			return ldap.DialURL(url, ldap.DialWithTLSConfig(&tls.Config{
				InsecureSkipVerify: config.SkipTLSVerify,
			}))
		},
	}
}

func (*LDAP) Name() string {
	return "ldap"
}

func (l *LDAP) Authenticate(username, password string) (core.DBUser, error) {

	conn, err := l.dial(l.Config.URL)
	if err != nil {
		return nil, fmt.Errorf("ldap dial: %w", err)
	}
	defer conn.Close()

	if l.Config.BindDN != "" {
		if err := conn.Bind(l.Config.BindDN, l.Config.BindPassword); err != nil {
			return nil, fmt.Errorf("ldap service bind: %w", err)
		}
	}

	var filter = fmt.Sprintf("(&%s(%s=%s))", l.Config.Filter, l.Config.UsernameAttr, ldap.EscapeFilter(username))
	result, err := conn.Search(ldap.NewSearchRequest(
		l.Config.Base, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		filter,
		[]string{"dn", l.Config.FirstNameAttr, l.Config.LastNameAttr, l.Config.EmailAttr},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrAuth
	}
	var entry = result.Entries[0]

	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrAuth
	}

	return l.shadowUser(username,
		entry.GetAttributeValue(l.Config.FirstNameAttr),
		entry.GetAttributeValue(l.Config.LastNameAttr),
		entry.GetAttributeValue(l.Config.EmailAttr),
	)
}

// shadowUser creates the local row for a directory user on first login and
// keeps the directory-owned fields in sync afterwards.
func (l *LDAP) shadowUser(username, firstName, lastName, email string) (core.DBUser, error) {
	u, err := l.Users.GetUserByName(username)
	if l.Users.IsNotFound(err) {
		return l.Users.InsertUser(username, firstName, lastName, email, "ldap", false)
	}
	if err != nil {
		return nil, err
	}
	if u.Provider() != "ldap" {
		return nil, fmt.Errorf("user %s exists with provider %s", username, u.Provider())
	}
	if u.Archived() {
		return nil, ErrAuth
	}
	if u.FirstName() != firstName || u.LastName() != lastName || u.Email() != email {
		if err := l.Users.SetUserDetails(u, firstName, lastName, email); err != nil {
			return nil, err
		}
	}
	return u, nil
}
