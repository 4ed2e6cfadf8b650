package auth

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/modelbee/mbee/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUser and fakeUserDB are just enough of a user store for strategy
// tests, the sql-backed store has its own tests.

type fakeUser struct {
	id        int
	name      string
	firstName string
	lastName  string
	email     string
	provider  string
	archived  bool
}

func (u *fakeUser) ID() int           { return u.id }
func (u *fakeUser) Name() string      { return u.name }
func (u *fakeUser) FirstName() string { return u.firstName }
func (u *fakeUser) LastName() string  { return u.lastName }
func (u *fakeUser) Email() string     { return u.email }
func (u *fakeUser) Admin() bool       { return false }
func (u *fakeUser) Provider() string  { return u.provider }
func (u *fakeUser) Archived() bool    { return u.archived }

type fakeUserDB struct {
	users     map[string]*fakeUser
	passwords map[string]string
	nextID    int
}

func newFakeUserDB() *fakeUserDB {
	return &fakeUserDB{users: map[string]*fakeUser{}, passwords: map[string]string{}, nextID: 1}
}

var errNotFound = errors.New("not found")

func (db *fakeUserDB) GetUserByName(name string) (core.DBUser, error) {
	if u, ok := db.users[name]; ok {
		return u, nil
	}
	return nil, errNotFound
}

func (db *fakeUserDB) InsertUser(name, firstName, lastName, email, provider string, admin bool) (core.DBUser, error) {
	var u = &fakeUser{id: db.nextID, name: name, firstName: firstName, lastName: lastName, email: email, provider: provider}
	db.nextID++
	db.users[name] = u
	return u, nil
}

func (db *fakeUserDB) LoginUser(name, password string) (core.DBUser, error) {
	u, ok := db.users[name]
	if !ok || u.provider != "local" || u.archived || db.passwords[name] != password {
		return nil, core.ErrAuth
	}
	return u, nil
}

func (db *fakeUserDB) SetUserDetails(u core.DBUser, firstName, lastName, email string) error {
	var f = u.(*fakeUser)
	f.firstName, f.lastName, f.email = firstName, lastName, email
	return nil
}

func (db *fakeUserDB) IsNotFound(err error) bool { return errors.Is(err, errNotFound) }

func (db *fakeUserDB) ChangePassword(u core.DBUser, old, new string) error { return nil }
func (db *fakeUserDB) DeleteUser(u core.DBUser) error                      { return nil }
func (db *fakeUserDB) GetUser(id int) (core.DBUser, error)                 { return nil, errNotFound }
func (db *fakeUserDB) GetAllUsers(includeArchived bool, limit, offset int) ([]core.DBUser, error) {
	return nil, nil
}
func (db *fakeUserDB) SetAdmin(u core.DBUser, admin bool) error           { return nil }
func (db *fakeUserDB) SetPassword(u core.DBUser, password string) error   { return nil }
func (db *fakeUserDB) SetUserArchived(u core.DBUser, archived bool) error { return nil }
func (db *fakeUserDB) Writeable() bool                                    { return true }

func TestChain(t *testing.T) {

	users := newFakeUserDB()
	users.InsertUser("alice", "", "", "", "local", false)
	users.passwords["alice"] = "secret"

	chain := Chain{Local{Users: users}}

	u, err := chain.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name())

	// usernames are normalized before the strategies run
	u, err = chain.Authenticate("  ALICE ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name())

	_, err = chain.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrAuth)

	_, err = chain.Authenticate("alice", "")
	assert.ErrorIs(t, err, ErrAuth)

	_, err = chain.Authenticate("nobody", "secret")
	assert.ErrorIs(t, err, ErrAuth)
}

// brokenStrategy simulates an unreachable backend.
type brokenStrategy struct{}

func (brokenStrategy) Name() string { return "broken" }
func (brokenStrategy) Authenticate(username, password string) (core.DBUser, error) {
	return nil, errors.New("backend down")
}

func TestChainAbortsOnBackendError(t *testing.T) {

	users := newFakeUserDB()
	users.InsertUser("alice", "", "", "", "local", false)
	users.passwords["alice"] = "secret"

	// the broken strategy runs first, its error must not be swallowed
	chain := Chain{brokenStrategy{}, Local{Users: users}}
	_, err := chain.Authenticate("alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuth)
}

// fakeLDAPConn scripts the bind-search-bind dance.
type fakeLDAPConn struct {
	serviceBindErr error
	userPassword   string
	entries        []*ldap.Entry
}

func (c *fakeLDAPConn) Bind(username, password string) (err error) {
	if username == "cn=service,dc=example,dc=org" {
		return c.serviceBindErr
	}
	if password != c.userPassword {
		return errors.New("invalid credentials")
	}
	return nil
}

func (c *fakeLDAPConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return &ldap.SearchResult{Entries: c.entries}, nil
}

func (c *fakeLDAPConn) Close() error { return nil }

func newTestLDAP(users core.UserDB, conn *fakeLDAPConn) *LDAP {
	l := NewLDAP(LDAPConfig{
		URL:    "ldaps://ldap.example.org",
		BindDN: "cn=service,dc=example,dc=org",
		Base:   "ou=people,dc=example,dc=org",
	}, users)
	l.dial = func(url string) (ldapConn, error) { return conn, nil }
	return l
}

func ldapEntry(dn string, attrs map[string]string) *ldap.Entry {
	var entry = ldap.NewEntry(dn, nil)
	for name, value := range attrs {
		entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{Name: name, Values: []string{value}})
	}
	return entry
}

func TestLDAPShadowUser(t *testing.T) {

	users := newFakeUserDB()
	conn := &fakeLDAPConn{
		userPassword: "directory-pass",
		entries: []*ldap.Entry{ldapEntry("uid=bob,ou=people,dc=example,dc=org", map[string]string{
			"givenName": "Bob",
			"sn":        "Builder",
			"mail":      "bob@example.org",
		})},
	}
	l := newTestLDAP(users, conn)

	// first login provisions the shadow row
	u, err := l.Authenticate("bob", "directory-pass")
	require.NoError(t, err)
	assert.Equal(t, "ldap", u.Provider())
	assert.Equal(t, "Bob", u.FirstName())
	assert.Equal(t, "bob@example.org", u.Email())

	// a renamed directory entry refreshes the shadow row
	conn.entries[0] = ldapEntry("uid=bob,ou=people,dc=example,dc=org", map[string]string{
		"givenName": "Robert",
		"sn":        "Builder",
		"mail":      "bob@example.org",
	})
	u, err = l.Authenticate("bob", "directory-pass")
	require.NoError(t, err)
	assert.Equal(t, "Robert", u.FirstName())

	_, err = l.Authenticate("bob", "wrong")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestLDAPRejectsConflictsAndArchived(t *testing.T) {

	users := newFakeUserDB()
	users.InsertUser("carol", "", "", "", "local", false)
	conn := &fakeLDAPConn{
		userPassword: "directory-pass",
		entries:      []*ldap.Entry{ldapEntry("uid=carol,ou=people,dc=example,dc=org", nil)},
	}
	l := newTestLDAP(users, conn)

	// a local user of the same name must not be taken over
	_, err := l.Authenticate("carol", "directory-pass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuth)

	// archived shadow users can't log in
	users.users["dave"] = &fakeUser{id: 99, name: "dave", provider: "ldap", archived: true}
	conn.entries = []*ldap.Entry{ldapEntry("uid=dave,ou=people,dc=example,dc=org", nil)}
	_, err = l.Authenticate("dave", "directory-pass")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestLDAPAmbiguousSearch(t *testing.T) {

	users := newFakeUserDB()
	conn := &fakeLDAPConn{userPassword: "directory-pass"} // no entries
	l := newTestLDAP(users, conn)

	_, err := l.Authenticate("ghost", "directory-pass")
	assert.ErrorIs(t, err, ErrAuth)

	conn.entries = []*ldap.Entry{
		ldapEntry("uid=twin,ou=a,dc=example,dc=org", nil),
		ldapEntry("uid=twin,ou=b,dc=example,dc=org", nil),
	}
	_, err = l.Authenticate("twin", "directory-pass")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestCheckPassword(t *testing.T) {
	assert.NoError(t, CheckPassword("Sup3rSecret"))
	assert.Error(t, CheckPassword("short1A"))
	assert.Error(t, CheckPassword("alllowercase1"))
	assert.Error(t, CheckPassword("ALLUPPERCASE1"))
	assert.Error(t, CheckPassword("NoDigitsHere"))
}
