package sqldb_test

import (
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // the in-memory database lives on one connection
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOrgStore(t *testing.T) {

	db := newTestDB(t)
	orgs := sqldb.NewOrgDB(db)

	o, err := orgs.InsertOrg("acme", "ACME Corp")
	require.NoError(t, err)
	assert.Equal(t, "acme", o.Slug())
	assert.Equal(t, "ACME Corp", o.Name())
	assert.False(t, o.Archived())

	got, err := orgs.GetOrgBySlug("acme")
	require.NoError(t, err)
	assert.Equal(t, o.ID(), got.ID())

	_, err = orgs.GetOrgBySlug("nope")
	assert.True(t, orgs.IsNotFound(err))

	// unique slug
	_, err = orgs.InsertOrg("acme", "duplicate")
	assert.Error(t, err)

	require.NoError(t, orgs.SetOrgName(o, "ACME"))
	assert.Equal(t, "ACME", o.Name())

	require.NoError(t, orgs.SetOrgArchived(o, true))
	assert.True(t, o.Archived())

	visible, err := orgs.GetAllOrgs(false, -1, 0)
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := orgs.GetAllOrgs(true, -1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOrgRoles(t *testing.T) {

	db := newTestDB(t)
	orgs := sqldb.NewOrgDB(db)

	o, err := orgs.InsertOrg("acme", "ACME")
	require.NoError(t, err)

	require.NoError(t, orgs.SetOrgRole(o.ID(), 1, core.Read))
	require.NoError(t, orgs.SetOrgRole(o.ID(), 2, core.Admin))

	roles, err := orgs.GetOrgRoles(o.ID())
	require.NoError(t, err)
	assert.Equal(t, map[int]core.Role{1: core.Read, 2: core.Admin}, roles)

	// REPLACE semantics
	require.NoError(t, orgs.SetOrgRole(o.ID(), 1, core.Write))
	roles, err = orgs.GetOrgRoles(o.ID())
	require.NoError(t, err)
	assert.Equal(t, core.Write, roles[1])

	// NoRole removes the row
	require.NoError(t, orgs.SetOrgRole(o.ID(), 1, core.NoRole))
	roles, err = orgs.GetOrgRoles(o.ID())
	require.NoError(t, err)
	assert.NotContains(t, roles, 1)
}

func TestUserStore(t *testing.T) {

	db := newTestDB(t)
	users := sqldb.NewUserDB(db)

	u, err := users.InsertUser("alice", "Alice", "Ant", "alice@example.org", "", false)
	require.NoError(t, err)
	assert.Equal(t, "local", u.Provider())

	require.NoError(t, users.SetPassword(u, "Sup3rSecret"))

	got, err := users.LoginUser("alice", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, u.ID(), got.ID())

	_, err = users.LoginUser("alice", "wrong")
	assert.ErrorIs(t, err, core.ErrAuth)

	_, err = users.LoginUser("nobody", "Sup3rSecret")
	assert.ErrorIs(t, err, core.ErrAuth)

	// archived users can't log in
	require.NoError(t, users.SetUserArchived(u, true))
	_, err = users.LoginUser("alice", "Sup3rSecret")
	assert.ErrorIs(t, err, core.ErrAuth)
	require.NoError(t, users.SetUserArchived(u, false))

	// ldap users have no local password
	_, err = users.InsertUser("bob", "", "", "", "ldap", false)
	require.NoError(t, err)
	_, err = users.LoginUser("bob", "")
	assert.ErrorIs(t, err, core.ErrAuth)

	// change password verifies the old one
	err = users.ChangePassword(u, "wrong", "An0therSecret")
	assert.ErrorIs(t, err, core.ErrAuth)
	require.NoError(t, users.ChangePassword(u, "Sup3rSecret", "An0therSecret"))
	_, err = users.LoginUser("alice", "An0therSecret")
	assert.NoError(t, err)
}

func TestElementVersions(t *testing.T) {

	db := newTestDB(t)
	elements := sqldb.NewElementDB(db)

	e, err := elements.InsertElement(1, "engine", "model", core.KindBlock, "Engine", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, e.MaxVersionNo())

	require.NoError(t, elements.AddElementVersion(e, "Engine", "V8", "", "", "created", 7))
	require.NoError(t, elements.AddElementVersion(e, "Engine", "V12", "", "", "more cylinders", 7))
	assert.Equal(t, 2, e.MaxVersionNo())
	assert.Equal(t, "V12", e.Documentation())

	// the row reflects the latest version
	got, err := elements.GetElement(1, "engine")
	require.NoError(t, err)
	assert.Equal(t, "V12", got.Documentation())
	assert.Equal(t, 2, got.MaxVersionNo())

	versions, err := elements.ElementVersions(e.ID())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNo()) // newest first
	assert.Equal(t, "more cylinders", versions[0].Note())
	assert.Equal(t, 7, versions[0].AuthorID())

	var snapshot struct {
		Name          string `json:"name"`
		Documentation string `json:"documentation"`
	}
	require.NoError(t, json.Unmarshal([]byte(versions[1].Content()), &snapshot))
	assert.Equal(t, "Engine", snapshot.Name)
	assert.Equal(t, "V8", snapshot.Documentation)

	v, err := elements.GetElementVersion(e.ID(), 1)
	require.NoError(t, err)
	assert.Equal(t, "created", v.Note())
}

func TestDeleteElementRefusesChildren(t *testing.T) {

	db := newTestDB(t)
	elements := sqldb.NewElementDB(db)

	parent, err := elements.InsertElement(1, "car", "model", core.KindPackage, "Car", "", "", "")
	require.NoError(t, err)
	child, err := elements.InsertElement(1, "wheel", "car", core.KindBlock, "Wheel", "", "", "")
	require.NoError(t, err)

	err = elements.DeleteElement(parent)
	assert.EqualError(t, err, "can't delete element with child elements")

	require.NoError(t, elements.DeleteElement(child))
	require.NoError(t, elements.DeleteElement(parent))

	_, err = elements.GetElement(1, "car")
	assert.True(t, elements.IsNotFound(err))
}

func TestSearchElements(t *testing.T) {

	db := newTestDB(t)
	elements := sqldb.NewElementDB(db)

	e, err := elements.InsertElement(1, "engine", "model", core.KindBlock, "Engine", "", "", "")
	require.NoError(t, err)
	require.NoError(t, elements.SetElementSearchText(e, "A four stroke combustion engine"))
	_, err = elements.InsertElement(1, "wheel", "model", core.KindBlock, "Wheel", "", "", "")
	require.NoError(t, err)

	found, err := elements.SearchElements(1, "Combustion", false, -1, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "engine", found[0].Slug())

	// name matches too
	found, err = elements.SearchElements(1, "whe", false, -1, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "wheel", found[0].Slug())

	found, err = elements.SearchElements(1, "gearbox", false, -1, 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	// LIKE wildcards in the query match literally
	d, err := elements.InsertElement(1, "discount", "model", core.KindBlock, "Discount", "", "", "")
	require.NoError(t, err)
	require.NoError(t, elements.SetElementSearchText(d, "applies to 100% of orders"))

	found, err = elements.SearchElements(1, "100%", false, -1, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "discount", found[0].Slug())

	found, err = elements.SearchElements(1, "c_mbustion", false, -1, 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = elements.SearchElements(1, "%", false, -1, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "discount", found[0].Slug())
}

func TestDeleteBranchCascade(t *testing.T) {

	db := newTestDB(t)
	branches := sqldb.NewBranchDB(db)
	elements := sqldb.NewElementDB(db)

	b, err := branches.InsertBranch(1, "master", "Master", "", false)
	require.NoError(t, err)

	e, err := elements.InsertElement(b.ID(), "engine", "model", core.KindBlock, "Engine", "", "", "")
	require.NoError(t, err)
	require.NoError(t, elements.AddElementVersion(e, "Engine", "", "", "", "created", 1))

	require.NoError(t, branches.DeleteBranch(b))

	_, err = branches.GetBranch(b.ID())
	assert.True(t, branches.IsNotFound(err))
	count, err := elements.CountElements(b.ID())
	require.NoError(t, err)
	assert.Zero(t, count)
	versions, err := elements.ElementVersions(e.ID())
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestWebhookStore(t *testing.T) {

	db := newTestDB(t)
	webhooks := sqldb.NewWebhookDB(db)

	w, err := webhooks.InsertWebhook("pub-1", core.WebhookOutgoing, "notify", []string{"element.created", "element.updated"}, "http://example.org/hook", "secret", "", core.RefProject, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"element.created", "element.updated"}, w.Triggers())

	matched, err := webhooks.GetWebhooksByTrigger("element.updated", core.RefProject, 42)
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	// no partial trigger matches
	matched, err = webhooks.GetWebhooksByTrigger("element.create", core.RefProject, 42)
	require.NoError(t, err)
	assert.Empty(t, matched)

	matched, err = webhooks.GetWebhooksByTrigger("element.created", core.RefProject, 7)
	require.NoError(t, err)
	assert.Empty(t, matched)

	// only the listeners on the same resource match
	_, err = webhooks.InsertWebhook("pub-3", core.WebhookOutgoing, "other", []string{"branch.created"}, "http://example.org/other", "", "", core.RefProject, 42)
	require.NoError(t, err)
	matched, err = webhooks.GetWebhooksByTrigger("element.created", core.RefProject, 42)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "pub-1", matched[0].PublicID())

	in, err := webhooks.InsertWebhook("pub-2", core.WebhookIncoming, "ci", []string{"element.updated"}, "", "", "tok-123", core.RefBranch, 5)
	require.NoError(t, err)

	got, err := webhooks.GetWebhookByToken("tok-123")
	require.NoError(t, err)
	assert.Equal(t, in.ID(), got.ID())

	// outgoing webhooks have no token, the empty string must never match
	_, err = webhooks.GetWebhookByToken("")
	assert.True(t, webhooks.IsNotFound(err))

	require.NoError(t, webhooks.SetWebhookArchived(w, true))
	visible, err := webhooks.GetWebhooks(core.RefProject, 42, false, -1, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "pub-3", visible[0].PublicID())

	require.NoError(t, webhooks.DeleteWebhook(in))
	_, err = webhooks.GetWebhook("pub-2")
	assert.True(t, webhooks.IsNotFound(err))
}
