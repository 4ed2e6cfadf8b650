package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/modelbee/mbee/api"
	"github.com/modelbee/mbee/auth"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/hook"
	"github.com/modelbee/mbee/sqldb"
	"github.com/modelbee/mbee/sqldb/sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "Sup3rSecret"

type fixture struct {
	ts *httptest.Server
	db *core.CoreDB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	var c = &core.CoreDB{}
	require.NoError(t, c.Init(sqlite3.NewSessionStore(sqlDB), ""))
	c.OrgDB = sqldb.NewOrgDB(sqlDB)
	c.ProjectDB = sqldb.NewProjectDB(sqlDB)
	c.BranchDB = sqldb.NewBranchDB(sqlDB)
	c.ElementDB = sqldb.NewElementDB(sqlDB)
	c.WebhookDB = sqldb.NewWebhookDB(sqlDB)
	c.UserDB = sqldb.NewUserDB(sqlDB)

	dispatcher := hook.NewDispatcher(c, zap.NewNop())

	srv := &api.Server{
		DB:      c,
		Auth:    auth.Chain{auth.Local{Users: c.UserDB}},
		Hooks:   dispatcher,
		Logger:  zap.NewNop(),
		Version: "test",
	}

	ts := httptest.NewServer(c.SessionManager.LoadAndSave(srv.NewRouter()))
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, db: c}
}

func (f *fixture) mustUser(t *testing.T, name string, admin bool) core.DBUser {
	t.Helper()
	u, err := f.db.UserDB.InsertUser(name, "", "", "", "local", admin)
	require.NoError(t, err)
	require.NoError(t, f.db.SetPassword(u, testPassword))
	return u
}

// do sends a request with basic auth. user == "" means anonymous.
func (f *fixture) do(t *testing.T, method, path, user string, body interface{}) *http.Response {
	t.Helper()
	var reader = bytes.NewReader(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, testPassword)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestServiceEndpoints(t *testing.T) {

	f := newFixture(t)

	resp := f.do(t, "GET", "/api/test", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var version map[string]string
	decode(t, f.do(t, "GET", "/api/version", "", nil), &version)
	assert.Equal(t, "test", version["version"])

	resp = f.do(t, "GET", "/api/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
	resp.Body.Close()
}

func TestLoginSession(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "alice", false)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	resp, err := client.Post(f.ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": testPassword})
	resp, err = client.Post(f.ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// the session cookie logs the user in
	resp, err = client.Get(f.ts.URL + "/api/whoami")
	require.NoError(t, err)
	var me map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	assert.Equal(t, "alice", me["username"])

	resp, err = client.Post(f.ts.URL+"/api/logout", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.Get(f.ts.URL + "/api/whoami")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOrgEndpoints(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "root", true)
	f.mustUser(t, "alice", false)

	// only system admins create orgs
	resp := f.do(t, "POST", "/api/orgs", "alice", map[string]string{"id": "acme", "name": "ACME"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	var created map[string]interface{}
	decode(t, f.do(t, "POST", "/api/orgs", "root", map[string]string{"id": "acme", "name": "ACME"}), &created)
	assert.Equal(t, "acme", created["id"])

	// not a member, not visible
	resp = f.do(t, "GET", "/api/orgs/acme", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "PUT", "/api/orgs/acme/members/alice", "root", map[string]string{"role": "read"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got map[string]interface{}
	decode(t, f.do(t, "GET", "/api/orgs/acme", "alice", nil), &got)
	assert.Equal(t, "ACME", got["name"])

	// rename and archive
	decode(t, f.do(t, "PATCH", "/api/orgs/acme", "root", map[string]interface{}{"name": "ACME Corp"}), &got)
	assert.Equal(t, "ACME Corp", got["name"])

	resp = f.do(t, "PATCH", "/api/orgs/acme", "root", map[string]interface{}{"archived": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "GET", "/api/orgs/acme", "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	decode(t, f.do(t, "GET", "/api/orgs/acme?includeArchived=true", "alice", nil), &got)
	assert.Equal(t, true, got["archived"])

	resp = f.do(t, "DELETE", "/api/orgs/acme/members/alice", "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "GET", "/api/orgs/acme?includeArchived=true", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "DELETE", "/api/orgs/acme", "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "GET", "/api/orgs/acme?includeArchived=true", "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUserEndpoints(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "root", true)
	f.mustUser(t, "alice", false)

	// creating users is admin-only
	resp := f.do(t, "POST", "/api/users", "alice", map[string]interface{}{"username": "bob", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	var created map[string]interface{}
	decode(t, f.do(t, "POST", "/api/users", "root", map[string]interface{}{"username": "bob", "password": testPassword}), &created)
	assert.Equal(t, "bob", created["username"])
	assert.Equal(t, "local", created["provider"])

	// a weak password is rejected
	resp = f.do(t, "POST", "/api/users", "root", map[string]interface{}{"username": "carol", "password": "weak"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// users see themselves, not each other
	resp = f.do(t, "GET", "/api/users/bob", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "GET", "/api/users/alice", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// own profile
	var patched map[string]interface{}
	decode(t, f.do(t, "PATCH", "/api/users/alice", "alice", map[string]interface{}{"email": "alice@example.org"}), &patched)
	assert.Equal(t, "alice@example.org", patched["email"])

	// only admins flip the admin flag
	resp = f.do(t, "PATCH", "/api/users/alice", "alice", map[string]interface{}{"admin": true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// password change requires the old password
	resp = f.do(t, "PATCH", "/api/users/alice/password", "alice", map[string]string{"oldPassword": "wrong", "password": "An0therSecret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "PATCH", "/api/users/alice/password", "alice", map[string]string{"oldPassword": testPassword, "password": "An0therSecret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// and is strictly personal
	resp = f.do(t, "PATCH", "/api/users/bob/password", "root", map[string]string{"oldPassword": testPassword, "password": "An0therSecret"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "DELETE", "/api/users/bob", "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "GET", "/api/users/bob", "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestProjectAndBranchEndpoints(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "root", true)

	resp := f.do(t, "POST", "/api/orgs", "root", map[string]string{"id": "acme", "name": "ACME"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var project map[string]interface{}
	decode(t, f.do(t, "POST", "/api/orgs/acme/projects", "root", map[string]string{"id": "rocket", "name": "Rocket"}), &project)
	assert.Equal(t, "rocket", project["id"])
	assert.Equal(t, "acme", project["org"])
	assert.Equal(t, "private", project["visibility"])

	// the master branch exists from the start
	var branches []map[string]interface{}
	decode(t, f.do(t, "GET", "/api/orgs/acme/projects/rocket/branches", "root", nil), &branches)
	require.Len(t, branches, 1)
	assert.Equal(t, "master", branches[0]["id"])

	var branch map[string]interface{}
	decode(t, f.do(t, "POST", "/api/orgs/acme/projects/rocket/branches", "root", map[string]interface{}{"id": "dev", "name": "Development"}), &branch)
	assert.Equal(t, "dev", branch["id"])
	assert.Equal(t, "master", branch["source"])

	var projects []map[string]interface{}
	decode(t, f.do(t, "GET", "/api/projects", "root", nil), &projects)
	assert.Len(t, projects, 1)

	resp = f.do(t, "DELETE", "/api/orgs/acme/projects/rocket/branches/master", "root", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "DELETE", "/api/orgs/acme/projects/rocket/branches/dev", "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestElementEndpoints(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "root", true)

	resp := f.do(t, "POST", "/api/orgs", "root", map[string]string{"id": "acme", "name": "ACME"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "POST", "/api/orgs/acme/projects", "root", map[string]string{"id": "rocket", "name": "Rocket"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var base = "/api/orgs/acme/projects/rocket/branches/master/elements"

	var engine map[string]interface{}
	decode(t, f.do(t, "POST", base, "root", map[string]interface{}{
		"id": "engine", "name": "Engine", "documentation": "Burns *methane*.",
	}), &engine)
	assert.Equal(t, "block", engine["type"])
	assert.Equal(t, "model", engine["parent"])
	assert.Equal(t, float64(1), engine["version"])

	var tank map[string]interface{}
	decode(t, f.do(t, "POST", base, "root", map[string]interface{}{"id": "tank", "name": "Tank"}), &tank)

	var feeds map[string]interface{}
	decode(t, f.do(t, "POST", base, "root", map[string]interface{}{
		"id": "feeds", "type": "relationship", "name": "feeds", "source": "tank", "target": "engine",
	}), &feeds)
	assert.Equal(t, "tank", feeds["source"])

	// search through the list endpoint
	var found []map[string]interface{}
	decode(t, f.do(t, "GET", base+"?q=methane", "root", nil), &found)
	require.Len(t, found, 1)
	assert.Equal(t, "engine", found[0]["id"])

	// subtree
	var subtree []map[string]interface{}
	decode(t, f.do(t, "GET", base+"?root=model&depth=1", "root", nil), &subtree)
	assert.Len(t, subtree, 5) // model, __mbee__, engine, tank, feeds

	// rendered documentation
	var rendered map[string]interface{}
	decode(t, f.do(t, "GET", base+"/engine?format=html", "root", nil), &rendered)
	assert.Contains(t, rendered["renderedDocumentation"], "<em>methane</em>")

	// updating appends a version
	decode(t, f.do(t, "PATCH", base+"/engine", "root", map[string]interface{}{"documentation": "Burns *kerosene*.", "note": "fuel change"}), &engine)
	assert.Equal(t, float64(2), engine["version"])

	var versions []map[string]interface{}
	decode(t, f.do(t, "GET", base+"/engine/versions", "root", nil), &versions)
	require.Len(t, versions, 2)
	assert.Equal(t, "fuel change", versions[0]["note"])
	assert.Equal(t, "root", versions[0]["author"])

	// move below a package
	decode(t, f.do(t, "POST", base, "root", map[string]interface{}{"id": "propulsion", "type": "package", "name": "Propulsion"}), &rendered)
	decode(t, f.do(t, "PATCH", base+"/engine", "root", map[string]interface{}{"parent": "propulsion"}), &engine)
	assert.Equal(t, "propulsion", engine["parent"])

	// archive hides from reads
	resp = f.do(t, "PATCH", base+"/tank", "root", map[string]interface{}{"archived": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "GET", base+"/tank", "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "GET", base+"/tank?includeArchived=true", "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// deleting repoints the relationship
	resp = f.do(t, "DELETE", base+"/tank", "root", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	decode(t, f.do(t, "GET", base+"/feeds", "root", nil), &feeds)
	assert.Equal(t, "undefined", feeds["source"])

	resp = f.do(t, "GET", base+"/nope", "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookEndpoints(t *testing.T) {

	f := newFixture(t)
	f.mustUser(t, "root", true)

	resp := f.do(t, "POST", "/api/orgs", "root", map[string]string{"id": "acme", "name": "ACME"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "POST", "/api/orgs/acme/projects", "root", map[string]string{"id": "rocket", "name": "Rocket"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var outgoing map[string]interface{}
	decode(t, f.do(t, "POST", "/api/webhooks", "root", map[string]interface{}{
		"type": "outgoing", "name": "notify", "triggers": []string{"element.created"},
		"url":       "http://example.org/hook",
		"reference": map[string]string{"org": "acme", "project": "rocket"},
	}), &outgoing)
	assert.NotEmpty(t, outgoing["id"])
	assert.Equal(t, map[string]interface{}{"org": "acme", "project": "rocket"}, outgoing["reference"])

	var incoming map[string]interface{}
	decode(t, f.do(t, "POST", "/api/webhooks", "root", map[string]interface{}{
		"type": "incoming", "name": "ci", "triggers": []string{"element.updated"},
		"reference": map[string]string{"org": "acme"},
	}), &incoming)
	require.NotEmpty(t, incoming["token"])

	var hooks []map[string]interface{}
	decode(t, f.do(t, "GET", "/api/webhooks?org=acme&project=rocket", "root", nil), &hooks)
	assert.Len(t, hooks, 1)

	// firing an incoming webhook needs no login, just the token
	resp = f.do(t, "POST", "/api/webhook-trigger/"+incoming["token"].(string), "", map[string]string{"build": "42"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, "POST", "/api/webhook-trigger/bogus", "", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// archive and delete
	webhookID := fmt.Sprintf("%v", outgoing["id"])
	resp = f.do(t, "PATCH", "/api/webhooks/"+webhookID, "root", map[string]interface{}{"archived": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "DELETE", "/api/webhooks/"+webhookID, "root", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = f.do(t, "GET", "/api/webhooks/"+webhookID, "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
