package hook_test

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/hook"
	"github.com/modelbee/mbee/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T) (*core.CoreDB, *hook.Dispatcher) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	var c = &core.CoreDB{}
	c.OrgDB = sqldb.NewOrgDB(db)
	c.ProjectDB = sqldb.NewProjectDB(db)
	c.BranchDB = sqldb.NewBranchDB(db)
	c.ElementDB = sqldb.NewElementDB(db)
	c.WebhookDB = sqldb.NewWebhookDB(db)
	c.UserDB = sqldb.NewUserDB(db)

	d := hook.NewDispatcher(c, zap.NewNop())
	d.Delay = time.Millisecond
	return c, d
}

func TestDeliver(t *testing.T) {

	c, d := newTestDispatcher(t)

	var mu sync.Mutex
	var bodies []map[string]interface{}
	var authHeaders []string
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		var body map[string]interface{}
		json.Unmarshal(raw, &body)
		mu.Lock()
		bodies = append(bodies, body)
		authHeaders = append(authHeaders, req.Header.Get("Authorization"))
		mu.Unlock()
	}))
	defer receiver.Close()

	w, err := c.WebhookDB.InsertWebhook("pub-1", core.WebhookOutgoing, "notify", []string{core.TriggerElementCreated}, receiver.URL, "Bearer s3cret", "", core.RefProject, 42)
	require.NoError(t, err)

	d.Notify(core.Event{
		Trigger:   core.TriggerElementCreated,
		OrgID:     1,
		ProjectID: 42,
		Payload:   map[string]interface{}{"element": "engine"},
	})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, core.TriggerElementCreated, bodies[0]["trigger"])
	assert.Equal(t, w.PublicID(), bodies[0]["webhook"])
	assert.Equal(t, map[string]interface{}{"element": "engine"}, bodies[0]["payload"])
	assert.Equal(t, "Bearer s3cret", authHeaders[0])
}

func TestDeliverRetries(t *testing.T) {

	c, d := newTestDispatcher(t)

	var mu sync.Mutex
	var requests int
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		requests++
		var n = requests
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer receiver.Close()

	_, err := c.WebhookDB.InsertWebhook("pub-1", core.WebhookOutgoing, "flaky", []string{core.TriggerElementCreated}, receiver.URL, "", "", core.RefProject, 42)
	require.NoError(t, err)

	d.Notify(core.Event{Trigger: core.TriggerElementCreated, OrgID: 1, ProjectID: 42})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, requests) // two failures, then success
}

func TestNoDeliveryToArchivedOrIncoming(t *testing.T) {

	c, d := newTestDispatcher(t)

	var mu sync.Mutex
	var requests int
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
	}))
	defer receiver.Close()

	archived, err := c.WebhookDB.InsertWebhook("pub-1", core.WebhookOutgoing, "archived", []string{core.TriggerElementCreated}, receiver.URL, "", "", core.RefProject, 42)
	require.NoError(t, err)
	require.NoError(t, c.WebhookDB.SetWebhookArchived(archived, true))
	_, err = c.WebhookDB.InsertWebhook("pub-2", core.WebhookIncoming, "incoming", []string{core.TriggerElementCreated}, "", "", "tok", core.RefProject, 42)
	require.NoError(t, err)

	d.Notify(core.Event{Trigger: core.TriggerElementCreated, OrgID: 1, ProjectID: 42})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, requests)
}

// recorder collects re-emitted events.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Notify(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestTriggerIncoming(t *testing.T) {

	c, d := newTestDispatcher(t)
	var rec = &recorder{}
	c.Observer = rec

	o, err := c.OrgDB.InsertOrg("acme", "ACME")
	require.NoError(t, err)
	p, err := c.ProjectDB.InsertProject(o.ID(), "rocket", "Rocket", core.VisibilityPrivate)
	require.NoError(t, err)
	b, err := c.BranchDB.InsertBranch(p.ID(), "master", "Master", "", false)
	require.NoError(t, err)

	_, err = c.WebhookDB.InsertWebhook("pub-1", core.WebhookIncoming, "ci", []string{core.TriggerElementCreated, core.TriggerElementUpdated}, "", "", "tok-123", core.RefBranch, b.ID())
	require.NoError(t, err)

	require.NoError(t, d.TriggerIncoming("tok-123", map[string]interface{}{"build": "42"}))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 2)
	assert.Equal(t, core.TriggerElementCreated, rec.events[0].Trigger)
	assert.Equal(t, o.ID(), rec.events[0].OrgID)
	assert.Equal(t, p.ID(), rec.events[0].ProjectID)
	assert.Equal(t, b.ID(), rec.events[0].BranchID)
	assert.Equal(t, map[string]interface{}{"build": "42"}, rec.events[0].Payload)
}

func TestTriggerIncomingRejects(t *testing.T) {

	c, d := newTestDispatcher(t)

	err := d.TriggerIncoming("unknown", nil)
	assert.True(t, c.WebhookDB.IsNotFound(err))

	// outgoing webhooks can't be fired from outside
	w, err := c.WebhookDB.InsertWebhook("pub-1", core.WebhookIncoming, "ci", []string{"x"}, "", "", "tok-1", core.RefOrg, 1)
	require.NoError(t, err)
	require.NoError(t, c.WebhookDB.SetWebhookArchived(w, true))
	assert.ErrorIs(t, d.TriggerIncoming("tok-1", nil), core.ErrUnauthorized)
}
