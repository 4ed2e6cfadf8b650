package sqldb

import (
	"database/sql"
	"strings"
	"time"

	"github.com/modelbee/mbee/core"
)

type webhook struct {
	id        int
	publicID  string
	kind      string
	name      string
	triggers  string // comma separated
	url       string
	authToken string
	token     string
	refType   string
	refID     int
	tsCreated int64
	archived  bool
}

func (w *webhook) ID() int           { return w.id }
func (w *webhook) PublicID() string  { return w.publicID }
func (w *webhook) Kind() string      { return w.kind }
func (w *webhook) Name() string      { return w.name }
func (w *webhook) URL() string       { return w.url }
func (w *webhook) AuthToken() string { return w.authToken }
func (w *webhook) Token() string     { return w.token }
func (w *webhook) RefType() string   { return w.refType }
func (w *webhook) RefID() int        { return w.refID }
func (w *webhook) TsCreated() int64  { return w.tsCreated }
func (w *webhook) Archived() bool    { return w.archived }

func (w *webhook) Triggers() []string {
	if w.triggers == "" {
		return nil
	}
	return strings.Split(w.triggers, ",")
}

const webhookCols = "id, publicId, kind, name, triggers, url, authToken, token, refType, refId, ts_created, archived"

type WebhookDB struct {
	*sql.DB
	deleteWebhook *sql.Stmt
	getByPublicID *sql.Stmt
	getByRef      *sql.Stmt
	getByToken    *sql.Stmt
	insertWebhook *sql.Stmt
	setArchived   *sql.Stmt
}

func NewWebhookDB(db *sql.DB) *WebhookDB {

	createSchema(db)

	var webhookDB = &WebhookDB{}
	webhookDB.DB = db
	webhookDB.deleteWebhook = mustPrepare(db, "DELETE FROM webhook WHERE id = ?")
	webhookDB.getByPublicID = mustPrepare(db, "SELECT "+webhookCols+" FROM webhook WHERE publicId = ? LIMIT 1")
	webhookDB.getByRef = mustPrepare(db, "SELECT "+webhookCols+" FROM webhook WHERE refType = ? AND refId = ? AND archived <= ? ORDER BY id LIMIT ? OFFSET ?")
	webhookDB.getByToken = mustPrepare(db, "SELECT "+webhookCols+" FROM webhook WHERE token = ? AND token != '' LIMIT 1")
	webhookDB.insertWebhook = mustPrepare(db, "INSERT INTO webhook (publicId, kind, name, triggers, url, authToken, token, refType, refId, ts_created, archived) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)")
	webhookDB.setArchived = mustPrepare(db, "UPDATE webhook SET archived = ? WHERE id = ?")
	return webhookDB
}

func (db *WebhookDB) scanOne(row *sql.Row) (core.DBWebhook, error) {
	var w = &webhook{}
	return w, row.Scan(&w.id, &w.publicID, &w.kind, &w.name, &w.triggers, &w.url, &w.authToken, &w.token, &w.refType, &w.refID, &w.tsCreated, &w.archived)
}

func (db *WebhookDB) scanAll(rows *sql.Rows) ([]core.DBWebhook, error) {
	defer rows.Close()
	var all = []core.DBWebhook{}
	for rows.Next() {
		var w = &webhook{}
		if err := rows.Scan(&w.id, &w.publicID, &w.kind, &w.name, &w.triggers, &w.url, &w.authToken, &w.token, &w.refType, &w.refID, &w.tsCreated, &w.archived); err != nil {
			return nil, err
		}
		all = append(all, w)
	}
	return all, rows.Err()
}

func (db *WebhookDB) DeleteWebhook(w core.DBWebhook) error {
	_, err := db.deleteWebhook.Exec(w.ID())
	return err
}

func (db *WebhookDB) GetWebhook(publicID string) (core.DBWebhook, error) {
	return db.scanOne(db.getByPublicID.QueryRow(publicID))
}

func (db *WebhookDB) GetWebhookByToken(token string) (core.DBWebhook, error) {
	return db.scanOne(db.getByToken.QueryRow(token))
}

func (db *WebhookDB) GetWebhooks(refType string, refID int, includeArchived bool, limit, offset int) ([]core.DBWebhook, error) {
	rows, err := db.getByRef.Query(refType, refID, boolInt(includeArchived), normLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return db.scanAll(rows)
}

// GetWebhooksByTrigger returns the webhooks on the given resource which
// listen for the trigger. The trigger list is matched in Go, there is no
// string concatenation both sqlite and mysql understand (mysql reads || as
// logical OR).
func (db *WebhookDB) GetWebhooksByTrigger(trigger, refType string, refID int) ([]core.DBWebhook, error) {
	all, err := db.GetWebhooks(refType, refID, true, -1, 0)
	if err != nil {
		return nil, err
	}
	var matched = []core.DBWebhook{}
	for _, w := range all {
		for _, t := range w.Triggers() {
			if t == trigger {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, nil
}

func (db *WebhookDB) InsertWebhook(publicID, kind, name string, triggers []string, url, authToken, token, refType string, refID int) (core.DBWebhook, error) {
	if _, err := db.insertWebhook.Exec(publicID, kind, name, strings.Join(triggers, ","), url, authToken, token, refType, refID, time.Now().Unix()); err != nil {
		return nil, err
	}
	return db.GetWebhook(publicID)
}

func (db *WebhookDB) SetWebhookArchived(w core.DBWebhook, archived bool) error {
	_, err := db.setArchived.Exec(archived, w.ID())
	if err == nil {
		w.(*webhook).archived = archived
	}
	return err
}

func (db *WebhookDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
