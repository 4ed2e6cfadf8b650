package sqldb

import (
	"database/sql"
	"time"

	"github.com/modelbee/mbee/core"
)

type org struct {
	id        int
	slug      string
	name      string
	tsCreated int64
	archived  bool
}

func (o *org) ID() int          { return o.id }
func (o *org) Slug() string     { return o.slug }
func (o *org) Name() string     { return o.name }
func (o *org) TsCreated() int64 { return o.tsCreated }
func (o *org) Archived() bool   { return o.archived }

type OrgDB struct {
	*sql.DB
	countProjects *sql.Stmt
	deleteOrg     *sql.Stmt
	deleteRoles   *sql.Stmt
	getAll        *sql.Stmt
	getOrg        *sql.Stmt
	getOrgBySlug  *sql.Stmt
	getRoles      *sql.Stmt
	insertOrg     *sql.Stmt
	removeRole    *sql.Stmt
	setArchived   *sql.Stmt
	setName       *sql.Stmt
	setRole       *sql.Stmt
}

func NewOrgDB(db *sql.DB) *OrgDB {

	createSchema(db)

	var orgDB = &OrgDB{}
	orgDB.DB = db
	orgDB.countProjects = mustPrepare(db, "SELECT COUNT(1) FROM project WHERE orgId = ?")
	orgDB.deleteOrg = mustPrepare(db, "DELETE FROM org WHERE id = ?")
	orgDB.deleteRoles = mustPrepare(db, "DELETE FROM org_role WHERE orgId = ?")
	orgDB.getAll = mustPrepare(db, "SELECT id, slug, name, ts_created, archived FROM org WHERE archived <= ? ORDER BY slug LIMIT ? OFFSET ?")
	orgDB.getOrg = mustPrepare(db, "SELECT id, slug, name, ts_created, archived FROM org WHERE id = ? LIMIT 1")
	orgDB.getOrgBySlug = mustPrepare(db, "SELECT id, slug, name, ts_created, archived FROM org WHERE slug = ? LIMIT 1")
	orgDB.getRoles = mustPrepare(db, "SELECT userId, role FROM org_role WHERE orgId = ?")
	orgDB.insertOrg = mustPrepare(db, "INSERT INTO org (slug, name, ts_created, archived) VALUES (?, ?, ?, 0)")
	orgDB.removeRole = mustPrepare(db, "DELETE FROM org_role WHERE orgId = ? AND userId = ?")
	orgDB.setArchived = mustPrepare(db, "UPDATE org SET archived = ? WHERE id = ?")
	orgDB.setName = mustPrepare(db, "UPDATE org SET name = ? WHERE id = ?")
	orgDB.setRole = mustPrepare(db, "REPLACE INTO org_role (orgId, userId, role) VALUES (?, ?, ?)")
	return orgDB
}

func (db *OrgDB) CountOrgProjects(orgID int) (int, error) {
	var count int
	return count, db.countProjects.QueryRow(orgID).Scan(&count)
}

func (db *OrgDB) DeleteOrg(o core.DBOrg) error {
	if _, err := db.deleteRoles.Exec(o.ID()); err != nil {
		return err
	}
	_, err := db.deleteOrg.Exec(o.ID())
	return err
}

func (db *OrgDB) GetAllOrgs(includeArchived bool, limit, offset int) ([]core.DBOrg, error) {
	var maxArchived = 0
	if includeArchived {
		maxArchived = 1
	}
	rows, err := db.getAll.Query(maxArchived, normLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBOrg{}
	for rows.Next() {
		var o = &org{}
		if err := rows.Scan(&o.id, &o.slug, &o.name, &o.tsCreated, &o.archived); err != nil {
			return nil, err
		}
		all = append(all, o)
	}
	return all, rows.Err()
}

func (db *OrgDB) GetOrg(id int) (core.DBOrg, error) {
	var o = &org{}
	return o, db.getOrg.QueryRow(id).Scan(&o.id, &o.slug, &o.name, &o.tsCreated, &o.archived)
}

func (db *OrgDB) GetOrgBySlug(slug string) (core.DBOrg, error) {
	var o = &org{}
	return o, db.getOrgBySlug.QueryRow(slug).Scan(&o.id, &o.slug, &o.name, &o.tsCreated, &o.archived)
}

func (db *OrgDB) GetOrgRoles(orgID int) (map[int]core.Role, error) {
	rows, err := db.getRoles.Query(orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles = map[int]core.Role{}
	for rows.Next() {
		var userID, role int
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, err
		}
		roles[userID] = core.Role(role)
	}
	return roles, rows.Err()
}

func (db *OrgDB) InsertOrg(slug, name string) (core.DBOrg, error) {
	res, err := db.insertOrg.Exec(slug, name, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetOrg(int(id))
}

func (db *OrgDB) SetOrgArchived(o core.DBOrg, archived bool) error {
	_, err := db.setArchived.Exec(archived, o.ID())
	if err == nil {
		o.(*org).archived = archived
	}
	return err
}

func (db *OrgDB) SetOrgName(o core.DBOrg, name string) error {
	_, err := db.setName.Exec(name, o.ID())
	if err == nil {
		o.(*org).name = name
	}
	return err
}

func (db *OrgDB) SetOrgRole(orgID, userID int, role core.Role) error {
	if role == core.NoRole {
		_, err := db.removeRole.Exec(orgID, userID)
		return err
	}
	_, err := db.setRole.Exec(orgID, userID, int(role))
	return err
}

func (db *OrgDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
