package sqldb

import (
	"database/sql"
	"time"

	"github.com/modelbee/mbee/core"
)

type project struct {
	id         int
	orgID      int
	slug       string
	name       string
	visibility string
	tsCreated  int64
	archived   bool
}

func (p *project) ID() int            { return p.id }
func (p *project) OrgID() int         { return p.orgID }
func (p *project) Slug() string       { return p.slug }
func (p *project) Name() string       { return p.name }
func (p *project) Visibility() string { return p.visibility }
func (p *project) TsCreated() int64   { return p.tsCreated }
func (p *project) Archived() bool     { return p.archived }

type ProjectDB struct {
	*sql.DB
	countBranches *sql.Stmt
	deleteProject *sql.Stmt
	deleteRoles   *sql.Stmt
	getAll        *sql.Stmt
	getByOrg      *sql.Stmt
	getProject    *sql.Stmt
	getBySlug     *sql.Stmt
	getRoles      *sql.Stmt
	insertProject *sql.Stmt
	removeRole    *sql.Stmt
	setArchived   *sql.Stmt
	setName       *sql.Stmt
	setRole       *sql.Stmt
	setVisibility *sql.Stmt
}

func NewProjectDB(db *sql.DB) *ProjectDB {

	createSchema(db)

	var projectDB = &ProjectDB{}
	projectDB.DB = db
	projectDB.countBranches = mustPrepare(db, "SELECT COUNT(1) FROM branch WHERE projectId = ?")
	projectDB.deleteProject = mustPrepare(db, "DELETE FROM project WHERE id = ?")
	projectDB.deleteRoles = mustPrepare(db, "DELETE FROM project_role WHERE projectId = ?")
	projectDB.getAll = mustPrepare(db, "SELECT id, orgId, slug, name, visibility, ts_created, archived FROM project WHERE archived <= ? ORDER BY orgId, slug LIMIT ? OFFSET ?")
	projectDB.getByOrg = mustPrepare(db, "SELECT id, orgId, slug, name, visibility, ts_created, archived FROM project WHERE orgId = ? AND archived <= ? ORDER BY slug LIMIT ? OFFSET ?")
	projectDB.getProject = mustPrepare(db, "SELECT id, orgId, slug, name, visibility, ts_created, archived FROM project WHERE id = ? LIMIT 1")
	projectDB.getBySlug = mustPrepare(db, "SELECT id, orgId, slug, name, visibility, ts_created, archived FROM project WHERE orgId = ? AND slug = ? LIMIT 1")
	projectDB.getRoles = mustPrepare(db, "SELECT userId, role FROM project_role WHERE projectId = ?")
	projectDB.insertProject = mustPrepare(db, "INSERT INTO project (orgId, slug, name, visibility, ts_created, archived) VALUES (?, ?, ?, ?, ?, 0)")
	projectDB.removeRole = mustPrepare(db, "DELETE FROM project_role WHERE projectId = ? AND userId = ?")
	projectDB.setArchived = mustPrepare(db, "UPDATE project SET archived = ? WHERE id = ?")
	projectDB.setName = mustPrepare(db, "UPDATE project SET name = ? WHERE id = ?")
	projectDB.setRole = mustPrepare(db, "REPLACE INTO project_role (projectId, userId, role) VALUES (?, ?, ?)")
	projectDB.setVisibility = mustPrepare(db, "UPDATE project SET visibility = ? WHERE id = ?")
	return projectDB
}

func (db *ProjectDB) CountProjectBranches(projectID int) (int, error) {
	var count int
	return count, db.countBranches.QueryRow(projectID).Scan(&count)
}

func (db *ProjectDB) DeleteProject(p core.DBProject) error {
	if _, err := db.deleteRoles.Exec(p.ID()); err != nil {
		return err
	}
	_, err := db.deleteProject.Exec(p.ID())
	return err
}

func (db *ProjectDB) getProjects(stmt *sql.Stmt, args ...interface{}) ([]core.DBProject, error) {
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBProject{}
	for rows.Next() {
		var p = &project{}
		if err := rows.Scan(&p.id, &p.orgID, &p.slug, &p.name, &p.visibility, &p.tsCreated, &p.archived); err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return all, rows.Err()
}

func (db *ProjectDB) GetAllProjects(includeArchived bool, limit, offset int) ([]core.DBProject, error) {
	return db.getProjects(db.getAll, boolInt(includeArchived), normLimit(limit), offset)
}

func (db *ProjectDB) GetProjects(orgID int, includeArchived bool, limit, offset int) ([]core.DBProject, error) {
	return db.getProjects(db.getByOrg, orgID, boolInt(includeArchived), normLimit(limit), offset)
}

func (db *ProjectDB) GetProject(id int) (core.DBProject, error) {
	var p = &project{}
	return p, db.getProject.QueryRow(id).Scan(&p.id, &p.orgID, &p.slug, &p.name, &p.visibility, &p.tsCreated, &p.archived)
}

func (db *ProjectDB) GetProjectBySlug(orgID int, slug string) (core.DBProject, error) {
	var p = &project{}
	return p, db.getBySlug.QueryRow(orgID, slug).Scan(&p.id, &p.orgID, &p.slug, &p.name, &p.visibility, &p.tsCreated, &p.archived)
}

func (db *ProjectDB) GetProjectRoles(projectID int) (map[int]core.Role, error) {
	rows, err := db.getRoles.Query(projectID)
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

func (db *ProjectDB) InsertProject(orgID int, slug, name, visibility string) (core.DBProject, error) {
	res, err := db.insertProject.Exec(orgID, slug, name, visibility, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetProject(int(id))
}

func (db *ProjectDB) SetProjectArchived(p core.DBProject, archived bool) error {
	_, err := db.setArchived.Exec(archived, p.ID())
	if err == nil {
		p.(*project).archived = archived
	}
	return err
}

func (db *ProjectDB) SetProjectName(p core.DBProject, name string) error {
	_, err := db.setName.Exec(name, p.ID())
	if err == nil {
		p.(*project).name = name
	}
	return err
}

func (db *ProjectDB) SetProjectRole(projectID, userID int, role core.Role) error {
	if role == core.NoRole {
		_, err := db.removeRole.Exec(projectID, userID)
		return err
	}
	_, err := db.setRole.Exec(projectID, userID, int(role))
	return err
}

func (db *ProjectDB) SetProjectVisibility(p core.DBProject, visibility string) error {
	_, err := db.setVisibility.Exec(visibility, p.ID())
	if err == nil {
		p.(*project).visibility = visibility
	}
	return err
}

func (db *ProjectDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
