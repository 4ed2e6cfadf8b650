package sqldb

import (
	"database/sql"
	"time"

	"github.com/modelbee/mbee/core"
)

type branch struct {
	id        int
	projectID int
	slug      string
	name      string
	source    string
	tag       bool
	tsCreated int64
	archived  bool
}

func (b *branch) ID() int            { return b.id }
func (b *branch) ProjectID() int     { return b.projectID }
func (b *branch) Slug() string       { return b.slug }
func (b *branch) Name() string       { return b.name }
func (b *branch) SourceSlug() string { return b.source }
func (b *branch) Tag() bool          { return b.tag }
func (b *branch) TsCreated() int64   { return b.tsCreated }
func (b *branch) Archived() bool     { return b.archived }

type BranchDB struct {
	*sql.DB
	deleteBranch   *sql.Stmt
	deleteElements *sql.Stmt
	deleteVersions *sql.Stmt
	getBranch      *sql.Stmt
	getBySlug      *sql.Stmt
	getByProject   *sql.Stmt
	insertBranch   *sql.Stmt
	setArchived    *sql.Stmt
	setName        *sql.Stmt
}

func NewBranchDB(db *sql.DB) *BranchDB {

	createSchema(db)

	var branchDB = &BranchDB{}
	branchDB.DB = db
	branchDB.deleteBranch = mustPrepare(db, "DELETE FROM branch WHERE id = ?")
	branchDB.deleteElements = mustPrepare(db, "DELETE FROM element WHERE branchId = ?")
	branchDB.deleteVersions = mustPrepare(db, "DELETE FROM element_version WHERE elementId IN (SELECT id FROM element WHERE branchId = ?)")
	branchDB.getBranch = mustPrepare(db, "SELECT id, projectId, slug, name, source, tag, ts_created, archived FROM branch WHERE id = ? LIMIT 1")
	branchDB.getBySlug = mustPrepare(db, "SELECT id, projectId, slug, name, source, tag, ts_created, archived FROM branch WHERE projectId = ? AND slug = ? LIMIT 1")
	branchDB.getByProject = mustPrepare(db, "SELECT id, projectId, slug, name, source, tag, ts_created, archived FROM branch WHERE projectId = ? AND archived <= ? ORDER BY slug LIMIT ? OFFSET ?")
	branchDB.insertBranch = mustPrepare(db, "INSERT INTO branch (projectId, slug, name, source, tag, ts_created, archived) VALUES (?, ?, ?, ?, ?, ?, 0)")
	branchDB.setArchived = mustPrepare(db, "UPDATE branch SET archived = ? WHERE id = ?")
	branchDB.setName = mustPrepare(db, "UPDATE branch SET name = ? WHERE id = ?")
	return branchDB
}

// DeleteBranch removes the branch together with its elements and their
// versions. Version rows must go first, they are found through the element
// rows.
func (db *BranchDB) DeleteBranch(b core.DBBranch) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Stmt(db.deleteVersions).Exec(b.ID()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Stmt(db.deleteElements).Exec(b.ID()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Stmt(db.deleteBranch).Exec(b.ID()); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (db *BranchDB) GetBranch(id int) (core.DBBranch, error) {
	var b = &branch{}
	return b, db.getBranch.QueryRow(id).Scan(&b.id, &b.projectID, &b.slug, &b.name, &b.source, &b.tag, &b.tsCreated, &b.archived)
}

func (db *BranchDB) GetBranchBySlug(projectID int, slug string) (core.DBBranch, error) {
	var b = &branch{}
	return b, db.getBySlug.QueryRow(projectID, slug).Scan(&b.id, &b.projectID, &b.slug, &b.name, &b.source, &b.tag, &b.tsCreated, &b.archived)
}

func (db *BranchDB) GetBranches(projectID int, includeArchived bool, limit, offset int) ([]core.DBBranch, error) {
	rows, err := db.getByProject.Query(projectID, boolInt(includeArchived), normLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBBranch{}
	for rows.Next() {
		var b = &branch{}
		if err := rows.Scan(&b.id, &b.projectID, &b.slug, &b.name, &b.source, &b.tag, &b.tsCreated, &b.archived); err != nil {
			return nil, err
		}
		all = append(all, b)
	}
	return all, rows.Err()
}

func (db *BranchDB) InsertBranch(projectID int, slug, name, source string, tag bool) (core.DBBranch, error) {
	res, err := db.insertBranch.Exec(projectID, slug, name, source, tag, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetBranch(int(id))
}

func (db *BranchDB) SetBranchArchived(b core.DBBranch, archived bool) error {
	_, err := db.setArchived.Exec(archived, b.ID())
	if err == nil {
		b.(*branch).archived = archived
	}
	return err
}

func (db *BranchDB) SetBranchName(b core.DBBranch, name string) error {
	_, err := db.setName.Exec(name, b.ID())
	if err == nil {
		b.(*branch).name = name
	}
	return err
}

func (db *BranchDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
