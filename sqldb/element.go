package sqldb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/modelbee/mbee/core"
)

type elementVersion struct {
	versionNo int
	note      string
	authorID  int
	tsChanged int64
	content   string
}

func (v *elementVersion) VersionNo() int   { return v.versionNo }
func (v *elementVersion) Note() string     { return v.note }
func (v *elementVersion) AuthorID() int    { return v.authorID }
func (v *elementVersion) TsChanged() int64 { return v.tsChanged }
func (v *elementVersion) Content() string  { return v.content }

type element struct {
	id            int
	branchID      int
	slug          string
	parentSlug    string
	kind          string
	name          string
	documentation string
	source        string
	target        string
	tsCreated     int64
	archived      bool
	maxVersionNo  int
}

func (e *element) ID() int               { return e.id }
func (e *element) BranchID() int         { return e.branchID }
func (e *element) Slug() string          { return e.slug }
func (e *element) ParentSlug() string    { return e.parentSlug }
func (e *element) Kind() string          { return e.kind }
func (e *element) Name() string          { return e.name }
func (e *element) Documentation() string { return e.documentation }
func (e *element) SourceSlug() string    { return e.source }
func (e *element) TargetSlug() string    { return e.target }
func (e *element) TsCreated() int64      { return e.tsCreated }
func (e *element) Archived() bool        { return e.archived }
func (e *element) MaxVersionNo() int     { return e.maxVersionNo }

// versionContent is the JSON snapshot stored with each version.
type versionContent struct {
	Name          string `json:"name"`
	Documentation string `json:"documentation"`
	Source        string `json:"source,omitempty"`
	Target        string `json:"target,omitempty"`
}

const elementCols = "id, branchId, slug, parentSlug, kind, name, documentation, source, target, ts_created, archived, maxVersion"

type ElementDB struct {
	*sql.DB
	countChildren  *sql.Stmt
	countElements  *sql.Stmt
	deleteElement  *sql.Stmt
	deleteVersions *sql.Stmt
	getByBranch    *sql.Stmt
	getChildren    *sql.Stmt
	getElement     *sql.Stmt
	getVersion     *sql.Stmt
	insertElement  *sql.Stmt
	insertVersion  *sql.Stmt
	search         *sql.Stmt
	setArchived    *sql.Stmt
	setFields      *sql.Stmt
	setMaxVersion  *sql.Stmt
	setParent      *sql.Stmt
	setSearchText  *sql.Stmt
	versions       *sql.Stmt
}

func NewElementDB(db *sql.DB) *ElementDB {

	createSchema(db)

	var elementDB = &ElementDB{}
	elementDB.DB = db
	elementDB.countChildren = mustPrepare(db, "SELECT COUNT(1) FROM element WHERE branchId = ? AND parentSlug = ?")
	elementDB.countElements = mustPrepare(db, "SELECT COUNT(1) FROM element WHERE branchId = ?")
	elementDB.deleteElement = mustPrepare(db, "DELETE FROM element WHERE id = ?")
	elementDB.deleteVersions = mustPrepare(db, "DELETE FROM element_version WHERE elementId = ?")
	elementDB.getByBranch = mustPrepare(db, "SELECT "+elementCols+" FROM element WHERE branchId = ? AND archived <= ? ORDER BY slug LIMIT ? OFFSET ?")
	elementDB.getChildren = mustPrepare(db, "SELECT "+elementCols+" FROM element WHERE branchId = ? AND parentSlug = ? AND archived <= ? ORDER BY slug LIMIT ? OFFSET ?")
	elementDB.getElement = mustPrepare(db, "SELECT "+elementCols+" FROM element WHERE branchId = ? AND slug = ? LIMIT 1")
	elementDB.getVersion = mustPrepare(db, "SELECT versionNr, versionNote, authorId, content, ts_changed FROM element_version WHERE elementId = ? AND versionNr = ? LIMIT 1")
	elementDB.insertElement = mustPrepare(db, "INSERT INTO element (branchId, slug, parentSlug, kind, name, documentation, source, target, search_text, ts_created, archived, maxVersion) VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, 0, 0)")
	elementDB.insertVersion = mustPrepare(db, "INSERT INTO element_version (elementId, versionNr, versionNote, authorId, content, ts_changed) VALUES (?, ?, ?, ?, ?, ?)")
	elementDB.search = mustPrepare(db, "SELECT "+elementCols+" FROM element WHERE branchId = ? AND archived <= ? AND (slug LIKE ? ESCAPE '!' OR lower(name) LIKE ? ESCAPE '!' OR lower(search_text) LIKE ? ESCAPE '!') ORDER BY slug LIMIT ? OFFSET ?")
	elementDB.setArchived = mustPrepare(db, "UPDATE element SET archived = ? WHERE id = ?")
	elementDB.setFields = mustPrepare(db, "UPDATE element SET name = ?, documentation = ?, source = ?, target = ? WHERE id = ?")
	elementDB.setMaxVersion = mustPrepare(db, "UPDATE element SET maxVersion = ? WHERE id = ?")
	elementDB.setParent = mustPrepare(db, "UPDATE element SET parentSlug = ? WHERE id = ?")
	elementDB.setSearchText = mustPrepare(db, "UPDATE element SET search_text = ? WHERE id = ?")
	elementDB.versions = mustPrepare(db, "SELECT versionNr, versionNote, authorId, content, ts_changed FROM element_version WHERE elementId = ? ORDER BY versionNr DESC")
	return elementDB
}

// AddElementVersion stores the new field values on the element row and
// appends a version row with a JSON snapshot of them.
func (db *ElementDB) AddElementVersion(e core.DBElement, name, documentation, source, target, note string, authorID int) error {

	content, err := json.Marshal(versionContent{
		Name:          name,
		Documentation: documentation,
		Source:        source,
		Target:        target,
	})
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	// we assume that e.maxVersionNo is up to date

	var el = e.(*element)
	var versionNo = el.maxVersionNo + 1

	if _, err := tx.Stmt(db.setMaxVersion).Exec(versionNo, e.ID()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Stmt(db.setFields).Exec(name, documentation, source, target, e.ID()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Stmt(db.insertVersion).Exec(e.ID(), versionNo, note, authorID, string(content), time.Now().Unix()); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	el.maxVersionNo = versionNo
	el.name = name
	el.documentation = documentation
	el.source = source
	el.target = target
	return nil
}

func (db *ElementDB) CountElements(branchID int) (int, error) {
	var count int
	return count, db.countElements.QueryRow(branchID).Scan(&count)
}

func (db *ElementDB) DeleteElement(e core.DBElement) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	var childrenCount int
	if err := tx.Stmt(db.countChildren).QueryRow(e.BranchID(), e.Slug()).Scan(&childrenCount); err != nil {
		tx.Rollback()
		return err
	}
	if childrenCount > 0 {
		tx.Rollback()
		return errors.New("can't delete element with child elements")
	}

	if _, err := tx.Stmt(db.deleteVersions).Exec(e.ID()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Stmt(db.deleteElement).Exec(e.ID()); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (db *ElementDB) ElementVersions(elementID int) ([]core.DBElementVersion, error) {
	rows, err := db.versions.Query(elementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBElementVersion{}
	for rows.Next() {
		var v = &elementVersion{}
		if err := rows.Scan(&v.versionNo, &v.note, &v.authorID, &v.content, &v.tsChanged); err != nil {
			return nil, err
		}
		all = append(all, v)
	}
	return all, rows.Err()
}

func (db *ElementDB) getElements(stmt *sql.Stmt, args ...interface{}) ([]core.DBElement, error) {
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBElement{}
	for rows.Next() {
		var e = &element{}
		if err := rows.Scan(&e.id, &e.branchID, &e.slug, &e.parentSlug, &e.kind, &e.name, &e.documentation, &e.source, &e.target, &e.tsCreated, &e.archived, &e.maxVersionNo); err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, rows.Err()
}

func (db *ElementDB) GetChildren(branchID int, parentSlug string, includeArchived bool, limit, offset int) ([]core.DBElement, error) {
	return db.getElements(db.getChildren, branchID, parentSlug, boolInt(includeArchived), normLimit(limit), offset)
}

func (db *ElementDB) GetElement(branchID int, slug string) (core.DBElement, error) {
	var e = &element{}
	return e, db.getElement.QueryRow(branchID, slug).Scan(&e.id, &e.branchID, &e.slug, &e.parentSlug, &e.kind, &e.name, &e.documentation, &e.source, &e.target, &e.tsCreated, &e.archived, &e.maxVersionNo)
}

func (db *ElementDB) GetElementVersion(elementID, versionNo int) (core.DBElementVersion, error) {
	var v = &elementVersion{}
	return v, db.getVersion.QueryRow(elementID, versionNo).Scan(&v.versionNo, &v.note, &v.authorID, &v.content, &v.tsChanged)
}

func (db *ElementDB) GetElements(branchID int, includeArchived bool, limit, offset int) ([]core.DBElement, error) {
	return db.getElements(db.getByBranch, branchID, boolInt(includeArchived), normLimit(limit), offset)
}

func (db *ElementDB) InsertElement(branchID int, slug, parentSlug, kind, name, documentation, source, target string) (core.DBElement, error) {
	if _, err := db.insertElement.Exec(branchID, slug, parentSlug, kind, name, documentation, source, target, time.Now().Unix()); err != nil {
		return nil, err
	}
	return db.GetElement(branchID, slug)
}

// likeEscaper quotes the LIKE wildcards, the query string matches literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (db *ElementDB) SearchElements(branchID int, q string, includeArchived bool, limit, offset int) ([]core.DBElement, error) {
	var pattern = "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
	return db.getElements(db.search, branchID, boolInt(includeArchived), pattern, pattern, pattern, normLimit(limit), offset)
}

func (db *ElementDB) SetElementArchived(e core.DBElement, archived bool) error {
	_, err := db.setArchived.Exec(archived, e.ID())
	if err == nil {
		e.(*element).archived = archived
	}
	return err
}

func (db *ElementDB) SetElementParent(e core.DBElement, parentSlug string) error {
	_, err := db.setParent.Exec(parentSlug, e.ID())
	if err == nil {
		e.(*element).parentSlug = parentSlug
	}
	return err
}

func (db *ElementDB) SetElementSearchText(e core.DBElement, text string) error {
	_, err := db.setSearchText.Exec(text, e.ID())
	return err
}

func (db *ElementDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
