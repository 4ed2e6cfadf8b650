package sqldb

import (
	"database/sql"
	"errors"

	"github.com/modelbee/mbee/core"
	"golang.org/x/crypto/bcrypt"
)

var ErrAuth = core.ErrAuth

type user struct {
	id        int
	name      string
	firstName string
	lastName  string
	email     string
	admin     bool
	provider  string
	archived  bool
	pass      string // bcrypt hash, empty for ldap users
}

func (u *user) ID() int           { return u.id }
func (u *user) Name() string      { return u.name }
func (u *user) FirstName() string { return u.firstName }
func (u *user) LastName() string  { return u.lastName }
func (u *user) Email() string     { return u.email }
func (u *user) Admin() bool       { return u.admin }
func (u *user) Provider() string  { return u.provider }
func (u *user) Archived() bool    { return u.archived }

const userCols = "id, name, firstName, lastName, email, admin, provider, archived"

type UserDB struct {
	*sql.DB
	deleteUser      *sql.Stmt
	deleteOrgRoles  *sql.Stmt
	deleteProjRoles *sql.Stmt
	getAll          *sql.Stmt
	getUser         *sql.Stmt
	getByName       *sql.Stmt
	insertUser      *sql.Stmt
	login           *sql.Stmt
	setAdmin        *sql.Stmt
	setArchived     *sql.Stmt
	setDetails      *sql.Stmt
	setPassword     *sql.Stmt
}

func NewUserDB(db *sql.DB) *UserDB {

	createSchema(db)

	var userDB = &UserDB{}
	userDB.DB = db
	userDB.deleteUser = mustPrepare(db, "DELETE FROM usr WHERE id = ?")
	userDB.deleteOrgRoles = mustPrepare(db, "DELETE FROM org_role WHERE userId = ?")
	userDB.deleteProjRoles = mustPrepare(db, "DELETE FROM project_role WHERE userId = ?")
	userDB.getAll = mustPrepare(db, "SELECT "+userCols+" FROM usr WHERE archived <= ? ORDER BY name LIMIT ? OFFSET ?")
	userDB.getUser = mustPrepare(db, "SELECT "+userCols+" FROM usr WHERE id = ? LIMIT 1")
	userDB.getByName = mustPrepare(db, "SELECT "+userCols+" FROM usr WHERE name = ? LIMIT 1")
	userDB.insertUser = mustPrepare(db, "INSERT INTO usr (name, firstName, lastName, email, admin, provider) VALUES (?, ?, ?, ?, ?, ?)") // empty password field is safe because no bcrypt hash equals it
	userDB.login = mustPrepare(db, "SELECT id, password FROM usr WHERE name = ? AND provider = 'local' AND archived = 0")
	userDB.setAdmin = mustPrepare(db, "UPDATE usr SET admin = ? WHERE id = ?")
	userDB.setArchived = mustPrepare(db, "UPDATE usr SET archived = ? WHERE id = ?")
	userDB.setDetails = mustPrepare(db, "UPDATE usr SET firstName = ?, lastName = ?, email = ? WHERE id = ?")
	userDB.setPassword = mustPrepare(db, "UPDATE usr SET password = ? WHERE id = ?")
	return userDB
}

func (db *UserDB) Writeable() bool {
	return true
}

func (db *UserDB) ChangePassword(u core.DBUser, old, new string) error {
	var pass string
	var id int
	if err := db.login.QueryRow(u.Name()).Scan(&id, &pass); err != nil {
		if isNotFound(err) {
			return ErrAuth
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(pass), []byte(old)) != nil {
		return ErrAuth
	}
	return db.SetPassword(u, new)
}

func (db *UserDB) DeleteUser(u core.DBUser) error {
	if _, err := db.deleteOrgRoles.Exec(u.ID()); err != nil {
		return err
	}
	if _, err := db.deleteProjRoles.Exec(u.ID()); err != nil {
		return err
	}
	_, err := db.deleteUser.Exec(u.ID())
	return err
}

func (db *UserDB) scanOne(row *sql.Row) (core.DBUser, error) {
	var u = &user{}
	return u, row.Scan(&u.id, &u.name, &u.firstName, &u.lastName, &u.email, &u.admin, &u.provider, &u.archived)
}

func (db *UserDB) GetUser(id int) (core.DBUser, error) {
	return db.scanOne(db.getUser.QueryRow(id))
}

func (db *UserDB) GetUserByName(name string) (core.DBUser, error) {
	return db.scanOne(db.getByName.QueryRow(name))
}

func (db *UserDB) GetAllUsers(includeArchived bool, limit, offset int) ([]core.DBUser, error) {
	rows, err := db.getAll.Query(boolInt(includeArchived), normLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []core.DBUser{}
	for rows.Next() {
		var u = &user{}
		if err := rows.Scan(&u.id, &u.name, &u.firstName, &u.lastName, &u.email, &u.admin, &u.provider, &u.archived); err != nil {
			return nil, err
		}
		all = append(all, u)
	}
	return all, rows.Err()
}

func (db *UserDB) InsertUser(name, firstName, lastName, email, provider string, admin bool) (core.DBUser, error) {
	if provider == "" {
		provider = "local"
	}
	if _, err := db.insertUser.Exec(name, firstName, lastName, email, admin, provider); err != nil {
		return nil, err
	}
	return db.GetUserByName(name)
}

// LoginUser verifies a local password. LDAP users can't log in here, their
// password never touches this database.
func (db *UserDB) LoginUser(name, password string) (core.DBUser, error) {
	var id int
	var pass string
	err := db.login.QueryRow(name).Scan(&id, &pass)
	if isNotFound(err) {
		return nil, ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(pass), []byte(password)) != nil {
		return nil, ErrAuth // wrong password
	}
	return db.GetUser(id)
}

func (db *UserDB) SetAdmin(u core.DBUser, admin bool) error {
	_, err := db.setAdmin.Exec(admin, u.ID())
	if err == nil {
		u.(*user).admin = admin
	}
	return err
}

func (db *UserDB) SetPassword(u core.DBUser, password string) error {
	if password == "" {
		return errors.New("no password given")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.setPassword.Exec(string(hash), u.ID())
	return err
}

func (db *UserDB) SetUserArchived(u core.DBUser, archived bool) error {
	_, err := db.setArchived.Exec(archived, u.ID())
	if err == nil {
		u.(*user).archived = archived
	}
	return err
}

func (db *UserDB) SetUserDetails(u core.DBUser, firstName, lastName, email string) error {
	_, err := db.setDetails.Exec(firstName, lastName, email, u.ID())
	if err == nil {
		u.(*user).firstName = firstName
		u.(*user).lastName = lastName
		u.(*user).email = email
	}
	return err
}

func (db *UserDB) IsNotFound(err error) bool {
	return isNotFound(err)
}
