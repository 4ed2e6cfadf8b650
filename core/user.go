package core

import "errors"

type DBUser interface {
	ID() int
	Name() string // login name, can be an email address
	FirstName() string
	LastName() string
	Email() string
	Admin() bool      // system-wide admin
	Provider() string // "local" or "ldap"
	Archived() bool
}

type UserDB interface {
	ChangePassword(u DBUser, old, new string) error
	DeleteUser(u DBUser) error
	GetUser(id int) (DBUser, error)
	GetUserByName(name string) (DBUser, error)
	GetAllUsers(includeArchived bool, limit, offset int) ([]DBUser, error)
	InsertUser(name, firstName, lastName, email, provider string, admin bool) (DBUser, error)
	LoginUser(name, password string) (DBUser, error)
	SetAdmin(u DBUser, admin bool) error
	SetPassword(u DBUser, password string) error
	SetUserArchived(u DBUser, archived bool) error
	SetUserDetails(u DBUser, firstName, lastName, email string) error
	IsNotFound(err error) bool
	Writeable() bool
}

// CreateUser shadows UserDB.InsertUser. Only system admins may create users.
func (c *CoreDB) CreateUser(actor DBUser, name, firstName, lastName, email, provider string, admin bool) (DBUser, error) {
	if err := c.RequireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := CheckSlugOrEmail(name)
	if err != nil {
		return nil, err
	}
	u, err := c.UserDB.InsertUser(name, firstName, lastName, email, provider, admin)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Trigger: TriggerUserCreated, Payload: map[string]interface{}{"username": u.Name()}})
	return u, nil
}

// SetPassword shadows UserDB.SetPassword.
func (c *CoreDB) SetPassword(u DBUser, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return c.UserDB.SetPassword(u, password)
}

// DeleteUser shadows UserDB.DeleteUser. Deleting a user drops their org and
// project roles, the stores cascade on the foreign key.
func (c *CoreDB) DeleteUser(actor, u DBUser) error {
	if err := c.RequireAdmin(actor); err != nil {
		return err
	}
	if actor.ID() == u.ID() {
		return errors.New("can't delete yourself")
	}
	if err := c.UserDB.DeleteUser(u); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerUserDeleted, Payload: map[string]interface{}{"username": u.Name()}})
	return nil
}
