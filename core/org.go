package core

import (
	"errors"
	"fmt"
)

type DBOrg interface {
	ID() int
	Slug() string
	Name() string
	TsCreated() int64
	Archived() bool
}

type OrgDB interface {
	CountOrgProjects(orgID int) (int, error)
	DeleteOrg(o DBOrg) error
	GetAllOrgs(includeArchived bool, limit, offset int) ([]DBOrg, error)
	GetOrg(id int) (DBOrg, error)
	GetOrgBySlug(slug string) (DBOrg, error)
	GetOrgRoles(orgID int) (map[int]Role, error) // user id -> role
	InsertOrg(slug, name string) (DBOrg, error)
	SetOrgArchived(o DBOrg, archived bool) error
	SetOrgName(o DBOrg, name string) error
	SetOrgRole(orgID, userID int, role Role) error // NoRole removes the entry
	IsNotFound(err error) bool
}

// CreateOrg shadows OrgDB.InsertOrg. Only system admins may create orgs.
// The creator is given the admin role on the new org.
func (c *CoreDB) CreateOrg(actor DBUser, slug, name string) (DBOrg, error) {
	if err := c.RequireAdmin(actor); err != nil {
		return nil, err
	}
	slug, err := CheckSlug(slug)
	if err != nil {
		return nil, err
	}
	o, err := c.OrgDB.InsertOrg(slug, name)
	if err != nil {
		return nil, err
	}
	if err := c.OrgDB.SetOrgRole(o.ID(), actor.ID(), Admin); err != nil {
		return nil, err
	}
	c.emit(Event{Trigger: TriggerOrgCreated, OrgID: o.ID(), Payload: map[string]interface{}{"org": o.Slug()}})
	return o, nil
}

// UpdateOrg renames an org.
func (c *CoreDB) UpdateOrg(actor DBUser, o DBOrg, name string) error {
	if err := c.RequireOrgRole(actor, o, Admin); err != nil {
		return err
	}
	if o.Archived() {
		return ErrArchived
	}
	if err := c.OrgDB.SetOrgName(o, name); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerOrgUpdated, OrgID: o.ID(), Payload: map[string]interface{}{"org": o.Slug()}})
	return nil
}

// ArchiveOrg archives or unarchives an org. Archiving hides the org and all
// resources below it from reads without includeArchived, and blocks writes.
func (c *CoreDB) ArchiveOrg(actor DBUser, o DBOrg, archived bool) error {
	if err := c.RequireOrgRole(actor, o, Admin); err != nil {
		return err
	}
	if o.Slug() == DefaultOrgSlug {
		return errors.New("can't archive the default org")
	}
	if err := c.OrgDB.SetOrgArchived(o, archived); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerOrgUpdated, OrgID: o.ID(), Payload: map[string]interface{}{"org": o.Slug(), "archived": archived}})
	return nil
}

// DeleteOrg hard-deletes an empty org. An org which still owns projects
// can't be deleted, same as a node with child nodes.
func (c *CoreDB) DeleteOrg(actor DBUser, o DBOrg) error {
	if err := c.RequireAdmin(actor); err != nil {
		return err
	}
	if o.Slug() == DefaultOrgSlug {
		return errors.New("can't delete the default org")
	}
	count, err := c.OrgDB.CountOrgProjects(o.ID())
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("can't delete org with %d projects", count)
	}
	if err := c.OrgDB.DeleteOrg(o); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerOrgDeleted, OrgID: o.ID(), Payload: map[string]interface{}{"org": o.Slug()}})
	return nil
}

// SetOrgRole grants, changes or removes (NoRole) a user's role on an org.
// The last admin can't drop their own admin role.
func (c *CoreDB) SetOrgRole(actor DBUser, o DBOrg, member DBUser, role Role) error {
	if err := c.RequireOrgRole(actor, o, Admin); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %d", role)
	}
	if role < Admin {
		roles, err := c.OrgDB.GetOrgRoles(o.ID())
		if err != nil {
			return err
		}
		if roles[member.ID()] == Admin && countRole(roles, Admin) == 1 {
			return errors.New("can't remove the last admin")
		}
	}
	return c.OrgDB.SetOrgRole(o.ID(), member.ID(), role)
}

// GetOrgs returns the orgs the user can read. Paging applies to the
// readable orgs, not to the raw table.
func (c *CoreDB) GetOrgs(u DBUser, includeArchived bool, limit, offset int) ([]DBOrg, error) {
	all, err := c.OrgDB.GetAllOrgs(includeArchived, -1, 0)
	if err != nil {
		return nil, err
	}
	var result = make([]DBOrg, 0, len(all))
	for _, o := range all {
		if err := c.RequireOrgRole(u, o, Read); err != nil {
			continue
		}
		result = append(result, o)
	}
	return page(result, limit, offset), nil
}

func countRole(roles map[int]Role, role Role) int {
	var n int
	for _, r := range roles {
		if r == role {
			n++
		}
	}
	return n
}
