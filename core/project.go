package core

import (
	"errors"
	"fmt"
)

const (
	VisibilityPrivate  = "private"
	VisibilityInternal = "internal" // readable by all members of the org
)

type DBProject interface {
	ID() int
	OrgID() int
	Slug() string
	Name() string
	Visibility() string
	TsCreated() int64
	Archived() bool
}

type ProjectDB interface {
	CountProjectBranches(projectID int) (int, error)
	DeleteProject(p DBProject) error
	GetAllProjects(includeArchived bool, limit, offset int) ([]DBProject, error)
	GetProject(id int) (DBProject, error)
	GetProjectBySlug(orgID int, slug string) (DBProject, error)
	GetProjectRoles(projectID int) (map[int]Role, error)
	GetProjects(orgID int, includeArchived bool, limit, offset int) ([]DBProject, error)
	InsertProject(orgID int, slug, name, visibility string) (DBProject, error)
	SetProjectArchived(p DBProject, archived bool) error
	SetProjectName(p DBProject, name string) error
	SetProjectRole(projectID, userID int, role Role) error
	SetProjectVisibility(p DBProject, visibility string) error
	IsNotFound(err error) bool
}

func checkVisibility(v string) (string, error) {
	switch v {
	case "":
		return VisibilityPrivate, nil
	case VisibilityPrivate, VisibilityInternal:
		return v, nil
	}
	return "", fmt.Errorf("invalid visibility %q", v)
}

// CreateProject creates a project with its master branch and the root of
// the element tree. Requires Write on the org.
func (c *CoreDB) CreateProject(actor DBUser, o DBOrg, slug, name, visibility string) (DBProject, error) {
	if err := c.RequireOrgRole(actor, o, Write); err != nil {
		return nil, err
	}
	if o.Archived() {
		return nil, ErrArchived
	}
	slug, err := CheckSlug(slug)
	if err != nil {
		return nil, err
	}
	visibility, err = checkVisibility(visibility)
	if err != nil {
		return nil, err
	}

	p, err := c.ProjectDB.InsertProject(o.ID(), slug, name, visibility)
	if err != nil {
		return nil, err
	}
	if err := c.ProjectDB.SetProjectRole(p.ID(), actor.ID(), Admin); err != nil {
		return nil, err
	}

	// every project starts with a master branch and the built-in skeleton
	b, err := c.BranchDB.InsertBranch(p.ID(), MasterBranchSlug, "Master", "", false)
	if err != nil {
		return nil, err
	}
	if err := c.insertSkeleton(b, actor); err != nil {
		return nil, err
	}

	c.emit(Event{Trigger: TriggerProjectCreated, OrgID: o.ID(), ProjectID: p.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug()}})
	return p, nil
}

// UpdateProject changes name and/or visibility. Empty values keep the
// current ones.
func (c *CoreDB) UpdateProject(actor DBUser, o DBOrg, p DBProject, name, visibility string) error {
	if err := c.RequireProjectRole(actor, o, p, Admin); err != nil {
		return err
	}
	if o.Archived() || p.Archived() {
		return ErrArchived
	}
	if name != "" {
		if err := c.ProjectDB.SetProjectName(p, name); err != nil {
			return err
		}
	}
	if visibility != "" {
		visibility, err := checkVisibility(visibility)
		if err != nil {
			return err
		}
		if err := c.ProjectDB.SetProjectVisibility(p, visibility); err != nil {
			return err
		}
	}
	c.emit(Event{Trigger: TriggerProjectUpdated, OrgID: o.ID(), ProjectID: p.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug()}})
	return nil
}

func (c *CoreDB) ArchiveProject(actor DBUser, o DBOrg, p DBProject, archived bool) error {
	if err := c.RequireProjectRole(actor, o, p, Admin); err != nil {
		return err
	}
	if o.Archived() {
		return ErrArchived
	}
	if err := c.ProjectDB.SetProjectArchived(p, archived); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerProjectUpdated, OrgID: o.ID(), ProjectID: p.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "archived": archived}})
	return nil
}

// DeleteProject hard-deletes a project including all branches and elements.
func (c *CoreDB) DeleteProject(actor DBUser, o DBOrg, p DBProject) error {
	if err := c.RequireProjectRole(actor, o, p, Admin); err != nil {
		return err
	}
	branches, err := c.BranchDB.GetBranches(p.ID(), true, -1, 0)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if err := c.BranchDB.DeleteBranch(b); err != nil {
			return err
		}
	}
	if err := c.ProjectDB.DeleteProject(p); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerProjectDeleted, OrgID: o.ID(), ProjectID: p.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug()}})
	return nil
}

// SetProjectRole grants, changes or removes (NoRole) a user's role on a
// project. The last admin can't drop their own admin role.
func (c *CoreDB) SetProjectRole(actor DBUser, o DBOrg, p DBProject, member DBUser, role Role) error {
	if err := c.RequireProjectRole(actor, o, p, Admin); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %d", role)
	}
	if err := c.RequireOrgRole(member, o, Read); err != nil {
		return errors.New("user is not a member of the org")
	}
	if role < Admin {
		roles, err := c.ProjectDB.GetProjectRoles(p.ID())
		if err != nil {
			return err
		}
		if roles[member.ID()] == Admin && countRole(roles, Admin) == 1 {
			return errors.New("can't remove the last admin")
		}
	}
	return c.ProjectDB.SetProjectRole(p.ID(), member.ID(), role)
}

// GetReadableProjects returns the projects of one org (orgID != 0) or of
// all orgs (orgID == 0) which the user can read. Paging applies to the
// readable projects, not to the raw table.
func (c *CoreDB) GetReadableProjects(u DBUser, orgID int, includeArchived bool, limit, offset int) ([]DBProject, error) {
	var all []DBProject
	var err error
	if orgID == 0 {
		all, err = c.ProjectDB.GetAllProjects(includeArchived, -1, 0)
	} else {
		all, err = c.ProjectDB.GetProjects(orgID, includeArchived, -1, 0)
	}
	if err != nil {
		return nil, err
	}
	var result = make([]DBProject, 0, len(all))
	for _, p := range all {
		o, err := c.OrgDB.GetOrg(p.OrgID())
		if err != nil {
			return nil, err
		}
		if err := c.RequireProjectRole(u, o, p, Read); err != nil {
			continue
		}
		result = append(result, p)
	}
	return page(result, limit, offset), nil
}
