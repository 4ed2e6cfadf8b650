package core

// The permission cascade: a user's effective rights on a resource are gated
// by their roles on the ancestor resources. System admins can do anything.
// Org admins are admins on every project of the org. Members of an org can
// read its "internal" projects. Branches and elements have no roles of
// their own, checks on them delegate to the project.

// RequireAdmin returns an error if the given user is not a system admin.
func (c *CoreDB) RequireAdmin(u DBUser) error {
	if u == nil || !u.Admin() {
		return ErrUnauthorized
	}
	return nil
}

// RequireOrgRole returns an error if the given user does not have the given
// role (or higher) on the org. Every user has Read on the default org.
func (c *CoreDB) RequireOrgRole(u DBUser, o DBOrg, required Role) error {
	if u == nil {
		return ErrUnauthorized
	}
	if u.Admin() {
		return nil
	}
	if required <= Read && o.Slug() == DefaultOrgSlug {
		return nil
	}
	roles, err := c.OrgDB.GetOrgRoles(o.ID())
	if err != nil {
		return err
	}
	if roles[u.ID()] >= required {
		return nil
	}
	return ErrUnauthorized
}

// RequireProjectRole returns an error if the given user does not have the
// given role (or higher) on the project, considering the cascade from the
// owning org.
func (c *CoreDB) RequireProjectRole(u DBUser, o DBOrg, p DBProject, required Role) error {
	if u == nil {
		return ErrUnauthorized
	}
	if u.Admin() {
		return nil
	}

	// org admin implies project admin
	orgRoles, err := c.OrgDB.GetOrgRoles(o.ID())
	if err != nil {
		return err
	}
	if orgRoles[u.ID()] == Admin {
		return nil
	}

	projRoles, err := c.ProjectDB.GetProjectRoles(p.ID())
	if err != nil {
		return err
	}
	if projRoles[u.ID()] >= required {
		return nil
	}

	// org members can read internal projects
	if required <= Read && p.Visibility() == VisibilityInternal {
		if orgRoles[u.ID()] >= Read || o.Slug() == DefaultOrgSlug {
			return nil
		}
	}

	return ErrUnauthorized
}

// requireBranchWrite bundles the checks every branch-scoped mutation needs:
// Write on the project, nothing on the path archived, and the branch must
// not be a tag.
func (c *CoreDB) requireBranchWrite(u DBUser, o DBOrg, p DBProject, b DBBranch) error {
	if err := c.RequireProjectRole(u, o, p, Write); err != nil {
		return err
	}
	if o.Archived() || p.Archived() || b.Archived() {
		return ErrArchived
	}
	if b.Tag() {
		return ErrTagBranch
	}
	return nil
}
