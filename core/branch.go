package core

import (
	"errors"
	"fmt"

	"github.com/modelbee/mbee/util"
)

const MasterBranchSlug = "master"

type DBBranch interface {
	ID() int
	ProjectID() int
	Slug() string
	Name() string
	SourceSlug() string // branch this was created from, empty for master
	Tag() bool          // tags are read-only
	TsCreated() int64
	Archived() bool
}

type BranchDB interface {
	DeleteBranch(b DBBranch) error // removes the branch with all elements and versions
	GetBranch(id int) (DBBranch, error)
	GetBranchBySlug(projectID int, slug string) (DBBranch, error)
	GetBranches(projectID int, includeArchived bool, limit, offset int) ([]DBBranch, error)
	InsertBranch(projectID int, slug, name, source string, tag bool) (DBBranch, error)
	SetBranchArchived(b DBBranch, archived bool) error
	SetBranchName(b DBBranch, name string) error
	IsNotFound(err error) bool
}

// CreateBranch creates a branch (or, with tag == true, a read-only tag)
// from the current state of the source branch. The element tree of the
// source is copied, version histories start over.
func (c *CoreDB) CreateBranch(actor DBUser, o DBOrg, p DBProject, source DBBranch, slug, name string, tag bool) (DBBranch, error) {
	if err := c.RequireProjectRole(actor, o, p, Write); err != nil {
		return nil, err
	}
	if o.Archived() || p.Archived() || source.Archived() {
		return nil, ErrArchived
	}
	slug, err := CheckSlug(slug)
	if err != nil {
		return nil, err
	}

	b, err := c.BranchDB.InsertBranch(p.ID(), slug, name, source.Slug(), tag)
	if err != nil {
		return nil, err
	}

	// copy the element tree; parent/source/target references are element
	// ids, so copied rows stay consistent without id remapping
	elements, err := c.ElementDB.GetElements(source.ID(), true, -1, 0)
	if err != nil {
		return nil, err
	}
	var note = fmt.Sprintf("branched from %s", source.Slug())
	for _, e := range elements {
		clone, err := c.ElementDB.InsertElement(b.ID(), e.Slug(), e.ParentSlug(), e.Kind(), e.Name(), e.Documentation(), e.SourceSlug(), e.TargetSlug())
		if err != nil {
			return nil, err
		}
		if err := c.ElementDB.AddElementVersion(clone, e.Name(), e.Documentation(), e.SourceSlug(), e.TargetSlug(), note, actor.ID()); err != nil {
			return nil, err
		}
		if e.Documentation() != "" {
			if err := c.ElementDB.SetElementSearchText(clone, util.PlainText(e.Documentation())); err != nil {
				return nil, err
			}
		}
		if e.Archived() {
			if err := c.ElementDB.SetElementArchived(clone, true); err != nil {
				return nil, err
			}
		}
	}

	c.emit(Event{Trigger: TriggerBranchCreated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "tag": tag}})
	return b, nil
}

// UpdateBranch renames a branch. Renaming is allowed on tags as well, the
// tag restriction covers the model content only.
func (c *CoreDB) UpdateBranch(actor DBUser, o DBOrg, p DBProject, b DBBranch, name string) error {
	if err := c.RequireProjectRole(actor, o, p, Write); err != nil {
		return err
	}
	if o.Archived() || p.Archived() || b.Archived() {
		return ErrArchived
	}
	if err := c.BranchDB.SetBranchName(b, name); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerBranchUpdated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug()}})
	return nil
}

func (c *CoreDB) ArchiveBranch(actor DBUser, o DBOrg, p DBProject, b DBBranch, archived bool) error {
	if err := c.RequireProjectRole(actor, o, p, Write); err != nil {
		return err
	}
	if o.Archived() || p.Archived() {
		return ErrArchived
	}
	if b.Slug() == MasterBranchSlug {
		return errors.New("can't archive the master branch")
	}
	if err := c.BranchDB.SetBranchArchived(b, archived); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerBranchUpdated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "archived": archived}})
	return nil
}

// DeleteBranch hard-deletes a branch with all its elements.
func (c *CoreDB) DeleteBranch(actor DBUser, o DBOrg, p DBProject, b DBBranch) error {
	if err := c.RequireProjectRole(actor, o, p, Admin); err != nil {
		return err
	}
	if b.Slug() == MasterBranchSlug {
		return errors.New("can't delete the master branch")
	}
	if err := c.BranchDB.DeleteBranch(b); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerBranchDeleted, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug()}})
	return nil
}
