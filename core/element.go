package core

import (
	"errors"
	"fmt"

	"github.com/modelbee/mbee/util"
)

// Element kinds. A relationship connects a source and a target element,
// packages and blocks form the containment tree.
const (
	KindBlock        = "block"
	KindRelationship = "relationship"
	KindPackage      = "package"
)

// Built-in elements of every branch. The leading underscores keep them out
// of the user slug space.
const (
	RootElementSlug   = "model"
	BuiltinPkgSlug    = "__mbee__"
	HoldingBinSlug    = "holding_bin"
	UndefinedElemSlug = "undefined"
)

type DBElement interface {
	ID() int
	BranchID() int
	Slug() string       // element id, unique per branch
	ParentSlug() string // empty for the root element
	Kind() string
	Name() string
	Documentation() string
	SourceSlug() string // relationship only
	TargetSlug() string // relationship only
	TsCreated() int64
	Archived() bool
	MaxVersionNo() int
}

type DBElementVersion interface {
	VersionNo() int // ascending, starts at 1
	Note() string
	AuthorID() int
	TsChanged() int64
	Content() string // JSON snapshot of the versioned fields
}

type ElementDB interface {
	AddElementVersion(e DBElement, name, documentation, source, target, note string, authorID int) error
	CountElements(branchID int) (int, error)
	DeleteElement(e DBElement) error // refuses if children exist
	ElementVersions(elementID int) ([]DBElementVersion, error)
	GetChildren(branchID int, parentSlug string, includeArchived bool, limit, offset int) ([]DBElement, error)
	GetElement(branchID int, slug string) (DBElement, error)
	GetElementVersion(elementID, versionNo int) (DBElementVersion, error)
	GetElements(branchID int, includeArchived bool, limit, offset int) ([]DBElement, error)
	InsertElement(branchID int, slug, parentSlug, kind, name, documentation, source, target string) (DBElement, error)
	SearchElements(branchID int, q string, includeArchived bool, limit, offset int) ([]DBElement, error)
	SetElementArchived(e DBElement, archived bool) error
	SetElementParent(e DBElement, parentSlug string) error
	SetElementSearchText(e DBElement, text string) error
	IsNotFound(err error) bool
}

func checkKind(kind string) error {
	switch kind {
	case KindBlock, KindRelationship, KindPackage:
		return nil
	}
	return fmt.Errorf("invalid element kind %q", kind)
}

// insertSkeleton creates the built-in elements of a fresh branch: the root
// package, the internal package and its holding bin and undefined element.
func (c *CoreDB) insertSkeleton(b DBBranch, actor DBUser) error {
	var skeleton = []struct {
		slug, parent, kind, name string
	}{
		{RootElementSlug, "", KindPackage, "Model"},
		{BuiltinPkgSlug, RootElementSlug, KindPackage, "MBEE Internal"},
		{HoldingBinSlug, BuiltinPkgSlug, KindPackage, "Holding Bin"},
		{UndefinedElemSlug, BuiltinPkgSlug, KindBlock, "Undefined"},
	}
	for _, s := range skeleton {
		e, err := c.ElementDB.InsertElement(b.ID(), s.slug, s.parent, s.kind, s.name, "", "", "")
		if err != nil {
			return err
		}
		if err := c.ElementDB.AddElementVersion(e, s.name, "", "", "", "project created", actor.ID()); err != nil {
			return err
		}
	}
	return nil
}

// GetElement returns one element if the user can read it. Archived elements
// are only returned with includeArchived.
func (c *CoreDB) GetElement(u DBUser, o DBOrg, p DBProject, b DBBranch, slug string, includeArchived bool) (DBElement, error) {
	if err := c.RequireProjectRole(u, o, p, Read); err != nil {
		return nil, err
	}
	e, err := c.ElementDB.GetElement(b.ID(), slug)
	if err != nil {
		return nil, err
	}
	if e.Archived() && !includeArchived {
		return nil, ErrArchived
	}
	return e, nil
}

// CreateElement creates an element below the given parent. Relationships
// must reference existing elements of the same branch, other kinds must not
// carry source/target at all.
func (c *CoreDB) CreateElement(actor DBUser, o DBOrg, p DBProject, b DBBranch, slug, parent, kind, name, documentation, source, target string) (DBElement, error) {
	if err := c.requireBranchWrite(actor, o, p, b); err != nil {
		return nil, err
	}
	slug, err := CheckSlug(slug)
	if err != nil {
		return nil, err
	}
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	if parent == "" {
		parent = RootElementSlug
	}
	parentElem, err := c.ElementDB.GetElement(b.ID(), parent)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", parent, err)
	}
	if parentElem.Archived() {
		return nil, ErrArchived
	}
	if parentElem.Kind() == KindRelationship {
		return nil, errors.New("a relationship can't contain elements")
	}

	if kind == KindRelationship {
		if source == "" || target == "" {
			return nil, errors.New("relationship requires source and target")
		}
		for _, ref := range []string{source, target} {
			if _, err := c.ElementDB.GetElement(b.ID(), ref); err != nil {
				return nil, fmt.Errorf("reference %s: %w", ref, err)
			}
		}
	} else if source != "" || target != "" {
		return nil, fmt.Errorf("%s can't have source or target", kind)
	}

	e, err := c.ElementDB.InsertElement(b.ID(), slug, parent, kind, name, documentation, source, target)
	if err != nil {
		return nil, err
	}
	if err := c.ElementDB.AddElementVersion(e, name, documentation, source, target, "created", actor.ID()); err != nil {
		return nil, err
	}
	if documentation != "" {
		if err := c.ElementDB.SetElementSearchText(e, util.PlainText(documentation)); err != nil {
			return nil, err
		}
	}

	c.emit(Event{Trigger: TriggerElementCreated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "element": e.Slug()}})
	return e, nil
}

// UpdateElement appends a version with the changed fields. Empty strings
// keep the current value, so clearing a field is not possible through this
// function (matches the snapshot semantics of the version history).
func (c *CoreDB) UpdateElement(actor DBUser, o DBOrg, p DBProject, b DBBranch, e DBElement, name, documentation, source, target, note string) error {
	if err := c.requireBranchWrite(actor, o, p, b); err != nil {
		return err
	}
	if e.Archived() {
		return ErrArchived
	}
	if name == "" {
		name = e.Name()
	}
	if documentation == "" {
		documentation = e.Documentation()
	}
	if source == "" {
		source = e.SourceSlug()
	}
	if target == "" {
		target = e.TargetSlug()
	}
	if (source != "" || target != "") && e.Kind() != KindRelationship {
		return fmt.Errorf("%s can't have source or target", e.Kind())
	}
	if e.Kind() == KindRelationship {
		for _, ref := range []string{source, target} {
			if _, err := c.ElementDB.GetElement(b.ID(), ref); err != nil {
				return fmt.Errorf("reference %s: %w", ref, err)
			}
		}
	}
	if name == e.Name() && documentation == e.Documentation() && source == e.SourceSlug() && target == e.TargetSlug() {
		return nil // nothing changed, don't add a version
	}
	if err := c.ElementDB.AddElementVersion(e, name, documentation, source, target, note, actor.ID()); err != nil {
		return err
	}
	if err := c.ElementDB.SetElementSearchText(e, util.PlainText(documentation)); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerElementUpdated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "element": e.Slug()}})
	return nil
}

// MoveElement sets a new parent. The root can't be moved, an element can't
// be moved below itself, and archived elements stay where they are.
func (c *CoreDB) MoveElement(actor DBUser, o DBOrg, p DBProject, b DBBranch, e DBElement, newParent string) error {
	if err := c.requireBranchWrite(actor, o, p, b); err != nil {
		return err
	}
	if e.ParentSlug() == "" {
		return errors.New("can't move the root element")
	}
	if e.Archived() {
		return ErrArchived
	}
	parentElem, err := c.ElementDB.GetElement(b.ID(), newParent)
	if err != nil {
		return fmt.Errorf("parent %s: %w", newParent, err)
	}
	if parentElem.Archived() {
		return ErrArchived
	}
	if parentElem.Kind() == KindRelationship {
		return errors.New("a relationship can't contain elements")
	}

	// the new parent can't be below this element
	for ancestor := parentElem; ; {
		if ancestor.Slug() == e.Slug() {
			return errors.New("can't move element below itself")
		}
		if ancestor.ParentSlug() == "" {
			break
		}
		ancestor, err = c.ElementDB.GetElement(b.ID(), ancestor.ParentSlug())
		if err != nil {
			return err
		}
	}

	if newParent == e.ParentSlug() {
		return nil
	}
	if err := c.ElementDB.SetElementParent(e, newParent); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerElementUpdated, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "element": e.Slug()}})
	return nil
}

// ArchiveElement archives or unarchives an element and its whole subtree.
func (c *CoreDB) ArchiveElement(actor DBUser, o DBOrg, p DBProject, b DBBranch, e DBElement, archived bool) error {
	if err := c.requireBranchWrite(actor, o, p, b); err != nil {
		return err
	}
	if e.ParentSlug() == "" {
		return errors.New("can't archive the root element")
	}
	if err := c.walkSubtree(e, func(sub DBElement) error {
		return c.ElementDB.SetElementArchived(sub, archived)
	}); err != nil {
		return err
	}
	c.emit(Event{Trigger: TriggerElementArchived, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "element": e.Slug(), "archived": archived}})
	return nil
}

// DeleteElement hard-deletes an element and its subtree. Relationships
// elsewhere on the branch which referenced a deleted element are repointed
// to the built-in undefined element.
func (c *CoreDB) DeleteElement(actor DBUser, o DBOrg, p DBProject, b DBBranch, e DBElement) error {
	if err := c.requireBranchWrite(actor, o, p, b); err != nil {
		return err
	}
	if e.ParentSlug() == "" {
		return errors.New("can't delete the root element")
	}
	switch e.Slug() {
	case BuiltinPkgSlug, HoldingBinSlug, UndefinedElemSlug:
		return errors.New("can't delete a built-in element")
	}

	var deleted = make(map[string]bool)
	if err := c.deleteSubtree(e, deleted); err != nil {
		return err
	}

	// repoint dangling relationship references
	remaining, err := c.ElementDB.GetElements(b.ID(), true, -1, 0)
	if err != nil {
		return err
	}
	for _, r := range remaining {
		if r.Kind() != KindRelationship {
			continue
		}
		var source, target = r.SourceSlug(), r.TargetSlug()
		if !deleted[source] && !deleted[target] {
			continue
		}
		if deleted[source] {
			source = UndefinedElemSlug
		}
		if deleted[target] {
			target = UndefinedElemSlug
		}
		if err := c.ElementDB.AddElementVersion(r, r.Name(), r.Documentation(), source, target, fmt.Sprintf("reference %s deleted", e.Slug()), actor.ID()); err != nil {
			return err
		}
	}

	c.emit(Event{Trigger: TriggerElementDeleted, OrgID: o.ID(), ProjectID: p.ID(), BranchID: b.ID(),
		Payload: map[string]interface{}{"org": o.Slug(), "project": p.Slug(), "branch": b.Slug(), "element": e.Slug()}})
	return nil
}

// walkSubtree calls f on e and every descendant, parents first.
func (c *CoreDB) walkSubtree(e DBElement, f func(DBElement) error) error {
	if err := f(e); err != nil {
		return err
	}
	children, err := c.ElementDB.GetChildren(e.BranchID(), e.Slug(), true, -1, 0)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := c.walkSubtree(child, f); err != nil {
			return err
		}
	}
	return nil
}

// deleteSubtree removes children first because ElementDB.DeleteElement
// refuses to delete an element which still has children.
func (c *CoreDB) deleteSubtree(e DBElement, deleted map[string]bool) error {
	children, err := c.ElementDB.GetChildren(e.BranchID(), e.Slug(), true, -1, 0)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := c.deleteSubtree(child, deleted); err != nil {
			return err
		}
	}
	if err := c.ElementDB.DeleteElement(e); err != nil {
		return err
	}
	deleted[e.Slug()] = true
	return nil
}

// GetSubtree returns the element and its descendants down to the given
// depth (depth < 0 means unlimited, depth 0 just the element itself).
func (c *CoreDB) GetSubtree(u DBUser, o DBOrg, p DBProject, b DBBranch, e DBElement, depth int, includeArchived bool) ([]DBElement, error) {
	if err := c.RequireProjectRole(u, o, p, Read); err != nil {
		return nil, err
	}
	var result = []DBElement{e}
	if depth == 0 {
		return result, nil
	}
	children, err := c.ElementDB.GetChildren(b.ID(), e.Slug(), includeArchived, -1, 0)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := c.GetSubtree(u, o, p, b, child, depth-1, includeArchived)
		if err != nil {
			return nil, err
		}
		result = append(result, sub...)
	}
	return result, nil
}
