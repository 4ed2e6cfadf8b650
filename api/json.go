package api

import (
	"encoding/json"

	"github.com/modelbee/mbee/core"
)

// Wire representations. Fields follow the REST API's naming, not the
// store's.

type userJSON struct {
	Username  string `json:"username"`
	FirstName string `json:"fname,omitempty"`
	LastName  string `json:"lname,omitempty"`
	Email     string `json:"email,omitempty"`
	Admin     bool   `json:"admin"`
	Provider  string `json:"provider"`
	Archived  bool   `json:"archived,omitempty"`
}

func toUserJSON(u core.DBUser) userJSON {
	return userJSON{
		Username:  u.Name(),
		FirstName: u.FirstName(),
		LastName:  u.LastName(),
		Email:     u.Email(),
		Admin:     u.Admin(),
		Provider:  u.Provider(),
		Archived:  u.Archived(),
	}
}

type orgJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Created  int64  `json:"createdOn"`
	Archived bool   `json:"archived,omitempty"`
}

func toOrgJSON(o core.DBOrg) orgJSON {
	return orgJSON{ID: o.Slug(), Name: o.Name(), Created: o.TsCreated(), Archived: o.Archived()}
}

type projectJSON struct {
	ID         string `json:"id"`
	Org        string `json:"org"`
	Name       string `json:"name"`
	Visibility string `json:"visibility"`
	Created    int64  `json:"createdOn"`
	Archived   bool   `json:"archived,omitempty"`
}

func toProjectJSON(o core.DBOrg, p core.DBProject) projectJSON {
	return projectJSON{
		ID:         p.Slug(),
		Org:        o.Slug(),
		Name:       p.Name(),
		Visibility: p.Visibility(),
		Created:    p.TsCreated(),
		Archived:   p.Archived(),
	}
}

type branchJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
	Tag      bool   `json:"tag,omitempty"`
	Created  int64  `json:"createdOn"`
	Archived bool   `json:"archived,omitempty"`
}

func toBranchJSON(b core.DBBranch) branchJSON {
	return branchJSON{ID: b.Slug(), Name: b.Name(), Source: b.SourceSlug(), Tag: b.Tag(), Created: b.TsCreated(), Archived: b.Archived()}
}

type elementJSON struct {
	ID            string `json:"id"`
	Parent        string `json:"parent,omitempty"`
	Kind          string `json:"type"`
	Name          string `json:"name"`
	Documentation string `json:"documentation,omitempty"`
	RenderedDoc   string `json:"renderedDocumentation,omitempty"`
	Source        string `json:"source,omitempty"`
	Target        string `json:"target,omitempty"`
	Created       int64  `json:"createdOn"`
	Archived      bool   `json:"archived,omitempty"`
	Version       int    `json:"version"`
}

func toElementJSON(e core.DBElement) elementJSON {
	return elementJSON{
		ID:            e.Slug(),
		Parent:        e.ParentSlug(),
		Kind:          e.Kind(),
		Name:          e.Name(),
		Documentation: e.Documentation(),
		Source:        e.SourceSlug(),
		Target:        e.TargetSlug(),
		Created:       e.TsCreated(),
		Archived:      e.Archived(),
		Version:       e.MaxVersionNo(),
	}
}

type versionJSON struct {
	Version  int             `json:"version"`
	Note     string          `json:"note"`
	Author   string          `json:"author,omitempty"`
	Changed  int64           `json:"changedOn"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type webhookJSON struct {
	ID       string            `json:"id"`
	Kind     string            `json:"type"`
	Name     string            `json:"name"`
	Triggers []string          `json:"triggers"`
	URL      string            `json:"url,omitempty"`
	Token    string            `json:"token,omitempty"`
	Ref      map[string]string `json:"reference"`
	Created  int64             `json:"createdOn"`
	Archived bool              `json:"archived,omitempty"`
}
