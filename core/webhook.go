package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/modelbee/mbee/util"
)

// Webhook kinds and reference levels.
const (
	WebhookOutgoing = "outgoing"
	WebhookIncoming = "incoming"

	RefOrg     = "org"
	RefProject = "project"
	RefBranch  = "branch"
)

type DBWebhook interface {
	ID() int
	PublicID() string // uuid, used in URLs
	Kind() string
	Name() string
	Triggers() []string
	URL() string       // outgoing: request target
	AuthToken() string // outgoing: sent as Authorization header, may be empty
	Token() string     // incoming: verified at the trigger endpoint
	RefType() string
	RefID() int
	TsCreated() int64
	Archived() bool
}

type WebhookDB interface {
	DeleteWebhook(w DBWebhook) error
	GetWebhook(publicID string) (DBWebhook, error)
	GetWebhookByToken(token string) (DBWebhook, error)
	GetWebhooks(refType string, refID int, includeArchived bool, limit, offset int) ([]DBWebhook, error)
	GetWebhooksByTrigger(trigger, refType string, refID int) ([]DBWebhook, error)
	InsertWebhook(publicID, kind, name string, triggers []string, url, authToken, token, refType string, refID int) (DBWebhook, error)
	SetWebhookArchived(w DBWebhook, archived bool) error
	IsNotFound(err error) bool
}

// WebhookRef is a validated reference to the resource a webhook listens on.
type WebhookRef struct {
	Type    string
	Org     DBOrg
	Project DBProject // nil on org level
	Branch  DBBranch  // nil on org and project level
}

func (r WebhookRef) id() int {
	switch r.Type {
	case RefOrg:
		return r.Org.ID()
	case RefProject:
		return r.Project.ID()
	case RefBranch:
		return r.Branch.ID()
	}
	return 0
}

// RequireWebhookAdmin: webhooks are managed by admins of the referenced
// resource.
func (c *CoreDB) RequireWebhookAdmin(u DBUser, ref WebhookRef) error {
	switch ref.Type {
	case RefOrg:
		return c.RequireOrgRole(u, ref.Org, Admin)
	case RefProject, RefBranch:
		return c.RequireProjectRole(u, ref.Org, ref.Project, Admin)
	}
	return fmt.Errorf("invalid webhook reference %q", ref.Type)
}

// CreateWebhook registers a webhook on the referenced resource. Outgoing
// webhooks need a url, incoming webhooks get a random trigger token.
func (c *CoreDB) CreateWebhook(actor DBUser, ref WebhookRef, kind, name string, triggers []string, url, authToken string) (DBWebhook, error) {
	if err := c.RequireWebhookAdmin(actor, ref); err != nil {
		return nil, err
	}
	if len(triggers) == 0 {
		return nil, fmt.Errorf("webhook requires at least one trigger")
	}
	var token string
	switch kind {
	case WebhookOutgoing:
		if url == "" {
			return nil, fmt.Errorf("outgoing webhook requires a url")
		}
	case WebhookIncoming:
		if url != "" || authToken != "" {
			return nil, fmt.Errorf("incoming webhook can't have url or auth token")
		}
		var err error
		token, err = util.RandomString32()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid webhook kind %q", kind)
	}
	return c.WebhookDB.InsertWebhook(uuid.NewString(), kind, name, triggers, url, authToken, token, ref.Type, ref.id())
}

func (c *CoreDB) ArchiveWebhook(actor DBUser, ref WebhookRef, w DBWebhook, archived bool) error {
	if err := c.RequireWebhookAdmin(actor, ref); err != nil {
		return err
	}
	return c.WebhookDB.SetWebhookArchived(w, archived)
}

func (c *CoreDB) DeleteWebhook(actor DBUser, ref WebhookRef, w DBWebhook) error {
	if err := c.RequireWebhookAdmin(actor, ref); err != nil {
		return err
	}
	return c.WebhookDB.DeleteWebhook(w)
}

// GetWebhooks lists the webhooks registered directly on the referenced
// resource (not those inherited from ancestors).
func (c *CoreDB) GetWebhooks(u DBUser, ref WebhookRef, includeArchived bool, limit, offset int) ([]DBWebhook, error) {
	if err := c.RequireWebhookAdmin(u, ref); err != nil {
		return nil, err
	}
	return c.WebhookDB.GetWebhooks(ref.Type, ref.id(), includeArchived, limit, offset)
}

// EventScope resolves the resource chain a webhook is registered on, for
// events fired through an incoming webhook.
func (c *CoreDB) EventScope(w DBWebhook) (orgID, projectID, branchID int, err error) {
	switch w.RefType() {
	case RefOrg:
		return w.RefID(), 0, 0, nil
	case RefProject:
		p, err := c.ProjectDB.GetProject(w.RefID())
		if err != nil {
			return 0, 0, 0, err
		}
		return p.OrgID(), p.ID(), 0, nil
	case RefBranch:
		b, err := c.BranchDB.GetBranch(w.RefID())
		if err != nil {
			return 0, 0, 0, err
		}
		p, err := c.ProjectDB.GetProject(b.ProjectID())
		if err != nil {
			return 0, 0, 0, err
		}
		return p.OrgID(), p.ID(), b.ID(), nil
	}
	return 0, 0, 0, fmt.Errorf("invalid webhook reference %q", w.RefType())
}

// MatchingWebhooks returns the non-archived webhooks of the given kind
// which listen for the event's trigger anywhere on the event's resource
// chain (branch, then project, then org).
func (c *CoreDB) MatchingWebhooks(e Event, kind string) ([]DBWebhook, error) {
	var scopes = []struct {
		refType string
		refID   int
	}{
		{RefBranch, e.BranchID},
		{RefProject, e.ProjectID},
		{RefOrg, e.OrgID},
	}
	var result []DBWebhook
	for _, scope := range scopes {
		if scope.refID == 0 {
			continue
		}
		hooks, err := c.WebhookDB.GetWebhooksByTrigger(e.Trigger, scope.refType, scope.refID)
		if err != nil {
			return nil, err
		}
		for _, w := range hooks {
			if w.Kind() == kind && !w.Archived() {
				result = append(result, w)
			}
		}
	}
	return result, nil
}
