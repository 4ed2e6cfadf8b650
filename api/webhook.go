package api

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
)

// webhookRef resolves the org/project/branch slugs into a validated
// reference. The most specific given level wins.
func (ctx *context) webhookRef(orgSlug, projectSlug, branchSlug string) (core.WebhookRef, error) {

	var ref core.WebhookRef
	if orgSlug == "" {
		return ref, errors.New("webhook reference requires an org")
	}

	o, err := ctx.srv.DB.OrgDB.GetOrgBySlug(orgSlug)
	if err != nil {
		return ref, err
	}
	ref = core.WebhookRef{Type: core.RefOrg, Org: o}

	if projectSlug != "" {
		p, err := ctx.srv.DB.ProjectDB.GetProjectBySlug(o.ID(), projectSlug)
		if err != nil {
			return ref, err
		}
		ref.Type = core.RefProject
		ref.Project = p

		if branchSlug != "" {
			b, err := ctx.srv.DB.BranchDB.GetBranchBySlug(p.ID(), branchSlug)
			if err != nil {
				return ref, err
			}
			ref.Type = core.RefBranch
			ref.Branch = b
		}
	} else if branchSlug != "" {
		return ref, errors.New("branch reference requires a project")
	}

	return ref, nil
}

// refOf rebuilds the reference of a stored webhook, for authorization.
func (ctx *context) refOf(wh core.DBWebhook) (core.WebhookRef, error) {
	var ref = core.WebhookRef{Type: wh.RefType()}
	switch wh.RefType() {
	case core.RefOrg:
		o, err := ctx.srv.DB.OrgDB.GetOrg(wh.RefID())
		if err != nil {
			return ref, err
		}
		ref.Org = o
	case core.RefProject:
		p, err := ctx.srv.DB.ProjectDB.GetProject(wh.RefID())
		if err != nil {
			return ref, err
		}
		o, err := ctx.srv.DB.OrgDB.GetOrg(p.OrgID())
		if err != nil {
			return ref, err
		}
		ref.Org, ref.Project = o, p
	case core.RefBranch:
		b, err := ctx.srv.DB.BranchDB.GetBranch(wh.RefID())
		if err != nil {
			return ref, err
		}
		p, err := ctx.srv.DB.ProjectDB.GetProject(b.ProjectID())
		if err != nil {
			return ref, err
		}
		o, err := ctx.srv.DB.OrgDB.GetOrg(p.OrgID())
		if err != nil {
			return ref, err
		}
		ref.Org, ref.Project, ref.Branch = o, p, b
	default:
		return ref, errors.New("invalid webhook reference")
	}
	return ref, nil
}

func toWebhookJSON(wh core.DBWebhook, ref core.WebhookRef) webhookJSON {
	var reference = map[string]string{"org": ref.Org.Slug()}
	if ref.Project != nil {
		reference["project"] = ref.Project.Slug()
	}
	if ref.Branch != nil {
		reference["branch"] = ref.Branch.Slug()
	}
	return webhookJSON{
		ID:       wh.PublicID(),
		Kind:     wh.Kind(),
		Name:     wh.Name(),
		Triggers: wh.Triggers(),
		URL:      wh.URL(),
		Token:    wh.Token(),
		Ref:      reference,
		Created:  wh.TsCreated(),
		Archived: wh.Archived(),
	}
}

func (srv *Server) getWebhooks(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var query = req.URL.Query()
	ref, err := ctx.webhookRef(query.Get("org"), query.Get("project"), query.Get("branch"))
	if err != nil {
		return err
	}

	limit, offset := paging(req)
	hooks, err := srv.DB.GetWebhooks(ctx.User, ref, includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]webhookJSON, 0, len(hooks))
	for _, wh := range hooks {
		result = append(result, toWebhookJSON(wh, ref))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postWebhook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var body struct {
		Kind     string   `json:"type"`
		Name     string   `json:"name"`
		Triggers []string `json:"triggers"`
		URL      string   `json:"url"`
		Token    string   `json:"token"` // outgoing: sent as Authorization header
		Ref      struct {
			Org     string `json:"org"`
			Project string `json:"project"`
			Branch  string `json:"branch"`
		} `json:"reference"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	ref, err := ctx.webhookRef(body.Ref.Org, body.Ref.Project, body.Ref.Branch)
	if err != nil {
		return err
	}

	wh, err := srv.DB.CreateWebhook(ctx.User, ref, body.Kind, body.Name, body.Triggers, body.URL, body.Token)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toWebhookJSON(wh, ref))
}

func (srv *Server) getWebhook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	wh, err := srv.DB.WebhookDB.GetWebhook(params.ByName("webhookid"))
	if err != nil {
		return err
	}
	ref, err := ctx.refOf(wh)
	if err != nil {
		return err
	}
	if err := srv.DB.RequireWebhookAdmin(ctx.User, ref); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toWebhookJSON(wh, ref))
}

func (srv *Server) patchWebhook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	wh, err := srv.DB.WebhookDB.GetWebhook(params.ByName("webhookid"))
	if err != nil {
		return err
	}
	ref, err := ctx.refOf(wh)
	if err != nil {
		return err
	}

	var body struct {
		Archived *bool `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}
	if body.Archived != nil {
		if err := srv.DB.ArchiveWebhook(ctx.User, ref, wh, *body.Archived); err != nil {
			return err
		}
	}
	return writeJSON(w, http.StatusOK, toWebhookJSON(wh, ref))
}

func (srv *Server) deleteWebhook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	wh, err := srv.DB.WebhookDB.GetWebhook(params.ByName("webhookid"))
	if err != nil {
		return err
	}
	ref, err := ctx.refOf(wh)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteWebhook(ctx.User, ref, wh); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

// triggerWebhook is the endpoint of incoming webhooks. It authenticates by
// token, not by user.
func (srv *Server) triggerWebhook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var payload map[string]interface{}
	if err := readJSON(req, &payload); err != nil {
		return err
	}

	if err := srv.Hooks.TriggerIncoming(params.ByName("token"), payload); err != nil {
		if srv.DB.WebhookDB.IsNotFound(err) || errors.Is(err, core.ErrUnauthorized) {
			writeError(w, http.StatusNotFound, "not found")
			return nil
		}
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
