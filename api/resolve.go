package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
)

// Path parameter resolvers. They return the store's not-found error
// unchanged, the error mapping turns it into a 404. Archived resources
// resolve only with includeArchived, except for mutations, where the
// controllers give the precise error.

func (ctx *context) org(req *http.Request, params httprouter.Params) (core.DBOrg, error) {
	o, err := ctx.srv.DB.OrgDB.GetOrgBySlug(params.ByName("orgid"))
	if err != nil {
		return nil, err
	}
	if err := ctx.srv.DB.RequireOrgRole(ctx.User, o, core.Read); err != nil {
		return nil, err
	}
	if o.Archived() && !includeArchived(req) && req.Method == http.MethodGet {
		return nil, core.ErrArchived
	}
	return o, nil
}

func (ctx *context) project(req *http.Request, params httprouter.Params) (core.DBOrg, core.DBProject, error) {
	o, err := ctx.org(req, params)
	if err != nil {
		return nil, nil, err
	}
	p, err := ctx.srv.DB.ProjectDB.GetProjectBySlug(o.ID(), params.ByName("projectid"))
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.srv.DB.RequireProjectRole(ctx.User, o, p, core.Read); err != nil {
		return nil, nil, err
	}
	if p.Archived() && !includeArchived(req) && req.Method == http.MethodGet {
		return nil, nil, core.ErrArchived
	}
	return o, p, nil
}

func (ctx *context) branch(req *http.Request, params httprouter.Params) (core.DBOrg, core.DBProject, core.DBBranch, error) {
	o, p, err := ctx.project(req, params)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := ctx.srv.DB.BranchDB.GetBranchBySlug(p.ID(), params.ByName("branchid"))
	if err != nil {
		return nil, nil, nil, err
	}
	if b.Archived() && !includeArchived(req) && req.Method == http.MethodGet {
		return nil, nil, nil, core.ErrArchived
	}
	return o, p, b, nil
}

func (ctx *context) username(params httprouter.Params) (core.DBUser, error) {
	return ctx.srv.DB.UserDB.GetUserByName(core.NormalizeSlug(params.ByName("username")))
}
