package api

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
)

func (srv *Server) getOrgs(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	limit, offset := paging(req)
	orgs, err := srv.DB.GetOrgs(ctx.User, includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]orgJSON, 0, len(orgs))
	for _, o := range orgs {
		result = append(result, toOrgJSON(o))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postOrg(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}
	o, err := srv.DB.CreateOrg(ctx.User, body.ID, body.Name)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toOrgJSON(o))
}

func (srv *Server) getOrg(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toOrgJSON(o))
}

func (srv *Server) patchOrg(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}

	var body struct {
		Name     *string `json:"name"`
		Archived *bool   `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Name != nil {
		if err := srv.DB.UpdateOrg(ctx.User, o, *body.Name); err != nil {
			return err
		}
	}
	if body.Archived != nil {
		if err := srv.DB.ArchiveOrg(ctx.User, o, *body.Archived); err != nil {
			return err
		}
	}

	return writeJSON(w, http.StatusOK, toOrgJSON(o))
}

func (srv *Server) deleteOrg(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteOrg(ctx.User, o); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (srv *Server) putOrgMember(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}
	member, err := ctx.username(params)
	if err != nil {
		return err
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}
	role, ok := core.ParseRole(body.Role)
	if !ok {
		return fmt.Errorf("unknown role %q", body.Role)
	}

	if err := srv.DB.SetOrgRole(ctx.User, o, member, role); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"username": member.Name(), "role": role.String()})
}

func (srv *Server) deleteOrgMember(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}
	member, err := ctx.username(params)
	if err != nil {
		return err
	}
	if err := srv.DB.SetOrgRole(ctx.User, o, member, core.NoRole); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
