package api

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
)

// getAllProjects lists the readable projects across all orgs.
func (srv *Server) getAllProjects(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	limit, offset := paging(req)
	projects, err := srv.DB.GetReadableProjects(ctx.User, 0, includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		o, err := srv.DB.OrgDB.GetOrg(p.OrgID())
		if err != nil {
			return err
		}
		result = append(result, toProjectJSON(o, p))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) getProjects(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}
	limit, offset := paging(req)
	projects, err := srv.DB.GetReadableProjects(ctx.User, o.ID(), includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		result = append(result, toProjectJSON(o, p))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postProject(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, err := ctx.org(req, params)
	if err != nil {
		return err
	}

	var body struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Visibility string `json:"visibility"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	p, err := srv.DB.CreateProject(ctx.User, o, body.ID, body.Name, body.Visibility)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toProjectJSON(o, p))
}

func (srv *Server) getProject(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProjectJSON(o, p))
}

func (srv *Server) patchProject(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}

	var body struct {
		Name       string `json:"name"`
		Visibility string `json:"visibility"`
		Archived   *bool  `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Name != "" || body.Visibility != "" {
		if err := srv.DB.UpdateProject(ctx.User, o, p, body.Name, body.Visibility); err != nil {
			return err
		}
	}
	if body.Archived != nil {
		if err := srv.DB.ArchiveProject(ctx.User, o, p, *body.Archived); err != nil {
			return err
		}
	}

	return writeJSON(w, http.StatusOK, toProjectJSON(o, p))
}

func (srv *Server) deleteProject(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteProject(ctx.User, o, p); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (srv *Server) putProjectMember(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, err := ctx.project(req, params)
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

	if err := srv.DB.SetProjectRole(ctx.User, o, p, member, role); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"username": member.Name(), "role": role.String()})
}

func (srv *Server) deleteProjectMember(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}
	member, err := ctx.username(params)
	if err != nil {
		return err
	}
	if err := srv.DB.SetProjectRole(ctx.User, o, p, member, core.NoRole); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
