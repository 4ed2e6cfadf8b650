package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (srv *Server) getBranches(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	_, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}
	limit, offset := paging(req)
	branches, err := srv.DB.BranchDB.GetBranches(p.ID(), includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]branchJSON, 0, len(branches))
	for _, b := range branches {
		result = append(result, toBranchJSON(b))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postBranch(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, err := ctx.project(req, params)
	if err != nil {
		return err
	}

	var body struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Source string `json:"source"`
		Tag    bool   `json:"tag"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Source == "" {
		body.Source = "master"
	}
	source, err := srv.DB.BranchDB.GetBranchBySlug(p.ID(), body.Source)
	if err != nil {
		return err
	}

	b, err := srv.DB.CreateBranch(ctx.User, o, p, source, body.ID, body.Name, body.Tag)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toBranchJSON(b))
}

func (srv *Server) getBranch(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	_, _, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toBranchJSON(b))
}

func (srv *Server) patchBranch(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}

	var body struct {
		Name     string `json:"name"`
		Archived *bool  `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Name != "" {
		if err := srv.DB.UpdateBranch(ctx.User, o, p, b, body.Name); err != nil {
			return err
		}
	}
	if body.Archived != nil {
		if err := srv.DB.ArchiveBranch(ctx.User, o, p, b, *body.Archived); err != nil {
			return err
		}
	}

	return writeJSON(w, http.StatusOK, toBranchJSON(b))
}

func (srv *Server) deleteBranch(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteBranch(ctx.User, o, p, b); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
