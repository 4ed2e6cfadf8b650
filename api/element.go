package api

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/util"
)

// getElements lists the elements of a branch. With q it searches the
// documentation text, with root (and optionally depth) it returns a subtree.
func (srv *Server) getElements(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	limit, offset := paging(req)

	var elements []core.DBElement
	switch {
	case req.URL.Query().Get("q") != "":
		elements, err = srv.DB.ElementDB.SearchElements(b.ID(), req.URL.Query().Get("q"), includeArchived(req), limit, offset)
	case req.URL.Query().Get("root") != "":
		var root core.DBElement
		root, err = srv.DB.GetElement(ctx.User, o, p, b, req.URL.Query().Get("root"), includeArchived(req))
		if err != nil {
			return err
		}
		var depth = -1
		if s := req.URL.Query().Get("depth"); s != "" {
			depth, err = strconv.Atoi(s)
			if err != nil {
				return err
			}
		}
		elements, err = srv.DB.GetSubtree(ctx.User, o, p, b, root, depth, includeArchived(req))
	default:
		elements, err = srv.DB.ElementDB.GetElements(b.ID(), includeArchived(req), limit, offset)
	}
	if err != nil {
		return err
	}

	var result = make([]elementJSON, 0, len(elements))
	for _, e := range elements {
		result = append(result, toElementJSON(e))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postElement(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}

	var body struct {
		ID            string `json:"id"`
		Parent        string `json:"parent"`
		Kind          string `json:"type"`
		Name          string `json:"name"`
		Documentation string `json:"documentation"`
		Source        string `json:"source"`
		Target        string `json:"target"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}
	if body.Kind == "" {
		body.Kind = core.KindBlock
	}

	e, err := srv.DB.CreateElement(ctx.User, o, p, b, body.ID, body.Parent, body.Kind, body.Name, body.Documentation, body.Source, body.Target)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toElementJSON(e))
}

func (srv *Server) getElement(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	e, err := srv.DB.GetElement(ctx.User, o, p, b, params.ByName("elementid"), includeArchived(req))
	if err != nil {
		return err
	}

	var result = toElementJSON(e)
	if req.URL.Query().Get("format") == "html" {
		result.RenderedDoc = util.RenderMarkdown(e.Documentation())
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) getElementVersions(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	e, err := srv.DB.GetElement(ctx.User, o, p, b, params.ByName("elementid"), includeArchived(req))
	if err != nil {
		return err
	}

	versions, err := srv.DB.ElementDB.ElementVersions(e.ID())
	if err != nil {
		return err
	}
	var result = make([]versionJSON, 0, len(versions))
	for _, v := range versions {
		var author string
		if u, err := srv.DB.UserDB.GetUser(v.AuthorID()); err == nil {
			author = u.Name()
		}
		result = append(result, versionJSON{
			Version:  v.VersionNo(),
			Note:     v.Note(),
			Author:   author,
			Changed:  v.TsChanged(),
			Snapshot: []byte(v.Content()),
		})
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) patchElement(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	e, err := srv.DB.GetElement(ctx.User, o, p, b, params.ByName("elementid"), true)
	if err != nil {
		return err
	}

	var body struct {
		Name          string `json:"name"`
		Documentation string `json:"documentation"`
		Source        string `json:"source"`
		Target        string `json:"target"`
		Parent        string `json:"parent"`
		Note          string `json:"note"`
		Archived      *bool  `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Name != "" || body.Documentation != "" || body.Source != "" || body.Target != "" {
		if err := srv.DB.UpdateElement(ctx.User, o, p, b, e, body.Name, body.Documentation, body.Source, body.Target, body.Note); err != nil {
			return err
		}
	}
	if body.Parent != "" {
		if err := srv.DB.MoveElement(ctx.User, o, p, b, e, body.Parent); err != nil {
			return err
		}
	}
	if body.Archived != nil {
		if err := srv.DB.ArchiveElement(ctx.User, o, p, b, e, *body.Archived); err != nil {
			return err
		}
	}

	// reload, the row cache only tracks some of the fields
	e, err = srv.DB.ElementDB.GetElement(b.ID(), e.Slug())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toElementJSON(e))
}

func (srv *Server) deleteElement(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	o, p, b, err := ctx.branch(req, params)
	if err != nil {
		return err
	}
	e, err := srv.DB.GetElement(ctx.User, o, p, b, params.ByName("elementid"), true)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteElement(ctx.User, o, p, b, e); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
