package api

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/auth"
)

func (srv *Server) test(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

func (srv *Server) version(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	return writeJSON(w, http.StatusOK, map[string]string{"version": srv.Version})
}

func (srv *Server) login(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	u, err := srv.Auth.Authenticate(body.Username, body.Password)
	if errors.Is(err, auth.ErrAuth) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	// renew the session token on privilege change
	if err := srv.DB.SessionManager.RenewToken(req.Context()); err != nil {
		return err
	}
	srv.DB.SessionManager.Put(req.Context(), "uid", u.ID())

	return writeJSON(w, http.StatusOK, toUserJSON(u))
}

func (srv *Server) logout(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := srv.DB.SessionManager.Destroy(req.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (srv *Server) whoami(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	return writeJSON(w, http.StatusOK, toUserJSON(ctx.User))
}
