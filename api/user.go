package api

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/auth"
	"github.com/modelbee/mbee/core"
)

func (srv *Server) getUsers(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := srv.DB.RequireAdmin(ctx.User); err != nil {
		return err
	}
	limit, offset := paging(req)
	users, err := srv.DB.UserDB.GetAllUsers(includeArchived(req), limit, offset)
	if err != nil {
		return err
	}
	var result = make([]userJSON, 0, len(users))
	for _, u := range users {
		result = append(result, toUserJSON(u))
	}
	return writeJSON(w, http.StatusOK, result)
}

func (srv *Server) postUser(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var body struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"fname"`
		LastName  string `json:"lname"`
		Email     string `json:"email"`
		Admin     bool   `json:"admin"`
		Provider  string `json:"provider"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	if body.Provider == "" || body.Provider == "local" {
		if err := auth.CheckPassword(body.Password); err != nil {
			return err
		}
	} else if body.Password != "" {
		return errors.New("only local users have a password")
	}

	u, err := srv.DB.CreateUser(ctx.User, body.Username, body.FirstName, body.LastName, body.Email, body.Provider, body.Admin)
	if err != nil {
		return err
	}
	if body.Password != "" {
		if err := srv.DB.SetPassword(u, body.Password); err != nil {
			return err
		}
	}
	return writeJSON(w, http.StatusCreated, toUserJSON(u))
}

func (srv *Server) getUser(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	u, err := ctx.username(params)
	if err != nil {
		return err
	}
	// users can see themselves, admins can see everyone
	if ctx.User.ID() != u.ID() {
		if err := srv.DB.RequireAdmin(ctx.User); err != nil {
			return err
		}
	}
	return writeJSON(w, http.StatusOK, toUserJSON(u))
}

func (srv *Server) patchUser(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	u, err := ctx.username(params)
	if err != nil {
		return err
	}

	var body struct {
		FirstName *string `json:"fname"`
		LastName  *string `json:"lname"`
		Email     *string `json:"email"`
		Admin     *bool   `json:"admin"`
		Archived  *bool   `json:"archived"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}

	// detail changes: self or admin; admin and archived flags: admin only
	if ctx.User.ID() != u.ID() {
		if err := srv.DB.RequireAdmin(ctx.User); err != nil {
			return err
		}
	}
	if body.Admin != nil || body.Archived != nil {
		if err := srv.DB.RequireAdmin(ctx.User); err != nil {
			return err
		}
	}

	if body.FirstName != nil || body.LastName != nil || body.Email != nil {
		firstName, lastName, email := u.FirstName(), u.LastName(), u.Email()
		if body.FirstName != nil {
			firstName = *body.FirstName
		}
		if body.LastName != nil {
			lastName = *body.LastName
		}
		if body.Email != nil {
			email = *body.Email
		}
		if u.Provider() == "ldap" {
			return errors.New("directory users are managed by the directory")
		}
		if err := srv.DB.UserDB.SetUserDetails(u, firstName, lastName, email); err != nil {
			return err
		}
	}
	if body.Admin != nil {
		if ctx.User.ID() == u.ID() && !*body.Admin {
			return errors.New("can't drop your own admin flag")
		}
		if err := srv.DB.UserDB.SetAdmin(u, *body.Admin); err != nil {
			return err
		}
	}
	if body.Archived != nil {
		if err := srv.DB.UserDB.SetUserArchived(u, *body.Archived); err != nil {
			return err
		}
	}

	return writeJSON(w, http.StatusOK, toUserJSON(u))
}

func (srv *Server) deleteUser(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	u, err := ctx.username(params)
	if err != nil {
		return err
	}
	if err := srv.DB.DeleteUser(ctx.User, u); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (srv *Server) patchPassword(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	u, err := ctx.username(params)
	if err != nil {
		return err
	}
	if ctx.User.ID() != u.ID() {
		return core.ErrUnauthorized // password changes are strictly personal
	}
	if u.Provider() != "local" {
		return errors.New("directory passwords are managed by the directory")
	}

	var body struct {
		Old string `json:"oldPassword"`
		New string `json:"password"`
	}
	if err := readJSON(req, &body); err != nil {
		return err
	}
	if err := auth.CheckPassword(body.New); err != nil {
		return err
	}
	if err := srv.DB.UserDB.ChangePassword(u, body.Old, body.New); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
