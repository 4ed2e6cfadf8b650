package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/core"
	"go.uber.org/zap"
)

// context carries the authenticated user through one request.
type context struct {
	User core.DBUser // nil if not logged in
	srv  *Server
}

// handle wraps a handler func into a httprouter.Handle. It resolves the
// user from the session or, failing that, from HTTP basic auth through the
// strategy chain.
func (srv *Server) handle(requireLoggedIn bool, f func(http.ResponseWriter, *http.Request, *context, httprouter.Params) error) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		var ctx = &context{srv: srv}

		if uid := srv.DB.SessionManager.GetInt(req.Context(), "uid"); uid != 0 {
			u, err := srv.DB.UserDB.GetUser(uid)
			if err == nil && !u.Archived() {
				ctx.User = u
			}
			// ignore errors, the session just doesn't log anyone in
		}

		if ctx.User == nil {
			if name, password, ok := req.BasicAuth(); ok {
				u, err := srv.Auth.Authenticate(name, password)
				if err == nil {
					ctx.User = u
				}
			}
		}

		if requireLoggedIn && ctx.User == nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="mbee"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			srv.writeErrorFor(w, ctx, err)
		}
	}
}

// writeErrorFor maps controller errors to HTTP status codes.
func (srv *Server) writeErrorFor(w http.ResponseWriter, ctx *context, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		if ctx.User == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
		} else {
			writeError(w, http.StatusForbidden, "forbidden")
		}
	case srv.DB.OrgDB.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrArchived):
		writeError(w, http.StatusNotFound, "resource is archived")
	case errors.Is(err, core.ErrTagBranch):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// statusWriter remembers the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (srv *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var sw = &statusWriter{ResponseWriter: w, status: http.StatusOK}
		var start = time.Now()
		next.ServeHTTP(sw, req)
		srv.Logger.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (srv *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				srv.Logger.Error("panic", zap.Any("error", r), zap.String("path", req.URL.Path), zap.Stack("stack"))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	var dec = json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// query helpers

func includeArchived(req *http.Request) bool {
	return req.URL.Query().Get("includeArchived") == "true"
}

func paging(req *http.Request) (limit, offset int) {
	limit = -1
	if s := req.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	if s := req.URL.Query().Get("skip"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			offset = n
		}
	}
	return
}
