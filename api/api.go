// Package api provides the JSON REST surface.
package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/modelbee/mbee/auth"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/hook"
	"go.uber.org/zap"
)

type Server struct {
	DB      *core.CoreDB
	Auth    auth.Chain
	Hooks   *hook.Dispatcher
	Logger  *zap.Logger
	Version string
}

// NewRouter builds the API router. The caller wraps it with the session
// middleware (scs LoadAndSave), because the session manager lives on the
// CoreDB.
func (srv *Server) NewRouter() http.Handler {

	var router = httprouter.New()

	// service
	router.GET("/api/test", srv.handle(false, srv.test))
	router.GET("/api/version", srv.handle(false, srv.version))
	router.POST("/api/login", srv.handle(false, srv.login))
	router.POST("/api/logout", srv.handle(true, srv.logout))
	router.GET("/api/whoami", srv.handle(true, srv.whoami))

	// users
	router.GET("/api/users", srv.handle(true, srv.getUsers))
	router.POST("/api/users", srv.handle(true, srv.postUser))
	router.GET("/api/users/:username", srv.handle(true, srv.getUser))
	router.PATCH("/api/users/:username", srv.handle(true, srv.patchUser))
	router.DELETE("/api/users/:username", srv.handle(true, srv.deleteUser))
	router.PATCH("/api/users/:username/password", srv.handle(true, srv.patchPassword))

	// orgs
	router.GET("/api/orgs", srv.handle(true, srv.getOrgs))
	router.POST("/api/orgs", srv.handle(true, srv.postOrg))
	router.GET("/api/orgs/:orgid", srv.handle(true, srv.getOrg))
	router.PATCH("/api/orgs/:orgid", srv.handle(true, srv.patchOrg))
	router.DELETE("/api/orgs/:orgid", srv.handle(true, srv.deleteOrg))
	router.PUT("/api/orgs/:orgid/members/:username", srv.handle(true, srv.putOrgMember))
	router.DELETE("/api/orgs/:orgid/members/:username", srv.handle(true, srv.deleteOrgMember))

	// projects
	router.GET("/api/projects", srv.handle(true, srv.getAllProjects))
	router.GET("/api/orgs/:orgid/projects", srv.handle(true, srv.getProjects))
	router.POST("/api/orgs/:orgid/projects", srv.handle(true, srv.postProject))
	router.GET("/api/orgs/:orgid/projects/:projectid", srv.handle(true, srv.getProject))
	router.PATCH("/api/orgs/:orgid/projects/:projectid", srv.handle(true, srv.patchProject))
	router.DELETE("/api/orgs/:orgid/projects/:projectid", srv.handle(true, srv.deleteProject))
	router.PUT("/api/orgs/:orgid/projects/:projectid/members/:username", srv.handle(true, srv.putProjectMember))
	router.DELETE("/api/orgs/:orgid/projects/:projectid/members/:username", srv.handle(true, srv.deleteProjectMember))

	// branches
	router.GET("/api/orgs/:orgid/projects/:projectid/branches", srv.handle(true, srv.getBranches))
	router.POST("/api/orgs/:orgid/projects/:projectid/branches", srv.handle(true, srv.postBranch))
	router.GET("/api/orgs/:orgid/projects/:projectid/branches/:branchid", srv.handle(true, srv.getBranch))
	router.PATCH("/api/orgs/:orgid/projects/:projectid/branches/:branchid", srv.handle(true, srv.patchBranch))
	router.DELETE("/api/orgs/:orgid/projects/:projectid/branches/:branchid", srv.handle(true, srv.deleteBranch))

	// elements
	// the list endpoint doubles as search with the q parameter, httprouter
	// can't have a static "search" segment next to :elementid
	router.GET("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements", srv.handle(true, srv.getElements))
	router.POST("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements", srv.handle(true, srv.postElement))
	router.GET("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements/:elementid", srv.handle(true, srv.getElement))
	router.GET("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements/:elementid/versions", srv.handle(true, srv.getElementVersions))
	router.PATCH("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements/:elementid", srv.handle(true, srv.patchElement))
	router.DELETE("/api/orgs/:orgid/projects/:projectid/branches/:branchid/elements/:elementid", srv.handle(true, srv.deleteElement))

	// webhooks
	router.GET("/api/webhooks", srv.handle(true, srv.getWebhooks))
	router.POST("/api/webhooks", srv.handle(true, srv.postWebhook))
	router.GET("/api/webhooks/:webhookid", srv.handle(true, srv.getWebhook))
	router.PATCH("/api/webhooks/:webhookid", srv.handle(true, srv.patchWebhook))
	router.DELETE("/api/webhooks/:webhookid", srv.handle(true, srv.deleteWebhook))
	router.POST("/api/webhook-trigger/:token", srv.handle(false, srv.triggerWebhook))

	return srv.logging(srv.recovery(router))
}
