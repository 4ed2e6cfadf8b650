package main

import (
	"bytes"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/modelbee/mbee/api"
	"github.com/modelbee/mbee/auth"
	"github.com/modelbee/mbee/core"
	"github.com/modelbee/mbee/hook"
	"github.com/modelbee/mbee/sqldb"
	"github.com/modelbee/mbee/sqldb/mysql"
	"github.com/modelbee/mbee/sqldb/sqlite3"
	"github.com/modelbee/mbee/util"
	"github.com/xo/dburl"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/terminal"
)

const version = "1.0.0"

func main() {

	var dbArg string // is in both FlagSets

	// default FlagSet

	flag.StringVar(&dbArg, "db", "sqlite3:mbee.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared", "sql database url, see github.com/xo/dburl")
	var configFile = flag.String("config", "", "load settings from this ini `file`")
	var listenAddr = flag.String("listen", "127.0.0.1:8080", "serve the API at this `ip:port`")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)

	initFlags.StringVar(&dbArg, "db", "sqlite3:mbee.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared", "sql database url, see github.com/xo/dburl") // copied from above
	var adminName = initFlags.String("admin", "admin", "create this system admin `user`")

	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	defer logger.Sync()

	// config file, flags win over it

	var config = map[string]map[string]string{}
	if *configFile != "" {
		config, err = util.Ini(*configFile)
		if err != nil {
			logger.Error("loading config", zap.String("file", *configFile), zap.Error(err))
			return
		}
		if v := config[""]["db"]; v != "" && !flagPassed("db") {
			dbArg = v
		}
		if v := config[""]["listen"]; v != "" && !flagPassed("listen") {
			*listenAddr = v
		}
	}

	// database

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		logger.Error("parsing database url", zap.Error(err))
		return
	}

	sqlDB, err := sql.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		logger.Error("opening sql database", zap.Error(err))
		return
	}
	defer sqlDB.Close()

	if err = sqlDB.Ping(); err != nil {
		logger.Error("pinging sql database", zap.Error(err))
		return
	}

	logger.Info("using database", zap.String("url", dbURL.String()))

	// assemble stuff

	var sessionStore scs.Store
	switch dbURL.Driver {
	case "mysql":
		sessionStore = mysql.NewSessionStore(sqlDB)
	case "sqlite3":
		sessionStore = sqlite3.NewSessionStore(sqlDB)
	default:
		logger.Error("unknown database backend", zap.String("driver", dbURL.Driver))
		return
	}

	db := &core.CoreDB{}
	if err := db.Init(sessionStore, ""); err != nil {
		logger.Error("initializing", zap.Error(err))
		return
	}

	db.OrgDB = sqldb.NewOrgDB(sqlDB)
	db.ProjectDB = sqldb.NewProjectDB(sqlDB)
	db.BranchDB = sqldb.NewBranchDB(sqlDB)
	db.ElementDB = sqldb.NewElementDB(sqlDB)
	db.WebhookDB = sqldb.NewWebhookDB(sqlDB)
	db.UserDB = sqldb.NewUserDB(sqlDB)

	// init

	if initFlags.Parsed() {
		initialize(db, logger, *adminName)
		return
	}

	dispatcher := hook.NewDispatcher(db, logger)
	db.Observer = dispatcher

	var chain = auth.Chain{auth.Local{Users: db.UserDB}}
	if ldapSection, ok := config["ldap"]; ok {
		skipVerify, _ := strconv.ParseBool(ldapSection["skip-tls-verify"])
		chain = append(chain, auth.NewLDAP(auth.LDAPConfig{
			URL:           ldapSection["url"],
			BindDN:        ldapSection["bind-dn"],
			BindPassword:  ldapSection["bind-password"],
			Base:          ldapSection["base"],
			Filter:        ldapSection["filter"],
			UsernameAttr:  ldapSection["username-attr"],
			FirstNameAttr: ldapSection["first-name-attr"],
			LastNameAttr:  ldapSection["last-name-attr"],
			EmailAttr:     ldapSection["email-attr"],
			SkipTLSVerify: skipVerify,
		}, db.UserDB))
	}

	srv := &api.Server{
		DB:      db,
		Auth:    chain,
		Hooks:   dispatcher,
		Logger:  logger,
		Version: version,
	}

	listen(db, dispatcher, logger, srv.NewRouter(), *listenAddr)
}

func flagPassed(name string) bool {
	var passed bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

// initialize creates the default org and a system admin. Idempotent, so it
// can run again after a failed attempt.
func initialize(db *core.CoreDB, logger *zap.Logger, adminName string) {

	fmt.Printf("password for user %s: ", adminName)
	pass1, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		logger.Error("reading password", zap.Error(err))
		return
	}

	fmt.Printf("repeat password: ")
	pass2, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		logger.Error("reading password", zap.Error(err))
		return
	}

	if !bytes.Equal(pass1, pass2) {
		logger.Error("passwords don't match")
		return
	}
	if err := auth.CheckPassword(string(pass1)); err != nil {
		logger.Error("weak password", zap.Error(err))
		return
	}

	admin, err := db.UserDB.GetUserByName(adminName)
	if db.UserDB.IsNotFound(err) {
		admin, err = db.UserDB.InsertUser(adminName, "", "", "", "local", true)
	}
	if err != nil {
		logger.Error("creating admin user", zap.String("user", adminName), zap.Error(err))
		return
	}
	if err := db.SetPassword(admin, string(pass1)); err != nil {
		logger.Error("setting password", zap.Error(err))
		return
	}

	if _, err := db.OrgDB.GetOrgBySlug(core.DefaultOrgSlug); db.OrgDB.IsNotFound(err) {
		if _, err := db.CreateOrg(admin, core.DefaultOrgSlug, "Default"); err != nil {
			logger.Error("creating default org", zap.Error(err))
			return
		}
	}

	logger.Info("initialized", zap.String("admin", adminName))
}

func listen(db *core.CoreDB, dispatcher *hook.Dispatcher, logger *zap.Logger, router http.Handler, addr string) {

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("listening", zap.Error(err))
		return
	}

	logger.Info("listening", zap.String("addr", addr))

	httpSrv := &http.Server{
		Handler:      db.SessionManager.LoadAndSave(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if err != http.ErrServerClosed {
				logger.Error("serving", zap.Error(err))
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	logger.Info("shutting down")
	httpSrv.Close()

	// let pending webhook deliveries finish
	dispatcher.Wait()
}
