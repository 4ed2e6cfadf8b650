package sqldb

import "database/sql"

// createSchema creates all tables. Every store constructor calls it because
// some prepared statements cross store boundaries (counting projects of an
// org, deleting the elements of a branch), and preparing against a missing
// table fails.
func createSchema(db *sql.DB) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS org (
			id INTEGER PRIMARY KEY,
			slug varchar(64) NOT NULL,
			name varchar(128) NOT NULL,
			ts_created int(11) NOT NULL,
			archived int(1) NOT NULL DEFAULT '0',
			UNIQUE (slug)
		);
		CREATE TABLE IF NOT EXISTS org_role (
			orgId int(11) NOT NULL,
			userId int(11) NOT NULL,
			role int(11) NOT NULL,
			PRIMARY KEY (orgId, userId)
		);
		CREATE TABLE IF NOT EXISTS project (
			id INTEGER PRIMARY KEY,
			orgId int(11) NOT NULL,
			slug varchar(64) NOT NULL,
			name varchar(128) NOT NULL,
			visibility varchar(16) NOT NULL,
			ts_created int(11) NOT NULL,
			archived int(1) NOT NULL DEFAULT '0',
			UNIQUE (orgId, slug)
		);
		CREATE TABLE IF NOT EXISTS project_role (
			projectId int(11) NOT NULL,
			userId int(11) NOT NULL,
			role int(11) NOT NULL,
			PRIMARY KEY (projectId, userId)
		);
		CREATE TABLE IF NOT EXISTS branch (
			id INTEGER PRIMARY KEY,
			projectId int(11) NOT NULL,
			slug varchar(64) NOT NULL,
			name varchar(128) NOT NULL,
			source varchar(64) NOT NULL,
			tag int(1) NOT NULL DEFAULT '0',
			ts_created int(11) NOT NULL,
			archived int(1) NOT NULL DEFAULT '0',
			UNIQUE (projectId, slug)
		);
		CREATE TABLE IF NOT EXISTS element (
			id INTEGER PRIMARY KEY,
			branchId int(11) NOT NULL,
			slug varchar(64) NOT NULL,
			parentSlug varchar(64) NOT NULL,
			kind varchar(16) NOT NULL,
			name varchar(128) NOT NULL,
			documentation mediumtext NOT NULL,
			source varchar(64) NOT NULL,
			target varchar(64) NOT NULL,
			search_text mediumtext NOT NULL,
			ts_created int(11) NOT NULL,
			archived int(1) NOT NULL DEFAULT '0',
			maxVersion int(11) NOT NULL,
			UNIQUE (branchId, slug)
		);
		CREATE TABLE IF NOT EXISTS element_version (
			elementId int(11) NOT NULL,
			versionNr int(11) NOT NULL DEFAULT '0',
			versionNote varchar(128) NOT NULL,
			authorId int(11) NOT NULL,
			content mediumtext NOT NULL,
			ts_changed INTEGER NOT NULL,
			PRIMARY KEY (elementId, versionNr)
		);
		CREATE TABLE IF NOT EXISTS webhook (
			id INTEGER PRIMARY KEY,
			publicId varchar(36) NOT NULL,
			kind varchar(16) NOT NULL,
			name varchar(128) NOT NULL,
			triggers text NOT NULL,
			url varchar(512) NOT NULL,
			authToken varchar(256) NOT NULL,
			token varchar(36) NOT NULL,
			refType varchar(16) NOT NULL,
			refId int(11) NOT NULL,
			ts_created int(11) NOT NULL,
			archived int(1) NOT NULL DEFAULT '0',
			UNIQUE (publicId)
		);
		CREATE TABLE IF NOT EXISTS usr (
			id INTEGER PRIMARY KEY,
			name varchar(128) NOT NULL,
			firstName varchar(64) NOT NULL DEFAULT '',
			lastName varchar(64) NOT NULL DEFAULT '',
			email varchar(128) NOT NULL DEFAULT '',
			admin int(1) NOT NULL DEFAULT '0',
			provider varchar(16) NOT NULL DEFAULT 'local',
			archived int(1) NOT NULL DEFAULT '0',
			password varchar(60) NOT NULL DEFAULT '',
			UNIQUE (name)
		);
		`)
	if err != nil {
		panic(err)
	}
}
