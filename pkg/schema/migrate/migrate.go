// Copyright (C) 2017 ScyllaDB

// Package migrate contains code migrations called from schema files.
package migrate

import (
	"context"
	"strings"

	"github.com/scylladb/go-log"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/migrate"
)

var reg = make(migrate.CallbackRegister)

// Logger is used by code migrations, it is set by the caller of migrate.FromFS.
var Logger = log.NopLogger

// Callback logs applied schema files and dispatches CALL comments to the
// registered code migrations.
func Callback(ctx context.Context, session gocqlx.Session, ev migrate.CallbackEvent, name string) error {
	if strings.HasSuffix(name, ".cql") {
		switch ev {
		case migrate.BeforeMigration:
			Logger.Info(ctx, "Applying schema file", "file", name)
		case migrate.AfterMigration:
			Logger.Debug(ctx, "Schema file applied", "file", name)
		}
	}
	return reg.Callback(ctx, session, ev, name)
}
