// Copyright (C) 2017 ScyllaDB

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/go-log/gocqllog"
	"github.com/scylladb/scylla-autorepair/pkg"
	config "github.com/scylladb/scylla-autorepair/pkg/config/server"
	"github.com/scylladb/scylla-autorepair/pkg/util/netwait"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cqlPort = "9042"

var rootArgs = struct {
	configFiles []string
	version     bool
}{}

var rootCmd = &cobra.Command{
	Use:           "scylla-autorepair",
	Short:         "Scylla automatic repair scheduler",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) (runError error) {
		if rootArgs.version {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", pkg.Version())
			return
		}

		c, err := config.ParseConfigFiles(rootArgs.configFiles)
		if err != nil {
			runError = errors.Wrapf(err, "configuration %q", rootArgs.configFiles)
			fmt.Fprintf(cmd.OutOrStderr(), "%s\n", runError)
			return
		}
		if err := c.Validate(); err != nil {
			runError = errors.Wrapf(err, "configuration %q", rootArgs.configFiles)
			fmt.Fprintf(cmd.OutOrStderr(), "%s\n", runError)
			return
		}

		ctx := log.WithNewTraceID(context.Background())

		logger, err := c.MakeLogger()
		if err != nil {
			return errors.Wrapf(err, "logger")
		}
		defer func() {
			if runError != nil {
				logger.Error(ctx, "Bye", "error", runError)
			} else {
				logger.Info(ctx, "Bye")
			}
			logger.Sync() // nolint
		}()

		logger.Info(ctx, "Scylla Autorepair", "version", pkg.Version(), "pid", os.Getpid())
		logger.Info(ctx, "Using config", "config", config.Obfuscate(c), "config_files", rootArgs.configFiles)

		// Redirect standard logger to the logger
		zap.RedirectStdLog(log.BaseOf(logger))
		netwait.DefaultWaiter.Logger = logger.Named("wait")
		gocql.Logger = gocqllog.StdLogger{
			BaseCtx: ctx,
			Logger:  logger.Named("gocql"),
		}

		logger.Info(ctx, "Checking database connectivity...")
		initHost, err := netwait.AnyHostPort(ctx, c.Database.Hosts, cqlPort)
		if err != nil {
			return errors.Wrapf(
				err,
				"no connection to database, make sure Scylla server is running and that database section in config file(s) %s is set correctly",
				strings.Join(rootArgs.configFiles, ", "),
			)
		}
		c.Database.InitAddr = net.JoinHostPort(initHost, cqlPort)

		ok, err := keyspaceExists(c)
		if err != nil {
			return errors.Wrapf(err, "db init")
		}
		if !ok {
			logger.Info(ctx, "Creating keyspace", "keyspace", c.Database.Keyspace)
			if err := createKeyspace(c); err != nil {
				return errors.Wrapf(err, "db init")
			}
			logger.Info(ctx, "Keyspace created", "keyspace", c.Database.Keyspace)
		}

		logger.Info(ctx, "Migrating schema", "keyspace", c.Database.Keyspace)
		if err := migrateSchema(c, logger); err != nil {
			return errors.Wrapf(err, "db init")
		}
		logger.Info(ctx, "Schema up to date", "keyspace", c.Database.Keyspace)

		server, err := newServer(c, logger)
		if err != nil {
			return errors.Wrapf(err, "server init")
		}
		defer server.close(ctx)
		if err := server.startServices(ctx); err != nil {
			return errors.Wrapf(err, "server start")
		}
		server.startServers(ctx)
		defer server.shutdownServers(ctx, 30*time.Second)

		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-server.errCh:
			if err != nil {
				return err
			}
		case sig := <-signalCh:
			logger.Info(ctx, "Received signal", "signal", sig)
		}

		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringSliceVarP(&rootArgs.configFiles, "config-file", "c", []string{"/etc/scylla-autorepair/scylla-autorepair.yaml"}, "configuration file `path`")
	f.BoolVar(&rootArgs.version, "version", false, "print version and exit")
}
