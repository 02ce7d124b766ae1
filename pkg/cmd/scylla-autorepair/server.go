// Copyright (C) 2017 ScyllaDB

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/scylla-autorepair/pkg/cluster"
	config "github.com/scylladb/scylla-autorepair/pkg/config/server"
	"github.com/scylladb/scylla-autorepair/pkg/lock"
	"github.com/scylladb/scylla-autorepair/pkg/metrics"
	"github.com/scylladb/scylla-autorepair/pkg/repairstate"
	"github.com/scylladb/scylla-autorepair/pkg/restapi"
	"github.com/scylladb/scylla-autorepair/pkg/schedule"
	"github.com/scylladb/scylla-autorepair/pkg/scyllaclient"
	"github.com/scylladb/scylla-autorepair/pkg/service/repair"
	"github.com/scylladb/scylla-autorepair/pkg/service/tableconfig"
	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
	"golang.org/x/sync/errgroup"
)

type server struct {
	config  config.Config
	session gocqlx.Session
	logger  log.Logger

	topology  *cluster.Topology
	filter    *cluster.Filter
	client    *scyllaclient.Client
	locks     *lock.Factory
	manager   *schedule.Manager
	scheduler *repair.Scheduler
	provider  *tableconfig.Provider
	watcher   *tableconfig.Watcher

	stopWatcher func()

	httpServer       *http.Server
	prometheusServer *http.Server
	errCh            chan error
}

func newServer(c config.Config, logger log.Logger) (*server, error) {
	session, err := gocqlx.WrapSession(gocqlClusterConfig(c).CreateSession())
	if err != nil {
		return nil, errors.Wrapf(err, "database")
	}

	s := &server{
		config:  c,
		session: session,
		logger:  logger,
		errCh:   make(chan error, 2),
	}
	if err := s.makeServices(); err != nil {
		s.close(context.Background())
		return nil, err
	}
	s.makeServers()

	return s, nil
}

func (s *server) makeServices() error {
	var err error

	s.filter, err = cluster.NewFilter(s.config.Topology.FilterConfig)
	if err != nil {
		return errors.Wrapf(err, "topology filter")
	}
	s.topology = cluster.NewTopology(s.session)

	scyllaConfig := s.config.ScyllaAPI
	scyllaConfig.Hosts = s.config.Database.Hosts
	s.client, err = scyllaclient.NewClient(scyllaConfig, s.logger.Named("client"))
	if err != nil {
		return errors.Wrapf(err, "scylla client")
	}

	s.locks, err = lock.NewFactory(s.config.Lock, lock.NewCQLStore(s.session, serialConsistency(s.config)),
		uuid.MustRandom(), s.logger.Named("lock"))
	if err != nil {
		return errors.Wrapf(err, "lock factory")
	}
	s.locks.SetListener(metrics.NewLockMetrics().MustRegister())

	s.manager, err = schedule.NewManager(s.config.Schedule, s.locks, s.logger.Named("schedule"))
	if err != nil {
		return errors.Wrapf(err, "schedule manager")
	}
	s.manager.SetListener(metrics.NewSchedulerMetrics().MustRegister())

	history := repairstate.NewCQLHistory(s.session)
	states, err := repairstate.NewFactory(repairstate.NewRingOwnership(s.client), history,
		s.config.Repair.HistoryLookback, s.logger.Named("state"))
	if err != nil {
		return errors.Wrapf(err, "repair state factory")
	}

	s.scheduler, err = repair.NewScheduler(s.config.Repair, repair.Deps{
		Manager:  s.manager,
		States:   states,
		History:  history,
		Repairer: repair.NewScyllaRepairer(s.client, s.config.Repair.StatusWait, s.logger.Named("repairer")),
		Faults:   repair.NewLogFaultReporter(s.logger.Named("fault")),
		Metrics:  metrics.NewRepairMetrics().MustRegister(),
		Topology: s.topology,
	}, s.logger.Named("repair"))
	if err != nil {
		return errors.Wrapf(err, "repair scheduler")
	}

	return nil
}

func (s *server) makeServers() {
	services := restapi.Services{
		Repair: s.scheduler,
	}
	h := restapi.New(services, s.logger.Named("http"))

	if s.config.HTTP != "" {
		s.httpServer = &http.Server{
			Addr:    s.config.HTTP,
			Handler: h,
		}
	}
	if s.config.Prometheus != "" {
		s.prometheusServer = &http.Server{
			Addr:    s.config.Prometheus,
			Handler: restapi.NewPrometheus(),
		}
	}
}

// startServices reads the topology and configures repair of the managed
// nodes, then starts scheduling and watching the schema.
func (s *server) startServices(ctx context.Context) error {
	nodes, err := s.topology.Nodes(ctx)
	if err != nil {
		return errors.Wrapf(err, "read topology")
	}
	managed := s.filter.Apply(nodes)
	if len(managed) == 0 {
		return errors.New("no nodes to repair, check topology filter")
	}
	s.logger.Info(ctx, "Managing nodes", "nodes", managed)

	s.provider, err = tableconfig.NewProvider(s.config.TableConfig, s.scheduler, repair.NewTableReferenceFactory(),
		managed, metrics.NewTableConfigMetrics().MustRegister(), s.logger.Named("tableconfig"))
	if err != nil {
		return errors.Wrapf(err, "table config provider")
	}

	s.scheduler.Start(ctx)
	s.manager.Start(ctx)

	reader := tableconfig.NewCQLSchemaReader(s.session)
	if err := s.provider.Connect(ctx, reader); err != nil {
		return errors.Wrapf(err, "table config provider")
	}

	s.watcher = tableconfig.NewWatcher(reader, s.topology, s.client, s.filter, s.provider, s.logger.Named("watcher"))
	if err := s.watcher.Poll(ctx); err != nil {
		return errors.Wrapf(err, "schema watcher")
	}
	s.stopWatcher = s.watcher.Start(ctx, s.config.Topology.PollInterval)

	return nil
}

func (s *server) startServers(ctx context.Context) {
	if s.httpServer != nil {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.httpServer.Addr)
		go func() {
			s.errCh <- errors.Wrap(s.httpServer.ListenAndServe(), "HTTP server start")
		}()
	}

	if s.prometheusServer != nil {
		s.logger.Info(ctx, "Starting Prometheus server", "address", s.prometheusServer.Addr)
		go func() {
			s.errCh <- errors.Wrap(s.prometheusServer.ListenAndServe(), "prometheus server start")
		}()
	}

	s.logger.Info(ctx, "Service started")
}

func (s *server) shutdownServers(ctx context.Context, timeout time.Duration) {
	s.logger.Info(ctx, "Closing servers", "timeout", timeout)

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var eg errgroup.Group
	eg.Go(s.shutdownHTTPServer(tctx, s.httpServer))
	eg.Go(s.shutdownHTTPServer(tctx, s.prometheusServer))
	eg.Wait() // nolint: errcheck
}

func (s *server) shutdownHTTPServer(ctx context.Context, server *http.Server) func() error {
	return func() error {
		if server == nil {
			return nil
		}
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Info(ctx, "Closing server failed", "address", server.Addr, "error", err)
		} else {
			s.logger.Info(ctx, "Closing server done", "address", server.Addr)
		}

		// Force close
		return server.Close()
	}
}

// close stops services in reverse order of start. Locks are released
// last so that running repairs finish before.
func (s *server) close(ctx context.Context) {
	if s.stopWatcher != nil {
		s.stopWatcher()
	}
	if s.provider != nil {
		if err := s.provider.Close(ctx); err != nil {
			s.logger.Info(ctx, "Closing table config provider failed", "error", err)
		}
	}
	if s.scheduler != nil {
		s.scheduler.Close(ctx)
	}
	if s.manager != nil {
		s.manager.Close()
	}
	if s.locks != nil {
		if err := s.locks.Close(); err != nil {
			s.logger.Info(ctx, "Releasing locks failed", "error", err)
		}
	}

	s.session.Close()
}
