// Package server assembles a PDC region server from configuration and runs
// it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/api"
	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/config"
	"github.com/hpc-io/pdc-sub004/pkg/flusher"
	promMetrics "github.com/hpc-io/pdc-sub004/pkg/metrics/prometheus"
	"github.com/hpc-io/pdc-sub004/pkg/payload"
	"github.com/hpc-io/pdc-sub004/pkg/store"
	badgerstore "github.com/hpc-io/pdc-sub004/pkg/store/badger"
	"github.com/hpc-io/pdc-sub004/pkg/store/posix"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

// Server owns every component of a region server.
//
// Startup order: stores, cache, transfer tracker and queue, region service,
// idle flusher, API server. Shutdown runs in reverse so that no request can
// reach the cache after its final flush.
type Server struct {
	cfg *config.Config

	selector *store.Selector
	service  *payload.Service
	flusher  *flusher.IdleFlusher
	api      *api.Server

	serveOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New builds a server from cfg. Metrics must already be initialized (see
// metrics.InitRegistry) for components to report them.
func New(cfg *config.Config) (*Server, error) {
	storeMetrics := promMetrics.NewStoreMetrics(nil)

	flat, err := posix.New(posix.Config{
		Root:       cfg.Server.DataRoot,
		SyncWrites: cfg.Storage.SyncWrites,
	}, storeMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat-file store: %w", err)
	}

	records, err := badgerstore.New(badgerstore.Config{
		Path:       cfg.Storage.RegionStorePath,
		InMemory:   cfg.Storage.RegionStoreInMemory,
		SyncWrites: cfg.Storage.SyncWrites,
	}, storeMetrics)
	if err != nil {
		_ = flat.Close()
		return nil, fmt.Errorf("failed to open region record store: %w", err)
	}
	promMetrics.RegisterBadgerMetrics(nil, records)

	selector := store.NewSelector(flat, records)

	c := cache.New(selector, cache.Config{
		MaxSize:      int64(cfg.Cache.MaxSize.Bytes()),
		FlushWorkers: cfg.Cache.FlushWorkers,
	}, promMetrics.NewCacheMetrics(nil))

	tracker, err := transfer.NewTracker(cfg.Transfer.RecentCapacity, promMetrics.NewTransferMetrics(nil))
	if err != nil {
		_ = selector.Close()
		return nil, fmt.Errorf("failed to create transfer tracker: %w", err)
	}
	queue := transfer.NewQueue(tracker, transfer.QueueConfig{
		Workers:    cfg.Transfer.Workers,
		QueueSize:  cfg.Transfer.QueueSize,
		JobTimeout: cfg.Transfer.JobTimeout,
	})

	payloadMetrics := promMetrics.NewPayloadMetrics(nil)
	svc, err := payload.New(c, tracker, queue, payload.Config{Rank: cfg.Server.Rank}, payloadMetrics)
	if err != nil {
		_ = selector.Close()
		return nil, fmt.Errorf("failed to create region service: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		selector: selector,
		service:  svc,
	}

	if cfg.Cache.IdleFlushEnabled() {
		s.flusher = flusher.New(c, flusher.Config{
			SweepInterval: cfg.Cache.FlushInterval,
			IdleTimeout:   cfg.Cache.IdleThreshold,
		}, payloadMetrics)
	}

	if cfg.API.IsEnabled() {
		s.api = api.NewServer(cfg.API, svc)
	}

	logger.Info("Region server assembled",
		logger.KeyServerRank, cfg.Server.Rank,
		"data_root", cfg.Server.DataRoot,
		"cache_max_size", cfg.Cache.MaxSize.HumanReadable(),
		"idle_flush", s.flusher != nil,
		"api", s.api != nil,
	)
	return s, nil
}

// Service returns the region service.
func (s *Server) Service() *payload.Service {
	return s.service
}

// Serve starts the background components and blocks until ctx is cancelled
// or the API server fails. It then shuts everything down. Only the first
// call has effect.
func (s *Server) Serve(ctx context.Context) error {
	var err error
	s.serveOnce.Do(func() {
		err = s.serve(ctx)
	})
	return err
}

func (s *Server) serve(ctx context.Context) error {
	logger.Info("Starting region server", logger.KeyServerRank, s.service.Rank())

	if s.flusher != nil {
		s.flusher.Start(ctx)
	}

	apiErrChan := make(chan error, 1)
	if s.api != nil {
		go func() {
			if err := s.api.Start(ctx); err != nil {
				logger.Error("API server error", logger.KeyError, err)
				apiErrChan <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-apiErrChan:
		logger.Error("API server failed - initiating shutdown", logger.KeyError, err)
		serveErr = fmt.Errorf("API server error: %w", err)
	}

	if err := s.Close(); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	logger.Info("Region server stopped")
	return serveErr
}

// Close stops the flusher and the API server, drains the transfer queue,
// flushes the cache and closes the stores, all within the configured
// shutdown timeout. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown()
	})
	return s.closeErr
}

func (s *Server) shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	if s.flusher != nil {
		logger.Debug("Stopping idle flusher")
		s.flusher.Stop()
	}

	if s.api != nil {
		if err := s.api.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("Flushing region cache")
	if err := s.service.Close(ctx); err != nil {
		logger.Error("Final cache flush failed", logger.KeyError, err)
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}

	if err := s.selector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stores: %w", err))
	}

	return errors.Join(errs...)
}
