package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/eduflow/eduflow/bus"
	"github.com/eduflow/eduflow/config"
	"github.com/eduflow/eduflow/internal/cache"
	"github.com/eduflow/eduflow/internal/database"
	"github.com/eduflow/eduflow/internal/metrics"
	"github.com/eduflow/eduflow/internal/telemetry"
	"github.com/eduflow/eduflow/process"
	"github.com/eduflow/eduflow/workflow"
)

// Server wires the service components together and runs them until a
// shutdown signal arrives.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	providers    *telemetry.Providers
	registry     *prometheus.Registry
	bus          *bus.EventBus
	templates    *workflow.Registry
	handlers     *workflow.HandlerRegistry
	orchestrator *workflow.Orchestrator
	resources    *process.ResourceManager
	manager      *process.Manager
	statusCache  *cache.StatusCache
}

// NewServer builds every component from the configuration. Optional
// subsystems (database, cache, telemetry) degrade to disabled with a
// warning instead of failing startup.
func NewServer(cfg *config.Config, templatesPath string, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		registry:  prometheus.NewRegistry(),
		bus:       bus.New(logger),
		templates: workflow.NewRegistry(),
		handlers:  workflow.NewHandlerRegistry(),
	}

	collector := metrics.NewCollector("eduflow", s.registry, logger)

	if templatesPath != "" {
		n, err := s.loadTemplates(templatesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		logger.Info("templates loaded",
			zap.String("path", templatesPath), zap.Int("count", n))
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	}
	s.providers = providers

	orchOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithBus(s.bus),
		workflow.WithMetrics(collector),
		workflow.WithMaxStepRetries(cfg.Workflow.MaxStepRetries),
		workflow.WithDefaultStepTimeout(cfg.Workflow.DefaultStepTimeout),
	}

	if cfg.Database.Enabled {
		db, err := database.Open(database.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			logger.Warn("database unavailable, history persistence disabled", zap.Error(err))
		} else {
			store, err := workflow.NewGormHistoryStore(db)
			if err != nil {
				return nil, err
			}
			orchOpts = append(orchOpts, workflow.WithHistoryStore(store))
		}
	}

	if cfg.Cache.Enabled {
		statusCache, err := cache.NewStatusCache(cache.Config{
			Addr:         cfg.Cache.Addr,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DefaultTTL:   cfg.Cache.DefaultTTL,
			MaxRetries:   cfg.Cache.MaxRetries,
			PoolSize:     cfg.Cache.PoolSize,
			MinIdleConns: cfg.Cache.MinIdleConns,
		}, logger)
		if err != nil {
			logger.Warn("cache unavailable, status caching disabled", zap.Error(err))
		} else {
			s.statusCache = statusCache
			orchOpts = append(orchOpts, workflow.WithStatusCache(statusCache))
		}
	}

	s.orchestrator = workflow.NewOrchestrator(s.templates, s.handlers, orchOpts...)

	s.resources = process.NewResourceManager(process.Spec{
		MemoryMB:     cfg.Process.Capacity.MemoryMB,
		ComputeUnits: cfg.Process.Capacity.ComputeUnits,
		StorageMB:    cfg.Process.Capacity.StorageMB,
		NetworkKbps:  cfg.Process.Capacity.NetworkKbps,
	}, logger, collector)

	s.manager = process.NewManager(process.Config{
		HealthSweepInterval:   cfg.Process.HealthSweepInterval,
		MaxRestarts:           cfg.Process.MaxRestarts,
		RestartSettleDelay:    cfg.Process.RestartSettleDelay,
		DegradedAfter:         cfg.Process.DegradedAfter,
		UnresponsiveAfter:     cfg.Process.UnresponsiveAfter,
		AutoRestartsPerMinute: cfg.Process.AutoRestartsPerMinute,
	}, s.resources,
		process.WithLogger(logger),
		process.WithBus(s.bus),
		process.WithMetrics(collector),
	)

	return s, nil
}

// templateFile is the on-disk format accepted by --templates.
type templateFile struct {
	Templates []workflow.Template `yaml:"templates"`
}

func (s *Server) loadTemplates(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, err
	}
	for _, tpl := range file.Templates {
		if err := s.templates.Register(tpl); err != nil {
			return 0, err
		}
	}
	return len(file.Templates), nil
}

// Run starts the health sweep and the HTTP endpoint and blocks until a
// SIGINT or SIGTERM arrives, then shuts everything down in reverse order.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.manager.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	var httpServer *http.Server
	if s.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version)
		})
		httpServer = &http.Server{
			Addr:              s.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			s.logger.Info("http endpoint listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("http shutdown failed", zap.Error(err))
			}
		}

		s.manager.Stop()
		s.bus.Stop()
		if s.statusCache != nil {
			if err := s.statusCache.Close(); err != nil {
				s.logger.Warn("cache close failed", zap.Error(err))
			}
		}
		if s.providers != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.providers.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}
		return nil
	})

	return g.Wait()
}
