package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/config"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/handler"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/hub"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/idgen"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/ingest"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/journal"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/registry"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/relay"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/service"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/database"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/metrics"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/pubsub"
)

const serviceName = "overlay-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: serviceName,
		InstanceID:  cfg.Registry.InstanceID,
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	// Metrics
	provider, err := metrics.Init(ctx, metrics.Config{
		Enabled:     cfg.Metrics.Enabled,
		Endpoint:    cfg.Metrics.Endpoint,
		Insecure:    cfg.Metrics.Insecure,
		Interval:    cfg.Metrics.Interval,
		ServiceName: serviceName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Session registry
	var reg registry.SessionRegistry
	var redisReg *registry.RedisRegistry
	switch cfg.Registry.Driver {
	case "redis":
		redisReg, err = registry.NewRedisRegistry(cfg.Redis, cfg.Registry)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect registry to redis")
		}
		reg = redisReg
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis registry")
	default:
		reg = registry.NewMemoryRegistry(cfg.Registry.InstanceID)
	}

	// Content ids
	ids, err := idgen.New(cfg.ID.Strategy)
	if err != nil {
		logger.Fatal().Err(err).Str("strategy", cfg.ID.Strategy).Msg("failed to create id generator")
	}

	rotation := make([]domain.ContentType, 0, len(cfg.Session.TickerRotation))
	for _, t := range cfg.Session.TickerRotation {
		rotation = append(rotation, domain.ContentType(t))
	}

	manager := coordinator.NewManager(reg, coordinator.Config{
		Show:             domain.ShowContext(cfg.Session.DefaultShow),
		TickerRotation:   rotation,
		RotationInterval: cfg.Session.RotationInterval,
	}, coordinator.Deps{
		Creator: prioritizer.NewCreator(ids, nil),
		Logger:  logger,
	})
	if redisReg != nil {
		redisReg.OnLost(manager.Drop)
	}

	// Event journal
	var store journal.Store
	switch cfg.Database.Driver {
	case "memory", "":
		store = journal.NewMemoryStore(0)
	default:
		db, err := database.New(&database.Config{
			Driver:   cfg.Database.Driver,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			FilePath: cfg.Database.Path,
			LogLevel: "warn",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		gormStore := journal.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
		store = gormStore
	}

	overlaySvc := service.NewOverlayService(manager, reg, store)

	// Bus: ingest and snapshot relay
	var bus pubsub.PubSub
	if cfg.PubSub.Enabled {
		bus, err = pubsub.NewPubSub(pubsub.Config{
			Driver: cfg.PubSub.Driver,
			Redis: pubsub.RedisConfig{
				Address:  cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			Kafka: pubsub.KafkaConfig{
				Brokers:     cfg.PubSub.Kafka.Brokers,
				GroupID:     cfg.PubSub.Kafka.GroupID,
				TopicPrefix: cfg.PubSub.ChannelPrefix,
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to connect to pubsub")
		}
		if cfg.PubSub.RelaySnapshots {
			manager.OnOpen(relay.New(bus, cfg.PubSub.ChannelPrefix, cfg.PubSub.RelayBuffer).Attach)
		}
	}

	// Operator auth
	var jwtManager *jwt.Manager
	if cfg.Auth.Enabled {
		jwtManager, err = jwt.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create jwt manager")
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// Websocket hub
	wsHub := hub.NewHub()
	wsHandler := handler.NewWSHandler(wsHub, overlaySvc, cfg.WebSocket)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	h := handler.NewHandler(overlaySvc, authMiddleware, wsHandler, cfg.Registry.InstanceID)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	if err := reg.StartHeartbeat(gctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start registry heartbeat")
	}

	if bus != nil && cfg.PubSub.IngestPattern != "" {
		consumer := ingest.NewConsumer(bus, cfg.PubSub.IngestPattern, overlaySvc)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	if jwtManager != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					jwtManager.CleanupExpiredRevocations()
				}
			}
		})
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("overlay service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down overlay service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
		reg.StopHeartbeat()
		if err := reg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry close: %w", err))
		}
		if bus != nil {
			if err := bus.Close(); err != nil {
				errs = append(errs, fmt.Errorf("pubsub close: %w", err))
			}
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("overlay service stopped with error")
		return
	}
	logger.Info().Msg("overlay service stopped")
}
