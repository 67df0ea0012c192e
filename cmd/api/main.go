package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/config"
	"github.com/noah-isme/gema-access/internal/database"
	"github.com/noah-isme/gema-access/internal/handler"
	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/observability"
	"github.com/noah-isme/gema-access/internal/repository"
	"github.com/noah-isme/gema-access/internal/router"
	"github.com/noah-isme/gema-access/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled, permission matrix cache off")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	var publisher service.ActivityPublisher
	if natsConn != nil {
		defer natsConn.Drain()
		publisher = natsConn
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	moduleRepo := repository.NewModuleRepository(db)
	customRoleRepo := repository.NewCustomRoleRepository(db)
	rolePermissionRepo := repository.NewRolePermissionRepository(db)
	userRoleRepo := repository.NewUserRoleRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	legacyRepo := repository.NewLegacyPermissionRepository(db)

	matrixCache := service.NewMatrixCache(redisClient, cfg.MatrixCacheTTL, logger)
	directory := service.NewUserDirectory(profileRepo, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL, logger)
	activityService := service.NewActivityService(activityRepo, directory, publisher, cfg.ChannelBase, logger)
	registryService := service.NewRegistryService(moduleRepo, customRoleRepo, userRoleRepo, logger)
	rolePermissionService := service.NewRolePermissionService(rolePermissionRepo, registryService, matrixCache, activityService, logger)
	userRoleService := service.NewUserRoleService(userRoleRepo, registryService, matrixCache, activityService, service.UserRoleOptions{
		GuardLastSuperAdmin: cfg.GuardLastSuperAdmin,
	}, logger)
	customRoleService := service.NewCustomRoleService(customRoleRepo, matrixCache, activityService, logger)
	resolver := service.NewPermissionResolver(userRoleRepo, rolePermissionRepo, registryService, directory, matrixCache, logger)
	legacyService := service.NewLegacyPermissionService(legacyRepo, logger)

	if cfg.SeedModules {
		if _, err := registryService.SeedModules(ctx, nil); err != nil {
			log.Fatalf("failed to seed modules: %v", err)
		}
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		RegistryHandler:       handler.NewRegistryHandler(registryService, customRoleService, validate, logger),
		RolePermissionHandler: handler.NewRolePermissionHandler(rolePermissionService, resolver, registryService, validate, logger),
		UserRoleHandler:       handler.NewUserRoleHandler(userRoleService, resolver, registryService, legacyService, validate, logger),
		AccessHandler:         handler.NewAccessHandler(resolver, logger),
		ActivityHandler:       handler.NewActivityHandler(activityService, logger),
		HealthProbes:          probes,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		MutationLimiter:       middleware.RateLimit("rbac_mutation", cfg.MutationRateLimit, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("access-control service started")
	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
