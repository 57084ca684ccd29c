package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dromeroc/tiendapos-backend/api/routes"
	"github.com/dromeroc/tiendapos-backend/internal/audit"
	authsvc "github.com/dromeroc/tiendapos-backend/internal/auth"
	categorysvc "github.com/dromeroc/tiendapos-backend/internal/categories"
	inventorysvc "github.com/dromeroc/tiendapos-backend/internal/inventory"
	productsvc "github.com/dromeroc/tiendapos-backend/internal/products"
	reportsvc "github.com/dromeroc/tiendapos-backend/internal/reports"
	salesvc "github.com/dromeroc/tiendapos-backend/internal/sales"
	"github.com/dromeroc/tiendapos-backend/internal/sequence"
	configsvc "github.com/dromeroc/tiendapos-backend/internal/storeconfig"
	usersvc "github.com/dromeroc/tiendapos-backend/internal/users"
	"github.com/dromeroc/tiendapos-backend/pkg/auth/session"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/metrics"
	"github.com/dromeroc/tiendapos-backend/pkg/migrate"
	"github.com/dromeroc/tiendapos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	saleMetrics := metrics.NewSaleMetrics(registry)

	auditRepo := audit.NewRepository(dbClient.DB())
	recorder, err := audit.NewRecorder(auditRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	generator := sequence.NewGenerator(map[string]sequence.Defaults{
		cfg.Receipts.SequenceName: {
			Prefix:  cfg.Receipts.Prefix,
			Padding: cfg.Receipts.Padding,
		},
	})

	authService, err := authsvc.NewService(dbClient, sessionManager, recorder, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	userService, err := usersvc.NewService(dbClient, recorder, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}
	categoryService, err := categorysvc.NewService(dbClient, recorder)
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}
	productService, err := productsvc.NewService(dbClient, recorder)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	inventoryService, err := inventorysvc.NewService(dbClient, recorder)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	saleService, err := salesvc.NewService(dbClient, generator, recorder, saleMetrics, salesvc.Options{
		ReceiptSequence: cfg.Receipts.SequenceName,
		LockTimeout:     cfg.Sales.LockTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sale service", err)
		os.Exit(1)
	}
	reportService, err := reportsvc.NewService(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create report service", err)
		os.Exit(1)
	}
	configService, err := configsvc.NewService(dbClient, recorder)
	if err != nil {
		logg.Error(context.Background(), "failed to create config service", err)
		os.Exit(1)
	}

	// Seed the singleton store configuration on first boot.
	if _, err := configService.Ensure(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to ensure store config", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			RedisClient:      redisClient,
			Sessions:         sessionManager,
			HTTPMetrics:      httpMetrics,
			MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			AuthService:      authService,
			UserService:      userService,
			CategoryService:  categoryService,
			ProductService:   productService,
			InventoryService: inventoryService,
			SaleService:      saleService,
			ReportService:    reportService,
			ConfigService:    configService,
			AuditRepo:        auditRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
