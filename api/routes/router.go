package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dromeroc/tiendapos-backend/api/controllers"
	"github.com/dromeroc/tiendapos-backend/api/middleware"
	"github.com/dromeroc/tiendapos-backend/internal/audit"
	authsvc "github.com/dromeroc/tiendapos-backend/internal/auth"
	categorysvc "github.com/dromeroc/tiendapos-backend/internal/categories"
	inventorysvc "github.com/dromeroc/tiendapos-backend/internal/inventory"
	productsvc "github.com/dromeroc/tiendapos-backend/internal/products"
	reportsvc "github.com/dromeroc/tiendapos-backend/internal/reports"
	salesvc "github.com/dromeroc/tiendapos-backend/internal/sales"
	configsvc "github.com/dromeroc/tiendapos-backend/internal/storeconfig"
	usersvc "github.com/dromeroc/tiendapos-backend/internal/users"
	"github.com/dromeroc/tiendapos-backend/pkg/auth/session"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/metrics"
	pkgredis "github.com/dromeroc/tiendapos-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    db.Pinger
	RedisClient *pkgredis.Client
	Sessions    session.AccessSessionChecker
	HTTPMetrics *metrics.HTTPMetrics
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	AuthService      authsvc.Service
	UserService      usersvc.Service
	CategoryService  categorysvc.Service
	ProductService   productsvc.Service
	InventoryService inventorysvc.Service
	SaleService      salesvc.Service
	ReportService    reportsvc.Service
	ConfigService    configsvc.Service
	AuditRepo        *audit.Repository
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginAccountLimit,
	)

	adminOnly := middleware.RequireRole(string(enums.UserRoleAdmin), logg)

	// Interface arguments stay nil when Redis is not wired, as in tests.
	var redisPinger pkgredis.Pinger
	var idemStore pkgredis.IdempotencyStore
	if deps.RedisClient != nil {
		redisPinger = deps.RedisClient
		idemStore = deps.RedisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, redisPinger))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// The /api/v1/auth subtree shadows the /api/v1 group, so logout
	// carries its own Auth middleware here.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RedisClient, logg)).Post("/login", controllers.Login(deps.AuthService, logg))
		r.Post("/refresh", controllers.Refresh(deps.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/logout", controllers.Logout(deps.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.CategoryService, logg))
			r.Get("/{categoryId}", controllers.GetCategory(deps.CategoryService, logg))
			r.With(adminOnly).Post("/", controllers.CreateCategory(deps.CategoryService, logg))
			r.With(adminOnly).Put("/{categoryId}", controllers.UpdateCategory(deps.CategoryService, logg))
			r.With(adminOnly).Delete("/{categoryId}", controllers.DeleteCategory(deps.CategoryService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.ProductService, logg))
			r.Get("/barcode/{barcode}", controllers.GetProductByBarcode(deps.ProductService, logg))
			r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
			r.With(adminOnly).Post("/", controllers.CreateProduct(deps.ProductService, logg))
			r.With(adminOnly).Put("/{productId}", controllers.UpdateProduct(deps.ProductService, logg))
			r.With(adminOnly).Delete("/{productId}", controllers.DeleteProduct(deps.ProductService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", controllers.LowStockProducts(deps.InventoryService, logg))
			r.Get("/report", controllers.InventoryReport(deps.InventoryService, logg))
			r.Get("/{productId}/movements", controllers.ProductMovements(deps.InventoryService, logg))
			r.Post("/{productId}/entry", controllers.StockEntry(deps.InventoryService, logg))
			r.With(adminOnly).Post("/{productId}/adjust", controllers.StockAdjust(deps.InventoryService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.CreateSale(deps.SaleService, logg))
			r.Get("/", controllers.ListSales(deps.SaleService, logg))
			r.Get("/{saleId}", controllers.GetSale(deps.SaleService, logg))
			r.With(adminOnly).Post("/{saleId}/void", controllers.VoidSale(deps.SaleService, logg))
			r.Post("/{saleId}/return", controllers.ReturnSale(deps.SaleService, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/me/password", controllers.ChangeMyPassword(deps.UserService, logg))
			r.With(adminOnly).Post("/", controllers.CreateUser(deps.UserService, logg))
			r.With(adminOnly).Get("/", controllers.ListUsers(deps.UserService, logg))
			r.With(adminOnly).Get("/{userId}", controllers.GetUser(deps.UserService, logg))
			r.With(adminOnly).Put("/{userId}", controllers.UpdateUser(deps.UserService, logg))
			r.With(adminOnly).Post("/{userId}/reset-password", controllers.ResetUserPassword(deps.UserService, logg))
			r.With(adminOnly).Delete("/{userId}", controllers.DeleteUser(deps.UserService, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/summary", controllers.SalesSummary(deps.ReportService, logg))
			r.Get("/daily", controllers.DailySales(deps.ReportService, logg))
			r.Get("/top-products", controllers.TopProducts(deps.ReportService, logg))
			r.Get("/payments", controllers.PaymentBreakdown(deps.ReportService, logg))
			r.Get("/sales.csv", controllers.ExportSalesCSV(deps.ReportService, logg))
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", controllers.GetStoreConfig(deps.ConfigService, logg))
			r.With(adminOnly).Put("/", controllers.UpdateStoreConfig(deps.ConfigService, logg))
		})

		r.With(adminOnly).Get("/audit-logs", controllers.ListAuditLogs(deps.AuditRepo, logg))
	})

	return r
}
