package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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
	pkgauth "github.com/dromeroc/tiendapos-backend/pkg/auth"
	"github.com/dromeroc/tiendapos-backend/pkg/auth/session"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/metrics"
	"github.com/dromeroc/tiendapos-backend/pkg/security"
)

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := uuid.NewString()
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	newID := session.NewAccessID()
	token := uuid.NewString()
	f.tokens[newID] = token
	return newID, token, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, accessID)
	return nil
}

func (f *fakeSessions) HasSession(_ context.Context, accessID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[accessID]
	return ok, nil
}

func (f *fakeSessions) put(accessID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[accessID] = uuid.NewString()
}

type testEnv struct {
	handler  http.Handler
	conn     *gorm.DB
	cfg      *config.Config
	sessions *fakeSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.InventoryMovement{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Return{},
		&models.ReturnItem{},
		&models.Sequence{},
		&models.StoreConfig{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "router_test", Output: io.Discard})
	client := db.NewFromConn(conn)
	repo := audit.NewRepository(conn)
	recorder, err := audit.NewRecorder(repo, logg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	sessions := newFakeSessions()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.Port = "8080"
	cfg.JWT = config.JWTConfig{
		Secret:                 "router-secret",
		Issuer:                 "tiendapos",
		ExpirationMinutes:      60,
		RefreshTokenTTLMinutes: 60,
	}
	// Low-cost parameters keep the argon2 hashing fast in tests.
	cfg.Password = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

	authService, err := authsvc.NewService(client, sessions, recorder, cfg.JWT)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	userService, err := usersvc.NewService(client, recorder, cfg.Password)
	if err != nil {
		t.Fatalf("user service: %v", err)
	}
	categoryService, err := categorysvc.NewService(client, recorder)
	if err != nil {
		t.Fatalf("category service: %v", err)
	}
	productService, err := productsvc.NewService(client, recorder)
	if err != nil {
		t.Fatalf("product service: %v", err)
	}
	inventoryService, err := inventorysvc.NewService(client, recorder)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	generator := sequence.NewGenerator(map[string]sequence.Defaults{
		"receipt": {Prefix: "R", Padding: 8},
	})
	saleService, err := salesvc.NewService(client, generator, recorder, metrics.NewSaleMetrics(nil), salesvc.Options{ReceiptSequence: "receipt"})
	if err != nil {
		t.Fatalf("sale service: %v", err)
	}
	reportService, err := reportsvc.NewService(client)
	if err != nil {
		t.Fatalf("report service: %v", err)
	}
	configService, err := configsvc.NewService(client, recorder)
	if err != nil {
		t.Fatalf("config service: %v", err)
	}

	handler := NewRouter(Deps{
		Config:           cfg,
		Logger:           logg,
		DBPinger:         client,
		Sessions:         sessions,
		AuthService:      authService,
		UserService:      userService,
		CategoryService:  categoryService,
		ProductService:   productService,
		InventoryService: inventoryService,
		SaleService:      saleService,
		ReportService:    reportService,
		ConfigService:    configService,
		AuditRepo:        repo,
	})

	return &testEnv{handler: handler, conn: conn, cfg: cfg, sessions: sessions}
}

func (e *testEnv) seedUser(t *testing.T, username, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, e.cfg.Password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        username + "@tienda.local",
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	if err := e.conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// mintToken issues an access token and registers its session, bypassing
// the login endpoint.
func (e *testEnv) mintToken(t *testing.T, user *models.User) string {
	t.Helper()
	accessID := session.NewAccessID()
	e.sessions.put(accessID)
	token, err := pkgauth.MintAccessToken(e.cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		JTI:      accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v (body %s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body %s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func TestHealthAndPublicPing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-TiendaPOS-Env") != "test" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-TiendaPOS-Env"))
	}

	rec = env.do(t, http.MethodGet, "/health/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/public/ping", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected public ping 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/api/v1/products", "/api/v1/sales", "/api/v1/config"} {
		rec := env.do(t, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Secret123!", enums.UserRoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "Secret123!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeData(t, rec, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", pair)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/ping", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("private ping failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/ping", pair.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to fail, got %d", rec.Code)
	}
}

func TestBadLoginReturnsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "Secret123!", enums.UserRoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %s", code)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	env := newTestEnv(t)
	seller := env.seedUser(t, "cajero1", "Secret123!", enums.UserRoleSeller)
	admin := env.seedUser(t, "admin", "Secret123!", enums.UserRoleAdmin)

	sellerToken := env.mintToken(t, seller)
	adminToken := env.mintToken(t, admin)

	rec := env.do(t, http.MethodGet, "/api/v1/users", sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/reports/summary?from=2026-01-01&to=2026-01-31", sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller reports, got %d", rec.Code)
	}
}

func TestCatalogAndSaleFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin", "Secret123!", enums.UserRoleAdmin)
	token := env.mintToken(t, admin)

	rec := env.do(t, http.MethodPost, "/api/v1/categories", token, map[string]any{
		"name": "Bebidas",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	var category struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &category)

	rec = env.do(t, http.MethodPost, "/api/v1/products", token, map[string]any{
		"sku":           "SKU-COLA",
		"barcode":       "7801234567890",
		"name":          "Bebida Cola 1.5L",
		"category_id":   category.ID,
		"sale_price":    "1000.00",
		"cost_price":    "600.00",
		"tax_rate":      "0.19",
		"initial_stock": 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", rec.Code, rec.Body.String())
	}
	var product struct {
		ID           string `json:"id"`
		CurrentStock int    `json:"current_stock"`
	}
	decodeData(t, rec, &product)
	if product.CurrentStock != 10 {
		t.Fatalf("expected initial stock 10, got %d", product.CurrentStock)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/barcode/7801234567890", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("barcode lookup: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{
			{"product_id": product.ID, "quantity": 2},
		},
		"payment_method": "CASH",
		"amount_paid":    "5000.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: %d %s", rec.Code, rec.Body.String())
	}
	var sale struct {
		ID            string      `json:"id"`
		ReceiptNumber string      `json:"receipt_number"`
		Total         json.Number `json:"total"`
		ChangeAmount  json.Number `json:"change_amount"`
	}
	decodeData(t, rec, &sale)
	if sale.ReceiptNumber != "R00000001" {
		t.Fatalf("expected receipt R00000001, got %s", sale.ReceiptNumber)
	}
	if sale.Total.String() != "2380" {
		t.Fatalf("expected total 2380, got %s", sale.Total)
	}
	if sale.ChangeAmount.String() != "2620" {
		t.Fatalf("expected change 2620, got %s", sale.ChangeAmount)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sales", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sales: %d %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Total int64 `json:"total"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("expected 1 sale, got %d", page.Total)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/inventory/%s/movements", product.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("movements: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReportRangeValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin", "Secret123!", enums.UserRoleAdmin)
	token := env.mintToken(t, admin)

	rec := env.do(t, http.MethodGet, "/api/v1/reports/summary", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}
