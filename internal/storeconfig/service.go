package storeconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
)

// Service exposes the store configuration singleton.
type Service interface {
	Ensure(ctx context.Context) (*models.StoreConfig, error)
	Get(ctx context.Context) (*models.StoreConfig, error)
	Update(ctx context.Context, actor Actor, input UpdateInput) (*models.StoreConfig, error)
}

// Actor identifies who performed a mutation, for the audit trail.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// UpdateInput holds optional mutation values for the configuration.
type UpdateInput struct {
	StoreName              *string          `json:"store_name" validate:"omitempty,min=1,max=200"`
	StoreAddress           *string          `json:"store_address"`
	StorePhone             *string          `json:"store_phone"`
	StoreEmail             *string          `json:"store_email" validate:"omitempty,email"`
	StoreRUT               *string          `json:"store_rut"`
	LogoURL                *string          `json:"logo_url"`
	PrimaryColor           *string          `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor         *string          `json:"secondary_color" validate:"omitempty,hexcolor"`
	AccentColor            *string          `json:"accent_color" validate:"omitempty,hexcolor"`
	TaxEnabled             *bool            `json:"tax_enabled"`
	TaxRate                *decimal.Decimal `json:"tax_rate"`
	TaxName                *string          `json:"tax_name" validate:"omitempty,max=50"`
	ReceiptHeader          *string          `json:"receipt_header"`
	ReceiptFooter          *string          `json:"receipt_footer"`
	MaxFailedAttempts      *int             `json:"max_failed_attempts" validate:"omitempty,min=1,max=20"`
	LockoutDurationMinutes *int             `json:"lockout_duration_minutes" validate:"omitempty,min=1,max=1440"`
	AllowNegativeStock     *bool            `json:"allow_negative_stock"`
	LowStockThreshold      *int             `json:"low_stock_threshold" validate:"omitempty,min=0"`
	CurrencySymbol         *string          `json:"currency_symbol" validate:"omitempty,max=10"`
	CurrencyCode           *string          `json:"currency_code" validate:"omitempty,len=3"`
	DarkModeDefault        *bool            `json:"dark_mode_default"`
}

type service struct {
	dbClient *db.Client
	recorder *audit.Recorder
}

// NewService constructs the configuration service.
func NewService(dbClient *db.Client, recorder *audit.Recorder) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{dbClient: dbClient, recorder: recorder}, nil
}

// Ensure returns the singleton row, creating it with defaults on first boot.
func (s *service) Ensure(ctx context.Context) (*models.StoreConfig, error) {
	cfg, err := s.load(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store config")
	}

	created := defaultConfig()
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		// A concurrent boot may have inserted the row already.
		var existing models.StoreConfig
		if lookupErr := tx.First(&existing).Error; lookupErr == nil {
			created = &existing
			return nil
		} else if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}
		return tx.Create(created).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating store config")
	}
	return created, nil
}

// Get returns the singleton row without creating it.
func (s *service) Get(ctx context.Context) (*models.StoreConfig, error) {
	cfg, err := s.load(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store config not initialized")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store config")
	}
	return cfg, nil
}

// Update applies the provided fields and audits before/after values.
func (s *service) Update(ctx context.Context, actor Actor, input UpdateInput) (*models.StoreConfig, error) {
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax_rate must be between 0 and 1")
		}
	}

	var before, after *models.StoreConfig
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var cfg models.StoreConfig
		if err := db.LockForUpdate(tx).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "store config not initialized")
			}
			return err
		}
		snapshot := cfg
		before = &snapshot

		applyUpdate(&cfg, input)
		if err := tx.Save(&cfg).Error; err != nil {
			return err
		}
		after = &cfg
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating store config")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionConfigUpdate,
		Entity:      "STORE_CONFIG",
		EntityID:    &after.ID,
		Description: "store configuration updated",
		OldValues:   before,
		NewValues:   after,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return after, nil
}

func (s *service) load(ctx context.Context) (*models.StoreConfig, error) {
	var cfg models.StoreConfig
	if err := s.dbClient.DB().WithContext(ctx).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() *models.StoreConfig {
	footer := "Gracias por su compra"
	return &models.StoreConfig{
		ID:                     uuid.New(),
		StoreName:              "Mi Tienda",
		PrimaryColor:           "#3B82F6",
		SecondaryColor:         "#1E40AF",
		AccentColor:            "#F59E0B",
		TaxEnabled:             true,
		TaxRate:                decimal.RequireFromString("0.19"),
		TaxName:                "IVA",
		ReceiptFooter:          &footer,
		MaxFailedAttempts:      5,
		LockoutDurationMinutes: 15,
		AllowNegativeStock:     false,
		LowStockThreshold:      10,
		CurrencySymbol:         "$",
		CurrencyCode:           "CLP",
	}
}

func applyUpdate(cfg *models.StoreConfig, input UpdateInput) {
	if input.StoreName != nil {
		cfg.StoreName = *input.StoreName
	}
	if input.StoreAddress != nil {
		cfg.StoreAddress = input.StoreAddress
	}
	if input.StorePhone != nil {
		cfg.StorePhone = input.StorePhone
	}
	if input.StoreEmail != nil {
		cfg.StoreEmail = input.StoreEmail
	}
	if input.StoreRUT != nil {
		cfg.StoreRUT = input.StoreRUT
	}
	if input.LogoURL != nil {
		cfg.LogoURL = input.LogoURL
	}
	if input.PrimaryColor != nil {
		cfg.PrimaryColor = *input.PrimaryColor
	}
	if input.SecondaryColor != nil {
		cfg.SecondaryColor = *input.SecondaryColor
	}
	if input.AccentColor != nil {
		cfg.AccentColor = *input.AccentColor
	}
	if input.TaxEnabled != nil {
		cfg.TaxEnabled = *input.TaxEnabled
	}
	if input.TaxRate != nil {
		cfg.TaxRate = *input.TaxRate
	}
	if input.TaxName != nil {
		cfg.TaxName = *input.TaxName
	}
	if input.ReceiptHeader != nil {
		cfg.ReceiptHeader = input.ReceiptHeader
	}
	if input.ReceiptFooter != nil {
		cfg.ReceiptFooter = input.ReceiptFooter
	}
	if input.MaxFailedAttempts != nil {
		cfg.MaxFailedAttempts = *input.MaxFailedAttempts
	}
	if input.LockoutDurationMinutes != nil {
		cfg.LockoutDurationMinutes = *input.LockoutDurationMinutes
	}
	if input.AllowNegativeStock != nil {
		cfg.AllowNegativeStock = *input.AllowNegativeStock
	}
	if input.LowStockThreshold != nil {
		cfg.LowStockThreshold = *input.LowStockThreshold
	}
	if input.CurrencySymbol != nil {
		cfg.CurrencySymbol = *input.CurrencySymbol
	}
	if input.CurrencyCode != nil {
		cfg.CurrencyCode = *input.CurrencyCode
	}
	if input.DarkModeDefault != nil {
		cfg.DarkModeDefault = *input.DarkModeDefault
	}
}
