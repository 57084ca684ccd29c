package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreConfig is the singleton row holding store identity, theme,
// tax defaults, receipt text, and operational policies.
type StoreConfig struct {
	ID                     uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoreName              string          `gorm:"column:store_name;not null;default:'Mi Tienda'" json:"store_name"`
	StoreAddress           *string         `gorm:"column:store_address" json:"store_address,omitempty"`
	StorePhone             *string         `gorm:"column:store_phone" json:"store_phone,omitempty"`
	StoreEmail             *string         `gorm:"column:store_email" json:"store_email,omitempty"`
	StoreRUT               *string         `gorm:"column:store_rut" json:"store_rut,omitempty"`
	LogoURL                *string         `gorm:"column:logo_url" json:"logo_url,omitempty"`
	PrimaryColor           string          `gorm:"column:primary_color;not null;default:'#3B82F6'" json:"primary_color"`
	SecondaryColor         string          `gorm:"column:secondary_color;not null;default:'#1E40AF'" json:"secondary_color"`
	AccentColor            string          `gorm:"column:accent_color;not null;default:'#F59E0B'" json:"accent_color"`
	TaxEnabled             bool            `gorm:"column:tax_enabled;not null" json:"tax_enabled"`
	TaxRate                decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,4);not null" json:"tax_rate"`
	TaxName                string          `gorm:"column:tax_name;not null;default:'IVA'" json:"tax_name"`
	ReceiptHeader          *string         `gorm:"column:receipt_header" json:"receipt_header,omitempty"`
	ReceiptFooter          *string         `gorm:"column:receipt_footer" json:"receipt_footer,omitempty"`
	MaxFailedAttempts      int             `gorm:"column:max_failed_attempts;not null" json:"max_failed_attempts"`
	LockoutDurationMinutes int             `gorm:"column:lockout_duration_minutes;not null" json:"lockout_duration_minutes"`
	AllowNegativeStock     bool            `gorm:"column:allow_negative_stock;not null" json:"allow_negative_stock"`
	LowStockThreshold      int             `gorm:"column:low_stock_threshold;not null" json:"low_stock_threshold"`
	CurrencySymbol         string          `gorm:"column:currency_symbol;not null;default:'$'" json:"currency_symbol"`
	CurrencyCode           string          `gorm:"column:currency_code;not null;default:'CLP'" json:"currency_code"`
	DarkModeDefault        bool            `gorm:"column:dark_mode_default;not null" json:"dark_mode_default"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName pins the singular table used by the configuration singleton.
func (StoreConfig) TableName() string {
	return "store_config"
}
