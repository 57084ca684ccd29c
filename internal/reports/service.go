package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
)

// Service aggregates sales data for the back office. Voided sales are
// excluded from every report.
type Service interface {
	Summary(ctx context.Context, dateRange Range) (*Summary, error)
	DailySales(ctx context.Context, dateRange Range) ([]DailyPoint, error)
	TopProducts(ctx context.Context, dateRange Range, limit int) ([]TopProduct, error)
	PaymentBreakdown(ctx context.Context, dateRange Range) ([]PaymentBucket, error)
	ExportSalesCSV(ctx context.Context, dateRange Range, w io.Writer) error
}

// Range bounds a report period. Both ends are inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	if r.To.Before(r.From) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date precedes start date")
	}
	return nil
}

// Summary totals the period's register activity.
type Summary struct {
	TotalSales    int64           `json:"total_sales"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalRefunds  decimal.Decimal `json:"total_refunds"`
	NetRevenue    decimal.Decimal `json:"net_revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// DailyPoint is one day in the sales series.
type DailyPoint struct {
	Day     string          `json:"day"`
	Sales   int64           `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct ranks an item by units sold in the period.
type TopProduct struct {
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	UnitsSold   int64           `json:"units_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// PaymentBucket breaks revenue down by payment method.
type PaymentBucket struct {
	PaymentMethod string          `json:"payment_method"`
	Sales         int64           `json:"sales"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type service struct {
	dbClient *db.Client
}

// NewService constructs the reports service.
func NewService(dbClient *db.Client) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{dbClient: dbClient}, nil
}

// countedSales scopes a query to non-voided sales inside the range.
func (s *service) countedSales(ctx context.Context, dateRange Range) *gorm.DB {
	return s.dbClient.DB().WithContext(ctx).
		Model(&models.Sale{}).
		Where("status != ?", enums.SaleStatusVoided).
		Where("created_at >= ? AND created_at <= ?", dateRange.From, dateRange.To)
}

func (s *service) Summary(ctx context.Context, dateRange Range) (*Summary, error) {
	if err := dateRange.validate(); err != nil {
		return nil, err
	}

	var totals struct {
		Count    int64
		Revenue  decimal.Decimal
		Tax      decimal.Decimal
		Discount decimal.Decimal
	}
	err := s.countedSales(ctx, dateRange).
		Select("COUNT(*) AS count, " +
			"COALESCE(SUM(total), 0) AS revenue, " +
			"COALESCE(SUM(tax_amount), 0) AS tax, " +
			"COALESCE(SUM(discount_amount), 0) AS discount").
		Scan(&totals).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing sales")
	}

	var refunds decimal.Decimal
	err = s.dbClient.DB().WithContext(ctx).
		Model(&models.Return{}).
		Where("created_at >= ? AND created_at <= ?", dateRange.From, dateRange.To).
		Select("COALESCE(SUM(total_refund), 0)").
		Scan(&refunds).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing refunds")
	}

	summary := &Summary{
		TotalSales:    totals.Count,
		TotalRevenue:  totals.Revenue.Round(2),
		TotalTax:      totals.Tax.Round(2),
		TotalDiscount: totals.Discount.Round(2),
		TotalRefunds:  refunds.Round(2),
	}
	summary.NetRevenue = summary.TotalRevenue.Sub(summary.TotalRefunds)
	if totals.Count > 0 {
		summary.AverageTicket = summary.TotalRevenue.Div(decimal.NewFromInt(totals.Count)).Round(2)
	}
	return summary, nil
}

func (s *service) DailySales(ctx context.Context, dateRange Range) ([]DailyPoint, error) {
	if err := dateRange.validate(); err != nil {
		return nil, err
	}

	var points []DailyPoint
	// DATE() works on both Postgres and sqlite.
	err := s.countedSales(ctx, dateRange).
		Select("DATE(created_at) AS day, COUNT(*) AS sales, COALESCE(SUM(total), 0) AS revenue").
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&points).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grouping daily sales")
	}
	return points, nil
}

func (s *service) TopProducts(ctx context.Context, dateRange Range, limit int) ([]TopProduct, error) {
	if err := dateRange.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []TopProduct
	err := s.dbClient.DB().WithContext(ctx).
		Model(&models.SaleItem{}).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status != ?", enums.SaleStatusVoided).
		Where("sales.created_at >= ? AND sales.created_at <= ?", dateRange.From, dateRange.To).
		Select("sale_items.product_sku AS product_sku, " +
			"sale_items.product_name AS product_name, " +
			"SUM(sale_items.quantity) AS units_sold, " +
			"COALESCE(SUM(sale_items.total), 0) AS revenue").
		Group("sale_items.product_sku, sale_items.product_name").
		Order("units_sold DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ranking products")
	}
	return rows, nil
}

func (s *service) PaymentBreakdown(ctx context.Context, dateRange Range) ([]PaymentBucket, error) {
	if err := dateRange.validate(); err != nil {
		return nil, err
	}

	var rows []PaymentBucket
	err := s.countedSales(ctx, dateRange).
		Select("payment_method AS payment_method, COUNT(*) AS sales, COALESCE(SUM(total), 0) AS revenue").
		Group("payment_method").
		Order("revenue DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grouping by payment method")
	}
	return rows, nil
}

var csvHeader = []string{
	"receipt_number", "created_at", "status", "payment_method",
	"subtotal", "discount_amount", "tax_amount", "total",
	"amount_paid", "change_amount",
}

// ExportSalesCSV streams the period's sales as CSV, oldest first.
func (s *service) ExportSalesCSV(ctx context.Context, dateRange Range, w io.Writer) error {
	if err := dateRange.validate(); err != nil {
		return err
	}

	var sales []models.Sale
	err := s.countedSales(ctx, dateRange).
		Order("created_at ASC").
		Find(&sales).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading sales")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing csv header")
	}
	for _, sale := range sales {
		record := []string{
			sale.ReceiptNumber,
			sale.CreatedAt.UTC().Format(time.RFC3339),
			sale.Status.String(),
			sale.PaymentMethod.String(),
			sale.Subtotal.StringFixed(2),
			sale.DiscountAmount.StringFixed(2),
			sale.TaxAmount.StringFixed(2),
			sale.Total.StringFixed(2),
			sale.AmountPaid.StringFixed(2),
			sale.ChangeAmount.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flushing csv")
	}
	return nil
}
