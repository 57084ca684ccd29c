package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/internal/inventory"
	"github.com/dromeroc/tiendapos-backend/internal/sequence"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/metrics"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

var hundred = decimal.NewFromInt(100)

// Service exposes the sale transaction engine.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateSaleInput) (*models.Sale, error)
	Void(ctx context.Context, actor Actor, saleID uuid.UUID, input VoidInput) (*models.Sale, error)
	Return(ctx context.Context, actor Actor, saleID uuid.UUID, input ReturnInput) (*models.Return, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Sale], error)
	Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
}

// Actor identifies who performed an operation.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// Options tune the engine's locking and numbering behavior.
type Options struct {
	ReceiptSequence string
	LockTimeout     time.Duration
}

type service struct {
	dbClient    *db.Client
	generator   *sequence.Generator
	recorder    *audit.Recorder
	saleMetrics *metrics.SaleMetrics
	opts        Options
}

// NewService constructs the sales engine.
func NewService(dbClient *db.Client, generator *sequence.Generator, recorder *audit.Recorder, saleMetrics *metrics.SaleMetrics, opts Options) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if generator == nil {
		return nil, fmt.Errorf("sequence generator required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if opts.ReceiptSequence == "" {
		opts.ReceiptSequence = "receipt"
	}
	return &service{
		dbClient:    dbClient,
		generator:   generator,
		recorder:    recorder,
		saleMetrics: saleMetrics,
		opts:        opts,
	}, nil
}

// Create registers a sale: locks products in ascending id order, checks
// stock, computes totals, issues the receipt number, and applies SALE
// movements, all in one transaction.
func (s *service) Create(ctx context.Context, actor Actor, input CreateSaleInput) (*models.Sale, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var sale *models.Sale
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := db.SetLocalLockTimeout(tx, s.opts.LockTimeout); err != nil {
			return err
		}

		var cfg models.StoreConfig
		if err := tx.First(&cfg).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		products, err := s.lockProducts(ctx, tx, input.Items, cfg.AllowNegativeStock)
		if err != nil {
			return err
		}

		sale = buildSale(actor.UserID, input, products)
		if sale.PaymentMethod == enums.PaymentMethodCash && sale.AmountPaid.LessThan(sale.Total) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("amount paid %s is less than total %s", sale.AmountPaid, sale.Total))
		}
		sale.ReceiptNumber, err = s.generator.Next(ctx, tx, s.opts.ReceiptSequence)
		if err != nil {
			return err
		}

		if err := tx.Create(sale).Error; err != nil {
			return err
		}

		for _, item := range sale.Items {
			product := products[item.ProductID]
			if _, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
				Product:       product,
				ActorID:       actor.UserID,
				Type:          enums.MovementTypeSale,
				Delta:         -item.Quantity,
				ReferenceID:   &sale.ID,
				ReferenceType: "SALE",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(err, "creating sale")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionSale,
		Entity:      "SALE",
		EntityID:    &sale.ID,
		Description: fmt.Sprintf("sale %s completed, total %s", sale.ReceiptNumber, sale.Total),
		NewValues: map[string]any{
			"receipt_number": sale.ReceiptNumber,
			"total":          sale.Total.String(),
			"items":          len(sale.Items),
		},
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	s.saleMetrics.IncCompleted(sale.PaymentMethod.String(), sale.Total)
	return sale, nil
}

// Void cancels a sale and restores the not-yet-returned quantities.
func (s *service) Void(ctx context.Context, actor Actor, saleID uuid.UUID, input VoidInput) (*models.Sale, error) {
	var sale *models.Sale
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := db.SetLocalLockTimeout(tx, s.opts.LockTimeout); err != nil {
			return err
		}

		loaded, err := lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if loaded.Status == enums.SaleStatusVoided {
			return pkgerrors.New(pkgerrors.CodeConflict, "sale is already voided")
		}

		// Restore stock ascending by product id, same order sales lock in.
		items := append([]models.SaleItem(nil), loaded.Items...)
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})
		for _, item := range items {
			restoreQty := item.Quantity - item.ReturnedQty
			if restoreQty <= 0 {
				continue
			}
			product, err := inventory.LockProduct(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if _, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
				Product:       product,
				ActorID:       actor.UserID,
				Type:          enums.MovementTypeVoid,
				Delta:         restoreQty,
				Reason:        input.Reason,
				ReferenceID:   &loaded.ID,
				ReferenceType: "VOID",
			}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		loaded.Status = enums.SaleStatusVoided
		loaded.VoidReason = &input.Reason
		loaded.VoidedAt = &now
		loaded.VoidedByID = &actor.UserID
		if err := tx.Model(&models.Sale{}).Where("id = ?", loaded.ID).Updates(map[string]any{
			"status":       loaded.Status,
			"void_reason":  loaded.VoidReason,
			"voided_at":    loaded.VoidedAt,
			"voided_by_id": loaded.VoidedByID,
		}).Error; err != nil {
			return err
		}
		sale = loaded
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(err, "voiding sale")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionVoid,
		Entity:      "SALE",
		EntityID:    &sale.ID,
		Description: fmt.Sprintf("sale %s voided", sale.ReceiptNumber),
		OldValues:   map[string]any{"status": enums.SaleStatusCompleted},
		NewValues:   map[string]any{"status": enums.SaleStatusVoided, "reason": input.Reason},
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	s.saleMetrics.IncVoided()
	return sale, nil
}

// Return processes a partial or full return, restoring stock and
// recomputing the sale status.
func (s *service) Return(ctx context.Context, actor Actor, saleID uuid.UUID, input ReturnInput) (*models.Return, error) {
	var record *models.Return
	var receipt string
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := db.SetLocalLockTimeout(tx, s.opts.LockTimeout); err != nil {
			return err
		}

		sale, err := lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == enums.SaleStatusVoided {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot return a voided sale")
		}
		receipt = sale.ReceiptNumber

		itemsByID := make(map[uuid.UUID]*models.SaleItem, len(sale.Items))
		for i := range sale.Items {
			itemsByID[sale.Items[i].ID] = &sale.Items[i]
		}

		type pending struct {
			saleItem *models.SaleItem
			qty      int
			refund   decimal.Decimal
		}
		// Duplicate lines for the same sale item are summed so the cap
		// check sees the whole requested quantity at once.
		requested := make(map[uuid.UUID]int, len(input.Items))
		order := make([]uuid.UUID, 0, len(input.Items))
		for _, line := range input.Items {
			if _, seen := requested[line.SaleItemID]; !seen {
				order = append(order, line.SaleItemID)
			}
			requested[line.SaleItemID] += line.Quantity
		}

		totalRefund := decimal.Zero
		pendings := make([]pending, 0, len(order))
		for _, itemID := range order {
			saleItem, ok := itemsByID[itemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("sale item %s not found", itemID))
			}
			qty := requested[itemID]
			available := saleItem.Quantity - saleItem.ReturnedQty
			if qty > available {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("return quantity %d exceeds available %d", qty, available))
			}
			unitTotal := saleItem.Total.Div(decimal.NewFromInt(int64(saleItem.Quantity)))
			refund := unitTotal.Mul(decimal.NewFromInt(int64(qty))).Round(2)
			pendings = append(pendings, pending{saleItem: saleItem, qty: qty, refund: refund})
			totalRefund = totalRefund.Add(refund)
		}

		record = &models.Return{
			ID:          uuid.New(),
			SaleID:      sale.ID,
			UserID:      actor.UserID,
			Reason:      input.Reason,
			TotalRefund: totalRefund,
		}
		for _, p := range pendings {
			record.Items = append(record.Items, models.ReturnItem{
				ID:           uuid.New(),
				ReturnID:     record.ID,
				SaleItemID:   p.saleItem.ID,
				Quantity:     p.qty,
				RefundAmount: p.refund,
			})
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		for _, p := range pendings {
			p.saleItem.ReturnedQty += p.qty
			if err := tx.Model(&models.SaleItem{}).
				Where("id = ?", p.saleItem.ID).
				Update("returned_qty", p.saleItem.ReturnedQty).Error; err != nil {
				return err
			}

			product, err := inventory.LockProduct(ctx, tx, p.saleItem.ProductID)
			if err != nil {
				return err
			}
			if _, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
				Product:       product,
				ActorID:       actor.UserID,
				Type:          enums.MovementTypeReturn,
				Delta:         p.qty,
				Reason:        input.Reason,
				ReferenceID:   &record.ID,
				ReferenceType: "RETURN",
			}); err != nil {
				return err
			}
		}

		totalQty, returnedQty := 0, 0
		for _, item := range sale.Items {
			totalQty += item.Quantity
			returnedQty += item.ReturnedQty
		}
		status := enums.SaleStatusPartiallyReturned
		if returnedQty >= totalQty {
			status = enums.SaleStatusFullyReturned
		}
		return tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Update("status", status).Error
	})
	if err != nil {
		return nil, s.mapTxError(err, "processing return")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionReturn,
		Entity:      "SALE",
		EntityID:    &record.SaleID,
		Description: fmt.Sprintf("return against sale %s, refund %s", receipt, record.TotalRefund),
		NewValues:   map[string]any{"return_id": record.ID, "refund": record.TotalRefund.String()},
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	s.saleMetrics.IncReturned()
	return record, nil
}

// List returns sales newest first with the given filters.
func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Sale], error) {
	var empty pagination.Page[models.Sale]
	conn := s.dbClient.DB().WithContext(ctx)

	filtered := func() *gorm.DB {
		query := conn.Model(&models.Sale{})
		if filters.Status != "" {
			query = query.Where("status = ?", filters.Status)
		}
		if filters.UserID != nil {
			query = query.Where("user_id = ?", *filters.UserID)
		}
		if filters.StartDate != nil {
			query = query.Where("created_at >= ?", *filters.StartDate)
		}
		if filters.EndDate != nil {
			query = query.Where("created_at <= ?", *filters.EndDate)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting sales")
	}
	var rows []models.Sale
	if err := filtered().
		Preload("Items").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing sales")
	}
	return pagination.NewPage(rows, total, params), nil
}

// Get loads one sale with its items.
func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := s.dbClient.DB().WithContext(ctx).
		Preload("Items").
		First(&sale, "id = ?", saleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading sale")
	}
	return &sale, nil
}

// lockProducts locks every referenced product in ascending id order and
// enforces active + stock checks against the aggregate requested quantity.
func (s *service) lockProducts(ctx context.Context, tx *gorm.DB, items []SaleItemInput, allowNegative bool) (map[uuid.UUID]*models.Product, error) {
	requested := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, seen := requested[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	products := make(map[uuid.UUID]*models.Product, len(ids))
	for _, id := range ids {
		product, err := inventory.LockProduct(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		if !allowNegative && product.CurrentStock < requested[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
					product.Name, product.CurrentStock, requested[id]))
		}
		products[id] = product
	}
	return products, nil
}

func (s *service) mapTxError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsLockTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wait timed out, retry the operation")
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func validateCreateInput(input CreateSaleInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if input.DiscountPercent.IsNegative() || input.DiscountPercent.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100")
	}
	if input.AmountPaid.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount_paid cannot be negative")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(hundred) {
			return pkgerrors.New(pkgerrors.CodeValidation, "item discount_percent must be between 0 and 100")
		}
	}
	return nil
}

// buildSale computes all monetary fields. Stored amounts are rounded to
// two decimals at each step so header totals reconcile exactly against
// their components.
func buildSale(userID uuid.UUID, input CreateSaleInput, products map[uuid.UUID]*models.Product) *models.Sale {
	saleID := uuid.New()
	subtotal := decimal.Zero
	totalTax := decimal.Zero
	items := make([]models.SaleItem, 0, len(input.Items))

	for _, line := range input.Items {
		product := products[line.ProductID]
		qty := decimal.NewFromInt(int64(line.Quantity))

		itemSubtotal := product.SalePrice.Mul(qty).Round(2)
		itemDiscount := itemSubtotal.Mul(line.DiscountPercent).Div(hundred).Round(2)
		afterDiscount := itemSubtotal.Sub(itemDiscount)
		itemTax := afterDiscount.Mul(product.TaxRate).Round(2)
		itemTotal := afterDiscount.Add(itemTax)

		items = append(items, models.SaleItem{
			ID:              uuid.New(),
			SaleID:          saleID,
			ProductID:       product.ID,
			ProductSKU:      product.SKU,
			ProductName:     product.Name,
			UnitPrice:       product.SalePrice,
			CostPrice:       product.CostPrice,
			TaxRate:         product.TaxRate,
			Quantity:        line.Quantity,
			DiscountPercent: line.DiscountPercent.Round(2),
			DiscountAmount:  itemDiscount,
			Subtotal:        itemSubtotal,
			TaxAmount:       itemTax,
			Total:           itemTotal,
		})
		subtotal = subtotal.Add(itemSubtotal)
		totalTax = totalTax.Add(itemTax)
	}

	globalDiscount := subtotal.Mul(input.DiscountPercent).Div(hundred).Round(2)
	total := subtotal.Sub(globalDiscount).Add(totalTax)

	amountPaid := input.AmountPaid.Round(2)
	change := decimal.Zero
	if input.PaymentMethod == enums.PaymentMethodCash {
		change = amountPaid.Sub(total)
	}

	sale := &models.Sale{
		ID:              saleID,
		UserID:          userID,
		Status:          enums.SaleStatusCompleted,
		Subtotal:        subtotal,
		TaxAmount:       totalTax,
		DiscountAmount:  globalDiscount,
		DiscountPercent: input.DiscountPercent.Round(2),
		Total:           total,
		PaymentMethod:   input.PaymentMethod,
		AmountPaid:      amountPaid,
		ChangeAmount:    change,
		Items:           items,
	}
	if input.Notes != "" {
		sale.Notes = &input.Notes
	}
	return sale
}

func lockSale(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Preload("Items").
		First(&sale, "id = ?", saleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		if db.IsLockTimeout(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sale row lock timed out")
		}
		return nil, err
	}
	return &sale, nil
}
