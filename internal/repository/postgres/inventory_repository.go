package postgres

import (
	"context"
	"errors"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func translateInventoryError(err error) error {
	switch {
	case isUniqueViolation(err, "code"):
		return inventory.ErrCodeAlreadyExists
	case isCheckViolation(err):
		return inventory.ErrInsufficientStock
	}
	return err
}

func (r *InventoryRepository) Create(ctx context.Context, item *inventory.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return translateInventoryError(err)
	}
	return nil
}

func (r *InventoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*inventory.Item, error) {
	var item inventory.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error; err != nil {
		return nil, notFound(err, inventory.ErrItemNotFound)
	}
	return &item, nil
}

func (r *InventoryRepository) GetByCode(ctx context.Context, code string, owner *uuid.UUID) (*inventory.Item, error) {
	var item inventory.Item
	if err := ownedBy(r.db.WithContext(ctx), owner).Where("code = ?", code).Take(&item).Error; err != nil {
		return nil, notFound(err, inventory.ErrItemNotFound)
	}
	return &item, nil
}

// Save writes descriptive fields only. Quantity and the active flag have
// dedicated statements.
func (r *InventoryRepository) Save(ctx context.Context, item *inventory.Item) error {
	res := r.db.WithContext(ctx).Model(item).
		Select("name", "description", "code", "unit", "price_cents", "min_alert", "category", "updated_at").
		Updates(item)
	if res.Error != nil {
		return translateInventoryError(res.Error)
	}
	if res.RowsAffected == 0 {
		return inventory.ErrItemNotFound
	}
	return nil
}

func (r *InventoryRepository) CodeExists(ctx context.Context, code string, owner *uuid.UUID, global bool, excludeID *uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx).Model(&inventory.Item{}).Where("code = ?", code)
	if !global {
		db = ownedBy(db, owner)
	}
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	var n int64
	err := db.Count(&n).Error
	return n > 0, err
}

func (r *InventoryRepository) SetQuantity(ctx context.Context, id uuid.UUID, quantity int) (*inventory.Item, error) {
	return r.updateReturning(ctx, r.db.WithContext(ctx).Where("id = ?", id), map[string]any{"quantity": quantity})
}

// AdjustQuantity applies delta in one guarded UPDATE. A zero row count means
// either the item is gone or the guard refused; a follow-up lookup tells
// which.
func (r *InventoryRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*inventory.Item, error) {
	db := r.db.WithContext(ctx).Where("id = ? AND quantity + ? >= 0", id, delta)
	item, err := r.updateReturning(ctx, db, map[string]any{"quantity": gorm.Expr("quantity + ?", delta)})
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, inventory.ErrItemNotFound) {
		return nil, err
	}
	if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, inventory.ErrInsufficientStock
}

func (r *InventoryRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*inventory.Item, error) {
	return r.updateReturning(ctx, r.db.WithContext(ctx).Where("id = ?", id), map[string]any{"is_active": active})
}

func (r *InventoryRepository) updateReturning(_ context.Context, db *gorm.DB, cols map[string]any) (*inventory.Item, error) {
	var rows []inventory.Item
	res := db.Model(&rows).Clauses(clause.Returning{}).Updates(cols)
	if res.Error != nil {
		return nil, translateInventoryError(res.Error)
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, inventory.ErrItemNotFound
	}
	return &rows[0], nil
}

func (r *InventoryRepository) List(ctx context.Context, f *inventory.Filter) (*inventory.PagedItems, error) {
	out := &inventory.PagedItems{Items: []*inventory.Item{}, Page: f.Page, PageSize: f.PageSize}
	db, ok := r.filtered(ctx, f)
	if !ok {
		return out, nil
	}
	if f.LowStockOnly {
		db = db.Where("quantity <= min_alert")
	}
	if f.DepletedOnly {
		db = db.Where("quantity = 0")
	}

	if err := db.Count(&out.TotalCount).Error; err != nil {
		return nil, err
	}
	if out.TotalCount > 0 {
		if err := paginate(db, f.Page, f.PageSize).Order("name ASC").Find(&out.Items).Error; err != nil {
			return nil, err
		}
	}
	out.TotalPages = totalPages(out.TotalCount, f.PageSize)
	return out, nil
}

func (r *InventoryRepository) Categories(ctx context.Context, f *inventory.Filter) ([]string, error) {
	out := []string{}
	db, ok := r.filtered(ctx, f)
	if !ok {
		return out, nil
	}
	err := db.Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &out).Error
	return out, err
}

func (r *InventoryRepository) Counts(ctx context.Context, f *inventory.Filter) (inventory.Counts, error) {
	var out inventory.Counts
	active := *f
	active.IncludeInactive = false
	db, ok := r.filtered(ctx, &active)
	if !ok {
		return out, nil
	}
	err := db.Select(
		"COUNT(*) AS active, " +
			"COUNT(*) FILTER (WHERE quantity <= min_alert) AS low_stock, " +
			"COUNT(*) FILTER (WHERE quantity = 0) AS depleted",
	).Scan(&out).Error
	return out, err
}

// filtered applies visibility, activity, category and search filters. It
// reports false when the filter can match nothing.
func (r *InventoryRepository) filtered(ctx context.Context, f *inventory.Filter) (*gorm.DB, bool) {
	db := r.db.WithContext(ctx).Model(&inventory.Item{})

	switch {
	case f.Scope.IsUnrestricted():
		if f.ExcludeGlobal {
			db = db.Where("professional_id IS NOT NULL")
		}
	case f.Scope.IsEmpty():
		if f.ExcludeGlobal {
			return nil, false
		}
		db = db.Where("professional_id IS NULL")
	default:
		if f.ExcludeGlobal {
			db = db.Where("professional_id IN ?", f.Scope.IDs())
		} else {
			db = db.Where("(professional_id IN ? OR professional_id IS NULL)", f.Scope.IDs())
		}
	}

	if !f.IncludeInactive {
		db = db.Where("is_active = ?", true)
	}
	if f.Category != "" {
		db = db.Where("category ILIKE ?", f.Category)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		db = db.Where("(name ILIKE ? OR code ILIKE ? OR description ILIKE ?)", pattern, pattern, pattern)
	}
	return db, true
}

func ownedBy(db *gorm.DB, owner *uuid.UUID) *gorm.DB {
	if owner == nil {
		return db.Where("professional_id IS NULL")
	}
	return db.Where("professional_id = ?", *owner)
}
