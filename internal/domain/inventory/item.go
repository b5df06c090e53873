package inventory

import (
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

const (
	DefaultUnit     = "UN"
	DefaultMinAlert = 10
)

type Item struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name        string  `gorm:"column:name;type:varchar(150);not null;index"`
	Description string  `gorm:"column:description;type:text"`
	Code        string  `gorm:"column:code;type:varchar(50);not null"`
	Quantity    int     `gorm:"column:quantity;not null;default:0;check:chk_inventory_quantity_non_negative,quantity >= 0"`
	Unit        string  `gorm:"column:unit;type:varchar(20);not null;default:'UN'"`
	PriceCents  *int64  `gorm:"column:price_cents"`
	MinAlert    int     `gorm:"column:min_alert;not null;default:10"`
	Category    *string `gorm:"column:category;type:varchar(80);index"`
	IsActive    bool    `gorm:"column:is_active;not null;default:true;index"`

	// Nil means the item is shared by the whole clinic.
	ProfessionalID *uuid.UUID `gorm:"column:professional_id;type:uuid;index"`
}

func (Item) TableName() string {
	return "clinical.inventory_items"
}

// IsLowStock is derived from the current quantity on every read.
func (i *Item) IsLowStock() bool {
	return i.Quantity <= i.MinAlert
}

func (i *Item) IsDepleted() bool {
	return i.Quantity == 0
}

func (i *Item) IsGlobal() bool {
	return i.ProfessionalID == nil
}

// NormalizeCode trims and upper-cases item codes so uniqueness is case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateItemCommand struct {
	Name           string
	Description    string
	Code           string
	Quantity       int
	Unit           string
	PriceCents     *int64
	MinAlert       *int
	Category       *string
	ProfessionalID *uuid.UUID
}

type UpdateItemCommand struct {
	Name        *string
	Description *string
	Code        *string
	Unit        *string
	PriceCents  *int64
	MinAlert    *int
	Category    *string
}

// Filter selects items visible through a professional scope. Global items are
// always included unless ExcludeGlobal is set.
type Filter struct {
	Scope           access.Scope
	ExcludeGlobal   bool
	IncludeInactive bool
	Category        string
	Search          string
	LowStockOnly    bool
	DepletedOnly    bool
	Page            int
	PageSize        int
}

type PagedItems struct {
	Items      []*Item
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

type Counts struct {
	Active   int64
	LowStock int64
	Depleted int64
}
