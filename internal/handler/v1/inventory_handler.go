package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InventoryService interface {
	Create(ctx context.Context, caller domain.Identity, cmd *inventory.CreateItemCommand) (*inventory.Item, error)
	Update(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *inventory.UpdateItemCommand) (*inventory.Item, error)
	SetQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, quantity int) (*inventory.Item, error)
	AddQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error)
	RemoveQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error)
	Activate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error)
	Deactivate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error)
	Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error)
	GetByCode(ctx context.Context, caller domain.Identity, code string, owner *uuid.UUID) (*inventory.Item, error)
	List(ctx context.Context, caller domain.Identity, page, pageSize int) (*inventory.PagedItems, error)
	ListSimple(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error)
	ListByCategory(ctx context.Context, caller domain.Identity, category string) ([]*inventory.Item, error)
	Categories(ctx context.Context, caller domain.Identity) ([]string, error)
	LowStock(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error)
	Depleted(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error)
	Search(ctx context.Context, caller domain.Identity, term string, page, pageSize int) (*inventory.PagedItems, error)
	Counts(ctx context.Context, caller domain.Identity) (inventory.Counts, error)
	Export(ctx context.Context, caller domain.Identity) ([]byte, error)
}

type InventoryHandler struct {
	svc InventoryService
	now func() time.Time
}

func NewInventoryHandler(svc InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc, now: time.Now}
}

func (h *InventoryHandler) Create(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.svc.Create(c.Request.Context(), id, &inventory.CreateItemCommand{
		Name:           req.Name,
		Description:    req.Description,
		Code:           req.Code,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
		PriceCents:     req.PriceCents,
		MinAlert:       req.MinAlert,
		Category:       req.Category,
		ProfessionalID: req.ProfessionalID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toItemResponse(item))
}

func (h *InventoryHandler) Update(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.svc.Update(c.Request.Context(), id, itemID, &inventory.UpdateItemCommand{
		Name:        req.Name,
		Description: req.Description,
		Code:        req.Code,
		Unit:        req.Unit,
		PriceCents:  req.PriceCents,
		MinAlert:    req.MinAlert,
		Category:    req.Category,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toItemResponse(item))
}

func (h *InventoryHandler) SetQuantity(c *gin.Context) {
	var req quantityRequest
	h.mutate(c, &req, func(ctx context.Context, who domain.Identity, id uuid.UUID) (*inventory.Item, error) {
		return h.svc.SetQuantity(ctx, who, id, *req.Quantity)
	})
}

func (h *InventoryHandler) AddQuantity(c *gin.Context) {
	var req amountRequest
	h.mutate(c, &req, func(ctx context.Context, who domain.Identity, id uuid.UUID) (*inventory.Item, error) {
		return h.svc.AddQuantity(ctx, who, id, req.Amount)
	})
}

func (h *InventoryHandler) RemoveQuantity(c *gin.Context) {
	var req amountRequest
	h.mutate(c, &req, func(ctx context.Context, who domain.Identity, id uuid.UUID) (*inventory.Item, error) {
		return h.svc.RemoveQuantity(ctx, who, id, req.Amount)
	})
}

func (h *InventoryHandler) Activate(c *gin.Context) {
	h.mutate(c, nil, h.svc.Activate)
}

func (h *InventoryHandler) Deactivate(c *gin.Context) {
	h.mutate(c, nil, h.svc.Deactivate)
}

// mutate binds body (when non-nil) and applies op to the item named by :id.
func (h *InventoryHandler) mutate(c *gin.Context, body any, op func(context.Context, domain.Identity, uuid.UUID) (*inventory.Item, error)) {
	id, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if body != nil && !bindJSON(c, body) {
		return
	}
	item, err := op(c.Request.Context(), id, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toItemResponse(item))
}

func (h *InventoryHandler) Get(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toItemResponse(item))
}

// GetByCode looks up by code; ?professional_id= selects the owner when codes
// are unique per professional.
func (h *InventoryHandler) GetByCode(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := parseOptionalUUIDQuery(c, "professional_id")
	if !ok {
		return
	}
	item, err := h.svc.GetByCode(c.Request.Context(), id, c.Param("code"), owner)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toItemResponse(item))
}

func (h *InventoryHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.svc.List(c.Request.Context(), id, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondItems(c, res)
}

func (h *InventoryHandler) Search(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.svc.Search(c.Request.Context(), id, c.Query("q"), page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondItems(c, res)
}

func (h *InventoryHandler) ListSimple(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListSimple(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]simpleItemResponse, 0, len(list))
	for _, i := range list {
		out = append(out, simpleItemResponse{ID: i.ID, Name: i.Name, Code: i.Code, Quantity: i.Quantity, Unit: i.Unit})
	}
	respondOK(c, out)
}

func (h *InventoryHandler) ListByCategory(c *gin.Context) {
	h.list(c, func(ctx context.Context, who domain.Identity) ([]*inventory.Item, error) {
		return h.svc.ListByCategory(ctx, who, c.Param("category"))
	})
}

func (h *InventoryHandler) LowStock(c *gin.Context) { h.list(c, h.svc.LowStock) }
func (h *InventoryHandler) Depleted(c *gin.Context) { h.list(c, h.svc.Depleted) }

func (h *InventoryHandler) list(c *gin.Context, op func(context.Context, domain.Identity) ([]*inventory.Item, error)) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := op(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toItemResponses(list))
}

func (h *InventoryHandler) Categories(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.Categories(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	respondOK(c, list)
}

func (h *InventoryHandler) Counts(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	counts, err := h.svc.Counts(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, countsResponse{Active: counts.Active, LowStock: counts.LowStock, Depleted: counts.Depleted})
}

// Export streams the caller's visible items as an xlsx workbook.
func (h *InventoryHandler) Export(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	data, err := h.svc.Export(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	name := fmt.Sprintf("inventory-%s.xlsx", h.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func respondItems(c *gin.Context, res *inventory.PagedItems) {
	respondPaged(c, toItemResponses(res.Items), Pagination{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
	})
}
