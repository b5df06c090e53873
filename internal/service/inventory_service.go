package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type InventoryMetrics interface {
	InventoryAdjusted(operation string, err error)
}

type noopInventoryMetrics struct{}

func (noopInventoryMetrics) InventoryAdjusted(string, error) {}

const (
	opSet    = "set"
	opAdd    = "add"
	opRemove = "remove"
)

type InventoryService struct {
	repo      inventory.Repository
	scopes    ScopeResolver
	codeScope config.CodeScope
	auditSvc  *AuditService
	metrics   InventoryMetrics
	tracer    trace.Tracer
	log       *zap.Logger
}

func NewInventoryService(
	repo inventory.Repository,
	scopes ScopeResolver,
	codeScope config.CodeScope,
	auditSvc *AuditService,
	m InventoryMetrics,
	log *zap.Logger,
) *InventoryService {
	if m == nil {
		m = noopInventoryMetrics{}
	}
	if codeScope == "" {
		codeScope = config.CodeScopeProfessional
	}
	return &InventoryService{
		repo:      repo,
		scopes:    scopes,
		codeScope: codeScope,
		auditSvc:  auditSvc,
		metrics:   m,
		tracer:    otel.Tracer("clinicflow/service/inventory"),
		log:       log,
	}
}

// Create stores a new item. Professionals always own what they create,
// secretaries must name a linked professional and admins may omit the owner
// to create a clinic-wide item.
func (s *InventoryService) Create(ctx context.Context, caller domain.Identity, cmd *inventory.CreateItemCommand) (*inventory.Item, error) {
	v := &validator{}
	v.check(strings.TrimSpace(cmd.Name) != "", "name is required")
	v.check(len(cmd.Name) <= 150, "name must be at most 150 characters")
	v.check(inventory.NormalizeCode(cmd.Code) != "", "code is required")
	v.check(len(cmd.Code) <= 50, "code must be at most 50 characters")
	v.check(cmd.PriceCents == nil || *cmd.PriceCents >= 0, "price cannot be negative")
	if err := v.err(); err != nil {
		return nil, err
	}
	if cmd.Quantity < 0 {
		return nil, inventory.ErrNegativeQuantity
	}
	if cmd.MinAlert != nil && *cmd.MinAlert < 0 {
		return nil, inventory.ErrNegativeMinAlert
	}

	owner, err := s.ownerFor(ctx, caller, cmd.ProfessionalID)
	if err != nil {
		return nil, err
	}

	item := &inventory.Item{
		Name:           strings.TrimSpace(cmd.Name),
		Description:    cmd.Description,
		Code:           inventory.NormalizeCode(cmd.Code),
		Quantity:       cmd.Quantity,
		Unit:           inventory.DefaultUnit,
		PriceCents:     cmd.PriceCents,
		MinAlert:       inventory.DefaultMinAlert,
		Category:       normalizeCategory(cmd.Category),
		IsActive:       true,
		ProfessionalID: owner,
	}
	if u := strings.TrimSpace(cmd.Unit); u != "" {
		item.Unit = strings.ToUpper(u)
	}
	if cmd.MinAlert != nil {
		item.MinAlert = *cmd.MinAlert
	}

	if err := s.ensureCodeFree(ctx, item.Code, owner, nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("creating inventory item: %w", err)
	}

	s.audit(ctx, caller, domain.ActionCreate, item, map[string]any{"code": item.Code, "quantity": item.Quantity})
	s.log.Info("inventory item created",
		zap.String("item_id", item.ID.String()),
		zap.String("code", item.Code),
		zap.Bool("global", item.IsGlobal()),
	)
	return item, nil
}

func (s *InventoryService) Update(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *inventory.UpdateItemCommand) (*inventory.Item, error) {
	item, err := s.getForWrite(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	v := &validator{}
	if cmd.Name != nil {
		v.check(strings.TrimSpace(*cmd.Name) != "", "name cannot be empty")
		v.check(len(*cmd.Name) <= 150, "name must be at most 150 characters")
	}
	if cmd.Code != nil {
		v.check(inventory.NormalizeCode(*cmd.Code) != "", "code cannot be empty")
		v.check(len(*cmd.Code) <= 50, "code must be at most 50 characters")
	}
	v.check(cmd.PriceCents == nil || *cmd.PriceCents >= 0, "price cannot be negative")
	if err := v.err(); err != nil {
		return nil, err
	}
	if cmd.MinAlert != nil && *cmd.MinAlert < 0 {
		return nil, inventory.ErrNegativeMinAlert
	}

	if cmd.Code != nil {
		code := inventory.NormalizeCode(*cmd.Code)
		if code != item.Code {
			if err := s.ensureCodeFree(ctx, code, item.ProfessionalID, &item.ID); err != nil {
				return nil, err
			}
			item.Code = code
		}
	}
	if cmd.Name != nil {
		item.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		item.Description = *cmd.Description
	}
	if cmd.Unit != nil && strings.TrimSpace(*cmd.Unit) != "" {
		item.Unit = strings.ToUpper(strings.TrimSpace(*cmd.Unit))
	}
	if cmd.PriceCents != nil {
		item.PriceCents = cmd.PriceCents
	}
	if cmd.MinAlert != nil {
		item.MinAlert = *cmd.MinAlert
	}
	if cmd.Category != nil {
		item.Category = normalizeCategory(cmd.Category)
	}

	if err := s.repo.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("updating inventory item: %w", err)
	}
	s.audit(ctx, caller, domain.ActionUpdate, item, nil)
	return item, nil
}

// SetQuantity overwrites the stock level.
func (s *InventoryService) SetQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, quantity int) (*inventory.Item, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.SetQuantity",
		trace.WithAttributes(attribute.String("item_id", id.String()), attribute.Int("quantity", quantity)))
	defer span.End()

	if quantity < 0 {
		s.metrics.InventoryAdjusted(opSet, inventory.ErrNegativeQuantity)
		return nil, inventory.ErrNegativeQuantity
	}
	if _, err := s.getForWrite(ctx, caller, id); err != nil {
		return nil, err
	}

	item, err := s.repo.SetQuantity(ctx, id, quantity)
	s.metrics.InventoryAdjusted(opSet, err)
	if err != nil {
		s.recordFailure(span, err)
		return nil, fmt.Errorf("setting quantity: %w", err)
	}
	s.audit(ctx, caller, domain.ActionUpdate, item, map[string]any{"operation": opSet, "quantity": item.Quantity})
	return item, nil
}

func (s *InventoryService) AddQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error) {
	return s.adjust(ctx, caller, id, opAdd, amount)
}

// RemoveQuantity fails with ErrInsufficientStock and leaves the stored
// quantity untouched when amount exceeds it.
func (s *InventoryService) RemoveQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error) {
	return s.adjust(ctx, caller, id, opRemove, amount)
}

func (s *InventoryService) adjust(ctx context.Context, caller domain.Identity, id uuid.UUID, op string, amount int) (*inventory.Item, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.AdjustQuantity",
		trace.WithAttributes(
			attribute.String("item_id", id.String()),
			attribute.String("operation", op),
			attribute.Int("amount", amount),
		))
	defer span.End()

	if amount <= 0 {
		s.metrics.InventoryAdjusted(op, inventory.ErrNonPositiveAmount)
		return nil, inventory.ErrNonPositiveAmount
	}
	if _, err := s.getForWrite(ctx, caller, id); err != nil {
		return nil, err
	}

	delta := amount
	if op == opRemove {
		delta = -amount
	}

	item, err := s.repo.AdjustQuantity(ctx, id, delta)
	s.metrics.InventoryAdjusted(op, err)
	if err != nil {
		s.recordFailure(span, err)
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.log.Info("stock removal rejected",
				zap.String("item_id", id.String()),
				zap.Int("requested", amount),
			)
			return nil, err
		}
		return nil, fmt.Errorf("adjusting quantity: %w", err)
	}

	s.audit(ctx, caller, domain.ActionUpdate, item, map[string]any{"operation": op, "amount": amount, "quantity": item.Quantity})
	if item.IsLowStock() {
		s.log.Debug("item at or below alert threshold",
			zap.String("code", item.Code),
			zap.Int("quantity", item.Quantity),
			zap.Int("min_alert", item.MinAlert),
		)
	}
	return item, nil
}

func (s *InventoryService) Activate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	return s.setActive(ctx, caller, id, true)
}

func (s *InventoryService) Deactivate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	return s.setActive(ctx, caller, id, false)
}

func (s *InventoryService) setActive(ctx context.Context, caller domain.Identity, id uuid.UUID, active bool) (*inventory.Item, error) {
	if _, err := s.getForWrite(ctx, caller, id); err != nil {
		return nil, err
	}
	item, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("changing item state: %w", err)
	}
	s.audit(ctx, caller, domain.ActionUpdate, item, map[string]any{"is_active": active})
	return item, nil
}

// Get returns an item by id, active or not.
func (s *InventoryService) Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReadable(ctx, caller, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetByCode looks for the code among owner's items first and then among the
// clinic-wide ones. Professionals default to their own items.
func (s *InventoryService) GetByCode(ctx context.Context, caller domain.Identity, code string, owner *uuid.UUID) (*inventory.Item, error) {
	code = inventory.NormalizeCode(code)
	if code == "" {
		return nil, &ValidationError{Fields: []string{"code is required"}}
	}
	if owner == nil {
		owner = s.scopes.DefaultOwner(caller)
	}

	candidates := []*uuid.UUID{nil}
	if owner != nil {
		candidates = []*uuid.UUID{owner, nil}
	}
	for _, o := range candidates {
		item, err := s.repo.GetByCode(ctx, code, o)
		if errors.Is(err, inventory.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.ensureReadable(ctx, caller, item); err != nil {
			return nil, err
		}
		return item, nil
	}
	return nil, inventory.ErrItemNotFound
}

func (s *InventoryService) List(ctx context.Context, caller domain.Identity, page, pageSize int) (*inventory.PagedItems, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.Page, f.PageSize = normalizePage(page, pageSize)
	return s.repo.List(ctx, f)
}

// ListSimple returns every active visible item ordered by name, unpaged.
func (s *InventoryService) ListSimple(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.listAll(ctx, f)
}

func (s *InventoryService) ListByCategory(ctx context.Context, caller domain.Identity, category string) ([]*inventory.Item, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, &ValidationError{Fields: []string{"category is required"}}
	}
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.Category = category
	return s.listAll(ctx, f)
}

func (s *InventoryService) Categories(ctx context.Context, caller domain.Identity) ([]string, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.repo.Categories(ctx, f)
}

func (s *InventoryService) LowStock(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.LowStockOnly = true
	return s.listAll(ctx, f)
}

func (s *InventoryService) Depleted(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.DepletedOnly = true
	return s.listAll(ctx, f)
}

// Search matches term against name, code and description.
func (s *InventoryService) Search(ctx context.Context, caller domain.Identity, term string, page, pageSize int) (*inventory.PagedItems, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &ValidationError{Fields: []string{"search term is required"}}
	}
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.Search = term
	f.Page, f.PageSize = normalizePage(page, pageSize)
	return s.repo.List(ctx, f)
}

func (s *InventoryService) Counts(ctx context.Context, caller domain.Identity) (inventory.Counts, error) {
	f, err := s.filterFor(ctx, caller)
	if err != nil {
		return inventory.Counts{}, err
	}
	return s.repo.Counts(ctx, f)
}

// Export renders every visible active item as an .xlsx workbook.
func (s *InventoryService) Export(ctx context.Context, caller domain.Identity) ([]byte, error) {
	items, err := s.ListSimple(ctx, caller)
	if err != nil {
		return nil, err
	}
	out, err := renderInventoryWorkbook(items)
	if err != nil {
		return nil, fmt.Errorf("exporting inventory: %w", err)
	}
	return out, nil
}

const exportPageSize = 500

func (s *InventoryService) listAll(ctx context.Context, f *inventory.Filter) ([]*inventory.Item, error) {
	items := []*inventory.Item{}
	f.PageSize = exportPageSize
	for f.Page = 1; ; f.Page++ {
		res, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, err
		}
		items = append(items, res.Items...)
		if f.Page >= res.TotalPages || len(res.Items) == 0 {
			return items, nil
		}
	}
}

func (s *InventoryService) filterFor(ctx context.Context, caller domain.Identity) (*inventory.Filter, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	return &inventory.Filter{Scope: scope}, nil
}

// ownerFor decides which professional a new item belongs to.
func (s *InventoryService) ownerFor(ctx context.Context, caller domain.Identity, requested *uuid.UUID) (*uuid.UUID, error) {
	owner, err := s.scopes.Owner(ctx, caller, requested)
	if errors.Is(err, ErrOwnerUnset) {
		return nil, inventory.ErrOwnerRequired
	}
	return owner, err
}

func (s *InventoryService) ensureCodeFree(ctx context.Context, code string, owner *uuid.UUID, excludeID *uuid.UUID) error {
	global := s.codeScope == config.CodeScopeGlobal
	taken, err := s.repo.CodeExists(ctx, code, owner, global, excludeID)
	if err != nil {
		return fmt.Errorf("checking item code: %w", err)
	}
	if taken {
		return inventory.ErrCodeAlreadyExists
	}
	return nil
}

func (s *InventoryService) ensureReadable(ctx context.Context, caller domain.Identity, item *inventory.Item) error {
	if item.IsGlobal() {
		if _, err := s.scopes.Resolve(ctx, caller, access.KindProfessional); err != nil {
			return err
		}
		return nil
	}
	return requireInScope(ctx, s.scopes, caller, access.KindProfessional, *item.ProfessionalID)
}

func (s *InventoryService) getForWrite(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsGlobal() {
		// Whoever may create a shared item may change one.
		if owner, err := s.scopes.Owner(ctx, caller, nil); err != nil || owner != nil {
			return nil, inventory.ErrGlobalItemAdminOnly
		}
		return item, nil
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, *item.ProfessionalID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *InventoryService) audit(ctx context.Context, caller domain.Identity, action domain.AuditAction, item *inventory.Item, changes map[string]any) {
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       action,
		ResourceType: "inventory_item",
		ResourceID:   item.ID.String(),
		Changes:      changes,
	})
}

func (s *InventoryService) recordFailure(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func normalizeCategory(c *string) *string {
	if c == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*c)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
