package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newInventoryService(c *clinic, scope config.CodeScope) *InventoryService {
	return NewInventoryService(c.inventory, c.resolver, scope, nil, nil, c.log)
}

func intPtr(v int) *int { return &v }

func TestInventoryService_Ledger(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	doctor := c.professionals.add("Ana Souza", "Cardiology")
	caller := professionalIdentity(doctor)

	item, err := svc.Create(ctx, caller, &inventory.CreateItemCommand{
		Name:     "Gauze",
		Code:     " gz-01 ",
		Quantity: 10,
		MinAlert: intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "GZ-01", item.Code)
	assert.Equal(t, inventory.DefaultUnit, item.Unit)
	require.NotNil(t, item.ProfessionalID)
	assert.Equal(t, doctor.ID, *item.ProfessionalID)

	item, err = svc.RemoveQuantity(ctx, caller, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, item.Quantity)
	assert.False(t, item.IsLowStock())

	item, err = svc.RemoveQuantity(ctx, caller, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
	assert.True(t, item.IsLowStock())

	_, err = svc.RemoveQuantity(ctx, caller, item.ID, 100)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))

	stored, err := svc.Get(ctx, caller, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Quantity)

	item, err = svc.AddQuantity(ctx, caller, item.ID, 16)
	require.NoError(t, err)
	assert.Equal(t, 20, item.Quantity)

	_, err = svc.AddQuantity(ctx, caller, item.ID, 0)
	assert.ErrorIs(t, err, inventory.ErrNonPositiveAmount)
	_, err = svc.RemoveQuantity(ctx, caller, item.ID, -3)
	assert.ErrorIs(t, err, inventory.ErrNonPositiveAmount)

	item, err = svc.SetQuantity(ctx, caller, item.ID, 0)
	require.NoError(t, err)
	assert.True(t, item.IsDepleted())
	_, err = svc.SetQuantity(ctx, caller, item.ID, -1)
	assert.ErrorIs(t, err, inventory.ErrNegativeQuantity)
}

func TestInventoryService_AddThenRemoveRestoresQuantity(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	caller := adminIdentity()
	const minAlert = 5

	assertFlags := func(t *testing.T, item *inventory.Item, want int) {
		t.Helper()
		assert.Equal(t, want, item.Quantity)
		assert.Equal(t, want <= minAlert, item.IsLowStock())
		assert.Equal(t, want == 0, item.IsDepleted())
	}

	for _, start := range []int{0, 3, 5, 6, 50} {
		for _, n := range []int{1, 2, 5, 17} {
			t.Run(fmt.Sprintf("start %d amount %d", start, n), func(t *testing.T) {
				item, err := svc.Create(ctx, caller, &inventory.CreateItemCommand{
					Name:     "Saline",
					Code:     fmt.Sprintf("SAL-%d-%d", start, n),
					Quantity: start,
					MinAlert: intPtr(minAlert),
				})
				require.NoError(t, err)
				assertFlags(t, item, start)

				item, err = svc.AddQuantity(ctx, caller, item.ID, n)
				require.NoError(t, err)
				assertFlags(t, item, start+n)

				item, err = svc.RemoveQuantity(ctx, caller, item.ID, n)
				require.NoError(t, err)
				assertFlags(t, item, start)

				stored, err := svc.Get(ctx, caller, item.ID)
				require.NoError(t, err)
				assertFlags(t, stored, start)
			})
		}
	}
}

func TestInventoryService_ConcurrentRemovalsNeverGoNegative(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	caller := adminIdentity()

	item, err := svc.Create(ctx, caller, &inventory.CreateItemCommand{Name: "Syringe", Code: "SYR", Quantity: 10})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RemoveQuantity(ctx, caller, item.ID, 1); err == nil {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, removed)
	stored, err := c.inventory.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Quantity)
}

func TestInventoryService_CreateOwnership(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	doctor := c.professionals.add("Ana Souza", "Cardiology")
	other := c.professionals.add("Carla Dias", "Dermatology")
	sec := c.secretaries.add("Dora", doctor.ID)

	t.Run("admin without owner creates a shared item", func(t *testing.T) {
		item, err := svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "Gloves", Code: "GLV"})
		require.NoError(t, err)
		assert.True(t, item.IsGlobal())
	})

	t.Run("professional cannot create for someone else", func(t *testing.T) {
		_, err := svc.Create(ctx, professionalIdentity(doctor), &inventory.CreateItemCommand{Name: "Mask", Code: "MSK", ProfessionalID: &other.ID})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("secretary must name a linked professional", func(t *testing.T) {
		_, err := svc.Create(ctx, secretaryIdentity(sec), &inventory.CreateItemCommand{Name: "Mask", Code: "MSK"})
		assert.ErrorIs(t, err, inventory.ErrOwnerRequired)

		_, err = svc.Create(ctx, secretaryIdentity(sec), &inventory.CreateItemCommand{Name: "Mask", Code: "MSK", ProfessionalID: &other.ID})
		assert.ErrorIs(t, err, ErrForbidden)

		item, err := svc.Create(ctx, secretaryIdentity(sec), &inventory.CreateItemCommand{Name: "Mask", Code: "MSK", ProfessionalID: &doctor.ID})
		require.NoError(t, err)
		assert.Equal(t, doctor.ID, *item.ProfessionalID)
	})

	t.Run("negative values are rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "X", Code: "X1", Quantity: -1})
		assert.ErrorIs(t, err, inventory.ErrNegativeQuantity)
		_, err = svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "X", Code: "X1", MinAlert: intPtr(-2)})
		assert.ErrorIs(t, err, inventory.ErrNegativeMinAlert)
		_, err = svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "", Code: ""})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestInventoryService_CodeUniqueness(t *testing.T) {
	ctx := context.Background()

	t.Run("per professional", func(t *testing.T) {
		c := newClinic(t)
		svc := newInventoryService(c, config.CodeScopeProfessional)
		d1 := c.professionals.add("Ana Souza", "Cardiology")
		d2 := c.professionals.add("Carla Dias", "Dermatology")

		_, err := svc.Create(ctx, professionalIdentity(d1), &inventory.CreateItemCommand{Name: "Gauze", Code: "GZ"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, professionalIdentity(d2), &inventory.CreateItemCommand{Name: "Gauze", Code: "gz"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, professionalIdentity(d1), &inventory.CreateItemCommand{Name: "Other", Code: "GZ"})
		assert.ErrorIs(t, err, inventory.ErrCodeAlreadyExists)
	})

	t.Run("clinic wide", func(t *testing.T) {
		c := newClinic(t)
		svc := newInventoryService(c, config.CodeScopeGlobal)
		d1 := c.professionals.add("Ana Souza", "Cardiology")
		d2 := c.professionals.add("Carla Dias", "Dermatology")

		_, err := svc.Create(ctx, professionalIdentity(d1), &inventory.CreateItemCommand{Name: "Gauze", Code: "GZ"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, professionalIdentity(d2), &inventory.CreateItemCommand{Name: "Gauze", Code: "GZ"})
		assert.ErrorIs(t, err, inventory.ErrCodeAlreadyExists)
	})
}

func TestInventoryService_SharedItemsAreAdminWritable(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	doctor := c.professionals.add("Ana Souza", "Cardiology")

	shared, err := svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "Gloves", Code: "GLV", Quantity: 50})
	require.NoError(t, err)

	got, err := svc.Get(ctx, professionalIdentity(doctor), shared.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.ID, got.ID)

	_, err = svc.RemoveQuantity(ctx, professionalIdentity(doctor), shared.ID, 1)
	assert.ErrorIs(t, err, inventory.ErrGlobalItemAdminOnly)

	item, err := svc.RemoveQuantity(ctx, adminIdentity(), shared.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 49, item.Quantity)
}

func TestInventoryService_VisibilityAndQueries(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()
	d1 := c.professionals.add("Ana Souza", "Cardiology")
	d2 := c.professionals.add("Carla Dias", "Dermatology")
	supplies := "Supplies"

	mine, err := svc.Create(ctx, professionalIdentity(d1), &inventory.CreateItemCommand{Name: "Bandage", Code: "BD", Quantity: 2, MinAlert: intPtr(5), Category: &supplies})
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, professionalIdentity(d2), &inventory.CreateItemCommand{Name: "Scalpel", Code: "SC", Quantity: 0})
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "Alcohol", Code: "AL", Quantity: 100, MinAlert: intPtr(10)})
	require.NoError(t, err)

	_, err = svc.Get(ctx, professionalIdentity(d1), theirs.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := svc.List(ctx, professionalIdentity(d1), 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.TotalCount)

	low, err := svc.LowStock(ctx, professionalIdentity(d1))
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, mine.ID, low[0].ID)

	depleted, err := svc.Depleted(ctx, adminIdentity())
	require.NoError(t, err)
	require.Len(t, depleted, 1)
	assert.Equal(t, theirs.ID, depleted[0].ID)

	cats, err := svc.Categories(ctx, professionalIdentity(d1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Supplies"}, cats)

	counts, err := svc.Counts(ctx, adminIdentity())
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts.Active)
	assert.EqualValues(t, 2, counts.LowStock)
	assert.EqualValues(t, 1, counts.Depleted)

	_, err = svc.Deactivate(ctx, professionalIdentity(d1), mine.ID)
	require.NoError(t, err)
	list, err = svc.List(ctx, professionalIdentity(d1), 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)

	// inactive items stay reachable by id and code
	byCode, err := svc.GetByCode(ctx, professionalIdentity(d1), "bd", nil)
	require.NoError(t, err)
	assert.False(t, byCode.IsActive)

	shared, err := svc.GetByCode(ctx, professionalIdentity(d1), "al", nil)
	require.NoError(t, err)
	assert.True(t, shared.IsGlobal())

	_, err = svc.GetByCode(ctx, professionalIdentity(d1), "nope", nil)
	assert.ErrorIs(t, err, inventory.ErrItemNotFound)
}

func TestInventoryService_Export(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)
	ctx := context.Background()

	_, err := svc.Create(ctx, adminIdentity(), &inventory.CreateItemCommand{Name: "Alcohol", Code: "AL", Quantity: 3, MinAlert: intPtr(5)})
	require.NoError(t, err)

	raw, err := svc.Export(ctx, adminIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(inventorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "AL")
	assert.Contains(t, rows[1], "Alcohol")
}

func TestInventoryService_UnknownItem(t *testing.T) {
	c := newClinic(t)
	svc := newInventoryService(c, config.CodeScopeProfessional)

	_, err := svc.AddQuantity(context.Background(), adminIdentity(), uuid.New(), 1)
	assert.ErrorIs(t, err, inventory.ErrItemNotFound)
}
