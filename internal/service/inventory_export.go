package service

import (
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/xuri/excelize/v2"
)

const inventorySheet = "Inventory"

var inventoryExportHeader = []string{
	"Code", "Name", "Category", "Unit", "Quantity", "Min Alert", "Unit Price", "Status", "Scope",
}

var inventoryColumnWidths = []float64{14, 36, 20, 8, 10, 10, 12, 12, 12}

// renderInventoryWorkbook writes items into a single-sheet workbook.
func renderInventoryWorkbook(items []*inventory.Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(inventorySheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, h := range inventoryExportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(inventorySheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(inventorySheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("styling header: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(inventorySheet, col, col, inventoryColumnWidths[i]); err != nil {
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	for r, item := range items {
		row := []any{
			item.Code,
			item.Name,
			stringOrEmpty(item.Category),
			item.Unit,
			item.Quantity,
			item.MinAlert,
			formatCents(item.PriceCents),
			stockStatus(item),
			ownerLabel(item),
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(inventorySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func stockStatus(item *inventory.Item) string {
	switch {
	case item.IsDepleted():
		return "depleted"
	case item.IsLowStock():
		return "low"
	}
	return "ok"
}

func ownerLabel(item *inventory.Item) string {
	if item.IsGlobal() {
		return "clinic"
	}
	return "professional"
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatCents(c *int64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d.%02d", *c/100, *c%100)
}
