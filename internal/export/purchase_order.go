// Package export renders purchase orders as spreadsheets.
package export

import (
	"fmt"
	"io"

	"procurement/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName     = "Purchase Order"
	itemHeaderRow = 7
)

// PurchaseOrderSheet builds the workbook for po. requestTitle is printed in the header.
func PurchaseOrderSheet(po *model.PurchaseOrder, requestTitle string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := fillHeader(f, po, requestTitle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to fill header: %w", err)
	}
	if err := fillItems(f, po.Items.Data()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to fill items: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "A", 6); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 48); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "C", "E", 14); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WritePurchaseOrder streams the xlsx workbook for po to w.
func WritePurchaseOrder(w io.Writer, po *model.PurchaseOrder, requestTitle string) error {
	f, err := PurchaseOrderSheet(po, requestTitle)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fillHeader(f *excelize.File, po *model.PurchaseOrder, requestTitle string) error {
	rows := [][2]interface{}{
		{"PO Number", po.PONumber},
		{"Request", requestTitle},
		{"Vendor", po.VendorName},
		{"Issued", po.CreatedAt.Format("2006-01-02")},
		{"Total", po.TotalAmount.StringFixed(2)},
	}
	for i, r := range rows {
		row := i + 1
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r[1]); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheetName, "A1", fmt.Sprintf("A%d", len(rows)), bold)
}

func fillItems(f *excelize.File, items []model.POItem) error {
	header := []interface{}{"#", "Description", "Quantity", "Unit Price", "Line Total"}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", itemHeaderRow), &header); err != nil {
		return err
	}

	for i, item := range items {
		row := itemHeaderRow + 1 + i
		unit, _ := item.UnitPrice.Float64()
		total, _ := item.TotalPrice.Float64()
		values := []interface{}{i + 1, item.Description, item.Quantity, unit, total}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("failed to set item at row %d: %w", row, err)
		}
	}
	return nil
}
