package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"procurement/internal/model"
)

// AmountTolerance is the largest money difference not treated as a discrepancy.
var AmountTolerance = decimal.NewFromFloat(0.01)

// ReceiptData is what extraction read from a receipt.
type ReceiptData struct {
	VendorName  string
	TotalAmount decimal.NullDecimal
	Items       []model.ExtractedItem
}

// CompareReceipt checks a receipt against the order snapshot and returns
// the validation status together with every material difference found.
// placeholderVendor is the vendor name used when none was known at order time; it is never compared.
func CompareReceipt(po *model.PurchaseOrder, receipt ReceiptData, placeholderVendor string) (string, []model.Discrepancy) {
	var found []model.Discrepancy

	poVendor := normalize(po.VendorName)
	rcVendor := normalize(receipt.VendorName)
	if poVendor != "" && poVendor != normalize(placeholderVendor) && rcVendor != "" && poVendor != rcVendor {
		found = append(found, model.Discrepancy{Field: "vendor_name", Expected: po.VendorName, Actual: receipt.VendorName})
	}

	if !receipt.TotalAmount.Valid {
		found = append(found, model.Discrepancy{Field: "total_amount", Expected: po.TotalAmount.StringFixed(2), Actual: "missing"})
	} else if !withinTolerance(po.TotalAmount, receipt.TotalAmount.Decimal) {
		found = append(found, model.Discrepancy{
			Field:    "total_amount",
			Expected: po.TotalAmount.StringFixed(2),
			Actual:   receipt.TotalAmount.Decimal.StringFixed(2),
		})
	}

	poItems := po.Items.Data()
	if len(receipt.Items) > 0 {
		if len(poItems) != len(receipt.Items) {
			found = append(found, model.Discrepancy{
				Field:    "items.count",
				Expected: strconv.Itoa(len(poItems)),
				Actual:   strconv.Itoa(len(receipt.Items)),
			})
		}
		n := len(poItems)
		if len(receipt.Items) < n {
			n = len(receipt.Items)
		}
		for i := 0; i < n; i++ {
			found = append(found, compareItem(i, poItems[i], receipt.Items[i])...)
		}
	}

	if len(found) == 0 {
		return model.ReceiptValid, nil
	}
	return model.ReceiptDiscrepancy, found
}

func compareItem(i int, want model.POItem, got model.ExtractedItem) []model.Discrepancy {
	var found []model.Discrepancy
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

	if normalize(want.Description) != normalize(got.Description) {
		found = append(found, model.Discrepancy{Field: field("description"), Expected: want.Description, Actual: got.Description})
	}
	if want.Quantity != got.Quantity {
		found = append(found, model.Discrepancy{Field: field("quantity"), Expected: strconv.Itoa(want.Quantity), Actual: strconv.Itoa(got.Quantity)})
	}
	if !withinTolerance(want.UnitPrice, got.UnitPrice) {
		found = append(found, model.Discrepancy{Field: field("unit_price"), Expected: want.UnitPrice.StringFixed(2), Actual: got.UnitPrice.StringFixed(2)})
	}
	// zero means the line total was not read
	if !got.TotalPrice.IsZero() && !withinTolerance(want.TotalPrice, got.TotalPrice) {
		found = append(found, model.Discrepancy{Field: field("total_price"), Expected: want.TotalPrice.StringFixed(2), Actual: got.TotalPrice.StringFixed(2)})
	}
	return found
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
